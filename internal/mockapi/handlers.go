package mockapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/al-bashkir/payroll-console/internal/store"
)

const defaultLimit = 100

// paginate applies the skip and limit query parameters.
func paginate[T any](c *gin.Context, items []T) []T {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if skip >= len(items) {
		return []T{}
	}
	end := min(skip+limit, len(items))
	return items[skip:end]
}

// envelope responds with the {items,total} page shape.
func envelope[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, gin.H{"items": paginate(c, items), "total": len(items)})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	v, _ := strconv.Atoi(c.Query(key))
	return v
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"detail": what + " not found"})
}

func (s *Server) listEmployees(c *gin.Context) {
	dept := queryInt(c, "department_id")
	s.data.mu.RLock()
	out := filter(s.data.employees, func(e store.Employee) bool {
		return dept == 0 || e.DepartmentID == dept
	})
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, paginate(c, out))
}

func (s *Server) searchEmployees(c *gin.Context) {
	keyword := strings.ToLower(strings.TrimSpace(c.Query("keyword")))
	dept := queryInt(c, "department_id")

	s.data.mu.RLock()
	out := filter(s.data.employees, func(e store.Employee) bool {
		if dept != 0 && e.DepartmentID != dept {
			return false
		}
		return keyword == "" ||
			strings.Contains(strings.ToLower(e.Name), keyword) ||
			strings.Contains(e.Phone, keyword)
	})
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, paginate(c, out))
}

func (s *Server) getEmployee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	for _, e := range s.data.employees {
		if e.ID == id {
			c.JSON(http.StatusOK, e)
			return
		}
	}
	notFound(c, "Employee")
}

func (s *Server) createEmployee(c *gin.Context) {
	var in store.Employee
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid employee body"})
		return
	}
	if in.Name == "" || in.DepartmentID == 0 || in.PositionID == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []validationIssue{
			{Loc: []string{"body"}, Msg: "name, department_id and position_id are required", Type: "value_error"},
		}})
		return
	}

	s.data.mu.Lock()
	in.ID = s.data.id()
	in.Status = true
	in.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	s.data.employees = append(s.data.employees, in)
	s.data.mu.Unlock()

	c.JSON(http.StatusOK, in)
}

func (s *Server) leaveEmployee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		LeaveDate string `json:"leave_date"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.LeaveDate == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "leave_date is required"})
		return
	}
	if _, err := time.Parse(time.DateOnly, in.LeaveDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "leave_date must be YYYY-MM-DD"})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for i := range s.data.employees {
		e := &s.data.employees[i]
		if e.ID != id {
			continue
		}
		if !e.Status {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Employee has already left"})
			return
		}
		e.Status = false
		e.LeaveDate = in.LeaveDate
		c.JSON(http.StatusOK, *e)
		return
	}
	notFound(c, "Employee")
}

func (s *Server) listDepartments(c *gin.Context) {
	s.data.mu.RLock()
	out := append([]store.Department(nil), s.data.departments...)
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, paginate(c, out))
}

func (s *Server) departmentsWithCount(c *gin.Context) {
	s.data.mu.RLock()
	out := make([]store.Department, 0, len(s.data.departments))
	for _, d := range s.data.departments {
		d.EmployeeCount = s.data.employeeCount(d.ID)
		out = append(out, d)
	}
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createDepartment(c *gin.Context) {
	var in store.DepartmentInput
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name is required"})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for _, d := range s.data.departments {
		if strings.EqualFold(d.Name, in.Name) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Department name already exists"})
			return
		}
	}
	d := store.Department{
		ID:          s.data.id(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.data.departments = append(s.data.departments, d)
	c.JSON(http.StatusOK, d)
}

func (s *Server) deleteDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for i, d := range s.data.departments {
		if d.ID != id {
			continue
		}
		if s.data.employeeCount(id) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Department still has employees"})
			return
		}
		s.data.departments = append(s.data.departments[:i], s.data.departments[i+1:]...)
		c.JSON(http.StatusOK, d)
		return
	}
	notFound(c, "Department")
}

func (s *Server) listPositions(c *gin.Context) {
	s.data.mu.RLock()
	out := append([]store.Position(nil), s.data.positions...)
	s.data.mu.RUnlock()
	envelope(c, out)
}

func (s *Server) positionsByDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.data.mu.RLock()
	out := filter(s.data.positions, func(p store.Position) bool { return p.DepartmentID == id })
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) listAttendance(c *gin.Context) {
	acct, _ := current(c)
	employee := queryInt(c, "employee_id")
	if acct.Role == "employee" {
		employee = -1
		if acct.EmployeeID != nil {
			employee = *acct.EmployeeID
		}
	}

	s.data.mu.RLock()
	out := filter(s.data.attendance, func(a store.Attendance) bool {
		return employee == 0 || a.EmployeeID == employee
	})
	s.data.mu.RUnlock()
	envelope(c, out)
}

func (s *Server) listStatuses(c *gin.Context) {
	s.data.mu.RLock()
	out := append([]store.AttendanceStatus(nil), s.data.statuses...)
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) listSalaries(c *gin.Context) {
	acct, _ := current(c)
	employee := queryInt(c, "employee_id")
	if acct.Role == "employee" {
		employee = -1
		if acct.EmployeeID != nil {
			employee = *acct.EmployeeID
		}
	}
	year, month := queryInt(c, "year"), queryInt(c, "month")

	s.data.mu.RLock()
	out := filter(s.data.salaries, func(r store.SalaryRecord) bool {
		return (employee == 0 || r.EmployeeID == employee) &&
			(year == 0 || r.Year == year) &&
			(month == 0 || r.Month == month)
	})
	s.data.mu.RUnlock()
	envelope(c, out)
}

func (s *Server) salarySummary(c *gin.Context) {
	year, month := queryInt(c, "year"), queryInt(c, "month")
	if year == 0 || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "year and month are required"})
		return
	}

	sum := store.SalarySummary{Year: year, Month: month}
	s.data.mu.RLock()
	for _, r := range s.data.salaries {
		if r.Year != year || r.Month != month {
			continue
		}
		sum.EmployeeCount++
		sum.TotalBeforeTax += r.BeforeTax
		sum.TotalTax += r.Tax
		sum.TotalAfterTax += r.AfterTax
	}
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, sum)
}

func (s *Server) listSocialSecurity(c *gin.Context) {
	s.data.mu.RLock()
	out := append([]store.SocialSecurityConfig(nil), s.data.socialSecurity...)
	s.data.mu.RUnlock()
	envelope(c, out)
}

func (s *Server) listParameters(c *gin.Context) {
	s.data.mu.RLock()
	out := append([]store.SystemParameter(nil), s.data.parameters...)
	s.data.mu.RUnlock()
	envelope(c, out)
}

func (s *Server) parameterByKey(c *gin.Context) {
	key := c.Param("key")
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	for _, p := range s.data.parameters {
		if p.Key == key {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	notFound(c, "Parameter")
}

func (s *Server) listUsers(c *gin.Context) {
	s.data.mu.RLock()
	out := make([]store.User, 0, len(s.data.accounts))
	for _, a := range s.data.accounts {
		out = append(out, a.user())
	}
	s.data.mu.RUnlock()
	envelope(c, out)
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
