package store

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/al-bashkir/payroll-console/internal/apiclient"
)

const (
	employeesPath      = "/api/v1/employees/"
	departmentsPath    = "/api/v1/departments/"
	positionsPath      = "/api/v1/positions/"
	attendancePath     = "/api/v1/attendance/"
	salaryRecordsPath  = "/api/v1/salaries/records"
	salarySummaryPath  = "/api/v1/salaries/summary"
	salaryItemsPath    = "/api/v1/salaries/items"
	salaryConfigPath   = "/api/v1/salaries/config/"
	salaryGeneratePath = "/api/v1/salaries/generate"
	socialSecurityPath = "/api/v1/social-security/configs"
	parametersPath     = "/api/v1/system/parameters"
	usersPath          = "/api/v1/users/"
)

// Employees is the staff directory.
type Employees struct {
	*Collection[Employee]
}

// Search looks employees up by keyword, optionally within a department.
func (e *Employees) Search(ctx context.Context, keyword string, departmentID int) ([]Employee, error) {
	q := url.Values{"skip": {"0"}, "limit": {"100"}}
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		q.Set("keyword", keyword)
	}
	if departmentID > 0 {
		q.Set("department_id", strconv.Itoa(departmentID))
	}
	return e.listFrom(ctx, employeesPath+"search", q)
}

// Leave marks an employee as departed on leaveDate (YYYY-MM-DD).
func (e *Employees) Leave(ctx context.Context, id int, leaveDate string) (Employee, error) {
	var out Employee
	err := e.run(func() error {
		var err error
		out, err = apiclient.Put[Employee](ctx, e.client, e.itemPath(id)+"/leave", map[string]string{"leave_date": leaveDate})
		return err
	})
	if err != nil {
		return out, err
	}
	e.setCurrent(out)
	return out, e.refresh(ctx)
}

// Departments lists organisational units.
type Departments struct {
	*Collection[Department]
}

// WithEmployeeCount lists departments together with their headcount.
func (d *Departments) WithEmployeeCount(ctx context.Context) ([]Department, error) {
	return d.listFrom(ctx, departmentsPath+"with-employee-count", nil)
}

// Positions lists job titles.
type Positions struct {
	*Collection[Position]
}

// ByDepartment lists the positions of one department.
func (p *Positions) ByDepartment(ctx context.Context, departmentID int) ([]Position, error) {
	return p.listFrom(ctx, positionsPath+"by-department/"+strconv.Itoa(departmentID), nil)
}

// AttendanceRecords lists attendance days.
type AttendanceRecords struct {
	*Collection[Attendance]

	statuses []AttendanceStatus
}

// Statuses loads the attendance status catalogue.
func (a *AttendanceRecords) Statuses(ctx context.Context) ([]AttendanceStatus, error) {
	var page Page[AttendanceStatus]
	err := a.run(func() error {
		var err error
		page, err = apiclient.Get[Page[AttendanceStatus]](ctx, a.client, attendancePath+"status", nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.statuses = page.Items
	a.mu.Unlock()
	return page.Items, nil
}

// StatusName returns the name of a loaded attendance status, or its id.
func (a *AttendanceRecords) StatusName(id int) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, st := range a.statuses {
		if st.ID == id {
			return st.Name
		}
	}
	return strconv.Itoa(id)
}

// Salaries lists monthly salary records.
type Salaries struct {
	*Collection[SalaryRecord]
}

// Summary returns the totals of one month.
func (s *Salaries) Summary(ctx context.Context, year, month int) (SalarySummary, error) {
	var out SalarySummary
	err := s.run(func() error {
		var err error
		q := url.Values{"year": {strconv.Itoa(year)}, "month": {strconv.Itoa(month)}}
		out, err = apiclient.Get[SalarySummary](ctx, s.client, salarySummaryPath, q)
		return err
	})
	return out, err
}

// SalaryItems is the catalogue of allowances and deductions.
type SalaryItems struct {
	*Collection[SalaryItem]
}

// ByType lists the items of one type, SalaryItemAddition or
// SalaryItemDeduction.
func (s *SalaryItems) ByType(ctx context.Context, itemType string) ([]SalaryItem, error) {
	return s.List(ctx, url.Values{"type": {itemType}})
}

// SalaryConfig holds the salary items configured for one employee and runs
// monthly generation.
type SalaryConfig struct {
	state

	client  *apiclient.Client
	current EmployeeSalaryConfig
}

// Current returns the last loaded configuration.
func (s *SalaryConfig) Current() EmployeeSalaryConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get loads the configuration of an employee. On failure the current
// configuration is reset to an empty one for that employee.
func (s *SalaryConfig) Get(ctx context.Context, employeeID int) (EmployeeSalaryConfig, error) {
	var out EmployeeSalaryConfig
	err := s.run(func() error {
		var err error
		out, err = apiclient.Get[EmployeeSalaryConfig](ctx, s.client, salaryConfigPath+strconv.Itoa(employeeID), nil)
		return err
	})
	if err != nil {
		out = EmployeeSalaryConfig{EmployeeID: employeeID, Items: []SalaryConfigItem{}}
	}
	s.mu.Lock()
	s.current = out
	s.mu.Unlock()
	return out, err
}

// Save replaces the configured items of an employee.
func (s *SalaryConfig) Save(ctx context.Context, employeeID int, items []SalaryConfigItem) (EmployeeSalaryConfig, error) {
	body := EmployeeSalaryConfig{EmployeeID: employeeID, Items: items}
	var out EmployeeSalaryConfig
	err := s.run(func() error {
		var err error
		out, err = apiclient.Put[EmployeeSalaryConfig](ctx, s.client, salaryConfigPath+strconv.Itoa(employeeID), body)
		return err
	})
	if err != nil {
		return out, err
	}
	s.mu.Lock()
	s.current = out
	s.mu.Unlock()
	return out, nil
}

// Generate creates draft salary records for one month.
func (s *SalaryConfig) Generate(ctx context.Context, req SalaryGenerateRequest) (SalaryGenerateResult, error) {
	var out SalaryGenerateResult
	err := s.run(func() error {
		var err error
		out, err = apiclient.Post[SalaryGenerateResult](ctx, s.client, salaryGeneratePath, req)
		return err
	})
	return out, err
}

// SocialSecurity lists contribution rate configurations.
type SocialSecurity struct {
	*Collection[SocialSecurityConfig]
}

// Parameters lists backend system parameters.
type Parameters struct {
	*Collection[SystemParameter]
}

// ByKey fetches one parameter by its key.
func (p *Parameters) ByKey(ctx context.Context, key string) (SystemParameter, error) {
	var out SystemParameter
	err := p.run(func() error {
		var err error
		out, err = apiclient.Get[SystemParameter](ctx, p.client, parametersPath+"/key/"+url.PathEscape(key), nil)
		return err
	})
	if err != nil {
		return out, err
	}
	p.setCurrent(out)
	return out, nil
}

// Users lists accounts.
type Users struct {
	*Collection[User]
}
