package mockapi

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/al-bashkir/payroll-console/internal/store"
)

// Flat rates used by generation. The real backend reads them from the
// social security configuration and the tax tables.
const (
	personalInsuranceRate = 0.105
	companyInsuranceRate  = 0.26
	housingFundRate       = 0.07
	incomeTaxRate         = 0.1
)

func validItemType(t string) bool {
	return t == store.SalaryItemAddition || t == store.SalaryItemDeduction
}

func (s *Server) listSalaryItems(c *gin.Context) {
	itemType := c.Query("type")
	s.data.mu.RLock()
	out := filter(s.data.salaryItems, func(it store.SalaryItem) bool {
		return itemType == "" || it.Type == itemType
	})
	s.data.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSalaryItem(c *gin.Context) {
	var in store.SalaryItemInput
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" || !validItemType(in.Type) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name and a type of addition or deduction are required"})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for _, it := range s.data.salaryItems {
		if strings.EqualFold(it.Name, in.Name) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Salary item name already exists"})
			return
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	it := store.SalaryItem{
		ID:           s.data.id(),
		Name:         in.Name,
		Type:         in.Type,
		IsPercentage: in.IsPercentage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.data.salaryItems = append(s.data.salaryItems, it)
	c.JSON(http.StatusOK, it)
}

func (s *Server) updateSalaryItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in store.SalaryItemInput
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" || !validItemType(in.Type) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name and a type of addition or deduction are required"})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for i := range s.data.salaryItems {
		it := &s.data.salaryItems[i]
		if it.ID != id {
			continue
		}
		if it.IsSystem {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "System salary items cannot be modified"})
			return
		}
		it.Name, it.Type, it.IsPercentage = in.Name, in.Type, in.IsPercentage
		it.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		c.JSON(http.StatusOK, *it)
		return
	}
	notFound(c, "Salary item")
}

func (s *Server) deleteSalaryItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for i, it := range s.data.salaryItems {
		if it.ID != id {
			continue
		}
		if it.IsSystem {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "System salary items cannot be deleted"})
			return
		}
		s.data.salaryItems = slices.Delete(s.data.salaryItems, i, i+1)
		c.JSON(http.StatusOK, it)
		return
	}
	notFound(c, "Salary item")
}

// salaryConfig returns the configured items of an employee joined with the
// item catalogue. Must be called with mu held.
func (d *dataset) salaryConfig(employeeID int) store.EmployeeSalaryConfig {
	out := store.EmployeeSalaryConfig{EmployeeID: employeeID, Items: []store.SalaryConfigItem{}}
	for _, ci := range d.salaryConfigs[employeeID] {
		if it, ok := d.salaryItem(ci.ItemID); ok {
			ci.ItemName, ci.Type, ci.IsPercentage, ci.IsSystem = it.Name, it.Type, it.IsPercentage, it.IsSystem
		}
		out.Items = append(out.Items, ci)
	}
	return out
}

func (s *Server) getSalaryConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	if _, ok := s.data.employee(id); !ok {
		notFound(c, "Employee")
		return
	}
	c.JSON(http.StatusOK, s.data.salaryConfig(id))
}

func (s *Server) saveSalaryConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in store.EmployeeSalaryConfig
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid salary config body"})
		return
	}
	if in.EmployeeID != 0 && in.EmployeeID != id {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "employee_id does not match the path"})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, ok := s.data.employee(id); !ok {
		notFound(c, "Employee")
		return
	}
	items := make([]store.SalaryConfigItem, 0, len(in.Items))
	for _, ci := range in.Items {
		if _, ok := s.data.salaryItem(ci.ItemID); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Salary item %d not found", ci.ItemID)})
			return
		}
		if _, err := time.Parse(time.DateOnly, ci.EffectiveDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "effective_date must be YYYY-MM-DD"})
			return
		}
		items = append(items, store.SalaryConfigItem{
			ID:            s.data.id(),
			ItemID:        ci.ItemID,
			Value:         ci.Value,
			BaseItem:      ci.BaseItem,
			EffectiveDate: ci.EffectiveDate,
		})
	}
	s.data.salaryConfigs[id] = items
	c.JSON(http.StatusOK, s.data.salaryConfig(id))
}

// taxThreshold reads the tax_threshold parameter. Must be called with mu held.
func (d *dataset) taxThreshold() float64 {
	for _, p := range d.parameters {
		if p.Key == "tax_threshold" {
			v, err := strconv.ParseFloat(p.Value, 64)
			if err == nil {
				return v
			}
		}
	}
	return 5000
}

// draftRecord computes a salary record from the base salary and the
// configured items of an employee. Must be called with mu held.
func (d *dataset) draftRecord(e store.Employee, year, month int) store.SalaryRecord {
	gross := e.BaseSalary
	for _, ci := range d.salaryConfig(e.ID).Items {
		amount := ci.Value
		if ci.IsPercentage {
			amount = e.BaseSalary * ci.Value / 100
		}
		if ci.Type == store.SalaryItemDeduction {
			amount = -amount
		}
		gross += amount
	}

	ssPersonal := round2(e.BaseSalary * personalInsuranceRate)
	hfPersonal := round2(e.BaseSalary * housingFundRate)
	taxable := gross - ssPersonal - hfPersonal - d.taxThreshold()
	tax := round2(max(0, taxable*incomeTaxRate))

	return store.SalaryRecord{
		ID:                     d.id(),
		EmployeeID:             e.ID,
		Year:                   year,
		Month:                  month,
		BasicSalary:            e.BaseSalary,
		BeforeTax:              round2(gross),
		Tax:                    tax,
		AfterTax:               round2(gross - tax - ssPersonal - hfPersonal),
		SocialSecurityPersonal: ssPersonal,
		SocialSecurityCompany:  round2(e.BaseSalary * companyInsuranceRate),
		HousingFundPersonal:    hfPersonal,
		HousingFundCompany:     hfPersonal,
		Status:                 "draft",
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// generateSalaries creates draft records for the selected active employees.
// An employee who already has a record for the month counts as failed.
func (s *Server) generateSalaries(c *gin.Context) {
	var in store.SalaryGenerateRequest
	if err := c.ShouldBindJSON(&in); err != nil || in.Year < 2000 || in.Month < 1 || in.Month > 12 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "year and month are required"})
		return
	}

	res := store.SalaryGenerateResult{Errors: []string{}}
	s.data.mu.Lock()
	for _, e := range s.data.employees {
		if !e.Status {
			continue
		}
		if in.DepartmentID != nil && e.DepartmentID != *in.DepartmentID {
			continue
		}
		if len(in.EmployeeIDs) > 0 && !slices.Contains(in.EmployeeIDs, e.ID) {
			continue
		}
		exists := slices.ContainsFunc(s.data.salaries, func(r store.SalaryRecord) bool {
			return r.EmployeeID == e.ID && r.Year == in.Year && r.Month == in.Month
		})
		if exists {
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s already has a salary record for %d-%02d", e.Name, in.Year, in.Month))
			continue
		}
		s.data.salaries = append(s.data.salaries, s.data.draftRecord(e, in.Year, in.Month))
		res.GeneratedCount++
	}
	s.data.mu.Unlock()

	res.Success = res.FailedCount == 0
	res.Message = fmt.Sprintf("Generated %d salary records, %d failed", res.GeneratedCount, res.FailedCount)
	c.JSON(http.StatusOK, res)
}
