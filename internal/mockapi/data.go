package mockapi

import (
	"sync"

	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/store"
)

// account is a seeded login.
type account struct {
	ID         int
	Username   string
	Password   string
	Role       string
	EmployeeID *int
	Email      string
}

func (a account) profile() session.Profile {
	return session.Profile{
		ID:         a.ID,
		Username:   a.Username,
		EmployeeID: a.EmployeeID,
		Role:       session.Role(a.Role),
		IsActive:   true,
	}
}

func (a account) user() store.User {
	return store.User{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		Role:       a.Role,
		IsActive:   true,
		EmployeeID: a.EmployeeID,
	}
}

// dataset is the in-memory backend state.
type dataset struct {
	mu sync.RWMutex

	accounts       []account
	employees      []store.Employee
	departments    []store.Department
	positions      []store.Position
	attendance     []store.Attendance
	statuses       []store.AttendanceStatus
	salaries       []store.SalaryRecord
	salaryItems    []store.SalaryItem
	salaryConfigs  map[int][]store.SalaryConfigItem
	socialSecurity []store.SocialSecurityConfig
	parameters     []store.SystemParameter
	registrations  []store.RegistrationResult

	nextID int
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func seed() *dataset {
	return &dataset{
		accounts: []account{
			{ID: 1, Username: "admin", Password: "admin123", Role: "admin", Email: "admin@example.com"},
			{ID: 2, Username: "hr", Password: "hr123456", Role: "hr", Email: "hr@example.com"},
			{ID: 3, Username: "manager", Password: "manager123", Role: "manager", EmployeeID: intPtr(2)},
			{ID: 4, Username: "employee", Password: "employee123", Role: "employee", EmployeeID: intPtr(1)},
		},
		departments: []store.Department{
			{ID: 1, Name: "Engineering", Description: "Product development"},
			{ID: 2, Name: "Finance", Description: "Accounting and payroll"},
			{ID: 3, Name: "Operations"},
		},
		positions: []store.Position{
			{ID: 1, Name: "Software Engineer", DepartmentID: 1, DepartmentName: "Engineering", SalaryRangeMin: floatPtr(12000), SalaryRangeMax: floatPtr(30000)},
			{ID: 2, Name: "Engineering Manager", DepartmentID: 1, DepartmentName: "Engineering", SalaryRangeMin: floatPtr(25000), SalaryRangeMax: floatPtr(45000)},
			{ID: 3, Name: "Accountant", DepartmentID: 2, DepartmentName: "Finance", SalaryRangeMin: floatPtr(8000), SalaryRangeMax: floatPtr(15000)},
		},
		employees: []store.Employee{
			{ID: 1, Name: "Zhang Wei", DepartmentID: 1, PositionID: 1, DepartmentName: "Engineering", PositionName: "Software Engineer", BaseSalary: 18000, HireDate: "2022-03-01", Phone: "13800000001", IDCard: "110101199001011234", Status: true},
			{ID: 2, Name: "Li Na", DepartmentID: 1, PositionID: 2, DepartmentName: "Engineering", PositionName: "Engineering Manager", BaseSalary: 32000, HireDate: "2019-07-15", Phone: "13800000002", IDCard: "110101198505052345", Status: true},
			{ID: 3, Name: "Wang Fang", DepartmentID: 2, PositionID: 3, DepartmentName: "Finance", PositionName: "Accountant", BaseSalary: 11000, HireDate: "2021-11-20", Phone: "13800000003", IDCard: "110101199212123456", Status: true},
		},
		statuses: []store.AttendanceStatus{
			{ID: 1, Name: "present"},
			{ID: 2, Name: "late", IsDeduction: true, DeductionValue: 50},
			{ID: 3, Name: "absent", IsDeduction: true, DeductionValue: 300},
			{ID: 4, Name: "leave"},
		},
		attendance: []store.Attendance{
			{ID: 1, EmployeeID: 1, Date: "2026-09-01", StatusID: 1, WorkHours: 8},
			{ID: 2, EmployeeID: 1, Date: "2026-09-02", StatusID: 2, WorkHours: 7.5, Remarks: "train delay"},
			{ID: 3, EmployeeID: 2, Date: "2026-09-01", StatusID: 1, WorkHours: 9, OvertimeHours: 1},
			{ID: 4, EmployeeID: 3, Date: "2026-09-01", StatusID: 4},
		},
		salaries: []store.SalaryRecord{
			{ID: 1, EmployeeID: 1, Year: 2026, Month: 9, BasicSalary: 18000, AttendanceDeduction: 50, BeforeTax: 17950, Tax: 1535, AfterTax: 14027, SocialSecurityPersonal: 1885, SocialSecurityCompany: 4690, HousingFundPersonal: 503, HousingFundCompany: 503, Status: "paid"},
			{ID: 2, EmployeeID: 2, Year: 2026, Month: 9, BasicSalary: 32000, BeforeTax: 32000, Tax: 4590, AfterTax: 23375, SocialSecurityPersonal: 3360, SocialSecurityCompany: 8320, HousingFundPersonal: 675, HousingFundCompany: 675, Status: "approved"},
			{ID: 3, EmployeeID: 3, Year: 2026, Month: 9, BasicSalary: 11000, BeforeTax: 11000, Tax: 290, AfterTax: 9228, SocialSecurityPersonal: 1155, SocialSecurityCompany: 2860, HousingFundPersonal: 327, HousingFundCompany: 327, Status: "draft"},
		},
		salaryItems: []store.SalaryItem{
			{ID: 1, Name: "Performance bonus", Type: store.SalaryItemAddition, IsPercentage: true},
			{ID: 2, Name: "Meal allowance", Type: store.SalaryItemAddition},
			{ID: 3, Name: "Union fee", Type: store.SalaryItemDeduction, IsSystem: true},
		},
		salaryConfigs: map[int][]store.SalaryConfigItem{
			1: {
				{ID: 1, ItemID: 1, Value: 10, EffectiveDate: "2026-01-01"},
				{ID: 2, ItemID: 2, Value: 600, EffectiveDate: "2026-01-01"},
			},
		},
		socialSecurity: []store.SocialSecurityConfig{
			{ID: 1, Name: "Standard", PensionRate: 0.08, MedicalRate: 0.02, UnemploymentRate: 0.005, InjuryRate: 0.002, MaternityRate: 0.008, HousingFundRate: 0.07, IsDefault: true},
		},
		parameters: []store.SystemParameter{
			{ID: 1, Key: "tax_threshold", Value: "5000", Description: "Monthly income tax threshold"},
			{ID: 2, Key: "pay_day", Value: "10", Description: "Day of month salaries are paid"},
		},
		nextID: 100,
	}
}

// login returns the account matching the credentials.
func (d *dataset) login(username, password string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if a.Username == username && a.Password == password {
			return a, true
		}
	}
	return account{}, false
}

func (d *dataset) account(username string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if a.Username == username {
			return a, true
		}
	}
	return account{}, false
}

// id hands out identifiers for created records. Must be called with mu held.
func (d *dataset) id() int {
	d.nextID++
	return d.nextID
}

func (d *dataset) salaryItem(id int) (store.SalaryItem, bool) {
	for _, it := range d.salaryItems {
		if it.ID == id {
			return it, true
		}
	}
	return store.SalaryItem{}, false
}

func (d *dataset) employee(id int) (store.Employee, bool) {
	for _, e := range d.employees {
		if e.ID == id {
			return e, true
		}
	}
	return store.Employee{}, false
}

func (d *dataset) employeeCount(departmentID int) int {
	n := 0
	for _, e := range d.employees {
		if e.DepartmentID == departmentID && e.Status {
			n++
		}
	}
	return n
}
