package store

// Employee is a staff record.
type Employee struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	DepartmentID   int     `json:"department_id"`
	PositionID     int     `json:"position_id"`
	DepartmentName string  `json:"department_name,omitempty"`
	PositionName   string  `json:"position_name,omitempty"`
	BaseSalary     float64 `json:"base_salary"`
	HireDate       string  `json:"hire_date"`
	LeaveDate      string  `json:"leave_date,omitempty"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email,omitempty"`
	IDCard         string  `json:"id_card"`
	BankName       string  `json:"bank_name,omitempty"`
	BankAccount    string  `json:"bank_account,omitempty"`
	// Status is true while employed.
	Status    bool   `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Department groups employees.
type Department struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// DepartmentInput creates or updates a department.
type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Position is a job title inside a department.
type Position struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	DepartmentID   int      `json:"department_id"`
	DepartmentName string   `json:"department_name,omitempty"`
	SalaryRangeMin *float64 `json:"salary_range_min,omitempty"`
	SalaryRangeMax *float64 `json:"salary_range_max,omitempty"`
}

// Attendance is one employee-day.
type Attendance struct {
	ID            int     `json:"id"`
	EmployeeID    int     `json:"employee_id"`
	Date          string  `json:"date"`
	StatusID      int     `json:"status_id"`
	WorkHours     float64 `json:"work_hours,omitempty"`
	OvertimeHours float64 `json:"overtime_hours,omitempty"`
	Remarks       string  `json:"remarks,omitempty"`
}

// AttendanceStatus is a kind of attendance day, e.g. late or on leave.
type AttendanceStatus struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	IsDeduction    bool    `json:"is_deduction"`
	DeductionValue float64 `json:"deduction_value"`
}

// SalaryRecord is one monthly payslip as computed by the server.
type SalaryRecord struct {
	ID                     int     `json:"id"`
	EmployeeID             int     `json:"employee_id"`
	Year                   int     `json:"year"`
	Month                  int     `json:"month"`
	BasicSalary            float64 `json:"basic_salary"`
	AttendanceDeduction    float64 `json:"attendance_deduction"`
	BeforeTax              float64 `json:"before_tax"`
	Tax                    float64 `json:"tax"`
	AfterTax               float64 `json:"after_tax"`
	SocialSecurityPersonal float64 `json:"social_security_personal"`
	SocialSecurityCompany  float64 `json:"social_security_company"`
	HousingFundPersonal    float64 `json:"housing_fund_personal"`
	HousingFundCompany     float64 `json:"housing_fund_company"`
	Status                 string  `json:"status"`
}

// SalarySummary aggregates the records of one month.
type SalarySummary struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	EmployeeCount  int     `json:"employee_count"`
	TotalBeforeTax float64 `json:"total_before_tax"`
	TotalTax       float64 `json:"total_tax"`
	TotalAfterTax  float64 `json:"total_after_tax"`
}

// Salary item types.
const (
	SalaryItemAddition  = "addition"
	SalaryItemDeduction = "deduction"
)

// SalaryItem is a kind of allowance or deduction.
type SalaryItem struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsPercentage bool   `json:"is_percentage"`
	IsSystem     bool   `json:"is_system"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// SalaryItemInput creates or updates a salary item.
type SalaryItemInput struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsPercentage bool   `json:"is_percentage"`
}

// SalaryConfigItem is one item configured for an employee. Percentage items
// apply Value to BaseItem, the base salary when empty.
type SalaryConfigItem struct {
	ID            int     `json:"id,omitempty"`
	ItemID        int     `json:"item_id"`
	ItemName      string  `json:"item_name,omitempty"`
	Type          string  `json:"type,omitempty"`
	IsPercentage  bool    `json:"is_percentage,omitempty"`
	IsSystem      bool    `json:"is_system,omitempty"`
	Value         float64 `json:"value"`
	BaseItem      string  `json:"base_item,omitempty"`
	EffectiveDate string  `json:"effective_date"`
}

// EmployeeSalaryConfig is the salary item set of one employee.
type EmployeeSalaryConfig struct {
	EmployeeID int                `json:"employee_id"`
	Items      []SalaryConfigItem `json:"items"`
}

// SalaryGenerateRequest asks for draft records of one month. Without a
// department or employee list every active employee is included.
type SalaryGenerateRequest struct {
	Year         int   `json:"year"`
	Month        int   `json:"month"`
	DepartmentID *int  `json:"department_id,omitempty"`
	EmployeeIDs  []int `json:"employee_ids,omitempty"`
}

// SalaryGenerateResult reports a generation run.
type SalaryGenerateResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	GeneratedCount int      `json:"generated_count"`
	FailedCount    int      `json:"failed_count"`
	Errors         []string `json:"errors,omitempty"`
}

// SocialSecurityConfig is a set of contribution rates.
type SocialSecurityConfig struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	PensionRate      float64 `json:"pension_rate"`
	MedicalRate      float64 `json:"medical_rate"`
	UnemploymentRate float64 `json:"unemployment_rate"`
	InjuryRate       float64 `json:"injury_rate"`
	MaternityRate    float64 `json:"maternity_rate"`
	HousingFundRate  float64 `json:"housing_fund_rate"`
	IsDefault        bool    `json:"is_default"`
}

// SystemParameter is one key/value setting of the backend.
type SystemParameter struct {
	ID          int    `json:"id"`
	Key         string `json:"param_key"`
	Value       string `json:"param_value"`
	Description string `json:"description,omitempty"`
}

// User is an account as listed by administrators.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
	EmployeeID *int   `json:"employee_id,omitempty"`
}

// Registration is a self-service account request.
type Registration struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RealName   string `json:"real_name"`
	IDCard     string `json:"id_card,omitempty"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	EmployeeID *int   `json:"employee_id,omitempty"`
}

// RegistrationResult is the stored request, awaiting approval.
type RegistrationResult struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	RealName   string `json:"real_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status"`
	EmployeeID *int   `json:"employee_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	Message    string `json:"message"`
}
