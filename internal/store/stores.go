package store

import (
	"github.com/al-bashkir/payroll-console/internal/apiclient"
	"github.com/al-bashkir/payroll-console/internal/session"
)

// Stores bundles every domain store of one console process.
type Stores struct {
	Auth           *Auth
	Employees      *Employees
	Departments    *Departments
	Positions      *Positions
	Attendance     *AttendanceRecords
	Salaries       *Salaries
	SalaryItems    *SalaryItems
	SalaryConfig   *SalaryConfig
	SocialSecurity *SocialSecurity
	Parameters     *Parameters
	Users          *Users
}

// New builds the stores on top of one client and session.
func New(c *apiclient.Client, s *session.Manager, profilePath string) *Stores {
	return &Stores{
		Auth:           NewAuth(c, s, profilePath),
		Employees:      &Employees{NewCollection[Employee](c, employeesPath)},
		Departments:    &Departments{NewCollection[Department](c, departmentsPath)},
		Positions:      &Positions{NewCollection[Position](c, positionsPath)},
		Attendance:     &AttendanceRecords{Collection: NewCollection[Attendance](c, attendancePath)},
		Salaries:       &Salaries{NewCollection[SalaryRecord](c, salaryRecordsPath)},
		SalaryItems:    &SalaryItems{NewCollection[SalaryItem](c, salaryItemsPath)},
		SalaryConfig:   &SalaryConfig{client: c},
		SocialSecurity: &SocialSecurity{NewCollection[SocialSecurityConfig](c, socialSecurityPath)},
		Parameters:     &Parameters{NewCollection[SystemParameter](c, parametersPath)},
		Users:          &Users{NewCollection[User](c, usersPath)},
	}
}
