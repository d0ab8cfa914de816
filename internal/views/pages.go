package views

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/al-bashkir/payroll-console/internal/router"
	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/store"
)

func (v *Views) login(ctx context.Context, _ router.Route) error {
	if !v.interactive {
		v.hint("Run `payrollctl login` to sign in.")
		return nil
	}

	in, err := v.prompter.Login(v.session.RememberedUsername(), v.remember)
	if err != nil {
		return err
	}
	p, err := v.stores.Auth.Login(ctx, in.Username, in.Password, in.Remember)
	if err != nil {
		return err
	}
	v.printf("Signed in as %s (%s).\n", p.DisplayName(), p.Role)
	return nil
}

func (v *Views) register(ctx context.Context, _ router.Route) error {
	if !v.interactive {
		v.hint("Run `payrollctl open /register` in a terminal to request an account.")
		return nil
	}

	in, err := v.prompter.Register()
	if err != nil {
		return err
	}
	res, err := v.stores.Auth.Register(ctx, in)
	if err != nil {
		return err
	}
	v.printf("Registration for %s submitted (%s). An administrator must approve it before you can sign in.\n", res.Username, res.Status)
	return nil
}

func (v *Views) dashboard(ctx context.Context, _ router.Route) error {
	profile, _ := v.session.Profile()
	v.fields([2]string{"Signed in as", profile.DisplayName()}, [2]string{"Role", roleLabel(profile.Role)})

	if profile.Role.LowestPrivilege() {
		records, err := v.stores.Attendance.List(ctx, nil)
		if err != nil {
			return err
		}
		v.fields([2]string{"Attendance days", strconv.Itoa(len(records))})
		return nil
	}

	now := time.Now()
	var (
		employees   []store.Employee
		departments []store.Department
		summary     store.SalarySummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = v.stores.Employees.List(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		departments, err = v.stores.Departments.List(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = v.stores.Salaries.Summary(gctx, now.Year(), int(now.Month()))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	active := 0
	for _, e := range employees {
		if e.Status {
			active++
		}
	}
	v.fields(
		[2]string{"Employees", fmt.Sprintf("%d (%d active)", len(employees), active)},
		[2]string{"Departments", strconv.Itoa(len(departments))},
		[2]string{"Payroll " + now.Format("2006-01"), fmt.Sprintf("%s net for %d employees", money(summary.TotalAfterTax), summary.EmployeeCount)},
	)
	return nil
}

func (v *Views) employeeList(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Employees.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		status := "employed"
		if !e.Status {
			status = "left " + e.LeaveDate
		}
		rows = append(rows, []string{strconv.Itoa(e.ID), e.Name, optional(e.DepartmentName), optional(e.PositionName), e.HireDate, status})
	}
	v.table([]string{"ID", "Name", "Department", "Position", "Hired", "Status"}, rows)
	return nil
}

func (v *Views) employeeAdd(ctx context.Context, _ router.Route) error {
	departments, err := v.stores.Departments.List(ctx, nil)
	if err != nil {
		return err
	}
	positions, err := v.stores.Positions.List(ctx, nil)
	if err != nil {
		return err
	}
	if !v.interactive {
		v.hint("Run this view in a terminal to add an employee.")
		return nil
	}

	e, err := v.prompter.NewEmployee(departments, positions)
	if err != nil {
		return err
	}
	created, err := v.stores.Employees.Create(ctx, e)
	if err != nil {
		return err
	}
	v.printf("Added employee %s (id %d).\n", created.Name, created.ID)
	return nil
}

func (v *Views) departmentList(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Departments.WithEmployeeCount(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		rows = append(rows, []string{strconv.Itoa(d.ID), d.Name, optional(d.Description), strconv.Itoa(d.EmployeeCount)})
	}
	v.table([]string{"ID", "Name", "Description", "Employees"}, rows)
	return nil
}

func (v *Views) positionList(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Positions.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		band := "-"
		if p.SalaryRangeMin != nil && p.SalaryRangeMax != nil {
			band = money(*p.SalaryRangeMin) + " - " + money(*p.SalaryRangeMax)
		}
		rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, optional(p.DepartmentName), band})
	}
	v.table([]string{"ID", "Name", "Department", "Salary band"}, rows)
	return nil
}

func salaryRows(list []store.SalaryRecord) [][]string {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.EmployeeID),
			fmt.Sprintf("%d-%02d", r.Year, r.Month),
			money(r.BeforeTax),
			money(r.Tax),
			money(r.AfterTax),
			r.Status,
		})
	}
	return rows
}

var salaryHeaders = []string{"ID", "Employee", "Period", "Gross", "Tax", "Net", "Status"}

func (v *Views) salaryList(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Salaries.List(ctx, nil)
	if err != nil {
		return err
	}
	v.table(salaryHeaders, salaryRows(list))
	return nil
}

// nextPeriod is the month after the latest record, or the current month
// when there are none.
func nextPeriod(list []store.SalaryRecord) (year, month int) {
	if len(list) == 0 {
		now := time.Now()
		return now.Year(), int(now.Month())
	}
	latest := list[0]
	for _, r := range list[1:] {
		if r.Year > latest.Year || (r.Year == latest.Year && r.Month > latest.Month) {
			latest = r
		}
	}
	next := time.Date(latest.Year, time.Month(latest.Month)+1, 1, 0, 0, 0, 0, time.UTC)
	return next.Year(), int(next.Month())
}

// salaryPay shows what is still unpaid. Amounts come from the server as-is.
// In a terminal it offers to generate drafts for the next period first.
func (v *Views) salaryPay(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Salaries.List(ctx, nil)
	if err != nil {
		return err
	}

	if v.interactive {
		year, month := nextPeriod(list)
		ok, err := v.prompter.Confirm(fmt.Sprintf("Generate draft salaries for %d-%02d?", year, month))
		if err != nil {
			return err
		}
		if ok {
			res, err := v.stores.SalaryConfig.Generate(ctx, store.SalaryGenerateRequest{Year: year, Month: month})
			if err != nil {
				return err
			}
			v.printf("%s.\n", res.Message)
			for _, e := range res.Errors {
				v.hint(e)
			}
			if list, err = v.stores.Salaries.List(ctx, nil); err != nil {
				return err
			}
		}
	} else {
		v.hint("Run `payrollctl salary generate` to create drafts for a month.")
	}

	var unpaid []store.SalaryRecord
	for _, r := range list {
		if r.Status != "paid" {
			unpaid = append(unpaid, r)
		}
	}
	v.table(salaryHeaders, salaryRows(unpaid))
	return nil
}

func (v *Views) attendanceRecord(ctx context.Context, _ router.Route) error {
	if _, err := v.stores.Attendance.Statuses(ctx); err != nil {
		return err
	}
	list, err := v.stores.Attendance.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		rows = append(rows, []string{
			a.Date,
			strconv.Itoa(a.EmployeeID),
			v.stores.Attendance.StatusName(a.StatusID),
			strconv.FormatFloat(a.WorkHours, 'f', 1, 64),
			optional(a.Remarks),
		})
	}
	v.table([]string{"Date", "Employee", "Status", "Hours", "Remarks"}, rows)
	return nil
}

func (v *Views) attendanceStatistics(ctx context.Context, _ router.Route) error {
	if _, err := v.stores.Attendance.Statuses(ctx); err != nil {
		return err
	}
	list, err := v.stores.Attendance.List(ctx, nil)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, a := range list {
		counts[v.stores.Attendance.StatusName(a.StatusID)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
	}
	v.table([]string{"Status", "Days"}, rows)
	return nil
}

func (v *Views) socialSecurity(ctx context.Context, _ router.Route) error {
	list, err := v.stores.SocialSecurity.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, []string{
			c.Name,
			percent(c.PensionRate),
			percent(c.MedicalRate),
			percent(c.UnemploymentRate),
			percent(c.InjuryRate),
			percent(c.MaternityRate),
			percent(c.HousingFundRate),
			yesNo(c.IsDefault),
		})
	}
	v.table([]string{"Name", "Pension", "Medical", "Unemployment", "Injury", "Maternity", "Housing fund", "Default"}, rows)
	return nil
}

func (v *Views) systemParameters(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Parameters.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{p.Key, p.Value, optional(p.Description)})
	}
	v.table([]string{"Key", "Value", "Description"}, rows)
	return nil
}

func (v *Views) users(ctx context.Context, _ router.Route) error {
	list, err := v.stores.Users.List(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{strconv.Itoa(u.ID), u.Username, u.Role, optional(u.Email), yesNo(u.IsActive)})
	}
	v.table([]string{"ID", "Username", "Role", "Email", "Active"}, rows)
	return nil
}

func (v *Views) userProfile(ctx context.Context, _ router.Route) error {
	p, err := v.stores.Auth.Me(ctx)
	if err != nil {
		return err
	}
	employee := "-"
	if p.EmployeeID != nil {
		employee = strconv.Itoa(*p.EmployeeID)
	}
	v.fields(
		[2]string{"Username", p.DisplayName()},
		[2]string{"Role", roleLabel(p.Role)},
		[2]string{"Employee ID", employee},
		[2]string{"Active", yesNo(p.IsActive)},
		[2]string{"Last login", optional(p.LastLogin)},
	)
	return nil
}

func (v *Views) notFound(_ context.Context, r router.Route) error {
	v.printf("404: nothing lives at %s\n", r.Path)
	v.hint("Run `payrollctl routes` to list the available pages.")
	return nil
}

// roleLabel keeps the profile role readable when it is missing.
func roleLabel(r session.Role) string {
	if r == "" {
		return "none"
	}
	return string(r)
}
