package views

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/al-bashkir/payroll-console/internal/store"
)

// LoginInput is what the sign-in form collects.
type LoginInput struct {
	Username string
	Password string
	Remember bool
}

// Prompter asks the user for form input.
type Prompter interface {
	Login(username string, remember bool) (LoginInput, error)
	NewEmployee(departments []store.Department, positions []store.Position) (store.Employee, error)
	Register() (store.Registration, error)
	Confirm(message string) (bool, error)
}

// HuhPrompter runs forms in the terminal.
type HuhPrompter struct{}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func (HuhPrompter) Login(username string, remember bool) (LoginInput, error) {
	in := LoginInput{Username: username, Remember: remember}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Username").
			Value(&in.Username).
			Validate(required("username")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&in.Password).
			Validate(required("password")),
		huh.NewConfirm().
			Title("Remember password on this machine?").
			Description("Stored obfuscated, not encrypted. Used to renew an expired session.").
			Value(&in.Remember),
	))
	if err := form.Run(); err != nil {
		return LoginInput{}, fmt.Errorf("prompt failed: %w", err)
	}
	return in, nil
}

func (HuhPrompter) NewEmployee(departments []store.Department, positions []store.Position) (store.Employee, error) {
	var (
		e      store.Employee
		salary string
	)
	e.HireDate = time.Now().Format(time.DateOnly)

	deptOptions := make([]huh.Option[int], 0, len(departments))
	for _, d := range departments {
		deptOptions = append(deptOptions, huh.NewOption(d.Name, d.ID))
	}
	posOptions := make([]huh.Option[int], 0, len(positions))
	for _, p := range positions {
		posOptions = append(posOptions, huh.NewOption(p.DepartmentName+" / "+p.Name, p.ID))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&e.Name).Validate(required("name")),
			huh.NewSelect[int]().Title("Department").Options(deptOptions...).Value(&e.DepartmentID),
			huh.NewSelect[int]().Title("Position").Options(posOptions...).Value(&e.PositionID),
		),
		huh.NewGroup(
			huh.NewInput().Title("Base salary").Value(&salary).Validate(func(s string) error {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					return errors.New("base salary must be a number")
				}
				return nil
			}),
			huh.NewInput().Title("Hire date (YYYY-MM-DD)").Value(&e.HireDate).Validate(func(s string) error {
				if _, err := time.Parse(time.DateOnly, s); err != nil {
					return errors.New("hire date must be YYYY-MM-DD")
				}
				return nil
			}),
			huh.NewInput().Title("Phone").Value(&e.Phone).Validate(required("phone")),
			huh.NewInput().Title("ID card").Value(&e.IDCard).Validate(required("ID card")),
		),
	)
	if err := form.Run(); err != nil {
		return store.Employee{}, fmt.Errorf("prompt failed: %w", err)
	}

	e.BaseSalary, _ = strconv.ParseFloat(salary, 64)
	return e, nil
}

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

func (HuhPrompter) Register() (store.Registration, error) {
	var (
		r       store.Registration
		confirm string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&r.Username).Validate(func(s string) error {
				if n := len(s); n < 3 || n > 50 {
					return errors.New("username must be 3 to 50 characters")
				}
				return nil
			}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&r.Password).
				Validate(func(s string) error {
					if len(s) < 6 {
						return errors.New("password must be at least 6 characters")
					}
					return nil
				}),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm).
				Validate(func(s string) error {
					if s != r.Password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().Title("Real name").Value(&r.RealName).Validate(required("real name")),
			huh.NewInput().Title("Mobile phone").Value(&r.Phone).Validate(func(s string) error {
				if !mobilePattern.MatchString(s) {
					return errors.New("enter an 11-digit mobile number")
				}
				return nil
			}),
			huh.NewInput().Title("Email").Description("Optional.").Value(&r.Email),
			huh.NewInput().Title("ID card").Description("Optional.").Value(&r.IDCard),
		),
	)
	if err := form.Run(); err != nil {
		return store.Registration{}, fmt.Errorf("prompt failed: %w", err)
	}
	return r, nil
}

func (HuhPrompter) Confirm(message string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(message).Value(&confirmed)))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}
