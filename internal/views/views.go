// Package views renders console routes to the terminal.
package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/al-bashkir/payroll-console/internal/router"
	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(18)
)

// ErrNotInteractive is returned by views that need a terminal.
var ErrNotInteractive = errors.New("this view needs an interactive terminal")

// Options configures Views.
type Options struct {
	Out      io.Writer
	Stores   *store.Stores
	Session  *session.Manager
	Prompter Prompter
	// Interactive enables prompts. Without it, form views print a hint.
	Interactive bool
	// Remember is the default of the login form's remember-me choice.
	Remember bool
}

// Views renders one route at a time.
type Views struct {
	out         io.Writer
	stores      *store.Stores
	session     *session.Manager
	prompter    Prompter
	interactive bool
	remember    bool
	renderers   map[string]func(context.Context, router.Route) error
}

// New returns Views writing to opts.Out.
func New(opts Options) *Views {
	if opts.Prompter == nil {
		opts.Prompter = HuhPrompter{}
	}
	v := &Views{
		out:         opts.Out,
		stores:      opts.Stores,
		session:     opts.Session,
		prompter:    opts.Prompter,
		interactive: opts.Interactive,
		remember:    opts.Remember,
	}
	v.renderers = map[string]func(context.Context, router.Route) error{
		"login":                   v.login,
		"register":                v.register,
		"dashboard":               v.dashboard,
		"employee-list":           v.employeeList,
		"employee-add":            v.employeeAdd,
		"department-list":         v.departmentList,
		"position-list":           v.positionList,
		"salary-list":             v.salaryList,
		"salary-pay":              v.salaryPay,
		"attendance-record":       v.attendanceRecord,
		"attendance-statistics":   v.attendanceStatistics,
		"social-security-configs": v.socialSecurity,
		"system-parameters":       v.systemParameters,
		"users":                   v.users,
		"user-profile":            v.userProfile,
		router.NotFoundName:       v.notFound,
	}
	return v
}

// Render draws r, loading whatever data it needs.
func (v *Views) Render(ctx context.Context, r router.Route, title string) error {
	fn, ok := v.renderers[r.Name]
	if !ok {
		fn = v.notFound
	}
	v.printf("%s\n", titleStyle.Render(title))
	return fn(ctx, r)
}

func (v *Views) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(v.out, format, args...)
}

func (v *Views) hint(msg string) {
	v.printf("%s\n", mutedStyle.Render(msg))
}

func (v *Views) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		v.hint("No records.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	v.printf("%s\n", t.Render())
}

func (v *Views) fields(pairs ...[2]string) {
	for _, p := range pairs {
		v.printf("%s%s\n", keyStyle.Render(p[0]), p[1])
	}
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optional(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
