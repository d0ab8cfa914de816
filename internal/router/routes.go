// Package router resolves console routes and decides, before any view
// renders, whether the current session may open them.
package router

import (
	"path"
	"strings"

	"github.com/al-bashkir/payroll-console/internal/session"
)

// Route is one navigable page of the console.
type Route struct {
	Path         string
	Name         string
	Title        string
	RequiresAuth bool
	// AllowedRoles restricts an authenticated route. Empty means any role.
	AllowedRoles []session.Role
	// Redirect, when set, sends the navigation elsewhere without rendering.
	Redirect string
}

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	ProfilePath   = "/user/profile"
	NotFoundName  = "not-found"
)

var (
	staff      = []session.Role{session.RoleAdmin, session.RoleHR, session.RoleManager}
	payroll    = []session.Role{session.RoleAdmin, session.RoleHR}
	adminsOnly = []session.Role{session.RoleAdmin}
)

// DefaultRoutes returns the console's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: LoginPath, Name: "login", Title: "Sign in"},
		{Path: "/register", Name: "register", Title: "Register"},
		{Path: "/", Name: "root", Redirect: DashboardPath},

		{Path: DashboardPath, Name: "dashboard", Title: "Dashboard", RequiresAuth: true},

		{Path: "/employee", Name: "employee", Redirect: "/employee/list"},
		{Path: "/employee/list", Name: "employee-list", Title: "Employees", RequiresAuth: true, AllowedRoles: staff},
		{Path: "/employee/add", Name: "employee-add", Title: "Add employee", RequiresAuth: true, AllowedRoles: payroll},

		{Path: "/department/list", Name: "department-list", Title: "Departments", RequiresAuth: true, AllowedRoles: staff},
		{Path: "/position/list", Name: "position-list", Title: "Positions", RequiresAuth: true, AllowedRoles: staff},

		{Path: "/salary", Name: "salary", Redirect: "/salary/list"},
		{Path: "/salary/list", Name: "salary-list", Title: "Salary records", RequiresAuth: true, AllowedRoles: staff},
		{Path: "/salary/pay", Name: "salary-pay", Title: "Salary payment", RequiresAuth: true, AllowedRoles: payroll},

		{Path: "/attendance", Name: "attendance", Redirect: "/attendance/record"},
		{Path: "/attendance/record", Name: "attendance-record", Title: "Attendance records", RequiresAuth: true},
		{Path: "/attendance/statistics", Name: "attendance-statistics", Title: "Attendance statistics", RequiresAuth: true, AllowedRoles: staff},

		{Path: "/social-security/configs", Name: "social-security-configs", Title: "Social security", RequiresAuth: true, AllowedRoles: payroll},
		{Path: "/system/parameters", Name: "system-parameters", Title: "System parameters", RequiresAuth: true, AllowedRoles: adminsOnly},
		{Path: "/users", Name: "users", Title: "Users", RequiresAuth: true, AllowedRoles: adminsOnly},

		{Path: "/user", Name: "user", Redirect: ProfilePath},
		{Path: ProfilePath, Name: "user-profile", Title: "My profile", RequiresAuth: true},
	}
}

// Table looks routes up by path.
type Table struct {
	routes []Route
	byPath map[string]Route
}

// NewTable indexes routes. A later route with the same path wins.
func NewTable(routes []Route) *Table {
	t := &Table{routes: routes, byPath: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.byPath[r.Path] = r
	}
	return t
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Resolve returns the route for p, or the not-found route.
func (t *Table) Resolve(p string) Route {
	if r, ok := t.byPath[Normalize(p)]; ok {
		return r
	}
	return Route{Path: Normalize(p), Name: NotFoundName, Title: "Not found"}
}

// Normalize cleans a user-typed path: query and fragment are dropped, a
// leading slash is added and trailing slashes are removed.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
