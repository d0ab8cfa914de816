package router

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/al-bashkir/payroll-console/internal/session"
)

const (
	actNavigate = "navigate"
	anyRole     = "*"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && r.obj == p.obj && r.act == p.act
`

// SessionView is the part of the session the guard reads.
type SessionView interface {
	Token() string
	Role() (session.Role, bool)
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
}

// Guard decides whether a route may be opened.
type Guard struct {
	enforcer *casbin.Enforcer
}

// NewGuard loads the role restrictions of routes into an in-memory policy.
func NewGuard(routes []Route) (*Guard, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse route policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create route enforcer: %w", err)
	}

	for _, r := range routes {
		if !r.RequiresAuth {
			continue
		}
		subjects := []string{anyRole}
		if len(r.AllowedRoles) > 0 {
			subjects = subjects[:0]
			for _, role := range r.AllowedRoles {
				subjects = append(subjects, string(role))
			}
		}
		for _, sub := range subjects {
			if _, err := e.AddPolicy(sub, r.Path, actNavigate); err != nil {
				return nil, fmt.Errorf("failed to add policy for %s: %w", r.Path, err)
			}
		}
	}
	return &Guard{enforcer: e}, nil
}

// Check runs before every navigation.
func (g *Guard) Check(r Route, s SessionView) Decision {
	if !r.RequiresAuth {
		return Decision{Allow: true}
	}
	if s == nil || s.Token() == "" {
		return Decision{Redirect: LoginPath, Reason: "not signed in"}
	}

	role, ok := s.Role()
	if !ok || !role.Known() {
		return Decision{Redirect: LoginPath, Reason: "unknown role"}
	}

	if !g.allowed(role, r.Path) {
		target := DashboardPath
		if role.LowestPrivilege() {
			target = ProfilePath
		}
		return Decision{Redirect: target, Reason: fmt.Sprintf("role %s may not open %s", role, r.Path)}
	}
	return Decision{Allow: true}
}

func (g *Guard) allowed(role session.Role, path string) bool {
	ok, err := g.enforcer.Enforce(string(role), path, actNavigate)
	if err != nil {
		slog.Error("route policy evaluation failed", "path", path, "role", string(role), "error", err)
		return false
	}
	return ok
}

// Title returns the window title for r.
func Title(r Route, appTitle string) string {
	if r.Title == "" {
		return appTitle
	}
	return r.Title + " - " + appTitle
}
