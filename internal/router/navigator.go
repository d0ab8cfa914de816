package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/al-bashkir/payroll-console/internal/logsanitize"
)

// maxHops bounds a redirect chain.
const maxHops = 8

// ErrRedirectLoop is returned when a navigation keeps redirecting.
var ErrRedirectLoop = errors.New("too many redirects")

// Result describes where a navigation ended.
type Result struct {
	Requested string
	Route     Route
	Title     string
	// Redirected is set when the guard sent the user somewhere other than
	// the requested route.
	Redirected bool
	Reason     string
}

// Navigator tracks the current route and runs the guard on every move.
type Navigator struct {
	table    *Table
	guard    *Guard
	session  SessionView
	appTitle string

	mu      sync.Mutex
	current string
	title   string
}

// NewNavigator returns a Navigator positioned nowhere.
func NewNavigator(table *Table, guard *Guard, s SessionView, appTitle string) *Navigator {
	return &Navigator{
		table:    table,
		guard:    guard,
		session:  s,
		appTitle: appTitle,
		title:    appTitle,
	}
}

// Navigate opens p, following route and guard redirects.
func (n *Navigator) Navigate(p string) (Result, error) {
	res := Result{Requested: Normalize(p)}
	target := res.Requested

	for hop := 0; hop < maxHops; hop++ {
		r := n.table.Resolve(target)
		if r.Redirect != "" {
			target = r.Redirect
			continue
		}

		d := n.guard.Check(r, n.session)
		if !d.Allow {
			slog.Debug("navigation redirected",
				"from", logsanitize.Sanitize(target),
				"to", d.Redirect,
				"reason", d.Reason,
			)
			res.Redirected = true
			res.Reason = d.Reason
			target = d.Redirect
			continue
		}

		res.Route = r
		res.Title = Title(r, n.appTitle)
		n.mu.Lock()
		n.current = r.Path
		n.title = res.Title
		n.mu.Unlock()
		return res, nil
	}
	return res, fmt.Errorf("navigate %s: %w", res.Requested, ErrRedirectLoop)
}

// Current returns the path of the current route.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Title returns the title of the current route.
func (n *Navigator) Title() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.title
}

// Redirect moves to p after a forced logout.
func (n *Navigator) Redirect(p string) {
	if _, err := n.Navigate(p); err != nil {
		slog.Warn("redirect failed", "path", p, "error", err)
	}
}

// Table returns the route table.
func (n *Navigator) Table() *Table { return n.table }
