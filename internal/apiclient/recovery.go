package apiclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/al-bashkir/payroll-console/internal/notice"
	"github.com/al-bashkir/payroll-console/internal/session"
)

// Authenticator exchanges credentials for a fresh access token.
type Authenticator interface {
	Reauthenticate(ctx context.Context, username, password string) (string, error)
}

// Redirector moves the user to another route after a forced logout.
type Redirector interface {
	Current() string
	Redirect(path string)
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Queue         *Queue
	Session       *session.Manager
	Authenticator Authenticator
	Notifier      notice.Notifier
	Redirector    Redirector
	LoginRoute    string
	Timeout       time.Duration
	Metrics       *Metrics
}

// Coordinator runs at most one re-authentication attempt at a time and
// settles every call parked while it runs.
type Coordinator struct {
	// mu guards recovering and makes "enqueue and maybe start" atomic with
	// "drain and go idle".
	mu         sync.Mutex
	recovering bool

	queue      *Queue
	session    *session.Manager
	auth       Authenticator
	notifier   notice.Notifier
	redirector Redirector
	loginRoute string
	timeout    time.Duration
	metrics    *Metrics
	wg         sync.WaitGroup
}

// persistTimeout bounds writes to the session store after an attempt ends.
// They run on their own context because the attempt's may already be done.
const persistTimeout = 5 * time.Second

// NewCoordinator returns an idle Coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = "/login"
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Coordinator{
		queue:      opts.Queue,
		session:    opts.Session,
		auth:       opts.Authenticator,
		notifier:   opts.Notifier,
		redirector: opts.Redirector,
		loginRoute: opts.LoginRoute,
		timeout:    opts.Timeout,
		metrics:    opts.Metrics,
	}
}

// Recovering reports whether an attempt is in flight.
func (c *Coordinator) Recovering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recovering
}

// Park queues p and starts an attempt unless one is already running.
func (c *Coordinator) Park(p *Pending) {
	c.mu.Lock()
	c.queue.Enqueue(p)
	c.metrics.Pending.Set(float64(c.queue.Len()))
	start := !c.recovering
	if start {
		c.recovering = true
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if start {
		go c.recover()
	}
}

// Wait blocks until the current attempt and its replays have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
	c.queue.Wait()
}

func (c *Coordinator) recover() {
	defer c.wg.Done()

	// The attempt is shared by every parked caller, so it is not bound to
	// any one caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	slog.Info("session recovery started", "queued", c.queue.Len())

	username, password, ok := c.session.Credentials()
	if !ok {
		c.fail(ErrNoCredentials)
		return
	}

	tok, err := c.auth.Reauthenticate(ctx, username, password)
	if err != nil {
		c.fail(err)
		return
	}

	pctx, pcancel := context.WithTimeout(context.Background(), persistTimeout)
	err = c.session.SetToken(pctx, tok)
	pcancel()
	if err != nil {
		slog.Warn("failed to persist renewed token", "error", err)
	}

	c.mu.Lock()
	n := c.queue.DrainSuccess(tok)
	c.recovering = false
	c.metrics.Pending.Set(0)
	c.mu.Unlock()

	c.metrics.Recoveries.WithLabelValues("success").Inc()
	slog.Info("session recovered", "replayed", n)
	notice.Success(c.notifier, "session renewed")
}

func (c *Coordinator) fail(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.session.Clear(ctx); err != nil {
		slog.Warn("failed to clear session", "error", err)
	}

	c.mu.Lock()
	n := c.queue.DrainFailure(sessionError(cause))
	c.recovering = false
	c.metrics.Pending.Set(0)
	c.mu.Unlock()

	c.metrics.Recoveries.WithLabelValues("failure").Inc()
	slog.Warn("session recovery failed", "error", cause, "rejected", n)
	notice.Warning(c.notifier, msgSessionExpired)

	if c.redirector != nil && c.redirector.Current() != c.loginRoute {
		c.redirector.Redirect(c.loginRoute)
	}
}
