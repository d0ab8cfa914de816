// Package app wires the console components together.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/al-bashkir/payroll-console/internal/apiclient"
	"github.com/al-bashkir/payroll-console/internal/config"
	"github.com/al-bashkir/payroll-console/internal/mockapi"
	"github.com/al-bashkir/payroll-console/internal/notice"
	"github.com/al-bashkir/payroll-console/internal/router"
	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/storage"
	"github.com/al-bashkir/payroll-console/internal/store"
	"github.com/al-bashkir/payroll-console/internal/token"
	"github.com/al-bashkir/payroll-console/internal/views"
)

// Options holds the process-level pieces the configuration does not cover.
type Options struct {
	Out io.Writer
	// Err receives notices. When unset, notices share Out and writes to it
	// are serialized.
	Err         io.Writer
	Interactive bool
	Prompter    views.Prompter
	Notifier    notice.Notifier
	Registerer  prometheus.Registerer
}

// lockedWriter lets the views and the notifier share one writer. Notices can
// arrive from the recovery goroutine while a view is printing.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// App is one console session: persisted state, the API client, the route
// guard and the views.
type App struct {
	state     storage.Store
	Session   *session.Manager
	Navigator *router.Navigator
	Client    *apiclient.Client
	Stores    *store.Stores
	Views     *views.Views
	notifier  notice.Notifier
}

// New creates an App with all components initialized.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		w := &lockedWriter{w: opts.Out}
		opts.Out, opts.Err = w, w
	}
	if opts.Notifier == nil {
		opts.Notifier = notice.NewTerminal(opts.Err)
	}

	state, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open state storage: %w", err)
	}

	sess := session.NewManager(state)
	if err := sess.Load(ctx); err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	slog.Debug("session loaded",
		"driver", cfg.Storage.Driver,
		"authenticated", sess.Authenticated(),
	)

	routes := router.DefaultRoutes()
	guard, err := router.NewGuard(routes)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("failed to initialize route guard: %w", err)
	}
	nav := router.NewNavigator(router.NewTable(routes), guard, sess, cfg.UI.AppTitle)

	client, err := apiclient.New(apiclient.Options{
		BaseURL:         cfg.API.BaseURL,
		LoginPath:       cfg.API.LoginPath,
		Timeout:         time.Duration(cfg.API.Timeout) * time.Second,
		Session:         sess,
		Inspector:       token.NewInspector(time.Duration(cfg.Auth.ExpiryLookahead) * time.Second),
		Notifier:        opts.Notifier,
		Redirector:      nav,
		LoginRoute:      router.LoginPath,
		RecoveryTimeout: time.Duration(cfg.Recovery.Timeout) * time.Second,
		ReplayLimiter:   rate.NewLimiter(rate.Limit(cfg.Recovery.ReplayRate), cfg.Recovery.ReplayBurst),
		Registerer:      opts.Registerer,
	})
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	slog.Debug("API client initialized",
		"base_url", cfg.API.BaseURL,
		"timeout", cfg.API.Timeout,
	)

	stores := store.New(client, sess, cfg.API.ProfilePath)

	return &App{
		state:     state,
		Session:   sess,
		Navigator: nav,
		Client:    client,
		Stores:    stores,
		Views: views.New(views.Options{
			Out:         opts.Out,
			Stores:      stores,
			Session:     sess,
			Prompter:    opts.Prompter,
			Interactive: opts.Interactive,
			Remember:    cfg.Auth.RememberPassword,
		}),
		notifier: opts.Notifier,
	}, nil
}

// Open navigates to p and renders wherever the guard lets the user land.
func (a *App) Open(ctx context.Context, p string) (router.Result, error) {
	res, err := a.Navigator.Navigate(p)
	if err != nil {
		return res, err
	}
	if res.Redirected {
		notice.Info(a.notifier, fmt.Sprintf("%s: showing %s instead", res.Reason, res.Route.Path))
	}

	err = a.Views.Render(ctx, res.Route, res.Title)

	// A failed recovery during rendering moves the navigator to the login
	// route; report that as a redirect too.
	if cur := a.Navigator.Current(); cur != res.Route.Path {
		res.Redirected = true
		res.Reason = "session expired"
		res.Route = a.Navigator.Table().Resolve(cur)
		res.Title = a.Navigator.Title()
	}
	return res, err
}

// Close waits for outstanding replays and releases the state store.
func (a *App) Close() error {
	a.Client.Wait()
	return a.state.Close()
}

// RunMock serves the stub API until SIGINT or SIGTERM.
func RunMock(cfg *config.Config) error {
	srv, err := mockapi.NewServer(cfg.Mock)
	if err != nil {
		return fmt.Errorf("failed to initialize mock API: %w", err)
	}

	slog.Info("starting mock payroll API", "listen", cfg.Mock.Listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mock API failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error stopping mock API", "error", err)
	}

	slog.Info("mock API shutdown complete")
	return nil
}
