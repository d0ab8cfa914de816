package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al-bashkir/payroll-console/internal/apiclient"
	"github.com/al-bashkir/payroll-console/internal/config"
	"github.com/al-bashkir/payroll-console/internal/mockapi"
	"github.com/al-bashkir/payroll-console/internal/notice"
)

type harness struct {
	app     *App
	api     *mockapi.Server
	out     *bytes.Buffer
	notices *notice.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	api, err := mockapi.NewServer(cfg.Mock)
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	cfg.API.BaseURL = srv.URL
	cfg.Storage.Driver = "memory"

	h := &harness{api: api, out: &bytes.Buffer{}, notices: &notice.Recorder{}}
	h.app, err = New(context.Background(), cfg, Options{Out: h.out, Notifier: h.notices})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.app.Close() })
	return h
}

func (h *harness) login(t *testing.T, username, password string, remember bool) {
	t.Helper()
	_, err := h.app.Stores.Auth.Login(context.Background(), username, password, remember)
	require.NoError(t, err)
}

func TestNewRejectsBadStorage(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "sqlite"

	_, err := New(context.Background(), cfg, Options{Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open state storage")
}

func TestOpenWithoutSessionLandsOnLogin(t *testing.T) {
	h := newHarness(t)

	res, err := h.app.Open(context.Background(), "/salary/list")
	require.NoError(t, err)

	assert.True(t, res.Redirected)
	assert.Equal(t, "login", res.Route.Name)
	assert.Equal(t, "Sign in - Payroll Management System", res.Title)
	assert.Equal(t, 1, h.notices.Count(notice.LevelInfo))
	assert.Contains(t, h.out.String(), "Sign in")
}

func TestOpenRendersAllowedRoute(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123", false)

	res, err := h.app.Open(context.Background(), "/employee")
	require.NoError(t, err)

	assert.False(t, res.Redirected)
	assert.Equal(t, "employee-list", res.Route.Name)
	assert.Equal(t, "/employee/list", h.app.Navigator.Current())
	assert.Contains(t, h.out.String(), "Zhang Wei")
	assert.Zero(t, h.notices.Len())
}

func TestOpenRoleRedirect(t *testing.T) {
	h := newHarness(t)
	h.login(t, "employee", "employee123", false)

	res, err := h.app.Open(context.Background(), "/system/parameters")
	require.NoError(t, err)

	assert.True(t, res.Redirected)
	assert.Equal(t, "user-profile", res.Route.Name)
}

func TestOpenUnknownPath(t *testing.T) {
	h := newHarness(t)

	res, err := h.app.Open(context.Background(), "/payslips")
	require.NoError(t, err)

	assert.False(t, res.Redirected)
	assert.Equal(t, "not-found", res.Route.Name)
}

func TestOpenRecoversRevokedToken(t *testing.T) {
	h := newHarness(t)
	h.login(t, "hr", "hr123456", true)
	before := h.app.Session.Token()

	h.api.RevokeTokens()

	res, err := h.app.Open(context.Background(), "/department/list")
	require.NoError(t, err)

	assert.False(t, res.Redirected)
	assert.NotEqual(t, before, h.app.Session.Token())
	assert.Contains(t, h.out.String(), "Engineering")
}

func TestOpenSessionExpiredDuringRender(t *testing.T) {
	h := newHarness(t)
	h.login(t, "hr", "hr123456", false)

	h.api.RevokeTokens()

	res, err := h.app.Open(context.Background(), "/department/list")
	require.ErrorIs(t, err, apiclient.ErrSessionExpired)

	assert.True(t, res.Redirected)
	assert.Equal(t, "session expired", res.Reason)
	assert.Equal(t, "login", res.Route.Name)
	assert.False(t, h.app.Session.Authenticated())
}

func TestSharedOutputCarriesNoticesAndPages(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	api, err := mockapi.NewServer(cfg.Mock)
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	cfg.API.BaseURL = srv.URL
	cfg.Storage.Driver = "memory"

	out := &bytes.Buffer{}
	a, err := New(context.Background(), cfg, Options{Out: out})
	require.NoError(t, err)

	_, err = a.Stores.Auth.Login(context.Background(), "hr", "hr123456", true)
	require.NoError(t, err)
	api.RevokeTokens()

	_, err = a.Open(context.Background(), "/department/list")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Contains(t, out.String(), "session renewed")
	assert.Contains(t, out.String(), "Engineering")
}

func TestLockedWriterSerializesWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &lockedWriter{w: buf}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20*50, strings.Count(buf.String(), "line\n"))
}
