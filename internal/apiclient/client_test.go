package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al-bashkir/payroll-console/internal/notice"
	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/storage"
)

const loginPath = "/api/v1/auth/login"

func issue(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString([]byte("client-test-signing-key"))
	require.NoError(t, err)
	return raw
}

type fakeRedirector struct {
	mu        sync.Mutex
	current   string
	redirects []string
}

func (f *fakeRedirector) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeRedirector) Redirect(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = path
	f.redirects = append(f.redirects, path)
}

func (f *fakeRedirector) Redirects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.redirects...)
}

// fakeAPI is a minimal payroll backend.
type fakeAPI struct {
	t *testing.T

	mu         sync.Mutex
	validToken string // bearer accepted by /api/v1/employees/
	nextToken  string // issued by the login endpoint
	loginCode  int    // non-zero forces a login failure
	loginGate  chan struct{}
	loginCalls int32
	seenAuth   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case loginPath:
		atomic.AddInt32(&f.loginCalls, 1)
		if f.loginGate != nil {
			<-f.loginGate
		}
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "password", r.PostForm.Get("grant_type"))
		assert.Empty(f.t, r.Header.Get("Authorization"))

		f.mu.Lock()
		code, tok := f.loginCode, f.nextToken
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"token_type":   "bearer",
		})

	case "/api/v1/employees/":
		auth := r.Header.Get("Authorization")
		f.mu.Lock()
		f.seenAuth = append(f.seenAuth, auth)
		valid := f.validToken
		f.mu.Unlock()
		if auth != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"name":"Zhang San"}]`))

	case "/api/v1/forbidden":
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"forbidden"}`))

	case "/api/v1/garbage":
		_, _ = w.Write([]byte(`not json`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) setValid(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validToken = tok
}

func (f *fakeAPI) auths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seenAuth...)
}

type employee struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type harness struct {
	api      *fakeAPI
	server   *httptest.Server
	store    storage.Store
	session  *session.Manager
	notices  *notice.Recorder
	redirect *fakeRedirector
	client   *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, storage.NewMemory(), 5*time.Second)
}

func newHarnessWith(t *testing.T, store storage.Store, recoveryTimeout time.Duration) *harness {
	t.Helper()

	h := &harness{
		api:      &fakeAPI{t: t},
		store:    store,
		notices:  &notice.Recorder{},
		redirect: &fakeRedirector{current: "/employee/list"},
	}
	h.server = httptest.NewServer(h.api)
	t.Cleanup(h.server.Close)
	h.session = session.NewManager(h.store)

	c, err := New(Options{
		BaseURL:         h.server.URL,
		LoginPath:       loginPath,
		Timeout:         5 * time.Second,
		Session:         h.session,
		Notifier:        h.notices,
		Redirector:      h.redirect,
		LoginRoute:      "/login",
		RecoveryTimeout: recoveryTimeout,
	})
	require.NoError(t, err)
	h.client = c
	return h
}

func (h *harness) signIn(t *testing.T, tok string, remember bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.session.SetToken(ctx, tok))
	require.NoError(t, h.session.SetProfile(ctx, session.Profile{ID: 1, Username: "admin", Role: session.RoleAdmin}))
	if remember {
		require.NoError(t, h.session.Remember(ctx, "admin", "admin123"))
	}
}

func TestFreshTokenIsAttached(t *testing.T) {
	h := newHarness(t)
	tok := issue(t, "admin", 10*time.Minute)
	h.api.setValid(tok)
	h.signIn(t, tok, true)

	got, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Zhang San", got[0].Name)

	assert.Equal(t, []string{"Bearer " + tok}, h.api.auths())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.api.loginCalls))
	assert.False(t, h.client.Coordinator().Recovering())
	assert.Zero(t, h.notices.Len())
}

func TestExpiringTokenIsHeldAndReplayed(t *testing.T) {
	h := newHarness(t)
	stale := issue(t, "admin", 2*time.Minute)
	fresh := issue(t, "admin", time.Hour)
	h.api.nextToken = fresh
	h.api.setValid(fresh)
	h.signIn(t, stale, true)

	got, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// The stale token never reached the API.
	assert.Equal(t, []string{"Bearer " + fresh}, h.api.auths())
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.api.loginCalls))
	assert.Equal(t, fresh, h.session.Token())

	h.client.Wait()
	assert.Equal(t, 1, h.notices.Count(notice.LevelSuccess))
	assert.Equal(t, 0, h.notices.Count(notice.LevelError))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.client.Metrics().Recoveries.WithLabelValues("success")))
}

func TestConcurrentExpiredCallsShareOneRecovery(t *testing.T) {
	h := newHarness(t)
	fresh := issue(t, "admin", time.Hour)
	h.api.nextToken = fresh
	h.api.setValid(fresh)
	h.api.loginGate = make(chan struct{})
	h.signIn(t, issue(t, "admin", time.Minute), true)

	const callers = 2
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return h.client.queue.Len() == callers
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.client.Coordinator().Recovering())

	close(h.api.loginGate)
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&h.api.loginCalls))
	h.client.Wait()
	assert.False(t, h.client.Coordinator().Recovering())
	assert.Equal(t, 1, h.notices.Count(notice.LevelSuccess))
}

func TestUnauthorizedResponseTriggersRecovery(t *testing.T) {
	h := newHarness(t)
	revoked := issue(t, "admin", time.Hour)
	fresh := issue(t, "admin", 2*time.Hour)
	h.api.nextToken = fresh
	h.api.setValid(fresh)
	h.signIn(t, revoked, true)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer " + revoked, "Bearer " + fresh}, h.api.auths())
	h.client.Wait()
	assert.Equal(t, 0, h.notices.Count(notice.LevelError))
}

func TestFailedRecoveryRejectsEveryHeldCall(t *testing.T) {
	h := newHarness(t)
	h.api.loginCode = http.StatusUnauthorized
	h.api.loginGate = make(chan struct{})
	h.signIn(t, issue(t, "admin", time.Minute), true)

	const callers = 3
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return h.client.queue.Len() == callers
	}, 2*time.Second, 5*time.Millisecond)
	close(h.api.loginGate)

	for i := 0; i < callers; i++ {
		err := <-errs
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionExpired)
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, KindSession, apiErr.Kind)
	}
	h.client.Wait()

	// Token and profile are gone, the credentials stay.
	assert.Empty(t, h.session.Token())
	_, hasProfile := h.session.Profile()
	assert.False(t, hasProfile)
	user, pass, ok := h.session.Credentials()
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "admin123", pass)
	for _, key := range []string{storage.KeyUsername, storage.KeyPassword} {
		_, ok, _ := h.store.Get(context.Background(), key)
		assert.True(t, ok, key)
	}

	// One warning, no per-call error notices, one redirect.
	assert.Equal(t, 1, h.notices.Count(notice.LevelWarning))
	assert.Equal(t, 0, h.notices.Count(notice.LevelError))
	assert.Equal(t, []string{"/login"}, h.redirect.Redirects())
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.api.loginCalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.client.Metrics().Recoveries.WithLabelValues("failure")))
}

func TestRecoveryWithoutCredentials(t *testing.T) {
	h := newHarness(t)
	h.redirect.current = "/login"
	h.signIn(t, issue(t, "admin", -time.Minute), false)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.ErrorIs(t, err, ErrSessionExpired)

	h.client.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.api.loginCalls))
	assert.Empty(t, h.redirect.Redirects(), "already on the login route")
	assert.Equal(t, 1, h.notices.Count(notice.LevelWarning))
}

func TestReplayedUnauthorizedIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.api.nextToken = issue(t, "admin", time.Hour)
	h.api.setValid("never-matches")
	h.signIn(t, issue(t, "admin", time.Hour), true)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "Could not validate credentials", err.Error())

	h.client.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.api.loginCalls))
	assert.Len(t, h.api.auths(), 2)
	assert.Equal(t, 1, h.notices.Count(notice.LevelError))
}

func TestForbiddenCarriesServerDetail(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, issue(t, "admin", time.Hour), true)

	err := h.client.Do(context.Background(), Request{Path: "/api/v1/forbidden"}, nil)
	require.Error(t, err)
	assert.Equal(t, "forbidden", err.Error())
	assert.True(t, IsStatus(err, http.StatusForbidden))

	notices := h.notices.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, notice.LevelError, notices[0].Level)
	assert.Equal(t, "access denied", notices[0].Message)
}

func TestNotFoundFallsBackToClassification(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, issue(t, "admin", time.Hour), true)

	err := Delete(context.Background(), h.client, "/api/v1/nowhere")
	require.Error(t, err)
	assert.Equal(t, "resource not found", err.Error())
	assert.Equal(t, 1, h.notices.Count(notice.LevelError))
}

func TestUnreachableServer(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, issue(t, "admin", time.Hour), true)
	h.server.Close()

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Equal(t, "server unreachable", err.Error())
	assert.Equal(t, 1, h.notices.Count(notice.LevelError))
}

func TestUndecodableBodyIsDecodeKind(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, issue(t, "admin", time.Hour), true)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/garbage", nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindDecode, apiErr.Kind)
	assert.Equal(t, 1, h.notices.Count(notice.LevelError))
}

func TestPreDispatchFailureUsesRawMessage(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, issue(t, "admin", time.Hour), true)

	err := h.client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/v1/employees/", Body: make(chan int)}, nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindRequest, apiErr.Kind)
	notices := h.notices.Notices()
	require.Len(t, notices, 1)
	assert.True(t, strings.HasPrefix(notices[0].Message, "failed to encode request body"))
}

func TestLoginUnauthorizedNeverRecovers(t *testing.T) {
	h := newHarness(t)
	h.api.loginCode = http.StatusUnauthorized

	_, err := h.client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", err.Error())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	assert.False(t, h.client.Coordinator().Recovering())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.client.Metrics().Recoveries.WithLabelValues("failure")))
	notices := h.notices.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "login failed", notices[0].Message)
}

func TestLoginReturnsEmbeddedProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","user":{"id":3,"username":"mgr01","role":"manager","is_active":true}}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Session: session.NewManager(storage.NewMemory())})
	require.NoError(t, err)

	res, err := c.Login(context.Background(), "mgr01", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	require.NotNil(t, res.Profile)
	assert.Equal(t, session.RoleManager, res.Profile.Role)
	assert.Equal(t, "mgr01", res.Profile.Username)
}

func TestCancelledCallerStillSettlesOnce(t *testing.T) {
	h := newHarness(t)
	h.api.loginCode = http.StatusUnauthorized
	h.api.loginGate = make(chan struct{})
	h.signIn(t, issue(t, "admin", time.Minute), true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Get[[]employee](ctx, h.client, "/api/v1/employees/", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return h.client.queue.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(h.api.loginGate)
	h.client.Wait()
	assert.Equal(t, 0, h.client.queue.Len())
	assert.Equal(t, 0, h.notices.Count(notice.LevelError))
}

// strictStore fails writes whose context is already done, as a network
// backed store would.
type strictStore struct {
	*storage.Memory
}

func (s strictStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.Set(ctx, key, value)
}

func (s strictStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.Delete(ctx, keys...)
}

func TestTimedOutRecoveryClearsPersistedToken(t *testing.T) {
	h := newHarnessWith(t, strictStore{storage.NewMemory()}, 50*time.Millisecond)
	h.api.loginGate = make(chan struct{})
	t.Cleanup(func() { close(h.api.loginGate) })

	stale := issue(t, "admin", -time.Minute)
	h.signIn(t, stale, true)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	h.client.Wait()

	ctx := context.Background()
	_, ok, err := h.store.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok, "token must be removed from storage")
	_, ok, err = h.store.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok, "profile must be removed from storage")
	_, ok, err = h.store.Get(ctx, storage.KeyUsername)
	require.NoError(t, err)
	assert.True(t, ok, "credentials are kept")

	reloaded := session.NewManager(h.store)
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.Authenticated())
}

func TestRecoveredTokenIsPersisted(t *testing.T) {
	h := newHarnessWith(t, strictStore{storage.NewMemory()}, 5*time.Second)
	fresh := issue(t, "admin", 30*time.Minute)
	h.api.nextToken = fresh
	h.api.setValid(fresh)
	h.signIn(t, issue(t, "admin", -time.Minute), true)

	_, err := Get[[]employee](context.Background(), h.client, "/api/v1/employees/", nil)
	require.NoError(t, err)
	h.client.Wait()

	got, ok, err := h.store.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh, got)
}
