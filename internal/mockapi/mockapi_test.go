package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al-bashkir/payroll-console/internal/config"
	"github.com/al-bashkir/payroll-console/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() config.MockConfig {
	return config.MockConfig{
		Listen:     "127.0.0.1:0",
		SigningKey: "mockapi-test-signing-key",
		TokenTTL:   600,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *Server, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"grant_type": {"password"}, "username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, s *Server, username, password string) string {
	t.Helper()
	w := login(t, s, username, password)
	require.Equal(t, http.StatusOK, w.Code, "login %s: %s", username, w.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "decode detail from %q", w.Body.String())
	return body.Detail
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "decode %q", w.Body.String())
	return out
}

func TestNewServerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.SigningKey = "short"
	_, err := NewServer(cfg)
	assert.Error(t, err, "short signing key")

	cfg = testConfig()
	cfg.TokenTTL = 0
	_, err = NewServer(cfg)
	assert.Error(t, err, "zero token TTL")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	health := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", "", nil)

	expectedHeaders := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
	}
	for header, expectedValue := range expectedHeaders {
		assert.Equal(t, expectedValue, w.Header().Get(header), header)
	}
	assert.NotEmpty(t, w.Header().Get(headerRequestID), "generated request id")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))
}

func TestRateLimiting(t *testing.T) {
	r := gin.New()
	r.Use(rateLimitMiddleware(NewIPRateLimiter(1, 5)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	successCount := 0
	rateLimitCount := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		switch w.Code {
		case http.StatusOK:
			successCount++
		case http.StatusTooManyRequests:
			rateLimitCount++
		}
	}

	assert.NotZero(t, rateLimitCount, "some requests should be rate limited")
	assert.NotZero(t, successCount, "some requests should succeed")
}

func TestIPRateLimiterEviction(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	rl.maxSize = 2

	rl.Allow("192.0.2.1")
	rl.Allow("192.0.2.2")
	rl.Allow("192.0.2.3")
	assert.Len(t, rl.limiters, 2)

	rl.evictStale(time.Now().Add(time.Hour))
	assert.Empty(t, rl.limiters)
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	tok := tokenFor(t, s, "hr", "hr123456")

	w := do(t, s, http.MethodGet, "/api/v1/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode[struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}](t, w)
	assert.Equal(t, "hr", me.Username)
	assert.Equal(t, "hr", me.Role)
}

func TestLoginRejections(t *testing.T) {
	s := newTestServer(t)

	w := login(t, s, "admin", "wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, w))

	w = login(t, s, "", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[struct {
		Detail []validationIssue `json:"detail"`
	}](t, w)
	assert.Len(t, body.Detail, 2)
}

func TestAuthorization(t *testing.T) {
	s := newTestServer(t)
	admin := tokenFor(t, s, "admin", "admin123")
	manager := tokenFor(t, s, "manager", "manager123")
	employee := tokenFor(t, s, "employee", "employee123")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		detail string
	}{
		{name: "no token", path: "/api/v1/employees/", status: http.StatusUnauthorized, detail: "Could not validate credentials"},
		{name: "garbage token", path: "/api/v1/employees/", token: "not-a-jwt", status: http.StatusUnauthorized, detail: "Could not validate credentials"},
		{name: "employee on staff list", path: "/api/v1/employees/", token: employee, status: http.StatusForbidden, detail: "Not enough permissions"},
		{name: "employee on parameters", path: "/api/v1/system/parameters", token: employee, status: http.StatusForbidden, detail: "Not enough permissions"},
		{name: "manager on salary config", path: "/api/v1/salaries/config/1", token: manager, status: http.StatusForbidden, detail: "Not enough permissions"},
		{name: "admin on employees", path: "/api/v1/employees/", token: admin, status: http.StatusOK},
		{name: "manager on salary items", path: "/api/v1/salaries/items", token: manager, status: http.StatusOK},
		{name: "employee on own attendance", path: "/api/v1/attendance/", token: employee, status: http.StatusOK},
		{name: "unknown parameter", path: "/api/v1/system/parameters/key/nope", token: admin, status: http.StatusNotFound, detail: "Parameter not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.path, tt.token, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detail(t, w))
			}
		})
	}
}

func TestEmployeeSeesOnlyOwnAttendance(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "employee", "employee123")

	w := do(t, s, http.MethodGet, "/api/v1/attendance/", tok, nil)
	page := decode[struct {
		Items []struct {
			EmployeeID int `json:"employee_id"`
		} `json:"items"`
		Total int `json:"total"`
	}](t, w)
	require.NotZero(t, page.Total)
	for _, it := range page.Items {
		assert.Equal(t, 1, it.EmployeeID)
	}
}

func TestRevokeTokens(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "admin", "admin123")

	s.RevokeTokens()

	w := do(t, s, http.MethodGet, "/api/v1/auth/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked token")

	fresh := tokenFor(t, s, "admin", "admin123")
	w = do(t, s, http.MethodGet, "/api/v1/auth/me", fresh, nil)
	assert.Equal(t, http.StatusOK, w.Code, "fresh token")
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "admin", "admin123")

	s.tokens.now = func() time.Time { return time.Now().Add(time.Hour) }

	w := do(t, s, http.MethodGet, "/api/v1/auth/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDepartmentLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "hr", "hr123456")

	w := do(t, s, http.MethodPost, "/api/v1/departments/", tok, strings.NewReader(`{"name":"Legal"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[store.Department](t, w)

	w = do(t, s, http.MethodPost, "/api/v1/departments/", tok, strings.NewReader(`{"name":"legal"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate name")

	w = do(t, s, http.MethodDelete, "/api/v1/departments/1", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Department still has employees", detail(t, w))

	w = do(t, s, http.MethodDelete, "/api/v1/departments/"+strconv.Itoa(created.ID), tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmployeeLeave(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "admin", "admin123")

	w := do(t, s, http.MethodPut, "/api/v1/employees/3/leave", tok, strings.NewReader(`{"leave_date":"2026-10-31"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPut, "/api/v1/employees/3/leave", tok, strings.NewReader(`{"leave_date":"2026-10-31"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "second leave")

	w = do(t, s, http.MethodPut, "/api/v1/employees/1/leave", tok, strings.NewReader(`{"leave_date":"31/10/2026"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad date")
}

func TestSalaryItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "hr", "hr123456")

	w := do(t, s, http.MethodGet, "/api/v1/salaries/items?type=addition", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]store.SalaryItem](t, w), 2)

	w = do(t, s, http.MethodPost, "/api/v1/salaries/items", tok, strings.NewReader(`{"name":"Transport","type":"addition"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[store.SalaryItem](t, w)
	assert.Equal(t, 101, created.ID)

	w = do(t, s, http.MethodPost, "/api/v1/salaries/items", tok, strings.NewReader(`{"name":"Bonus","type":"gift"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "unknown type")

	w = do(t, s, http.MethodPut, "/api/v1/salaries/items/101", tok, strings.NewReader(`{"name":"Commute","type":"addition"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Commute", decode[store.SalaryItem](t, w).Name)

	w = do(t, s, http.MethodDelete, "/api/v1/salaries/items/3", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "System salary items cannot be deleted", detail(t, w))

	w = do(t, s, http.MethodDelete, "/api/v1/salaries/items/101", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodDelete, "/api/v1/salaries/items/101", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSalaryConfig(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "admin", "admin123")

	w := do(t, s, http.MethodGet, "/api/v1/salaries/config/1", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[store.EmployeeSalaryConfig](t, w)
	require.Len(t, cfg.Items, 2)
	assert.Equal(t, "Performance bonus", cfg.Items[0].ItemName)
	assert.True(t, cfg.Items[0].IsPercentage)

	w = do(t, s, http.MethodGet, "/api/v1/salaries/config/3", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[store.EmployeeSalaryConfig](t, w).Items)

	w = do(t, s, http.MethodGet, "/api/v1/salaries/config/42", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := `{"employee_id":3,"items":[{"item_id":3,"value":20,"effective_date":"2026-10-01"}]}`
	w = do(t, s, http.MethodPut, "/api/v1/salaries/config/3", tok, strings.NewReader(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[store.EmployeeSalaryConfig](t, w)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, "Union fee", saved.Items[0].ItemName)
	assert.Equal(t, store.SalaryItemDeduction, saved.Items[0].Type)

	w = do(t, s, http.MethodPut, "/api/v1/salaries/config/3", tok, strings.NewReader(`{"items":[{"item_id":99,"value":1,"effective_date":"2026-10-01"}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown item")

	w = do(t, s, http.MethodPut, "/api/v1/salaries/config/3", tok, strings.NewReader(`{"employee_id":1,"items":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "mismatched employee")
}

func TestGenerateSalaries(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, s, "hr", "hr123456")

	w := do(t, s, http.MethodPost, "/api/v1/salaries/generate", tok, strings.NewReader(`{"year":2026,"month":9}`))
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[store.SalaryGenerateResult](t, w)
	assert.False(t, res.Success)
	assert.Zero(t, res.GeneratedCount)
	assert.Equal(t, 3, res.FailedCount)
	assert.Len(t, res.Errors, 3)

	w = do(t, s, http.MethodPost, "/api/v1/salaries/generate", tok, strings.NewReader(`{"year":2026,"month":10,"department_id":1}`))
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[store.SalaryGenerateResult](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.GeneratedCount)
	assert.Equal(t, "Generated 2 salary records, 0 failed", res.Message)

	w = do(t, s, http.MethodGet, "/api/v1/salaries/records?year=2026&month=10&employee_id=1", tok, nil)
	page := decode[struct {
		Items []store.SalaryRecord `json:"items"`
	}](t, w)
	require.Len(t, page.Items, 1)
	rec := page.Items[0]
	assert.Equal(t, "draft", rec.Status)
	// 18000 base plus a 10% bonus and a 600 meal allowance.
	assert.InDelta(t, 20400, rec.BeforeTax, 0.001)
	assert.InDelta(t, 1225, rec.Tax, 0.001)
	assert.InDelta(t, 16025, rec.AfterTax, 0.001)

	w = do(t, s, http.MethodPost, "/api/v1/salaries/generate", tok, strings.NewReader(`{"year":2026,"month":13}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	manager := tokenFor(t, s, "manager", "manager123")
	w = do(t, s, http.MethodPost, "/api/v1/salaries/generate", manager, strings.NewReader(`{"year":2026,"month":11}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)
	post := func(body string) *httptest.ResponseRecorder {
		return do(t, s, http.MethodPost, "/api/v1/auth/register", "", strings.NewReader(body))
	}

	w := post(`{"username":"zhao_lei","password":"secret1","real_name":"Zhao Lei","phone":"13912345678","employee_id":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[store.RegistrationResult](t, w)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, 101, res.ID)
	require.NotNil(t, res.EmployeeID)
	assert.Equal(t, 3, *res.EmployeeID)

	w = post(`{"username":"zhao_lei","password":"secret1","real_name":"Zhao Lei","phone":"13912345678"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already exists", detail(t, w))

	w = post(`{"username":"admin","password":"secret1","real_name":"Someone","phone":"13912345678"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "existing account")

	w = post(`{"username":"li_na","password":"secret1","real_name":"Li Na","phone":"13912345678","employee_id":2}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Employee is already bound to an account", detail(t, w))

	w = post(`{"username":"x","password":"123","real_name":"Z","phone":"12345"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	issues := decode[struct {
		Detail []validationIssue `json:"detail"`
	}](t, w)
	assert.Len(t, issues.Detail, 4)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodGet, "/health", "", nil)

	w := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payroll_mock_requests_total")
}

func TestGracefulShutdown(t *testing.T) {
	s := newTestServer(t)

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- s.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-startErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expectedIP string
	}{
		{name: "direct connection", remoteAddr: "192.0.2.1:12345", expectedIP: "192.0.2.1"},
		{name: "IPv6 address", remoteAddr: "[::1]:12345", expectedIP: "::1"},
		{name: "no port", remoteAddr: "192.0.2.9", expectedIP: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "203.0.113.42")

			assert.Equal(t, tt.expectedIP, extractIP(req))
		})
	}
}
