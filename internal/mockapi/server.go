// Package mockapi is a development stub of the payroll REST API. It serves
// seeded in-memory data, issues short-lived HS256 tokens and enforces the
// same role rules as the real backend, so the console can be exercised
// without one.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/al-bashkir/payroll-console/internal/config"
)

// Server is the stub API server.
type Server struct {
	cfg        config.MockConfig
	engine     *gin.Engine
	httpServer *http.Server
	data       *dataset
	tokens     *issuer
	limiter    *IPRateLimiter
	registry   *prometheus.Registry
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer builds the stub with freshly seeded data.
func NewServer(cfg config.MockConfig) (*Server, error) {
	if len(cfg.SigningKey) < 16 {
		return nil, errors.New("signing key must be at least 16 characters")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}

	s := &Server{
		cfg:      cfg,
		data:     seed(),
		tokens:   newIssuer(cfg.SigningKey, time.Duration(cfg.TokenTTL)*time.Second),
		limiter:  NewIPRateLimiter(100, 200),
		registry: prometheus.NewRegistry(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payroll_mock",
		Name:      "requests_total",
		Help:      "Requests served by the stub API.",
	}, []string{"method", "route", "status"})
	s.registry.MustRegister(requests)

	e := gin.New()
	e.Use(
		securityHeadersMiddleware(),
		requestIDMiddleware(),
		recoveryMiddleware(),
		loggingMiddleware(),
		rateLimitMiddleware(s.limiter),
		metricsMiddleware(requests),
	)
	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	s.routes(e)
	s.engine = e

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(e *gin.Engine) {
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	v1.POST("/auth/login", s.handleLogin)
	v1.POST("/auth/register", s.handleRegister)

	api := v1.Group("", s.authenticate())
	api.GET("/auth/me", s.handleMe)

	staff := requireRole("admin", "hr", "manager")
	payroll := requireRole("admin", "hr")
	admin := requireRole("admin")

	emp := api.Group("/employees")
	emp.GET("/", staff, s.listEmployees)
	emp.GET("/search", staff, s.searchEmployees)
	emp.GET("/:id", staff, s.getEmployee)
	emp.POST("/", payroll, s.createEmployee)
	emp.PUT("/:id/leave", payroll, s.leaveEmployee)

	dept := api.Group("/departments")
	dept.GET("/", s.listDepartments)
	dept.GET("/with-employee-count", staff, s.departmentsWithCount)
	dept.POST("/", payroll, s.createDepartment)
	dept.DELETE("/:id", payroll, s.deleteDepartment)

	pos := api.Group("/positions")
	pos.GET("/", s.listPositions)
	pos.GET("/by-department/:id", s.positionsByDepartment)

	att := api.Group("/attendance")
	att.GET("/", s.listAttendance)
	att.GET("/status", s.listStatuses)

	sal := api.Group("/salaries")
	sal.GET("/records", s.listSalaries)
	sal.GET("/summary", staff, s.salarySummary)
	sal.GET("/items", staff, s.listSalaryItems)
	sal.POST("/items", payroll, s.createSalaryItem)
	sal.PUT("/items/:id", payroll, s.updateSalaryItem)
	sal.DELETE("/items/:id", payroll, s.deleteSalaryItem)
	sal.GET("/config/:id", payroll, s.getSalaryConfig)
	sal.PUT("/config/:id", payroll, s.saveSalaryConfig)
	sal.POST("/generate", payroll, s.generateSalaries)

	api.GET("/social-security/configs", payroll, s.listSocialSecurity)

	sys := api.Group("/system", admin)
	sys.GET("/parameters", s.listParameters)
	sys.GET("/parameters/key/:key", s.parameterByKey)

	api.GET("/users/", admin, s.listUsers)
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.tokens.revoke()
	slog.Info("mock tokens revoked")
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	go s.limiter.Run(s.ctx)

	slog.Info("starting mock API server",
		"addr", s.cfg.Listen,
		"token_ttl", s.cfg.TokenTTL,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock API server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down mock API server")
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}
