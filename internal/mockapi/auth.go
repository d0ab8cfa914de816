package mockapi

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/al-bashkir/payroll-console/internal/logsanitize"
	"github.com/al-bashkir/payroll-console/internal/store"
)

const accountKey = "account"

type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin implements the OAuth2 password grant as a form post.
func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	var issues []validationIssue
	if username == "" {
		issues = append(issues, validationIssue{Loc: []string{"body", "username"}, Msg: "field required", Type: "value_error.missing"})
	}
	if password == "" {
		issues = append(issues, validationIssue{Loc: []string{"body", "password"}, Msg: "field required", Type: "value_error.missing"})
	}
	if len(issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": issues})
		return
	}

	acct, ok := s.data.login(username, password)
	if !ok {
		slog.Info("mock login rejected", "username", logsanitize.Sanitize(username))
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}

	tok, err := s.tokens.issue(acct)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tok,
		TokenType:   "bearer",
		ExpiresIn:   s.cfg.TokenTTL,
	})
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
	phonePattern    = regexp.MustCompile(`^1[3-9]\d{9}$`)
	idCardPattern   = regexp.MustCompile(`^\d{17}[\dXx]$`)
)

func validateRegistration(r store.Registration) []validationIssue {
	var issues []validationIssue
	add := func(field, msg string) {
		issues = append(issues, validationIssue{Loc: []string{"body", field}, Msg: msg, Type: "value_error"})
	}
	if !usernamePattern.MatchString(r.Username) {
		add("username", "3 to 50 letters, digits, underscores or hyphens")
	}
	if len(r.Password) < 6 {
		add("password", "ensure this value has at least 6 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.RealName)) < 2 {
		add("real_name", "ensure this value has at least 2 characters")
	}
	if !phonePattern.MatchString(r.Phone) {
		add("phone", "invalid mobile phone number")
	}
	if r.IDCard != "" && !idCardPattern.MatchString(r.IDCard) {
		add("id_card", "invalid ID card number")
	}
	return issues
}

// handleRegister stores a pending self-service registration.
func (s *Server) handleRegister(c *gin.Context) {
	var in store.Registration
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid registration body"})
		return
	}
	if issues := validateRegistration(in); len(issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": issues})
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for _, a := range s.data.accounts {
		if a.Username == in.Username {
			c.JSON(http.StatusConflict, gin.H{"detail": "Username already exists"})
			return
		}
		if in.EmployeeID != nil && a.EmployeeID != nil && *a.EmployeeID == *in.EmployeeID {
			c.JSON(http.StatusConflict, gin.H{"detail": "Employee is already bound to an account"})
			return
		}
	}
	for _, r := range s.data.registrations {
		if r.Username == in.Username {
			c.JSON(http.StatusConflict, gin.H{"detail": "Username already exists"})
			return
		}
	}
	if in.EmployeeID != nil {
		if _, ok := s.data.employee(*in.EmployeeID); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Employee not found"})
			return
		}
	}

	res := store.RegistrationResult{
		ID:         s.data.id(),
		Username:   in.Username,
		RealName:   strings.TrimSpace(in.RealName),
		Phone:      in.Phone,
		Email:      in.Email,
		Status:     "pending",
		EmployeeID: in.EmployeeID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Message:    "Registration submitted, awaiting approval",
	}
	s.data.registrations = append(s.data.registrations, res)
	slog.Info("mock registration stored", "username", logsanitize.Sanitize(in.Username))
	c.JSON(http.StatusOK, res)
}

// authenticate requires a valid bearer token.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			unauthorized(c)
			return
		}
		cl, err := s.tokens.verify(raw)
		if err != nil {
			slog.Debug("mock token rejected", "error", err)
			unauthorized(c)
			return
		}
		acct, ok := s.data.account(cl.Subject)
		if !ok {
			unauthorized(c)
			return
		}
		c.Set(accountKey, acct)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
}

// requireRole allows the request if the caller has any of roles.
func requireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		acct, ok := current(c)
		if !ok {
			unauthorized(c)
			return
		}
		if _, ok := allowed[acct.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
			return
		}
		c.Next()
	}
}

func current(c *gin.Context) (account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return account{}, false
	}
	acct, ok := v.(account)
	return acct, ok
}

func (s *Server) handleMe(c *gin.Context) {
	acct, _ := current(c)
	c.JSON(http.StatusOK, acct.profile())
}
