package mockapi

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type claims struct {
	Role string `json:"role"`
	// Gen is the revocation generation the token was issued in.
	Gen int64 `json:"gen"`
	jwt.RegisteredClaims
}

// issuer signs and verifies the HS256 access tokens of the stub.
type issuer struct {
	secret []byte
	ttl    time.Duration
	gen    atomic.Int64
	now    func() time.Time
}

func newIssuer(secret string, ttl time.Duration) *issuer {
	return &issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *issuer) issue(u account) (string, error) {
	now := i.now()
	c := claims{
		Role: u.Role,
		Gen:  i.gen.Load(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *issuer) verify(raw string) (claims, error) {
	var c claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if _, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return claims{}, err
	}
	if c.Subject == "" {
		return claims{}, errors.New("subject missing")
	}
	if c.Gen != i.gen.Load() {
		return claims{}, errors.New("token revoked at generation " + strconv.FormatInt(i.gen.Load(), 10))
	}
	return c, nil
}

// revoke invalidates every token issued so far.
func (i *issuer) revoke() {
	i.gen.Add(1)
}
