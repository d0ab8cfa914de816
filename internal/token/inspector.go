// Package token reads the claims of a bearer token locally, without a
// signature check and without contacting the issuer.
//
// Everything here fails closed: a token that cannot be decoded, or that
// carries no expiry, is reported as expired.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLookahead is how long before its exp a token is already treated as
// expired.
const DefaultLookahead = 5 * time.Minute

// parser only decodes; the client never holds the signing key.
var parser = jwt.NewParser()

// Inspector decides whether a bearer token is still usable.
type Inspector struct {
	// Lookahead shifts the expiry check forward in time.
	Lookahead time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewInspector returns an Inspector with the given look-ahead window.
func NewInspector(lookahead time.Duration) *Inspector {
	return &Inspector{Lookahead: lookahead, Now: time.Now}
}

// Expired reports whether raw should be treated as expired: its exp is in the
// past or within the look-ahead window, or it cannot be decoded at all.
func (i *Inspector) Expired(raw string) bool {
	exp, ok := ExpiresAt(raw)
	if !ok {
		return true
	}
	return !i.now().Add(i.Lookahead).Before(exp)
}

// Remaining returns the time left before raw reaches the look-ahead window.
// It is zero for tokens that are already treated as expired.
func (i *Inspector) Remaining(raw string) time.Duration {
	exp, ok := ExpiresAt(raw)
	if !ok {
		return 0
	}
	d := exp.Sub(i.now().Add(i.Lookahead))
	if d < 0 {
		return 0
	}
	return d
}

func (i *Inspector) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}

// ExpiresAt decodes the exp claim. ok is false when the token is malformed
// or has no exp.
func ExpiresAt(raw string) (exp time.Time, ok bool) {
	claims, ok := decode(raw)
	if !ok {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Subject decodes the sub claim.
func Subject(raw string) (string, bool) {
	claims, ok := decode(raw)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func decode(raw string) (*jwt.RegisteredClaims, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}
