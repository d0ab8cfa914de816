package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/al-bashkir/payroll-console/internal/session"
)

// LoginResult is what a successful password login returns.
type LoginResult struct {
	Token     string
	TokenType string
	// Profile is set when the server embeds the user in the token response.
	Profile *session.Profile
}

// Login exchanges username and password for an access token. It never
// attaches a bearer token and a 401 is reported as a failed login, not as
// an expired session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	res, err := c.passwordGrant(ctx, username, password)
	if err != nil {
		c.report(err)
		return nil, err
	}
	return res, nil
}

// Reauthenticate implements Authenticator. Failures are left to the
// coordinator to report.
func (c *Client) Reauthenticate(ctx context.Context, username, password string) (string, error) {
	res, err := c.passwordGrant(ctx, username, password)
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

func (c *Client) passwordGrant(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := c.tracer.Start(ctx, "POST "+c.loginPath,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		loginErr := loginError(err)
		span.SetStatus(codes.Error, loginErr.Message)
		c.metrics.Requests.WithLabelValues("POST", outcomeFor(loginErr.Status)).Inc()
		slog.Warn("login failed", "username", username, "status", loginErr.Status, "kind", loginErr.Kind.String())
		return nil, loginErr
	}
	c.metrics.Requests.WithLabelValues("POST", "ok").Inc()

	res := &LoginResult{Token: tok.AccessToken, TokenType: tok.TokenType}
	if raw := tok.Extra("user"); raw != nil {
		if p, ok := embeddedProfile(raw); ok {
			res.Profile = p
		}
	}
	return res, nil
}

// loginError maps an x/oauth2 failure onto *Error.
func loginError(err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		apiErr := statusError(status, re.Body, true)
		apiErr.Err = err
		return apiErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindTransport, Message: msgUnreachable, Err: err}
	}
	// e.g. a 2xx body without access_token
	return &Error{Kind: KindDecode, Message: msgInvalidBody, Err: err}
}

func embeddedProfile(raw any) (*session.Profile, bool) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var p session.Profile
	if err := json.Unmarshal(data, &p); err != nil || p.Username == "" {
		return nil, false
	}
	return &p, true
}
