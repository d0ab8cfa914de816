package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Request describes one API call. It is kept by value so a held call can be
// sent again with a different token.
type Request struct {
	Method string
	// Path is relative to the API base URL, e.g. "/api/v1/employees/".
	Path  string
	Query url.Values
	// Body is JSON-encoded when set.
	Body any
	// Form is sent form-encoded and takes precedence over Body.
	Form url.Values
	// Login marks a call made outside the session, the authentication call
	// itself or a public one such as registration: no bearer token is
	// attached and a 401 never triggers recovery.
	Login bool

	replayed bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// build turns r into an *http.Request carrying token as bearer.
func (r Request) build(ctx context.Context, base, token string) (*http.Request, error) {
	if !strings.HasPrefix(r.Path, "/") {
		return nil, fmt.Errorf("request path %q must start with '/'", r.Path)
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + r.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.Body != nil:
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method(), u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" && !r.Login {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// requestIDTransport stamps every outgoing request with an X-Request-Id,
// including the ones x/oauth2 sends on our behalf.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-Id") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Request-Id", uuid.NewString())
	return t.base.RoundTrip(clone)
}
