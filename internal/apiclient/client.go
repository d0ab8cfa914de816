// Package apiclient is the single way the console talks to the payroll API.
//
// It attaches the bearer token, holds calls while an expired session is
// renewed, replays them once a new token exists, turns failures into typed
// errors and shows one notice per failed call.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/al-bashkir/payroll-console/internal/logsanitize"
	"github.com/al-bashkir/payroll-console/internal/notice"
	"github.com/al-bashkir/payroll-console/internal/session"
	"github.com/al-bashkir/payroll-console/internal/token"
)

const maxBodyBytes = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL   string
	LoginPath string
	// Timeout applies to every HTTP exchange. Ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client

	Session    *session.Manager
	Inspector  *token.Inspector
	Notifier   notice.Notifier
	Redirector Redirector
	LoginRoute string

	RecoveryTimeout time.Duration
	ReplayLimiter   *rate.Limiter
	Registerer      prometheus.Registerer
}

// Client wraps every call to the API.
type Client struct {
	baseURL   string
	loginPath string
	http      *http.Client
	oauth     *oauth2.Config
	session   *session.Manager
	inspector *token.Inspector
	notifier  notice.Notifier
	queue     *Queue
	coord     *Coordinator
	metrics   *Metrics
	tracer    trace.Tracer
}

// New builds a Client together with its queue and recovery coordinator.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/api/v1/auth/login"
	}
	if opts.Inspector == nil {
		opts.Inspector = token.NewInspector(token.DefaultLookahead)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: requestIDTransport{base: http.DefaultTransport},
		}
	}

	c := &Client{
		baseURL:   opts.BaseURL,
		loginPath: opts.LoginPath,
		http:      httpClient,
		session:   opts.Session,
		inspector: opts.Inspector,
		notifier:  opts.Notifier,
		metrics:   NewMetrics(opts.Registerer),
		tracer:    otel.Tracer("github.com/al-bashkir/payroll-console/internal/apiclient"),
	}
	c.oauth = &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  joinURL(opts.BaseURL, opts.LoginPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	c.queue = NewQueue(c.send, opts.ReplayLimiter)
	c.coord = NewCoordinator(CoordinatorOptions{
		Queue:         c.queue,
		Session:       opts.Session,
		Authenticator: c,
		Notifier:      opts.Notifier,
		Redirector:    opts.Redirector,
		LoginRoute:    opts.LoginRoute,
		Timeout:       opts.RecoveryTimeout,
		Metrics:       c.metrics,
	})
	return c, nil
}

// Coordinator returns the recovery coordinator owned by c.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// Metrics returns the client's metrics.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Inspector returns the token inspector used by c.
func (c *Client) Inspector() *token.Inspector { return c.inspector }

// Do sends req and decodes a successful JSON body into out, which may be nil.
// Every failure except a session expiry shows exactly one error notice.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := c.execute(ctx, req)
	if err == nil {
		err = decode(body, out)
	}
	if err != nil {
		c.report(err)
		return err
	}
	return nil
}

func (c *Client) execute(ctx context.Context, req Request) ([]byte, error) {
	tok := ""
	if !req.Login {
		tok = c.session.Token()
		if tok != "" && c.inspector.Expired(tok) {
			slog.Debug("token expired, holding request", "method", req.method(), "path", req.Path)
			return c.park(ctx, req)
		}
	}

	body, err := c.send(ctx, req, tok)
	if req.Login || !IsStatus(err, http.StatusUnauthorized) {
		return body, err
	}

	// Another call may already have renewed the token this one was sent with.
	if cur := c.session.Token(); cur != "" && cur != tok && !c.inspector.Expired(cur) {
		req.replayed = true
		return c.send(ctx, req, cur)
	}
	return c.park(ctx, req)
}

func (c *Client) park(ctx context.Context, req Request) ([]byte, error) {
	c.metrics.Requests.WithLabelValues(req.method(), "queued").Inc()
	p := NewPending(ctx, req)
	c.coord.Park(p)
	return p.Wait(ctx)
}

// send performs one HTTP exchange. Non-2xx responses come back as *Error.
func (c *Client) send(ctx context.Context, req Request, tok string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, req.method()+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method()),
			attribute.String("url.path", req.Path),
			attribute.Bool("payroll.replayed", req.replayed),
		),
	)
	defer span.End()

	httpReq, err := req.build(ctx, c.baseURL, tok)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Kind: KindRequest, Message: err.Error(), Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.Requests.WithLabelValues(req.method(), outcomeFor(0)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, msgUnreachable)
		slog.Warn("api request failed", "method", req.method(), "path", req.Path, "error", err)
		return nil, &Error{Kind: KindTransport, Message: msgUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: msgUnreachable, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.metrics.Requests.WithLabelValues(req.method(), outcomeFor(resp.StatusCode)).Inc()
	slog.Debug("api request",
		"method", req.method(),
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := statusError(resp.StatusCode, body, req.Login)
	span.SetStatus(codes.Error, apiErr.Message)
	if resp.StatusCode != http.StatusUnauthorized || req.Login || req.replayed {
		slog.Warn("api request rejected",
			"method", req.method(),
			"path", req.Path,
			"status", resp.StatusCode,
			"detail", logsanitize.Truncate(logsanitize.Sanitize(apiErr.Detail), 200),
		)
	}
	return nil, apiErr
}

// report shows the notice for a failed call.
func (c *Client) report(err error) {
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, context.Canceled) {
		return
	}

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		notice.Error(c.notifier, apiErr.Notice())
	case errors.Is(err, context.DeadlineExceeded):
		notice.Error(c.notifier, StatusMessage(http.StatusRequestTimeout))
	default:
		notice.Error(c.notifier, err.Error())
	}
}

// validator is implemented by response types that check themselves after
// decoding.
type validator interface {
	Validate() error
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindDecode, Message: msgInvalidBody, Err: err}
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return &Error{Kind: KindDecode, Message: msgInvalidBody, Err: err}
		}
	}
	return nil
}

func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + path
}

// Wait blocks until any in-flight recovery and its replays have finished.
func (c *Client) Wait() {
	c.coord.Wait()
}

// Get fetches path and decodes the body into T.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, &out)
	return out, err
}

// Post sends body to path and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, &out)
	return out, err
}

// Put sends body to path and decodes the response into T.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, &out)
	return out, err
}

// Delete removes the resource at path.
func Delete(ctx context.Context, c *Client, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
