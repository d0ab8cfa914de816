package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindRequest is a failure before anything was sent.
	KindRequest Kind = iota + 1
	// KindTransport means no response was received.
	KindTransport
	// KindStatus is a non-2xx response.
	KindStatus
	// KindDecode is a 2xx response whose body did not parse.
	KindDecode
	// KindSession means the call was held for re-authentication and the
	// session could not be recovered.
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionExpired marks calls rejected because the session ended.
	// Those rejections never produce a notice of their own.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoCredentials means there is nothing to re-authenticate with.
	ErrNoCredentials = errors.New("no stored credentials")
)

const (
	msgUnreachable    = "server unreachable"
	msgInvalidBody    = "invalid response from server"
	msgSessionExpired = "session expired, please sign in again"
	msgLoginFailed    = "login failed"
	msgUnauthorized   = "unauthorized"
)

// Error is the error returned for every failed call.
type Error struct {
	Kind Kind
	// Status is the HTTP status, zero when no response was received.
	Status int
	// Message is the fixed classification shown to the user.
	Message string
	// Detail is the server-provided detail, when there was one.
	Detail string
	Err    error
}

// Error prefers the server detail over the classification message.
func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "request failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Notice returns the text shown to the user for this failure.
func (e *Error) Notice() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// StatusMessage returns the classification message for an HTTP status.
func StatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request error"
	case http.StatusUnauthorized:
		return msgUnauthorized
	case http.StatusForbidden:
		return "access denied"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusRequestTimeout:
		return "request timeout"
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusNotImplemented:
		return "not implemented"
	case http.StatusBadGateway:
		return "bad gateway"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	case http.StatusGatewayTimeout:
		return "gateway timeout"
	case http.StatusHTTPVersionNotSupported:
		return "unsupported protocol version"
	default:
		return fmt.Sprintf("request failed (%d)", status)
	}
}

// IsStatus reports whether err is a response with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindStatus && apiErr.Status == status
}

func statusError(status int, body []byte, login bool) *Error {
	msg := StatusMessage(status)
	if login && status == http.StatusUnauthorized {
		msg = msgLoginFailed
	}
	return &Error{
		Kind:    KindStatus,
		Status:  status,
		Message: msg,
		Detail:  parseDetail(body),
	}
}

func sessionError(cause error) *Error {
	return &Error{
		Kind:    KindSession,
		Message: msgSessionExpired,
		Err:     fmt.Errorf("%w: %w", ErrSessionExpired, cause),
	}
}

// parseDetail extracts the "detail" field of an error body. Validation
// errors carry a list of {msg} objects, which are joined.
func parseDetail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 || string(env.Detail) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return string(env.Detail)
}
