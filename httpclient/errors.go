package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups failures by how a caller should react to them.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindRequest    Kind = "request"
	KindServer     Kind = "server"
)

// Error is returned for transport failures and non-2xx responses. Status
// is zero when no response arrived.
type Error struct {
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0:
		return fmt.Sprintf("httpclient: %s: HTTP %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("httpclient: %s: %v", e.Kind, e.Err)
	}
	return "httpclient: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit, KindServer:
		return true
	}
	return false
}

func transportError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func requestError(format string, args ...any) *Error {
	return &Error{Kind: KindRequest, Err: fmt.Errorf(format, args...)}
}

// statusError classifies a response status. It returns nil for 2xx.
func statusError(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 400 && status < 500:
		kind = KindRequest
	default:
		kind = KindServer
	}
	return &Error{Kind: kind, Status: status, Body: body}
}

// IsRetryable is the retry predicate for transport and status errors.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// StatusError returns the status code and body of an HTTP status error.
// ok is false for transport-level failures.
func StatusError(err error) (status int, body []byte, ok bool) {
	var e *Error
	if errors.As(err, &e) && e.Status > 0 {
		return e.Status, e.Body, true
	}
	return 0, nil, false
}
