package synth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a provider failure.
type Kind string

const (
	AuthError             Kind = "auth_error"
	RateLimited           Kind = "rate_limited"
	TransientNetworkError Kind = "transient_network_error"
	PermanentRequestError Kind = "permanent_request_error"
)

// Error is the only error type adapters return.
type Error struct {
	Kind       Kind
	Provider   string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.Kind == RateLimited || e.Kind == TransientNetworkError
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	se, ok := AsError(err)
	return ok && se.Retryable()
}

// maxErrorBody bounds how much of a provider error body ends up in messages.
const maxErrorBody = 256

// truncateMessage cuts msg to at most n bytes on a rune boundary. Invalid
// UTF-8 is replaced so the result is safe to put in JSON.
func truncateMessage(msg string, n int) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= n {
		return msg
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}

// classifyStatus maps an HTTP status from a provider to an error.
func classifyStatus(provider string, status int, header http.Header, body []byte) *Error {
	msg := truncateMessage(strings.TrimSpace(string(body)), maxErrorBody)
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &Error{Provider: provider, Status: status, Err: errors.New(msg)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = AuthError
	case status == http.StatusTooManyRequests:
		e.Kind = RateLimited
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	case status == http.StatusRequestTimeout || status >= 500:
		e.Kind = TransientNetworkError
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	default:
		e.Kind = PermanentRequestError
	}
	return e
}

// classifyTransport maps a failure to get any response at all. Dial errors,
// resets, timeouts and cancellation all count as transient.
func classifyTransport(provider string, err error) *Error {
	return &Error{Kind: TransientNetworkError, Provider: provider, Err: err}
}

// classifyGRPC maps a gRPC status error to an error.
func classifyGRPC(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: TransientNetworkError, Provider: provider, Err: err}
	}
	st, ok := status.FromError(err)
	if !ok {
		return &Error{Kind: TransientNetworkError, Provider: provider, Err: err}
	}
	e := &Error{Provider: provider, Err: errors.New(st.Message())}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		e.Kind = AuthError
	case codes.ResourceExhausted:
		e.Kind = RateLimited
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.OutOfRange, codes.Unimplemented:
		e.Kind = PermanentRequestError
	default:
		// Unavailable, DeadlineExceeded, Internal, Aborted, Unknown...
		e.Kind = TransientNetworkError
	}
	return e
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
