package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429) or
// an explicit "too many requests" message.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that cannot be used:
// no choices, no content, or content that is not a JSON object.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider answered with a server-side
// failure (5xx) or an error we cannot classify more precisely.
type ErrProviderUnavailable struct {
	StatusCode int
	Err        error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrTimeout indicates the attempt exceeded its deadline.
type ErrTimeout struct {
	Err error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("LLM request timed out: %v", e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// ErrNetwork indicates the endpoint could not be reached at all
// (connection refused, DNS failure, reset).
type ErrNetwork struct {
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network unavailable: %v", e.Err)
}

func (e *ErrNetwork) Unwrap() error { return e.Err }

// ErrTransportBlocked indicates the bypass transport got a response with no
// status or an empty body, which is how blocked egress usually presents.
type ErrTransportBlocked struct {
	StatusCode int
	Reason     string
}

func (e *ErrTransportBlocked) Error() string {
	return fmt.Sprintf("transport blocked (status %d): %s", e.StatusCode, e.Reason)
}

// mapTransportError converts low-level HTTP client failures into the typed
// errors above. It returns nil when err is not a transport-level failure, so
// each provider can fall through to its own API error mapping.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}

	var blocked *ErrTransportBlocked
	if errors.As(err, &blocked) {
		return blocked
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrTimeout{Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return &ErrNetwork{Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ErrNetwork{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ErrNetwork{Err: err}
	}

	return nil
}

// isTooManyRequests reports whether an error message carries an explicit
// rate-limit phrase even though no 429 status was surfaced.
func isTooManyRequests(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit")
}
