package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/abhisek/examgen/internal/llm"
)

// Classify maps a provider error to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var (
		blocked   *llm.ErrTransportBlocked
		network   *llm.ErrNetwork
		timeout   *llm.ErrTimeout
		rateLimit *llm.ErrRateLimit
		invalid   *llm.ErrInvalidResponse
		truncated *llm.ErrMaxTokensExceeded
	)
	switch {
	case errors.As(err, &blocked):
		return FailureBlocked
	case errors.As(err, &rateLimit):
		return FailureRateLimit
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &network):
		return FailureNetwork
	case errors.As(err, &invalid), errors.As(err, &truncated):
		return FailureMalformed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}

	if strings.Contains(strings.ToLower(err.Error()), "too many requests") {
		return FailureRateLimit
	}
	return FailureOther
}
