package resilience

import "time"

// State is a retry loop state.
type State int

const (
	StateAttempting State = iota
	StateBackoff
	StateFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateFallback:
		return "fallback"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// FailureKind classifies a failed attempt.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureNetwork
	FailureBlocked
	FailureCompromised
	FailureRateLimit
	FailureMalformed
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureNetwork:
		return "network"
	case FailureBlocked:
		return "blocked"
	case FailureCompromised:
		return "compromised"
	case FailureRateLimit:
		return "rate_limit"
	case FailureMalformed:
		return "malformed"
	case FailureOther:
		return "other"
	}
	return "unknown"
}

// Step is the outcome of one transition: the next state, how long to wait
// before it, and which ledger counter to book.
type Step struct {
	State  State
	Wait   time.Duration
	Record LedgerKind
}

// Policy holds the retry budget. Its methods are pure.
type Policy struct {
	MaxAttempts int

	// Timeout backoff is TimeoutBase * 2^(attempt-1), capped at TimeoutCap.
	TimeoutBase time.Duration
	TimeoutCap  time.Duration

	// RetryDelay is the flat wait before retrying a malformed or otherwise
	// failed response.
	RetryDelay time.Duration

	// TimeoutFallbackAfter is the attempt number from which a timeout goes
	// straight to fallback.
	TimeoutFallbackAfter int
}

// DefaultPolicy returns 3 attempts, 2s..8s timeout backoff, 500ms retry
// delay, and fallback on the second timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		TimeoutBase:          2 * time.Second,
		TimeoutCap:           8 * time.Second,
		RetryDelay:           500 * time.Millisecond,
		TimeoutFallbackAfter: 2,
	}
}

// OnSuccess is the transition for a normalised response.
func (p Policy) OnSuccess() Step {
	return Step{State: StateDone}
}

// OnFailure is the transition after attempt (1-based) failed with kind.
func (p Policy) OnFailure(attempt int, kind FailureKind) Step {
	switch kind {
	case FailureNetwork, FailureBlocked:
		return Step{State: StateFallback, Record: KindTransport}

	case FailureCompromised:
		// The detector already booked this one.
		return Step{State: StateFallback}

	case FailureRateLimit:
		return Step{State: StateFallback, Record: KindGeneric}

	case FailureTimeout:
		if attempt >= p.TimeoutFallbackAfter || attempt >= p.MaxAttempts {
			return Step{State: StateFallback, Record: KindGeneric}
		}
		return Step{State: StateBackoff, Wait: p.TimeoutBackoff(attempt), Record: KindGeneric}

	default:
		if attempt >= p.MaxAttempts {
			return Step{State: StateFallback, Record: KindGeneric}
		}
		return Step{State: StateBackoff, Wait: p.RetryDelay, Record: KindGeneric}
	}
}

// TimeoutBackoff returns min(TimeoutBase * 2^(attempt-1), TimeoutCap).
func (p Policy) TimeoutBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.TimeoutBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.TimeoutCap {
			return p.TimeoutCap
		}
	}
	if d > p.TimeoutCap {
		return p.TimeoutCap
	}
	return d
}
