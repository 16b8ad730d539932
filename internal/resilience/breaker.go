package resilience

import "time"

// Reason explains a breaker decision.
type Reason string

const (
	ReasonClosed        Reason = "CLOSED"
	ReasonOpenGeneric   Reason = "OPEN_GENERIC"
	ReasonOpenTransport Reason = "OPEN_TRANSPORT"
)

// Decision is the breaker's verdict for one attempt. It is recomputed from
// the ledger on every call and never stored.
type Decision struct {
	Allow  bool
	Reason Reason

	// PreferFallback is a soft hint: the ledger saw a failure very recently,
	// so callers should spend at most one attempt before falling back.
	PreferFallback bool
}

// BreakerConfig holds the breaker thresholds.
type BreakerConfig struct {
	GenericThreshold   int
	TransportThreshold int
	PreferFallbackFor  time.Duration
}

// DefaultBreakerConfig returns thresholds of 5 generic / 3 transport
// failures and a 10s prefer-fallback hint.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		GenericThreshold:   5,
		TransportThreshold: 3,
		PreferFallbackFor:  10 * time.Second,
	}
}

// Breaker derives open/closed decisions from a Ledger.
type Breaker struct {
	ledger *Ledger
	cfg    BreakerConfig

	// bypassAvailable reports whether an independent transport can be
	// built. Transport failures only open the breaker when it cannot.
	bypassAvailable func() bool
}

// NewBreaker creates a breaker over ledger. bypassAvailable may be nil,
// meaning no bypass transport exists.
func NewBreaker(ledger *Ledger, cfg BreakerConfig, bypassAvailable func() bool) *Breaker {
	if bypassAvailable == nil {
		bypassAvailable = func() bool { return false }
	}
	return &Breaker{ledger: ledger, cfg: cfg, bypassAvailable: bypassAvailable}
}

// Evaluate returns the decision for the next attempt.
func (b *Breaker) Evaluate() Decision {
	if b.ledger.Count(KindGeneric) >= b.cfg.GenericThreshold {
		return Decision{Allow: false, Reason: ReasonOpenGeneric}
	}
	if b.ledger.Count(KindTransport) >= b.cfg.TransportThreshold && !b.bypassAvailable() {
		return Decision{Allow: false, Reason: ReasonOpenTransport}
	}
	return Decision{
		Allow:          true,
		Reason:         ReasonClosed,
		PreferFallback: b.cfg.PreferFallbackFor > 0 && b.ledger.RecentIssueWithin(b.cfg.PreferFallbackFor),
	}
}
