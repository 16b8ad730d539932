// Package resilience holds the failure bookkeeping and transport selection
// that guard every upstream LLM call: a process-wide failure ledger, a
// circuit breaker derived from it, transport health detection with an
// independent bypass transport, and the retry policy state machine.
package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/examgen/internal/store"
)

// LedgerKind selects which failure counter an outcome is booked against.
type LedgerKind int

const (
	// KindNone books nothing.
	KindNone LedgerKind = iota
	// KindGeneric covers timeouts, rate limits, 5xx and malformed bodies.
	KindGeneric
	// KindTransport covers unreachable endpoints and tampered transports.
	KindTransport
)

func (k LedgerKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindTransport:
		return "transport"
	default:
		return "none"
	}
}

// Default windows after which a recorded failure stops counting.
const (
	DefaultGenericWindow   = 60 * time.Second
	DefaultTransportWindow = 30 * time.Second
)

// LedgerState is a point-in-time copy of the ledger counters.
type LedgerState struct {
	GenericCount         int
	GenericWindowStart   time.Time
	TransportCount       int
	TransportWindowStart time.Time
	RecentIssueAt        time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithWindows overrides the generic and transport window lengths.
func WithWindows(generic, transport time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.genericWindow = generic
		l.transportWindow = transport
	}
}

// WithPersistence saves every mutation to repo. Saves run under the ledger
// lock so rows are written in mutation order.
func WithPersistence(repo store.LedgerRepo) LedgerOption {
	return func(l *Ledger) { l.repo = repo }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

// Ledger counts recent upstream failures. It is safe for concurrent use and
// never returns errors.
type Ledger struct {
	mu              sync.Mutex
	state           LedgerState
	genericWindow   time.Duration
	transportWindow time.Duration
	now             func() time.Time
	repo            store.LedgerRepo
	logger          *slog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		genericWindow:   DefaultGenericWindow,
		transportWindow: DefaultTransportWindow,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Load restores state from the persistence repo, if one is configured.
// Missing rows and read errors leave the ledger empty.
func (l *Ledger) Load(ctx context.Context) {
	if l.repo == nil {
		return
	}
	rec, found, err := l.repo.Load(ctx)
	if err != nil {
		l.logger.Warn("failure ledger load failed", "error", err)
		return
	}
	if !found {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LedgerState{
		GenericCount:         rec.GenericCount,
		GenericWindowStart:   rec.GenericWindowStart,
		TransportCount:       rec.TransportCount,
		TransportWindowStart: rec.TransportWindowStart,
		RecentIssueAt:        rec.RecentIssueAt,
	}
}

// RecordFailure books one failure of the given kind. An expired window is
// restarted at the current time before counting.
func (l *Ledger) RecordFailure(kind LedgerKind) {
	if kind == KindNone {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	switch kind {
	case KindGeneric:
		if !withinWindow(now, l.state.GenericWindowStart, l.genericWindow) {
			l.state.GenericCount = 0
			l.state.GenericWindowStart = now
		}
		l.state.GenericCount++
	case KindTransport:
		if !withinWindow(now, l.state.TransportWindowStart, l.transportWindow) {
			l.state.TransportCount = 0
			l.state.TransportWindowStart = now
		}
		l.state.TransportCount++
	}
	l.state.RecentIssueAt = now

	l.persistLocked()
}

// RecordSuccess clears all counters and timestamps.
func (l *Ledger) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == (LedgerState{}) {
		return
	}
	l.state = LedgerState{}
	l.persistLocked()
}

// IsWindowActive reports whether kind has failures inside its window.
func (l *Ledger) IsWindowActive(kind LedgerKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeLocked(kind, l.now())
}

// RecentIssueWithin reports whether any failure was booked less than d ago.
func (l *Ledger) RecentIssueWithin(d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.RecentIssueAt.IsZero() {
		return false
	}
	return l.now().Sub(l.state.RecentIssueAt) < d
}

// RecentFailures returns the number of failures inside active windows.
func (l *Ledger) RecentFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	if l.activeLocked(KindGeneric, now) {
		n += l.state.GenericCount
	}
	if l.activeLocked(KindTransport, now) {
		n += l.state.TransportCount
	}
	return n
}

// Count returns the failures of kind inside its active window, or 0.
func (l *Ledger) Count(kind LedgerKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.activeLocked(kind, l.now()) {
		return 0
	}
	if kind == KindGeneric {
		return l.state.GenericCount
	}
	return l.state.TransportCount
}

// State returns a copy of the raw counters for diagnostics.
func (l *Ledger) State() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Ledger) activeLocked(kind LedgerKind, now time.Time) bool {
	switch kind {
	case KindGeneric:
		return l.state.GenericCount > 0 && withinWindow(now, l.state.GenericWindowStart, l.genericWindow)
	case KindTransport:
		return l.state.TransportCount > 0 && withinWindow(now, l.state.TransportWindowStart, l.transportWindow)
	}
	return false
}

func (l *Ledger) persistLocked() {
	if l.repo == nil {
		return
	}
	rec := store.LedgerRecord{
		GenericCount:         l.state.GenericCount,
		GenericWindowStart:   l.state.GenericWindowStart,
		TransportCount:       l.state.TransportCount,
		TransportWindowStart: l.state.TransportWindowStart,
		RecentIssueAt:        l.state.RecentIssueAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.repo.Save(ctx, rec); err != nil {
		l.logger.Warn("failure ledger save failed", "error", err)
	}
}

func withinWindow(now, start time.Time, window time.Duration) bool {
	return !start.IsZero() && now.Sub(start) < window
}
