package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match when non-empty
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LedgerRecord is the persisted form of the process-wide failure ledger.
// Zero times mean "never set".
type LedgerRecord struct {
	GenericCount         int
	GenericWindowStart   time.Time
	TransportCount       int
	TransportWindowStart time.Time
	RecentIssueAt        time.Time
}

// LedgerRepo persists the single failure-ledger row.
type LedgerRepo interface {
	// Load returns the stored ledger. found is false when nothing was saved yet.
	Load(ctx context.Context) (rec LedgerRecord, found bool, err error)

	// Save replaces the stored ledger.
	Save(ctx context.Context, rec LedgerRecord) error
}

// LLMRequestEventData captures the data for a single upstream LLM call.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	Transport    string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLMRequestEventData with its identity.
type LLMRequestEvent struct {
	LLMRequestEventData
	ID        int
	Sequence  int64
	Timestamp time.Time
}

// PurposeUsage aggregates calls and tokens for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event by ID, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates usage grouped by purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
}
