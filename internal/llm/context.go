package llm

import "context"

type contextKey string

const (
	purposeKey   contextKey = "llm_purpose"
	transportKey contextKey = "llm_transport"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithTransport selects the named HTTP transport ("primary" or "bypass")
// for requests made with ctx.
func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey, name)
}

// TransportFrom returns the transport name set by WithTransport, or "" if
// none was chosen.
func TransportFrom(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return ""
}
