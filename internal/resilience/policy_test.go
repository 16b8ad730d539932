package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/abhisek/examgen/internal/llm"
)

func TestPolicy_OnFailure(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		attempt int
		kind    FailureKind
		want    Step
	}{
		{"network breaks immediately", 1, FailureNetwork, Step{State: StateFallback, Record: KindTransport}},
		{"blocked breaks immediately", 1, FailureBlocked, Step{State: StateFallback, Record: KindTransport}},
		{"compromised books nothing", 1, FailureCompromised, Step{State: StateFallback}},
		{"rate limit breaks immediately", 1, FailureRateLimit, Step{State: StateFallback, Record: KindGeneric}},
		{"first timeout backs off", 1, FailureTimeout, Step{State: StateBackoff, Wait: 2 * time.Second, Record: KindGeneric}},
		{"second timeout falls back", 2, FailureTimeout, Step{State: StateFallback, Record: KindGeneric}},
		{"malformed retries", 1, FailureMalformed, Step{State: StateBackoff, Wait: 500 * time.Millisecond, Record: KindGeneric}},
		{"malformed retries again", 2, FailureMalformed, Step{State: StateBackoff, Wait: 500 * time.Millisecond, Record: KindGeneric}},
		{"malformed exhausted", 3, FailureMalformed, Step{State: StateFallback, Record: KindGeneric}},
		{"other exhausted", 3, FailureOther, Step{State: StateFallback, Record: KindGeneric}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.OnFailure(tt.attempt, tt.kind); got != tt.want {
				t.Fatalf("OnFailure(%d, %s) = %+v, want %+v", tt.attempt, tt.kind, got, tt.want)
			}
		})
	}
}

func TestPolicy_SingleAttemptBudget(t *testing.T) {
	p := DefaultPolicy()
	p.MaxAttempts = 1

	if got := p.OnFailure(1, FailureTimeout); got.State != StateFallback {
		t.Fatalf("timeout with one attempt should fall back, got %+v", got)
	}
	if got := p.OnFailure(1, FailureMalformed); got.State != StateFallback {
		t.Fatalf("malformed with one attempt should fall back, got %+v", got)
	}
}

func TestPolicy_TimeoutBackoff(t *testing.T) {
	p := DefaultPolicy()
	want := map[int]time.Duration{
		0: 2 * time.Second,
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 8 * time.Second,
		9: 8 * time.Second,
	}
	for attempt, d := range want {
		if got := p.TimeoutBackoff(attempt); got != d {
			t.Errorf("TimeoutBackoff(%d) = %s, want %s", attempt, got, d)
		}
	}
}

func TestPolicy_OnSuccess(t *testing.T) {
	if got := DefaultPolicy().OnSuccess(); got.State != StateDone || got.Record != KindNone {
		t.Fatalf("unexpected success step %+v", got)
	}
}

type fakeNetErr struct{ timeout bool }

func (e fakeNetErr) Error() string   { return "net" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

var _ net.Error = fakeNetErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{&llm.ErrTransportBlocked{Reason: "empty"}, FailureBlocked},
		{fmt.Errorf("attempt: %w", &llm.ErrNetwork{Err: errors.New("refused")}), FailureNetwork},
		{&llm.ErrTimeout{Err: context.DeadlineExceeded}, FailureTimeout},
		{context.DeadlineExceeded, FailureTimeout},
		{&llm.ErrRateLimit{Err: errors.New("429")}, FailureRateLimit},
		{errors.New("upstream said: Too Many Requests"), FailureRateLimit},
		{&llm.ErrInvalidResponse{Err: errors.New("no choices")}, FailureMalformed},
		{&llm.ErrMaxTokensExceeded{}, FailureMalformed},
		{&llm.ErrProviderUnavailable{StatusCode: 503}, FailureOther},
		{fakeNetErr{timeout: true}, FailureTimeout},
		{fakeNetErr{}, FailureNetwork},
		{errors.New("boom"), FailureOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
