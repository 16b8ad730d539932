package examgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/resilience"
)

func validResponse(stem string) llm.MockResponse {
	body, _ := json.Marshal(map[string]any{
		"enunciado":   stem,
		"opciones":    []string{"Uno", "Dos", "Tres", "Cuatro"},
		"correcta":    "B",
		"explicacion": "Porque la segunda es la correcta.",
	})
	return llm.MockResponse{Content: body}
}

func failure(err error) llm.MockResponse {
	return llm.MockResponse{Err: err}
}

type harness struct {
	gen    *Generator
	mock   *llm.MockProvider
	ledger *resilience.Ledger

	mu     sync.Mutex
	sleeps []time.Duration
}

func (h *harness) waits() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

type harnessOpts struct {
	detector resilience.DetectorConfig
	bypass   bool
}

func newHarness(t *testing.T, opts harnessOpts, responses ...llm.MockResponse) *harness {
	t.Helper()

	h := &harness{
		mock:   llm.NewMockProvider(responses...),
		ledger: resilience.NewLedger(),
	}

	var bypass resilience.Transport
	if opts.bypass {
		bypass = resilience.NewBypassTransport(0)
	}
	detector := resilience.NewDetector(opts.detector, resilience.NewPrimaryTransport(nil, 0), bypass, h.ledger, nil)

	h.gen = New(Deps{
		Provider: h.mock,
		Ledger:   h.ledger,
		Detector: detector,
		Breaker:  resilience.NewBreaker(h.ledger, resilience.DefaultBreakerConfig(), detector.BypassAvailable),
		Fallback: NewFallback(loadBank(t)),
	}, DefaultConfig())
	h.gen.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	return h
}

func requireAllValid(t *testing.T, qs []Question, count int) {
	t.Helper()
	require.Len(t, qs, count)
	for _, q := range qs {
		requireValid(t, q)
	}
}

func TestGenerateQuestions_HappyPath(t *testing.T) {
	h := newHarness(t, harnessOpts{},
		validResponse("¿Primera?"), validResponse("¿Segunda?"), validResponse("¿Tercera?"))

	var progress [][2]int
	qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 3, func(cur, total int) {
		progress = append(progress, [2]int{cur, total})
	})
	require.NoError(t, err)
	requireAllValid(t, qs, 3)

	for i, q := range qs {
		assert.Equal(t, SourceLLM, q.Source, "item %d", i)
		assert.Equal(t, dihKey, q.TopicID)
		assert.Equal(t, LetterB, q.CorrectAnswer)
	}
	assert.Equal(t, "¿Segunda?", qs[1].Stem)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, h.waits())

	require.Equal(t, 3, h.mock.CallCount())
	assert.Equal(t, []string{resilience.TransportPrimary, resilience.TransportPrimary, resilience.TransportPrimary}, h.mock.Transports)
	assert.Contains(t, h.mock.Calls[2].Messages[0].Content, "¿Primera?")
	assert.Contains(t, h.mock.Calls[2].Messages[0].Content, "¿Segunda?")
	assert.Same(t, CandidateSchema, h.mock.Calls[0].Schema)
}

func TestGenerateQuestions_OpenCircuitMakesNoCalls(t *testing.T) {
	tests := []struct {
		name   string
		kind   resilience.LedgerKind
		n      int
		bypass bool
	}{
		{"generic threshold", resilience.KindGeneric, 5, true},
		{"transport threshold without bypass", resilience.KindTransport, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOpts{bypass: tt.bypass}, validResponse("¿Nunca?"))
			for i := 0; i < tt.n; i++ {
				h.ledger.RecordFailure(tt.kind)
			}

			qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 4, nil)
			require.NoError(t, err)
			requireAllValid(t, qs, 4)

			assert.Zero(t, h.mock.CallCount())
			for _, q := range qs {
				assert.Equal(t, SourceBank, q.Source)
			}
		})
	}
}

func TestGenerateQuestions_TransportFailuresWithBypassStayClosed(t *testing.T) {
	h := newHarness(t, harnessOpts{bypass: true}, validResponse("¿Pasa?"))
	for i := 0; i < 3; i++ {
		h.ledger.RecordFailure(resilience.KindTransport)
	}
	qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, SourceLLM, qs[0].Source)
	assert.Equal(t, 1, h.mock.CallCount())
}

func TestGenerateQuestions_ConfigError(t *testing.T) {
	for name, deps := range map[string]Deps{
		"provider error": {Provider: llm.NewMockProvider(), ProviderErr: errors.New("EXAMGEN_OPENAI_API_KEY is required")},
		"no provider":    {},
	} {
		t.Run(name, func(t *testing.T) {
			deps.Fallback = NewFallback(loadBank(t))
			g := New(deps, DefaultConfig())

			var calls int
			qs, err := g.GenerateQuestions(context.Background(), "astrofisica", "Astrofísica", 3, func(int, int) { calls++ })

			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			requireAllValid(t, qs, 3)
			assert.Equal(t, 3, calls)
			for _, q := range qs {
				assert.Equal(t, SourceTemplate, q.Source)
			}
		})
	}
}

func TestGenerateQuestions_RetryPaths(t *testing.T) {
	timeout := &llm.ErrTimeout{Err: context.DeadlineExceeded}
	tests := []struct {
		name      string
		responses []llm.MockResponse
		source    Source
		calls     int
		waits     []time.Duration
		generic   int
		transport int
	}{
		{
			name:      "malformed then success",
			responses: []llm.MockResponse{{Content: json.RawMessage(`no json here`)}, validResponse("¿Bien?")},
			source:    SourceLLM,
			calls:     2,
			waits:     []time.Duration{500 * time.Millisecond},
		},
		{
			name:      "unnormalisable then success",
			responses: []llm.MockResponse{{Content: json.RawMessage(`{"opciones": ["a", "b", "c", "d"]}`)}, validResponse("¿Bien?")},
			source:    SourceLLM,
			calls:     2,
			waits:     []time.Duration{500 * time.Millisecond},
		},
		{
			name:      "malformed three times",
			responses: []llm.MockResponse{failure(&llm.ErrInvalidResponse{}), failure(&llm.ErrInvalidResponse{}), failure(&llm.ErrInvalidResponse{})},
			source:    SourceBank,
			calls:     3,
			waits:     []time.Duration{500 * time.Millisecond, 500 * time.Millisecond},
			generic:   3,
		},
		{
			name:      "timeout twice",
			responses: []llm.MockResponse{failure(timeout), failure(timeout), validResponse("¿Tarde?")},
			source:    SourceBank,
			calls:     2,
			waits:     []time.Duration{2 * time.Second},
			generic:   2,
		},
		{
			name:      "network error",
			responses: []llm.MockResponse{failure(&llm.ErrNetwork{Err: errors.New("connection refused")}), validResponse("¿Nunca?")},
			source:    SourceBank,
			calls:     1,
			transport: 1,
		},
		{
			name:      "blocked",
			responses: []llm.MockResponse{failure(&llm.ErrTransportBlocked{Reason: "empty body"})},
			source:    SourceBank,
			calls:     1,
			transport: 1,
		},
		{
			name:      "rate limited",
			responses: []llm.MockResponse{failure(&llm.ErrRateLimit{RetryAfter: time.Minute}), validResponse("¿Nunca?")},
			source:    SourceBank,
			calls:     1,
			generic:   1,
		},
		{
			name:      "too many requests message",
			responses: []llm.MockResponse{failure(fmt.Errorf("upstream: Too Many Requests"))},
			source:    SourceBank,
			calls:     1,
			generic:   1,
		},
		{
			name:      "server error then success",
			responses: []llm.MockResponse{failure(&llm.ErrProviderUnavailable{StatusCode: 502}), validResponse("¿Bien?")},
			source:    SourceLLM,
			calls:     2,
			waits:     []time.Duration{500 * time.Millisecond},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOpts{bypass: true}, tt.responses...)

			qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
			require.NoError(t, err)
			requireAllValid(t, qs, 1)

			assert.Equal(t, tt.source, qs[0].Source)
			assert.Equal(t, tt.calls, h.mock.CallCount())
			if tt.waits == nil {
				assert.Empty(t, h.waits())
			} else {
				assert.Equal(t, tt.waits, h.waits())
			}
			assert.Equal(t, tt.generic, h.ledger.Count(resilience.KindGeneric), "generic")
			assert.Equal(t, tt.transport, h.ledger.Count(resilience.KindTransport), "transport")
		})
	}
}

func TestGenerateQuestions_PreferFallbackLimitsAttempts(t *testing.T) {
	h := newHarness(t, harnessOpts{}, failure(&llm.ErrInvalidResponse{}), validResponse("¿Nunca?"))
	h.ledger.RecordFailure(resilience.KindGeneric)

	qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceBank, qs[0].Source)
	assert.Equal(t, 1, h.mock.CallCount())
}

func TestGenerateQuestions_CompromisedTransport(t *testing.T) {
	t.Run("no bypass", func(t *testing.T) {
		h := newHarness(t, harnessOpts{detector: resilience.DetectorConfig{Compromised: true}}, validResponse("¿Nunca?"))

		qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
		require.NoError(t, err)
		assert.Equal(t, SourceBank, qs[0].Source)
		assert.Zero(t, h.mock.CallCount())
		assert.Equal(t, 1, h.ledger.Count(resilience.KindTransport))
	})

	t.Run("bypass", func(t *testing.T) {
		h := newHarness(t, harnessOpts{detector: resilience.DetectorConfig{Compromised: true}, bypass: true}, validResponse("¿Por el otro lado?"))

		qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
		require.NoError(t, err)
		assert.Equal(t, SourceLLM, qs[0].Source)
		assert.Equal(t, []string{resilience.TransportBypass}, h.mock.Transports)
	})
}

func TestGenerateQuestions_Cancelled(t *testing.T) {
	h := newHarness(t, harnessOpts{}, validResponse("¿Nunca?"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	qs, err := h.gen.GenerateQuestions(ctx, dihKey, "Derechos Humanos", 3, nil)
	require.NoError(t, err)
	requireAllValid(t, qs, 3)
	assert.Zero(t, h.mock.CallCount())
	assert.Empty(t, h.waits())
	assert.Zero(t, h.ledger.RecentFailures())
}

func TestGenerateQuestions_AttemptHonoursTransportTimeout(t *testing.T) {
	h := newHarness(t, harnessOpts{},
		llm.MockResponse{Content: validResponse("x").Content, Delay: time.Second},
		llm.MockResponse{Content: validResponse("x").Content, Delay: time.Second},
	)
	h.gen.detector = resilience.NewDetector(resilience.DetectorConfig{}, resilience.NewPrimaryTransport(nil, 20*time.Millisecond), nil, h.ledger, nil)

	qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceBank, qs[0].Source)
	assert.Equal(t, 2, h.mock.CallCount())
	assert.Equal(t, []time.Duration{2 * time.Second}, h.waits())
}

func TestGenerator_ItemDelaySlowsDownAfterFailures(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	assert.Equal(t, 1500*time.Millisecond, h.gen.itemDelay())

	for i := 0; i < 3; i++ {
		h.ledger.RecordFailure(resilience.KindGeneric)
	}
	assert.Equal(t, 3*time.Second, h.gen.itemDelay())
}

func TestGenerateQuestions_ZeroCount(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	qs, err := h.gen.GenerateQuestions(context.Background(), dihKey, "", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestGenerateQuestions_ConcurrentBatchesShareLedger(t *testing.T) {
	responses := make([]llm.MockResponse, 0, 8)
	for i := 0; i < 8; i++ {
		responses = append(responses, validResponse(fmt.Sprintf("¿Pregunta %d?", i)))
	}
	h := newHarness(t, harnessOpts{}, responses...)

	var wg sync.WaitGroup
	results := make([][]Question, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.gen.GenerateQuestions(context.Background(), dihKey, "Derechos Humanos", 2, nil)
		}(i)
	}
	wg.Wait()

	for _, qs := range results {
		requireAllValid(t, qs, 2)
	}
	assert.Equal(t, 8, h.mock.CallCount())
}
