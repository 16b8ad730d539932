package examgen

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/resilience"
)

// Deps are the collaborators of a Generator. Only Provider (or ProviderErr)
// is required; everything else gets an in-memory default.
type Deps struct {
	Provider llm.Provider

	// ProviderErr explains why Provider is nil, for example missing
	// credentials. It is surfaced as a *ConfigError.
	ProviderErr error

	Ledger   *resilience.Ledger
	Breaker  *resilience.Breaker
	Detector *resilience.Detector
	Fallback *Fallback
	Logger   *slog.Logger
}

// Generator produces batches of exam questions. Every item either comes
// from the model, normalised and validated, or from the fallback provider.
type Generator struct {
	provider  llm.Provider
	configErr error
	ledger    *resilience.Ledger
	breaker   *resilience.Breaker
	detector  *resilience.Detector
	fallback  *Fallback
	cfg       Config
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Generator.
func New(d Deps, cfg Config) *Generator {
	g := &Generator{
		provider: d.Provider,
		ledger:   d.Ledger,
		breaker:  d.Breaker,
		detector: d.Detector,
		fallback: d.Fallback,
		cfg:      cfg,
		logger:   d.Logger,
		sleep:    sleepContext,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}

	switch {
	case d.ProviderErr != nil:
		g.configErr = d.ProviderErr
		g.provider = nil
	case d.Provider == nil:
		g.configErr = errors.New("no LLM provider configured")
	}

	if g.ledger == nil {
		g.ledger = resilience.NewLedger(resilience.WithLogger(g.logger))
	}
	if g.detector == nil {
		g.detector = resilience.NewDetector(resilience.DetectorConfig{}, resilience.NewPrimaryTransport(nil, 0), nil, g.ledger, g.logger)
	}
	if g.breaker == nil {
		g.breaker = resilience.NewBreaker(g.ledger, resilience.DefaultBreakerConfig(), g.detector.BypassAvailable)
	}
	if g.fallback == nil {
		bank, err := LoadEmbeddedBank()
		if err != nil {
			g.logger.Warn("question bank unavailable, using templates only", "error", err)
			g.fallback = NewFallback(nil)
		} else {
			g.fallback = NewFallback(bank)
		}
	}
	return g
}

// GenerateQuestions returns exactly count questions for the topic. Items are
// produced one after another with a pause between them. onProgress, when
// set, is called after each item.
//
// The only error is a *ConfigError, returned together with a full batch of
// fallback questions when no provider is usable. Cancelling ctx stops all
// network use; the remaining items come from the fallback provider.
func (g *Generator) GenerateQuestions(ctx context.Context, topicID, topicName string, count int, onProgress ProgressFunc) ([]Question, error) {
	if count <= 0 {
		return []Question{}, nil
	}
	if topicName == "" {
		topicName = topicID
	}

	out := make([]Question, 0, count)
	progress := func() {
		if onProgress != nil {
			onProgress(len(out), count)
		}
	}

	if g.configErr != nil {
		g.logger.Warn("question generator not configured, serving fallback", "topic", topicID, "error", g.configErr)
		for i := 0; i < count; i++ {
			out = append(out, g.fallback.Provide(topicID, topicName, i))
			progress()
		}
		return out, &ConfigError{Err: g.configErr}
	}

	prior := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && ctx.Err() == nil {
			_ = g.sleep(ctx, g.itemDelay())
		}

		q := g.generateOne(ctx, GenerationRequest{
			TopicID:        topicID,
			TopicName:      topicName,
			QuestionIndex:  i,
			TotalRequested: count,
			PriorStems:     prior,
		})
		out = append(out, q)
		prior = append(prior, q.Stem)
		progress()
	}
	return out, nil
}

func (g *Generator) itemDelay() time.Duration {
	if g.ledger.RecentFailures() > g.cfg.SlowThreshold {
		return g.cfg.SlowItemDelay
	}
	return g.cfg.ItemDelay
}

// generateOne runs the retry loop for one item. It never fails.
func (g *Generator) generateOne(ctx context.Context, req GenerationRequest) Question {
	policy := g.cfg.Policy
	log := g.logger.With("topic", req.TopicID, "item", req.QuestionIndex+1)

	fallback := func(reason string) Question {
		log.Info("serving fallback question", "reason", reason)
		return g.fallback.Provide(req.TopicID, req.TopicName, req.QuestionIndex)
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fallback("cancelled")
		}

		d := g.breaker.Evaluate()
		if !d.Allow {
			return fallback(string(d.Reason))
		}
		if attempt == 1 && d.PreferFallback {
			policy.MaxAttempts = 1
		}

		q, kind, err := g.attempt(ctx, req)
		if kind == resilience.FailureNone {
			g.ledger.RecordSuccess()
			return q
		}
		if ctx.Err() != nil {
			return fallback("cancelled")
		}

		step := policy.OnFailure(attempt, kind)
		if step.Record != resilience.KindNone {
			g.ledger.RecordFailure(step.Record)
		}
		log.Warn("question attempt failed",
			"attempt", attempt,
			"kind", kind.String(),
			"next", step.State.String(),
			"wait", step.Wait,
			"error", err,
		)

		switch step.State {
		case resilience.StateFallback:
			return fallback(kind.String())
		case resilience.StateBackoff:
			if err := g.sleep(ctx, step.Wait); err != nil {
				return fallback("cancelled")
			}
		}
	}
}

// attempt makes one provider call over the transport the detector picks.
func (g *Generator) attempt(ctx context.Context, req GenerationRequest) (Question, resilience.FailureKind, error) {
	c := g.detector.Classify()
	if c.Compromised {
		return Question{}, resilience.FailureCompromised, &llm.ErrTransportBlocked{Reason: c.Reason}
	}

	ctx = llm.WithPurpose(llm.WithTransport(ctx, c.Transport.Name()), "question-gen")
	ctx, cancel := context.WithTimeout(ctx, c.Transport.Timeout())
	defer cancel()

	resp, err := g.provider.Generate(ctx, llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(req, g.cfg)},
		},
		Schema:      CandidateSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return Question{}, resilience.Classify(err), err
	}

	q, err := NormalizeJSON(resp.Content, req.TopicName)
	if err != nil {
		return Question{}, resilience.FailureMalformed, err
	}
	q.TopicID = req.TopicID
	return q, resilience.FailureNone, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
