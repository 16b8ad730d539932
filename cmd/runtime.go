package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/resilience"
	"github.com/abhisek/examgen/internal/store"
)

// runtime is the wired generator stack shared by generate and serve.
type runtime struct {
	store     *store.Store
	ledger    *resilience.Ledger
	breaker   *resilience.Breaker
	bank      *examgen.EmbeddedBank
	generator *examgen.Generator
	provider  string
}

// resolveLLMConfig reads EXAMGEN_* settings, falling back to well-known
// provider keys when no provider was chosen explicitly.
func resolveLLMConfig(providerFlag string) llm.Config {
	cfg := llm.ConfigFromEnv()
	if os.Getenv("EXAMGEN_LLM_PROVIDER") == "" {
		if found, ok := llm.DiscoverConfig(); ok {
			cfg = found
		}
	}
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	return cfg
}

func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	logger := slog.Default()

	st, err := openStore(cmd)
	if err != nil {
		return nil, err
	}

	ledger := resilience.NewLedger(
		resilience.WithPersistence(st.LedgerRepo()),
		resilience.WithLogger(logger),
	)
	ledger.Load(ctx)

	providerFlag, _ := cmd.Flags().GetString("provider")
	cfg := resolveLLMConfig(providerFlag)

	var inner http.RoundTripper = http.DefaultTransport
	if cfg.Transport.Telemetry {
		inner = resilience.NewInstrumentedTransport(inner)
	}
	primary := resilience.NewPrimaryTransport(inner, cfg.Timeout)

	var bypass resilience.Transport
	if !cfg.Transport.DisableBypass {
		bypass = resilience.NewBypassTransport(cfg.BypassTimeout)
	}

	detector := resilience.NewDetector(resilience.DetectorConfig{
		Compromised:   cfg.Transport.Compromised,
		DisableBypass: cfg.Transport.DisableBypass,
	}, primary, bypass, ledger, logger)
	breaker := resilience.NewBreaker(ledger, resilience.DefaultBreakerConfig(), detector.BypassAvailable)
	router := resilience.NewRouter(primary, bypass)

	bank, err := examgen.LoadEmbeddedBank()
	if err != nil {
		st.Close()
		return nil, err
	}

	deps := examgen.Deps{
		Ledger:   ledger,
		Breaker:  breaker,
		Detector: detector,
		Fallback: examgen.NewFallback(bank),
		Logger:   logger,
	}
	if err := cfg.Validate(); err != nil {
		deps.ProviderErr = err
	} else {
		deps.Provider, deps.ProviderErr = llm.NewProvider(ctx, cfg, router.Client(), st.EventRepo())
	}

	return &runtime{
		store:     st,
		ledger:    ledger,
		breaker:   breaker,
		bank:      bank,
		generator: examgen.New(deps, examgen.DefaultConfig()),
		provider:  cfg.Provider,
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}
