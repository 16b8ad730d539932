package examgen

import (
	"time"

	"github.com/abhisek/examgen/internal/resilience"
)

// Config controls the behavior of the Generator.
type Config struct {
	// MaxTokens is the token budget for each model response.
	MaxTokens int

	// Temperature controls model output randomness (0.0-1.0).
	Temperature float64

	// ItemDelay is the pause between items of a batch.
	ItemDelay time.Duration

	// SlowItemDelay replaces ItemDelay when the ledger holds more than
	// SlowThreshold recent failures.
	SlowItemDelay time.Duration
	SlowThreshold int

	// MaxPriorStems caps how many earlier stems are listed in the prompt.
	MaxPriorStems int

	// Policy is the per-item retry budget.
	Policy resilience.Policy
}

// DefaultConfig returns a Config with recommended defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     700,
		Temperature:   0.7,
		ItemDelay:     1500 * time.Millisecond,
		SlowItemDelay: 3 * time.Second,
		SlowThreshold: 2,
		MaxPriorStems: 8,
		Policy:        resilience.DefaultPolicy(),
	}
}
