package testsupport

import (
	"path/filepath"
	"testing"

	"papermill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkingDir = filepath.Join(base, "working")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.MinerU.APIToken = "test-token"
	cfg.LLM.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPollBudget overrides the extraction poll interval and attempt budget.
func WithPollBudget(intervalSeconds, attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.MinerU.PollInterval = intervalSeconds
		cfg.MinerU.MaxPollAttempts = attempts
	}
}

// WithMaxConcurrentSections overrides the analysis fan-out cap.
func WithMaxConcurrentSections(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analysis.MaxConcurrentSections = n
	}
}
