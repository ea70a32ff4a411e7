package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.MinerU.PollInterval != defaultPollInterval {
		t.Fatalf("expected default poll interval, got %d", cfg.MinerU.PollInterval)
	}
	if cfg.Analysis.MaxConcurrentSections != defaultMaxConcurrent {
		t.Fatalf("expected default concurrency, got %d", cfg.Analysis.MaxConcurrentSections)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[paths]",
		`working_dir = "` + filepath.Join(dir, "work") + `"`,
		"[mineru]",
		"poll_interval = 2",
		"[analysis]",
		"max_concurrent_sections = 3",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.MinerU.PollInterval != 2 {
		t.Fatalf("expected poll interval 2, got %d", cfg.MinerU.PollInterval)
	}
	if cfg.Analysis.MaxConcurrentSections != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.Analysis.MaxConcurrentSections)
	}
	if cfg.MinerU.MaxPollAttempts != defaultMaxPollAttempts {
		t.Fatalf("expected default poll attempts, got %d", cfg.MinerU.MaxPollAttempts)
	}
}

func TestValidateRejectsBadBind(t *testing.T) {
	cfg := Default()
	cfg.Paths.WorkingDir = t.TempDir()
	cfg.Paths.APIBind = "not-a-bind"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad bind address")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Paths.WorkingDir = t.TempDir()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown log format")
	}
}

func TestNormalizeTrimsAndBackfills(t *testing.T) {
	cfg := Default()
	cfg.Paths.WorkingDir = t.TempDir()
	cfg.ObjectStore.Endpoint = "https://oss.example.com/ "
	cfg.ObjectStore.Prefix = "/docs/"
	cfg.MinerU.PollInterval = -1
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.ObjectStore.Endpoint != "https://oss.example.com" {
		t.Fatalf("endpoint not normalized: %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Prefix != "docs" {
		t.Fatalf("prefix not normalized: %q", cfg.ObjectStore.Prefix)
	}
	if cfg.MinerU.PollInterval != defaultPollInterval {
		t.Fatalf("poll interval not backfilled: %d", cfg.MinerU.PollInterval)
	}
}
