package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	// WorkingDir is the root under which the record file, downloaded
	// archives, extracted markdown, and analysis artifacts live.
	WorkingDir string `toml:"working_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// ObjectStore contains configuration for the OSS-compatible object store
// that holds uploaded source PDFs.
type ObjectStore struct {
	Endpoint        string `toml:"endpoint"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	RequestTimeout  int    `toml:"request_timeout"`
	Prefix          string `toml:"prefix"`
}

// MinerU contains configuration for the external document-parsing service.
type MinerU struct {
	BaseURL         string `toml:"base_url"`
	APIToken        string `toml:"api_token"`
	ModelVersion    string `toml:"model_version"`
	PollInterval    int    `toml:"poll_interval"`
	MaxPollAttempts int    `toml:"max_poll_attempts"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// LLM contains connection settings for the translation model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Analysis contains configuration for the section-translation fan-out.
type Analysis struct {
	MaxConcurrentSections int `toml:"max_concurrent_sections"`
}

// Upload contains limits applied to incoming PDF uploads.
type Upload struct {
	MaxSizeMiB int `toml:"max_size_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for papermill.
//
// Configuration sections by subsystem:
//   - Paths: working root, log directory, and API bind address
//   - ObjectStore: OSS-compatible store for uploaded source PDFs
//   - MinerU: external parsing service and poll budget
//   - LLM: chat-completion settings for section translation
//   - Analysis: translation fan-out limits
//   - Upload: incoming file limits
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	ObjectStore ObjectStore `toml:"object_store"`
	MinerU      MinerU      `toml:"mineru"`
	LLM         LLM         `toml:"llm"`
	Analysis    Analysis    `toml:"analysis"`
	Upload      Upload      `toml:"upload"`
	Logging     Logging     `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/papermill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path, the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("papermill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the working and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RecordFilePath returns the location of the paper record file.
func (c *Config) RecordFilePath() string {
	return filepath.Join(c.Paths.WorkingDir, "papers.json")
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", pathValue, err)
	}
	return abs, nil
}
