package config

const (
	defaultWorkingDir      = "~/.local/share/papermill/working"
	defaultLogDir          = "~/.local/share/papermill/logs"
	defaultAPIBind         = "127.0.0.1:7397"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultOSSTimeout      = 30
	defaultOSSPrefix       = "papers"
	defaultMinerUBaseURL   = "https://mineru.net/api/v4"
	defaultModelVersion    = "vlm"
	defaultPollInterval    = 10
	defaultMaxPollAttempts = 300
	defaultDownloadTimeout = 300
	defaultLLMBaseURL      = "https://api.deepseek.com"
	defaultLLMModel        = "deepseek-chat"
	defaultLLMTimeout      = 600
	defaultMaxConcurrent   = 5
	defaultMaxUploadMiB    = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkingDir: defaultWorkingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		ObjectStore: ObjectStore{
			RequestTimeout: defaultOSSTimeout,
			Prefix:         defaultOSSPrefix,
		},
		MinerU: MinerU{
			BaseURL:         defaultMinerUBaseURL,
			ModelVersion:    defaultModelVersion,
			PollInterval:    defaultPollInterval,
			MaxPollAttempts: defaultMaxPollAttempts,
			DownloadTimeout: defaultDownloadTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Analysis: Analysis{
			MaxConcurrentSections: defaultMaxConcurrent,
		},
		Upload: Upload{
			MaxSizeMiB: defaultMaxUploadMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
