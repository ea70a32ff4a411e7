package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkingDir, err = expandPath(c.Paths.WorkingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.ObjectStore.Endpoint = strings.TrimRight(strings.TrimSpace(c.ObjectStore.Endpoint), "/")
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	c.ObjectStore.Prefix = strings.Trim(strings.TrimSpace(c.ObjectStore.Prefix), "/")
	c.MinerU.BaseURL = strings.TrimRight(strings.TrimSpace(c.MinerU.BaseURL), "/")
	c.MinerU.APIToken = strings.TrimSpace(c.MinerU.APIToken)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)

	if c.ObjectStore.Prefix == "" {
		c.ObjectStore.Prefix = defaultOSSPrefix
	}
	if c.MinerU.PollInterval <= 0 {
		c.MinerU.PollInterval = defaultPollInterval
	}
	if c.MinerU.MaxPollAttempts <= 0 {
		c.MinerU.MaxPollAttempts = defaultMaxPollAttempts
	}
	if c.MinerU.DownloadTimeout <= 0 {
		c.MinerU.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Analysis.MaxConcurrentSections <= 0 {
		c.Analysis.MaxConcurrentSections = defaultMaxConcurrent
	}
	if c.Upload.MaxSizeMiB <= 0 {
		c.Upload.MaxSizeMiB = defaultMaxUploadMiB
	}
	return nil
}
