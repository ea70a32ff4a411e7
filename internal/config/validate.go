package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration values that would otherwise fail at an
// awkward point deep inside the daemon. Credentials are not required here;
// clients report missing credentials when first used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.WorkingDir) == "" {
		return fmt.Errorf("config: paths.working_dir is required")
	}
	if bind := strings.TrimSpace(c.Paths.APIBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("config: paths.api_bind %q is not host:port: %w", bind, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format %q is not console or json", c.Logging.Format)
	}
	return nil
}
