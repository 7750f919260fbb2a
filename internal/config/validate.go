package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration consistency. It does not require an API key;
// enrichment is simply skipped when no key is available, matching the
// --no-enrich behavior.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		problems = append(problems, "cache.path must not be empty")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

// EnrichmentConfigured reports whether an OMDb API key is available.
func (c *Config) EnrichmentConfigured() bool {
	return strings.TrimSpace(c.OMDb.APIKey) != ""
}
