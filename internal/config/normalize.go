package config

import (
	"os"
	"strings"
)

// normalize expands paths and applies environment fallbacks after decoding.
func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Cache.Path} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.OMDb.APIKey = strings.TrimSpace(c.OMDb.APIKey)
	if c.OMDb.APIKey == "" {
		c.OMDb.APIKey = strings.TrimSpace(os.Getenv("OMDB_API_KEY"))
	}
	c.OMDb.BaseURL = strings.TrimSpace(c.OMDb.BaseURL)
	if c.OMDb.BaseURL == "" {
		c.OMDb.BaseURL = defaultOMDbBaseURL
	}

	if c.OMDb.TimeoutSeconds <= 0 {
		c.OMDb.TimeoutSeconds = defaultOMDbTimeout
	}
	if c.OMDb.CallBudget <= 0 {
		c.OMDb.CallBudget = defaultOMDbCallBudget
	}
	if c.OMDb.MaxAttempts <= 0 {
		c.OMDb.MaxAttempts = defaultOMDbMaxAttempts
	}
	if c.OMDb.PacingMillis < 0 {
		c.OMDb.PacingMillis = defaultOMDbPacingMillis
	}
	if c.Cache.FlushEvery <= 0 {
		c.Cache.FlushEvery = defaultCacheFlushEvery
	}
	if c.Load.BatchSize <= 0 {
		c.Load.BatchSize = defaultBatchSize
	}
	if c.Load.RatingsChunkSize <= 0 {
		c.Load.RatingsChunkSize = defaultRatingsChunkSize
	}
	if c.Load.ReenrichAfterDays < 0 {
		c.Load.ReenrichAfterDays = 0
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
