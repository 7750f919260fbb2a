package config

const (
	defaultDataDir           = "~/.local/share/projector"
	defaultLogDir            = "~/.local/share/projector/logs"
	defaultCachePath         = "~/.cache/projector/omdb_cache.json"
	defaultOMDbBaseURL       = "https://www.omdbapi.com/"
	defaultOMDbTimeout       = 10
	defaultOMDbCallBudget    = 1000
	defaultOMDbMaxAttempts   = 3
	defaultOMDbPacingMillis  = 250
	defaultCacheFlushEvery   = 100
	defaultBatchSize         = 500
	defaultRatingsChunkSize  = 250000
	defaultReenrichAfterDays = 0
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		OMDb: OMDb{
			BaseURL:        defaultOMDbBaseURL,
			TimeoutSeconds: defaultOMDbTimeout,
			CallBudget:     defaultOMDbCallBudget,
			MaxAttempts:    defaultOMDbMaxAttempts,
			PacingMillis:   defaultOMDbPacingMillis,
		},
		Cache: Cache{
			Path:       defaultCachePath,
			FlushEvery: defaultCacheFlushEvery,
		},
		Load: Load{
			BatchSize:         defaultBatchSize,
			RatingsChunkSize:  defaultRatingsChunkSize,
			ReenrichAfterDays: defaultReenrichAfterDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
