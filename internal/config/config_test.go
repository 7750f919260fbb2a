package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, _, exists, err := LoadFile(missing)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if cfg.Load.BatchSize != defaultBatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.Load.BatchSize)
	}
}

func TestLoadFileParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[load]\nbatch_size = 25\n\n[logging]\nformat = \"json\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config to be found")
	}
	if cfg.Load.BatchSize != 25 {
		t.Fatalf("expected batch_size override, got %d", cfg.Load.BatchSize)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad log format")
	}
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("OMDB_API_KEY", "from-env")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.OMDb.APIKey != "from-env" {
		t.Fatalf("expected env fallback, got %q", cfg.OMDb.APIKey)
	}
	if !cfg.EnrichmentConfigured() {
		t.Fatal("expected enrichment to be configured")
	}
}
