package agentconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trapd-io/trapd-agent/internal/logging"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidFile(t *testing.T) {
	path := writeConfig(t, `{"api_url":"https://intake.example.com","project_id":"proj-1","interval_seconds":30,"batch_size":50,"log_level":"Debug"}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://intake.example.com" || cfg.ProjectID != "proj-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.IntervalSeconds != 30 || cfg.BatchSize != 50 {
		t.Fatalf("unexpected clamp-free values: %+v", cfg)
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	t.Setenv("PROJECT_ID_OVERRIDE", "proj-env")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProjectID != "proj-env" {
		t.Fatalf("expected env override, got %q", cfg.ProjectID)
	}
	if cfg.IntervalSeconds != defaultIntervalSeconds || cfg.BatchSize != defaultBatchSize {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.LogLevel != logging.DefaultLevel {
		t.Fatalf("expected default log level, got %v", cfg.LogLevel)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("expected default api_url %q, got %q", defaultAPIURL, cfg.APIURL)
	}
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, `{not json`)
	t.Setenv("PROJECT_ID_OVERRIDE", "proj-env")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IntervalSeconds != defaultIntervalSeconds {
		t.Fatalf("expected default interval after malformed file, got %d", cfg.IntervalSeconds)
	}
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	path := writeConfig(t, `{"project_id":"p","interval_seconds":99999,"batch_size":-5,"log_level":"Bogus"}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IntervalSeconds != defaultIntervalSeconds {
		t.Fatalf("expected clamp to default interval, got %d", cfg.IntervalSeconds)
	}
	if cfg.BatchSize != defaultBatchSize {
		t.Fatalf("expected clamp to default batch size, got %d", cfg.BatchSize)
	}
	if cfg.LogLevel != logging.DefaultLevel {
		t.Fatalf("expected clamp to default log level, got %v", cfg.LogLevel)
	}
}

func TestLoadMissingProjectIDIsFatal(t *testing.T) {
	path := writeConfig(t, `{"api_url":"https://x.example.com"}`)

	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("expected ConfigError for missing project_id")
	}
	var cerr *ConfigError
	if ce, ok := err.(*ConfigError); ok {
		cerr = ce
	}
	if cerr == nil || cerr.Field != "project_id" {
		t.Fatalf("expected ConfigError on project_id, got %v", err)
	}
}

func TestEnvOverrideTakesPrecedenceOverFile(t *testing.T) {
	path := writeConfig(t, `{"api_url":"https://file.example.com","project_id":"file-proj"}`)
	t.Setenv("API_URL_OVERRIDE", "https://env.example.com")
	t.Setenv("PROJECT_ID_OVERRIDE", "env-proj")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://env.example.com" || cfg.ProjectID != "env-proj" {
		t.Fatalf("env override did not win: %+v", cfg)
	}
}
