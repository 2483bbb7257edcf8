// Package agentconfig loads and validates the agent's configuration from a
// config.json file overlaid with environment variable overrides.
package agentconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/trapd-io/trapd-agent/internal/logging"
)

const (
	defaultAPIURL          = "https://api.trapd.io"
	defaultIntervalSeconds = 60
	defaultBatchSize       = 100
	minIntervalSeconds     = 10
	maxIntervalSeconds     = 3600
	minBatchSize           = 1
	maxBatchSize           = 1000
)

// ConfigError indicates missing or invalid required configuration,
// fatal at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agentconfig: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("agentconfig: %s is required", e.Field)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the agent's immutable, validated runtime configuration.
type Config struct {
	APIURL          string
	ProjectID       string
	IntervalSeconds int
	BatchSize       int
	LogLevel        logging.Level
}

// fileConfig mirrors config.json's on-disk shape.
type fileConfig struct {
	APIURL          string `json:"api_url"`
	ProjectID       string `json:"project_id"`
	IntervalSeconds int    `json:"interval_seconds"`
	BatchSize       int    `json:"batch_size"`
	LogLevel        string `json:"log_level"`
}

// Load reads configFile (tolerating absence or malformed content, in which
// case defaults apply and the problem is logged), applies environment
// overrides, clamps out-of-range values with a warning, and fails fatally
// if project_id is absent from every source.
func Load(configFile string, log *zap.Logger) (*Config, error) {
	fc := fileConfig{}

	if data, err := os.ReadFile(configFile); err == nil {
		if jsonErr := json.Unmarshal(data, &fc); jsonErr != nil {
			logWarn(log, "config.json is malformed, ignoring file contents", zap.Error(jsonErr))
			fc = fileConfig{}
		}
	} else if !os.IsNotExist(err) {
		logWarn(log, "config.json could not be read, using defaults", zap.Error(err))
	}

	cfg := &Config{
		APIURL:          fc.APIURL,
		ProjectID:       fc.ProjectID,
		IntervalSeconds: fc.IntervalSeconds,
		BatchSize:       fc.BatchSize,
		LogLevel:        logging.Level(fc.LogLevel),
	}

	if v := strings.TrimSpace(os.Getenv("API_URL_OVERRIDE")); v != "" {
		logWarn(log, "API_URL_OVERRIDE takes precedence over config.json", zap.String("value", v))
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PROJECT_ID_OVERRIDE")); v != "" {
		logWarn(log, "PROJECT_ID_OVERRIDE takes precedence over config.json", zap.String("value", v))
		cfg.ProjectID = v
	}

	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultAPIURL
	}

	if cfg.IntervalSeconds < minIntervalSeconds || cfg.IntervalSeconds > maxIntervalSeconds {
		if cfg.IntervalSeconds != 0 {
			logWarn(log, "interval_seconds out of range, clamping to default",
				zap.Int("value", cfg.IntervalSeconds), zap.Int("default", defaultIntervalSeconds))
		}
		cfg.IntervalSeconds = defaultIntervalSeconds
	}

	if cfg.BatchSize < minBatchSize || cfg.BatchSize > maxBatchSize {
		if cfg.BatchSize != 0 {
			logWarn(log, "batch_size out of range, clamping to default",
				zap.Int("value", cfg.BatchSize), zap.Int("default", defaultBatchSize))
		}
		cfg.BatchSize = defaultBatchSize
	}

	if !cfg.LogLevel.Valid() {
		if cfg.LogLevel != "" {
			logWarn(log, "log_level not recognized, clamping to default",
				zap.String("value", string(cfg.LogLevel)), zap.String("default", string(logging.DefaultLevel)))
		}
		cfg.LogLevel = logging.DefaultLevel
	}

	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, &ConfigError{Field: "project_id"}
	}

	return cfg, nil
}

func logWarn(log *zap.Logger, msg string, fields ...zap.Field) {
	if log != nil {
		log.Warn(msg, fields...)
	}
}
