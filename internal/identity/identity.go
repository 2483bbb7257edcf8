// Package identity resolves and persists the sensor's stable per-host
// identifier.
package identity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const overrideEnvVar = "SENSOR_ID_OVERRIDE"

// Source records where a SensorID came from, for diagnostic logging.
type Source string

const (
	SourceEnv                 Source = "env"
	SourceDeviceIDFile        Source = "device_id_file"
	SourceGeneratedFallback   Source = "generated_fallback"
	SourceGeneratedNew        Source = "generated_new"
	SourceGeneratedMemoryOnly Source = "generated_memory_only"
)

// Resolution is the outcome of resolving a sensor id.
type Resolution struct {
	SensorID string
	Source   Source
}

// Resolve determines the sensor id for this host, following the
// env-override / persisted-file / generate-and-persist precedence.
func Resolve(dataDir string, log *zap.Logger) Resolution {
	if v := strings.TrimSpace(os.Getenv(overrideEnvVar)); v != "" {
		return Resolution{SensorID: v, Source: SourceEnv}
	}

	idPath := filepath.Join(dataDir, "device_id.txt")

	if contents, err := os.ReadFile(idPath); err == nil {
		id := strings.TrimSpace(string(contents))
		if id != "" {
			return Resolution{SensorID: id, Source: SourceDeviceIDFile}
		}
	} else if !os.IsNotExist(err) {
		if log != nil {
			log.Warn("device_id.txt exists but could not be read", zap.Error(err))
		}
		return Resolution{SensorID: generate(), Source: SourceGeneratedFallback}
	}

	id := generate()
	if err := os.WriteFile(idPath, []byte(id), 0o644); err != nil {
		if log != nil {
			log.Warn("failed to persist generated sensor id", zap.Error(err))
		}
		return Resolution{SensorID: id, Source: SourceGeneratedMemoryOnly}
	}
	return Resolution{SensorID: id, Source: SourceGeneratedNew}
}

// generate returns a new 32-hex-character id with no hyphens.
func generate() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
