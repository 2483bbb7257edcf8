// Package paths resolves the agent's data directory and the file paths
// derived from it.
package paths

import (
	"os"
	"path/filepath"
)

const (
	productDirName  = "trapd-agent"
	dataDirOverride = "DATA_DIR_OVERRIDE"
)

// Paths enumerates every file the agent reads or writes under its data
// directory.
type Paths struct {
	DataDir      string
	ConfigFile   string
	APIKeyFile   string
	QueueFile    string
	LogFile      string
	DeviceIDFile string
}

// Resolve determines the data directory (DATA_DIR_OVERRIDE, or the
// current user's configuration directory from os.UserConfigDir joined with
// the product name) and creates it, along with its secrets/ subdirectory,
// if missing. The default is a per-user location, not a machine-wide one.
func Resolve() (Paths, error) {
	dataDir := os.Getenv(dataDirOverride)
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, err
		}
		dataDir = filepath.Join(base, productDirName)
	}

	secretsDir := filepath.Join(dataDir, "secrets")
	if err := os.MkdirAll(secretsDir, 0o700); err != nil {
		return Paths{}, err
	}

	return Paths{
		DataDir:      dataDir,
		ConfigFile:   filepath.Join(dataDir, "config.json"),
		APIKeyFile:   filepath.Join(secretsDir, "api_key.enc"),
		QueueFile:    filepath.Join(dataDir, "queue.db"),
		LogFile:      filepath.Join(dataDir, "agent.log"),
		DeviceIDFile: filepath.Join(dataDir, "device_id.txt"),
	}, nil
}
