package config

import (
	"fmt"
	"os"
)

// InitDataDir creates the data directory with default config.toml and an
// empty settings.json. Existing files are left untouched.
func InitDataDir(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	paths := Paths{DataDir: dataDir}

	if _, err := os.Stat(paths.ConfigFile()); os.IsNotExist(err) {
		if err := SaveConfig(dataDir, DefaultConfig()); err != nil {
			return fmt.Errorf("failed to save default config: %w", err)
		}
	}

	if _, err := os.Stat(paths.SettingsFile()); os.IsNotExist(err) {
		if err := os.WriteFile(paths.SettingsFile(), []byte("{}\n"), 0644); err != nil {
			return fmt.Errorf("failed to write settings.json: %w", err)
		}
	}

	return nil
}
