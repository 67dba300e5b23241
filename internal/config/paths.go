package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the files kept in a data directory.
type Paths struct {
	DataDir string
}

// DefaultDataDir returns $STICKIES_DATA_DIR, or stickies under the user
// config directory.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("STICKIES_DATA_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, "stickies"), nil
}

func (p Paths) ConfigFile() string {
	return filepath.Join(p.DataDir, "config.toml")
}

func (p Paths) SettingsFile() string {
	return filepath.Join(p.DataDir, "settings.json")
}

func (p Paths) WorkspacesFile() string {
	return filepath.Join(p.DataDir, "workspaces.cbor")
}

// SocketFile resolves socket against the data directory unless absolute.
func (p Paths) SocketFile(socket string) string {
	if filepath.IsAbs(socket) {
		return socket
	}
	return filepath.Join(p.DataDir, socket)
}
