package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvConfigDir = "COMMANDPOST_CONFIG_DIR"
	appDirName   = "commandpost"
	databaseName = "commandpost.db"
)

// Dir is the configuration directory: COMMANDPOST_CONFIG_DIR when set,
// otherwise commandpost under the user config dir, falling back to the home
// directory and finally the working directory.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, appDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "."+appDirName)
	}
	return "." + appDirName
}

// DatabasePath resolves the SQLite file for settings. Relative paths are
// taken from the config directory.
func DatabasePath(s Settings) string {
	p := strings.TrimSpace(s.Database)
	if p == "" {
		return filepath.Join(Dir(), databaseName)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(Dir(), p)
}
