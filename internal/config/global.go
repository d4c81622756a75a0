package config

import (
	"os"
	"path/filepath"
)

// GlobalConfigPath returns the user-wide config file, ~/.dmaker/config.yaml.
// Its values apply before the workspace file.
func GlobalConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".dmaker", "config.yaml"), nil
}

// EnsureDataDir creates the directory holding the executor database.
func EnsureDataDir(cfg *Config) error {
	dir := filepath.Dir(cfg.Executor.DBPath)
	return os.MkdirAll(dir, 0755)
}
