package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment
// variables first. Environment variables:
//   - DUGSI_CONFIG_PATH: config file location (default: ~/.config/dugsi.toml)
//   - DUGSI_HOME: base directory for dugsi data (default: ~/.local/share/dugsi)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking DUGSI_CONFIG_PATH
// first, then falling back to the default ~/.config/dugsi.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DUGSI_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dugsi.toml"), nil
}

// getBaseDir returns the base directory for dugsi data, checking DUGSI_HOME
// first, then falling back to the XDG default ~/.local/share/dugsi.
func getBaseDir() (string, error) {
	if path := os.Getenv("DUGSI_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dugsi"), nil
}
