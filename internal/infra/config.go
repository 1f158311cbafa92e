package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration: where state lives and how the
// CLI reaches the daemon. Runtime settings (durations, schedule,
// blocklist) live in the state store, not here.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	SocketPath string `yaml:"socket_path"`
	LogPath    string `yaml:"log_path"`

	// HistoryRetentionDays bounds how far back session history and
	// distraction events are kept.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// DefaultConfig returns the built-in paths under the user's home.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/var/tmp"
	}
	base := filepath.Join(home, ".sitemon")
	return Config{
		DataDir:              base,
		SocketPath:           filepath.Join(base, "sitemon.sock"),
		LogPath:              filepath.Join(base, "sitemon.log"),
		HistoryRetentionDays: 90,
	}
}

// LoadConfig reads a YAML config file, filling absent fields from
// defaults. A missing file is not an error; defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(cfg.DataDir, "sitemon.sock")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.DataDir, "sitemon.log")
	}
	if cfg.HistoryRetentionDays <= 0 {
		cfg.HistoryRetentionDays = defaults.HistoryRetentionDays
	}
	return cfg, nil
}
