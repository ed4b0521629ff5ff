package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values from command-line flags, applied last.
type CLIOverrides struct {
	ConfigPath   string
	MirrorBase   string
	RootFolderID string
}

// Load reads and parses a TOML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports a zero-config
// first run where everything comes from environment variables and flags.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.MirrorBase != "" {
		cfg.Mirror.Base = env.MirrorBase
	}

	if env.RootFolderID != "" {
		cfg.Drive.RootFolderID = env.RootFolderID
	}

	if cli.MirrorBase != "" {
		cfg.Mirror.Base = cli.MirrorBase
	}

	if cli.RootFolderID != "" {
		cfg.Drive.RootFolderID = cli.RootFolderID
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field consistency of a resolved Config.
func Validate(cfg *Config) error {
	if cfg.Timeouts.SyncPerFileSecs <= 0 {
		return fmt.Errorf("config: sync_per_file_secs must be positive, got %d", cfg.Timeouts.SyncPerFileSecs)
	}

	if cfg.Timeouts.SyncPerDirSecs <= 0 {
		return fmt.Errorf("config: sync_per_dir_secs must be positive, got %d", cfg.Timeouts.SyncPerDirSecs)
	}

	if cfg.Timeouts.ResultPollSecs <= 0 {
		return fmt.Errorf("config: result_poll_secs must be positive, got %d", cfg.Timeouts.ResultPollSecs)
	}

	if cfg.Listing.MaxDepth <= 0 {
		return fmt.Errorf("config: max_depth must be positive, got %d", cfg.Listing.MaxDepth)
	}

	return nil
}
