package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values supplied on the command line. These sit above
// both the config file and the environment in the override chain; an empty
// string means the flag was not set.
type CLIOverrides struct {
	ConfigPath         string
	StorageBucket      string
	InternalBucket     string
	SyncMetadataPrefix string
	LocalDB            string
	SignatureFolder    string
	SyncInterval       string
	ActionTimeout      string
	LogLevel           string
	LogFormat          string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions (unknown.go).
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: users can start without creating a config file.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve loads configuration and applies the two-layer override chain:
// config file (or defaults) -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, error) {
	cfgPath := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyEnvOverrides(cfg, env)
	applyCLIOverrides(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyCLIOverrides layers non-empty CLI flag values onto cfg, taking
// precedence over both the config file and the environment.
func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.StorageBucket != "" {
		cfg.StorageBucket = cli.StorageBucket
	}

	if cli.InternalBucket != "" {
		cfg.InternalBucket = cli.InternalBucket
	}

	if cli.SyncMetadataPrefix != "" {
		cfg.SyncMetadataPrefix = cli.SyncMetadataPrefix
	}

	if cli.LocalDB != "" {
		cfg.LocalDB = cli.LocalDB
	}

	if cli.SignatureFolder != "" {
		cfg.SignatureFolder = cli.SignatureFolder
	}

	if cli.SyncInterval != "" {
		cfg.SyncInterval = cli.SyncInterval
	}

	if cli.ActionTimeout != "" {
		cfg.ActionTimeout = cli.ActionTimeout
	}

	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
}

// ResolveConfigPath determines the config file path using the priority
// CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	cfgPath := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
		source = "env"
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", cfgPath, "source", source)

	return cfgPath
}
