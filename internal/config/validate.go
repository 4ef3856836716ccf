package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	minSyncInterval  = 1 * time.Second
	minActionTimeout = 1 * time.Second
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateNonEmpty("storage_bucket", cfg.StorageBucket)...)
	errs = append(errs, validateNonEmpty("internal_bucket", cfg.InternalBucket)...)
	errs = append(errs, validateNonEmpty("sync_metadata_prefix", cfg.SyncMetadataPrefix)...)
	errs = append(errs, validateNonEmpty("local_db", cfg.LocalDB)...)
	errs = append(errs, validateNonEmpty("signature_folder", cfg.SignatureFolder)...)
	errs = append(errs, validateDurationMin("sync_interval", cfg.SyncInterval, minSyncInterval)...)
	errs = append(errs, validateDurationMin("action_timeout", cfg.ActionTimeout, minActionTimeout)...)
	errs = append(errs, validateLogLevel(cfg.LogLevel)...)
	errs = append(errs, validateLogFormat(cfg.LogFormat)...)

	return errors.Join(errs...)
}

func validateNonEmpty(field, value string) []error {
	if value == "" {
		return []error{fmt.Errorf("%s: must not be empty", field)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of text, json; got %q", format)}
	}

	return nil
}
