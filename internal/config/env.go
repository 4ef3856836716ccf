package config

import "os"

// Environment variable names for overrides (SPEC_FULL.md section 6).
const (
	EnvConfig             = "S3RSYNC_CONFIG"
	EnvStorageBucket      = "STORAGE_BUCKET"
	EnvInternalBucket     = "INTERNAL_BUCKET"
	EnvSyncMetadataPrefix = "SYNC_METADATA_PREFIX"
	EnvLocalDB            = "LOCAL_DB"
	EnvSignatureFolder    = "SIGNATURE_FOLDER"
	EnvSyncInterval       = "SYNC_INTERVAL"
	EnvActionTimeout      = "ACTION_TIMEOUT"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

// EnvOverrides holds values derived from environment variables. These sit
// above the config file and below CLI flags in the override chain.
type EnvOverrides struct {
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

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify a Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:         os.Getenv(EnvConfig),
		StorageBucket:      os.Getenv(EnvStorageBucket),
		InternalBucket:     os.Getenv(EnvInternalBucket),
		SyncMetadataPrefix: os.Getenv(EnvSyncMetadataPrefix),
		LocalDB:            os.Getenv(EnvLocalDB),
		SignatureFolder:    os.Getenv(EnvSignatureFolder),
		SyncInterval:       os.Getenv(EnvSyncInterval),
		ActionTimeout:      os.Getenv(EnvActionTimeout),
		LogLevel:           os.Getenv(EnvLogLevel),
		LogFormat:          os.Getenv(EnvLogFormat),
	}
}

// applyEnvOverrides layers non-empty environment values onto cfg.
func applyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.StorageBucket != "" {
		cfg.StorageBucket = env.StorageBucket
	}

	if env.InternalBucket != "" {
		cfg.InternalBucket = env.InternalBucket
	}

	if env.SyncMetadataPrefix != "" {
		cfg.SyncMetadataPrefix = env.SyncMetadataPrefix
	}

	if env.LocalDB != "" {
		cfg.LocalDB = env.LocalDB
	}

	if env.SignatureFolder != "" {
		cfg.SignatureFolder = env.SignatureFolder
	}

	if env.SyncInterval != "" {
		cfg.SyncInterval = env.SyncInterval
	}

	if env.ActionTimeout != "" {
		cfg.ActionTimeout = env.ActionTimeout
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	if env.LogFormat != "" {
		cfg.LogFormat = env.LogFormat
	}
}
