package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvStorageBucket, "my-storage")
	t.Setenv(EnvInternalBucket, "my-internal")
	t.Setenv(EnvLogLevel, "debug")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "my-storage", overrides.StorageBucket)
	assert.Equal(t, "my-internal", overrides.InternalBucket)
	assert.Equal(t, "debug", overrides.LogLevel)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	for _, name := range []string{
		EnvConfig, EnvStorageBucket, EnvInternalBucket, EnvSyncMetadataPrefix,
		EnvLocalDB, EnvSignatureFolder, EnvSyncInterval, EnvActionTimeout,
		EnvLogLevel, EnvLogFormat,
	} {
		t.Setenv(name, "")
	}

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.StorageBucket)
	assert.Empty(t, overrides.InternalBucket)
}

func TestApplyEnvOverrides_OnlySetFieldsApplied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "info"

	applyEnvOverrides(cfg, EnvOverrides{LogLevel: "debug"})

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "metadata", cfg.SyncMetadataPrefix) // untouched
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "S3RSYNC_CONFIG", EnvConfig)
	assert.Equal(t, "STORAGE_BUCKET", EnvStorageBucket)
	assert.Equal(t, "INTERNAL_BUCKET", EnvInternalBucket)
	assert.Equal(t, "SYNC_METADATA_PREFIX", EnvSyncMetadataPrefix)
	assert.Equal(t, "LOCAL_DB", EnvLocalDB)
	assert.Equal(t, "SIGNATURE_FOLDER", EnvSignatureFolder)
	assert.Equal(t, "SYNC_INTERVAL", EnvSyncInterval)
	assert.Equal(t, "ACTION_TIMEOUT", EnvActionTimeout)
	assert.Equal(t, "LOG_LEVEL", EnvLogLevel)
	assert.Equal(t, "LOG_FORMAT", EnvLogFormat)
}
