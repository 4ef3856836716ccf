package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidEnumStr = "invalid-value"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.StorageBucket = "storage"
	cfg.InternalBucket = "internal"

	return cfg
}

func TestValidate_ValidDefaults(t *testing.T) {
	err := Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidate_StorageBucket_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.StorageBucket = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_bucket")
}

func TestValidate_InternalBucket_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.InternalBucket = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal_bucket")
}

func TestValidate_SyncMetadataPrefix_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.SyncMetadataPrefix = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_metadata_prefix")
}

func TestValidate_LocalDB_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.LocalDB = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local_db")
}

func TestValidate_SignatureFolder_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.SignatureFolder = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature_folder")
}

func TestValidate_SyncInterval_InvalidFormat(t *testing.T) {
	cfg := validConfig()
	cfg.SyncInterval = "not-a-duration"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}

func TestValidate_SyncInterval_Zero(t *testing.T) {
	cfg := validConfig()
	cfg.SyncInterval = "0s"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}

func TestValidate_ActionTimeout_InvalidFormat(t *testing.T) {
	cfg := validConfig()
	cfg.ActionTimeout = "soon"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action_timeout")
}

func TestValidate_LogLevel_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_LogLevel_AllValid(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.LogLevel = level
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", level)
	}
}

func TestValidate_LogFormat_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = "xml"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_LogFormat_AllValid(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		cfg := validConfig()
		cfg.LogFormat = format
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", format)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.StorageBucket = ""
	cfg.InternalBucket = ""
	cfg.LogLevel = invalidEnumStr
	cfg.LogFormat = invalidEnumStr

	err := Validate(cfg)
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "storage_bucket")
	assert.Contains(t, errStr, "internal_bucket")
	assert.Contains(t, errStr, "log_level")
	assert.Contains(t, errStr, "log_format")
}
