// Package config implements TOML configuration loading, environment
// overrides, and validation for s3rsync.
package config

// Config is the top-level configuration structure for a sync process.
// Every field is a flat TOML key; there are no sections, profiles, or
// per-drive overrides in this domain (SPEC_FULL.md section 6).
type Config struct {
	StorageBucket      string `toml:"storage_bucket"`
	InternalBucket     string `toml:"internal_bucket"`
	SyncMetadataPrefix string `toml:"sync_metadata_prefix"`
	LocalDB            string `toml:"local_db"`
	SignatureFolder    string `toml:"signature_folder"`
	SyncInterval       string `toml:"sync_interval"`
	ActionTimeout      string `toml:"action_timeout"`
	LogLevel           string `toml:"log_level"`
	LogFormat          string `toml:"log_format"`
}
