package config

// Default values for configuration options — the "layer 0" of the
// config file -> environment -> CLI flags override chain.
const (
	defaultSyncMetadataPrefix = "metadata"
	defaultLocalDB            = "s3rsync.db"
	defaultSignatureFolder    = ".s3rsync-signatures"
	defaultSyncInterval       = "60s"
	defaultActionTimeout      = "5m"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding (unset fields retain defaults) and
// the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SyncMetadataPrefix: defaultSyncMetadataPrefix,
		LocalDB:            defaultLocalDB,
		SignatureFolder:    defaultSignatureFolder,
		SyncInterval:       defaultSyncInterval,
		ActionTimeout:      defaultActionTimeout,
		LogLevel:           defaultLogLevel,
		LogFormat:          defaultLogFormat,
	}
}
