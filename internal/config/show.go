package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers a "config show"-style command, giving
// users visibility into the effective values after all override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")
	ew.printf("storage_bucket        = %q\n", cfg.StorageBucket)
	ew.printf("internal_bucket       = %q\n", cfg.InternalBucket)
	ew.printf("sync_metadata_prefix  = %q\n", cfg.SyncMetadataPrefix)
	ew.printf("local_db              = %q\n", cfg.LocalDB)
	ew.printf("signature_folder      = %q\n", cfg.SignatureFolder)
	ew.printf("sync_interval         = %q\n", cfg.SyncInterval)
	ew.printf("action_timeout        = %q\n", cfg.ActionTimeout)
	ew.printf("log_level             = %q\n", cfg.LogLevel)
	ew.printf("log_format            = %q\n", cfg.LogFormat)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
