package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "s3rsync"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory DefaultConfigPath
// falls back to when neither --config nor S3RSYNC_CONFIG names a file. On
// Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/s3rsync). On macOS,
// uses ~/Library/Application Support/s3rsync per Apple guidelines. Other
// platforms fall back to ~/.config/s3rsync.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is used as the fallback when neither S3RSYNC_CONFIG nor
// --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
