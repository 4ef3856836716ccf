// Package testutil provides shared test environment helpers for integration
// tests that talk to a real S3-compatible endpoint. It depends only on
// stdlib so that such tests (which may live outside internal/) can use it.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "\"'")

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// RequireEnv skips the current test unless name is set, loading .env from
// the module root first. Live-S3 integration tests (e.g. against a real
// bucket pair) use this to stay opt-in: they run only when a developer or
// CI job exports STORAGE_BUCKET/INTERNAL_BUCKET, and are silently skipped
// otherwise rather than failing on every plain `go test ./...`.
func RequireEnv(t *testing.T, name string) string {
	t.Helper()

	LoadDotEnv(filepath.Join(FindModuleRoot("."), ".env"))

	value := os.Getenv(name)
	if value == "" {
		t.Skipf("skipping: %s not set (in the environment or in .env at the module root)", name)
	}

	return value
}

// CopyFile copies a file from src to dst with the given permissions.
func CopyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, perm)
}
