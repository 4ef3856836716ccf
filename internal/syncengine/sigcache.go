package syncengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/YAtOff/s3rsync/internal/transfer"
)

// sigCachePath returns the local cache path for entryKey's signature, under
// the session's configured signature folder.
func sigCachePath(s *Session, entryKey string) string {
	return filepath.Join(s.SignatureFolder, entryKey)
}

// fetchSignature returns a local filesystem path to entryKey's signature,
// serving it from the local cache when present and otherwise downloading it
// from remote metadata and caching it (spec.md section 4.G, upload's "the
// previous signature ... fetching it from the signature cache or from
// remote metadata").
func (e *Executor) fetchSignature(ctx context.Context, entryKey string) (string, error) {
	cached := sigCachePath(e.Session, entryKey)

	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	data, err := transfer.DownloadMetadata(ctx, e.Session.Client, e.Session.InternalBucket, e.Session.MetadataPrefix, entryKey, "signature")
	if err != nil {
		return "", fmt.Errorf("syncengine: fetching signature for entry %s: %w", entryKey, err)
	}

	if err := e.cacheSignatureBytes(entryKey, data); err != nil {
		return "", err
	}

	return cached, nil
}

// cacheSignatureBytes writes data to entryKey's local signature cache slot,
// creating the cache directory if needed.
func (e *Executor) cacheSignatureBytes(entryKey string, data []byte) error {
	if err := os.MkdirAll(e.Session.SignatureFolder, 0o755); err != nil { //nolint:mnd // standard dir perms
		return fmt.Errorf("syncengine: creating signature cache dir: %w", err)
	}

	if err := os.WriteFile(sigCachePath(e.Session, entryKey), data, 0o644); err != nil { //nolint:mnd // standard file perms
		return fmt.Errorf("syncengine: caching signature for entry %s: %w", entryKey, err)
	}

	return nil
}

// removeCachedSignature deletes entryKey's cached signature if present.
// Missing is not an error — the entry may never have been cached locally.
func (e *Executor) removeCachedSignature(entryKey string) error {
	err := os.Remove(sigCachePath(e.Session, entryKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("syncengine: removing cached signature for entry %s: %w", entryKey, err)
	}

	return nil
}
