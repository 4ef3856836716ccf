package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/YAtOff/s3rsync/internal/history"
)

// HistoryStore adapts Client to history.Store, storing each file's
// NodeHistory document as a JSON blob at <metadataPrefix>/history/<key> in
// the internal bucket (spec.md section 6, "Object store layout"). It speaks
// raw bytes, leaving JSON encode/decode to history.RemoteHistoryHandle so
// this package stays free of a dependency on internal/history's types.
type HistoryStore struct {
	client         *Client
	internalBucket string
	metadataPrefix string
}

// NewHistoryStore constructs a HistoryStore over client, scoped to the
// internal bucket and a metadata key prefix (spec.md's SYNC_METADATA_PREFIX).
func NewHistoryStore(client *Client, internalBucket, metadataPrefix string) *HistoryStore {
	return &HistoryStore{client: client, internalBucket: internalBucket, metadataPrefix: metadataPrefix}
}

func (s *HistoryStore) objectKey(key string) string {
	return s.metadataPrefix + "/history/" + key
}

// GetHistory fetches the raw history document for key and its current ETag.
func (s *HistoryStore) GetHistory(ctx context.Context, key string) ([]byte, string, error) {
	body, etag, err := s.client.GetStream(ctx, s.internalBucket, s.objectKey(key), "")
	if err != nil {
		return nil, "", fmt.Errorf("objectstore: fetching history for %q: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("objectstore: reading history for %q: %w", key, err)
	}

	return data, etag, nil
}

// PutHistory writes data to the internal bucket. When ifMatchETag is
// non-empty, the write is conditional; a losing race surfaces as
// ErrPreconditionFailed so the caller can fold it into a Conflict action
// (SPEC_FULL.md section 9, optional conditional-put safety net).
func (s *HistoryStore) PutHistory(ctx context.Context, key string, data []byte, ifMatchETag string) (string, error) {
	result, err := s.client.Put(ctx, s.internalBucket, s.objectKey(key), data, ifMatchETag)
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return "", history.ErrPreconditionFailed
		}

		return "", fmt.Errorf("objectstore: writing history for %q: %w", key, err)
	}

	return result.ETag, nil
}

var _ history.Store = (*HistoryStore)(nil)
