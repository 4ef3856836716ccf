package syncengine

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/rsyncdelta"
	"github.com/YAtOff/s3rsync/internal/store"
	"github.com/YAtOff/s3rsync/internal/transfer"
)

// newEntryKey returns a fresh lowercase-hex entry key: a 128-bit value,
// matching spec.md section 3's "Entry key" definition (hex, not the
// dash-separated canonical UUID string form).
func newEntryKey() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// upload implements spec.md section 4.G's upload(remote_or_null, local): a
// delta-only entry against the previous version's signature when remote
// history already exists, or a fresh base-only entry when it does not.
func (e *Executor) upload(ctx context.Context, action Action) error {
	s := e.Session
	local := action.Local
	newKey := newEntryKey()

	var handle *history.RemoteHistoryHandle

	if action.Remote != nil {
		if err := e.appendDeltaEntry(ctx, action.Remote, local, newKey); err != nil {
			return err
		}

		handle = action.Remote
	} else {
		body, err := e.uploadBaseEntry(ctx, local, newKey)
		if err != nil {
			return err
		}

		handle = history.NewLoadedHandle(s.HistoryStore, local.Key, body)
	}

	if err := handle.Save(ctx); err != nil {
		return fmt.Errorf("syncengine: saving history for %s: %w", local.Key, err)
	}

	row := &store.Row{
		RootFolderID:      s.RootFolderID,
		Key:               local.Key,
		Data:              handle.Body(),
		LocalModifiedTime: local.ModifiedSec,
		LocalCreatedTime:  local.CreatedSec,
		RemoteHistoryETag: handle.ETag(),
	}

	if err := s.Store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("syncengine: upserting stored row for %s: %w", local.Key, err)
	}

	return nil
}

// appendDeltaEntry computes a delta against the previous version's cached or
// fetched signature, uploads the delta and a fresh signature of local under
// newKey, caches the new signature locally, and appends a delta-only entry
// to remote's body in place.
func (e *Executor) appendDeltaEntry(ctx context.Context, remote *history.RemoteHistoryHandle, local *localnode.LocalNode, newKey string) error {
	s := e.Session

	prev, err := remote.Body().Last()
	if err != nil {
		return fmt.Errorf("syncengine: reading current version of %s: %w", local.Key, err)
	}

	prevSigPath, err := e.fetchSignature(ctx, prev.Key)
	if err != nil {
		return err
	}

	deltaPath, err := rsyncdelta.Delta(prevSigPath, local.AbsPath())
	if err != nil {
		return fmt.Errorf("syncengine: computing delta for %s: %w", local.Key, err)
	}
	defer os.Remove(deltaPath)

	deltaData, err := os.ReadFile(deltaPath)
	if err != nil {
		return fmt.Errorf("syncengine: reading computed delta for %s: %w", local.Key, err)
	}

	if err := transfer.UploadMetadata(ctx, s.Client, s.InternalBucket, s.MetadataPrefix, newKey, "delta", deltaData); err != nil {
		return err
	}

	newSigPath, err := rsyncdelta.Signature(local.AbsPath())
	if err != nil {
		return fmt.Errorf("syncengine: computing signature for %s: %w", local.Key, err)
	}
	defer os.Remove(newSigPath)

	newSigData, err := os.ReadFile(newSigPath)
	if err != nil {
		return fmt.Errorf("syncengine: reading computed signature for %s: %w", local.Key, err)
	}

	if err := transfer.UploadMetadata(ctx, s.Client, s.InternalBucket, s.MetadataPrefix, newKey, "signature", newSigData); err != nil {
		return err
	}

	if err := e.cacheSignatureBytes(newKey, newSigData); err != nil {
		return err
	}

	etag, err := local.CalcEtag()
	if err != nil {
		return err
	}

	remote.Body().AddEntry(history.NodeHistoryEntry{
		Key:       newKey,
		ETag:      etag,
		HasDelta:  true,
		DeltaSize: int64(len(deltaData)),
	})

	return nil
}

// uploadBaseEntry uploads local's full content and a signature of it under
// newKey, returning a fresh NodeHistory containing the resulting base-only
// entry.
func (e *Executor) uploadBaseEntry(ctx context.Context, local *localnode.LocalNode, newKey string) (*history.NodeHistory, error) {
	s := e.Session

	sigPath, err := rsyncdelta.Signature(local.AbsPath())
	if err != nil {
		return nil, fmt.Errorf("syncengine: computing signature for %s: %w", local.Key, err)
	}
	defer os.Remove(sigPath)

	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return nil, fmt.Errorf("syncengine: reading computed signature for %s: %w", local.Key, err)
	}

	if err := transfer.UploadMetadata(ctx, s.Client, s.InternalBucket, s.MetadataPrefix, newKey, "signature", sigData); err != nil {
		return nil, err
	}

	if err := e.cacheSignatureBytes(newKey, sigData); err != nil {
		return nil, err
	}

	versionID, err := transfer.UploadToRoot(ctx, s.Client, s.StorageBucket, s.Prefix, local.Root, local.Path)
	if err != nil {
		return nil, err
	}

	etag, err := local.CalcEtag()
	if err != nil {
		return nil, err
	}

	body := history.New(local.Path, local.Key)
	body.AddEntry(history.NodeHistoryEntry{
		Key:         newKey,
		ETag:        etag,
		BaseVersion: versionID,
		BaseSize:    local.Size,
	})

	return body, nil
}
