package syncengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/rsyncdelta"
	"github.com/YAtOff/s3rsync/internal/store"
	"github.com/YAtOff/s3rsync/internal/transfer"
)

// download implements spec.md section 4.G's download(remote, stored_or_null):
// diff against the stored version (or from scratch), download a fresh base
// when cheaper, replay any remaining deltas in place, then cache the
// resulting signature and update the stored row.
func (e *Executor) download(ctx context.Context, action Action) error {
	s := e.Session
	remote := action.Remote

	body := remote.Body()
	if body == nil {
		return fmt.Errorf("syncengine: download action for %s has no loaded remote history", remote.Key())
	}

	var storedBody *history.NodeHistory
	if action.Stored != nil {
		storedBody = action.Stored.Data
	}

	entries, isAbsolute, err := body.Diff(storedBody)
	if err != nil {
		return fmt.Errorf("syncengine: diffing history for %s: %w", remote.Key(), err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("syncengine: diff for %s returned no entries to apply", remote.Key())
	}

	if isAbsolute {
		base := entries[0]

		if _, err := transfer.DownloadToRoot(ctx, s.Client, s.StorageBucket, s.Prefix, s.RootFolder, body.Path, base.BaseVersion); err != nil {
			return fmt.Errorf("syncengine: downloading base version %s for %s: %w", base.BaseVersion, remote.Key(), err)
		}

		entries = entries[1:]
	}

	targetPath := filepath.Join(s.RootFolder, filepath.FromSlash(body.Path))

	for _, entry := range entries {
		if err := e.applyDeltaEntry(ctx, targetPath, entry); err != nil {
			return fmt.Errorf("syncengine: applying entry %s for %s: %w", entry.Key, remote.Key(), err)
		}
	}

	lastEntry, err := body.Last()
	if err != nil {
		return fmt.Errorf("syncengine: reading current version of %s after download: %w", remote.Key(), err)
	}

	if _, err := e.fetchSignature(ctx, lastEntry.Key); err != nil {
		return err
	}

	local, err := localnode.Create(s.RootFolder, body.Path)
	if err != nil {
		return fmt.Errorf("syncengine: stating downloaded file %s: %w", body.Path, err)
	}

	row := &store.Row{
		RootFolderID:      s.RootFolderID,
		Key:               remote.Key(),
		Data:              body,
		LocalModifiedTime: local.ModifiedSec,
		LocalCreatedTime:  local.CreatedSec,
		RemoteHistoryETag: remote.ETag(),
	}

	if err := s.Store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("syncengine: upserting stored row for %s: %w", remote.Key(), err)
	}

	return nil
}

// applyDeltaEntry fetches entry's delta blob and patches targetPath in
// place: the patch output replaces the previous content atomically.
func (e *Executor) applyDeltaEntry(ctx context.Context, targetPath string, entry history.NodeHistoryEntry) error {
	s := e.Session

	deltaData, err := transfer.DownloadMetadata(ctx, s.Client, s.InternalBucket, s.MetadataPrefix, entry.Key, "delta")
	if err != nil {
		return err
	}

	deltaFile, err := os.CreateTemp("", "s3rsync-dl-delta-*")
	if err != nil {
		return fmt.Errorf("syncengine: creating temp delta file: %w", err)
	}
	defer os.Remove(deltaFile.Name())

	if _, err := deltaFile.Write(deltaData); err != nil {
		deltaFile.Close()
		return fmt.Errorf("syncengine: writing temp delta file: %w", err)
	}

	if err := deltaFile.Close(); err != nil {
		return fmt.Errorf("syncengine: closing temp delta file: %w", err)
	}

	patchedPath, err := rsyncdelta.Patch(targetPath, deltaFile.Name())
	if err != nil {
		return fmt.Errorf("syncengine: patching %s: %w", targetPath, err)
	}

	if err := os.Rename(patchedPath, targetPath); err != nil {
		os.Remove(patchedPath)
		return fmt.Errorf("syncengine: replacing %s with patched content: %w", targetPath, err)
	}

	return nil
}
