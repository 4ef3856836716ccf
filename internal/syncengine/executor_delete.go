package syncengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// deleteLocal implements spec.md section 4.G's delete_local(local, stored):
// remove the local file, remove the cached signature for the stored
// version's last entry (when a stored row is present), and delete the
// stored row. Stored may be nil — the "remote deleted, stored absent" row of
// the decision table calls delete_local with no stored row to clean up.
func (e *Executor) deleteLocal(ctx context.Context, action Action) error {
	s := e.Session
	local := action.Local

	if local == nil {
		return fmt.Errorf("syncengine: delete_local action missing local node")
	}

	if err := os.Remove(local.AbsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("syncengine: removing local file %s: %w", local.Path, err)
	}

	if action.Stored == nil {
		return nil
	}

	if last, err := action.Stored.Data.Last(); err == nil {
		if err := e.removeCachedSignature(last.Key); err != nil {
			return err
		}
	}

	if err := s.Store.Delete(ctx, s.RootFolderID, action.Stored.Key); err != nil {
		return fmt.Errorf("syncengine: deleting stored row for %s: %w", action.Stored.Key, err)
	}

	return nil
}

// deleteRemote implements spec.md section 4.G's delete_remote(remote,
// stored): delete the content blob, append a tombstone to the remote
// history and save it, then delete the cached signature and the stored row.
//
// Per SPEC_FULL.md's Open Question (a): when a concurrent client re-uploads
// this path between the producer's scan and this action running, this
// deletes the just-uploaded bytes — a known sharp edge in the literal
// decision table, not a bug in this implementation (see DESIGN.md).
func (e *Executor) deleteRemote(ctx context.Context, action Action) error {
	s := e.Session
	remote := action.Remote
	stored := action.Stored

	body := remote.Body()
	if body == nil {
		return fmt.Errorf("syncengine: delete_remote action for %s has no loaded remote history", remote.Key())
	}

	contentKey := s.Prefix + "/" + filepath.ToSlash(body.Path)
	if err := s.Client.Delete(ctx, s.StorageBucket, contentKey); err != nil {
		return fmt.Errorf("syncengine: deleting content blob for %s: %w", remote.Key(), err)
	}

	body.AddDeleteMarker(newEntryKey())

	if err := remote.Save(ctx); err != nil {
		return fmt.Errorf("syncengine: saving tombstoned history for %s: %w", remote.Key(), err)
	}

	if last, err := stored.Data.Last(); err == nil {
		if err := e.removeCachedSignature(last.Key); err != nil {
			return err
		}
	}

	if err := s.Store.Delete(ctx, s.RootFolderID, stored.Key); err != nil {
		return fmt.Errorf("syncengine: deleting stored row for %s: %w", stored.Key, err)
	}

	return nil
}
