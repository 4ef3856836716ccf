package syncengine

import (
	"context"
	"fmt"

	"github.com/YAtOff/s3rsync/internal/store"
)

// saveHistory implements spec.md section 4.G's save_history(remote, local):
// persist the remote history into the local store, stamping local's
// timestamps and the remote handle's object-store ETag.
func (e *Executor) saveHistory(ctx context.Context, action Action) error {
	s := e.Session
	remote := action.Remote
	local := action.Local

	body := remote.Body()
	if body == nil {
		return fmt.Errorf("syncengine: save_history action for %s has no loaded remote history", remote.Key())
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

// deleteHistory implements spec.md section 4.G's delete_history(stored):
// drop the stored row.
func (e *Executor) deleteHistory(ctx context.Context, action Action) error {
	s := e.Session
	stored := action.Stored

	if stored == nil {
		return fmt.Errorf("syncengine: delete_history action missing stored row")
	}

	if err := s.Store.Delete(ctx, s.RootFolderID, stored.Key); err != nil {
		return fmt.Errorf("syncengine: deleting stored row for %s: %w", stored.Key, err)
	}

	return nil
}
