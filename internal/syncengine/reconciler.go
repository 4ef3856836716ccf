package syncengine

import (
	"fmt"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/store"
)

// Handle is the pure reconciliation function spec.md section 4.H names:
// given the (possibly absent) remote, local, and stored views of one file
// key, it returns the single Action that should run next. It never returns
// an invalid Action — every combination of presence and updatedness falls
// into one of the 17 explicit rows of the decision table or the implicit
// wildcard row (remote deleted, local and stored absent: Nop), satisfying the "reconciliation totality"
// invariant (spec.md section 8). An error return means the comparison
// needed to decide between ActionSaveHistory/ActionNop and ActionConflict
// itself failed (a local read error, not a content mismatch) — the caller
// should surface it rather than let it masquerade as a conflict.
func Handle(remote *history.RemoteHistoryHandle, local *localnode.LocalNode, stored *store.Row) (Action, error) {
	key := reconcileKey(remote, local, stored)

	switch {
	case remote == nil && local == nil && stored == nil:
		return Action{Kind: ActionNop, Key: key}, nil

	case remote == nil && local == nil && stored != nil:
		return Action{Kind: ActionDeleteHistory, Key: key, Stored: stored}, nil

	case remote == nil && local != nil && stored == nil:
		return Action{Kind: ActionUpload, Key: key, Local: local}, nil

	case remote == nil && local != nil && stored != nil:
		return Action{Kind: ActionDeleteLocal, Key: key, Local: local, Stored: stored}, nil

	case remote != nil && local == nil && stored == nil:
		if remoteIsDeleted(remote) {
			return Action{Kind: ActionNop, Key: key}, nil // wildcard row: deleted, never seen locally, nothing stored
		}

		return Action{Kind: ActionDownload, Key: key, Remote: remote}, nil

	case remote != nil && local == nil && stored != nil:
		if remoteIsDeleted(remote) {
			return Action{Kind: ActionDeleteHistory, Key: key, Stored: stored}, nil
		}

		return Action{Kind: ActionDeleteRemote, Key: key, Remote: remote, Stored: stored}, nil

	case remote != nil && local != nil && stored == nil:
		return handlePresentPresentAbsent(key, remote, local)

	default: // remote != nil && local != nil && stored != nil
		return handlePresentPresentPresent(key, remote, local, stored)
	}
}

func handlePresentPresentAbsent(key string, remote *history.RemoteHistoryHandle, local *localnode.LocalNode) (Action, error) {
	if remoteIsDeleted(remote) {
		return Action{Kind: ActionDeleteLocal, Key: key, Local: local}, nil
	}

	equal, err := contentEtagsEqual(remote, local)
	if err != nil {
		return Action{}, fmt.Errorf("syncengine: comparing content etags for %s: %w", key, err)
	}

	if equal {
		return Action{Kind: ActionSaveHistory, Key: key, Remote: remote, Local: local}, nil
	}

	return Action{Kind: ActionConflict, Key: key, Remote: remote, Local: local}, nil
}

func handlePresentPresentPresent(key string, remote *history.RemoteHistoryHandle, local *localnode.LocalNode, stored *store.Row) (Action, error) {
	if remoteIsDeleted(remote) {
		if local.Updated(stored.LocalModifiedTime, stored.LocalCreatedTime) {
			return Action{Kind: ActionConflict, Key: key, Remote: remote, Local: local, Stored: stored}, nil
		}

		return Action{Kind: ActionDeleteLocal, Key: key, Local: local, Stored: stored}, nil
	}

	localUpdated := local.Updated(stored.LocalModifiedTime, stored.LocalCreatedTime)
	remoteUpdated := remote.ETag() != stored.RemoteHistoryETag

	switch {
	case localUpdated && remoteUpdated:
		equal, err := contentEtagsEqual(remote, local)
		if err != nil {
			return Action{}, fmt.Errorf("syncengine: comparing content etags for %s: %w", key, err)
		}

		if equal {
			return Action{Kind: ActionNop, Key: key}, nil
		}

		return Action{Kind: ActionConflict, Key: key, Remote: remote, Local: local, Stored: stored}, nil

	case localUpdated:
		return Action{Kind: ActionUpload, Key: key, Remote: remote, Local: local, Stored: stored}, nil

	case remoteUpdated:
		return Action{Kind: ActionDownload, Key: key, Remote: remote, Stored: stored}, nil

	default:
		return Action{Kind: ActionNop, Key: key}, nil
	}
}

// remoteIsDeleted reports whether remote's loaded history ends in a
// tombstone. remote must have a loaded body by the time the reconciler sees
// it (the producer loads or cache-adopts a body for every remote handle it
// emits).
func remoteIsDeleted(remote *history.RemoteHistoryHandle) bool {
	body := remote.Body()
	if body == nil || len(body.Entries) == 0 {
		return false
	}

	return body.Entries[len(body.Entries)-1].Deleted
}

// contentEtagsEqual compares the remote history's current content etag
// against the local file's computed content etag — distinct from
// remote.ETag(), which is the object-store ETag of the history blob itself
// (spec.md section 4.H's "Updated" definitions vs. its
// "remote.history.etag == local.etag" condition).
func contentEtagsEqual(remote *history.RemoteHistoryHandle, local *localnode.LocalNode) (bool, error) {
	remoteEtag, err := remote.Body().ETag()
	if err != nil {
		return false, err
	}

	localEtag, err := local.CalcEtag()
	if err != nil {
		return false, err
	}

	return remoteEtag == localEtag, nil
}

func reconcileKey(remote *history.RemoteHistoryHandle, local *localnode.LocalNode, stored *store.Row) string {
	switch {
	case remote != nil:
		return remote.Key()
	case local != nil:
		return local.Key
	case stored != nil:
		return stored.Key
	default:
		return ""
	}
}
