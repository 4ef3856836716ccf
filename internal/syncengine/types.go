// Package syncengine implements components G through J of the sync system:
// the action executor, the reconciliation decision table, the action
// producer, and the single-threaded worker loop that drives them (spec.md
// sections 4.G-4.J).
package syncengine

import (
	"log/slog"
	"time"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/objectstore"
	"github.com/YAtOff/s3rsync/internal/store"
)

// DefaultActionTimeout is the deadline attached to each dispatched action
// when a Session does not override it (SPEC_FULL.md section 5).
const DefaultActionTimeout = 5 * time.Minute

// Session is the process-wide configuration bundle spec.md section 3
// describes: bucket names, prefixes, the resolved root folder, the local
// signature cache folder, the object-store client, and the local DB handle.
// It is constructed once per run and shared by pointer with the producer,
// executor and worker, never stashed in package-level state (spec.md section 9, "Global
// session").
type Session struct {
	StorageBucket   string
	InternalBucket  string
	Prefix          string // content key prefix, e.g. "content"
	MetadataPrefix  string // e.g. Prefix + "/metadata"
	RootFolder      string // absolute local sync-root directory
	RootFolderID    int64  // store.Store's root_folder row id for RootFolder
	SignatureFolder string // absolute local directory caching entry signatures

	Client        *objectstore.Client
	HistoryStore  history.Store
	Store         *store.Store
	ActionTimeout time.Duration

	Logger *slog.Logger
}

// actionTimeout returns s.ActionTimeout, falling back to DefaultActionTimeout
// when unset.
func (s *Session) actionTimeout() time.Duration {
	if s.ActionTimeout > 0 {
		return s.ActionTimeout
	}

	return DefaultActionTimeout
}

// ActionKind tags the variant carried by Action (spec.md section 9,
// "Dynamic action objects": a statically typed tagged variant replacing the
// source's partially-applied closures).
type ActionKind int

const (
	ActionNop ActionKind = iota
	ActionUpload
	ActionDownload
	ActionDeleteLocal
	ActionDeleteRemote
	ActionSaveHistory
	ActionDeleteHistory
	ActionConflict
)

// String renders the action kind for logging.
func (k ActionKind) String() string {
	switch k {
	case ActionNop:
		return "nop"
	case ActionUpload:
		return "upload"
	case ActionDownload:
		return "download"
	case ActionDeleteLocal:
		return "delete_local"
	case ActionDeleteRemote:
		return "delete_remote"
	case ActionSaveHistory:
		return "save_history"
	case ActionDeleteHistory:
		return "delete_history"
	case ActionConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Action is the tagged variant the reconciler returns and the executor
// dispatches on. Only the fields relevant to Kind are populated; callers
// must not assume others are zero-valued for unrelated kinds.
type Action struct {
	Kind ActionKind
	Key  string // file key, for logging (spec.md section 7: "file_key")

	Remote *history.RemoteHistoryHandle
	Local  *localnode.LocalNode
	Stored *store.Row
}
