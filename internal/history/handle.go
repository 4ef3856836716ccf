package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by Save when called on a handle that has no body
// attached yet (listed but never Load-ed, nor given a freshly built body).
var ErrNotLoaded = errors.New("history: handle has no body to save")

// ErrPreconditionFailed is returned by Save when the backing Store rejects a
// conditional put because the remote ETag changed since Load (spec.md
// section 9(b): an additive safety net around the source's unconditional
// overwrite).
var ErrPreconditionFailed = errors.New("history: remote history changed since load (precondition failed)")

// Store is the subset of the object-store adapter (component B) that a
// RemoteHistoryHandle needs to load and save its body. Kept narrow so this
// package has no dependency on internal/objectstore's AWS-specific types.
type Store interface {
	GetHistory(ctx context.Context, key string) (data []byte, etag string, err error)
	PutHistory(ctx context.Context, key string, data []byte, ifMatchETag string) (etag string, err error)
}

// RemoteHistoryHandle is an in-memory wrapper around a NodeHistory fetched
// from the internal bucket. It goes through a listed -> loaded -> saved
// lifecycle (spec.md section 9, "Lifecycle of handles"): body is nil until
// Load succeeds or a caller attaches a freshly built body (e.g. after the
// upload action constructs a brand new history for a file that had none).
type RemoteHistoryHandle struct {
	key   string
	etag  string
	store Store
	body  *NodeHistory
}

// NewHandle creates a handle in the "listed" state: identity known, no body
// loaded yet. etag is the object-store ETag observed in the listing (distinct
// from the content etag carried inside the history document itself).
func NewHandle(store Store, key, etag string) *RemoteHistoryHandle {
	return &RemoteHistoryHandle{key: key, etag: etag, store: store}
}

// NewLoadedHandle creates a handle already in the "loaded" state, wrapping a
// history the caller built itself (e.g. a brand-new single-base-only-entry
// history constructed by the upload action for a file with no prior remote
// history).
func NewLoadedHandle(store Store, key string, body *NodeHistory) *RemoteHistoryHandle {
	return &RemoteHistoryHandle{key: key, store: store, body: body}
}

// Key returns the file key this handle identifies.
func (h *RemoteHistoryHandle) Key() string { return h.key }

// ETag returns the object-store ETag of the history blob as last observed
// (by listing, Load, or Save).
func (h *RemoteHistoryHandle) ETag() string { return h.etag }

// Body returns the loaded history, or nil if Load has not been called.
func (h *RemoteHistoryHandle) Body() *NodeHistory { return h.body }

// Loaded reports whether the handle currently carries a body.
func (h *RemoteHistoryHandle) Loaded() bool { return h.body != nil }

// Load fetches and parses the history document from the internal bucket,
// populating Body and refreshing ETag.
func (h *RemoteHistoryHandle) Load(ctx context.Context) error {
	data, etag, err := h.store.GetHistory(ctx, h.key)
	if err != nil {
		return fmt.Errorf("history: loading %q: %w", h.key, err)
	}

	var body NodeHistory
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("history: parsing %q: %w", h.key, err)
	}

	h.body = &body
	h.etag = etag

	return nil
}

// Save writes the handle's body to the internal bucket and refreshes ETag.
// Save requires a loaded body (spec.md section 9): calling it on a handle
// that was only ever listed, with no body attached, is a programmer error.
//
// When the handle previously observed an ETag (from listing or a prior
// Load/Save), Save passes it as an If-Match precondition. A precondition
// failure surfaces as ErrPreconditionFailed so the caller (the executor) can
// turn a lost write into a Conflict action rather than silently clobbering a
// concurrent client's history (spec.md section 9(b)).
func (h *RemoteHistoryHandle) Save(ctx context.Context) error {
	if h.body == nil {
		return ErrNotLoaded
	}

	data, err := json.Marshal(h.body)
	if err != nil {
		return fmt.Errorf("history: encoding %q: %w", h.key, err)
	}

	etag, err := h.store.PutHistory(ctx, h.key, data, h.etag)
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return err
		}

		return fmt.Errorf("history: saving %q: %w", h.key, err)
	}

	h.etag = etag

	return nil
}

// SetBody attaches a body to a handle, used when the upload action builds a
// new NodeHistory from scratch (no prior remote history existed).
func (h *RemoteHistoryHandle) SetBody(body *NodeHistory) {
	h.body = body
}
