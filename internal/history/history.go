// Package history implements the per-file version-chain data model: the
// append-only NodeHistory document, its diffing algorithm, and the
// listed/loaded/saved lifecycle of a history fetched from the internal
// bucket (data-model.md section 3, sync-algorithm.md section 4.D).
package history

import (
	"errors"
	"fmt"
)

// ErrEmptyHistory is returned by Last when a history has no entries. A
// reconciled NodeHistory should never reach this state; seeing it means an
// invariant was violated upstream (spec section 7, "Invariant violation").
var ErrEmptyHistory = errors.New("history: chain has no entries")

// ErrTombstonedHistory is returned by Last when the final entry is a
// delete marker — by definition a tombstoned chain has no "current version".
var ErrTombstonedHistory = errors.New("history: chain ends in a tombstone")

// NodeHistoryEntry is one link in a file's version chain (data-model.md
// section 3). The three valid non-tombstone shapes are base-only
// (BaseVersion set, HasDelta false), delta-only (HasDelta true, BaseVersion
// empty) and whole (both set, used when rebuilding a fresh base).
type NodeHistoryEntry struct {
	Key         string `json:"key"`
	Deleted     bool   `json:"deleted"`
	ETag        string `json:"etag,omitempty"`
	BaseVersion string `json:"base_version,omitempty"`
	BaseSize    int64  `json:"base_size"`
	HasDelta    bool   `json:"has_delta"`
	DeltaSize   int64  `json:"delta_size"`
}

// HasBase reports whether the entry carries a full base blob reference.
func (e NodeHistoryEntry) HasBase() bool {
	return e.BaseVersion != ""
}

// NodeHistory is the full, append-only version chain for one logical file.
type NodeHistory struct {
	Path    string             `json:"path"`
	Key     string             `json:"key"`
	Entries []NodeHistoryEntry `json:"entries"`
}

// New creates an empty NodeHistory for the given root-relative path and file
// key. The caller is expected to have derived key via HashPath(path)
// (data-model.md section 3's "key = hash_path(path)" invariant).
func New(path, key string) *NodeHistory {
	return &NodeHistory{Path: path, Key: key}
}

// Last returns the final entry in the chain. It is an error — an invariant
// violation per spec section 7 — to call Last on an empty chain or one whose
// final entry is a tombstone.
func (h *NodeHistory) Last() (*NodeHistoryEntry, error) {
	if len(h.Entries) == 0 {
		return nil, ErrEmptyHistory
	}

	last := &h.Entries[len(h.Entries)-1]
	if last.Deleted {
		return nil, ErrTombstonedHistory
	}

	return last, nil
}

// ETag returns the content etag of the history's current version, which is
// the etag of its last entry (data-model.md section 3). Returns an error
// under the same conditions as Last.
func (h *NodeHistory) ETag() (string, error) {
	last, err := h.Last()
	if err != nil {
		return "", err
	}

	return last.ETag, nil
}

// AddEntry appends a new entry to the chain. History mutation is strictly
// append-only (spec section 8, "History monotonicity").
func (h *NodeHistory) AddEntry(e NodeHistoryEntry) {
	h.Entries = append(h.Entries, e)
}

// AddDeleteMarker appends a tombstone entry, ending the current chain. A
// later AddEntry starts a fresh chain whose first entry must again be
// base-only or whole (data-model.md section 3 invariant); that invariant is
// enforced by callers (the upload action), not by this type.
func (h *NodeHistory) AddDeleteMarker(key string) {
	h.AddEntry(NodeHistoryEntry{Key: key, Deleted: true})
}

// Clone returns a deep copy of h, used when the producer adopts a cached
// StoredHistory body as a stand-in remote body (sync-algorithm.md section
// 4.I step 5, "cache hit").
func (h *NodeHistory) Clone() *NodeHistory {
	out := &NodeHistory{
		Path:    h.Path,
		Key:     h.Key,
		Entries: make([]NodeHistoryEntry, len(h.Entries)),
	}
	copy(out.Entries, h.Entries)

	return out
}

// Diff computes the shortest chain of entries needed to materialize h's
// latest version, starting from other's latest version (or from scratch if
// other is nil). It walks h.Entries in reverse, per sync-algorithm.md
// section 4.D:
//
//  1. other == nil: collect entries in reverse until the first entry with a
//     non-empty BaseVersion (inclusive), then stop. isAbsolute is always
//     true in this branch.
//  2. other != nil: let stopKey = other's last entry's key. Walk h.Entries
//     in reverse, accumulating a running delta-size sum and tracking the
//     most recent candidate entry carrying a base. Stop early either at a
//     tombstone/stopKey match, at a pure base-only entry (absolute), or when
//     the running delta sum exceeds a recorded candidate's base size
//     (absolute — downloading the candidate's base is cheaper).
//
// The returned entries are in forward (chronological) order.
func (h *NodeHistory) Diff(other *NodeHistory) (entries []NodeHistoryEntry, isAbsolute bool, err error) {
	if len(h.Entries) == 0 {
		return nil, false, fmt.Errorf("history: diff on empty chain for key %q", h.Key)
	}

	if other == nil {
		return h.diffFromScratch()
	}

	otherLast, err := other.Last()
	if err != nil {
		return nil, false, fmt.Errorf("history: diff against invalid base history: %w", err)
	}

	return h.diffFromStop(otherLast.Key)
}

// diffFromScratch implements Diff's case 1.
func (h *NodeHistory) diffFromScratch() ([]NodeHistoryEntry, bool, error) {
	result := make([]NodeHistoryEntry, 0, len(h.Entries))

	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := h.Entries[i]
		result = append(result, e)

		if e.HasBase() {
			reverse(result)
			return result, true, nil
		}
	}

	return nil, false, fmt.Errorf("history: no reachable base found for key %q", h.Key)
}

// diffFromStop implements Diff's case 2.
func (h *NodeHistory) diffFromStop(stopKey string) ([]NodeHistoryEntry, bool, error) {
	var (
		result         []NodeHistoryEntry
		deltaSizeSum   int64
		haveCandidate  bool
		candidateIndex int
		candidateBase  int64
		isAbsolute     bool
	)

	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := h.Entries[i]

		if e.Deleted || e.Key == stopKey {
			break
		}

		if !e.HasDelta {
			// Pure base-only entry: this is the cheapest possible stopping
			// point, replay nothing after it.
			result = append(result, e)
			isAbsolute = true

			break
		}

		deltaSizeSum += e.DeltaSize

		if e.HasBase() && !haveCandidate {
			haveCandidate = true
			candidateIndex = len(result) // position (in result-so-far) of this entry, once appended
			candidateBase = e.BaseSize
		}

		result = append(result, e)

		if haveCandidate && deltaSizeSum > candidateBase {
			// Replaying the recent deltas is more expensive than downloading
			// the candidate's base and replaying its (shorter) tail.
			result = result[:candidateIndex+1]
			isAbsolute = true

			break
		}
	}

	reverse(result)

	return result, isAbsolute, nil
}

func reverse(s []NodeHistoryEntry) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
