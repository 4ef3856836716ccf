// Package localnode models a local file snapshot at scan time and derives
// the stable file key used to correlate it with remote and stored history
// (data-model.md section 3, "File key" / "LocalNode").
package localnode

import (
	"crypto/md5" //nolint:gosec // content fingerprint and key derivation, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// HashPath returns the stable file key for a root-relative path: the hex MD5
// of the path with its separators normalized to POSIX slashes, so the same
// logical file produces the same key on every client regardless of OS
// (spec.md section 3: "Identical paths across clients yield identical
// keys").
func HashPath(relPath string) string {
	sum := md5.Sum([]byte(filepath.ToSlash(relPath))) //nolint:gosec // fingerprint, not a security boundary

	return hex.EncodeToString(sum[:])
}

// LocalNode is a snapshot of a local file at scan time (data-model.md
// section 3).
type LocalNode struct {
	Root        string // absolute sync-root directory
	Path        string // root-relative path
	Key         string // HashPath(Path)
	ModifiedSec int64  // modification time, integer seconds
	CreatedSec  int64  // creation time, integer seconds (always the modification time; see fileTimes)
	Size        int64

	etag      string
	etagKnown bool
}

// Create stats the file at root/relPath and returns its LocalNode snapshot.
func Create(root, relPath string) (*LocalNode, error) {
	full := filepath.Join(root, relPath)

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("localnode: stat %s: %w", full, err)
	}

	created, modified := fileTimes(info)

	return &LocalNode{
		Root:        root,
		Path:        filepath.ToSlash(relPath),
		Key:         HashPath(relPath),
		ModifiedSec: modified,
		CreatedSec:  created,
		Size:        info.Size(),
	}, nil
}

// AbsPath returns the node's absolute filesystem path.
func (n *LocalNode) AbsPath() string {
	return filepath.Join(n.Root, filepath.FromSlash(n.Path))
}

// Updated reports whether this node's timestamps differ from a previously
// stored snapshot's timestamps, per spec.md section 4.E: "updated(stored)
// returns true iff modified_time or created_time differs from the stored
// row."
func (n *LocalNode) Updated(storedModifiedSec, storedCreatedSec int64) bool {
	return n.ModifiedSec != storedModifiedSec || n.CreatedSec != storedCreatedSec
}

// CalcEtag lazily computes and caches an MD5 content checksum of the file,
// matching the content-etag scheme used throughout the history model
// (data-model.md section 3: "etag (content checksum...)").
func (n *LocalNode) CalcEtag() (string, error) {
	if n.etagKnown {
		return n.etag, nil
	}

	f, err := os.Open(n.AbsPath())
	if err != nil {
		return "", fmt.Errorf("localnode: opening %s for hashing: %w", n.Path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // content fingerprint, not a security boundary

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("localnode: hashing %s: %w", n.Path, err)
	}

	n.etag = hex.EncodeToString(h.Sum(nil))
	n.etagKnown = true

	return n.etag, nil
}
