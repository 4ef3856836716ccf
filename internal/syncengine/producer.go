package syncengine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/store"
)

// Producer implements spec.md section 4.I's action-producing scan: list
// remote history handles, load stored rows, walk the local filesystem, and
// co-group the three streams by file key into reconciler inputs. It avoids
// the runtime-type-based Row bucketing spec.md section 9 flags, using a
// classical three-pointer key-sorted merge instead.
type Producer struct {
	Session *Session
}

// NewProducer constructs a Producer over session.
func NewProducer(session *Session) *Producer {
	return &Producer{Session: session}
}

// Produce runs one full scan and returns the action the reconciler derives
// for every file key observed across the three sources, in key-sorted
// (therefore deterministic) order (spec.md section 5, "Ordering
// guarantees").
func (p *Producer) Produce(ctx context.Context) ([]Action, error) {
	remoteHandles, err := p.listRemoteHandles(ctx)
	if err != nil {
		return nil, err
	}

	storedRows, err := p.Session.Store.ListByRoot(ctx, p.Session.RootFolderID)
	if err != nil {
		return nil, fmt.Errorf("syncengine: listing stored rows: %w", err)
	}

	localNodes, err := p.walkLocal()
	if err != nil {
		return nil, err
	}

	sort.Slice(remoteHandles, func(i, j int) bool { return remoteHandles[i].Key() < remoteHandles[j].Key() })
	sort.Slice(storedRows, func(i, j int) bool { return storedRows[i].Key < storedRows[j].Key })
	sort.Slice(localNodes, func(i, j int) bool { return localNodes[i].Key < localNodes[j].Key })

	return p.merge(ctx, remoteHandles, localNodes, storedRows)
}

// listRemoteHandles lists the current version of every history document
// under the internal bucket's history prefix and wraps each as a listed
// (unloaded) RemoteHistoryHandle (spec.md section 4.I step 1).
func (p *Producer) listRemoteHandles(ctx context.Context) ([]*history.RemoteHistoryHandle, error) {
	s := p.Session
	historyPrefix := s.MetadataPrefix + "/history/"

	versions, err := s.Client.ListLatestVersions(ctx, s.InternalBucket, historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("syncengine: listing remote histories: %w", err)
	}

	handles := make([]*history.RemoteHistoryHandle, 0, len(versions))

	for _, v := range versions {
		key := strings.TrimPrefix(v.Key, historyPrefix)
		handles = append(handles, history.NewHandle(s.HistoryStore, key, v.ETag))
	}

	return handles, nil
}

// walkLocal recursively walks the sync root, producing a LocalNode for every
// regular file (spec.md section 4.I step 3). The signature cache folder is
// skipped when it is nested under the root; it is not sync content.
func (p *Producer) walkLocal() ([]*localnode.LocalNode, error) {
	root := p.Session.RootFolder
	sigFolder := p.Session.SignatureFolder

	var nodes []*localnode.LocalNode

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if sigFolder != "" && path == sigFolder {
				return filepath.SkipDir
			}

			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("syncengine: relativizing %s: %w", path, err)
		}

		node, err := localnode.Create(root, relPath)
		if err != nil {
			return err
		}

		nodes = append(nodes, node)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("syncengine: walking local root %s: %w", root, err)
	}

	return nodes, nil
}

// merge performs the three-way key-sorted merge spec.md section 4.I steps
// 4-6 describe.
func (p *Producer) merge(ctx context.Context, remotes []*history.RemoteHistoryHandle, locals []*localnode.LocalNode, storedRows []*store.Row) ([]Action, error) {
	var actions []Action

	ri, li, si := 0, 0, 0

	for ri < len(remotes) || li < len(locals) || si < len(storedRows) {
		key := nextKey(remotes, ri, locals, li, storedRows, si)

		var remote *history.RemoteHistoryHandle
		var local *localnode.LocalNode
		var stored *store.Row

		if ri < len(remotes) && remotes[ri].Key() == key {
			remote = remotes[ri]
			ri++
		}

		if li < len(locals) && locals[li].Key == key {
			local = locals[li]
			li++
		}

		if si < len(storedRows) && storedRows[si].Key == key {
			stored = storedRows[si]
			si++
		}

		if remote != nil {
			if err := p.loadOrAdopt(ctx, remote, stored); err != nil {
				return nil, err
			}
		}

		action, err := Handle(remote, local, stored)
		if err != nil {
			return nil, fmt.Errorf("syncengine: reconciling %s: %w", key, err)
		}

		actions = append(actions, action)
	}

	return actions, nil
}

// loadOrAdopt implements spec.md section 4.I step 5: load the remote body
// only when its listed ETag differs from the stored row's remembered ETag;
// otherwise adopt a clone of the stored history as a cache hit, avoiding a
// redundant fetch of a document this client already has.
func (p *Producer) loadOrAdopt(ctx context.Context, remote *history.RemoteHistoryHandle, stored *store.Row) error {
	if stored != nil && remote.ETag() == stored.RemoteHistoryETag {
		remote.SetBody(stored.Data.Clone())
		return nil
	}

	if err := remote.Load(ctx); err != nil {
		return fmt.Errorf("syncengine: loading remote history for %s: %w", remote.Key(), err)
	}

	return nil
}

// nextKey returns the smallest of the three streams' current keys.
func nextKey(remotes []*history.RemoteHistoryHandle, ri int, locals []*localnode.LocalNode, li int, storedRows []*store.Row, si int) string {
	var key string

	have := false

	consider := func(k string) {
		if !have || k < key {
			key = k
			have = true
		}
	}

	if ri < len(remotes) {
		consider(remotes[ri].Key())
	}

	if li < len(locals) {
		consider(locals[li].Key)
	}

	if si < len(storedRows) {
		consider(storedRows[si].Key)
	}

	return key
}
