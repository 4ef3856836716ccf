package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/YAtOff/s3rsync/internal/config"
	"github.com/YAtOff/s3rsync/internal/objectstore"
	"github.com/YAtOff/s3rsync/internal/store"
	"github.com/YAtOff/s3rsync/internal/syncengine"
)

// buildSession opens the object-store client and local DB, ensures the root
// folder is registered, and assembles a syncengine.Session for rootFolder
// scoped under s3Prefix. The returned closer must be called once the caller
// is done with the session.
func buildSession(ctx context.Context, cfg *config.Config, rootFolder, s3Prefix string, logger *slog.Logger) (*syncengine.Session, func() error, error) {
	absRoot, err := filepath.Abs(rootFolder)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving root folder %s: %w", rootFolder, err)
	}

	client, err := objectstore.New(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to object store: %w", err)
	}

	dbPath := resolveUnderRoot(absRoot, cfg.LocalDB)

	st, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store %s: %w", dbPath, err)
	}

	rootFolderID, err := st.EnsureRootFolder(ctx, absRoot)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("registering root folder %s: %w", absRoot, err)
	}

	metadataPrefix := s3Prefix + "/" + cfg.SyncMetadataPrefix

	actionTimeout, err := time.ParseDuration(cfg.ActionTimeout)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("parsing action_timeout %q: %w", cfg.ActionTimeout, err)
	}

	session := &syncengine.Session{
		StorageBucket:   cfg.StorageBucket,
		InternalBucket:  cfg.InternalBucket,
		Prefix:          s3Prefix,
		MetadataPrefix:  metadataPrefix,
		RootFolder:      absRoot,
		RootFolderID:    rootFolderID,
		SignatureFolder: resolveUnderRoot(absRoot, cfg.SignatureFolder),
		Client:          client,
		HistoryStore:    objectstore.NewHistoryStore(client, cfg.InternalBucket, metadataPrefix),
		Store:           st,
		ActionTimeout:   actionTimeout,
		Logger:          logger,
	}

	return session, st.Close, nil
}

// resolveUnderRoot returns path unchanged if it is already absolute,
// otherwise joins it under root. local_db and signature_folder are
// configured as bare names by default (defaults.go) so that multiple sync
// roots sharing one config file each get their own DB and signature cache.
func resolveUnderRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, path)
}

// syncInterval parses cfg.SyncInterval, matching ParseDuration's error
// context to the config field name for a clearer CLI error message.
func syncInterval(cfg *config.Config) (time.Duration, error) {
	d, err := time.ParseDuration(cfg.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing sync_interval %q: %w", cfg.SyncInterval, err)
	}

	return d, nil
}

// storeConflictRecorder adapts store.Store to syncengine.ConflictRecorder,
// persisting each reported conflict as a conflicts table row (spec.md
// section 4.G: "record/report only", no auto-merge).
type storeConflictRecorder struct {
	store *store.Store
}

func (r *storeConflictRecorder) RecordConflict(ctx context.Context, rec syncengine.ConflictRecord) error {
	return r.store.InsertConflict(ctx, store.ConflictRow{
		Key:         rec.Key,
		RemoteETag:  rec.RemoteETag,
		LocalETag:   rec.LocalETag,
		Description: rec.Description,
		DetectedAt:  rec.DetectedAt.UnixNano(),
	})
}
