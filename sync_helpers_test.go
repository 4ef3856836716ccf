package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/config"
	"github.com/YAtOff/s3rsync/internal/store"
	"github.com/YAtOff/s3rsync/internal/syncengine"
)

func TestResolveUnderRoot_RelativeJoinsUnderRoot(t *testing.T) {
	got := resolveUnderRoot("/srv/sync", "s3rsync.db")
	assert.Equal(t, filepath.Join("/srv/sync", "s3rsync.db"), got)
}

func TestResolveUnderRoot_AbsoluteIsUnchanged(t *testing.T) {
	got := resolveUnderRoot("/srv/sync", "/var/lib/s3rsync.db")
	assert.Equal(t, "/var/lib/s3rsync.db", got)
}

func TestSyncInterval_ParsesConfig(t *testing.T) {
	cfg := &config.Config{SyncInterval: "90s"}

	d, err := syncInterval(cfg)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestSyncInterval_InvalidDuration(t *testing.T) {
	cfg := &config.Config{SyncInterval: "not-a-duration"}

	_, err := syncInterval(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}

func TestBuildSession_PopulatesFields(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StorageBucket = "storage-bucket"
	cfg.InternalBucket = "internal-bucket"
	cfg.ActionTimeout = "30s"

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	session, closer, err := buildSession(context.Background(), cfg, root, "myprefix", logger)
	require.NoError(t, err)

	t.Cleanup(func() { closer() })

	assert.Equal(t, "storage-bucket", session.StorageBucket)
	assert.Equal(t, "internal-bucket", session.InternalBucket)
	assert.Equal(t, "myprefix", session.Prefix)
	assert.Equal(t, "myprefix/metadata", session.MetadataPrefix)
	assert.Equal(t, 30*time.Second, session.ActionTimeout)
	assert.Equal(t, filepath.Join(root, cfg.SignatureFolder), session.SignatureFolder)
	assert.NotZero(t, session.RootFolderID)
	assert.NotNil(t, session.Store)
}

func TestStoreConflictRecorder_RecordsConflict(t *testing.T) {
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.Open(context.Background(), filepath.Join(root, "test.db"), logger)
	require.NoError(t, err)

	t.Cleanup(func() { st.Close() })

	recorder := &storeConflictRecorder{store: st}

	detected := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	err = recorder.RecordConflict(context.Background(), syncengine.ConflictRecord{
		Key:         "abc123",
		RemoteETag:  "remote-etag",
		LocalETag:   "local-etag",
		DetectedAt:  detected,
		Description: "remote history advanced past the local base version",
	})
	require.NoError(t, err)

	rows, err := st.ListConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc123", rows[0].Key)
	assert.Equal(t, detected.UnixNano(), rows[0].DetectedAt)
}
