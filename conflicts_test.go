package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/config"
	"github.com/YAtOff/s3rsync/internal/store"
)

func TestNewConflictsCmd_Structure(t *testing.T) {
	cmd := newConflictsCmd()
	assert.Equal(t, "conflicts", cmd.Name())
	assert.NotNil(t, cmd.RunE)
}

func TestNewConflictsCmd_RequiresPrefix(t *testing.T) {
	cmd := newConflictsCmd()
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestRunConflicts_NoConflictsRecorded(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StorageBucket = "storage-bucket"
	cfg.InternalBucket = "internal-bucket"

	cc := &CLIContext{Cfg: cfg, Logger: testLogger(t)}

	cmd := newConflictsCmd()
	ctx := context.WithValue(context.Background(), cliContextKey{}, cc)
	cmd.SetContext(ctx)

	err := runConflicts(cmd, root, "myprefix")
	require.NoError(t, err)
}

func TestRunConflicts_ListsRecordedConflicts(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StorageBucket = "storage-bucket"
	cfg.InternalBucket = "internal-bucket"

	cc := &CLIContext{Cfg: cfg, Logger: testLogger(t)}

	session, closer, err := buildSession(context.Background(), cfg, root, "myprefix", cc.Logger)
	require.NoError(t, err)

	require.NoError(t, session.Store.InsertConflict(context.Background(), store.ConflictRow{
		Key:         "a/b.txt",
		RemoteETag:  "remote-1",
		LocalETag:   "local-1",
		Description: "remote history advanced past the local base version",
		DetectedAt:  1000,
	}))
	require.NoError(t, closer())

	cmd := newConflictsCmd()
	ctx := context.WithValue(context.Background(), cliContextKey{}, cc)
	cmd.SetContext(ctx)

	err = runConflicts(cmd, root, "myprefix")
	require.NoError(t, err)
}

func TestPrintConflictsTable_DoesNotPanic(t *testing.T) {
	printConflictsTable([]store.ConflictRow{
		{ID: 1, Key: "a/b.txt", Description: "conflict", DetectedAt: 1000},
	})
}

func TestPrintConflictsJSON_DoesNotError(t *testing.T) {
	require.NoError(t, printConflictsJSON([]store.ConflictRow{
		{ID: 1, Key: "a/b.txt", Description: "conflict", DetectedAt: 1000},
	}))
}
