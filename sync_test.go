package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPidFilePathFor(t *testing.T) {
	got := pidFilePathFor("/srv/sync")
	assert.Equal(t, filepath.Join("/srv/sync", ".s3rsync.pid"), got)
}

func TestNewSyncCmd_RequiresPrefix(t *testing.T) {
	cmd := newSyncCmd()
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestNewSyncCmd_RequiresExactlyOneArg(t *testing.T) {
	cmd := newSyncCmd()
	cmd.SetArgs([]string{"--prefix", "p"})

	err := cmd.Execute()
	require.Error(t, err)
}
