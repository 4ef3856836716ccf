package main

import (
	"context"
	"crypto/md5" //nolint:gosec // matching fileMD5's own fingerprint scheme
	"encoding/hex"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRebuildFullVersionCmd_Structure(t *testing.T) {
	cmd := newRebuildFullVersionCmd()
	assert.Equal(t, "rebuild-full-version", cmd.Name())
	assert.NotNil(t, cmd.RunE)
}

func TestNewRebuildFullVersionCmd_RequiresTwoArgs(t *testing.T) {
	cmd := newRebuildFullVersionCmd()
	cmd.SetArgs([]string{"--prefix", "p", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestNewRebuildFullVersionCmd_RequiresPrefix(t *testing.T) {
	cmd := newRebuildFullVersionCmd()
	cmd.SetArgs([]string{t.TempDir(), "a/b.txt"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestNewFullVersionEntryKey_LowercaseHexAndUnique(t *testing.T) {
	a := newFullVersionEntryKey()
	b := newFullVersionEntryKey()

	assert.Len(t, a, 32)
	assert.Regexp(t, "^[0-9a-f]+$", a)
	assert.NotEqual(t, a, b)
}

func TestFileMD5_MatchesStandardLibraryMD5(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/content.bin"
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	got, err := fileMD5(path)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	h := md5.New() //nolint:gosec
	_, err = io.Copy(h, f)
	require.NoError(t, err)

	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
}

func TestReconstructContent_EmptyChainErrors(t *testing.T) {
	_, cleanup, err := reconstructContent(context.Background(), nil, "storage", "internal", "prefix", "metadata", "a.txt", nil)
	defer cleanup()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty history chain")
}
