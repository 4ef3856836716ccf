package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/objectstore"
	"github.com/YAtOff/s3rsync/internal/objectstore/objectstoretest"
)

func testClient() *objectstore.Client {
	return objectstore.NewFromAPI(objectstoretest.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUploadToRoot_ThenDownloadToRoot_RoundTrips(t *testing.T) {
	client := testClient()
	ctx := context.Background()

	srcRoot := t.TempDir()
	relPath := "a/b.txt"
	srcPath := filepath.Join(srcRoot, filepath.FromSlash(relPath))

	require.NoError(t, os.MkdirAll(filepath.Dir(srcPath), 0o755))
	require.NoError(t, os.WriteFile(srcPath, []byte("hello world"), 0o644))

	versionID, err := UploadToRoot(ctx, client, "storage", "content", srcRoot, relPath)
	require.NoError(t, err)
	require.NotEmpty(t, versionID)

	dstRoot := t.TempDir()
	targetPath, err := DownloadToRoot(ctx, client, "storage", "content", dstRoot, relPath, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dstRoot, filepath.FromSlash(relPath)), targetPath)

	data, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestDownloadToRoot_CreatesParentDirectories(t *testing.T) {
	client := testClient()
	ctx := context.Background()

	_, err := client.Put(ctx, "storage", "content/deep/nested/file.txt", []byte("x"), "")
	require.NoError(t, err)

	dstRoot := t.TempDir()
	targetPath, err := DownloadToRoot(ctx, client, "storage", "content", dstRoot, "deep/nested/file.txt", "")
	require.NoError(t, err)

	data, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}

func TestDownloadToRoot_MissingObjectFails(t *testing.T) {
	client := testClient()
	ctx := context.Background()

	dstRoot := t.TempDir()
	_, err := DownloadToRoot(ctx, client, "storage", "content", dstRoot, "nope.txt", "")
	require.Error(t, err)
}

func TestUploadMetadata_ThenDownloadMetadata_RoundTrips(t *testing.T) {
	client := testClient()
	ctx := context.Background()

	err := UploadMetadata(ctx, client, "internal", "metadata", "entry-1", "signature", []byte("sigbytes"))
	require.NoError(t, err)

	data, err := DownloadMetadata(ctx, client, "internal", "metadata", "entry-1", "signature")
	require.NoError(t, err)
	require.Equal(t, []byte("sigbytes"), data)
}

func TestDownloadMetadata_MissingFails(t *testing.T) {
	client := testClient()
	ctx := context.Background()

	_, err := DownloadMetadata(ctx, client, "internal", "metadata", "entry-1", "delta")
	require.Error(t, err)
}

func TestObjectKey_UsesForwardSlashesRegardlessOfOS(t *testing.T) {
	require.Equal(t, "content/a/b.txt", objectKey("content", filepath.Join("a", "b.txt")))
}

func TestMetadataKey_Shape(t *testing.T) {
	require.Equal(t, "metadata/entries/entry-1/delta", metadataKey("metadata", "entry-1", "delta"))
}
