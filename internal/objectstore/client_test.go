package objectstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/objectstore/objectstoretest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient() *Client {
	return NewFromAPI(objectstoretest.New(), testLogger())
}

func TestPutGet_RoundTrip(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	_, err := c.Put(ctx, "storage", "a/b.txt", []byte("hello"), "")
	require.NoError(t, err)

	data, err := c.Get(ctx, "storage", "a/b.txt", "")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestGet_NotFound(t *testing.T) {
	c := newTestClient()

	_, err := c.Get(context.Background(), "storage", "missing", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPut_ConditionalFailsOnMismatch(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	_, err := c.Put(ctx, "storage", "a.txt", []byte("v1"), "")
	require.NoError(t, err)

	_, err = c.Put(ctx, "storage", "a.txt", []byte("v2"), "wrong-etag")
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestPut_ConditionalSucceedsOnMatch(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	r1, err := c.Put(ctx, "storage", "a.txt", []byte("v1"), "")
	require.NoError(t, err)

	_, err = c.Put(ctx, "storage", "a.txt", []byte("v2"), r1.ETag)
	require.NoError(t, err)
}

func TestHead(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	_, err := c.Put(ctx, "storage", "a.txt", []byte("hello"), "")
	require.NoError(t, err)

	head, err := c.Head(ctx, "storage", "a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(5), head.Size)
}

func TestDelete_MissingKeyIsNotAnError(t *testing.T) {
	c := newTestClient()

	err := c.Delete(context.Background(), "storage", "never-existed")
	require.NoError(t, err)
}

func TestListLatestVersions(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	_, err := c.Put(ctx, "storage", "x.txt", []byte("1"), "")
	require.NoError(t, err)

	_, err = c.Put(ctx, "storage", "y.txt", []byte("22"), "")
	require.NoError(t, err)

	versions, err := c.ListLatestVersions(ctx, "storage", "")
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestDeleteAllVersions(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	_, err := c.Put(ctx, "storage", "prefix/a.txt", []byte("1"), "")
	require.NoError(t, err)

	_, err = c.Put(ctx, "storage", "prefix/b.txt", []byte("22"), "")
	require.NoError(t, err)

	_, err = c.Put(ctx, "storage", "other/c.txt", []byte("333"), "")
	require.NoError(t, err)

	n, err := c.DeleteAllVersions(ctx, "storage", "prefix/")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = c.Get(ctx, "storage", "prefix/a.txt", "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, "storage", "other/c.txt", "")
	require.NoError(t, err)
}

func TestDeleteAllVersions_EmptyPrefix(t *testing.T) {
	c := newTestClient()

	n, err := c.DeleteAllVersions(context.Background(), "storage", "nothing-here/")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
