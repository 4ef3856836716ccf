package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YAtOff/s3rsync/internal/history"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func TestEnsureRootFolder_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	id2, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}

func TestGet_MissingReturnsNilRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootID, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	row, err := s.Get(ctx, rootID, "nonexistent")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestUpsert_ThenGet_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootID, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	h := history.New("a/b.txt", "key1")
	h.AddEntry(history.NodeHistoryEntry{Key: "e1", ETag: "etag1", BaseVersion: "v1", BaseSize: 100})

	err = s.Upsert(ctx, &Row{
		RootFolderID:      rootID,
		Key:               "key1",
		Data:              h,
		LocalModifiedTime: 1000,
		LocalCreatedTime:  900,
		RemoteHistoryETag: "hist-etag-1",
	})
	require.NoError(t, err)

	row, err := s.Get(ctx, rootID, "key1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "hist-etag-1", row.RemoteHistoryETag)
	require.Equal(t, int64(1000), row.LocalModifiedTime)
	require.Len(t, row.Data.Entries, 1)
	require.Equal(t, "e1", row.Data.Entries[0].Key)
}

func TestUpsert_OverwritesExistingRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootID, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	h := history.New("a/b.txt", "key1")
	h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1", BaseSize: 10})

	require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootID, Key: "key1", Data: h, RemoteHistoryETag: "v1"}))

	h2 := h.Clone()
	h2.AddEntry(history.NodeHistoryEntry{Key: "e2", HasDelta: true, DeltaSize: 5})

	require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootID, Key: "key1", Data: h2, RemoteHistoryETag: "v2"}))

	row, err := s.Get(ctx, rootID, "key1")
	require.NoError(t, err)
	require.Equal(t, "v2", row.RemoteHistoryETag)
	require.Len(t, row.Data.Entries, 2)
}

func TestDelete_RemovesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootID, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	h := history.New("a.txt", "key1")
	h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
	require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootID, Key: "key1", Data: h}))

	require.NoError(t, s.Delete(ctx, rootID, "key1"))

	row, err := s.Get(ctx, rootID, "key1")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestDelete_MissingRowIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootID, err := s.EnsureRootFolder(ctx, "/srv/sync")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rootID, "never-existed"))
}

func TestListByRoot_ReturnsOnlyThatRootsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootA, err := s.EnsureRootFolder(ctx, "/srv/a")
	require.NoError(t, err)

	rootB, err := s.EnsureRootFolder(ctx, "/srv/b")
	require.NoError(t, err)

	for _, key := range []string{"k1", "k2"} {
		h := history.New(key, key)
		h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
		require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootA, Key: key, Data: h}))
	}

	h := history.New("other", "other")
	h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
	require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootB, Key: "other", Data: h}))

	rows, err := s.ListByRoot(ctx, rootA)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "k1", rows[0].Key)
	require.Equal(t, "k2", rows[1].Key)
}

func TestCountByRoot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootA, err := s.EnsureRootFolder(ctx, "/srv/a")
	require.NoError(t, err)

	rootB, err := s.EnsureRootFolder(ctx, "/srv/b")
	require.NoError(t, err)

	for _, key := range []string{"k1", "k2", "k3"} {
		h := history.New(key, key)
		h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
		require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootA, Key: key, Data: h}))
	}

	countA, err := s.CountByRoot(ctx, rootA)
	require.NoError(t, err)
	require.Equal(t, 3, countA)

	countB, err := s.CountByRoot(ctx, rootB)
	require.NoError(t, err)
	require.Equal(t, 0, countB)
}

func TestDeleteByRoot_RemovesOnlyThatRootsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootA, err := s.EnsureRootFolder(ctx, "/srv/a")
	require.NoError(t, err)

	rootB, err := s.EnsureRootFolder(ctx, "/srv/b")
	require.NoError(t, err)

	for _, key := range []string{"k1", "k2"} {
		h := history.New(key, key)
		h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
		require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootA, Key: key, Data: h}))
	}

	h := history.New("other", "other")
	h.AddEntry(history.NodeHistoryEntry{Key: "e1", BaseVersion: "v1"})
	require.NoError(t, s.Upsert(ctx, &Row{RootFolderID: rootB, Key: "other", Data: h}))

	n, err := s.DeleteByRoot(ctx, rootA)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	rows, err := s.ListByRoot(ctx, rootA)
	require.NoError(t, err)
	require.Empty(t, rows)

	rowsB, err := s.ListByRoot(ctx, rootB)
	require.NoError(t, err)
	require.Len(t, rowsB, 1)
}

func TestDeleteByRoot_EmptyRootIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootA, err := s.EnsureRootFolder(ctx, "/srv/a")
	require.NoError(t, err)

	n, err := s.DeleteByRoot(ctx, rootA)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestInsertConflict_ThenListConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertConflict(ctx, ConflictRow{
		Key:         "a/b.txt",
		RemoteETag:  "remote-1",
		LocalETag:   "local-1",
		Description: "remote history advanced past the local base version",
		DetectedAt:  1000,
	}))

	require.NoError(t, s.InsertConflict(ctx, ConflictRow{
		Key:         "c/d.txt",
		RemoteETag:  "remote-2",
		LocalETag:   "local-2",
		Description: "concurrent write lost the precondition race",
		DetectedAt:  2000,
	}))

	rows, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a/b.txt", rows[0].Key)
	require.Equal(t, "remote-1", rows[0].RemoteETag)
	require.Equal(t, "local-1", rows[0].LocalETag)
	require.NotZero(t, rows[0].ID)
	require.Equal(t, "c/d.txt", rows[1].Key)
}

func TestCountConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	count, err := s.CountConflicts(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	require.NoError(t, s.InsertConflict(ctx, ConflictRow{Key: "a.txt", DetectedAt: 1}))
	require.NoError(t, s.InsertConflict(ctx, ConflictRow{Key: "b.txt", DetectedAt: 2}))

	count, err = s.CountConflicts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
