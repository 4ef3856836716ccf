// Package store is the local SQLite adapter for stored-history rows: the
// per-client record of the last-synced state of each file under a sync root
// (data-model.md section 3, "StoredHistory"; section 4.C, "Local store
// adapter").
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"

	"github.com/YAtOff/s3rsync/internal/history"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Row is one stored_node_history record: the last-synced NodeHistory for a
// single file under a single root folder.
type Row struct {
	RootFolderID      int64
	Key               string
	Data              *history.NodeHistory
	LocalModifiedTime int64
	LocalCreatedTime  int64
	RemoteHistoryETag string
}

// Store is the keyed local store described by spec.md section 4.C, backed
// by a single SQLite database file shared by every call into this process
// (teacher convention, internal/sync/state.go: sole-writer WAL mode).
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmts statements
}

type statements struct {
	getRootFolder    *sql.Stmt
	insertRootFolder *sql.Stmt
	get              *sql.Stmt
	upsert           *sql.Stmt
	deleteRow        *sql.Stmt
	listByRoot       *sql.Stmt
	countByRoot      *sql.Stmt
	deleteByRoot     *sql.Stmt
	insertConflict   *sql.Stmt
	listConflicts    *sql.Stmt
	countConflicts   *sql.Stmt
}

// ConflictRow is one row of the conflicts table: a reported but unresolved
// divergence between a file's local and remote history, recorded for
// read-only inspection (`s3rsync status`, `s3rsync conflicts`) per
// SPEC_FULL.md section 4.G's "record/report only" behavior. No auto-merge
// or resolution workflow exists in this domain (spec.md Non-goals).
type ConflictRow struct {
	ID          int64
	Key         string
	RemoteETag  string
	LocalETag   string
	Description string
	DetectedAt  int64
}

// Open opens (creating if necessary) the SQLite database at dbPath, applies
// pending migrations, and prepares all statements. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening local store", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dbPath, err)
	}

	// Sole-writer pattern: one connection avoids SQLITE_BUSY from this
	// process's own concurrent writers (teacher convention,
	// internal/sync/state.go).
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: preparing statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: setting pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("store: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	defs := []struct {
		dest **sql.Stmt
		sql  string
	}{
		{&s.stmts.getRootFolder, `SELECT id FROM root_folder WHERE path = ?`},
		{&s.stmts.insertRootFolder, `INSERT INTO root_folder (path) VALUES (?)`},
		{&s.stmts.get, `SELECT data, local_modified_time, local_created_time, remote_history_etag
			FROM stored_node_history WHERE root_folder_id = ? AND key = ?`},
		{&s.stmts.upsert, `INSERT INTO stored_node_history
			(root_folder_id, key, data, local_modified_time, local_created_time, remote_history_etag)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(root_folder_id, key) DO UPDATE SET
				data = excluded.data,
				local_modified_time = excluded.local_modified_time,
				local_created_time = excluded.local_created_time,
				remote_history_etag = excluded.remote_history_etag`},
		{&s.stmts.deleteRow, `DELETE FROM stored_node_history WHERE root_folder_id = ? AND key = ?`},
		{&s.stmts.listByRoot, `SELECT key, data, local_modified_time, local_created_time, remote_history_etag
			FROM stored_node_history WHERE root_folder_id = ? ORDER BY key`},
		{&s.stmts.countByRoot, `SELECT COUNT(*) FROM stored_node_history WHERE root_folder_id = ?`},
		{&s.stmts.deleteByRoot, `DELETE FROM stored_node_history WHERE root_folder_id = ?`},
		{&s.stmts.insertConflict, `INSERT INTO conflicts
			(key, remote_etag, local_etag, description, detected_at)
			VALUES (?, ?, ?, ?, ?)`},
		{&s.stmts.listConflicts, `SELECT id, key, remote_etag, local_etag, description, detected_at
			FROM conflicts ORDER BY detected_at`},
		{&s.stmts.countConflicts, `SELECT COUNT(*) FROM conflicts`},
	}

	for _, d := range defs {
		stmt, err := s.db.PrepareContext(ctx, d.sql)
		if err != nil {
			return fmt.Errorf("store: preparing %q: %w", d.sql, err)
		}

		*d.dest = stmt
	}

	return nil
}

// EnsureRootFolder returns the id of the root_folder row for path, creating
// it if it does not exist yet.
func (s *Store) EnsureRootFolder(ctx context.Context, path string) (int64, error) {
	var id int64

	err := s.stmts.getRootFolder.QueryRowContext(ctx, path).Scan(&id)
	if err == nil {
		return id, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: looking up root folder %q: %w", path, err)
	}

	result, err := s.stmts.insertRootFolder.ExecContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("store: creating root folder %q: %w", path, err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: reading new root folder id for %q: %w", path, err)
	}

	return id, nil
}

// Get returns the stored row for (rootFolderID, key), or (nil, nil) if none
// exists — callers (the producer) use the nil row to distinguish "never
// synced" from "previously synced".
func (s *Store) Get(ctx context.Context, rootFolderID int64, key string) (*Row, error) {
	row := s.stmts.get.QueryRowContext(ctx, rootFolderID, key)

	r, err := scanRow(row, rootFolderID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil row means "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting %d/%q: %w", rootFolderID, key, err)
	}

	return r, nil
}

// Upsert inserts or updates the stored row for row.Key under row.RootFolderID.
func (s *Store) Upsert(ctx context.Context, row *Row) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("store: encoding history for %q: %w", row.Key, err)
	}

	_, err = s.stmts.upsert.ExecContext(ctx,
		row.RootFolderID, row.Key, string(data),
		row.LocalModifiedTime, row.LocalCreatedTime, row.RemoteHistoryETag,
	)
	if err != nil {
		return fmt.Errorf("store: upserting %d/%q: %w", row.RootFolderID, row.Key, err)
	}

	return nil
}

// Delete removes the stored row for (rootFolderID, key). Deleting a row that
// does not exist is not an error.
func (s *Store) Delete(ctx context.Context, rootFolderID int64, key string) error {
	_, err := s.stmts.deleteRow.ExecContext(ctx, rootFolderID, key)
	if err != nil {
		return fmt.Errorf("store: deleting %d/%q: %w", rootFolderID, key, err)
	}

	return nil
}

// ListByRoot returns every stored row under rootFolderID, ordered by key —
// the producer's input for the "stored" leg of its three-way merge
// (spec.md section 4.I).
func (s *Store) ListByRoot(ctx context.Context, rootFolderID int64) ([]*Row, error) {
	rows, err := s.stmts.listByRoot.QueryContext(ctx, rootFolderID)
	if err != nil {
		return nil, fmt.Errorf("store: listing root %d: %w", rootFolderID, err)
	}
	defer rows.Close()

	var out []*Row

	for rows.Next() {
		var (
			key                                  string
			data                                 string
			localModifiedTime, localCreatedTime  int64
			remoteHistoryETag                    string
		)

		if err := rows.Scan(&key, &data, &localModifiedTime, &localCreatedTime, &remoteHistoryETag); err != nil {
			return nil, fmt.Errorf("store: scanning row for root %d: %w", rootFolderID, err)
		}

		var h history.NodeHistory
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			return nil, fmt.Errorf("store: decoding history for %q: %w", key, err)
		}

		out = append(out, &Row{
			RootFolderID:      rootFolderID,
			Key:               key,
			Data:              &h,
			LocalModifiedTime: localModifiedTime,
			LocalCreatedTime:  localCreatedTime,
			RemoteHistoryETag: remoteHistoryETag,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating rows for root %d: %w", rootFolderID, err)
	}

	return out, nil
}

// CountByRoot returns the number of tracked files under rootFolderID, for
// `s3rsync status`.
func (s *Store) CountByRoot(ctx context.Context, rootFolderID int64) (int, error) {
	var count int

	if err := s.stmts.countByRoot.QueryRowContext(ctx, rootFolderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting root %d: %w", rootFolderID, err)
	}

	return count, nil
}

// DeleteByRoot drops every stored row under rootFolderID, for
// `s3rsync clear-local` (ported from original_source/scripts/clear.py's
// clear_local: this domain's equivalent of wiping the local DB's knowledge
// of a root, without touching remote state). Returns the number of rows
// removed.
func (s *Store) DeleteByRoot(ctx context.Context, rootFolderID int64) (int64, error) {
	result, err := s.stmts.deleteByRoot.ExecContext(ctx, rootFolderID)
	if err != nil {
		return 0, fmt.Errorf("store: clearing root %d: %w", rootFolderID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: counting cleared rows for root %d: %w", rootFolderID, err)
	}

	return n, nil
}

// InsertConflict appends a conflict record. Conflicts are append-only —
// there is no resolution or update path, matching spec.md's "record/report
// only" conflict policy.
func (s *Store) InsertConflict(ctx context.Context, row ConflictRow) error {
	_, err := s.stmts.insertConflict.ExecContext(ctx,
		row.Key, row.RemoteETag, row.LocalETag, row.Description, row.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("store: recording conflict for %q: %w", row.Key, err)
	}

	return nil
}

// ListConflicts returns every recorded conflict, oldest first.
func (s *Store) ListConflicts(ctx context.Context) ([]ConflictRow, error) {
	rows, err := s.stmts.listConflicts.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: listing conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictRow

	for rows.Next() {
		var r ConflictRow

		if err := rows.Scan(&r.ID, &r.Key, &r.RemoteETag, &r.LocalETag, &r.Description, &r.DetectedAt); err != nil {
			return nil, fmt.Errorf("store: scanning conflict row: %w", err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating conflicts: %w", err)
	}

	return out, nil
}

// CountConflicts returns the total number of recorded conflicts, for
// `s3rsync status`.
func (s *Store) CountConflicts(ctx context.Context) (int, error) {
	var count int

	if err := s.stmts.countConflicts.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting conflicts: %w", err)
	}

	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(row scannable, rootFolderID int64, key string) (*Row, error) {
	var (
		data                                 string
		localModifiedTime, localCreatedTime  int64
		remoteHistoryETag                    string
	)

	if err := row.Scan(&data, &localModifiedTime, &localCreatedTime, &remoteHistoryETag); err != nil {
		return nil, err
	}

	var h history.NodeHistory
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("decoding history for %q: %w", key, err)
	}

	return &Row{
		RootFolderID:      rootFolderID,
		Key:               key,
		Data:              &h,
		LocalModifiedTime: localModifiedTime,
		LocalCreatedTime:  localCreatedTime,
		RemoteHistoryETag: remoteHistoryETag,
	}, nil
}

// Close closes all prepared statements and the database connection.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmts.getRootFolder, s.stmts.insertRootFolder,
		s.stmts.get, s.stmts.upsert, s.stmts.deleteRow, s.stmts.listByRoot,
		s.stmts.countByRoot, s.stmts.deleteByRoot,
		s.stmts.insertConflict, s.stmts.listConflicts, s.stmts.countConflicts,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: closing database: %w", err)
	}

	return nil
}
