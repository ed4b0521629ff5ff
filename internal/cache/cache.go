// Package cache implements the content-addressed download cache. Blobs
// are stored under their SHA-256 and an SQLite index maps canonical
// virtual paths to blob hashes, so renames and re-uploads of identical
// content never duplicate storage. Freshness is decided by the provider's
// modifiedTime alone.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/gdshell/gdshell/internal/gateway"
)

// walJournalSizeLimit bounds the WAL file (64 MiB).
const walJournalSizeLimit = 67108864

// ErrNotCached is returned by blob lookups for unknown paths.
var ErrNotCached = errors.New("cache: path not cached")

// Downloader is the gateway slice the cache pulls content through.
type Downloader interface {
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// Cache is the path-keyed download cache backed by an SQLite index and a
// content-addressed blob directory.
type Cache struct {
	db     *sql.DB
	dir    string
	dl     Downloader
	logger *slog.Logger
	stmts  cacheStatements

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

type cacheStatements struct {
	getEntry, upsertEntry, deleteEntry *sql.Stmt
	bumpDelete, getDeleteCount         *sql.Stmt
}

// entry is one index row.
type entry struct {
	Path         string
	FileID       string
	ContentHash  string
	Size         int64
	ModifiedTime int64
	CachedAt     int64
}

// Index queries.
const (
	sqlGetEntry = `SELECT path, file_id, content_hash, size, modified_time, cached_at
		FROM entries WHERE path = ?`

	sqlUpsertEntry = `INSERT INTO entries
		(path, file_id, content_hash, size, modified_time, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_id       = excluded.file_id,
			content_hash  = excluded.content_hash,
			size          = excluded.size,
			modified_time = excluded.modified_time,
			cached_at     = excluded.cached_at`

	sqlDeleteEntry = `DELETE FROM entries WHERE path = ?`

	sqlBumpDelete = `INSERT INTO delete_history (path, delete_count, last_deleted_at)
		VALUES (?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			delete_count    = delete_count + 1,
			last_deleted_at = excluded.last_deleted_at`

	sqlGetDeleteCount = `SELECT delete_count FROM delete_history WHERE path = ?`
)

// Open creates the cache over dir, opening (and migrating) the index
// database at dir/index.db and keeping blobs under dir/blobs.
func Open(dir string, dl Downloader, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating blob dir: %w", err)
	}

	dbPath := filepath.Join(dir, "index.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: opening index: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, dir: dir, dl: dl, logger: logger, nowFunc: time.Now}

	if err := c.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("cache index ready", slog.String("path", dbPath))

	return c, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("cache: setting pragma: %w", err)
		}
	}

	return nil
}

// stmtDef maps a SQL string to the prepared statement pointer it populates.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func (c *Cache) prepareStatements(ctx context.Context) error {
	defs := []stmtDef{
		{&c.stmts.getEntry, sqlGetEntry, "getEntry"},
		{&c.stmts.upsertEntry, sqlUpsertEntry, "upsertEntry"},
		{&c.stmts.deleteEntry, sqlDeleteEntry, "deleteEntry"},
		{&c.stmts.bumpDelete, sqlBumpDelete, "bumpDelete"},
		{&c.stmts.getDeleteCount, sqlGetDeleteCount, "getDeleteCount"},
	}

	for i := range defs {
		stmt, err := c.db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("cache: preparing %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// getEntry reads one index row. Returns (nil, nil) for unknown paths.
func (c *Cache) getEntry(ctx context.Context, path string) (*entry, error) {
	e := &entry{}

	err := c.stmts.getEntry.QueryRowContext(ctx, path).Scan(
		&e.Path, &e.FileID, &e.ContentHash, &e.Size, &e.ModifiedTime, &e.CachedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("cache: reading entry %q: %w", path, err)
	}

	return e, nil
}

// IsCached reports whether a path has an index entry with its blob on disk.
func (c *Cache) IsCached(ctx context.Context, path string) (bool, error) {
	e, err := c.getEntry(ctx, path)
	if err != nil || e == nil {
		return false, err
	}

	_, statErr := os.Stat(c.blobPath(e.ContentHash))

	return statErr == nil, nil
}

// IsUpToDate reports whether the cached copy matches the provider's
// current modifiedTime. A miss is simply not up to date, never an error.
func (c *Cache) IsUpToDate(ctx context.Context, path string, modifiedTime time.Time) (bool, error) {
	e, err := c.getEntry(ctx, path)
	if err != nil || e == nil {
		return false, err
	}

	if _, statErr := os.Stat(c.blobPath(e.ContentHash)); statErr != nil {
		return false, nil
	}

	return !modifiedTime.After(time.Unix(0, e.ModifiedTime)), nil
}

// Get returns the file's content, serving the cached blob when fresh and
// pulling through the gateway otherwise.
func (c *Cache) Get(ctx context.Context, path string, file *gateway.File) ([]byte, error) {
	fresh, err := c.IsUpToDate(ctx, path, file.ModifiedTime)
	if err != nil {
		return nil, err
	}

	if fresh {
		e, entryErr := c.getEntry(ctx, path)
		if entryErr != nil {
			return nil, entryErr
		}

		data, readErr := os.ReadFile(c.blobPath(e.ContentHash))
		if readErr == nil {
			c.logger.Debug("cache hit", slog.String("path", path))
			return data, nil
		}

		c.logger.Warn("cache blob unreadable, refetching",
			slog.String("path", path),
			slog.String("error", readErr.Error()),
		)
	}

	return c.fetch(ctx, path, file)
}

// fetch downloads the file, stores the blob under its content hash, and
// points the index entry at it.
func (c *Cache) fetch(ctx context.Context, path string, file *gateway.File) ([]byte, error) {
	c.logger.Debug("cache miss, downloading",
		slog.String("path", path),
		slog.String("file_id", file.ID),
	)

	var buf bytes.Buffer

	if _, err := c.dl.Download(ctx, file.ID, &buf); err != nil {
		return nil, fmt.Errorf("cache: downloading %s: %w", path, err)
	}

	data := buf.Bytes()

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := c.writeBlob(hash, data); err != nil {
		return nil, err
	}

	now := c.nowFunc()

	_, err := c.stmts.upsertEntry.ExecContext(ctx,
		path, file.ID, hash, int64(len(data)), file.ModifiedTime.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: indexing %s: %w", path, err)
	}

	return data, nil
}

// writeBlob stores content under its hash with a temp-file rename, so a
// crash never leaves a partial blob under a valid hash.
func (c *Cache) writeBlob(hash string, data []byte) error {
	dest := c.blobPath(hash)

	// Content-addressed: an existing blob is already the right bytes.
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".blob-*")
	if err != nil {
		return fmt.Errorf("cache: creating blob temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("cache: writing blob: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: closing blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: placing blob: %w", err)
	}

	return nil
}

// Invalidate drops the index entry for a path. The blob stays: content
// addressing means other paths may still point at it.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	if _, err := c.stmts.deleteEntry.ExecContext(ctx, path); err != nil {
		return fmt.Errorf("cache: invalidating %q: %w", path, err)
	}

	c.logger.Debug("cache entry invalidated", slog.String("path", path))

	return nil
}

// RecordDelete notes a deletion and invalidates the entry, so a later
// upload reusing the name never serves the old content.
func (c *Cache) RecordDelete(ctx context.Context, path string) error {
	if _, err := c.stmts.bumpDelete.ExecContext(ctx, path, c.nowFunc().UnixNano()); err != nil {
		return fmt.Errorf("cache: recording delete of %q: %w", path, err)
	}

	return c.Invalidate(ctx, path)
}

// DeleteCount returns how many deletions have been recorded for a path.
func (c *Cache) DeleteCount(ctx context.Context, path string) (int, error) {
	var count int

	err := c.stmts.getDeleteCount.QueryRowContext(ctx, path).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("cache: reading delete count of %q: %w", path, err)
	}

	return count, nil
}

// blobPath composes the on-disk location of a content hash.
func (c *Cache) blobPath(hash string) string {
	return filepath.Join(c.dir, "blobs", hash)
}

// Close releases the prepared statements and the index database.
func (c *Cache) Close() error {
	stmts := []*sql.Stmt{
		c.stmts.getEntry, c.stmts.upsertEntry, c.stmts.deleteEntry,
		c.stmts.bumpDelete, c.stmts.getDeleteCount,
	}

	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("cache: closing index: %w", err)
	}

	return nil
}
