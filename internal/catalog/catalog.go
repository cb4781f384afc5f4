// Package catalog persists the set of immutable segments backing an
// itemcache manifest in a SQLite database, playing the role of "the
// manifest" on disk: each row records a segment's id, its covered key
// range, and where its data file lives.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const schemaVersion = 1

// Segment is one row of the catalog: an immutable, sorted run of items
// covering [Start, End] and stored at Path.
type Segment struct {
	ID    string
	Start []byte
	End   []byte
	Path  string
	Items int
}

// Catalog is a SQLite-backed segment index.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog: open: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("catalog: ping: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	c := &Catalog{db: db}

	if err := c.migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return c, nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// applyPragmas matches the durability/speed tradeoffs appropriate for a
// catalog that is rewritten on every flush and read on every cache miss.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA cache_size = -20000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: apply pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func (c *Catalog) migrate(ctx context.Context) error {
	row := c.db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("catalog: read user_version: %w", err)
	}

	if version >= schemaVersion {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin migration: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS segments (
			id TEXT PRIMARY KEY,
			start_key BLOB NOT NULL,
			end_key BLOB NOT NULL,
			path TEXT NOT NULL,
			item_count INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_segments_start ON segments(start_key)",
		"CREATE INDEX IF NOT EXISTS idx_segments_end ON segments(end_key)",
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: migration statement %q: %w", stmt, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("catalog: set user_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit migration: %w", err)
	}

	committed = true

	return nil
}

// Put registers a newly written segment, replacing any previous row with
// the same id.
func (c *Catalog) Put(ctx context.Context, seg Segment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO segments (id, start_key, end_key, path, item_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_key = excluded.start_key,
			end_key = excluded.end_key,
			path = excluded.path,
			item_count = excluded.item_count`,
		seg.ID, seg.Start, seg.End, seg.Path, seg.Items,
	)
	if err != nil {
		return fmt.Errorf("catalog: put segment %s: %w", seg.ID, err)
	}

	return nil
}

// Overlapping returns every segment whose covered range intersects
// [start, end], ordered by start_key.
func (c *Catalog) Overlapping(ctx context.Context, start, end []byte) ([]Segment, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, start_key, end_key, path, item_count
		FROM segments
		WHERE start_key <= ? AND end_key >= ?
		ORDER BY start_key`,
		end, start,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: query overlapping: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var segs []Segment

	for rows.Next() {
		var seg Segment

		if err := rows.Scan(&seg.ID, &seg.Start, &seg.End, &seg.Path, &seg.Items); err != nil {
			return nil, fmt.Errorf("catalog: scan segment row: %w", err)
		}

		segs = append(segs, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate overlapping: %w", err)
	}

	return segs, nil
}

// Delete removes segments by id in a single transaction.
func (c *Catalog) Delete(ctx context.Context, ids []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin delete: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM segments WHERE id = ?")
	if err != nil {
		return fmt.Errorf("catalog: prepare delete: %w", err)
	}

	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("catalog: delete segment %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit delete: %w", err)
	}

	committed = true

	return nil
}
