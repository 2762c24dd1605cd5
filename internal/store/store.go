// Package store provides a SQLite-backed flat record store for ingested
// Resource/Block/Fragment hierarchies. It is the relational alternative
// to the doublet graph encoding: one row per entity, ordered, so the
// hierarchy can be reconstructed exactly across process restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// FragmentRow is one fragment row as persisted.
type FragmentRow struct {
	// ID is the fragment's point identifier.
	ID string
	// Order is the fragment's global 0-based position.
	Order int
	// Type classifies the fragment (paragraph, heading, ...).
	Type string
}

// BlockRow is one block row with its fragments.
type BlockRow struct {
	// ID is the block's point identifier.
	ID string
	// Order is the block's 0-based position within the resource.
	Order int
	// Size is the character length of the block's content.
	Size int
	// FragmentCount is the number of fragments in the block.
	FragmentCount int
	// Fragments are the block's fragments in order.
	Fragments []FragmentRow
}

// ResourceRecord is one full resource hierarchy as persisted.
type ResourceRecord struct {
	// ID is the resource's point identifier.
	ID string
	// ParserType is the content type tag of the parser that produced it.
	ParserType string
	// TotalBlocks and TotalFragments mirror the parse metadata.
	TotalBlocks    int
	TotalFragments int
	// Blocks are the resource's blocks in order.
	Blocks []BlockRow
}

// BlockIDs is one block's identifier with its fragment identifiers, as
// returned by Hierarchy. The shape mirrors the doublet walk's result.
type BlockIDs struct {
	// BlockID is the block's point identifier.
	BlockID string
	// FragmentIDs are the block's fragment identifiers in order.
	FragmentIDs []string
}

// Hierarchy is a reconstructed resource tree.
type Hierarchy struct {
	// ResourceID is the resource's point identifier.
	ResourceID string
	// Blocks are the resource's blocks in stored order.
	Blocks []BlockIDs
}

// RecordStore persists and reconstructs resource hierarchies.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// SaveResource persists one full hierarchy atomically.
	SaveResource(ctx context.Context, rec ResourceRecord) error
	// Hierarchy reconstructs the hierarchy for a resource identifier.
	// An unknown resource returns (nil, nil) — absence is not an error.
	Hierarchy(ctx context.Context, resourceID string) (*Hierarchy, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a RecordStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the hierarchy database.
// It resolves to ~/.catena/hierarchy.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".catena")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "hierarchy.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS resources (
    id              TEXT    PRIMARY KEY,
    parser_type     TEXT    NOT NULL,
    total_blocks    INTEGER NOT NULL,
    total_fragments INTEGER NOT NULL,
    created_at      INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS blocks (
    id             TEXT    PRIMARY KEY,
    resource_id    TEXT    NOT NULL REFERENCES resources(id),
    ord            INTEGER NOT NULL,
    size           INTEGER NOT NULL,
    fragment_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fragments (
    id        TEXT    PRIMARY KEY,
    block_id  TEXT    NOT NULL REFERENCES blocks(id),
    ord       INTEGER NOT NULL,
    frag_type TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocks_resource_ord
    ON blocks (resource_id, ord);
CREATE INDEX IF NOT EXISTS idx_fragments_block_ord
    ON fragments (block_id, ord);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveResource persists one full hierarchy in a single transaction.
func (s *SQLiteStore) SaveResource(ctx context.Context, rec ResourceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const insResource = `INSERT INTO resources (id, parser_type, total_blocks, total_fragments, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insResource, rec.ID, rec.ParserType, rec.TotalBlocks, rec.TotalFragments, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: insert resource %s: %w", rec.ID, err)
	}

	const insBlock = `INSERT INTO blocks (id, resource_id, ord, size, fragment_count) VALUES (?, ?, ?, ?, ?)`
	const insFragment = `INSERT INTO fragments (id, block_id, ord, frag_type) VALUES (?, ?, ?, ?)`
	for _, b := range rec.Blocks {
		if _, err := tx.ExecContext(ctx, insBlock, b.ID, rec.ID, b.Order, b.Size, b.FragmentCount); err != nil {
			return fmt.Errorf("store: insert block %s: %w", b.ID, err)
		}
		for _, f := range b.Fragments {
			if _, err := tx.ExecContext(ctx, insFragment, f.ID, b.ID, f.Order, f.Type); err != nil {
				return fmt.Errorf("store: insert fragment %s: %w", f.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit resource %s: %w", rec.ID, err)
	}
	return nil
}

// Hierarchy reconstructs the stored tree for resourceID, blocks and
// fragments in their persisted order. An unknown resource returns
// (nil, nil).
func (s *SQLiteStore) Hierarchy(ctx context.Context, resourceID string) (*Hierarchy, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM resources WHERE id = ?`, resourceID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup resource %s: %w", resourceID, err)
	}

	const q = `
SELECT b.id, f.id
FROM   blocks b
LEFT JOIN fragments f ON f.block_id = b.id
WHERE  b.resource_id = ?
ORDER  BY b.ord ASC, f.ord ASC`

	rows, err := s.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, fmt.Errorf("store: hierarchy query: %w", err)
	}
	defer rows.Close()

	h := &Hierarchy{ResourceID: resourceID, Blocks: []BlockIDs{}}
	for rows.Next() {
		var blockID string
		var fragmentID sql.NullString
		if err := rows.Scan(&blockID, &fragmentID); err != nil {
			return nil, fmt.Errorf("store: hierarchy scan: %w", err)
		}
		if len(h.Blocks) == 0 || h.Blocks[len(h.Blocks)-1].BlockID != blockID {
			h.Blocks = append(h.Blocks, BlockIDs{BlockID: blockID, FragmentIDs: []string{}})
		}
		if fragmentID.Valid {
			last := &h.Blocks[len(h.Blocks)-1]
			last.FragmentIDs = append(last.FragmentIDs, fragmentID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: hierarchy rows: %w", err)
	}
	return h, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
