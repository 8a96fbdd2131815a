// Package store persists chunks with both full-text and vector embeddings
// in an embedded SQLite database and answers hybrid (lexical + vector)
// search with Reciprocal Rank Fusion, per §4.6.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/docsvault/docerr"
	"github.com/hazyhaar/docsvault/embedder"
	"github.com/hazyhaar/docsvault/idgen"

	_ "modernc.org/sqlite"
)

// Dimension is the fixed vector width every stored embedding is padded to
// (D in §6's persisted-state table).
const Dimension = 1536

// EmbedBatch is the number of texts embedded per Embed call, per §4.6.1.
const EmbedBatch = 96

// Config configures a Store.
type Config struct {
	// Path is the SQLite file path, or ":memory:" for an ephemeral store.
	// Ignored if DB is set directly.
	Path string

	// DB lets a caller supply an already-opened database handle (used by
	// tests via dbopen.OpenMemory). If nil, Path is opened with dbopen.Open.
	DB *sql.DB

	// Embedder produces query/document vectors. Required.
	Embedder embedder.Embedder

	// IDGen generates chunk ids. Defaults to idgen.Default (UUIDv7).
	IDGen idgen.Generator

	// Now returns the current time, overridable for deterministic tests.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.IDGen == nil {
		c.IDGen = idgen.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is the Document Store (C6): libraries, documents, and their FTS5
// and vector indexes, behind a single SQLite connection.
type Store struct {
	db     *sql.DB
	owned  bool
	emb    embedder.Embedder
	idgen  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (creating if needed) a Store at cfg.Path, or wraps cfg.DB if
// provided, runs migrations, and validates the embedder's dimension against
// Dimension before any writes occur (DIMENSION_ERROR, §7).
func Open(cfg Config) (*Store, error) {
	cfg.defaults()
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("store: Config.Embedder is required")
	}

	db := cfg.DB
	owned := false
	if db == nil {
		var err error
		db, err = openDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		owned = true
	}

	if dim := cfg.Embedder.Dimension(); dim > Dimension {
		if owned {
			db.Close()
		}
		return nil, fmt.Errorf("%w: embedder dimension %d exceeds store dimension %d",
			docerr.ErrDimensionMismatch, dim, Dimension)
	}

	if err := migrate(context.Background(), db); err != nil {
		if owned {
			db.Close()
		}
		return nil, fmt.Errorf("%w: %v", docerr.ErrMigrationFailed, err)
	}

	return &Store{
		db:     db,
		owned:  owned,
		emb:    cfg.Embedder,
		idgen:  cfg.IDGen,
		now:    cfg.Now,
		logger: cfg.Logger,
	}, nil
}

// Close releases the underlying database handle, if the Store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for callers (e.g. tests) that need
// direct access.
func (s *Store) DB() *sql.DB { return s.db }
