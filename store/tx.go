package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/docsvault/dbopen"
)

// runTx wraps dbopen.RunTx so every writer in this package retries on
// SQLITE_BUSY with the same bounded backoff.
func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return dbopen.RunTx(ctx, s.db, fn)
}
