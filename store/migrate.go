package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/docsvault/dbopen"
)

// migration is one idempotent, ordered schema change, per §6's Migrations
// rule: applied inside a single transaction, retriable on BUSY.
type migration struct {
	id  string
	sql string
}

// migrations is ordered by sequential id prefix, per §6 ("001-...", "002-...").
var migrations = []migration{
	{id: "001-init", sql: schemaV1},
}

const bootstrapSQL = `
CREATE TABLE IF NOT EXISTS _schema_migrations (
    id         TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// migrate applies every migration not already recorded in
// _schema_migrations, in order. Running it twice is a no-op, per §8's
// round-trip property.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, bootstrapSQL); err != nil {
		return fmt.Errorf("bootstrap _schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, db, m.id)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		err = dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.id, err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO _schema_migrations (id, applied_at) VALUES (?, ?)`,
				m.id, time.Now().UTC().Unix())
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _schema_migrations WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", id, err)
	}
	return n > 0, nil
}
