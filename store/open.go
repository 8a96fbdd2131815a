package store

import (
	"database/sql"

	"github.com/hazyhaar/docsvault/dbopen"
)

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		path = "docsvault.db"
	}
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
