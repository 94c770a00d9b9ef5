package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the results database. Schema is managed by golang-migrate via
// the migrations/ directory; see migrate.go.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite results database at path.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	// WAL keeps concurrent readers (report generation) from blocking the
	// writer during a run insert.
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}
