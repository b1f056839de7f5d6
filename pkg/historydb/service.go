// HistoryDB records the outcome of every batch submission.
// Only metadata is kept, never the readings themselves: a dropped batch is
// gone, this is a log and not a retry queue.
package historydb

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/telem_cli/pkg/pathing"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type DB struct {
	db *sql.DB
}

// Open creates the database file if needed and applies migrations.
func Open(path string) (*DB, error) {
	if err := pathing.EnsureParentDir(path, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db %s: %w", path, err)
	}
	// One writer; SQLite serialises anyway
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history db %s: %w", path, err)
	}

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// SQL exposes the handle for read-only reporting queries.
func (d *DB) SQL() *sql.DB {
	return d.db
}
