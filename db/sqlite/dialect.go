// Package sqlite provides the sqlite3-backed db.Dialect, the default
// DataStore engine: one file per store, as in the teacher's db/sqlite.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/drupchen/tacl/db"

	_ "github.com/mattn/go-sqlite3" // load the driver
)

// Dialect is the sqlite3 db.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Open(conf db.Conf) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite3", conf.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DataStore %s: %w", conf.Path, err)
	}
	// sqlite3 only allows one writer at a time, and ":memory:" opens a
	// distinct, empty database per connection - a pool would make
	// Initialize's schema invisible to every later query. A single
	// connection avoids both problems.
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, nil
}

func (Dialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (Dialect) TempTableKeyword() string { return "TEMP" }

func (Dialect) DropIndexSQL(index, table string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", index)
}

func (Dialect) AnalyseSQL() []string { return []string{"ANALYZE"} }

func (Dialect) KeyableTextType() string { return "TEXT" }
