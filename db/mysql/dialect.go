// Package mysql provides the MySQL-backed db.Dialect, an alternate
// DataStore engine for deployments that already run MySQL, sharing
// db.Store's dialect-agnostic query logic (cf. the teacher's
// db/mysql, which does the same for its liveattrs schema).
package mysql

import (
	"database/sql"
	"fmt"

	"github.com/drupchen/tacl/db"

	_ "github.com/go-sql-driver/mysql" // load the driver
)

// Dialect is the MySQL db.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Open(conf db.Conf) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", conf.User, conf.Password, conf.Host, conf.Name)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DataStore %s: %w", conf.Name, err)
	}
	return sqlDB, nil
}

func (Dialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTO_INCREMENT" }

func (Dialect) TempTableKeyword() string { return "TEMPORARY" }

func (Dialect) DropIndexSQL(index, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", index, table)
}

func (Dialect) AnalyseSQL() []string { return []string{"ANALYZE TABLE Text, TextNGram, TextHasNGram"} }

func (Dialect) KeyableTextType() string { return "VARCHAR(255)" }
