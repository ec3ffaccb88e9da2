// Package factory dispatches on db.Conf.Type to construct the right
// backend, mirroring the teacher's db/factory.
package factory

import (
	"fmt"

	"github.com/drupchen/tacl/db"
	"github.com/drupchen/tacl/db/mysql"
	"github.com/drupchen/tacl/db/sqlite"
)

// Open connects to the backend named by conf.Type ("sqlite" or
// "mysql").
func Open(conf db.Conf) (*db.Store, error) {
	switch conf.Type {
	case "", "sqlite":
		return db.Open(conf, sqlite.Dialect{})
	case "mysql":
		return db.Open(conf, mysql.Dialect{})
	default:
		return nil, fmt.Errorf("unknown DataStore backend %q", conf.Type)
	}
}
