// Package db implements the DataStore (C5) and, integrated with it, the
// Query Engine (C6): a relational index of (text, ngram, size, count)
// triples and the set-algebraic queries over it.
package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/drupchen/tacl/errs"
)

// Conf configures a backend connection. Type selects the Dialect
// ("sqlite" or "mysql"); Path is used by sqlite, Name/Host/User/Password
// by mysql. PreconfQueries are run once after connecting (mirroring the
// teacher's PRAGMA/session-variable bootstrap).
type Conf struct {
	Type           string
	Path           string
	Name           string
	Host           string
	User           string
	Password       string
	PreconfQueries []string
}

// Dialect isolates the handful of places sqlite and mysql disagree:
// driver name/DSN construction, autoincrement syntax, the temporary
// table keyword, DROP INDEX and ANALYZE syntax, and the column type of
// keyed text columns. Everything else - placeholders, the remaining
// DDL, the query SQL - is shared.
type Dialect interface {
	Name() string
	Open(conf Conf) (*sql.DB, error)
	AutoIncrementPK() string
	TempTableKeyword() string // "TEMP" (sqlite) or "TEMPORARY" (mysql)
	DropIndexSQL(index, table string) string
	AnalyseSQL() []string
	// KeyableTextType returns the column type used for TEXT columns
	// that participate in a UNIQUE constraint or index. MySQL cannot
	// key a BLOB/TEXT column without an explicit length, so it needs a
	// bounded VARCHAR there; sqlite has no such restriction.
	KeyableTextType() string
}

const (
	resultHeader = "ngram,size,work,siglum,count,label"
	countsHeader = "work,siglum,label,size,unique_ngrams,total_ngrams,token_count"
)

// resultRow is one row of the canonical schema shared by every query
// and by Results (§3).
type resultRow struct {
	Ngram  string
	Size   int
	Work   string
	Siglum string
	Count  int
	Label  string
}

func writeHeader(w io.Writer, header string) (*csv.Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(header, ",")); err != nil {
		return nil, errs.IO("<sink>", err)
	}
	return cw, nil
}

func emitRow(cw *csv.Writer, r resultRow) error {
	return cw.Write([]string{
		r.Ngram, fmt.Sprint(r.Size), r.Work, r.Siglum, fmt.Sprint(r.Count), r.Label,
	})
}

// chunk splits ids into batches no larger than n, to keep SQL IN (...)
// clauses within reasonable statement sizes.
func chunk(ids []string, n int) [][]string {
	if n <= 0 {
		n = 500
	}
	var out [][]string
	for len(ids) > 0 {
		end := n
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[:end])
		ids = ids[end:]
	}
	return out
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "?"
	}
	return strings.Join(ps, ",")
}

func argsOf(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

// withConn pins a single *sql.Conn for the lifetime of fn. This matters
// because database/sql pools connections, and a TEMP/TEMPORARY table
// created on one connection is invisible on another; every statement
// that must see that table has to run on the same connection.
func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errs.IO(s.dialect.Name(), err)
	}
	defer conn.Close()
	return fn(conn)
}
