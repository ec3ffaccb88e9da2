package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/rs/zerolog/log"

	"github.com/drupchen/tacl/catalogue"
	"github.com/drupchen/tacl/errs"
)

// Store is a DataStore backed by a Dialect (sqlite or mysql). Its
// public surface implements both C5 (Initialize/AddNgrams/Validate) and
// C6 (Counts/Diff/Intersection/...), per spec §4.6's "integrated with
// DataStore".
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the backend described by conf using dialect, and
// applies conf.PreconfQueries (or, for sqlite, default PRAGMAs).
func Open(conf Conf, dialect Dialect) (*Store, error) {
	sqlDB, err := dialect.Open(conf)
	if err != nil {
		return nil, err
	}
	s := &Store{db: sqlDB, dialect: dialect}
	preconf := conf.PreconfQueries
	if len(preconf) == 0 && dialect.Name() == "sqlite" {
		preconf = []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"}
	}
	for _, q := range preconf {
		if _, err := sqlDB.Exec(q); err != nil {
			log.Warn().Err(err).Str("query", q).Msg("preconf query failed, continuing")
		}
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the three-table schema (Text, TextNGram,
// TextHasNGram) and its indices. It is safe to call against an empty
// database only; re-running against an existing store is an error from
// the underlying engine (duplicate table), by design - callers decide
// whether to recreate a store, this layer does not silently drop data.
func (s *Store) Initialize() error {
	return createSchema(s.db, s.dialect)
}

// labelTotals maps a label to the sum of token_count over every
// witness carrying it (§4.6 step 3).
type labelTotals map[string]int

// labelToken pairs a label with its aggregate token_count, ordered via
// collections.BinTree the same way cmd/udex orders tokenFeats.
type labelToken struct {
	label      string
	tokenCount int
}

func (l *labelToken) Compare(other collections.Comparable) int {
	o := other.(*labelToken)
	if l.tokenCount != o.tokenCount {
		return l.tokenCount - o.tokenCount
	}
	if l.label < o.label {
		return -1
	}
	if l.label > o.label {
		return 1
	}
	return 0
}

// sortedAscending returns the labels in totals sorted ascending by
// token_count (ties broken by label), per §4.5.3's ordering requirement
// for intersection.
func (totals labelTotals) sortedAscending() []string {
	tree := new(collections.BinTree[*labelToken])
	for label, count := range totals {
		tree.Add(&labelToken{label: label, tokenCount: count})
	}
	items := tree.ToSlice()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.label
	}
	return out
}

// withCatalogue creates a scoped temporary table mapping active
// catalogue works to labels, computes per-label token totals, and
// invokes fn with a connection that can see that table. The table is
// dropped on every exit path, per the "temporary table as a scoped
// resource" design note. This replaces the original design of mutating
// a durable Text.label column before each query (see design notes):
// labels are computed in the query join instead.
func (s *Store) withCatalogue(ctx context.Context, cat *catalogue.Catalogue, fn func(conn *sql.Conn, totals labelTotals) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		createSQL := fmt.Sprintf(
			"CREATE %s TABLE CatalogueLabel (work TEXT, label TEXT)", s.dialect.TempTableKeyword())
		if _, err := conn.ExecContext(ctx, createSQL); err != nil {
			return errs.IO("CatalogueLabel", err)
		}
		defer conn.ExecContext(ctx, "DROP TABLE CatalogueLabel")

		stmt, err := conn.PrepareContext(ctx, "INSERT INTO CatalogueLabel (work, label) VALUES (?, ?)")
		if err != nil {
			return errs.IO("CatalogueLabel", err)
		}
		for _, e := range cat.Active() {
			if _, err := stmt.ExecContext(ctx, e.Work, e.Label); err != nil {
				stmt.Close()
				return errs.IO("CatalogueLabel", err)
			}
		}
		stmt.Close()

		totals := make(labelTotals)
		rows, err := conn.QueryContext(ctx,
			`SELECT cl.label, SUM(t.token_count) FROM Text t
			 JOIN CatalogueLabel cl ON cl.work = t.work
			 GROUP BY cl.label`)
		if err != nil {
			return errs.IO("CatalogueLabel", err)
		}
		for rows.Next() {
			var label string
			var sum sql.NullInt64
			if err := rows.Scan(&label, &sum); err != nil {
				rows.Close()
				return errs.IO("CatalogueLabel", err)
			}
			totals[label] = int(sum.Int64)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return errs.IO("CatalogueLabel", err)
		}
		rows.Close()

		// Labels with no ingested witness yet still participate (total 0).
		for _, l := range cat.OrderedLabels() {
			if _, ok := totals[l]; !ok {
				totals[l] = 0
			}
		}

		return fn(conn, totals)
	})
}

