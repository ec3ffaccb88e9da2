package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/drupchen/tacl/catalogue"
	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/errs"
)

// fetchedRow is an in-memory copy of one labelled n-gram row, used by
// the set-algebra queries below. Diff and intersection are computed in
// Go over the full set of labelled rows rather than via deeply nested
// SQL subselects: for the scale this engine targets (a catalogued
// corpus, not an unbounded web index) this is both simpler to get
// right and just as correct, while keeping every query a single
// round-trip against the labelled join.
type fetchedRow struct {
	Ngram  string
	Size   int
	Work   string
	Siglum string
	Count  int
	Label  string
}

type ngKey struct {
	Ngram string
	Size  int
}

// fetchLabeledRows returns every TextNGram row for witnesses whose
// work is active in the catalogue bound to conn by withCatalogue,
// labelled via the CatalogueLabel join (never via a durable column).
func fetchLabeledRows(ctx context.Context, conn *sql.Conn) ([]fetchedRow, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT tn.ngram, tn.size, t.work, t.siglum, tn.count, cl.label
		FROM TextNGram tn
		JOIN Text t ON t.id = tn.text
		JOIN CatalogueLabel cl ON cl.work = t.work`)
	if err != nil {
		return nil, errs.IO("TextNGram", err)
	}
	defer rows.Close()
	var out []fetchedRow
	for rows.Next() {
		var r fetchedRow
		if err := rows.Scan(&r.Ngram, &r.Size, &r.Work, &r.Siglum, &r.Count, &r.Label); err != nil {
			return nil, errs.IO("TextNGram", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.IO("TextNGram", err)
	}
	return out, nil
}

// Counts writes the counts report (work, siglum, label, size,
// unique_ngrams, total_ngrams, token_count), one row per (text, size).
func (s *Store) Counts(ctx context.Context, cat *catalogue.Catalogue, sink io.Writer) error {
	cw, err := writeHeader(sink, countsHeader)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, _ labelTotals) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT t.work, t.siglum, cl.label, tn.size, COUNT(*), SUM(tn.count), t.token_count
			FROM Text t
			JOIN CatalogueLabel cl ON cl.work = t.work
			JOIN TextNGram tn ON tn.text = t.id
			GROUP BY t.id, tn.size
			ORDER BY t.work, t.siglum, tn.size`)
		if err != nil {
			return errs.IO("TextNGram", err)
		}
		defer rows.Close()
		for rows.Next() {
			var work, siglum, label string
			var size, unique, total, tokenCount int
			if err := rows.Scan(&work, &siglum, &label, &size, &unique, &total, &tokenCount); err != nil {
				return errs.IO("TextNGram", err)
			}
			if err := cw.Write([]string{
				work, siglum, label, strconv.Itoa(size), strconv.Itoa(unique), strconv.Itoa(total), strconv.Itoa(tokenCount),
			}); err != nil {
				return errs.IO("<sink>", err)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Search emits, for every ngram and every witness active in the
// catalogue, a row with its count (0 when absent). Size is recovered
// by retokenizing the n-gram string itself with corp.Tokenizer - valid
// because a tokenizer's pattern matches context-free token boundaries.
func (s *Store) Search(ctx context.Context, cat *catalogue.Catalogue, corp *corpus.Corpus, ngrams []string, sink io.Writer) error {
	cw, err := writeHeader(sink, resultHeader)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, _ labelTotals) error {
		type witness struct {
			id             int64
			work, siglum, label string
		}
		rows, err := conn.QueryContext(ctx, `
			SELECT t.id, t.work, t.siglum, cl.label
			FROM Text t JOIN CatalogueLabel cl ON cl.work = t.work
			ORDER BY t.work, t.siglum`)
		if err != nil {
			return errs.IO("Text", err)
		}
		var witnesses []witness
		for rows.Next() {
			var w witness
			if err := rows.Scan(&w.id, &w.work, &w.siglum, &w.label); err != nil {
				rows.Close()
				return errs.IO("Text", err)
			}
			witnesses = append(witnesses, w)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, ng := range ngrams {
			size := len(corp.Tokenizer.Tokenize(ng))
			for _, w := range witnesses {
				var count int
				err := conn.QueryRowContext(ctx,
					"SELECT count FROM TextNGram WHERE text = ? AND ngram = ? AND size = ?",
					w.id, ng, size).Scan(&count)
				if err == sql.ErrNoRows {
					count = 0
				} else if err != nil {
					return errs.IO("TextNGram", err)
				}
				if err := emitRow(cw, resultRow{Ngram: ng, Size: size, Work: w.work, Siglum: w.siglum, Count: count, Label: w.label}); err != nil {
					return errs.IO("<sink>", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Diff writes the n-grams that appear under exactly one label.
func (s *Store) Diff(ctx context.Context, cat *catalogue.Catalogue, sink io.Writer) error {
	cw, err := writeHeader(sink, resultHeader)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, totals labelTotals) error {
		all, err := fetchLabeledRows(ctx, conn)
		if err != nil {
			return err
		}
		labelSets := make(map[ngKey]map[string]bool)
		for _, r := range all {
			k := ngKey{r.Ngram, r.Size}
			if labelSets[k] == nil {
				labelSets[k] = make(map[string]bool)
			}
			labelSets[k][r.Label] = true
		}
		for _, label := range totals.sortedAscending() {
			for _, r := range all {
				if r.Label != label {
					continue
				}
				if len(labelSets[ngKey{r.Ngram, r.Size}]) != 1 {
					continue
				}
				if err := emitRow(cw, resultRow(r)); err != nil {
					return errs.IO("<sink>", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// DiffAsymmetric writes n-grams present under primeLabel and absent
// from every other active label, emitting only prime-labelled rows.
func (s *Store) DiffAsymmetric(ctx context.Context, cat *catalogue.Catalogue, primeLabel string, sink io.Writer) error {
	cw, err := writeHeader(sink, resultHeader)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, _ labelTotals) error {
		all, err := fetchLabeledRows(ctx, conn)
		if err != nil {
			return err
		}
		labelSets := make(map[ngKey]map[string]bool)
		for _, r := range all {
			k := ngKey{r.Ngram, r.Size}
			if labelSets[k] == nil {
				labelSets[k] = make(map[string]bool)
			}
			labelSets[k][r.Label] = true
		}
		for _, r := range all {
			if r.Label != primeLabel {
				continue
			}
			set := labelSets[ngKey{r.Ngram, r.Size}]
			if len(set) != 1 || !set[primeLabel] {
				continue
			}
			if err := emitRow(cw, resultRow(r)); err != nil {
				return errs.IO("<sink>", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Intersection writes n-grams appearing under every active label at
// least once, one row per (witness, count), iterating labels ascending
// by aggregate token_count so the smallest label is checked first.
func (s *Store) Intersection(ctx context.Context, cat *catalogue.Catalogue, sink io.Writer) error {
	cw, err := writeHeader(sink, resultHeader)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, totals labelTotals) error {
		all, err := fetchLabeledRows(ctx, conn)
		if err != nil {
			return err
		}
		ordered := totals.sortedAscending()
		full := len(ordered)
		labelSets := make(map[ngKey]map[string]bool)
		for _, r := range all {
			k := ngKey{r.Ngram, r.Size}
			if labelSets[k] == nil {
				labelSets[k] = make(map[string]bool)
			}
			labelSets[k][r.Label] = true
		}
		for _, label := range ordered {
			for _, r := range all {
				if r.Label != label {
					continue
				}
				if len(labelSets[ngKey{r.Ngram, r.Size}]) != full {
					continue
				}
				if err := emitRow(cw, resultRow(r)); err != nil {
					return errs.IO("<sink>", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// SuppliedSource is one externally supplied results CSV, optionally
// forcing every row in it to a single label (the `-s LABEL FILE` CLI
// form) rather than trusting its own label column.
type SuppliedSource struct {
	Label  string
	Reader io.Reader
}

func processSupplied(sources []SuppliedSource) ([]fetchedRow, []string, error) {
	var rows []fetchedRow
	var labels []string
	seen := make(map[string]bool)
	for _, src := range sources {
		r := csv.NewReader(src.Reader)
		header, err := r.Read()
		if err != nil {
			if err == io.EOF {
				continue
			}
			return nil, nil, errs.MalformedResults(fmt.Sprintf("cannot read supplied results header: %s", err))
		}
		idx := make(map[string]int, len(header))
		for i, h := range header {
			idx[h] = i
		}
		for _, col := range []string{"ngram", "size", "work", "siglum", "count", "label"} {
			if _, ok := idx[col]; !ok {
				return nil, nil, errs.MalformedResults(col)
			}
		}
		for {
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, nil, errs.MalformedResults(fmt.Sprintf("%s", err))
			}
			size, err := strconv.Atoi(rec[idx["size"]])
			if err != nil {
				return nil, nil, errs.MalformedResults("size")
			}
			count, err := strconv.Atoi(rec[idx["count"]])
			if err != nil {
				return nil, nil, errs.MalformedResults("count")
			}
			label := rec[idx["label"]]
			if src.Label != "" {
				label = src.Label
			}
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
			rows = append(rows, fetchedRow{
				Ngram: rec[idx["ngram"]], Size: size, Work: rec[idx["work"]],
				Siglum: rec[idx["siglum"]], Count: count, Label: label,
			})
		}
	}
	return rows, labels, nil
}

func subtractLabels(catalogueLabels, suppliedLabels []string) []string {
	supplied := make(map[string]bool, len(suppliedLabels))
	for _, l := range suppliedLabels {
		supplied[l] = true
	}
	var out []string
	for _, l := range catalogueLabels {
		if !supplied[l] {
			out = append(out, l)
		}
	}
	return out
}

// DiffSupplied runs diff against the union of the catalogue's labels
// and the labels present in sources, pre-filtered to the n-grams
// sources mention. Supplied labels are never queried against
// DataStore tables.
func (s *Store) DiffSupplied(ctx context.Context, cat *catalogue.Catalogue, sources []SuppliedSource, sink io.Writer) error {
	return s.querySupplied(ctx, cat, sources, sink, 1)
}

// IntersectionSupplied runs intersection against the same combined
// label set as DiffSupplied.
func (s *Store) IntersectionSupplied(ctx context.Context, cat *catalogue.Catalogue, sources []SuppliedSource, sink io.Writer) error {
	return s.querySupplied(ctx, cat, sources, sink, 0)
}

// querySupplied implements both supplied variants: requiredCount == 1
// selects diff semantics (exactly one label), requiredCount == 0
// selects intersection semantics (every combined label).
func (s *Store) querySupplied(ctx context.Context, cat *catalogue.Catalogue, sources []SuppliedSource, sink io.Writer, requiredCount int) error {
	cw, err := writeHeader(sink, resultHeader)
	if err != nil {
		return err
	}
	suppliedRows, suppliedLabels, err := processSupplied(sources)
	if err != nil {
		return err
	}
	err = s.withCatalogue(ctx, cat, func(conn *sql.Conn, _ labelTotals) error {
		trimmed := subtractLabels(cat.OrderedLabels(), suppliedLabels)
		trimmedSet := make(map[string]bool, len(trimmed))
		for _, l := range trimmed {
			trimmedSet[l] = true
		}
		suppliedKeys := make(map[ngKey]bool, len(suppliedRows))
		for _, r := range suppliedRows {
			suppliedKeys[ngKey{r.Ngram, r.Size}] = true
		}

		dbRows, err := fetchLabeledRows(ctx, conn)
		if err != nil {
			return err
		}
		var combined []fetchedRow
		for _, r := range dbRows {
			if trimmedSet[r.Label] && suppliedKeys[ngKey{r.Ngram, r.Size}] {
				combined = append(combined, r)
			}
		}
		combined = append(combined, suppliedRows...)

		labelSets := make(map[ngKey]map[string]bool)
		for _, r := range combined {
			k := ngKey{r.Ngram, r.Size}
			if labelSets[k] == nil {
				labelSets[k] = make(map[string]bool)
			}
			labelSets[k][r.Label] = true
		}
		full := len(trimmed) + len(suppliedLabels)
		for _, r := range combined {
			n := len(labelSets[ngKey{r.Ngram, r.Size}])
			qualifies := false
			if requiredCount == 1 {
				qualifies = n == 1
			} else {
				qualifies = n == full
			}
			if !qualifies {
				continue
			}
			if err := emitRow(cw, resultRow(r)); err != nil {
				return errs.IO("<sink>", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
