// Package results implements the Results component (C7): a tabular
// algebra over the canonical results schema, closed under every
// transform except the two that append columns.
package results

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/drupchen/tacl/errs"
)

// requiredColumns are the columns a results CSV must carry on load.
var requiredColumns = []string{"ngram", "size", "work", "siglum", "count", "label"}

// Row is one row of the canonical schema, plus the two optional columns
// add_label_count/add_label_work_count append.
type Row struct {
	Ngram             string
	Size              int
	Work              string
	Siglum            string
	Count             int
	Label             string
	LabelCount        int
	HasLabelCount     bool
	LabelWorkCount    int
	HasLabelWorkCount bool
}

// Table is a Results object: an ordered slice of Row. Unlike the
// original dataframe-backed implementation, a plain slice has no index
// to go stale or collide across passes, so no dedup_index step is
// needed between transforms.
type Table struct {
	Rows              []Row
	HasLabelCount     bool
	HasLabelWorkCount bool
}

// Load reads a canonical results CSV from r.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, errs.IO("<source>", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, errs.MalformedResults(col)
		}
	}
	hasLabelCount, hasLabelCountOK := idx["label count"]
	hasLabelWorkCount, hasLabelWorkCountOK := idx["label work count"]

	t := &Table{HasLabelCount: hasLabelCountOK, HasLabelWorkCount: hasLabelWorkCountOK}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.IO("<source>", err)
		}
		size, err := strconv.Atoi(rec[idx["size"]])
		if err != nil {
			return nil, errs.MalformedResults("size")
		}
		count, err := strconv.Atoi(rec[idx["count"]])
		if err != nil {
			return nil, errs.MalformedResults("count")
		}
		row := Row{
			Ngram:  rec[idx["ngram"]],
			Size:   size,
			Work:   rec[idx["work"]],
			Siglum: rec[idx["siglum"]],
			Count:  count,
			Label:  rec[idx["label"]],
		}
		if hasLabelCountOK {
			v, err := strconv.Atoi(rec[hasLabelCount])
			if err != nil {
				return nil, errs.MalformedResults("label count")
			}
			row.LabelCount, row.HasLabelCount = v, true
		}
		if hasLabelWorkCountOK {
			v, err := strconv.Atoi(rec[hasLabelWorkCount])
			if err != nil {
				return nil, errs.MalformedResults("label work count")
			}
			row.LabelWorkCount, row.HasLabelWorkCount = v, true
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write emits the table as a canonical CSV, with label count/label work
// count columns appended when the table carries them.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{}, requiredColumns...)
	if t.HasLabelCount {
		header = append(header, "label count")
	}
	if t.HasLabelWorkCount {
		header = append(header, "label work count")
	}
	if err := cw.Write(header); err != nil {
		return errs.IO("<sink>", err)
	}
	for _, r := range t.Rows {
		rec := []string{r.Ngram, strconv.Itoa(r.Size), r.Work, r.Siglum, strconv.Itoa(r.Count), r.Label}
		if t.HasLabelCount {
			rec = append(rec, strconv.Itoa(r.LabelCount))
		}
		if t.HasLabelWorkCount {
			rec = append(rec, strconv.Itoa(r.LabelWorkCount))
		}
		if err := cw.Write(rec); err != nil {
			return errs.IO("<sink>", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// clone returns a new table holding rows, with t's optional-column
// flags carried over, so a transform can build its replacement slice
// without mutating the caller's table in place.
func (t *Table) clone(rows []Row) *Table {
	return &Table{Rows: rows, HasLabelCount: t.HasLabelCount, HasLabelWorkCount: t.HasLabelWorkCount}
}

func ngramKeyOf(r Row) ngramKey { return ngramKey{r.Ngram, r.Size} }

type ngramKey struct {
	Ngram string
	Size  int
}

type witnessKey struct {
	Work, Siglum string
}
