package results

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/drupchen/tacl/errs"
)

// siglumSeparator joins the sigla collapse_witnesses merges into one
// cell. encoding/csv quotes the field automatically since it contains a
// comma, so the separator is free to reuse the field delimiter.
const siglumSeparator = ", "

// CollapseWitnesses merges rows that share (ngram, work, count, label)
// by concatenating their sigla into one cell.
func CollapseWitnesses(t *Table) *Table {
	type key struct {
		ngramKey
		work  string
		count int
		label string
	}
	order := []key{}
	sigla := make(map[key][]string)
	seen := make(map[key]bool)
	for _, r := range t.Rows {
		k := key{ngramKeyOf(r), r.Work, r.Count, r.Label}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
		sigla[k] = append(sigla[k], r.Siglum)
	}
	out := make([]Row, 0, len(order))
	for _, k := range order {
		out = append(out, Row{
			Ngram: k.Ngram, Size: k.Size, Work: k.work, Count: k.count, Label: k.label,
			Siglum: strings.Join(sigla[k], siglumSeparator),
		})
	}
	return t.clone(out)
}

// GroupedByNgram is the pivoted output of group_by_ngram: one row per
// unique n-gram, with a work list per label in the caller's given
// label order.
type GroupedByNgram struct {
	Labels []string
	Rows   []GroupedNgramRow
}

type GroupedNgramRow struct {
	Ngram string
	Size  int
	Works map[string][]string // label -> works (count>0), sorted
}

// GroupByNgram pivots t so each row is a unique n-gram with per-label
// work lists, labels ordered per orderedLabels.
func GroupByNgram(t *Table, orderedLabels []string) *GroupedByNgram {
	type rowsKey = ngramKey
	order := []rowsKey{}
	seen := make(map[rowsKey]bool)
	works := make(map[rowsKey]map[string]map[string]bool)
	for _, r := range t.Rows {
		if r.Count <= 0 {
			continue
		}
		k := ngramKeyOf(r)
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			works[k] = make(map[string]map[string]bool)
		}
		if works[k][r.Label] == nil {
			works[k][r.Label] = make(map[string]bool)
		}
		works[k][r.Label][r.Work] = true
	}
	out := &GroupedByNgram{Labels: orderedLabels}
	for _, k := range order {
		gr := GroupedNgramRow{Ngram: k.Ngram, Size: k.Size, Works: make(map[string][]string)}
		for _, label := range orderedLabels {
			var ws []string
			for w := range works[k][label] {
				ws = append(ws, w)
			}
			sort.Strings(ws)
			gr.Works[label] = ws
		}
		out.Rows = append(out.Rows, gr)
	}
	return out
}

// Write emits header `ngram,size,<label1>,<label2>,...` with each label
// cell holding its semicolon-joined work list.
func (g *GroupedByNgram) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"ngram", "size"}, g.Labels...)
	if err := cw.Write(header); err != nil {
		return errs.IO("<sink>", err)
	}
	for _, r := range g.Rows {
		rec := []string{r.Ngram, strconv.Itoa(r.Size)}
		for _, label := range g.Labels {
			rec = append(rec, strings.Join(r.Works[label], ";"))
		}
		if err := cw.Write(rec); err != nil {
			return errs.IO("<sink>", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// GroupedByWitness is the pivoted output of group_by_witness: one row
// per (work, siglum), with the list of n-grams it carries (count>0).
type GroupedByWitness struct {
	Rows []GroupedWitnessRow
}

type GroupedWitnessRow struct {
	Work, Siglum string
	Ngrams       []string
}

// GroupByWitness pivots t to one row per witness with an n-gram list.
func GroupByWitness(t *Table) *GroupedByWitness {
	order := []witnessKey{}
	seen := make(map[witnessKey]bool)
	ngrams := make(map[witnessKey]map[string]bool)
	for _, r := range t.Rows {
		if r.Count <= 0 {
			continue
		}
		k := witnessKey{r.Work, r.Siglum}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			ngrams[k] = make(map[string]bool)
		}
		ngrams[k][r.Ngram] = true
	}
	out := &GroupedByWitness{}
	for _, k := range order {
		var ns []string
		for n := range ngrams[k] {
			ns = append(ns, n)
		}
		sort.Strings(ns)
		out.Rows = append(out.Rows, GroupedWitnessRow{Work: k.Work, Siglum: k.Siglum, Ngrams: ns})
	}
	return out
}

// Write emits header `work,siglum,ngrams` with a semicolon-joined
// n-gram list cell.
func (g *GroupedByWitness) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"work", "siglum", "ngrams"}); err != nil {
		return errs.IO("<sink>", err)
	}
	for _, r := range g.Rows {
		if err := cw.Write([]string{r.Work, r.Siglum, strings.Join(r.Ngrams, ";")}); err != nil {
			return errs.IO("<sink>", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
