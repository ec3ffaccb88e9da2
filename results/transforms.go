package results

import (
	"sort"
	"strings"

	"github.com/drupchen/tacl/corpus"
)

// witnessTokens caches a witness's tokenised content, since the
// transforms extend and bifurcated_extend need to re-derive
// n-gram occurrences from the underlying corpus text.
type witnessTokens struct {
	corp  *corpus.Corpus
	cache map[witnessKey][]string
}

func newWitnessTokens(corp *corpus.Corpus) *witnessTokens {
	return &witnessTokens{corp: corp, cache: make(map[witnessKey][]string)}
}

func (wt *witnessTokens) tokens(work, siglum string) ([]string, error) {
	key := witnessKey{work, siglum}
	if toks, ok := wt.cache[key]; ok {
		return toks, nil
	}
	w, err := wt.corp.GetWitness(work, siglum)
	if err != nil {
		return nil, err
	}
	content, err := w.Content()
	if err != nil {
		return nil, err
	}
	toks := wt.corp.Tokenizer.Tokenize(content)
	wt.cache[key] = toks
	return toks, nil
}

// occurrences returns every token index at which ngram (of the given
// size) begins within tokens.
func occurrences(corp *corpus.Corpus, tokens []string, size int, ngram string) []int {
	var out []int
	windows := corp.Tokenizer.Ngrams(tokens, size)
	for i, w := range windows {
		if w == ngram {
			out = append(out, i)
		}
	}
	return out
}

// countOf returns how many times ngram (of size) occurs in tokens.
func countOf(corp *corpus.Corpus, tokens []string, size int, ngram string) int {
	return len(occurrences(corp, tokens, size, ngram))
}

// growOnce considers the two size+1 candidates overlapping an
// occurrence of row's n-gram (grown to the left and to the right), and
// returns the best one whose count (per the supplied countFn) has not
// dropped below minCount, preferring the candidate with the higher
// count. Ties keep the first candidate seen: occurrences are walked left
// to right, and at each occurrence the right extension is tried before
// the left one.
func growOnce(corp *corpus.Corpus, tokens []string, row Row, minCount int, countFn func(size int, ngram string) int) (Row, bool) {
	positions := occurrences(corp, tokens, row.Size, row.Ngram)
	var best *Row
	var bestCount int
	for _, pos := range positions {
		// right extension: pos..pos+size (one more token appended)
		if pos+row.Size < len(tokens) {
			window := tokens[pos : pos+row.Size+1]
			candidate := corp.Tokenizer.Ngrams(window, len(window))[0]
			if c := countFn(row.Size+1, candidate); c >= minCount {
				if best == nil || c > bestCount {
					cand := row
					cand.Ngram, cand.Size = candidate, row.Size+1
					best, bestCount = &cand, c
				}
			}
		}
		// left extension: pos-1..pos+size (one more token prepended)
		if pos-1 >= 0 {
			window := tokens[pos-1 : pos+row.Size]
			candidate := corp.Tokenizer.Ngrams(window, len(window))[0]
			if c := countFn(row.Size+1, candidate); c >= minCount {
				if best == nil || c > bestCount {
					cand := row
					cand.Ngram, cand.Size = candidate, row.Size+1
					best, bestCount = &cand, c
				}
			}
		}
	}
	if best == nil {
		return Row{}, false
	}
	return *best, true
}

// Extend grows each row's n-gram to the longest chain that still
// appears, within its own witness, with count no less than the row's
// original count. Empty input yields empty output.
func Extend(t *Table, corp *corpus.Corpus) (*Table, error) {
	if len(t.Rows) == 0 {
		return t.clone(nil), nil
	}
	wt := newWitnessTokens(corp)
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		tokens, err := wt.tokens(r.Work, r.Siglum)
		if err != nil {
			return nil, err
		}
		current := r
		for {
			grown, ok := growOnce(corp, tokens, current, r.Count, func(size int, ngram string) int {
				return countOf(corp, tokens, size, ngram)
			})
			if !ok {
				break
			}
			current = grown
		}
		out = append(out, current)
	}
	return t.clone(out), nil
}

// BifurcatedExtend is Extend, except growth halts once the candidate
// n-gram's count summed across every witness sharing the row's label
// (as recorded in t, not the full catalogue) drops below the row's
// original label-wide count, or once the row has grown by maxExtend
// tokens.
func BifurcatedExtend(t *Table, corp *corpus.Corpus, maxExtend int) (*Table, error) {
	if len(t.Rows) == 0 {
		return t.clone(nil), nil
	}
	wt := newWitnessTokens(corp)

	// witnessesByLabel: every (work,siglum) appearing under a label in t.
	witnessesByLabel := make(map[string][]witnessKey)
	seenWitness := make(map[string]map[witnessKey]bool)
	for _, r := range t.Rows {
		if seenWitness[r.Label] == nil {
			seenWitness[r.Label] = make(map[witnessKey]bool)
		}
		k := witnessKey{r.Work, r.Siglum}
		if !seenWitness[r.Label][k] {
			seenWitness[r.Label][k] = true
			witnessesByLabel[r.Label] = append(witnessesByLabel[r.Label], k)
		}
	}

	labelWideCount := func(label string, size int, ngram string) (int, error) {
		total := 0
		for _, wk := range witnessesByLabel[label] {
			tokens, err := wt.tokens(wk.Work, wk.Siglum)
			if err != nil {
				return 0, err
			}
			total += countOf(corp, tokens, size, ngram)
		}
		return total, nil
	}

	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		tokens, err := wt.tokens(r.Work, r.Siglum)
		if err != nil {
			return nil, err
		}
		originalLabelCount, err := labelWideCount(r.Label, r.Size, r.Ngram)
		if err != nil {
			return nil, err
		}
		current := r
		var stepErr error
		for current.Size-r.Size < maxExtend {
			grown, ok := growOnce(corp, tokens, current, 1, func(size int, ngram string) int {
				c, err := labelWideCount(r.Label, size, ngram)
				if err != nil {
					stepErr = err
				}
				return c
			})
			if stepErr != nil {
				return nil, stepErr
			}
			if !ok {
				break
			}
			labelCount, err := labelWideCount(r.Label, grown.Size, grown.Ngram)
			if err != nil {
				return nil, err
			}
			if labelCount < originalLabelCount {
				break
			}
			current = grown
		}
		out = append(out, current)
	}
	return t.clone(out), nil
}

// Reduce drops, within each witness, any row whose n-gram is wholly
// contained (as a token-contiguous run) within a longer row of
// identical count from the same witness. joiner is the tokenizer
// joiner the rows' n-gram strings were composed with (§4.1); it is
// used to recover token boundaries from the ngram strings themselves
// by splitting on it.
func Reduce(t *Table, joiner string) *Table {
	byWitness := make(map[witnessKey][]Row)
	for _, r := range t.Rows {
		k := witnessKey{r.Work, r.Siglum}
		byWitness[k] = append(byWitness[k], r)
	}
	keep := make(map[int]bool, len(t.Rows))
	for i, r := range t.Rows {
		contained := false
		for _, other := range byWitness[witnessKey{r.Work, r.Siglum}] {
			if other.Size > r.Size && other.Count == r.Count && containsNgram(joiner, other.Ngram, r.Ngram) {
				contained = true
				break
			}
		}
		if !contained {
			keep[i] = true
		}
	}
	out := make([]Row, 0, len(t.Rows))
	for i, r := range t.Rows {
		if keep[i] {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// containsNgram reports whether small's token sequence occurs as a
// contiguous run within large's token sequence, both split on joiner.
// strings.Split(s, "") already splits after each UTF-8 sequence, which
// is exactly the CJK tokenizer's one-codepoint-per-token model, so this
// single helper is correct for both standard tokenizer configurations
// (§4.1) rather than only the empty-joiner one: a plain substring check
// would wrongly match "b" inside the whitespace-tokenizer token "ab".
func containsNgram(joiner, large, small string) bool {
	bigTokens := strings.Split(large, joiner)
	smallTokens := strings.Split(small, joiner)
	if len(smallTokens) == 0 || len(smallTokens) >= len(bigTokens) {
		return false
	}
	for i := 0; i+len(smallTokens) <= len(bigTokens); i++ {
		match := true
		for j, st := range smallTokens {
			if bigTokens[i+j] != st {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ReciprocalRemove drops rows whose n-gram does not appear under at
// least two distinct labels.
func ReciprocalRemove(t *Table) *Table {
	labelsOf := make(map[ngramKey]map[string]bool)
	for _, r := range t.Rows {
		k := ngramKeyOf(r)
		if labelsOf[k] == nil {
			labelsOf[k] = make(map[string]bool)
		}
		labelsOf[k][r.Label] = true
	}
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if len(labelsOf[ngramKeyOf(r)]) >= 2 {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// ZeroFill ensures a row exists for every (ngram, size, label) present
// in t and every witness of every work that carries that label (as
// observed from t's own rows), inserting count=0 placeholders.
func ZeroFill(t *Table, corp *corpus.Corpus) (*Table, error) {
	if len(t.Rows) == 0 {
		return t.clone(nil), nil
	}
	type combo struct {
		ngram, label string
		size         int
	}
	worksByLabel := make(map[string]map[string]bool)
	combos := make(map[combo]bool)
	existing := make(map[ngramKey]map[witnessKey]bool)
	for _, r := range t.Rows {
		if worksByLabel[r.Label] == nil {
			worksByLabel[r.Label] = make(map[string]bool)
		}
		worksByLabel[r.Label][r.Work] = true
		combos[combo{r.Ngram, r.Label, r.Size}] = true
		k := ngramKey{r.Ngram, r.Size}
		if existing[k] == nil {
			existing[k] = make(map[witnessKey]bool)
		}
		existing[k][witnessKey{r.Work, r.Siglum}] = true
	}

	out := append([]Row{}, t.Rows...)
	for c := range combos {
		for work := range worksByLabel[c.label] {
			sigla, err := corp.SiglaForWork(work)
			if err != nil {
				return nil, err
			}
			for _, siglum := range sigla {
				wk := witnessKey{work, siglum}
				k := ngramKey{c.ngram, c.size}
				if existing[k][wk] {
					continue
				}
				existing[k][wk] = true
				out = append(out, Row{Ngram: c.ngram, Size: c.size, Work: work, Siglum: siglum, Count: 0, Label: c.label})
			}
		}
	}
	return t.clone(out), nil
}

// PruneByNgram drops rows whose n-gram is not in ngrams.
func PruneByNgram(t *Table, ngrams []string) *Table {
	want := make(map[string]bool, len(ngrams))
	for _, n := range ngrams {
		want[n] = true
	}
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if want[r.Ngram] {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// intRange is an optional [min,max] bound; a nil pointer means
// unbounded on that side.
type intRange struct {
	Min, Max *int
}

// NewIntRange builds a pruning bound from optional min/max pointers.
func NewIntRange(min, max *int) intRange {
	return intRange{Min: min, Max: max}
}

func (b intRange) contains(v int) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// PruneByWorkCount drops every row of an n-gram whose distinct
// work count (counting only works where it occurs with count>0) falls
// outside [min,max].
func PruneByWorkCount(t *Table, bound intRange) *Table {
	works := make(map[ngramKey]map[string]bool)
	for _, r := range t.Rows {
		if r.Count <= 0 {
			continue
		}
		k := ngramKeyOf(r)
		if works[k] == nil {
			works[k] = make(map[string]bool)
		}
		works[k][r.Work] = true
	}
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if bound.contains(len(works[ngramKeyOf(r)])) {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// PruneByNgramSize drops rows whose size falls outside [min,max].
func PruneByNgramSize(t *Table, bound intRange) *Table {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if bound.contains(r.Size) {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// PruneByNgramCount drops rows whose count falls outside [min,max].
func PruneByNgramCount(t *Table, bound intRange) *Table {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if bound.contains(r.Count) {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// PruneByNgramCountPerWork drops rows of an (ngram,work) pair whose
// count aggregated across its sigla falls outside [min,max].
func PruneByNgramCountPerWork(t *Table, bound intRange) *Table {
	type key struct {
		ngramKey
		work string
	}
	totals := make(map[key]int)
	for _, r := range t.Rows {
		totals[key{ngramKeyOf(r), r.Work}] += r.Count
	}
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if bound.contains(totals[key{ngramKeyOf(r), r.Work}]) {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// RemoveLabel drops rows carrying label.
func RemoveLabel(t *Table, label string) *Table {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.Label != label {
			out = append(out, r)
		}
	}
	return t.clone(out)
}

// Sort orders rows by (size desc, total count desc, ngram asc, label
// asc, work asc, siglum asc), where total count is the row's n-gram's
// count summed across the whole table.
func Sort(t *Table) *Table {
	totals := make(map[ngramKey]int)
	for _, r := range t.Rows {
		totals[ngramKeyOf(r)] += r.Count
	}
	out := append([]Row{}, t.Rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		ta, tb := totals[ngramKeyOf(a)], totals[ngramKeyOf(b)]
		if ta != tb {
			return ta > tb
		}
		if a.Ngram != b.Ngram {
			return a.Ngram < b.Ngram
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		if a.Work != b.Work {
			return a.Work < b.Work
		}
		return a.Siglum < b.Siglum
	})
	return t.clone(out)
}

// AddLabelCount appends, to every row, the total occurrence count of
// its n-gram under its own label.
func AddLabelCount(t *Table) *Table {
	totals := make(map[struct {
		ngramKey
		label string
	}]int)
	for _, r := range t.Rows {
		totals[struct {
			ngramKey
			label string
		}{ngramKeyOf(r), r.Label}] += r.Count
	}
	out := append([]Row{}, t.Rows...)
	for i := range out {
		out[i].LabelCount = totals[struct {
			ngramKey
			label string
		}{ngramKeyOf(out[i]), out[i].Label}]
		out[i].HasLabelCount = true
	}
	clone := t.clone(out)
	clone.HasLabelCount = true
	return clone
}

// AddLabelWorkCount appends, to every row, the number of distinct works
// under its label in which its n-gram appears (count>0).
func AddLabelWorkCount(t *Table) *Table {
	type key struct {
		ngramKey
		label string
	}
	works := make(map[key]map[string]bool)
	for _, r := range t.Rows {
		if r.Count <= 0 {
			continue
		}
		k := key{ngramKeyOf(r), r.Label}
		if works[k] == nil {
			works[k] = make(map[string]bool)
		}
		works[k][r.Work] = true
	}
	out := append([]Row{}, t.Rows...)
	for i := range out {
		k := key{ngramKeyOf(out[i]), out[i].Label}
		out[i].LabelWorkCount = len(works[k])
		out[i].HasLabelWorkCount = true
	}
	clone := t.clone(out)
	clone.HasLabelWorkCount = true
	return clone
}
