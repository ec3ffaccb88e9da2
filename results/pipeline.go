package results

import (
	"io"

	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/errs"
)

// Emittable is the output of Run: either the canonical Table (the
// common case) or one of the two pivoted views group_by_ngram/
// group_by_witness produce.
type Emittable interface {
	Write(w io.Writer) error
}

// Options controls which transforms Run applies and with what
// parameters. A zero-value field means "transform not requested"
// except where noted.
type Options struct {
	// Extend and BifurcatedExtend both need the corpus to re-derive
	// n-gram occurrences in witness text; BifurcatedExtend additionally
	// requires MaxExtend (§4.7: "Requires max_extend; missing =>
	// ConfigurationError").
	Extend           bool
	BifurcatedExtend bool
	MaxExtend        int
	Corpus           *corpus.Corpus

	// Reduce needs the tokenizer's joiner to recover token boundaries
	// from the already-composed ngram strings (§4.1); the empty string
	// is the correct, not merely default, value for the CJK tokenizer.
	Reduce bool
	Joiner string

	ReciprocalRemove bool
	ZeroFill         bool

	PruneNgrams []string

	PruneWorkCount        intRangeOpt
	PruneNgramSize        intRangeOpt
	PruneNgramCount       intRangeOpt
	PruneNgramCountPerWork intRangeOpt

	RemoveLabel string

	Sort bool

	AddLabelCount     bool
	AddLabelWorkCount bool

	// GroupByNgram, given non-empty, pivots the final table; its value
	// is the label order the pivoted columns follow.
	GroupByNgram   []string
	GroupByWitness bool

	CollapseWitnesses bool
}

// intRangeOpt is intRange; a range with both Min and Max nil means the
// prune is not requested.
type intRangeOpt = intRange

// Run applies every transform opts requests, in the fixed order spec
// §4.7 mandates. If a pivot is requested it returns that pivot's view,
// group_by_ngram taking precedence over group_by_witness, and the steps
// after the pivot (including collapse_witnesses) are not applied.
func Run(t *Table, opts Options) (Emittable, error) {
	if opts.BifurcatedExtend && opts.MaxExtend <= 0 {
		return nil, errs.Configuration("bifurcated_extend requires max_extend")
	}
	if opts.CollapseWitnesses && opts.GroupByWitness {
		return nil, errs.Configuration("collapse_witnesses and group_by_witness cannot both be requested")
	}
	if (opts.Extend || opts.BifurcatedExtend || opts.ZeroFill) && opts.Corpus == nil {
		return nil, errs.Configuration("extend/bifurcated_extend/zero_fill require a corpus")
	}

	cur := t
	var err error

	if opts.Extend {
		cur, err = Extend(cur, opts.Corpus)
		if err != nil {
			return nil, err
		}
	}
	if opts.BifurcatedExtend {
		cur, err = BifurcatedExtend(cur, opts.Corpus, opts.MaxExtend)
		if err != nil {
			return nil, err
		}
	}
	if opts.Reduce {
		cur = Reduce(cur, opts.Joiner)
	}
	if opts.ReciprocalRemove {
		cur = ReciprocalRemove(cur)
	}
	if opts.ZeroFill {
		cur, err = ZeroFill(cur, opts.Corpus)
		if err != nil {
			return nil, err
		}
	}
	if opts.PruneNgrams != nil {
		cur = PruneByNgram(cur, opts.PruneNgrams)
	}
	if opts.PruneWorkCount.Min != nil || opts.PruneWorkCount.Max != nil {
		cur = PruneByWorkCount(cur, opts.PruneWorkCount)
	}
	if opts.PruneNgramSize.Min != nil || opts.PruneNgramSize.Max != nil {
		cur = PruneByNgramSize(cur, opts.PruneNgramSize)
	}
	if opts.PruneNgramCount.Min != nil || opts.PruneNgramCount.Max != nil {
		cur = PruneByNgramCount(cur, opts.PruneNgramCount)
	}
	if opts.PruneNgramCountPerWork.Min != nil || opts.PruneNgramCountPerWork.Max != nil {
		cur = PruneByNgramCountPerWork(cur, opts.PruneNgramCountPerWork)
	}
	if opts.RemoveLabel != "" {
		cur = RemoveLabel(cur, opts.RemoveLabel)
	}
	if opts.Sort {
		cur = Sort(cur)
	}
	if opts.AddLabelCount {
		cur = AddLabelCount(cur)
	}
	if opts.AddLabelWorkCount {
		cur = AddLabelWorkCount(cur)
	}
	if len(opts.GroupByNgram) > 0 {
		return GroupByNgram(cur, opts.GroupByNgram), nil
	}
	if opts.GroupByWitness {
		return GroupByWitness(cur), nil
	}
	if opts.CollapseWitnesses {
		cur = CollapseWitnesses(cur)
	}
	return cur, nil
}
