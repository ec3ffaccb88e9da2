// Command tacl drives corpus ingestion and n-gram analysis: the CLI
// surface of spec §6, dispatched the way the teacher's vte.go dispatches
// vte create/append/template.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/drupchen/tacl/catalogue"
	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/db"
	"github.com/drupchen/tacl/db/factory"
	"github.com/drupchen/tacl/errs"
	"github.com/drupchen/tacl/results"
	"github.com/drupchen/tacl/token"
)

func main() {
	os.Exit(run(os.Args))
}

// run implements spec §6's exit codes: 0 success, 2 usage error
// (unknown command/flag, bad arguments), 1 other errors.
func run(args []string) int {
	if len(args) < 2 {
		printUsage()
		return 2
	}

	cmd := args[1]
	rest := args[2:]
	var err error

	switch cmd {
	case "ngrams":
		err = runNgrams(rest)
	case "counts":
		err = runCounts(rest)
	case "diff":
		err = runDiff(rest)
	case "intersect":
		err = runIntersect(rest)
	case "search":
		err = runSearch(rest)
	case "sdiff":
		err = runSupplied(rest, true)
	case "sintersect":
		err = runSupplied(rest, false)
	case "catalogue":
		err = runCatalogue(rest)
	case "results":
		err = runResults(rest)
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		return 2
	}

	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	if errs.Is(err, errs.KindConfiguration) || errs.Is(err, errs.KindBadSizeRange) {
		return 2
	}
	return 1
}

func printUsage() {
	fmt.Println("tacl - corpus n-gram analysis")
	fmt.Println("\nUsage:")
	fmt.Println("  tacl ngrams [-c CATALOGUE] DB CORPUS MINIMUM MAXIMUM")
	fmt.Println("  tacl counts DB CORPUS CATALOGUE")
	fmt.Println("  tacl diff [-a LABEL] DB CORPUS CATALOGUE")
	fmt.Println("  tacl intersect DB CORPUS CATALOGUE")
	fmt.Println("  tacl search DB CORPUS CATALOGUE NGRAMS")
	fmt.Println("  tacl sdiff DB -s LABEL FILE [-s LABEL FILE ...]")
	fmt.Println("  tacl sintersect DB -s LABEL FILE [-s LABEL FILE ...]")
	fmt.Println("  tacl catalogue [-l LABEL] CORPUS CATALOGUE")
	fmt.Println("  tacl results RESULTS [flags]")
}

// commonFlags holds the flags every subcommand shares (§6: "each with
// --verbose, --tokenizer {cbeta,pagel}").
type commonFlags struct {
	verbose   bool
	tokenizer string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.BoolVar(&c.verbose, "verbose", false, "print debug-level diagnostics")
	fs.StringVar(&c.tokenizer, "tokenizer", "cbeta", "tokenizer: cbeta or pagel")
	return c
}

func (c *commonFlags) apply() {
	if c.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// tokenizerFor maps the CLI's tokenizer choice to a token.Tokenizer:
// cbeta is the CJK (ideographic, one-codepoint-per-token) tokenizer,
// pagel the whitespace/syllabic one, per the original tacl's
// TOKENIZER_CHOICE_CBETA/TOKENIZER_CHOICE_PAGEL constants.
func tokenizerFor(name string) (*token.Tokenizer, error) {
	switch name {
	case "cbeta", "":
		return token.CJK(), nil
	case "pagel":
		return token.Whitespace(), nil
	default:
		return nil, errs.Configuration(fmt.Sprintf("unknown tokenizer %q", name))
	}
}

// validateAgainstCorpus confirms every catalogue-active witness's
// stored checksum still matches the file on disk under corpusDir,
// per spec §9: "queries must not be run until resolved."
func validateAgainstCorpus(ctx context.Context, store *db.Store, corpusDir string, tok *token.Tokenizer, cat *catalogue.Catalogue) error {
	corp := corpus.New(corpusDir, tok)
	ok, path, err := store.Validate(ctx, corp, cat)
	if err != nil {
		return err
	}
	if !ok {
		return errs.CorpusValidation(path)
	}
	return nil
}

// openStore opens the sqlite DataStore at path, initializing its schema
// the first time the file is created (factory.Open itself never
// creates tables, since an existing store must never be silently
// dropped and re-created).
func openStore(path string) (*db.Store, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)
	store, err := factory.Open(db.Conf{Type: "sqlite", Path: path})
	if err != nil {
		return nil, err
	}
	if isNew {
		if err := store.Initialize(); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func runNgrams(args []string) error {
	fs := flag.NewFlagSet("ngrams", flag.ContinueOnError)
	common := addCommonFlags(fs)
	cataloguePath := fs.String("c", "", "restrict ingestion to works listed in this catalogue")
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 4 {
		return errs.Configuration("usage: ngrams [-c CATALOGUE] DB CORPUS MINIMUM MAXIMUM")
	}
	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	minSize, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return errs.BadSizeRange("minimum must be an integer")
	}
	maxSize, err := strconv.Atoi(fs.Arg(3))
	if err != nil {
		return errs.BadSizeRange("maximum must be an integer")
	}

	store, err := openStore(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()

	corp := corpus.New(fs.Arg(1), tok)
	var cat *catalogue.Catalogue
	if *cataloguePath != "" {
		cat, err = catalogue.Load(*cataloguePath)
		if err != nil {
			return err
		}
	}
	return store.AddNgrams(context.Background(), corp, minSize, maxSize, cat)
}

func runCounts(args []string) error {
	fs := flag.NewFlagSet("counts", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 3 {
		return errs.Configuration("usage: counts DB CORPUS CATALOGUE")
	}
	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	store, err := openStore(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()
	cat, err := catalogue.Load(fs.Arg(2))
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := validateAgainstCorpus(ctx, store, fs.Arg(1), tok, cat); err != nil {
		return err
	}
	return store.Counts(ctx, cat, os.Stdout)
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	common := addCommonFlags(fs)
	asymmetric := fs.String("a", "", "emit only rows labelled LABEL that are absent from every other label")
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 3 {
		return errs.Configuration("usage: diff [-a LABEL] DB CORPUS CATALOGUE")
	}
	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	store, err := openStore(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()
	cat, err := catalogue.Load(fs.Arg(2))
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := validateAgainstCorpus(ctx, store, fs.Arg(1), tok, cat); err != nil {
		return err
	}
	if *asymmetric != "" {
		return store.DiffAsymmetric(ctx, cat, *asymmetric, os.Stdout)
	}
	return store.Diff(ctx, cat, os.Stdout)
}

func runIntersect(args []string) error {
	fs := flag.NewFlagSet("intersect", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 3 {
		return errs.Configuration("usage: intersect DB CORPUS CATALOGUE")
	}
	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	store, err := openStore(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()
	cat, err := catalogue.Load(fs.Arg(2))
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := validateAgainstCorpus(ctx, store, fs.Arg(1), tok, cat); err != nil {
		return err
	}
	return store.Intersection(ctx, cat, os.Stdout)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 4 {
		return errs.Configuration("usage: search DB CORPUS CATALOGUE NGRAMS")
	}
	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	store, err := openStore(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()
	corp := corpus.New(fs.Arg(1), tok)
	cat, err := catalogue.Load(fs.Arg(2))
	if err != nil {
		return err
	}
	ngrams, err := readLines(fs.Arg(3))
	if err != nil {
		return err
	}
	return store.Search(context.Background(), cat, corp, ngrams, os.Stdout)
}

// readLines loads a newline-delimited file (an n-gram list, one per
// line; blank lines ignored).
func readLines(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(path, err)
	}
	var out []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// runSupplied implements sdiff/sintersect: "DB -s LABEL FILE [-s LABEL
// FILE ...]". Go's flag package has no native repeated-pair flag, so
// the -s pairs are parsed positionally after the leading DB argument.
func runSupplied(args []string, isDiff bool) error {
	if len(args) == 0 {
		return errs.Configuration("usage: sdiff|sintersect DB -s LABEL FILE [-s LABEL FILE ...]")
	}
	dbPath := args[0]
	pairs, files, err := parseSuppliedPairs(args[1:])
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	if len(pairs) == 0 {
		return errs.Configuration("at least one -s LABEL FILE pair is required")
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sources := make([]db.SuppliedSource, len(pairs))
	for i, p := range pairs {
		sources[i] = db.SuppliedSource{Label: p.label, Reader: p.file}
	}
	// sdiff/sintersect run against an empty catalogue: every label that
	// participates comes from the supplied files, not from DataStore.
	cat := catalogue.Empty()
	if isDiff {
		return store.DiffSupplied(context.Background(), cat, sources, os.Stdout)
	}
	return store.IntersectionSupplied(context.Background(), cat, sources, os.Stdout)
}

type suppliedPair struct {
	label string
	file  *os.File
}

func parseSuppliedPairs(rest []string) ([]suppliedPair, []*os.File, error) {
	var out []suppliedPair
	var files []*os.File
	for i := 0; i < len(rest); i++ {
		if rest[i] != "-s" && rest[i] != "--supplied" {
			return out, files, errs.Configuration(fmt.Sprintf("unexpected argument %q", rest[i]))
		}
		if i+2 >= len(rest) {
			return out, files, errs.Configuration("-s requires a LABEL and a FILE")
		}
		label, path := rest[i+1], rest[i+2]
		f, err := os.Open(path)
		if err != nil {
			return out, files, errs.IO(path, err)
		}
		files = append(files, f)
		out = append(out, suppliedPair{label: label, file: f})
		i += 2
	}
	return out, files, nil
}

func runCatalogue(args []string) error {
	fs := flag.NewFlagSet("catalogue", flag.ContinueOnError)
	common := addCommonFlags(fs)
	label := fs.String("l", "", "default label assigned to every work")
	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 2 {
		return errs.Configuration("usage: catalogue [-l LABEL] CORPUS CATALOGUE")
	}
	cat, err := catalogue.Generate(fs.Arg(0), *label)
	if err != nil {
		return err
	}
	return cat.Save(fs.Arg(1))
}

func runResults(args []string) error {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	common := addCommonFlags(fs)

	extendCorpus := fs.String("e", "", "extend: grow n-grams using witness content under CORPUS")
	bifurcatedCorpus := fs.String("b", "", "bifurcated-extend: like -e, bounded by --max-be-count")
	maxBECount := fs.Int("max-be-count", 0, "bifurcated-extend's maximum size increase")
	reduce := fs.Bool("reduce", false, "collapse overlapping chains to their maximal n-grams")
	reciprocal := fs.Bool("reciprocal", false, "drop n-grams not shared by at least two labels")
	zeroFillCorpus := fs.String("z", "", "zero-fill: insert zero-count rows using witness lists under CORPUS")
	ngramsFile := fs.String("ngrams", "", "prune to n-grams listed in this file")
	minWorks := fs.Int("min-works", -1, "prune_by_work_count minimum")
	maxWorks := fs.Int("max-works", -1, "prune_by_work_count maximum")
	minSize := fs.Int("min-size", -1, "prune_by_ngram_size minimum")
	maxSize := fs.Int("max-size", -1, "prune_by_ngram_size maximum")
	minCount := fs.Int("min-count", -1, "prune_by_ngram_count minimum")
	maxCount := fs.Int("max-count", -1, "prune_by_ngram_count maximum")
	minCountWork := fs.Int("min-count-work", -1, "prune_by_ngram_count_per_work minimum")
	maxCountWork := fs.Int("max-count-work", -1, "prune_by_ngram_count_per_work maximum")
	removeLabel := fs.String("remove", "", "remove_label")
	sortResults := fs.Bool("sort", false, "sort rows")
	addLabelCount := fs.Bool("add-label-count", false, "append label count column")
	addLabelWorkCount := fs.Bool("add-label-work-count", false, "append label work count column")
	groupByNgram := fs.String("group-by-ngram", "", "pivot by n-gram, labels ordered per this catalogue")
	groupByWitness := fs.Bool("group-by-witness", false, "pivot by witness")
	collapseWitnesses := fs.Bool("collapse-witnesses", false, "merge rows sharing ngram/work/count/label")

	if err := fs.Parse(args); err != nil {
		return errs.Configuration(err.Error())
	}
	common.apply()
	if fs.NArg() != 1 {
		return errs.Configuration("usage: results RESULTS [flags]")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return errs.IO(fs.Arg(0), err)
	}
	defer f.Close()
	table, err := results.Load(f)
	if err != nil {
		return err
	}

	opts := results.Options{
		Reduce:            *reduce,
		ReciprocalRemove:  *reciprocal,
		RemoveLabel:       *removeLabel,
		Sort:              *sortResults,
		AddLabelCount:     *addLabelCount,
		AddLabelWorkCount: *addLabelWorkCount,
		GroupByWitness:    *groupByWitness,
		CollapseWitnesses: *collapseWitnesses,
	}

	tok, err := tokenizerFor(common.tokenizer)
	if err != nil {
		return err
	}
	opts.Joiner = tok.Joiner
	if *extendCorpus != "" {
		opts.Extend = true
		opts.Corpus = corpus.New(*extendCorpus, tok)
	}
	if *bifurcatedCorpus != "" {
		opts.BifurcatedExtend = true
		opts.MaxExtend = *maxBECount
		opts.Corpus = corpus.New(*bifurcatedCorpus, tok)
	}
	if *zeroFillCorpus != "" {
		opts.ZeroFill = true
		opts.Corpus = corpus.New(*zeroFillCorpus, tok)
	}
	if *ngramsFile != "" {
		ngrams, err := readLines(*ngramsFile)
		if err != nil {
			return err
		}
		opts.PruneNgrams = ngrams
	}
	opts.PruneWorkCount = results.NewIntRange(intPtr(*minWorks), intPtr(*maxWorks))
	opts.PruneNgramSize = results.NewIntRange(intPtr(*minSize), intPtr(*maxSize))
	opts.PruneNgramCount = results.NewIntRange(intPtr(*minCount), intPtr(*maxCount))
	opts.PruneNgramCountPerWork = results.NewIntRange(intPtr(*minCountWork), intPtr(*maxCountWork))
	if *groupByNgram != "" {
		cat, err := catalogue.Load(*groupByNgram)
		if err != nil {
			return err
		}
		opts.GroupByNgram = cat.OrderedLabels()
	}

	out, err := results.Run(table, opts)
	if err != nil {
		return err
	}
	return out.Write(os.Stdout)
}

// intPtr turns a CLI int flag (sentinel -1 meaning "unset") into an
// optional bound pointer for results.NewIntRange.
func intPtr(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}
