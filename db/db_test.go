package db_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drupchen/tacl/catalogue"
	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/db"
	"github.com/drupchen/tacl/db/sqlite"
	"github.com/drupchen/tacl/token"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.Open(db.Conf{Type: "sqlite", Path: ":memory:"}, sqlite.Dialect{})
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	t.Cleanup(func() { s.Close() })
	return s
}

// letterTokenizer stands in for the CJK tokenizer in tests: one token
// per Latin letter, joined with the empty string, the same shape as
// token.CJK() but over the single-letter "character" placeholders the
// spec's own scenarios (S1, S2) are written with.
func letterTokenizer() *token.Tokenizer {
	return token.New(`[A-Z]`, "")
}

func writeCorpus(t *testing.T, layout map[string]string) *corpus.Corpus {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range layout {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return corpus.New(dir, letterTokenizer())
}

func TestAddNgramsAndSearchScenarioS1(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABABC"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 3, nil))

	cat, err := catalogue.Generate(corp.Dir, "L")
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, store.Search(ctx, cat, corp, []string{"AB", "BC", "ABA", "XY"}, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Equal(t, "ngram,size,work,siglum,count,label", lines[0])
	require.Contains(t, lines, "AB,2,t1,base,2,L")
	require.Contains(t, lines, "BC,2,t1,base,1,L")
	require.Contains(t, lines, "ABA,3,t1,base,1,L")
	require.Contains(t, lines, "XY,2,t1,base,0,L")
}

func TestDiffAndIntersectionScenarioS2(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{
		"t1/base.txt": "AAAB",
		"t2/base.txt": "AAAC",
	})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 2, 3, nil))

	cat, err := catalogue.Generate(corp.Dir, "")
	require.NoError(t, err)
	require.NoError(t, cat.Set("t1", "A"))
	require.NoError(t, cat.Set("t2", "B"))

	var diffOut strings.Builder
	require.NoError(t, store.Diff(ctx, cat, &diffOut))
	diffLines := strings.Split(strings.TrimRight(diffOut.String(), "\n"), "\n")[1:]
	require.Contains(t, diffLines, "AAB,3,t1,base,1,A")
	require.Contains(t, diffLines, "AAC,3,t2,base,1,B")

	var interOut strings.Builder
	require.NoError(t, store.Intersection(ctx, cat, &interOut))
	interLines := strings.Split(strings.TrimRight(interOut.String(), "\n"), "\n")[1:]
	require.Contains(t, interLines, "AA,2,t1,base,2,A")
	require.Contains(t, interLines, "AA,2,t2,base,2,B")
}

func TestValidateDetectsChecksumDrift(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABABC"})
	store := newStore(t)
	cat, err := catalogue.Generate(corp.Dir, "L")
	require.NoError(t, err)
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))

	ok, _, err := store.Validate(ctx, corp, cat)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(corp.Dir, "t1", "base.txt"), []byte("XYZ"), 0o644))
	ok, path, err := store.Validate(ctx, corp, cat)
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, path, "base.txt")
}

func TestReingestReplacesOnChecksumChangeS5(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABABC"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))

	require.NoError(t, os.WriteFile(filepath.Join(corp.Dir, "t1", "base.txt"), []byte("XYZXY"), 0o644))
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))

	cat, err := catalogue.Generate(corp.Dir, "L")
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, store.Search(ctx, cat, corp, []string{"AB", "XY"}, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Contains(t, lines, "AB,2,t1,base,0,L")
	require.Contains(t, lines, "XY,2,t1,base,2,L")
}

func TestCountsReport(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABABC"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))

	cat, err := catalogue.Generate(corp.Dir, "L")
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, store.Counts(ctx, cat, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Equal(t, "work,siglum,label,size,unique_ngrams,total_ngrams,token_count", lines[0])
	require.Contains(t, lines, "t1,base,L,1,3,5,5")
	require.Contains(t, lines, "t1,base,L,2,3,4,5")
}

func TestDiffAsymmetric(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{
		"t1/base.txt": "AAAB",
		"t2/base.txt": "AAAC",
		"t3/base.txt": "AAAD",
	})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 2, 3, nil))

	cat, err := catalogue.Generate(corp.Dir, "")
	require.NoError(t, err)
	require.NoError(t, cat.Set("t1", "A"))
	require.NoError(t, cat.Set("t2", "B"))
	require.NoError(t, cat.Set("t3", "B"))

	var out strings.Builder
	require.NoError(t, store.DiffAsymmetric(ctx, cat, "A", &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")[1:]
	require.Contains(t, lines, "AAB,3,t1,base,1,A")
	for _, l := range lines {
		require.Contains(t, l, ",A")
	}
}

func TestDiffSupplied(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "AAAB"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 2, 3, nil))

	cat, err := catalogue.Generate(corp.Dir, "")
	require.NoError(t, err)
	require.NoError(t, cat.Set("t1", "A"))

	// XY never appears in the db, so the supplied row stands alone under
	// its own label and qualifies as a diff row; AAB is only in the db
	// and is not mentioned by any supplied source, so DiffSupplied's
	// pre-filtering to supplied-mentioned n-grams excludes it entirely.
	supplied := "ngram,size,work,siglum,count,label\nXY,2,t2,base,1,B\n"
	var out strings.Builder
	require.NoError(t, store.DiffSupplied(ctx, cat, []db.SuppliedSource{
		{Reader: strings.NewReader(supplied)},
	}, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")[1:]
	require.Contains(t, lines, "XY,2,t2,base,1,B")
	require.NotContains(t, lines, "AAB,3,t1,base,1,A")
}

func TestIntersectionSupplied(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "AAAB"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 2, 3, nil))

	cat, err := catalogue.Generate(corp.Dir, "")
	require.NoError(t, err)
	require.NoError(t, cat.Set("t1", "A"))

	// AA is mentioned by the supplied source under label B and also
	// exists in the db under A, so it appears under both of the two
	// combined labels and qualifies for intersection; AAB is only in
	// the db and unmentioned by any supplied source, so it is excluded
	// by DiffSupplied/IntersectionSupplied's shared pre-filtering.
	supplied := "ngram,size,work,siglum,count,label\nAA,2,t2,base,2,B\n"
	var out strings.Builder
	require.NoError(t, store.IntersectionSupplied(ctx, cat, []db.SuppliedSource{
		{Reader: strings.NewReader(supplied)},
	}, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")[1:]
	require.Contains(t, lines, "AA,2,t1,base,2,A")
	require.Contains(t, lines, "AA,2,t2,base,2,B")
	require.NotContains(t, lines, "AAB,3,t1,base,1,A")
}

func TestAddNgramsIsIdempotentP1(t *testing.T) {
	ctx := context.Background()
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABABC"})
	store := newStore(t)
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))
	require.NoError(t, store.AddNgrams(ctx, corp, 1, 2, nil))

	cat, err := catalogue.Generate(corp.Dir, "L")
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, store.Search(ctx, cat, corp, []string{"AB"}, &out))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Contains(t, lines, "AB,2,t1,base,2,L")
}
