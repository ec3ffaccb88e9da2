package results_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/results"
	"github.com/drupchen/tacl/token"
)

func mustLoad(t *testing.T, csv string) *results.Table {
	t.Helper()
	tbl, err := results.Load(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

// letterTokenizer stands in for the CJK tokenizer in these tests: one
// token per Latin letter, empty-joined, matching the per-character
// placeholder shape the spec's own S1/S2 scenarios are written with.
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

func TestLoadRejectsMissingColumn(t *testing.T) {
	_, err := results.Load(strings.NewReader("ngram,size,work,siglum,count\nAB,2,t1,base,1\n"))
	require.Error(t, err)
}

func TestReciprocalRemoveScenarioS3(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nAB,2,t1,base,3,A\nAB,2,t2,base,3,B\n")
	out := results.ReciprocalRemove(tbl)
	require.Len(t, out.Rows, 2)

	tbl2 := mustLoad(t, "ngram,size,work,siglum,count,label\nAB,2,t1,base,3,A\n")
	out2 := results.ReciprocalRemove(tbl2)
	require.Empty(t, out2.Rows)
}

func TestReciprocalRemoveNeverIntroducesRowsP7(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,3,A\nAB,2,t2,base,1,B\nCD,2,t1,base,1,A\n")
	out := results.ReciprocalRemove(tbl)
	require.LessOrEqual(t, len(out.Rows), len(tbl.Rows))
	seen := map[string]map[string]bool{}
	for _, r := range out.Rows {
		k := r.Ngram
		if seen[k] == nil {
			seen[k] = map[string]bool{}
		}
		seen[k][r.Label] = true
	}
	for k, labels := range seen {
		require.GreaterOrEqualf(t, len(labels), 2, "ngram %s survived with <2 labels", k)
	}
}

func TestPruneByNgramSizeScenarioS4(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"A,1,t1,base,1,L\nAB,2,t1,base,1,L\nABC,3,t1,base,1,L\nABCD,4,t1,base,1,L\n")
	min, max := 3, 3
	out := results.PruneByNgramSize(tbl, results.NewIntRange(&min, &max))
	require.Len(t, out.Rows, 1)
	require.Equal(t, "ABC", out.Rows[0].Ngram)
}

func TestSortIsIdempotentP6(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,3,A\nAA,2,t1,base,1,A\nABC,3,t1,base,1,A\n")
	once := results.Sort(tbl)
	twice := results.Sort(once)
	require.Equal(t, once.Rows, twice.Rows)
}

func TestRemoveLabel(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nAB,2,t1,base,1,A\nAB,2,t2,base,1,B\n")
	out := results.RemoveLabel(tbl, "B")
	require.Len(t, out.Rows, 1)
	require.Equal(t, "A", out.Rows[0].Label)
}

func TestAddLabelCount(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,2,A\nAB,2,t2,siglum2,3,A\nAB,2,t3,base,7,B\n")
	out := results.AddLabelCount(tbl)
	require.True(t, out.HasLabelCount)
	for _, r := range out.Rows {
		switch r.Label {
		case "A":
			require.Equal(t, 5, r.LabelCount)
		case "B":
			require.Equal(t, 7, r.LabelCount)
		}
	}
}

func TestCollapseWitnesses(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,a,2,L\nAB,2,t1,b,2,L\n")
	out := results.CollapseWitnesses(tbl)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "a, b", out.Rows[0].Siglum)
}

func TestGroupByWitness(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,2,L\nAC,2,t1,base,1,L\nXY,2,t2,base,0,L\n")
	g := results.GroupByWitness(tbl)
	require.Len(t, g.Rows, 1)
	require.ElementsMatch(t, []string{"AB", "AC"}, g.Rows[0].Ngrams)
}

func TestCSVRoundTripPreservesMultisetP8(t *testing.T) {
	src := "ngram,size,work,siglum,count,label\nAB,2,t1,base,2,L\nAC,2,t1,base,1,L\n"
	tbl := mustLoad(t, src)
	var sb strings.Builder
	require.NoError(t, tbl.Write(&sb))

	reloaded := mustLoad(t, sb.String())
	require.ElementsMatch(t, tbl.Rows, reloaded.Rows)
}

func TestBifurcatedExtendWithoutMaxExtendIsConfigurationError(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nAB,2,t1,base,1,L\n")
	_, err := results.Run(tbl, results.Options{BifurcatedExtend: true})
	require.Error(t, err)
}

func TestCollapseAndGroupByWitnessTogetherIsConfigurationError(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nAB,2,t1,base,1,L\n")
	_, err := results.Run(tbl, results.Options{CollapseWitnesses: true, GroupByWitness: true})
	require.Error(t, err)
}

func TestExtendGrowsToLongestSupportedChain(t *testing.T) {
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABCD"})
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nB,1,t1,base,1,L\n")
	out, err := results.Extend(tbl, corp)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "ABCD", out.Rows[0].Ngram)
	require.Equal(t, 4, out.Rows[0].Size)
	require.Equal(t, 1, out.Rows[0].Count)
}

func TestExtendEmptyTableYieldsEmpty(t *testing.T) {
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABCD"})
	out, err := results.Extend(&results.Table{}, corp)
	require.NoError(t, err)
	require.Empty(t, out.Rows)
}

func TestBifurcatedExtendRespectsMaxExtendBound(t *testing.T) {
	corp := writeCorpus(t, map[string]string{"t1/base.txt": "ABCD"})
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nB,1,t1,base,1,L\n")
	out, err := results.BifurcatedExtend(tbl, corp, 1)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "BC", out.Rows[0].Ngram)
	require.Equal(t, 2, out.Rows[0].Size)
}

func TestBifurcatedExtendHaltsWhenLabelWideCountDrops(t *testing.T) {
	corp := writeCorpus(t, map[string]string{
		"t1/base.txt": "ABCD",
		"t2/base.txt": "ABXY",
	})
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"B,1,t1,base,1,L\nB,1,t2,base,1,L\n")
	out, err := results.BifurcatedExtend(tbl, corp, 5)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		require.Equal(t, "AB", r.Ngram)
		require.Equal(t, 2, r.Size)
	}
}

func TestReduceDropsShorterSameCountSubstring(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,3,L\nA,1,t1,base,3,L\n")
	out := results.Reduce(tbl, "")
	require.Len(t, out.Rows, 1)
	require.Equal(t, "AB", out.Rows[0].Ngram)
}

func TestReduceDoesNotFalsePositiveOnSpaceJoinedTokens(t *testing.T) {
	// Reproduces the false positive a plain substring check would make:
	// token "ab" textually contains "b", but "b" never occurs there as
	// its own token, so Reduce must keep both rows.
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"x ab,2,t1,base,1,L\nb,1,t1,base,1,L\n")
	out := results.Reduce(tbl, " ")
	require.Len(t, out.Rows, 2)
}

func TestReduceKeepsGenuineTokenContainment(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"x ab y,3,t1,base,1,L\nab,1,t1,base,1,L\n")
	out := results.Reduce(tbl, " ")
	require.Len(t, out.Rows, 1)
	require.Equal(t, "x ab y", out.Rows[0].Ngram)
}

func TestZeroFillInsertsMissingWitnessRows(t *testing.T) {
	corp := writeCorpus(t, map[string]string{
		"t1/a.txt": "AAAA",
		"t1/b.txt": "AAAA",
	})
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\nX,1,t1,a,2,L\n")
	out, err := results.ZeroFill(tbl, corp)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	var zero *results.Row
	for i := range out.Rows {
		if out.Rows[i].Siglum == "b" {
			zero = &out.Rows[i]
		}
	}
	require.NotNil(t, zero)
	require.Equal(t, 0, zero.Count)
	require.Equal(t, "X", zero.Ngram)
	require.Equal(t, "L", zero.Label)
}

func TestZeroFillEmptyTableYieldsEmpty(t *testing.T) {
	corp := writeCorpus(t, map[string]string{"t1/a.txt": "AAAA"})
	out, err := results.ZeroFill(&results.Table{}, corp)
	require.NoError(t, err)
	require.Empty(t, out.Rows)
}

func TestPruneByNgram(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,1,L\nCD,2,t1,base,1,L\nEF,2,t1,base,1,L\n")
	out := results.PruneByNgram(tbl, []string{"AB", "EF"})
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		require.Contains(t, []string{"AB", "EF"}, r.Ngram)
	}
}

func TestPruneByWorkCount(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,1,L\nAB,2,t2,base,1,L\nCD,2,t1,base,1,L\n")
	min, max := 2, 2
	out := results.PruneByWorkCount(tbl, results.NewIntRange(&min, &max))
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		require.Equal(t, "AB", r.Ngram)
	}
}

func TestPruneByNgramCount(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,5,L\nCD,2,t1,base,1,L\n")
	min := 2
	out := results.PruneByNgramCount(tbl, results.NewIntRange(&min, nil))
	require.Len(t, out.Rows, 1)
	require.Equal(t, "AB", out.Rows[0].Ngram)
}

func TestPruneByNgramCountPerWork(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,a,2,L\nAB,2,t1,b,3,L\nAB,2,t2,base,1,L\n")
	min, max := 4, 6
	out := results.PruneByNgramCountPerWork(tbl, results.NewIntRange(&min, &max))
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		require.Equal(t, "t1", r.Work)
	}
}

func TestGroupByNgram(t *testing.T) {
	tbl := mustLoad(t, "ngram,size,work,siglum,count,label\n"+
		"AB,2,t1,base,1,A\nAB,2,t2,base,1,B\nCD,2,t1,base,0,A\n")
	g := results.GroupByNgram(tbl, []string{"A", "B"})
	require.Equal(t, []string{"A", "B"}, g.Labels)
	require.Len(t, g.Rows, 1)
	require.Equal(t, "AB", g.Rows[0].Ngram)
	require.Equal(t, []string{"t1"}, g.Rows[0].Works["A"])
	require.Equal(t, []string{"t2"}, g.Rows[0].Works["B"])
}
