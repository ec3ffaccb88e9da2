package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/drupchen/tacl/errs"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "t2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "t1"), 0o755))
	cat, err := Generate(dir, "L")
	require.NoError(t, err)
	require.Equal(t, []string{"t1", "t2"}, cat.Works())
	label, ok := cat.Label("t1")
	require.True(t, ok)
	require.Equal(t, "L", label)
}

func TestLoadAndOrderedLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.txt")
	content := "# comment\nt1 A\nt2 B\nt3 A\nt4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cat, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, cat.OrderedLabels())
	label, ok := cat.Label("t4")
	require.True(t, ok)
	require.Equal(t, "", label)
	require.Len(t, cat.Active(), 3)
}

func TestLoadQuotedLabel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.txt")
	content := "t1 \"two words\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cat, err := Load(path)
	require.NoError(t, err)
	label, _ := cat.Label("t1")
	require.Equal(t, "two words", label)
}

func TestSetConflict(t *testing.T) {
	cat := newCatalogue()
	require.NoError(t, cat.Set("t1", "A"))
	err := cat.Set("t1", "B")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindCatalogueConflict))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.txt")
	cat := newCatalogue()
	require.NoError(t, cat.Set("t1", "A"))
	require.NoError(t, cat.Set("t2", "two words"))
	require.NoError(t, cat.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"t1", "t2"}, loaded.Works())
	label, _ := loaded.Label("t2")
	require.Equal(t, "two words", label)
}
