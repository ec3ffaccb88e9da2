// Package corpus implements the Corpus component: enumerating witnesses
// on disk and yielding (work, siglum, content) triples, lazily.
package corpus

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/drupchen/tacl/errs"
	"github.com/drupchen/tacl/fs"
	"github.com/drupchen/tacl/token"
)

// Witness is one physical text file: <corpus>/<work>/<siglum>.txt.
// Content is not read until Content or Checksum is called.
type Witness struct {
	Work   string
	Siglum string
	path   string
}

// Path returns the witness's file path, for error reporting.
func (w *Witness) Path() string { return w.path }

// Content reads and returns the witness's decoded text. An unreadable
// or non-UTF-8 file yields an IOError naming the path.
func (w *Witness) Content() (string, error) {
	raw, err := w.raw()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errs.IO(w.path, fmt.Errorf("file is not valid UTF-8"))
	}
	return string(raw), nil
}

// Checksum returns the MD5 (hex-encoded) of the witness's raw bytes.
func (w *Witness) Checksum() (string, error) {
	raw, err := w.raw()
	if err != nil {
		return "", err
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (w *Witness) raw() ([]byte, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, errs.IO(w.path, err)
	}
	return raw, nil
}

// Corpus is a directory of works, each a subdirectory of siglum files.
type Corpus struct {
	Dir       string
	Tokenizer *token.Tokenizer
}

// New constructs a Corpus rooted at dir, using tok to tokenize witness
// content (e.g. in Results transforms that need to re-derive n-grams).
func New(dir string, tok *token.Tokenizer) *Corpus {
	return &Corpus{Dir: dir, Tokenizer: tok}
}

// GetTexts yields every witness in the corpus in deterministic sorted
// order (work asc, siglum asc).
func (c *Corpus) GetTexts() ([]*Witness, error) {
	works, err := c.Works()
	if err != nil {
		return nil, err
	}
	var out []*Witness
	for _, work := range works {
		wits, err := c.witnessesForWork(work)
		if err != nil {
			return nil, err
		}
		out = append(out, wits...)
	}
	return out, nil
}

// GetText returns the first witness (siglum asc) of work, the
// historical single-siglum API.
func (c *Corpus) GetText(work string) (*Witness, error) {
	wits, err := c.witnessesForWork(work)
	if err != nil {
		return nil, err
	}
	if len(wits) == 0 {
		return nil, errs.IO(filepath.Join(c.Dir, work), fmt.Errorf("work has no witnesses"))
	}
	return wits[0], nil
}

// GetWitness returns the single witness (work, siglum), or an IOError
// if no such file exists.
func (c *Corpus) GetWitness(work, siglum string) (*Witness, error) {
	wits, err := c.witnessesForWork(work)
	if err != nil {
		return nil, err
	}
	for _, w := range wits {
		if w.Siglum == siglum {
			return w, nil
		}
	}
	return nil, errs.IO(filepath.Join(c.Dir, work, siglum+".txt"), fmt.Errorf("witness not found"))
}

// SiglaForWork returns every siglum of work, sorted.
func (c *Corpus) SiglaForWork(work string) ([]string, error) {
	wits, err := c.witnessesForWork(work)
	if err != nil {
		return nil, err
	}
	sigla := make([]string, len(wits))
	for i, w := range wits {
		sigla[i] = w.Siglum
	}
	return sigla, nil
}

// Works returns every work directory name in the corpus, sorted.
func (c *Corpus) Works() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, errs.IO(c.Dir, err)
	}
	var works []string
	for _, e := range entries {
		if fs.IsDir(filepath.Join(c.Dir, e.Name())) {
			works = append(works, e.Name())
		}
	}
	sort.Strings(works)
	return works, nil
}

func (c *Corpus) witnessesForWork(work string) ([]*Witness, error) {
	dir := filepath.Join(c.Dir, work)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.IO(dir, err)
	}
	var names []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if fs.IsFile(full) && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	wits := make([]*Witness, len(names))
	for i, name := range names {
		wits[i] = &Witness{
			Work:   work,
			Siglum: strings.TrimSuffix(name, ".txt"),
			path:   filepath.Join(dir, name),
		}
	}
	return wits, nil
}
