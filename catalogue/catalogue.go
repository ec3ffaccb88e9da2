// Package catalogue implements the Catalogue component: an ordered
// work -> label mapping used to partition a corpus for querying.
package catalogue

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/drupchen/tacl/corpus"
	"github.com/drupchen/tacl/errs"
)

type entry struct {
	work  string
	label string
}

// Catalogue is an ordered work -> label mapping. Order of first
// appearance is preserved, both for works (insertion order) and for
// labels (ordered_labels).
type Catalogue struct {
	entries []entry
	index   map[string]int // work -> position in entries
}

func newCatalogue() *Catalogue {
	return &Catalogue{index: make(map[string]int)}
}

// Empty returns a catalogue with no entries, for queries (sdiff/
// sintersect) that draw every label from externally supplied results
// rather than from a loaded catalogue file.
func Empty() *Catalogue {
	return newCatalogue()
}

// Set records label for work, or returns CatalogueConflict if work is
// already present under a different non-empty label.
func (c *Catalogue) Set(work, label string) error {
	if i, ok := c.index[work]; ok {
		existing := c.entries[i].label
		if existing != "" && label != "" && existing != label {
			return errs.CatalogueConflict(work)
		}
		c.entries[i].label = label
		return nil
	}
	c.index[work] = len(c.entries)
	c.entries = append(c.entries, entry{work: work, label: label})
	return nil
}

// Works returns every work in insertion order, including those with an
// empty (removed) label.
func (c *Catalogue) Works() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.work
	}
	return out
}

// Label returns the label assigned to work, and whether work is known
// to the catalogue at all.
func (c *Catalogue) Label(work string) (string, bool) {
	i, ok := c.index[work]
	if !ok {
		return "", false
	}
	return c.entries[i].label, true
}

// Active returns the (work, label) pairs that participate in queries:
// every entry whose label is non-empty.
func (c *Catalogue) Active() []struct{ Work, Label string } {
	var out []struct{ Work, Label string }
	for _, e := range c.entries {
		if e.label != "" {
			out = append(out, struct{ Work, Label string }{e.work, e.label})
		}
	}
	return out
}

// OrderedLabels returns the distinct non-empty labels in the order of
// their first appearance.
func (c *Catalogue) OrderedLabels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.entries {
		if e.label == "" || seen[e.label] {
			continue
		}
		seen[e.label] = true
		out = append(out, e.label)
	}
	return out
}

// Generate produces a catalogue listing every work in corpusDir paired
// with defaultLabel, in directory sort order.
func Generate(corpusDir, defaultLabel string) (*Catalogue, error) {
	c := corpus.New(corpusDir, nil)
	works, err := c.Works()
	if err != nil {
		return nil, err
	}
	cat := newCatalogue()
	for _, w := range works {
		if err := cat.Set(w, defaultLabel); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Load parses a whitespace-delimited two-column file (work label).
// Blank lines and '#' comment lines are ignored. A label containing
// whitespace must be double-quoted. An empty label removes the work
// from querying (it is still recorded, with label "").
func Load(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IO(path, err)
	}
	defer f.Close()

	cat := newCatalogue()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		work, label, err := parseLine(line)
		if err != nil {
			return nil, errs.IO(path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		if err := cat.Set(work, label); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(path, err)
	}
	return cat, nil
}

func parseLine(line string) (work, label string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", fmt.Errorf("empty catalogue line")
	}
	work = fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	if rest == "" {
		return work, "", nil
	}
	if strings.HasPrefix(rest, `"`) {
		if strings.HasSuffix(rest, `"`) && len(rest) >= 2 {
			return work, rest[1 : len(rest)-1], nil
		}
		return "", "", fmt.Errorf("unterminated quoted label: %s", rest)
	}
	return work, strings.Fields(rest)[0], nil
}

// Save writes the catalogue to path in load-compatible format,
// preserving insertion order.
func (c *Catalogue) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.IO(path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, e := range c.entries {
		label := e.label
		if strings.ContainsAny(label, " \t") {
			label = `"` + label + `"`
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", e.work, label); err != nil {
			return errs.IO(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return errs.IO(path, err)
	}
	return nil
}
