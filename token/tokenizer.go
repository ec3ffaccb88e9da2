// Package token implements the Tokenizer component: splitting decoded
// text into an ordered sequence of atomic tokens under a configurable
// pattern and joiner, and composing token windows back into n-gram
// strings.
package token

import "regexp"

// Tokenizer splits text into tokens using Pattern and recomposes token
// windows into n-gram strings using Joiner. The zero value is not
// usable; construct with New, CJK or Whitespace.
type Tokenizer struct {
	Pattern *regexp.Regexp
	Joiner  string
}

// PatternCJK matches a single ideographic code point.
const PatternCJK = `[\x{4e00}-\x{9fff}\x{3400}-\x{4dbf}\x{f900}-\x{faff}]`

// PatternWhitespace matches a maximal run of non-whitespace, suited to
// whitespace-delimited and syllabic scripts (e.g. Tibetan
// transliteration).
const PatternWhitespace = `\S+`

// New constructs a Tokenizer from a raw pattern string and joiner. It
// panics on an invalid pattern, since pattern/joiner pairs are fixed
// configuration, not user input.
func New(pattern, joiner string) *Tokenizer {
	return &Tokenizer{Pattern: regexp.MustCompile(pattern), Joiner: joiner}
}

// CJK returns the standard CJK tokenizer: one token per ideographic
// code point, joined with the empty string.
func CJK() *Tokenizer {
	return New(PatternCJK, "")
}

// Whitespace returns the standard whitespace/syllabic tokenizer: tokens
// are maximal non-whitespace runs, joined with a single space.
func Whitespace() *Tokenizer {
	return New(PatternWhitespace, " ")
}

// Tokenize returns every maximal non-overlapping match of t.Pattern in
// text, in textual order.
func (t *Tokenizer) Tokenize(text string) []string {
	return t.Pattern.FindAllString(text, -1)
}

// Ngrams returns every length-n window of tokens, materialised via
// t.Joiner, in order. For len(tokens) == L the result has
// max(0, L-n+1) entries.
func (t *Tokenizer) Ngrams(tokens []string, n int) []string {
	if n < 1 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, t.join(tokens[i:i+n]))
	}
	return out
}

func (t *Tokenizer) join(window []string) string {
	if len(window) == 1 {
		return window[0]
	}
	total := 0
	for _, w := range window {
		total += len(w)
	}
	total += len(t.Joiner) * (len(window) - 1)
	buf := make([]byte, 0, total)
	for i, w := range window {
		if i > 0 {
			buf = append(buf, t.Joiner...)
		}
		buf = append(buf, w...)
	}
	return string(buf)
}
