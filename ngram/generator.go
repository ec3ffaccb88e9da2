// Package ngram implements the N-gram Generator component: turning a
// token sequence and a size range into per-size occurrence counts.
package ngram

import "github.com/drupchen/tacl/token"

// SizeCounts maps an n-gram string to its exact occurrence count
// (including overlapping windows) for one size.
type SizeCounts map[string]int

// SizeBucket pairs a size with its n-gram counts.
type SizeBucket struct {
	Size   int
	Counts SizeCounts
}

// Generate produces, for every size in [minSize, maxSize], a mapping
// ngram -> count. Sizes are returned in ascending order so callers can
// iterate deterministically.
func Generate(tok *token.Tokenizer, tokens []string, minSize, maxSize int) []SizeBucket {
	out := make([]SizeBucket, 0, maxSize-minSize+1)
	for size := minSize; size <= maxSize; size++ {
		out = append(out, SizeBucket{Size: size, Counts: CountSize(tok, tokens, size)})
	}
	return out
}

// CountSize returns the ngram -> count mapping for a single size.
func CountSize(tok *token.Tokenizer, tokens []string, size int) SizeCounts {
	windows := tok.Ngrams(tokens, size)
	counts := make(SizeCounts, len(windows))
	for _, w := range windows {
		counts[w]++
	}
	return counts
}
