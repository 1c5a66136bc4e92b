package segment

import (
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for duplicate comparison: Unicode NFD, combining
// marks stripped, lowercased, whitespace collapsed to single spaces, and
// everything that is not a letter, digit, or space dropped. The result is
// for comparison only and never reaches a synthesis provider.
func Normalize(text string) string {
	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	space := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from the NFD decomposition
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Fingerprint hashes the normalized form of text. Equal fingerprints mean
// "same utterance" for the at-most-once voicing guarantee, across case,
// diacritic, and punctuation variants.
func Fingerprint(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(Normalize(text)))
	return h.Sum64()
}

// tokens splits a normalized string into its word set.
func tokens(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes token-set similarity between two normalized strings.
func jaccard(a, b string) float64 {
	as, bs := tokens(a), tokens(b)
	if len(as) == 0 && len(bs) == 0 {
		return 1
	}
	inter := 0
	for w := range as {
		if _, ok := bs[w]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
