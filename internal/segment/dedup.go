package segment

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// jaccardDuplicateThreshold is the token-set similarity above which two
// utterances count as the same thing said twice.
const jaccardDuplicateThreshold = 0.85

// jaroWinklerDuplicateThreshold catches small recognizer jitter ("the cat" vs
// "the cats") that token-set similarity misses on short utterances.
const jaroWinklerDuplicateThreshold = 0.96

// spokenSet tracks what has already been voiced for one (session, language).
// Policies pick the membership test matching their dedup contract:
// seenFingerprint for exact-normalized at-most-once, similar for token-set
// paraphrase suppression, seen for the full fuzzy battery.
type spokenSet struct {
	fingerprints map[uint64]struct{}
	normalized   []string
}

func newSpokenSet() *spokenSet {
	return &spokenSet{fingerprints: make(map[uint64]struct{})}
}

// seenFingerprint reports exact equality of the normalized text with an
// already-spoken utterance.
func (s *spokenSet) seenFingerprint(text string) bool {
	if Normalize(text) == "" {
		return true
	}
	_, ok := s.fingerprints[Fingerprint(text)]
	return ok
}

// similar reports token-set Jaccard similarity at or above the duplicate
// threshold against any already-spoken utterance.
func (s *spokenSet) similar(text string) bool {
	n := Normalize(text)
	for _, prior := range s.normalized {
		if jaccard(n, prior) >= jaccardDuplicateThreshold {
			return true
		}
	}
	return false
}

// seen runs the strictest battery: exact normalized equality, bidirectional
// substring containment, token-set Jaccard, and Jaro-Winkler similarity for
// near-identical short strings.
func (s *spokenSet) seen(text string) bool {
	if s.seenFingerprint(text) {
		return true
	}
	n := Normalize(text)
	for _, prior := range s.normalized {
		if containsEither(n, prior) {
			return true
		}
		if jaccard(n, prior) >= jaccardDuplicateThreshold {
			return true
		}
		if matchr.JaroWinkler(n, prior, false) >= jaroWinklerDuplicateThreshold {
			return true
		}
	}
	return false
}

// mark records text as spoken.
func (s *spokenSet) mark(text string) {
	s.fingerprints[Fingerprint(text)] = struct{}{}
	s.normalized = append(s.normalized, Normalize(text))
}

// reset clears the set.
func (s *spokenSet) reset() {
	s.fingerprints = make(map[uint64]struct{})
	s.normalized = nil
}

// containsEither reports substring containment in either direction, but only
// when both sides are long enough that containment means repetition rather
// than a shared short word.
func containsEither(a, b string) bool {
	if len(a) < 8 || len(b) < 8 {
		return a == b
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
