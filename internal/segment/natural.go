package segment

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Chunk geometry for the natural-phrase policy.
const (
	naturalMinWords   = 5
	naturalIdealWords = 8
	naturalMaxWords   = 15

	// naturalInitialDelay is honored before the very first chunk so the
	// opening of an utterance gathers enough context for a good boundary.
	naturalInitialDelay = 150 * time.Millisecond

	// naturalQuiescentDelay is the silence after the latest partial before a
	// pending chunk fires on its own.
	naturalQuiescentDelay = 50 * time.Millisecond
)

var conjunctions = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "yet": true,
	"because": true, "although": true, "while": true, "when": true,
	"if": true, "since": true,
}

var prepositions = map[string]bool{
	"in": true, "on": true, "at": true, "by": true, "for": true,
	"with": true, "from": true, "to": true, "of": true, "about": true,
	"after": true, "before": true, "during": true, "through": true,
}

var articles = map[string]bool{
	"a": true, "an": true, "the": true,
}

// natural emits phrase-sized chunks at linguistically preferred boundaries.
// A cursor tracks how many words of the cumulative text have been voiced;
// the pending suffix is carved when it reaches the ideal size or when the
// partial stream goes quiet.
type natural struct {
	spoken *spokenSet

	words  []string // cumulative text, word-split
	cursor int      // words voiced so far

	firstEvent time.Time
	lastEvent  time.Time
	emittedAny bool
}

var _ Segmenter = (*natural)(nil)

func newNatural() *natural {
	return &natural{spoken: newSpokenSet()}
}

func (n *natural) Consume(ev Event) []Unit {
	n.ingest(ev.Text, ev.Now)

	if ev.IsFinal {
		return n.flushAll(ev.Now)
	}

	var units []Unit
	for n.pending() >= naturalIdealWords && n.delayElapsed(ev.Now) {
		u, ok := n.carve(false)
		if !ok {
			break
		}
		units = append(units, u)
	}
	return units
}

// Tick fires a pending chunk once the stream has been quiet long enough.
func (n *natural) Tick(now time.Time) []Unit {
	if n.pending() < naturalMinWords || !n.delayElapsed(now) {
		return nil
	}
	if now.Sub(n.lastEvent) < naturalQuiescentDelay {
		return nil
	}
	if u, ok := n.carve(false); ok {
		return []Unit{u}
	}
	return nil
}

func (n *natural) Flush(now time.Time) []Unit {
	return n.flushAll(now)
}

func (n *natural) Reset() {
	n.spoken.reset()
	n.words = nil
	n.cursor = 0
	n.firstEvent = time.Time{}
	n.lastEvent = time.Time{}
	n.emittedAny = false
}

// ingest replaces the word buffer from the cumulative text. A revision that
// shortens the text pulls the cursor back so nothing is skipped.
func (n *natural) ingest(text string, now time.Time) {
	n.words = strings.Fields(text)
	if n.cursor > len(n.words) {
		n.cursor = len(n.words)
	}
	if n.firstEvent.IsZero() {
		n.firstEvent = now
	}
	n.lastEvent = now
}

func (n *natural) pending() int {
	return len(n.words) - n.cursor
}

// delayElapsed enforces the initial context-gathering delay before the first
// chunk; later chunks have no minimum age.
func (n *natural) delayElapsed(now time.Time) bool {
	if n.emittedAny {
		return true
	}
	return now.Sub(n.firstEvent) >= naturalInitialDelay
}

// flushAll drains the pending buffer in boundary-scored chunks, then emits
// whatever tail is left even when it is below the minimum.
func (n *natural) flushAll(now time.Time) []Unit {
	var units []Unit
	for n.pending() >= naturalMinWords {
		u, ok := n.carve(true)
		if !ok {
			break
		}
		u.IsFinal = true
		units = append(units, u)
	}
	if n.pending() > 0 {
		text := strings.Join(n.words[n.cursor:], " ")
		n.cursor = len(n.words)
		if !n.spoken.seenFingerprint(text) {
			n.spoken.mark(text)
			units = append(units, Unit{
				Text:        text,
				Fingerprint: Fingerprint(text),
				Confidence:  1,
				IsFinal:     true,
			})
		}
	}
	return units
}

// carve cuts one chunk at the best-scoring boundary and advances the cursor.
func (n *natural) carve(force bool) (Unit, bool) {
	pending := n.words[n.cursor:]
	if len(pending) < naturalMinWords && !force {
		return Unit{}, false
	}

	limit := naturalMaxWords
	if len(pending) < limit {
		limit = len(pending)
	}
	if limit < naturalMinWords {
		limit = len(pending)
	}

	cut := bestBoundary(pending, limit)
	text := strings.Join(pending[:cut], " ")
	n.cursor += cut
	n.emittedAny = true

	if n.spoken.seenFingerprint(text) {
		return Unit{}, false
	}
	n.spoken.mark(text)
	return Unit{
		Text:        text,
		Fingerprint: Fingerprint(text),
		Confidence:  1,
	}, true
}

// bestBoundary scores every legal cut point and returns the winner. Higher
// scores mean a more natural break after words[cut-1].
func bestBoundary(words []string, limit int) int {
	lo := naturalMinWords
	if lo > limit {
		lo = limit
	}

	best, bestScore := limit, -1000
	for cut := lo; cut <= limit; cut++ {
		score := boundaryScore(words, cut)
		// Mild pull toward the ideal size breaks ties between equally
		// natural boundaries.
		dist := cut - naturalIdealWords
		if dist < 0 {
			dist = -dist
		}
		score -= dist
		if score > bestScore {
			best, bestScore = cut, score
		}
	}
	return best
}

// boundaryScore rates a cut after words[cut-1], before words[cut].
func boundaryScore(words []string, cut int) int {
	prior := words[cut-1]
	last, _ := utf8.DecodeLastRuneInString(prior)
	score := 0
	switch {
	case endsWithTerminal(prior):
		score += 40 // phrase end
	case strings.ContainsRune(",;:", last):
		score += 30 // prior-word punctuation
	}
	if cut < len(words) {
		next := strings.ToLower(strings.Trim(words[cut], ",.!?"))
		switch {
		case conjunctions[next]:
			score += 20
		case prepositions[next]:
			score += 10
		case articles[next]:
			score -= 20
		}
	}
	return score
}
