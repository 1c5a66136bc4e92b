package segment

import (
	"strings"
	"time"
)

// Chunk geometry for the ultra-low-latency policy.
const (
	ultraMinWords = 3
	ultraMaxWords = 10

	// ultraWait is how long a pending chunk without a punctuation boundary
	// waits for more words before firing anyway.
	ultraWait = 100 * time.Millisecond
)

// ultraLow trades prosody for speed: it emits 3–10 word chunks as soon as
// three new words are available, cutting at punctuation when any is in
// reach and at the hard word bound otherwise.
type ultraLow struct {
	spoken *spokenSet

	words      []string
	cursor     int
	lastGrowth time.Time
}

var _ Segmenter = (*ultraLow)(nil)

func newUltraLow() *ultraLow {
	return &ultraLow{spoken: newSpokenSet()}
}

func (u *ultraLow) Consume(ev Event) []Unit {
	prev := len(u.words)
	u.words = strings.Fields(ev.Text)
	if u.cursor > len(u.words) {
		u.cursor = len(u.words)
	}
	if len(u.words) != prev {
		u.lastGrowth = ev.Now
	}

	if ev.IsFinal {
		return u.flushAll()
	}

	var units []Unit
	for {
		unit, ok := u.tryEmit(false)
		if !ok {
			break
		}
		units = append(units, unit)
	}
	return units
}

// Tick fires a punctuation-less chunk once the wait has elapsed.
func (u *ultraLow) Tick(now time.Time) []Unit {
	if u.pending() < ultraMinWords || now.Sub(u.lastGrowth) < ultraWait {
		return nil
	}
	if unit, ok := u.tryEmit(true); ok {
		return []Unit{unit}
	}
	return nil
}

func (u *ultraLow) Flush(time.Time) []Unit {
	return u.flushAll()
}

func (u *ultraLow) Reset() {
	u.spoken.reset()
	u.words = nil
	u.cursor = 0
	u.lastGrowth = time.Time{}
}

func (u *ultraLow) pending() int {
	return len(u.words) - u.cursor
}

// tryEmit carves one chunk if the pending buffer justifies it: a punctuation
// boundary within the window, the hard word bound, or — when waited is true —
// any three words.
func (u *ultraLow) tryEmit(waited bool) (Unit, bool) {
	pending := u.words[u.cursor:]
	if len(pending) < ultraMinWords {
		return Unit{}, false
	}

	limit := ultraMaxWords
	if len(pending) < limit {
		limit = len(pending)
	}

	cut := punctuationCut(pending, limit)
	switch {
	case cut > 0:
		// punctuation boundary wins
	case len(pending) >= ultraMaxWords:
		cut = ultraMaxWords
	case waited:
		cut = limit
	default:
		return Unit{}, false
	}

	return u.emit(cut)
}

// flushAll drains everything pending in max-size chunks, preferring
// punctuation cuts inside each window.
func (u *ultraLow) flushAll() []Unit {
	var units []Unit
	for u.pending() > 0 {
		pending := u.words[u.cursor:]
		limit := ultraMaxWords
		if len(pending) < limit {
			limit = len(pending)
		}
		cut := punctuationCut(pending, limit)
		if cut == 0 {
			cut = limit
		}
		if unit, ok := u.emit(cut); ok {
			unit.IsFinal = true
			units = append(units, unit)
		}
	}
	return units
}

// emit advances the cursor by cut words and returns the unit, unless the
// chunk was already voiced.
func (u *ultraLow) emit(cut int) (Unit, bool) {
	text := strings.Join(u.words[u.cursor:u.cursor+cut], " ")
	u.cursor += cut
	if u.spoken.seenFingerprint(text) {
		return Unit{}, false
	}
	u.spoken.mark(text)
	return Unit{
		Text:        text,
		Fingerprint: Fingerprint(text),
		Confidence:  1,
	}, true
}

// punctuationCut returns the last position ≤ limit whose word ends in a
// comma, semicolon, colon, or sentence terminal, and is at least the minimum
// chunk size. Zero means no such boundary.
func punctuationCut(words []string, limit int) int {
	for i := limit; i >= ultraMinWords; i-- {
		w := words[i-1]
		last := w[len(w)-1]
		if last == ',' || last == ';' || last == ':' || endsWithTerminal(w) {
			return i
		}
	}
	return 0
}
