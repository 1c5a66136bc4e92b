package segment

import (
	"strings"
	"time"
)

// Phrase-mode activation: partials arriving faster than phraseRate for at
// least phraseSustain switch extraction from sentences to comma-separated
// phrases with relaxed stability thresholds. A pause longer than
// phraseDeactivatePause switches back.
const (
	phraseRate            = 3 // partials per second
	phraseSustain         = 2 * time.Second
	phraseDeactivatePause = 900 * time.Millisecond
	phraseWindow          = 200 * time.Millisecond
	phraseChunkWords      = 8

	// candidatePruneAfter is how long a candidate may be absent from the
	// cumulative text before it is discarded as a superseded revision.
	candidatePruneAfter = time.Second
)

// candidate is one sentence (or phrase) observed in the evolving text.
type candidate struct {
	text      string
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// hybrid voices sentences as soon as they are judged stable across
// successive partials, without waiting for finals. Stability is reached when
// a candidate reappears often enough, is confirmed by a final, or survives
// long enough in the text. Candidates that vanish from the cumulative text
// were provisional translations and are pruned before they can be voiced.
type hybrid struct {
	cfg    Config
	spoken *spokenSet

	candidates map[uint64]*candidate

	// lastEvent and lastNorm describe the most recent transcript event.
	// Candidate absence is measured against event text, never wall-clock
	// silence: a quiet stream does not make candidates stale.
	lastEvent time.Time
	lastNorm  string

	// phrase-mode detection
	arrivals    []time.Time
	phraseMode  bool
	phraseSince time.Time
}

var _ Segmenter = (*hybrid)(nil)

func newHybrid(cfg Config) *hybrid {
	return &hybrid{
		cfg:        cfg,
		spoken:     newSpokenSet(),
		candidates: make(map[uint64]*candidate),
	}
}

func (h *hybrid) Consume(ev Event) []Unit {
	if !ev.IsFinal {
		h.observePartial(ev.Now)
	}

	pieces := h.extract(ev.Text, ev.IsFinal)
	h.lastEvent = ev.Now
	h.lastNorm = Normalize(ev.Text)

	for _, p := range pieces {
		fp := Fingerprint(p)
		c, ok := h.candidates[fp]
		if !ok {
			c = &candidate{text: p, firstSeen: ev.Now}
			h.candidates[fp] = c
		}
		c.count++
		c.lastSeen = ev.Now
	}

	h.prune()
	return h.emitStable(ev.Now, ev.IsFinal)
}

// Tick promotes candidates whose age-based stability condition has been met
// and prunes the ones that timed out while absent.
func (h *hybrid) Tick(now time.Time) []Unit {
	h.updatePhraseMode(now)
	h.prune()
	return h.emitStable(now, false)
}

// Flush voices the remaining candidates that are still present in the latest
// text and pass deduplication. Used on speaker pause and teardown, where
// waiting for stability would swallow the tail of the utterance. Withdrawn
// candidates are revisions and stay silent.
func (h *hybrid) Flush(now time.Time) []Unit {
	var units []Unit
	for fp, c := range h.candidates {
		delete(h.candidates, fp)
		if c.lastSeen.Before(h.lastEvent) {
			continue
		}
		if h.spoken.seenFingerprint(c.text) {
			continue
		}
		h.spoken.mark(c.text)
		units = append(units, Unit{
			Text:        c.text,
			Fingerprint: fp,
			Confidence:  h.confidence(c, now),
		})
	}
	return units
}

func (h *hybrid) Reset() {
	h.spoken.reset()
	h.candidates = make(map[uint64]*candidate)
	h.lastEvent = time.Time{}
	h.lastNorm = ""
	h.arrivals = nil
	h.phraseMode = false
	h.phraseSince = time.Time{}
}

// extract carves the cumulative text into candidate pieces: complete
// sentences normally, comma-or-length phrases in phrase mode. Finals also
// contribute the unterminated remainder so nothing is lost at the end of an
// utterance.
func (h *hybrid) extract(text string, isFinal bool) []string {
	sentences, remainder := extractSentences(text)
	if isFinal && remainder != "" && wordCount(remainder) >= minSentenceWords {
		sentences = append(sentences, remainder)
		remainder = ""
	}
	if !h.phraseMode || remainder == "" {
		return sentences
	}

	// Phrase mode: the in-progress remainder is split at commas, or every
	// phraseChunkWords words when the text carries no punctuation at all.
	// Only phrases that are no longer growing (i.e. all but the last) are
	// candidates; the trailing fragment is still being typed out.
	phrases := splitPhrases(remainder)
	if len(phrases) > 1 {
		sentences = append(sentences, phrases[:len(phrases)-1]...)
	}
	return sentences
}

// splitPhrases splits s on commas and semicolons, falling back to fixed-size
// word chunks when no separators are present.
func splitPhrases(s string) []string {
	if strings.ContainsAny(s, ",;") {
		var out []string
		for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	words := strings.Fields(s)
	var out []string
	for len(words) > phraseChunkWords {
		out = append(out, strings.Join(words[:phraseChunkWords], " "))
		words = words[phraseChunkWords:]
	}
	if len(words) > 0 {
		out = append(out, strings.Join(words, " "))
	}
	return out
}

// observePartial feeds the phrase-mode rate detector: a long gap since the
// previous partial deactivates phrase mode, a sustained fast burst activates
// it.
func (h *hybrid) observePartial(now time.Time) {
	h.updatePhraseMode(now)

	h.arrivals = append(h.arrivals, now)
	cutoff := now.Add(-phraseSustain - time.Second)
	for len(h.arrivals) > 0 && h.arrivals[0].Before(cutoff) {
		h.arrivals = h.arrivals[1:]
	}

	if h.phraseMode {
		return
	}
	// Active when the last phraseSustain interval saw at least phraseRate
	// partials per second.
	recent := 0
	for _, t := range h.arrivals {
		if !t.Before(now.Add(-phraseSustain)) {
			recent++
		}
	}
	if recent >= int(phraseSustain.Seconds())*phraseRate {
		h.phraseMode = true
		h.phraseSince = now
	}
}

// updatePhraseMode drops out of phrase mode after a long pause in partials.
func (h *hybrid) updatePhraseMode(now time.Time) {
	if h.phraseMode && len(h.arrivals) > 0 && now.Sub(h.arrivals[len(h.arrivals)-1]) > phraseDeactivatePause {
		h.phraseMode = false
		h.arrivals = nil
	}
}

// thresholds returns the stability tuning for the current mode.
func (h *hybrid) thresholds() (count int, window time.Duration) {
	if h.phraseMode {
		return 1, phraseWindow
	}
	return h.cfg.StabilityThreshold, h.cfg.StabilityWindow
}

// emitStable voices candidates that satisfy any stability condition, in
// first-seen order, each exactly once by fingerprint.
func (h *hybrid) emitStable(now time.Time, isFinal bool) []Unit {
	threshold, window := h.thresholds()

	var ready []*candidate
	var fps []uint64
	for fp, c := range h.candidates {
		// Presence in the latest text gates the final and age conditions:
		// a withdrawn candidate must never be voiced by a later final or by
		// outliving the window.
		present := !c.lastSeen.Before(h.lastEvent)
		stable := c.count >= threshold ||
			(isFinal && c.count >= 1 && present) ||
			(now.Sub(c.firstSeen) > window && c.count >= 2 && present)
		if stable {
			ready = append(ready, c)
			fps = append(fps, fp)
		}
	}

	// first-seen order keeps sentences in speaking order
	for i := 1; i < len(ready); i++ {
		for j := i; j > 0 && ready[j].firstSeen.Before(ready[j-1].firstSeen); j-- {
			ready[j], ready[j-1] = ready[j-1], ready[j]
			fps[j], fps[j-1] = fps[j-1], fps[j]
		}
	}

	var units []Unit
	for i, c := range ready {
		delete(h.candidates, fps[i])
		if h.spoken.seenFingerprint(c.text) {
			continue
		}
		h.spoken.mark(c.text)
		units = append(units, Unit{
			Text:        c.text,
			Fingerprint: fps[i],
			Confidence:  h.confidence(c, now),
			IsFinal:     isFinal,
		})
	}
	return units
}

// confidence scores a candidate's stability in [0, 1]: repeat count,
// lifetime, and terminal punctuation each contribute.
func (h *hybrid) confidence(c *candidate, now time.Time) float64 {
	threshold, window := h.thresholds()

	countPart := float64(c.count) / float64(threshold)
	if countPart > 1 {
		countPart = 1
	}
	alivePart := now.Sub(c.firstSeen).Seconds() / window.Seconds()
	if alivePart > 1 {
		alivePart = 1
	}
	punctPart := 0.1
	if endsWithTerminal(c.text) {
		punctPart = 0.2
	}
	return 0.5*countPart + 0.3*alivePart + punctPart
}

// prune discards candidates that have been absent from the event text for
// longer than the grace interval without reaching the repeat threshold. They
// were provisional translations superseded by a revision.
func (h *hybrid) prune() {
	threshold, _ := h.thresholds()
	for fp, c := range h.candidates {
		if strings.Contains(h.lastNorm, Normalize(c.text)) {
			c.lastSeen = h.lastEvent
			continue
		}
		if h.lastEvent.Sub(c.lastSeen) > candidatePruneAfter && c.count < threshold {
			delete(h.candidates, fp)
		}
	}
}
