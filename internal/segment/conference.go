package segment

import (
	"strings"
	"time"
)

// conferenceMinWords is the minimum sentence length the conference policy
// will voice. Short interjections repeat constantly in panel settings and
// are not worth an audio round-trip.
const conferenceMinWords = 5

// prefixWords is the length of the leading-words key used to catch
// re-translations of the same sentence with a changed tail.
const prefixWords = 5

// prefixGrowthFactor: a sentence sharing a stored prefix is only voiced when
// it has grown well past the stored one, i.e. it genuinely says more.
const prefixGrowthFactor = 1.2

// conference voices finals only, with aggressive duplicate suppression for
// multi-speaker rooms: fingerprint dedup, a first-words-prefix check against
// re-translations, and Jaccard similarity against every prior utterance.
type conference struct {
	spoken *spokenSet

	// byPrefix stores the longest voiced sentence per 5-word prefix.
	byPrefix map[string]int
}

var _ Segmenter = (*conference)(nil)

func newConference() *conference {
	return &conference{
		spoken:   newSpokenSet(),
		byPrefix: make(map[string]int),
	}
}

func (c *conference) Consume(ev Event) []Unit {
	if !ev.IsFinal {
		return nil
	}
	sentences, remainder := extractSentences(ev.Text)
	if remainder != "" && wordCount(remainder) >= conferenceMinWords {
		sentences = append(sentences, remainder)
	}

	var units []Unit
	for _, s := range sentences {
		if wordCount(s) < conferenceMinWords {
			continue
		}
		if c.spoken.seenFingerprint(s) || c.spoken.similar(s) {
			continue
		}
		if !c.passesPrefixCheck(s) {
			continue
		}
		c.record(s)
		units = append(units, Unit{
			Text:        s,
			Fingerprint: Fingerprint(s),
			Confidence:  1,
			IsFinal:     true,
		})
	}
	return units
}

func (c *conference) Tick(time.Time) []Unit { return nil }

func (c *conference) Flush(time.Time) []Unit { return nil }

func (c *conference) Reset() {
	c.spoken.reset()
	c.byPrefix = make(map[string]int)
}

// passesPrefixCheck rejects sentences that share their first five words with
// an already-voiced sentence unless the new one is substantially longer.
func (c *conference) passesPrefixCheck(s string) bool {
	key := prefixKey(s)
	if key == "" {
		return true
	}
	stored, ok := c.byPrefix[key]
	if !ok {
		return true
	}
	return float64(len(Normalize(s))) > prefixGrowthFactor*float64(stored)
}

// record marks s as voiced in every dedup structure.
func (c *conference) record(s string) {
	c.spoken.mark(s)
	if key := prefixKey(s); key != "" {
		n := len(Normalize(s))
		if n > c.byPrefix[key] {
			c.byPrefix[key] = n
		}
	}
}

// prefixKey returns the normalized first five words of s, or "" when s is
// too short to key.
func prefixKey(s string) string {
	words := strings.Fields(Normalize(s))
	if len(words) < prefixWords {
		return ""
	}
	return strings.Join(words[:prefixWords], " ")
}
