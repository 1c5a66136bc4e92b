package segment

import "time"

// finalOnly voices complete sentences from final transcripts only. Highest
// quality, highest latency: partials update the display but never the voice.
type finalOnly struct {
	spoken *spokenSet
}

var _ Segmenter = (*finalOnly)(nil)

func newFinalOnly() *finalOnly {
	return &finalOnly{spoken: newSpokenSet()}
}

func (f *finalOnly) Consume(ev Event) []Unit {
	if !ev.IsFinal {
		return nil
	}
	sentences, remainder := extractSentences(ev.Text)
	if remainder != "" && wordCount(remainder) >= minSentenceWords {
		sentences = append(sentences, remainder)
	}

	var units []Unit
	for _, s := range sentences {
		if wordCount(s) < minSentenceWords {
			continue
		}
		if f.spoken.seen(s) {
			continue
		}
		f.spoken.mark(s)
		units = append(units, Unit{
			Text:        s,
			Fingerprint: Fingerprint(s),
			Confidence:  1,
			IsFinal:     true,
		})
	}
	return units
}

func (f *finalOnly) Tick(time.Time) []Unit { return nil }

func (f *finalOnly) Flush(time.Time) []Unit { return nil }

func (f *finalOnly) Reset() { f.spoken.reset() }
