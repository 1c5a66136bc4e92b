package segment

import "time"

// continuous carves nothing: it keeps a character cursor into the cumulative
// text and forwards every new suffix verbatim as a delta for the persistent
// synthesis channel. The TTS provider owns all prosody decisions. A final
// flushes the tail and rewinds the cursor for the next utterance.
type continuous struct {
	minDelta int
	text     []rune // cumulative text of the current utterance
	cursor   int    // runes already forwarded
}

var _ Segmenter = (*continuous)(nil)

func newContinuous(cfg Config) *continuous {
	return &continuous{minDelta: cfg.MinDelta}
}

func (c *continuous) Consume(ev Event) []Unit {
	c.text = []rune(ev.Text)

	// A shrinking text is a recognizer revision. The already-sent prefix
	// cannot be unsaid, so just move the cursor back and resume from there.
	if c.cursor > len(c.text) {
		c.cursor = len(c.text)
	}

	delta := len(c.text) - c.cursor
	if delta == 0 || (delta < c.minDelta && !ev.IsFinal) {
		if ev.IsFinal {
			c.rewind()
		}
		return nil
	}

	unit := Unit{
		Text:    string(c.text[c.cursor:]),
		Delta:   true,
		IsFinal: ev.IsFinal,
	}
	c.cursor = len(c.text)
	if ev.IsFinal {
		c.rewind()
	}
	return []Unit{unit}
}

func (c *continuous) Tick(time.Time) []Unit { return nil }

// Flush forwards any unsent tail, even below the minimum delta, and rewinds
// for the next utterance.
func (c *continuous) Flush(time.Time) []Unit {
	var units []Unit
	if c.cursor < len(c.text) {
		units = []Unit{{
			Text:    string(c.text[c.cursor:]),
			Delta:   true,
			IsFinal: true,
		}}
	}
	c.rewind()
	return units
}

func (c *continuous) Reset() {
	c.rewind()
}

// rewind starts a fresh utterance.
func (c *continuous) rewind() {
	c.text = nil
	c.cursor = 0
}
