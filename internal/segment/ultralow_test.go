package segment

import (
	"strings"
	"testing"
	"time"
)

func TestUltraLow_PunctuationFiresImmediately(t *testing.T) {
	s := newUltraLow()
	units := s.Consume(Event{Text: "first the agenda, then the budget", Now: t0})
	if len(units) == 0 {
		t.Fatal("no unit despite comma boundary")
	}
	if units[0].Text != "first the agenda," {
		t.Errorf("chunk = %q, want cut at the comma", units[0].Text)
	}
}

func TestUltraLow_NoPunctuationWaits(t *testing.T) {
	s := newUltraLow()
	if units := s.Consume(Event{Text: "four plain words here", Now: t0}); len(units) != 0 {
		t.Fatalf("emitted %v without punctuation or wait", texts(units))
	}
	// Wait not yet elapsed.
	if units := s.Tick(t0.Add(50 * time.Millisecond)); len(units) != 0 {
		t.Fatalf("emitted %v before wait elapsed", texts(units))
	}
	units := s.Tick(t0.Add(150 * time.Millisecond))
	if len(units) != 1 || units[0].Text != "four plain words here" {
		t.Fatalf("emitted %v, want the waited chunk", texts(units))
	}
}

func TestUltraLow_HardWordBound(t *testing.T) {
	s := newUltraLow()
	text := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11 w12"
	units := s.Consume(Event{Text: text, Now: t0})
	if len(units) != 1 {
		t.Fatalf("emitted %d units, want 1", len(units))
	}
	if got := len(strings.Fields(units[0].Text)); got != ultraMaxWords {
		t.Errorf("chunk has %d words, want the hard bound %d", got, ultraMaxWords)
	}
}

func TestUltraLow_FinalFlushCoversEveryWord(t *testing.T) {
	s := newUltraLow()
	text := "uno dos tres cuatro cinco seis siete ocho nueve diez once doce trece"
	units := s.Consume(Event{Text: text, IsFinal: true, Now: t0})
	joined := strings.Join(texts(units), " ")
	if joined != text {
		t.Errorf("flush = %q, want every word exactly once", joined)
	}
	for _, u := range units {
		if !u.IsFinal {
			t.Errorf("flushed unit %q not marked final", u.Text)
		}
	}
}

func TestUltraLow_AtMostOnce(t *testing.T) {
	s := newUltraLow()
	s.Consume(Event{Text: "buenos días a todos.", IsFinal: true, Now: t0})
	// The same utterance starts over (speaker repeats themselves).
	units := s.Consume(Event{Text: "buenos días a todos. buenos dias a todos.", IsFinal: true, Now: t0.Add(time.Second)})
	if len(units) != 0 {
		t.Errorf("repeat emitted %v", texts(units))
	}
}

func TestUltraLow_BelowMinimumHolds(t *testing.T) {
	s := newUltraLow()
	if units := s.Consume(Event{Text: "two words", Now: t0}); len(units) != 0 {
		t.Errorf("emitted %v below minimum chunk size", texts(units))
	}
	if units := s.Tick(t0.Add(time.Second)); len(units) != 0 {
		t.Errorf("tick emitted %v below minimum chunk size", texts(units))
	}
}
