package segment

import (
	"strings"
	"testing"
	"time"
)

func TestNatural_InitialDelayGathersContext(t *testing.T) {
	s := newNatural()
	// Eight words arrive instantly: ideal size reached, but the initial
	// delay has not elapsed yet.
	units := s.Consume(Event{Text: "one two three four five six seven eight", Now: t0})
	if len(units) != 0 {
		t.Fatalf("emitted %v before initial delay", texts(units))
	}
	// Same buffer 200 ms later fires.
	units = s.Consume(Event{Text: "one two three four five six seven eight", Now: t0.Add(200 * time.Millisecond)})
	if len(units) != 1 {
		t.Fatalf("emitted %d units after delay, want 1", len(units))
	}
}

func TestNatural_PrefersPunctuationBoundary(t *testing.T) {
	s := newNatural()
	text := "we reviewed the agenda this morning, then we moved on to the budget and the open questions"
	s.Consume(Event{Text: text, Now: t0})
	units := s.Consume(Event{Text: text, Now: t0.Add(200 * time.Millisecond)})
	if len(units) == 0 {
		t.Fatal("no units emitted")
	}
	if !strings.HasSuffix(units[0].Text, "morning,") {
		t.Errorf("first chunk = %q, want break at the comma", units[0].Text)
	}
}

func TestNatural_PunctuationBoundaryAfterAccentedWord(t *testing.T) {
	s := newNatural()
	// The comma follows a word ending in a multi-byte rune; the boundary
	// must still score as punctuation.
	text := "they met at the little café, then walked along the river toward the old bridge"
	s.Consume(Event{Text: text, Now: t0})
	units := s.Consume(Event{Text: text, Now: t0.Add(200 * time.Millisecond)})
	if len(units) == 0 {
		t.Fatal("no units emitted")
	}
	if !strings.HasSuffix(units[0].Text, "café,") {
		t.Errorf("first chunk = %q, want break at the comma", units[0].Text)
	}
}

func TestBoundaryScore_MultibyteFinalRune(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		cut   int
		want  int
	}{
		{"ascii comma", strings.Fields("the agenda, and more"), 2, 50},
		{"accented word with comma", strings.Fields("the café, and more"), 2, 50},
		{"accented final rune no punctuation", strings.Fields("el café está cerca"), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boundaryScore(tt.words, tt.cut); got != tt.want {
				t.Errorf("boundaryScore(%q, %d) = %d, want %d", tt.words, tt.cut, got, tt.want)
			}
		})
	}
}

func TestNatural_QuiescentTick(t *testing.T) {
	s := newNatural()
	// Six words: above min, below ideal. Nothing on consume.
	if units := s.Consume(Event{Text: "the session resumes after the break", Now: t0}); len(units) != 0 {
		t.Fatalf("emitted %v on consume", texts(units))
	}
	// Too soon: stream might still be going.
	if units := s.Tick(t0.Add(20 * time.Millisecond)); len(units) != 0 {
		t.Fatalf("emitted %v before quiescent delay", texts(units))
	}
	units := s.Tick(t0.Add(300 * time.Millisecond))
	if len(units) != 1 || units[0].Text != "the session resumes after the break" {
		t.Fatalf("emitted %v, want the pending phrase", texts(units))
	}
}

func TestNatural_FinalFlushCoversEveryWord(t *testing.T) {
	s := newNatural()
	text := "first we cover the roadmap, then the budget review, and finally questions from the audience today"
	units := s.Consume(Event{Text: text, IsFinal: true, Now: t0.Add(time.Second)})
	if len(units) == 0 {
		t.Fatal("final flush emitted nothing")
	}
	joined := strings.Join(texts(units), " ")
	for _, w := range strings.Fields(text) {
		if !strings.Contains(joined, strings.Trim(w, ",.")) {
			t.Errorf("word %q missing from flushed units %v", w, texts(units))
		}
	}
	for _, u := range units {
		if !u.IsFinal {
			t.Errorf("flushed unit %q not marked final", u.Text)
		}
	}
}

func TestNatural_RevisionPullsCursorBack(t *testing.T) {
	s := newNatural()
	long := "one two three four five six seven eight nine ten"
	s.Consume(Event{Text: long, Now: t0})
	s.Consume(Event{Text: long, Now: t0.Add(200 * time.Millisecond)}) // emits a chunk
	// Recognizer revises to something shorter than the cursor.
	units := s.Consume(Event{Text: "one two", IsFinal: true, Now: t0.Add(400 * time.Millisecond)})
	if len(units) != 0 {
		t.Errorf("revision behind the cursor re-emitted: %v", texts(units))
	}
}
