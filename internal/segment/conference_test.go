package segment

import (
	"testing"
	"time"
)

func TestConference_FinalsOnly(t *testing.T) {
	s := newConference()
	if units := s.Consume(Event{Text: "the keynote will start in five minutes.", Now: t0}); len(units) != 0 {
		t.Fatalf("partial emitted %v", texts(units))
	}
	units := s.Consume(Event{Text: "the keynote will start in five minutes.", IsFinal: true, Now: t0})
	if len(units) != 1 {
		t.Fatalf("final emitted %d units, want 1", len(units))
	}
}

func TestConference_MinimumFiveWords(t *testing.T) {
	s := newConference()
	if units := s.Consume(Event{Text: "thank you very much.", IsFinal: true, Now: t0}); len(units) != 0 {
		t.Errorf("four-word sentence emitted: %v", texts(units))
	}
}

func TestConference_PrefixSuppressesRetranslation(t *testing.T) {
	s := newConference()
	first := "the committee has decided to postpone the vote."
	if n := len(s.Consume(Event{Text: first, IsFinal: true, Now: t0})); n != 1 {
		t.Fatalf("first sentence emitted %d units", n)
	}

	// Same 5-word prefix, barely longer: a re-translation, suppressed.
	retrans := "the committee has decided to postpone the votes!"
	if units := s.Consume(Event{Text: retrans, IsFinal: true, Now: t0.Add(time.Second)}); len(units) != 0 {
		t.Errorf("re-translation emitted %v", texts(units))
	}

	// Same prefix but grown well past 1.2x: genuinely new content.
	grown := "the committee has decided to postpone the vote until the next plenary session in october this year."
	units := s.Consume(Event{Text: grown, IsFinal: true, Now: t0.Add(2 * time.Second)})
	if len(units) != 1 {
		t.Errorf("grown sentence suppressed, emitted %v", texts(units))
	}
}

func TestConference_JaccardSuppressesParaphrase(t *testing.T) {
	s := newConference()
	s.Consume(Event{Text: "we will now move to the question and answer part.", IsFinal: true, Now: t0})
	// Near-identical token set, different leading words.
	units := s.Consume(Event{Text: "now we will move to the question and answer part.", IsFinal: true, Now: t0})
	if len(units) != 0 {
		t.Errorf("paraphrase emitted %v", texts(units))
	}
}

func TestConference_DistinctSentencesPass(t *testing.T) {
	s := newConference()
	s.Consume(Event{Text: "the morning session covered our hiring plans.", IsFinal: true, Now: t0})
	units := s.Consume(Event{Text: "lunch will be served in the main hall.", IsFinal: true, Now: t0})
	if len(units) != 1 {
		t.Errorf("distinct sentence suppressed, emitted %v", texts(units))
	}
}
