package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/babelrelay/pkg/types"
)

// fakeConn records every envelope pushed to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	events []sentEvent
	closed bool
}

type sentEvent struct {
	event   string
	payload any
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{event: event, payload: payload})
	return nil
}

func (c *fakeConn) Close(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// received returns the payloads of all events with the given name.
func (c *fakeConn) received(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

// fakeHandler records routed transcripts and teardowns.
type fakeHandler struct {
	mu          sync.Mutex
	transcripts []types.Transcript
	sessions    []string
	teardowns   []string
}

func (f *fakeHandler) HandleTranscript(_ context.Context, s *Session, t types.Transcript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, t)
	f.sessions = append(f.sessions, s.Code)
}

func (f *fakeHandler) Teardown(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns = append(f.teardowns, code)
}

func (f *fakeHandler) teardownsSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.teardowns...)
}

func newTestHub(handler TranscriptHandler) (*Hub, *time.Time) {
	h := New(handler, Options{Mode: "hybrid"})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	return h, &now
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"AB12", "AB12", true},
		{"ab12", "AB12", true},
		{"zZ09", "ZZ09", true},
		{"ABC", "", false},
		{"ABCDE", "", false},
		{"AB 1", "", false},
		{"AB-1", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := normalizeCode(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("normalizeCode(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestSpeakerJoin_CreatesSession(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{
		Code: "ab12", SourceLang: "en", TargetLangs: []string{"es", "fr"},
	})

	s := h.Session("AB12")
	if s == nil {
		t.Fatal("session AB12 not created")
	}
	if s.SourceLang != "en" {
		t.Errorf("source lang = %q", s.SourceLang)
	}

	joined := speaker.received(EventJoined)
	if len(joined) != 1 {
		t.Fatalf("joined events = %d, want 1", len(joined))
	}
	j := joined[0].(Joined)
	if !j.OK || j.Code != "AB12" || j.Mode != "hybrid" {
		t.Errorf("joined = %+v", j)
	}
	if len(speaker.received(EventSessionStarted)) != 1 {
		t.Error("session-started not sent")
	}
}

func TestSpeakerJoin_InvalidCodeIgnored(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")

	for _, code := range []string{"TOOLONG", "AB", "AB!?", ""} {
		h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: code, SourceLang: "en"})
	}

	if len(speaker.events) != 0 {
		t.Errorf("events sent for invalid codes: %+v", speaker.events)
	}
}

func TestSpeakerJoin_ReplacesLiveSession(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	first := newFakeConn("spk-1")
	second := newFakeConn("spk-2")

	h.SpeakerJoin(context.Background(), first, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.SpeakerJoin(context.Background(), second, SpeakerJoin{Code: "ab12", SourceLang: "de"})

	s := h.Session("AB12")
	if s == nil || s.Speaker().ID() != "spk-2" {
		t.Fatal("second speaker did not take over the code")
	}
	if got := handler.teardownsSeen(); len(got) != 1 || got[0] != "AB12" {
		t.Errorf("teardowns = %v, want [AB12]", got)
	}
	if len(first.received(EventSpeakerDisconnected)) != 1 {
		t.Error("prior speaker not notified of teardown")
	}

	// The replaced speaker's disconnect must not kill the new session.
	h.Disconnect(context.Background(), first)
	if h.Session("AB12") == nil {
		t.Error("stale speaker disconnect tore down the new session")
	}
}

func TestListenerJoin_UnknownCode(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	listener := newFakeConn("lst-1")

	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "XX00", Lang: "es"})

	if len(listener.received(EventSessionNotFound)) != 1 {
		t.Error("session-not-found not sent")
	}
	if len(listener.received(EventJoined)) != 0 {
		t.Error("joined sent for unknown code")
	}
}

func TestListenerJoin_AddsListener(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "ab12", Lang: "es", Voice: "es-f1"})

	s := h.Session("AB12")
	if s.ListenerCount() != 1 {
		t.Fatalf("listener count = %d", s.ListenerCount())
	}
	joined := listener.received(EventJoined)
	if len(joined) != 1 {
		t.Fatalf("joined events = %d", len(joined))
	}
	j := joined[0].(Joined)
	if !j.OK || j.SourceLang != "en" {
		t.Errorf("joined = %+v", j)
	}
}

func TestEffectiveTargets_UnionOfListeners(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})

	for i, lang := range []string{"es", "fr", "es"} {
		c := newFakeConn(fmt.Sprintf("lst-%d", i))
		h.ListenerJoin(context.Background(), c, ListenerJoin{Code: "AB12", Lang: lang})
	}

	got := h.Session("AB12").EffectiveTargets()
	if len(got) != 2 || got[0] != "es" || got[1] != "fr" {
		t.Errorf("effective targets = %v, want [es fr]", got)
	}
}

func TestEffectiveTargets_DeclaredWins(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{
		Code: "AB12", SourceLang: "en", TargetLangs: []string{"ja"},
	})
	c := newFakeConn("lst-1")
	h.ListenerJoin(context.Background(), c, ListenerJoin{Code: "AB12", Lang: "es"})

	got := h.Session("AB12").EffectiveTargets()
	if len(got) != 1 || got[0] != "ja" {
		t.Errorf("effective targets = %v, want [ja]", got)
	}
}

func TestChangeLanguage_RedirectsDelivery(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	stays := newFakeConn("lst-fr")
	switches := newFakeConn("lst-switch")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "TEST", SourceLang: "en"})
	h.ListenerJoin(context.Background(), stays, ListenerJoin{Code: "TEST", Lang: "fr"})
	h.ListenerJoin(context.Background(), switches, ListenerJoin{Code: "TEST", Lang: "fr"})

	h.ChangeLanguage(context.Background(), switches, ChangeLanguage{Code: "TEST", Lang: "es"})
	if len(switches.received(EventLanguageChanged)) != 1 {
		t.Fatal("language-changed not acknowledged")
	}

	s := h.Session("TEST")
	s.SendToLanguage(context.Background(), "fr", EventTranslationUpdate, TranslationUpdate{Text: "bonjour", Language: "fr"})
	s.SendToLanguage(context.Background(), "es", EventTranslationUpdate, TranslationUpdate{Text: "hola", Language: "es"})

	if got := stays.received(EventTranslationUpdate); len(got) != 1 || got[0].(TranslationUpdate).Language != "fr" {
		t.Errorf("fr listener got %+v", got)
	}
	if got := switches.received(EventTranslationUpdate); len(got) != 1 || got[0].(TranslationUpdate).Language != "es" {
		t.Errorf("switched listener got %+v", got)
	}
}

func TestUpdateVoice(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "AB12", Lang: "es"})
	h.UpdateVoice(context.Background(), listener, UpdateVoice{Code: "AB12", Voice: "es-m2"})

	if len(listener.received(EventVoiceUpdated)) != 1 {
		t.Error("voice-updated not acknowledged")
	}
	prefs := h.Session("AB12").VoicePreferences("es")
	if len(prefs) != 1 || prefs[0] != "es-m2" {
		t.Errorf("voice preferences = %v", prefs)
	}
}

func TestTranscript_RoutesToHandler(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.Transcript(context.Background(), speaker, TranscriptEvent{
		Code: "AB12", Text: "Hello everyone.", IsFinal: true,
		Translations: map[string]string{"es": "Hola a todos."},
	})

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.transcripts) != 1 {
		t.Fatalf("transcripts routed = %d, want 1", len(handler.transcripts))
	}
	tr := handler.transcripts[0]
	if tr.Text != "Hello everyone." || !tr.IsFinal {
		t.Errorf("transcript = %+v", tr)
	}
	if tr.Translations["es"] != "Hola a todos." {
		t.Errorf("translations not forwarded: %v", tr.Translations)
	}
	if handler.sessions[0] != "AB12" {
		t.Errorf("session = %q", handler.sessions[0])
	}
}

func TestTranscript_NonSpeakerDropped(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "AB12", Lang: "es"})
	h.Transcript(context.Background(), listener, TranscriptEvent{Code: "AB12", Text: "spoofed"})

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.transcripts) != 0 {
		t.Errorf("transcript from non-speaker was routed: %+v", handler.transcripts)
	}
}

func TestSpeakerDisconnect_TearsDownSession(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "AB12", Lang: "es"})

	h.Disconnect(context.Background(), speaker)

	if h.Session("AB12") != nil {
		t.Error("session survived speaker disconnect")
	}
	if got := handler.teardownsSeen(); len(got) != 1 || got[0] != "AB12" {
		t.Errorf("teardowns = %v, want [AB12]", got)
	}
	if len(listener.received(EventSpeakerDisconnected)) != 1 {
		t.Error("listener not told about the speaker disconnect")
	}
}

func TestListenerDisconnect_RemovesOnlyListener(t *testing.T) {
	handler := &fakeHandler{}
	h, _ := newTestHub(handler)
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "AB12", Lang: "es"})

	h.Disconnect(context.Background(), listener)

	s := h.Session("AB12")
	if s == nil {
		t.Fatal("session torn down by a listener disconnect")
	}
	if s.ListenerCount() != 0 {
		t.Errorf("listener count = %d, want 0", s.ListenerCount())
	}
	if got := handler.teardownsSeen(); len(got) != 0 {
		t.Errorf("unexpected teardowns: %v", got)
	}
}

func TestListenerLeave(t *testing.T) {
	h, _ := newTestHub(&fakeHandler{})
	speaker := newFakeConn("spk-1")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), speaker, SpeakerJoin{Code: "AB12", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "AB12", Lang: "es"})
	h.ListenerLeave(context.Background(), listener, ListenerLeave{Code: "AB12"})

	if n := h.Session("AB12").ListenerCount(); n != 0 {
		t.Errorf("listener count = %d, want 0", n)
	}
}

func TestReap_StaleSessionsOnly(t *testing.T) {
	handler := &fakeHandler{}
	h, now := newTestHub(handler)
	stale := newFakeConn("spk-stale")
	active := newFakeConn("spk-active")
	listener := newFakeConn("lst-1")

	h.SpeakerJoin(context.Background(), stale, SpeakerJoin{Code: "OLD1", SourceLang: "en"})
	h.SpeakerJoin(context.Background(), active, SpeakerJoin{Code: "NEW1", SourceLang: "en"})
	h.ListenerJoin(context.Background(), listener, ListenerJoin{Code: "NEW1", Lang: "es"})

	*now = now.Add(31 * time.Minute)
	if n := h.Reap(context.Background()); n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	if h.Session("OLD1") != nil {
		t.Error("stale session survived the reaper")
	}
	if h.Session("NEW1") == nil {
		t.Error("session with listeners was reaped")
	}
	if got := handler.teardownsSeen(); len(got) != 1 || got[0] != "OLD1" {
		t.Errorf("teardowns = %v, want [OLD1]", got)
	}
}
