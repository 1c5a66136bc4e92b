package hub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Listener is one audience member of a session.
type Listener struct {
	Conn Conn

	// Language is the listener's current subscription language.
	Language string

	// Voice is the listener's voice preference, empty for the default.
	Voice string
}

// Session binds one speaker to its listeners under a 4-character code.
// Pipeline state for the session lives in the relay coordinator; the session
// only tracks membership and routing.
type Session struct {
	// Code is the uppercase 4-character session code.
	Code string

	// SourceLang is the speaker's declared language.
	SourceLang string

	// SourceHint optionally narrows recognition (e.g., a dialect tag).
	SourceHint string

	// CreatedAt is when the speaker joined.
	CreatedAt time.Time

	speaker Conn

	mu          sync.RWMutex
	targetLangs []string
	listeners   map[string]*Listener

	// transcripts and utterances are per-session counters reported at
	// teardown.
	transcripts atomic.Int64
	utterances  atomic.Int64
}

func newSession(code string, speaker Conn, p SpeakerJoin, now time.Time) *Session {
	return &Session{
		Code:        code,
		SourceLang:  p.SourceLang,
		SourceHint:  p.SourceHint,
		CreatedAt:   now,
		speaker:     speaker,
		targetLangs: append([]string(nil), p.TargetLangs...),
		listeners:   make(map[string]*Listener),
	}
}

// Speaker returns the speaker connection.
func (s *Session) Speaker() Conn {
	return s.speaker
}

// CountTranscript bumps the per-session transcript counter.
func (s *Session) CountTranscript() { s.transcripts.Add(1) }

// CountUtterance bumps the per-session synthesis counter.
func (s *Session) CountUtterance() { s.utterances.Add(1) }

func (s *Session) addListener(conn Conn, lang, voice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[conn.ID()] = &Listener{Conn: conn, Language: lang, Voice: voice}
}

// removeListener drops the listener with the given connection ID and reports
// whether it was a member.
func (s *Session) removeListener(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners[connID]; !ok {
		return false
	}
	delete(s.listeners, connID)
	return true
}

func (s *Session) setLanguage(connID, lang string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listeners[connID]
	if !ok {
		return false
	}
	l.Language = lang
	return true
}

func (s *Session) setVoice(connID, voice string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listeners[connID]
	if !ok {
		return false
	}
	l.Voice = voice
	return true
}

// ListenerCount reports the current audience size.
func (s *Session) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// EffectiveTargets returns the languages to translate into: the speaker's
// declared target list when non-empty, otherwise the distinct union of the
// current listener languages. The result is sorted for stable fan-out order.
func (s *Session) EffectiveTargets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.targetLangs) > 0 {
		return append([]string(nil), s.targetLangs...)
	}
	set := make(map[string]struct{}, len(s.listeners))
	for _, l := range s.listeners {
		if l.Language != "" {
			set[l.Language] = struct{}{}
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// VoicePreferences returns the voice preferences of all listeners currently
// on the given language, in no particular order.
func (s *Session) VoicePreferences(lang string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var prefs []string
	for _, l := range s.listeners {
		if l.Language == lang {
			prefs = append(prefs, l.Voice)
		}
	}
	return prefs
}

// Broadcast sends an event to the speaker and every listener. Per-connection
// send failures are logged and skipped; one dead listener must not stall the
// rest of the room.
func (s *Session) Broadcast(ctx context.Context, event string, payload any) {
	s.mu.RLock()
	conns := make([]Conn, 0, len(s.listeners)+1)
	if s.speaker != nil {
		conns = append(conns, s.speaker)
	}
	for _, l := range s.listeners {
		conns = append(conns, l.Conn)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(ctx, event, payload); err != nil {
			slog.Debug("broadcast send failed", "session", s.Code, "conn", c.ID(), "event", event, "error", err)
		}
	}
}

// SendToLanguage delivers an event only to listeners currently subscribed to
// lang.
func (s *Session) SendToLanguage(ctx context.Context, lang, event string, payload any) {
	s.mu.RLock()
	conns := make([]Conn, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.Language == lang {
			conns = append(conns, l.Conn)
		}
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(ctx, event, payload); err != nil {
			slog.Debug("language send failed", "session", s.Code, "conn", c.ID(), "event", event, "error", err)
		}
	}
}
