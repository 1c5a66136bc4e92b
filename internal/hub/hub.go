// Package hub is the session registry and transport router of the relay.
//
// A session binds one speaker to any number of listeners under a 4-character
// code. The hub validates joins, routes transcript events into the pipeline
// via a [TranscriptHandler], fans translated text and synthesized audio back
// out to listeners by language, and reaps stale sessions.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/babelrelay/internal/observe"
	"github.com/MrWong99/babelrelay/pkg/types"
)

const codeLength = 4

// TranscriptHandler receives transcript events routed by the hub. The relay
// coordinator implements it.
type TranscriptHandler interface {
	// HandleTranscript processes one speech-recognition update for a session.
	// It must not block the hub's read loop for long; heavy work runs on the
	// handler's own goroutines.
	HandleTranscript(ctx context.Context, s *Session, t types.Transcript)

	// Teardown drops every pipeline owned by the session: segmentation
	// state, queued utterances, and persistent synthesis channels.
	Teardown(code string)
}

// Options tunes a Hub. Zero values select the defaults documented per field.
type Options struct {
	// Mode is reported to speakers in the joined acknowledgement, typically
	// the active segmentation policy.
	Mode string

	// SessionTTL is the age after which a session with no listeners is
	// reaped. Default: 30m.
	SessionTTL time.Duration

	// Metrics receives session and listener gauge updates. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Snapshot feeds the human-readable /api/metrics counters. Optional.
	Snapshot *observe.Snapshot
}

// Hub is the session registry. Safe for concurrent use.
type Hub struct {
	handler TranscriptHandler
	opts    Options
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	// membership maps a connection ID to the session it belongs to, so a
	// transport-level disconnect can be resolved without a code.
	membership map[string]member
}

type member struct {
	code    string
	speaker bool
}

// New creates a hub routing transcripts into handler.
func New(handler TranscriptHandler, opts Options) *Hub {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Hub{
		handler:    handler,
		opts:       opts,
		now:        time.Now,
		sessions:   make(map[string]*Session),
		membership: make(map[string]member),
	}
}

// normalizeCode uppercases code and reports whether it matches [A-Z0-9]{4}.
func normalizeCode(code string) (string, bool) {
	if len(code) != codeLength {
		return "", false
	}
	out := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return "", false
		}
		out[i] = c
	}
	return string(out), true
}

// SpeakerJoin creates a session for conn. Invalid codes are silently ignored.
// A live session under the same code is torn down first.
func (h *Hub) SpeakerJoin(ctx context.Context, conn Conn, p SpeakerJoin) {
	code, ok := normalizeCode(p.Code)
	if !ok {
		slog.Debug("speaker-join with invalid code ignored", "code", p.Code, "conn", conn.ID())
		return
	}

	h.mu.Lock()
	if prior, exists := h.sessions[code]; exists {
		h.teardownLocked(ctx, prior, "replaced by new speaker")
	}
	s := newSession(code, conn, p, h.now())
	h.sessions[code] = s
	h.membership[conn.ID()] = member{code: code, speaker: true}
	h.mu.Unlock()

	h.opts.Metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session started",
		"session", code,
		"source_lang", p.SourceLang,
		"target_langs", p.TargetLangs)

	conn.Send(ctx, EventJoined, Joined{OK: true, Code: code, Mode: h.opts.Mode})
	s.Broadcast(ctx, EventSessionStarted, SessionEvent{Code: code})
}

// Transcript routes a speech-recognition update into the pipeline.
func (h *Hub) Transcript(ctx context.Context, conn Conn, p TranscriptEvent) {
	code, ok := normalizeCode(p.Code)
	if !ok {
		return
	}
	h.mu.Lock()
	s, exists := h.sessions[code]
	h.mu.Unlock()
	if !exists || s.Speaker().ID() != conn.ID() {
		slog.Debug("transcript for unknown or foreign session dropped", "code", code, "conn", conn.ID())
		return
	}

	s.CountTranscript()
	t := types.Transcript{
		Text:         p.Text,
		IsFinal:      p.IsFinal,
		Timestamp:    h.now(),
		Offset:       time.Duration(p.Offset) * time.Millisecond,
		Duration:     time.Duration(p.Duration) * time.Millisecond,
		Translations: p.Translations,
	}
	if p.Timestamp > 0 {
		t.Timestamp = time.UnixMilli(p.Timestamp)
	}
	h.handler.HandleTranscript(ctx, s, t)
}

// ListenerJoin subscribes conn to a session, or answers session-not-found.
func (h *Hub) ListenerJoin(ctx context.Context, conn Conn, p ListenerJoin) {
	code, ok := normalizeCode(p.Code)
	if !ok {
		conn.Send(ctx, EventSessionNotFound, SessionEvent{Code: p.Code})
		return
	}
	h.mu.Lock()
	s, exists := h.sessions[code]
	if exists {
		h.membership[conn.ID()] = member{code: code}
	}
	h.mu.Unlock()
	if !exists {
		conn.Send(ctx, EventSessionNotFound, SessionEvent{Code: code})
		return
	}

	s.addListener(conn, p.Lang, p.Voice)
	h.opts.Metrics.ActiveListeners.Add(ctx, 1)
	slog.Info("listener joined", "session", code, "lang", p.Lang, "conn", conn.ID())

	conn.Send(ctx, EventJoined, Joined{
		OK:                 true,
		Code:               code,
		AvailableLanguages: s.EffectiveTargets(),
		SourceLang:         s.SourceLang,
	})
}

// ChangeLanguage switches a listener's subscription language.
func (h *Hub) ChangeLanguage(ctx context.Context, conn Conn, p ChangeLanguage) {
	if s := h.lookup(p.Code); s != nil && s.setLanguage(conn.ID(), p.Lang) {
		slog.Info("listener changed language", "session", s.Code, "lang", p.Lang, "conn", conn.ID())
		conn.Send(ctx, EventLanguageChanged, LanguageChanged{Code: s.Code, Lang: p.Lang})
	}
}

// UpdateVoice changes a listener's voice preference.
func (h *Hub) UpdateVoice(ctx context.Context, conn Conn, p UpdateVoice) {
	if s := h.lookup(p.Code); s != nil && s.setVoice(conn.ID(), p.Voice) {
		conn.Send(ctx, EventVoiceUpdated, VoiceUpdated{Code: s.Code, Voice: p.Voice})
	}
}

// ListenerLeave removes conn from the session it names.
func (h *Hub) ListenerLeave(ctx context.Context, conn Conn, p ListenerLeave) {
	s := h.lookup(p.Code)
	if s == nil {
		return
	}
	if s.removeListener(conn.ID()) {
		h.mu.Lock()
		delete(h.membership, conn.ID())
		h.mu.Unlock()
		h.opts.Metrics.ActiveListeners.Add(ctx, -1)
		slog.Info("listener left", "session", s.Code, "conn", conn.ID())
	}
}

// Disconnect handles a transport-level connection loss. A speaker disconnect
// tears the whole session down; a listener disconnect removes the listener.
func (h *Hub) Disconnect(ctx context.Context, conn Conn) {
	h.mu.Lock()
	m, known := h.membership[conn.ID()]
	if !known {
		h.mu.Unlock()
		return
	}
	delete(h.membership, conn.ID())
	s, exists := h.sessions[m.code]
	if !exists {
		h.mu.Unlock()
		return
	}
	if m.speaker && s.Speaker().ID() == conn.ID() {
		h.teardownLocked(ctx, s, "speaker disconnected")
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if s.removeListener(conn.ID()) {
		h.opts.Metrics.ActiveListeners.Add(ctx, -1)
		slog.Info("listener disconnected", "session", s.Code, "conn", conn.ID())
	}
}

// lookup resolves a code to its live session, nil when absent.
func (h *Hub) lookup(code string) *Session {
	norm, ok := normalizeCode(code)
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[norm]
}

// Session returns the live session for code, nil when absent.
func (h *Hub) Session(code string) *Session {
	return h.lookup(code)
}

// teardownLocked ends a session: members are notified, pipelines dropped,
// and the registry entry deleted. Callers hold h.mu.
func (h *Hub) teardownLocked(ctx context.Context, s *Session, reason string) {
	delete(h.sessions, s.Code)
	for id := range h.membership {
		if h.membership[id].code == s.Code {
			delete(h.membership, id)
		}
	}

	listeners := s.ListenerCount()
	slog.Info("session ended",
		"session", s.Code,
		"reason", reason,
		"listeners", listeners,
		"transcripts", s.transcripts.Load(),
		"utterances", s.utterances.Load(),
		"age", h.now().Sub(s.CreatedAt).Round(time.Second))

	s.Broadcast(ctx, EventSpeakerDisconnected, SessionEvent{Code: s.Code})
	h.handler.Teardown(s.Code)

	h.opts.Metrics.ActiveSessions.Add(ctx, -1)
	if listeners > 0 {
		h.opts.Metrics.ActiveListeners.Add(ctx, int64(-listeners))
	}
}

// Reap deletes sessions that have no listeners and are at least SessionTTL
// old. Returns the number of sessions reaped.
func (h *Hub) Reap(ctx context.Context) int {
	cutoff := h.now().Add(-h.opts.SessionTTL)

	h.mu.Lock()
	var stale []*Session
	for _, s := range h.sessions {
		if s.ListenerCount() == 0 && s.CreatedAt.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		h.teardownLocked(ctx, s, "stale")
	}
	h.mu.Unlock()
	return len(stale)
}

// StartReaper runs Reap periodically until ctx is cancelled.
func (h *Hub) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Reap(ctx); n > 0 {
				slog.Info("reaped stale sessions", "count", n)
			}
		}
	}
}
