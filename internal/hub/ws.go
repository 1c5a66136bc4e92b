package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// ServeWS upgrades an HTTP request to a websocket connection and runs its
// read loop until the client goes away. Mount it at /ws.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser speakers and listeners connect from arbitrary conference
		// pages; session codes are the access control.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", "error", err)
		return
	}

	conn := NewConn(ws)
	if h.opts.Snapshot != nil {
		h.opts.Snapshot.ConnOpened()
	}
	slog.Debug("connection opened", "conn", conn.ID(), "remote", r.RemoteAddr)

	defer func() {
		h.Disconnect(context.Background(), conn)
		if h.opts.Snapshot != nil {
			h.opts.Snapshot.ConnClosed()
		}
		conn.Close("bye")
		slog.Debug("connection closed", "conn", conn.ID())
	}()

	wc := conn.(*wsConn)
	for {
		env, err := wc.read(r.Context())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return
			}
			slog.Debug("read loop ended", "conn", conn.ID(), "error", err)
			return
		}
		h.dispatch(r.Context(), conn, env)
	}
}

// dispatch decodes one envelope and routes it. Malformed payloads are logged
// and dropped; the connection stays up.
func (h *Hub) dispatch(ctx context.Context, conn Conn, env Envelope) {
	switch env.Event {
	case EventSpeakerJoin:
		var p SpeakerJoin
		if decode(conn, env, &p) {
			h.SpeakerJoin(ctx, conn, p)
		}
	case EventTranscript:
		var p TranscriptEvent
		if decode(conn, env, &p) {
			h.Transcript(ctx, conn, p)
		}
	case EventListenerJoin:
		var p ListenerJoin
		if decode(conn, env, &p) {
			h.ListenerJoin(ctx, conn, p)
		}
	case EventChangeLanguage:
		var p ChangeLanguage
		if decode(conn, env, &p) {
			h.ChangeLanguage(ctx, conn, p)
		}
	case EventUpdateVoice:
		var p UpdateVoice
		if decode(conn, env, &p) {
			h.UpdateVoice(ctx, conn, p)
		}
	case EventListenerLeave:
		var p ListenerLeave
		if decode(conn, env, &p) {
			h.ListenerLeave(ctx, conn, p)
		}
	default:
		slog.Debug("unknown event ignored", "event", env.Event, "conn", conn.ID())
	}
}

func decode(conn Conn, env Envelope, into any) bool {
	if err := json.Unmarshal(env.Data, into); err != nil {
		slog.Debug("malformed payload dropped", "event", env.Event, "conn", conn.ID(), "error", err)
		return false
	}
	return true
}
