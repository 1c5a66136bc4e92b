package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Conn is one edge connection (speaker or listener browser). The hub only
// needs a stable identity and a way to push envelopes; the websocket wrapper
// below is the production implementation, tests substitute a recorder.
type Conn interface {
	// ID returns the stable connection identifier.
	ID() string

	// Send marshals payload and writes an envelope. Writes on the same
	// connection are serialized.
	Send(ctx context.Context, event string, payload any) error

	// Close tears the connection down.
	Close(reason string) error
}

const writeTimeout = 10 * time.Second

// wsConn adapts a websocket connection to the Conn interface.
type wsConn struct {
	id string
	ws *websocket.Conn

	// writeMu serializes writes; dispatch workers, the relay coordinator
	// and the hub all push to the same listener.
	writeMu sync.Mutex
}

var _ Conn = (*wsConn)(nil)

// NewConn wraps an accepted websocket connection.
func NewConn(ws *websocket.Conn) Conn {
	return &wsConn{id: uuid.NewString(), ws: ws}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hub: marshal %s payload: %w", event, err)
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("hub: marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, raw)
}

func (c *wsConn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}

// read blocks for the next envelope from the client.
func (c *wsConn) read(ctx context.Context) (Envelope, error) {
	var env Envelope
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("hub: decode envelope: %w", err)
	}
	return env, nil
}
