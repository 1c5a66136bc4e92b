package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

const (
	// defaultIdleFlush closes out the current phrase when no delta has
	// arrived for this long.
	defaultIdleFlush = 500 * time.Millisecond

	reconnectBase = 250 * time.Millisecond
	reconnectMax  = 4 * time.Second
)

// StreamWorker holds one persistent synthesis channel for a (session,
// language) pair. Text deltas go in through [StreamWorker.Send]; audio
// fragments come out through the emit callback with Streaming set.
//
// When the channel drops mid-session the worker reconnects with exponential
// backoff. When the provider reports [tts.ErrStreamingUnsupported] the
// worker's Run returns it so the caller can fall back to request mode.
type StreamWorker struct {
	session   string
	language  string
	voice     string
	provider  tts.Provider
	emit      EmitFunc
	idleFlush time.Duration

	deltas chan string
	seq    uint64
}

// NewStreamWorker creates a persistent-mode worker. Deltas sent before Run
// starts are buffered. A non-positive idleFlush selects the 500ms default.
func NewStreamWorker(session, language, voice string, provider tts.Provider,
	idleFlush time.Duration, emit EmitFunc) *StreamWorker {

	if idleFlush <= 0 {
		idleFlush = defaultIdleFlush
	}
	return &StreamWorker{
		session:   session,
		language:  language,
		voice:     voice,
		provider:  provider,
		emit:      emit,
		idleFlush: idleFlush,
		deltas:    make(chan string, 256),
	}
}

// Send forwards a text delta to the synthesis channel. It never blocks; a
// full buffer means the provider has stalled far beyond any useful latency,
// and the delta is reported lost.
func (sw *StreamWorker) Send(delta string) error {
	select {
	case sw.deltas <- delta:
		return nil
	default:
		return fmt.Errorf("dispatch: stream buffer full for %s/%s", sw.session, sw.language)
	}
}

// Run drives the persistent channel until ctx is cancelled. It returns
// [tts.ErrStreamingUnsupported] when the provider has no persistent mode, so
// the caller can switch the session to request-mode dispatch.
func (sw *StreamWorker) Run(ctx context.Context) error {
	backoff := reconnectBase
	for {
		err := sw.runOnce(ctx)
		switch {
		case err == nil:
			// Stream ended cleanly after a healthy run; reconnect
			// immediately with a fresh backoff.
			backoff = reconnectBase
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, tts.ErrStreamingUnsupported):
			return err
		default:
			slog.Warn("persistent synthesis channel dropped, reconnecting",
				"session", sw.session,
				"language", sw.language,
				"backoff", backoff,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// runOnce opens one stream and pumps it until it fails or ctx ends.
func (sw *StreamWorker) runOnce(ctx context.Context) error {
	stream, err := sw.provider.OpenStream(ctx, sw.language, sw.voice)
	if err != nil {
		return err
	}
	defer stream.Close()

	// Audio pump runs beside the delta loop; it ends when the stream
	// closes its audio channel.
	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		for fragment := range stream.Audio() {
			sw.seq++
			sw.emit(types.AudioChunk{
				Data:      fragment,
				Format:    sw.provider.Format(),
				Language:  sw.language,
				Sequence:  sw.seq,
				Streaming: true,
			})
		}
	}()

	idle := time.NewTimer(sw.idleFlush)
	defer idle.Stop()
	pendingFlush := false

	for {
		select {
		case <-ctx.Done():
			if pendingFlush {
				flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				stream.Flush(flushCtx)
				cancel()
			}
			stream.Close()
			<-audioDone
			return ctx.Err()

		case delta := <-sw.deltas:
			if err := stream.Send(ctx, delta); err != nil {
				return fmt.Errorf("send delta: %w", err)
			}
			pendingFlush = true
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(sw.idleFlush)

		case <-idle.C:
			if pendingFlush {
				if err := stream.Flush(ctx); err != nil {
					return fmt.Errorf("flush: %w", err)
				}
				pendingFlush = false
			}
			idle.Reset(sw.idleFlush)

		case <-audioDone:
			// Provider closed the audio side; treat as a drop.
			return errors.New("audio channel closed by provider")
		}
	}
}
