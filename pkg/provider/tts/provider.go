// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a
// local Coqui server) and presents two synthesis modes:
//
//   - Request mode: one text in, one finite audio stream out. Used by the
//     queue-based dispatcher, which needs strict per-utterance ordering and
//     per-utterance playback-rate control.
//
//   - Persistent mode: a long-lived bidirectional channel that accepts text
//     deltas continuously and emits audio fragments continuously. Used by the
//     continuous-streaming segmentation policy, which leaves all prosody to
//     the provider.
//
// Implementations must be safe for concurrent use; multiple sessions and
// languages synthesize in parallel.
package tts

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/babelrelay/pkg/types"
)

// ErrStreamingUnsupported is returned by [Provider.OpenStream] when the
// backend has no persistent synthesis channel. The dispatcher falls back to
// request mode.
var ErrStreamingUnsupported = errors.New("tts: persistent streaming not supported by this provider")

// Request describes one request-mode synthesis call.
type Request struct {
	// Text is the utterance to synthesize.
	Text string

	// Language is the BCP-47 target language code.
	Language string

	// Voice is the provider-specific voice identifier. Empty selects the
	// provider's default for Language.
	Voice string

	// Rate is the playback-rate multiplier in [1.0, ~1.5]. Zero means 1.0.
	// Providers map it to their native speed control.
	Rate float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize performs one request-mode synthesis and returns the encoded
	// audio as a stream. The caller must close the returned reader. The audio
	// container/codec is reported by Format.
	Synthesize(ctx context.Context, req Request) (io.ReadCloser, error)

	// OpenStream opens a persistent bidirectional synthesis channel for the
	// given language and voice. Returns [ErrStreamingUnsupported] when the
	// backend only does request mode.
	OpenStream(ctx context.Context, language, voice string) (Stream, error)

	// ListVoices returns all voices available from this provider.
	ListVoices(ctx context.Context) ([]types.Voice, error)

	// Format returns the audio container/codec hint for this provider's
	// output (e.g., "mp3", "pcm_16000").
	Format() string
}

// Stream is a persistent bidirectional synthesis channel.
//
// Send blocks when the provider applies back-pressure; the caller must not
// drop text to compensate. Audio fragments arrive on Audio in synthesis
// order. The channel is closed when the stream ends or fails.
type Stream interface {
	// Send forwards a text delta to the provider.
	Send(ctx context.Context, textDelta string) error

	// Flush asks the provider to finish synthesizing buffered text now,
	// closing out the current phrase.
	Flush(ctx context.Context) error

	// Audio returns the channel emitting encoded audio fragments.
	Audio() <-chan []byte

	// Close tears the channel down and releases the connection.
	Close() error
}
