// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio to the dispatcher and to verify which
// texts, voices, and rates reach the TTS backend.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte("fake-mp3")}
//	rc, _ := p.Synthesize(ctx, tts.Request{Text: "Hola.", Language: "es"})
package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Req is the request passed to Synthesize.
	Req tts.Request
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is the payload returned by every Synthesize call.
	Audio []byte

	// Err, if non-nil, is returned from Synthesize.
	Err error

	// FailFirst makes the first n Synthesize calls fail with Err (or a
	// generic error), after which calls succeed. Useful for fallback tests.
	FailFirst int

	// Delay, if non-nil, runs before each Synthesize call returns. Use it to
	// simulate a slow backend or block until a test releases it.
	Delay func(ctx context.Context) error

	// StreamImpl, if non-nil, is returned from OpenStream. When nil,
	// OpenStream reports tts.ErrStreamingUnsupported.
	StreamImpl tts.Stream

	// Voices is returned by ListVoices.
	Voices []types.Voice

	// OutputFormat is returned by Format. Defaults to "mp3".
	OutputFormat string

	// --- Call records (read after test) ---

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall

	failed int
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Req: req})
	delay := p.Delay
	err := p.Err
	audio := p.Audio
	mustFail := p.failed < p.FailFirst
	if mustFail {
		p.failed++
	}
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return nil, derr
		}
	}
	if mustFail {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if err != nil && p.FailFirst == 0 {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

// OpenStream implements tts.Provider.
func (p *Provider) OpenStream(context.Context, string, string) (tts.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StreamImpl == nil {
		return nil, tts.ErrStreamingUnsupported
	}
	return p.StreamImpl, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(context.Context) ([]types.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() string {
	if p.OutputFormat == "" {
		return "mp3"
	}
	return p.OutputFormat
}

// SynthesizeCalls returns a copy of the recorded Synthesize invocations.
func (p *Provider) SynthesizeCalls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.Calls))
	copy(out, p.Calls)
	return out
}

// Stream is a scripted tts.Stream for dispatcher tests. Sent deltas are
// recorded; audio written to Emit appears on the Audio channel.
type Stream struct {
	mu      sync.Mutex
	sent    []string
	flushes int
	closed  bool

	audioCh chan []byte

	// SendErr, if non-nil, is returned from Send.
	SendErr error
}

// Compile-time interface assertion.
var _ tts.Stream = (*Stream)(nil)

// NewStream creates a scripted stream with a buffered audio channel.
func NewStream() *Stream {
	return &Stream{audioCh: make(chan []byte, 64)}
}

// Send implements tts.Stream.
func (s *Stream) Send(_ context.Context, textDelta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.sent = append(s.sent, textDelta)
	return nil
}

// Flush implements tts.Stream.
func (s *Stream) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// Audio implements tts.Stream.
func (s *Stream) Audio() <-chan []byte {
	return s.audioCh
}

// Close implements tts.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.audioCh)
	}
	return nil
}

// Emit places an audio fragment on the Audio channel.
func (s *Stream) Emit(audio []byte) {
	s.audioCh <- audio
}

// Sent returns a copy of all deltas passed to Send.
func (s *Stream) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

// Flushes returns how many times Flush was called.
func (s *Stream) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
