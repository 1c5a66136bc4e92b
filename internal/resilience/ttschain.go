package resilience

import (
	"context"
	"io"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

// TTSChain implements [tts.Provider] with automatic failover across multiple
// synthesis backends, each guarded by its own breaker.
type TTSChain struct {
	chain *Chain[tts.Provider]
}

var _ tts.Provider = (*TTSChain)(nil)

// NewTTSChain creates a [TTSChain] with primary as the preferred backend.
func NewTTSChain(name string, primary tts.Provider, cfg BreakerConfig) *TTSChain {
	return &TTSChain{chain: NewChain(name, primary, cfg)}
}

// Add registers an additional backend, tried after all earlier ones.
func (t *TTSChain) Add(name string, p tts.Provider) {
	t.chain.Add(name, p)
}

// Active returns the backend that served the most recent successful call.
func (t *TTSChain) Active() string {
	return t.chain.Active()
}

// Synthesize voices one utterance via the first healthy backend.
func (t *TTSChain) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	return TryResult(t.chain, func(_ string, p tts.Provider) (io.ReadCloser, error) {
		return p.Synthesize(ctx, req)
	})
}

// OpenStream opens a persistent synthesis channel on the first healthy
// backend that supports streaming. Only setup is covered by failover;
// mid-stream errors are the caller's to handle.
func (t *TTSChain) OpenStream(ctx context.Context, language, voice string) (tts.Stream, error) {
	return TryResult(t.chain, func(_ string, p tts.Provider) (tts.Stream, error) {
		return p.OpenStream(ctx, language, voice)
	})
}

// ListVoices returns the voices of the first healthy backend.
func (t *TTSChain) ListVoices(ctx context.Context) ([]types.Voice, error) {
	return TryResult(t.chain, func(_ string, p tts.Provider) ([]types.Voice, error) {
		return p.ListVoices(ctx)
	})
}

// Format reports the audio format of the currently active backend.
func (t *TTSChain) Format() string {
	name := t.chain.Active()
	for i := range t.chain.entries {
		if t.chain.entries[i].name == name {
			return t.chain.entries[i].value.Format()
		}
	}
	return ""
}
