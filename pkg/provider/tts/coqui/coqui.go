// Package coqui provides a local Coqui XTTS v2-backed TTS provider via its
// REST API. It implements the tts.Provider interface in request mode only —
// the XTTS server operates in batch mode (one HTTP call per utterance), so
// OpenStream reports tts.ErrStreamingUnsupported and the dispatcher keeps
// using the queue.
//
// A self-hosted Coqui server trades latency for independence from external
// quota and network weather, which is why it serves as the stable secondary
// in the provider fallback pair.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:8002",
//	    coqui.WithTimeout(15*time.Second),
//	    coqui.WithSpeaker("Claribel Dervla"),
//	)
//	audio, err := p.Synthesize(ctx, tts.Request{Text: "Hola a todos.", Language: "es"})
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

const (
	defaultTimeout         = 30 * time.Second
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithSpeaker sets the studio speaker used when a request carries no voice.
func WithSpeaker(speaker string) Option {
	return func(p *Provider) {
		p.defaultSpeaker = speaker
	}
}

// Provider implements tts.Provider backed by a Coqui XTTS v2 server.
type Provider struct {
	baseURL        string
	defaultSpeaker string
	httpClient     *http.Client
}

// New creates a Provider targeting the XTTS server at baseURL
// (e.g., "http://localhost:8002").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:        strings.TrimRight(baseURL, "/"),
		defaultSpeaker: "Claribel Dervla",
		httpClient:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Format implements tts.Provider. The XTTS server returns WAV audio.
func (p *Provider) Format() string {
	return "wav"
}

// ttsRequest is the JSON body for POST /tts_to_audio/.
type ttsRequest struct {
	Text      string  `json:"text"`
	SpeakerID string  `json:"speaker_wav"`
	Language  string  `json:"language"`
	Speed     float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Provider via POST /tts_to_audio/.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	if req.Text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}

	speaker := req.Voice
	if speaker == "" {
		speaker = p.defaultSpeaker
	}
	lang := primarySubtag(req.Language)
	if lang == "" {
		lang = "en"
	}

	body := ttsRequest{
		Text:      req.Text,
		SpeakerID: speaker,
		Language:  lang,
	}
	if req.Rate > 1.0 {
		body.Speed = req.Rate
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ttsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coqui: synthesize: status %d: %s", resp.StatusCode, msg)
	}
	return resp.Body, nil
}

// OpenStream implements tts.Provider. The XTTS server has no persistent
// synthesis channel.
func (p *Provider) OpenStream(_ context.Context, _, _ string) (tts.Stream, error) {
	return nil, tts.ErrStreamingUnsupported
}

// ListVoices implements tts.Provider via GET /studio_speakers.
func (p *Provider) ListVoices(ctx context.Context) ([]types.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+studioSpeakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: list voices: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: list voices: unexpected status %d", resp.StatusCode)
	}

	// The endpoint returns a map keyed by speaker name; the values hold
	// embedding data we don't need.
	var speakers map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("coqui: list voices decode: %w", err)
	}

	names := make([]string, 0, len(speakers))
	for name := range speakers {
		names = append(names, name)
	}
	sort.Strings(names)

	voices := make([]types.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, types.Voice{
			ID:       name,
			Name:     name,
			Provider: "coqui",
		})
	}
	return voices, nil
}

// primarySubtag reduces a BCP-47 code to its primary subtag ("pt-BR" → "pt"),
// which is what the XTTS server expects.
func primarySubtag(language string) string {
	if i := strings.IndexByte(language, '-'); i > 0 {
		return language[:i]
	}
	return language
}
