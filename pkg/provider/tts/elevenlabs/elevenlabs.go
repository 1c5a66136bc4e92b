// Package elevenlabs provides an ElevenLabs-backed TTS provider. Request-mode
// synthesis uses the HTTP streaming endpoint; persistent-mode synthesis uses
// the stream-input WebSocket API. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

const (
	synthesizeEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s/stream?output_format=%s"
	wsEndpointFmt         = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint        = "https://api.elevenlabs.io/v1/voices"
	defaultModel          = "eleven_flash_v2_5"
	defaultOutputFmt      = "mp3_44100_128"
	defaultVoiceID        = "21m00Tcm4TlvDq8ikWAM"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128", "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithDefaultVoice sets the voice ID used when a request carries none.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		defaultVoice: defaultVoiceID,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() string {
	return formatHint(p.outputFormat)
}

// formatHint maps the ElevenLabs output_format value to the container hint
// listeners receive ("mp3_44100_128" → "mp3", "pcm_16000" → "pcm_16000").
func formatHint(outputFormat string) string {
	if len(outputFormat) >= 3 && outputFormat[:3] == "mp3" {
		return "mp3"
	}
	return outputFormat
}

// ---- request mode ----

// synthesizeBody is the JSON payload for the HTTP streaming endpoint.
type synthesizeBody struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object. Speed is the
// native playback-rate control (1.0 = normal).
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Provider using the HTTP streaming endpoint.
// The returned reader yields encoded audio as ElevenLabs produces it.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	if req.Text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	voice := req.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	body := synthesizeBody{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	if req.Rate > 1.0 {
		body.VoiceSettings.Speed = req.Rate
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	url := fmt.Sprintf(synthesizeEndpointFmt, voice, p.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: synthesize: status %d: %s", resp.StatusCode, msg)
	}
	return resp.Body, nil
}

// ---- persistent mode ----

// textMessage is the JSON payload sent for each text fragment over the
// stream-input WebSocket.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
}

// audioResponse is a message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// stream implements tts.Stream over the ElevenLabs stream-input WebSocket.
type stream struct {
	conn    *websocket.Conn
	audioCh chan []byte

	mu     sync.Mutex
	closed bool

	readDone chan struct{}
	cancel   context.CancelFunc
}

// Compile-time interface assertion.
var _ tts.Stream = (*stream)(nil)

// OpenStream implements tts.Provider. It dials the stream-input WebSocket,
// performs the BOI handshake, and starts the audio read loop.
func (p *Provider) OpenStream(ctx context.Context, _ string, voice string) (tts.Stream, error) {
	if voice == "" {
		voice = p.defaultVoice
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// Send the initial BOI message to authenticate and configure the stream.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey: p.apiKey,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &stream{
		conn:     conn,
		audioCh:  make(chan []byte, 256),
		readDone: make(chan struct{}),
		cancel:   cancel,
	}
	go s.readLoop(readCtx)
	return s, nil
}

// readLoop decodes audio messages until the connection drops or the stream
// is closed.
func (s *stream) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.audioCh)
	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(resp.Audio)
		if err != nil {
			continue
		}
		select {
		case s.audioCh <- audio:
		case <-ctx.Done():
			return
		}
	}
}

// Send implements tts.Stream.
func (s *stream) Send(ctx context.Context, textDelta string) error {
	if textDelta == "" {
		return nil
	}
	payload, _ := json.Marshal(textMessage{Text: textDelta})
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("elevenlabs: send text: %w", err)
	}
	return nil
}

// Flush implements tts.Stream. ElevenLabs finalises buffered text when the
// flush flag is set.
func (s *stream) Flush(ctx context.Context) error {
	payload, _ := json.Marshal(textMessage{Text: " ", Flush: true})
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("elevenlabs: flush: %w", err)
	}
	return nil
}

// Audio implements tts.Stream.
func (s *stream) Audio() <-chan []byte {
	return s.audioCh
}

// Close implements tts.Stream. It sends the end-of-stream marker, waits
// briefly for the reader to drain remaining audio, then closes the socket.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Empty text is the ElevenLabs end-of-stream marker.
	eos, _ := json.Marshal(textMessage{Text: ""})
	_ = s.conn.Write(ctx, websocket.MessageText, eos)

	select {
	case <-s.readDone:
	case <-ctx.Done():
	}
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "done")
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]types.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return convertVoices(vr), nil
}

// convertVoices maps the ElevenLabs voice catalogue to the shared Voice type.
func convertVoices(vr voicesResponse) []types.Voice {
	voices := make([]types.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		voices = append(voices, types.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels["language"],
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return voices
}
