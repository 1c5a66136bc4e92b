// Package openai provides a translation provider backed by the OpenAI
// chat-completions API. The model is prompted to return a strict JSON object
// keyed by target language code, which keeps one API round-trip per
// transcript fragment regardless of how many targets are requested.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/babelrelay/pkg/provider/translate"
)

const defaultModel = "gpt-4o-mini"

// Provider implements translate.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI translation Provider. An empty model selects
// gpt-4o-mini.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" || len(targets) == 0 {
		return map[string]string{}, nil
	}

	resp, err := p.complete(ctx, translateSystemPrompt(source, targets), text)
	if err != nil {
		return nil, fmt.Errorf("openai: translate: %w", err)
	}

	out, err := parseTranslationObject(resp, targets)
	if err != nil {
		return nil, fmt.Errorf("openai: translate: %w", err)
	}
	return out, nil
}

// TranslateBatch implements translate.Provider. Texts are joined into a
// single prompt as a JSON array and translated in one round-trip.
func (p *Provider) TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("openai: batch encode: %w", err)
	}

	resp, err := p.complete(ctx, batchSystemPrompt(source, targets), string(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: batch translate: %w", err)
	}

	out, err := parseBatchResponse(resp, len(texts), targets)
	if err != nil {
		return nil, fmt.Errorf("openai: batch translate: %w", err)
	}
	return out, nil
}

// DetectLanguage implements translate.Provider.
func (p *Provider) DetectLanguage(ctx context.Context, text string) (string, error) {
	resp, err := p.complete(ctx, detectSystemPrompt, text)
	if err != nil {
		return "", fmt.Errorf("openai: detect language: %w", err)
	}
	code := strings.ToLower(strings.TrimSpace(resp))
	if code == "" || len(code) > 8 {
		return "", fmt.Errorf("openai: detect language: unexpected response %q", resp)
	}
	return code, nil
}

// complete performs one chat completion and returns the assistant content.
func (p *Provider) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userText),
		},
		Temperature: param.NewOpt(0.0),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ---- prompt construction & response parsing ----

const detectSystemPrompt = "Identify the language of the user's text. " +
	"Respond with only the BCP-47 language code (e.g., \"en\", \"pt-BR\"), nothing else."

// translateSystemPrompt builds the instruction for a single-text translation.
func translateSystemPrompt(source string, targets []string) string {
	var b strings.Builder
	b.WriteString("You are a professional simultaneous interpreter. Translate the user's text")
	if source != "" {
		fmt.Fprintf(&b, " from %q", source)
	}
	fmt.Fprintf(&b, " into the following languages: %s.", strings.Join(targets, ", "))
	b.WriteString(" The text may be an unfinished fragment of live speech; translate it as-is without completing it.")
	b.WriteString(" Respond with only a JSON object mapping each language code to the translation, no markdown fences.")
	return b.String()
}

// batchSystemPrompt builds the instruction for a batch translation. The user
// message is a JSON array of texts; the response must be an index-aligned
// JSON array of objects.
func batchSystemPrompt(source string, targets []string) string {
	var b strings.Builder
	b.WriteString("You are a professional translator. The user's message is a JSON array of texts. Translate each text")
	if source != "" {
		fmt.Fprintf(&b, " from %q", source)
	}
	fmt.Fprintf(&b, " into the following languages: %s.", strings.Join(targets, ", "))
	b.WriteString(" Respond with only a JSON array, one object per input text in the same order,")
	b.WriteString(" each object mapping language codes to translations. No markdown fences.")
	return b.String()
}

// parseTranslationObject parses a single JSON translation object, tolerating
// markdown code fences that some models insist on emitting.
func parseTranslationObject(resp string, targets []string) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal([]byte(stripFences(resp)), &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	for _, tgt := range targets {
		if _, ok := out[tgt]; !ok {
			return nil, fmt.Errorf("response missing target %q", tgt)
		}
	}
	return out, nil
}

// parseBatchResponse parses the index-aligned batch response array.
func parseBatchResponse(resp string, wantLen int, targets []string) ([]map[string]string, error) {
	var out []map[string]string
	if err := json.Unmarshal([]byte(stripFences(resp)), &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out) != wantLen {
		return nil, fmt.Errorf("response has %d entries, want %d", len(out), wantLen)
	}
	for i, m := range out {
		for _, tgt := range targets {
			if _, ok := m[tgt]; !ok {
				return nil, fmt.Errorf("entry %d missing target %q", i, tgt)
			}
		}
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
