// Package anyllm provides a translation provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider LLM interface.
// It lets deployments run translation on OpenAI, Anthropic, Gemini, Ollama,
// DeepSeek, Mistral, Groq, or a local llama.cpp server without code changes.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "qwen2.5:7b")
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/babelrelay/pkg/provider/translate"
)

// Provider implements translate.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

// New creates a Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp".
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). Without an API key option, the backend falls back
// to its usual environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp", providerName)
	}
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" || len(targets) == 0 {
		return map[string]string{}, nil
	}

	content, err := p.complete(ctx, systemPrompt(source, targets), text)
	if err != nil {
		return nil, fmt.Errorf("anyllm: translate: %w", err)
	}

	out := map[string]string{}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return nil, fmt.Errorf("anyllm: translate: parse response: %w", err)
	}
	for _, tgt := range targets {
		if _, ok := out[tgt]; !ok {
			return nil, fmt.Errorf("anyllm: translate: response missing target %q", tgt)
		}
	}
	return out, nil
}

// TranslateBatch implements translate.Provider by looping over texts.
// Smaller local models handle one text per call far more reliably than an
// index-aligned array contract.
func (p *Provider) TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(texts))
	for i, t := range texts {
		m, err := p.Translate(ctx, t, source, targets)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// DetectLanguage implements translate.Provider.
func (p *Provider) DetectLanguage(ctx context.Context, text string) (string, error) {
	content, err := p.complete(ctx,
		"Identify the language of the user's text. Respond with only the BCP-47 language code, nothing else.",
		text)
	if err != nil {
		return "", fmt.Errorf("anyllm: detect language: %w", err)
	}
	code := strings.ToLower(strings.TrimSpace(content))
	if code == "" || len(code) > 8 {
		return "", fmt.Errorf("anyllm: detect language: unexpected response %q", content)
	}
	return code, nil
}

// complete performs one completion and returns the assistant content.
func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: user},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// systemPrompt builds the translation instruction.
func systemPrompt(source string, targets []string) string {
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
