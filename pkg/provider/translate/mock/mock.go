// Package mock provides a test double for the translate.Provider interface.
//
// Use Provider in unit tests to feed controlled translations to the pipeline
// and to verify which texts and targets were requested, without a live
// translation backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Translations: map[string]map[string]string{
//	        "Hello": {"es": "Hola", "fr": "Bonjour"},
//	    },
//	}
//	out, _ := p.Translate(ctx, "Hello", "en", []string{"es"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/babelrelay/pkg/provider/translate"
)

// TranslateCall records a single invocation of Translate.
type TranslateCall struct {
	// Text is the text passed to Translate.
	Text string
	// Source is the source language passed to Translate.
	Source string
	// Targets is the target list passed to Translate.
	Targets []string
}

// Provider is a mock implementation of translate.Provider.
//
// When Translations contains the requested text, its per-target entries are
// returned; missing targets (or texts) fall back to "<target>:<text>" so
// tests can assert routing without configuring every string.
type Provider struct {
	mu sync.Mutex

	// Translations maps input text to per-target translations.
	Translations map[string]map[string]string

	// Err, if non-nil, is returned from Translate and TranslateBatch.
	Err error

	// DetectResult is returned by DetectLanguage.
	DetectResult string

	// DetectErr, if non-nil, is returned from DetectLanguage.
	DetectErr error

	// Delay, if non-zero, makes Translate block for the given duration or
	// until the context is cancelled. Useful for timeout tests.
	Delay func(ctx context.Context) error

	// Calls records every invocation of Translate in order.
	Calls []TranslateCall
}

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranslateCall{Text: text, Source: source, Targets: targets})
	delay := p.Delay
	err := p.Err
	configured := p.Translations[text]
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return nil, derr
		}
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(targets))
	for _, tgt := range targets {
		if tr, ok := configured[tgt]; ok {
			out[tgt] = tr
		} else {
			out[tgt] = tgt + ":" + text
		}
	}
	return out, nil
}

// TranslateBatch implements translate.Provider by looping over Translate.
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
func (p *Provider) DetectLanguage(_ context.Context, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DetectResult, p.DetectErr
}

// TranslateCalls returns a copy of the recorded Translate invocations.
func (p *Provider) TranslateCalls() []TranslateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranslateCall, len(p.Calls))
	copy(out, p.Calls)
	return out
}
