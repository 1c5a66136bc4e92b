package translate

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default per-call deadlines. Translation sits on the hot path between a
// transcript event and the listener's text update, so calls are cut short
// aggressively and the source text is echoed instead.
const (
	defaultTranslateTimeout = 2 * time.Second
	defaultDetectTimeout    = 1 * time.Second
)

// EchoFallback wraps a [Provider] and converts every failure into a
// source-text echo: on error or timeout, each requested target receives the
// untranslated input. This keeps the pipeline moving when the translation
// backend degrades — listeners see the original text rather than nothing.
//
// A nil inner provider is allowed and means "no backend at all": every call
// echoes. Used when the deployment relies on client-supplied translations.
type EchoFallback struct {
	inner            Provider
	translateTimeout time.Duration
	detectTimeout    time.Duration
}

// Compile-time interface assertion.
var _ Provider = (*EchoFallback)(nil)

// NewEchoFallback wraps inner with echo-on-failure semantics and bounded
// per-call deadlines. A zero timeout selects the default (2s translate,
// 1s detect).
func NewEchoFallback(inner Provider, translateTimeout, detectTimeout time.Duration) *EchoFallback {
	if translateTimeout <= 0 {
		translateTimeout = defaultTranslateTimeout
	}
	if detectTimeout <= 0 {
		detectTimeout = defaultDetectTimeout
	}
	return &EchoFallback{
		inner:            inner,
		translateTimeout: translateTimeout,
		detectTimeout:    detectTimeout,
	}
}

// Translate calls the wrapped provider with a bounded deadline. On any error
// the source text is echoed for every target and a nil error is returned.
func (e *EchoFallback) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	if e.inner == nil {
		return echo(text, targets), nil
	}
	cctx, cancel := context.WithTimeout(ctx, e.translateTimeout)
	defer cancel()

	out, err := e.inner.Translate(cctx, text, source, targets)
	if err != nil {
		slog.Warn("translation failed, echoing source text",
			"source", source, "targets", targets, "error", err)
		return echo(text, targets), nil
	}
	// Backfill any target the backend left out.
	for _, tgt := range targets {
		if _, ok := out[tgt]; !ok {
			out[tgt] = text
		}
	}
	return out, nil
}

// TranslateBatch calls the wrapped provider with a bounded deadline. On any
// error every text is echoed for every target.
func (e *EchoFallback) TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error) {
	if e.inner == nil {
		echoed := make([]map[string]string, len(texts))
		for i, t := range texts {
			echoed[i] = echo(t, targets)
		}
		return echoed, nil
	}
	cctx, cancel := context.WithTimeout(ctx, e.translateTimeout)
	defer cancel()

	out, err := e.inner.TranslateBatch(cctx, texts, source, targets)
	if err != nil || len(out) != len(texts) {
		if err != nil {
			slog.Warn("batch translation failed, echoing source texts",
				"count", len(texts), "error", err)
		}
		echoed := make([]map[string]string, len(texts))
		for i, t := range texts {
			echoed[i] = echo(t, targets)
		}
		return echoed, nil
	}
	return out, nil
}

// DetectLanguage calls the wrapped provider with a bounded deadline. Errors
// pass through — callers treat detection as auxiliary and handle failure.
func (e *EchoFallback) DetectLanguage(ctx context.Context, text string) (string, error) {
	if e.inner == nil {
		return "", errors.New("translate: no backend configured for language detection")
	}
	cctx, cancel := context.WithTimeout(ctx, e.detectTimeout)
	defer cancel()
	return e.inner.DetectLanguage(cctx, text)
}

// echo builds the failure result: the source text for every target.
func echo(text string, targets []string) map[string]string {
	out := make(map[string]string, len(targets))
	for _, tgt := range targets {
		out[tgt] = text
	}
	return out
}
