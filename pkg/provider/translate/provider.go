// Package translate defines the Provider interface for translation backends.
//
// A translation provider turns one text fragment into one or more target
// languages in a single call. The relay calls it on the hot path for every
// transcript event, so implementations should keep per-call overhead low and
// must be safe for concurrent use.
//
// Translation failures are non-fatal by design: wrap any Provider with
// [NewEchoFallback] to substitute the source text when the backend errors or
// times out, so listeners always see *something* for every transcript event.
package translate

import "context"

// Provider is the abstraction over any translation backend.
//
// Implementations must be safe for concurrent use. Calls for different target
// languages and different sessions run in parallel.
type Provider interface {
	// Translate translates text from source into every language in targets
	// and returns a map keyed by target language. source may be empty, in
	// which case the backend auto-detects the input language.
	//
	// The returned map contains an entry for every requested target.
	Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error)

	// TranslateBatch translates several texts in one call. The result slice
	// is index-aligned with texts.
	TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error)

	// DetectLanguage returns the BCP-47 code of the dominant language in text.
	DetectLanguage(ctx context.Context, text string) (string, error)
}
