package tts

// defaultVoices maps a language code to a reasonable provider-neutral default
// voice name. Providers translate these names to their own identifiers when
// the request carries no explicit voice.
var defaultVoices = map[string]string{
	"en": "en-neutral-1",
	"es": "es-neutral-1",
	"fr": "fr-neutral-1",
	"de": "de-neutral-1",
	"it": "it-neutral-1",
	"pt": "pt-neutral-1",
	"ja": "ja-neutral-1",
	"ko": "ko-neutral-1",
	"zh": "zh-neutral-1",
	"ar": "ar-neutral-1",
	"hi": "hi-neutral-1",
	"ru": "ru-neutral-1",
}

// fallbackVoice is used for languages with no table entry.
const fallbackVoice = "en-neutral-1"

// PickVoice resolves the voice to use for a language given the current
// listeners' preferences. When every listener of the language shares the
// same non-empty preference, that voice wins; otherwise the language-indexed
// default applies. The choice is deterministic for a given input.
func PickVoice(language string, preferences []string) string {
	var shared string
	unanimous := len(preferences) > 0
	for _, p := range preferences {
		if p == "" {
			unanimous = false
			break
		}
		if shared == "" {
			shared = p
		} else if p != shared {
			unanimous = false
			break
		}
	}
	if unanimous {
		return shared
	}
	return DefaultVoice(language)
}

// DefaultVoice returns the table default for a language, falling back to a
// neutral English voice for unknown languages.
func DefaultVoice(language string) string {
	if v, ok := defaultVoices[language]; ok {
		return v
	}
	// Try the primary subtag ("pt-BR" → "pt").
	for i := 0; i < len(language); i++ {
		if language[i] == '-' {
			if v, ok := defaultVoices[language[:i]]; ok {
				return v
			}
			break
		}
	}
	return fallbackVoice
}
