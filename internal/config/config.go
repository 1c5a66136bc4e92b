// Package config provides the configuration schema and loader for the
// Babelrelay translation relay.
package config

import "time"

// LogLevel controls log verbosity for the relay server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SegmentationPolicy selects how partial and final transcripts are carved
// into synthesis units. Exactly one policy is active per deployment.
type SegmentationPolicy string

const (
	// PolicyFinalOnly voices complete sentences from final transcripts only.
	// Highest quality, highest latency.
	PolicyFinalOnly SegmentationPolicy = "final-only"

	// PolicyHybrid voices sentences as soon as they are judged stable across
	// successive partials, without waiting for a final.
	PolicyHybrid SegmentationPolicy = "hybrid"

	// PolicyConference voices finals only with aggressive duplicate
	// suppression, tuned for long-form conference speech.
	PolicyConference SegmentationPolicy = "conference"

	// PolicyNaturalPhrase voices phrase-sized chunks at linguistically
	// preferred boundaries.
	PolicyNaturalPhrase SegmentationPolicy = "natural-phrase"

	// PolicyUltraLowLatency voices 3–10 word chunks as soon as possible.
	PolicyUltraLowLatency SegmentationPolicy = "ultra-low-latency"

	// PolicyContinuous forwards raw text deltas to a persistent synthesis
	// channel and leaves all prosody to the TTS provider.
	PolicyContinuous SegmentationPolicy = "continuous"
)

// IsValid reports whether p is a recognised segmentation policy.
func (p SegmentationPolicy) IsValid() bool {
	switch p {
	case PolicyFinalOnly, PolicyHybrid, PolicyConference,
		PolicyNaturalPhrase, PolicyUltraLowLatency, PolicyContinuous:
		return true
	}
	return false
}

// Config is the root configuration structure for Babelrelay.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings for the relay server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the external services the relay talks to.
type ProvidersConfig struct {
	// Translator selects the translation backend.
	Translator ProviderEntry `yaml:"translator"`

	// TTS is the primary (lowest-latency) synthesis backend.
	TTS ProviderEntry `yaml:"tts"`

	// TTSFallback is the secondary synthesis backend, tried once when the
	// primary fails. Optional.
	TTSFallback ProviderEntry `yaml:"tts_fallback"`

	// SpeechToken configures the short-lived STT credential issuer proxied
	// at /api/speech/token. Optional.
	SpeechToken SpeechTokenConfig `yaml:"speech_token"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "eleven_flash_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// SpeechTokenConfig describes the upstream endpoint that issues short-lived
// speech-recognition credentials for browsers.
type SpeechTokenConfig struct {
	// Endpoint is the token issuer URL.
	Endpoint string `yaml:"endpoint"`

	// SubscriptionKey authenticates the relay to the issuer.
	SubscriptionKey string `yaml:"subscription_key"`

	// Region is returned to clients alongside the token.
	Region string `yaml:"region"`

	// TTL is how long issued tokens remain valid. The relay caches tokens
	// slightly under this lifetime. Default: 9m.
	TTL time.Duration `yaml:"ttl"`
}

// PipelineConfig holds the tuning knobs for segmentation and dispatch.
// Zero values are replaced with defaults by [Validate].
type PipelineConfig struct {
	// Policy selects the segmentation policy. Default: hybrid.
	Policy SegmentationPolicy `yaml:"policy"`

	// QueueThreshold is the queue depth above which the adaptive rate
	// controller starts speeding up playback. Default: 3.
	QueueThreshold int `yaml:"queue_threshold"`

	// CriticalSize is the queue depth considered saturated. When the queue
	// grows to twice this size, the oldest entries are dropped. Default: 10.
	CriticalSize int `yaml:"critical_size"`

	// MaxRate caps the adaptive playback rate. Default: 1.5.
	MaxRate float64 `yaml:"max_rate"`

	// RateStep is the rate increase per queued item above QueueThreshold.
	// Default: 0.05.
	RateStep float64 `yaml:"rate_step"`

	// StabilityThreshold is the number of times a candidate sentence must
	// appear across partials before the hybrid policy voices it. Default: 2.
	StabilityThreshold int `yaml:"stability_threshold"`

	// StabilityWindow is how long a candidate may age before repeated
	// appearances alone make it stable. Default: 2s.
	StabilityWindow time.Duration `yaml:"stability_window"`

	// IdleFlush is the quiet period after which a persistent synthesis
	// channel flushes the current phrase. Default: 500ms.
	IdleFlush time.Duration `yaml:"idle_flush"`

	// SessionTTL is the age after which a session with no listeners is
	// reaped. Default: 30m.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// TranslationCacheTTL bounds how long translations are reused for
	// identical input. Zero disables the cache.
	TranslationCacheTTL time.Duration `yaml:"translation_cache_ttl"`
}
