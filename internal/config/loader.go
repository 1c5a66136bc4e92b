package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"translator": {"openai", "anyllm"},
	"tts":        {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for zero-valued pipeline knobs.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers — unknown names get a warning, not an error, so that new
	// backends can roll out without a loader change.
	validateProviderName("translator", cfg.Providers.Translator.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)

	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	if cfg.Providers.SpeechToken.Endpoint != "" && cfg.Providers.SpeechToken.SubscriptionKey == "" {
		errs = append(errs, errors.New("providers.speech_token.subscription_key is required when an endpoint is set"))
	}
	if cfg.Providers.SpeechToken.TTL == 0 {
		cfg.Providers.SpeechToken.TTL = 9 * time.Minute
	}

	// Pipeline
	p := &cfg.Pipeline
	if p.Policy == "" {
		p.Policy = PolicyHybrid
	}
	if !p.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.policy %q is invalid; valid values: final-only, hybrid, conference, natural-phrase, ultra-low-latency, continuous", p.Policy))
	}
	if p.QueueThreshold <= 0 {
		p.QueueThreshold = 3
	}
	if p.CriticalSize <= 0 {
		p.CriticalSize = 10
	}
	if p.CriticalSize < p.QueueThreshold {
		errs = append(errs, fmt.Errorf("pipeline.critical_size (%d) must be >= pipeline.queue_threshold (%d)", p.CriticalSize, p.QueueThreshold))
	}
	if p.MaxRate <= 0 {
		p.MaxRate = 1.5
	}
	if p.MaxRate < 1.0 {
		errs = append(errs, fmt.Errorf("pipeline.max_rate (%v) must be >= 1.0", p.MaxRate))
	}
	if p.RateStep <= 0 {
		p.RateStep = 0.05
	}
	if p.StabilityThreshold <= 0 {
		p.StabilityThreshold = 2
	}
	if p.StabilityWindow <= 0 {
		p.StabilityWindow = 2 * time.Second
	}
	if p.IdleFlush <= 0 {
		p.IdleFlush = 500 * time.Millisecond
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = 30 * time.Minute
	}

	return errors.Join(errs...)
}

// validateProviderName warns when a provider name is set but not recognised.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name",
			"kind", kind,
			"name", name,
			"known", ValidProviderNames[kind])
	}
}
