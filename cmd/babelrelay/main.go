// Command babelrelay is the main entry point for the Babelrelay translation
// relay server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/babelrelay/internal/app"
	"github.com/MrWong99/babelrelay/internal/config"
	"github.com/MrWong99/babelrelay/internal/observe"
	"github.com/MrWong99/babelrelay/pkg/provider/translate"
	translateanyllm "github.com/MrWong99/babelrelay/pkg/provider/translate/anyllm"
	translateopenai "github.com/MrWong99/babelrelay/pkg/provider/translate/openai"
	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/provider/tts/coqui"
	"github.com/MrWong99/babelrelay/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "babelrelay: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "babelrelay: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("babelrelay starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "babelrelay",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the translator and synthesis backends named in
// cfg and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}

	translator, err := buildTranslator(cfg.Providers.Translator)
	if err != nil {
		return nil, fmt.Errorf("create translator provider %q: %w", cfg.Providers.Translator.Name, err)
	}
	ps.Translator = translator
	slog.Info("provider created", "kind", "translator", "name", cfg.Providers.Translator.Name)

	primary, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = primary
	ps.TTSName = cfg.Providers.TTS.Name
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if name := cfg.Providers.TTSFallback.Name; name != "" {
		fallback, err := buildTTS(cfg.Providers.TTSFallback)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback provider %q: %w", name, err)
		}
		ps.TTSFallback = fallback
		ps.TTSFallbackName = name
		slog.Info("provider created", "kind", "tts_fallback", "name", name)
	}

	return ps, nil
}

// buildTranslator constructs the translation backend for entry. An empty name
// returns nil so the app falls back to echoing source text; useful for demos
// where browsers supply their own translations.
func buildTranslator(entry config.ProviderEntry) (translate.Provider, error) {
	switch entry.Name {
	case "":
		return translate.NewEchoFallback(nil, 0, 0), nil
	case "openai":
		var opts []translateopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, translateopenai.WithBaseURL(entry.BaseURL))
		}
		return translateopenai.New(entry.APIKey, entry.Model, opts...)
	case "anyllm":
		// The any-llm backend (openai, anthropic, ollama, …) is selected via
		// options.provider; defaults to openai.
		providerName := optString(entry.Options, "provider")
		if providerName == "" {
			providerName = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return translateanyllm.New(providerName, entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown translator provider %q (known: %v)",
			entry.Name, config.ValidProviderNames["translator"])
	}
}

// buildTTS constructs one synthesis backend for entry.
func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	case "coqui":
		var opts []coqui.Option
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q (known: %v)",
			entry.Name, config.ValidProviderNames["tts"])
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Babelrelay — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Translator", cfg.Providers.Translator.Name, cfg.Providers.Translator.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("TTS fallback", cfg.Providers.TTSFallback.Name, cfg.Providers.TTSFallback.Model)
	if cfg.Providers.SpeechToken.Endpoint != "" {
		fmt.Printf("║  Speech tokens   : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Speech tokens   : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Policy          : %-19s ║\n", cfg.Pipeline.Policy)
	fmt.Printf("║  Session TTL     : %-19s ║\n", cfg.Pipeline.SessionTTL)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
