// Package app wires all Babelrelay subsystems into a running relay server.
//
// The App struct owns the full lifecycle: New connects config, providers,
// the relay coordinator and the session hub to an HTTP server; Run serves
// until the context is cancelled; Shutdown drains everything in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithSnapshot, …). When an option is not provided, New creates the real
// thing from config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/babelrelay/internal/config"
	"github.com/MrWong99/babelrelay/internal/health"
	"github.com/MrWong99/babelrelay/internal/hub"
	"github.com/MrWong99/babelrelay/internal/observe"
	"github.com/MrWong99/babelrelay/internal/relay"
	"github.com/MrWong99/babelrelay/internal/resilience"
	"github.com/MrWong99/babelrelay/internal/token"
	"github.com/MrWong99/babelrelay/pkg/provider/translate"
	"github.com/MrWong99/babelrelay/pkg/provider/tts"
)

// reapInterval is how often the hub scans for stale sessions.
const reapInterval = time.Minute

// Providers holds the external backends built by main from the config
// registry. Translator and TTS are required; TTSFallback is optional.
type Providers struct {
	Translator  translate.Provider
	TTS         tts.Provider
	TTSFallback tts.Provider

	// TTSName and TTSFallbackName label the backends in logs and metrics.
	TTSName         string
	TTSFallbackName string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	metrics *observe.Metrics
	snap    *observe.Snapshot

	hub    *hub.Hub
	coord  *relay.Coordinator
	chain  *resilience.TTSChain
	tokens *token.Service
	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a Metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSnapshot injects the /api/metrics snapshot store.
func WithSnapshot(s *observe.Snapshot) Option {
	return func(a *App) { a.snap = s }
}

// WithVersion sets the version string reported by /healthz.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New wires the relay: translator stack, TTS failover chain, coordinator,
// hub, and the HTTP server with all control-plane routes.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Translator == nil {
		return nil, fmt.Errorf("app: a translator provider is required")
	}
	if providers.TTS == nil {
		return nil, fmt.Errorf("app: a tts provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.snap == nil {
		a.snap = observe.NewSnapshot()
	}

	a.initTranslator()
	a.initTTSChain()
	a.initRelay()
	a.initHTTP()

	return a, nil
}

// initTranslator stacks the translation provider: optional cache, then the
// echo fallback so translation failures never silence listeners.
func (a *App) initTranslator() {
	translator := a.providers.Translator
	if ttl := a.cfg.Pipeline.TranslationCacheTTL; ttl > 0 {
		translator = translate.NewCache(translator, ttl)
		slog.Info("translation cache enabled", "ttl", ttl)
	}
	a.providers.Translator = translate.NewEchoFallback(translator, 0, 0)
}

// initTTSChain builds the synthesis failover chain: primary first, the
// optional fallback second, each behind its own circuit breaker.
func (a *App) initTTSChain() {
	primaryName := a.providers.TTSName
	if primaryName == "" {
		primaryName = "primary"
	}
	a.chain = resilience.NewTTSChain(primaryName, a.providers.TTS, resilience.BreakerConfig{})
	if a.providers.TTSFallback != nil {
		fallbackName := a.providers.TTSFallbackName
		if fallbackName == "" {
			fallbackName = "fallback"
		}
		a.chain.Add(fallbackName, a.providers.TTSFallback)
		slog.Info("tts fallback configured", "primary", primaryName, "fallback", fallbackName)
	}
}

// initRelay creates the coordinator and the hub.
func (a *App) initRelay() {
	a.coord = relay.NewCoordinator(a.providers.Translator, a.chain,
		a.cfg.Pipeline.Policy, a.cfg.Pipeline, relay.Options{
			Metrics:    a.metrics,
			Snapshot:   a.snap,
			PrimaryTTS: a.providers.TTSName,
			ActiveTTS:  a.chain.Active,
		})
	a.hub = hub.New(a.coord, hub.Options{
		Mode:       string(a.cfg.Pipeline.Policy),
		SessionTTL: a.cfg.Pipeline.SessionTTL,
		Metrics:    a.metrics,
		Snapshot:   a.snap,
	})
}

// initHTTP assembles the mux: the websocket endpoint plus the control plane.
func (a *App) initHTTP() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.hub.ServeWS)
	mux.HandleFunc("GET /api/metrics", a.metricsHandler)

	checkers := []health.Checker{
		{Name: "translator", Check: func(context.Context) error {
			if a.providers.Translator == nil {
				return errors.New("not configured")
			}
			return nil
		}},
		{Name: "tts", Check: func(context.Context) error {
			if a.chain.Active() == "" {
				return errors.New("no synthesis backend available")
			}
			return nil
		}},
	}
	health.New("websocket", a.version, checkers...).Register(mux)

	if a.cfg.Providers.SpeechToken.Endpoint != "" {
		a.tokens = token.NewService(a.cfg.Providers.SpeechToken)
		a.tokens.Register(mux)
	}

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// metricsHandler serves the human-readable counters at /api/metrics.
func (a *App) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(a.snap.Stats())
}

// Hub exposes the session hub, mainly for tests.
func (a *App) Hub() *hub.Hub {
	return a.hub
}

// Handler exposes the full HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, then drains connections.
func (a *App) Run(ctx context.Context) error {
	go a.hub.StartReaper(ctx, reapInterval)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("listening with TLS", "addr", a.server.Addr)
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", a.server.Addr)
			err = a.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the HTTP server and runs all closers. It respects the
// context deadline: remaining closers are skipped once ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
