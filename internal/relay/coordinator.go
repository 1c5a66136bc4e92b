// Package relay connects the session hub to the translation and synthesis
// pipeline.
//
// The [Coordinator] implements the hub's TranscriptHandler: for every
// transcript event it resolves the effective target languages, translates
// once (or takes client-supplied translations verbatim), and fans the result
// out to one [Pipeline] per language. Pipelines are created lazily and die
// with the session.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/babelrelay/internal/config"
	"github.com/MrWong99/babelrelay/internal/dispatch"
	"github.com/MrWong99/babelrelay/internal/hub"
	"github.com/MrWong99/babelrelay/internal/observe"
	"github.com/MrWong99/babelrelay/pkg/provider/translate"
	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

// translateTimeout bounds one translator call. Translation failures are
// non-fatal; the echo fallback keeps listeners fed.
const translateTimeout = 3 * time.Second

// Options tunes a Coordinator.
type Options struct {
	// Metrics receives pipeline instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Snapshot feeds the human-readable /api/metrics counters. Optional.
	Snapshot *observe.Snapshot

	// PrimaryTTS is the name of the primary synthesis backend, used to
	// attribute fallback usage in the snapshot.
	PrimaryTTS string

	// ActiveTTS reports which synthesis backend is currently serving.
	// Optional; wired to the resilience chain in production.
	ActiveTTS func() string
}

// Coordinator owns all live pipelines and implements hub.TranscriptHandler.
type Coordinator struct {
	translator translate.Provider
	provider   tts.Provider
	policy     config.SegmentationPolicy
	cfg        config.PipelineConfig
	opts       Options
	rec        *telemetry

	mu       sync.Mutex
	sessions map[string]*sessionPipelines
}

type sessionPipelines struct {
	ctx       context.Context
	cancel    context.CancelFunc
	pipelines map[string]*Pipeline
}

var _ hub.TranscriptHandler = (*Coordinator)(nil)

// NewCoordinator creates a coordinator voicing through provider and
// translating through translator.
func NewCoordinator(translator translate.Provider, provider tts.Provider,
	policy config.SegmentationPolicy, cfg config.PipelineConfig, opts Options) *Coordinator {

	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Coordinator{
		translator: translator,
		provider:   provider,
		policy:     policy,
		cfg:        cfg,
		opts:       opts,
		rec: &telemetry{
			metrics: opts.Metrics,
			snap:    opts.Snapshot,
			primary: opts.PrimaryTTS,
			active:  opts.ActiveTTS,
		},
		sessions: make(map[string]*sessionPipelines),
	}
}

// HandleTranscript implements hub.TranscriptHandler. It runs on the speaker's
// read loop, which keeps transcript events ordered per session; translation
// latency applies natural back-pressure to the speaker stream.
func (c *Coordinator) HandleTranscript(ctx context.Context, s *hub.Session, t types.Transcript) {
	targets := s.EffectiveTargets()
	if len(targets) == 0 || t.Text == "" {
		return
	}

	ctx, span := observe.StartSessionSpan(ctx, "transcript", s.Code)
	defer span.End()

	start := time.Now()
	translations := c.translateAll(ctx, s, t, targets)
	latency := time.Since(start)
	if c.opts.Snapshot != nil {
		c.opts.Snapshot.Translation(latency, t.IsFinal)
	}

	s.Broadcast(ctx, hub.EventTranslationBroadcast, hub.TranslationBroadcast{
		Original:     t.Text,
		Translations: translations,
		IsFinal:      t.IsFinal,
		Timestamp:    t.Timestamp.UnixMilli(),
		Latency:      latency.Milliseconds(),
	})

	var g errgroup.Group
	for _, lang := range targets {
		text, ok := translations[lang]
		if !ok || text == "" {
			continue
		}
		p, err := c.pipeline(s, lang)
		if err != nil {
			slog.Error("pipeline unavailable", "session", s.Code, "language", lang, "error", err)
			continue
		}
		g.Go(func() error {
			p.HandleTranslation(text, t.IsFinal)
			return nil
		})
	}
	g.Wait()
}

// translateAll resolves the text for every target language: client-supplied
// translations are taken verbatim, the rest go through the translator in one
// call, and any translator failure echoes the source text.
func (c *Coordinator) translateAll(ctx context.Context, s *hub.Session, t types.Transcript, targets []string) map[string]string {
	translations := make(map[string]string, len(targets))
	var missing []string
	for _, lang := range targets {
		if text, ok := t.Translations[lang]; ok && text != "" {
			translations[lang] = text
			continue
		}
		missing = append(missing, lang)
	}
	if len(missing) == 0 {
		return translations
	}

	tctx, cancel := context.WithTimeout(ctx, translateTimeout)
	defer cancel()

	start := time.Now()
	out, err := c.translator.Translate(tctx, t.Text, s.SourceLang, missing)
	c.opts.Metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// The provider stack normally echoes on failure already; this is
		// the last line of defence so listeners never go silent.
		slog.Warn("translation failed, echoing source",
			"session", s.Code, "languages", missing, "error", err)
		c.opts.Metrics.RecordTranslation(ctx, "translator", "error")
		if c.opts.Snapshot != nil {
			c.opts.Snapshot.Error("translate")
		}
		for _, lang := range missing {
			translations[lang] = t.Text
		}
		return translations
	}
	c.opts.Metrics.RecordTranslation(ctx, "translator", "ok")
	for _, lang := range missing {
		if text, ok := out[lang]; ok && text != "" {
			translations[lang] = text
		} else {
			translations[lang] = t.Text
		}
	}
	return translations
}

// pipeline returns the live pipeline for (session, language), creating the
// session's pipeline set and the pipeline itself on first use.
func (c *Coordinator) pipeline(s *hub.Session, language string) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sp, ok := c.sessions[s.Code]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		sp = &sessionPipelines{ctx: ctx, cancel: cancel, pipelines: make(map[string]*Pipeline)}
		c.sessions[s.Code] = sp
	}
	p, ok := sp.pipelines[language]
	if !ok {
		var err error
		p, err = newPipeline(sp.ctx, s, language, c.policy, c.cfg, c.provider, c.opts.Metrics, c.rec)
		if err != nil {
			return nil, err
		}
		sp.pipelines[language] = p
		slog.Info("pipeline started", "session", s.Code, "language", language, "policy", c.policy)
	}
	return p, nil
}

// Teardown implements hub.TranscriptHandler: every pipeline of the session
// is closed, queued utterances rejected, and segmentation state dropped.
func (c *Coordinator) Teardown(code string) {
	c.mu.Lock()
	sp, ok := c.sessions[code]
	delete(c.sessions, code)
	c.mu.Unlock()
	if !ok {
		return
	}

	sp.cancel()
	for language, p := range sp.pipelines {
		p.Close()
		slog.Debug("pipeline closed", "session", code, "language", language)
	}
}

// Languages reports which languages currently have a live pipeline for the
// session. Diagnostic; used by tests.
func (c *Coordinator) Languages(code string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, ok := c.sessions[code]
	if !ok {
		return nil
	}
	langs := make([]string, 0, len(sp.pipelines))
	for lang := range sp.pipelines {
		langs = append(langs, lang)
	}
	return langs
}

// telemetry adapts dispatch.Recorder onto the observe instruments.
type telemetry struct {
	metrics *observe.Metrics
	snap    *observe.Snapshot
	primary string
	active  func() string
}

var _ dispatch.Recorder = (*telemetry)(nil)

func (t *telemetry) Dropped(language string, n int) {
	t.metrics.RecordDrop(context.Background(), language, int64(n))
	if t.snap != nil {
		t.snap.Dropped(n)
	}
}

func (t *telemetry) RateChanged(float64) {
	t.metrics.RateAdjustments.Add(context.Background(), 1)
	if t.snap != nil {
		t.snap.RateAdjusted()
	}
}

func (t *telemetry) Depth(depth int) {
	if t.snap != nil {
		t.snap.QueueDepth(depth)
	}
}

func (t *telemetry) Synthesized(language string, d time.Duration, err error) {
	ctx := context.Background()
	t.metrics.TTSDuration.Record(ctx, d.Seconds())

	provider := t.primary
	if t.active != nil {
		provider = t.active()
	}
	if err != nil {
		t.metrics.RecordTTSRequest(ctx, provider, "error")
		t.metrics.RecordProviderError(ctx, provider, "tts")
		if t.snap != nil {
			t.snap.Error("tts")
		}
		return
	}
	t.metrics.RecordTTSRequest(ctx, provider, "ok")
	if t.snap != nil {
		t.snap.TTSUsed(t.active == nil || provider == t.primary)
	}
}
