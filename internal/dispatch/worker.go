package dispatch

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

// Config tunes a worker. Zero values select the defaults documented per
// field.
type Config struct {
	// QueueThreshold is the depth above which playback speeds up.
	// Default: 3.
	QueueThreshold int

	// MaxRate caps the adaptive playback rate. Default: 1.5.
	MaxRate float64

	// RateStep is the rate increase per item above the threshold.
	// Default: 0.05.
	RateStep float64

	// SynthTimeout bounds one synthesis call. Default: 5s.
	SynthTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueThreshold <= 0 {
		c.QueueThreshold = 3
	}
	if c.MaxRate <= 0 {
		c.MaxRate = 1.5
	}
	if c.RateStep <= 0 {
		c.RateStep = 0.05
	}
	if c.SynthTimeout <= 0 {
		c.SynthTimeout = 5 * time.Second
	}
}

// Recorder receives dispatcher telemetry. Implementations must be safe for
// concurrent use; all methods may be called from worker goroutines.
type Recorder interface {
	// Dropped reports n entries discarded by queue overflow.
	Dropped(language string, n int)

	// RateChanged reports a new adaptive playback rate.
	RateChanged(rate float64)

	// Depth reports the queue depth observed before a synthesis.
	Depth(depth int)

	// Synthesized reports one synthesis outcome and its latency.
	Synthesized(language string, d time.Duration, err error)
}

// NopRecorder discards all telemetry.
type NopRecorder struct{}

func (NopRecorder) Dropped(string, int)                      {}
func (NopRecorder) RateChanged(float64)                      {}
func (NopRecorder) Depth(int)                                {}
func (NopRecorder) Synthesized(string, time.Duration, error) {}

var _ Recorder = NopRecorder{}

// EmitFunc delivers one finished audio chunk to the transport layer. It must
// not block indefinitely; slow listeners are the transport's problem.
type EmitFunc func(chunk types.AudioChunk)

// Worker drains one queue in strict FIFO order for one (session, language).
type Worker struct {
	session  string
	language string
	queue    *Queue
	provider tts.Provider
	cfg      Config
	emit     EmitFunc
	rec      Recorder

	seq      uint64
	lastRate float64
}

// NewWorker creates a worker. rec may be nil.
func NewWorker(session, language string, q *Queue, provider tts.Provider, cfg Config, emit EmitFunc, rec Recorder) *Worker {
	cfg.applyDefaults()
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Worker{
		session:  session,
		language: language,
		queue:    q,
		provider: provider,
		cfg:      cfg,
		emit:     emit,
		rec:      rec,
		lastRate: 1.0,
	}
}

// Run consumes the queue until ctx is cancelled. Synthesis failures are
// logged and confined to their entry; the worker never stops on provider
// errors.
func (w *Worker) Run(ctx context.Context) error {
	for {
		e, ok := w.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.queue.Wait():
				continue
			}
		}
		w.synthesize(ctx, e)
	}
}

// synthesize voices one entry and emits the audio chunk.
func (w *Worker) synthesize(ctx context.Context, e *Entry) {
	depth := w.queue.Len()
	w.rec.Depth(depth)
	rate := w.rate(depth)

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.SynthTimeout)
	defer cancel()

	start := time.Now()
	rc, err := w.provider.Synthesize(callCtx, tts.Request{
		Text:     e.Text,
		Language: w.language,
		Voice:    e.Voice,
		Rate:     rate,
	})
	if err != nil {
		w.rec.Synthesized(w.language, time.Since(start), err)
		slog.Error("synthesis failed, utterance dropped",
			"session", w.session,
			"language", w.language,
			"error", err)
		e.handle.resolve(err)
		return
	}
	audio, err := io.ReadAll(rc)
	rc.Close()
	w.rec.Synthesized(w.language, time.Since(start), err)
	if err != nil {
		slog.Error("reading synthesized audio failed",
			"session", w.session,
			"language", w.language,
			"error", err)
		e.handle.resolve(err)
		return
	}

	w.seq++
	w.emit(types.AudioChunk{
		Data:       audio,
		Format:     w.provider.Format(),
		Language:   w.language,
		Text:       e.Text,
		Sequence:   w.seq,
		IsFinal:    e.IsFinal,
		Confidence: e.Confidence,
	})
	e.handle.resolve(nil)
}

// rate computes the adaptive playback rate for the given queue depth: base
// 1.0, plus RateStep per item above the threshold, capped at MaxRate.
func (w *Worker) rate(depth int) float64 {
	rate := 1.0
	if excess := depth - w.cfg.QueueThreshold; excess > 0 {
		rate = math.Min(1.0+w.cfg.RateStep*float64(excess), w.cfg.MaxRate)
	}
	if rate != w.lastRate {
		slog.Info("playback rate adjusted",
			"session", w.session,
			"language", w.language,
			"rate", rate,
			"depth", depth)
		w.rec.RateChanged(rate)
		w.lastRate = rate
	}
	return rate
}
