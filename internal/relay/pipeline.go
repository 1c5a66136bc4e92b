package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/babelrelay/internal/config"
	"github.com/MrWong99/babelrelay/internal/dispatch"
	"github.com/MrWong99/babelrelay/internal/hub"
	"github.com/MrWong99/babelrelay/internal/observe"
	"github.com/MrWong99/babelrelay/internal/punctuate"
	"github.com/MrWong99/babelrelay/internal/segment"
	"github.com/MrWong99/babelrelay/pkg/provider/tts"
	"github.com/MrWong99/babelrelay/pkg/types"
)

// tickInterval drives the time-based segmentation policies.
const tickInterval = 50 * time.Millisecond

// Pipeline owns all synthesis state for one (session, language): the
// segmenter, the dispatch queue and worker, and the persistent stream when
// the continuous policy is active.
//
// HandleTranslation is serialized by the pipeline's own mutex; the segmenter
// is never entered concurrently, and nothing slow (synthesis, transport
// writes) runs under that lock. Queue pushes do happen under the lock — they
// are non-blocking, and enqueueing in the same critical section that produced
// the units is what keeps audio in segmenter emission order when the tick
// loop and the transcript path interleave.
type Pipeline struct {
	session  *hub.Session
	language string
	provider tts.Provider
	metrics  *observe.Metrics

	mu       sync.Mutex
	seg      segment.Segmenter
	partials int

	queue  *dispatch.Queue
	worker *dispatch.Worker

	// streaming is 1 while the persistent channel is usable. Cleared when
	// the provider rejects streaming, which flips the pipeline to request
	// mode for the rest of the session.
	streaming atomic.Bool
	stream    *dispatch.StreamWorker

	ctx    context.Context
	cancel context.CancelFunc
}

func newPipeline(parent context.Context, s *hub.Session, language string,
	policy config.SegmentationPolicy, cfg config.PipelineConfig,
	provider tts.Provider, metrics *observe.Metrics, rec dispatch.Recorder) (*Pipeline, error) {

	seg, err := segment.New(policy, segment.Config{
		StabilityThreshold: cfg.StabilityThreshold,
		StabilityWindow:    cfg.StabilityWindow,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	p := &Pipeline{
		session:  s,
		language: language,
		provider: provider,
		metrics:  metrics,
		seg:      seg,
		ctx:      ctx,
		cancel:   cancel,
	}

	p.queue = dispatch.NewQueue(cfg.CriticalSize, func(n int) {
		rec.Dropped(language, n)
	})
	p.worker = dispatch.NewWorker(s.Code, language, p.queue, provider, dispatch.Config{
		QueueThreshold: cfg.QueueThreshold,
		MaxRate:        cfg.MaxRate,
		RateStep:       cfg.RateStep,
	}, p.emitAudio, rec)
	go p.worker.Run(ctx)

	if policy == config.PolicyContinuous {
		p.stream = dispatch.NewStreamWorker(s.Code, language, "", provider, cfg.IdleFlush, p.emitAudio)
		p.streaming.Store(true)
		go p.runStream()
	}

	go p.tickLoop()
	return p, nil
}

// runStream drives the persistent channel and downgrades to request mode
// when the provider cannot stream.
func (p *Pipeline) runStream() {
	err := p.stream.Run(p.ctx)
	p.streaming.Store(false)
	if errors.Is(err, tts.ErrStreamingUnsupported) {
		slog.Warn("provider cannot stream, falling back to request mode",
			"session", p.session.Code, "language", p.language)
	}
}

// tickLoop advances the segmenter's timers.
func (p *Pipeline) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case now := <-ticker.C:
			p.mu.Lock()
			p.dispatchUnits(p.seg.Tick(now))
			p.mu.Unlock()
		}
	}
}

// HandleTranslation feeds one translated transcript event through the
// pipeline: display text to listeners, then segmentation, then dispatch.
func (p *Pipeline) HandleTranslation(text string, isFinal bool) {
	restored := punctuate.Restore(text, isFinal)

	p.mu.Lock()
	if !isFinal {
		p.partials++
	}
	update := hub.TranslationUpdate{
		Text:          restored,
		Language:      p.language,
		IsFinal:       isFinal,
		PartialNumber: p.partials,
	}
	p.dispatchUnits(p.seg.Consume(segment.Event{Text: restored, IsFinal: isFinal, Now: time.Now()}))
	p.mu.Unlock()

	p.session.SendToLanguage(p.ctx, p.language, hub.EventTranslationUpdate, update)
}

// dispatchUnits routes emitted units to the right synthesis mode. Callers
// hold p.mu: pushing in the emitting critical section pins queue order to
// segmenter emission order, and every step here is non-blocking. A delta the
// stream cannot absorb is rerouted through the request-mode queue rather
// than dropped, so provider back-pressure never loses text mid-utterance.
func (p *Pipeline) dispatchUnits(units []segment.Unit) {
	for _, u := range units {
		if u.Delta && p.streaming.Load() {
			err := p.stream.Send(u.Text)
			if err == nil {
				continue
			}
			slog.Warn("stream back-pressure, rerouting delta",
				"session", p.session.Code, "language", p.language, "error", err)
		}

		voice := tts.PickVoice(p.language, p.session.VoicePreferences(p.language))
		p.queue.Push(dispatch.Entry{
			Text:       u.Text,
			Voice:      voice,
			IsFinal:    u.IsFinal,
			Confidence: u.Confidence,
		})
		p.session.CountUtterance()
		p.metrics.RecordUtterance(p.ctx, p.session.Code, p.language)
	}
}

// emitAudio fans one synthesized chunk out to this language's listeners.
func (p *Pipeline) emitAudio(chunk types.AudioChunk) {
	p.session.SendToLanguage(p.ctx, p.language, hub.EventAudioStream, hub.AudioStream{
		Audio:      chunk.Data,
		Format:     chunk.Format,
		Language:   chunk.Language,
		Text:       chunk.Text,
		Sequence:   chunk.Sequence,
		Confidence: chunk.Confidence,
		IsStable:   !chunk.Streaming,
		IsFinal:    chunk.IsFinal,
		Streaming:  chunk.Streaming,
	})
}

// Close drops the pipeline: worker and stream stop, pending queue entries
// are rejected, segmentation state is discarded.
func (p *Pipeline) Close() {
	p.cancel()
	p.queue.Close()
	p.mu.Lock()
	p.seg.Reset()
	p.mu.Unlock()
}
