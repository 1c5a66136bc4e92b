package observe

import (
	"log/slog"
	"sync"
	"time"
)

// highLatencyThreshold is the per-final translation latency above which a
// warning is logged.
const highLatencyThreshold = 200 * time.Millisecond

// rollupInterval is how often counters reset while running averages are
// preserved.
const rollupInterval = time.Hour

// Stats is the JSON shape served by /api/metrics.
type Stats struct {
	ActiveConnections int   `json:"active_connections"`
	PeakConnections   int   `json:"peak_connections"`
	Translations      int64 `json:"translations"`
	Errors            int64 `json:"errors"`

	// ErrorsByKind tallies errors since the last rollup.
	ErrorsByKind map[string]int64 `json:"errors_by_kind"`

	// AvgLatencyMs is the running average translation latency. It survives
	// rollups.
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// CumulativeLatencyMs is the latency sum since the last rollup.
	CumulativeLatencyMs float64 `json:"cumulative_latency_ms"`

	PrimaryTTS      int64 `json:"primary_tts"`
	SecondaryTTS    int64 `json:"secondary_tts"`
	RateAdjustments int64 `json:"rate_adjustments"`
	Dropped         int64 `json:"dropped"`

	QueueDepth    int `json:"queue_depth"`
	QueueDepthMax int `json:"queue_depth_max"`

	// RollupAt is when the counters were last reset.
	RollupAt time.Time `json:"rollup_at"`
}

// Snapshot accumulates the human-readable counters behind /api/metrics.
// Counters reset on the hourly rollup; running averages are preserved across
// rollups. Safe for concurrent use.
type Snapshot struct {
	now func() time.Time

	mu    sync.Mutex
	stats Stats

	// running average state, preserved across rollups
	totalLatency time.Duration
	totalSamples int64
}

// NewSnapshot creates an empty Snapshot.
func NewSnapshot() *Snapshot {
	s := &Snapshot{now: time.Now}
	s.stats.ErrorsByKind = make(map[string]int64)
	s.stats.RollupAt = s.now()
	return s
}

// ConnOpened tracks a new transport connection.
func (s *Snapshot) ConnOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ActiveConnections++
	if s.stats.ActiveConnections > s.stats.PeakConnections {
		s.stats.PeakConnections = s.stats.ActiveConnections
	}
}

// ConnClosed tracks a closed transport connection.
func (s *Snapshot) ConnClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.ActiveConnections > 0 {
		s.stats.ActiveConnections--
	}
}

// Translation records one translator call and its latency. High-latency
// finals are logged.
func (s *Snapshot) Translation(latency time.Duration, isFinal bool) {
	s.mu.Lock()
	s.maybeRollup()
	s.stats.Translations++
	s.stats.CumulativeLatencyMs += float64(latency.Milliseconds())
	s.totalLatency += latency
	s.totalSamples++
	s.stats.AvgLatencyMs = float64(s.totalLatency.Milliseconds()) / float64(s.totalSamples)
	s.mu.Unlock()

	if isFinal && latency > highLatencyThreshold {
		slog.Warn("high translation latency on final transcript",
			"latency", latency)
	}
}

// Error tallies one error of the given kind.
func (s *Snapshot) Error(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeRollup()
	s.stats.Errors++
	s.stats.ErrorsByKind[kind]++
}

// TTSUsed records which tier of the synthesis chain served an utterance.
func (s *Snapshot) TTSUsed(primary bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeRollup()
	if primary {
		s.stats.PrimaryTTS++
	} else {
		s.stats.SecondaryTTS++
	}
}

// RateAdjusted records one adaptive playback-rate change.
func (s *Snapshot) RateAdjusted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeRollup()
	s.stats.RateAdjustments++
}

// Dropped records n utterances discarded by queue overflow.
func (s *Snapshot) Dropped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeRollup()
	s.stats.Dropped += int64(n)
}

// QueueDepth records the current total queue depth; saturation is logged
// when a new maximum is reached.
func (s *Snapshot) QueueDepth(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.QueueDepth = depth
	if depth > s.stats.QueueDepthMax {
		s.stats.QueueDepthMax = depth
		slog.Warn("queue depth high-water mark", "depth", depth)
	}
}

// Stats returns a copy of the current counters.
func (s *Snapshot) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeRollup()

	out := s.stats
	out.ErrorsByKind = make(map[string]int64, len(s.stats.ErrorsByKind))
	for k, v := range s.stats.ErrorsByKind {
		out.ErrorsByKind[k] = v
	}
	return out
}

// maybeRollup resets period counters once the rollup interval has elapsed.
// Running averages, connection gauges, and high-water marks are preserved.
// Must be called with s.mu held.
func (s *Snapshot) maybeRollup() {
	now := s.now()
	if now.Sub(s.stats.RollupAt) < rollupInterval {
		return
	}
	s.stats.Translations = 0
	s.stats.Errors = 0
	s.stats.ErrorsByKind = make(map[string]int64)
	s.stats.CumulativeLatencyMs = 0
	s.stats.PrimaryTTS = 0
	s.stats.SecondaryTTS = 0
	s.stats.RateAdjustments = 0
	s.stats.Dropped = 0
	s.stats.RollupAt = now
	slog.Info("metrics rollup", "at", now)
}
