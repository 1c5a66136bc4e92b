// Package resilience provides circuit breaker and provider failover
// primitives for the synthesis and translation backends.
//
// The central type is [Breaker], a three-state breaker (closed → open →
// half-open) that takes a repeatedly failing provider out of rotation for a
// cooldown period. [Chain] composes multiple instances of any provider type
// with per-entry breakers so a failing primary is bypassed in favour of
// healthy fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards all calls.
	Closed State = iota

	// Open rejects calls with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a single probe call through; success closes the
	// breaker, failure re-opens it for another cooldown.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero-valued fields take the defaults
// documented per field.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 60s.
	Cooldown time.Duration
}

// Breaker takes a flapping backend out of rotation after MaxFailures
// consecutive errors and probes it again after the cooldown.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Do runs fn if the breaker allows it. While open it returns [ErrOpen]
// without calling fn; after the cooldown exactly one probe call is let
// through at a time.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, performing the open → half-open
// transition when the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = true
		slog.Info("breaker half-open, probing", "name", b.name)
		return nil
	case HalfOpen:
		if b.probing {
			// One probe at a time.
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// record feeds the call outcome back into the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		if err != nil {
			b.state = Open
			b.openedAt = b.now()
			slog.Warn("breaker re-opened after failed probe", "name", b.name)
			return
		}
		b.state = Closed
		b.failures = 0
		slog.Info("breaker closed after successful probe", "name", b.name)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = Open
		b.openedAt = b.now()
		slog.Warn("breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures,
			"cooldown", b.cooldown)
	}
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [HalfOpen]; the actual transition happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [Closed] and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = false
}
