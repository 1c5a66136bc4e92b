package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every entry in a [Chain] fails or has an
// open breaker.
var ErrAllFailed = errors.New("all providers failed")

type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain wraps a primary and zero or more fallback instances of the same
// provider type. Entries are tried in registration order; an entry whose
// breaker is open is skipped without a call.
//
// Chain is safe for concurrent use once assembled. Add is not safe to call
// concurrently with Try.
type Chain[T any] struct {
	cfg     BreakerConfig
	entries []chainEntry[T]

	mu     sync.Mutex
	active string
}

// NewChain creates a [Chain] with primary as the first entry. cfg.Name is
// ignored; each entry's breaker is named after the entry.
func NewChain[T any](name string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback provider, tried after all earlier entries.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.cfg
	cfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Active returns the name of the entry that served the most recent
// successful call, or the primary's name before any call.
func (c *Chain[T]) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" && len(c.entries) > 0 {
		return c.entries[0].name
	}
	return c.active
}

// Try runs fn against each entry in order until one succeeds. Returns
// [ErrAllFailed] wrapping the last error when none does.
func (c *Chain[T]) Try(fn func(name string, v T) error) error {
	var lastErr error
	for i := range c.entries {
		e := &c.entries[i]
		err := e.breaker.Do(func() error { return fn(e.name, e.value) })
		if err == nil {
			c.mu.Lock()
			c.active = e.name
			c.mu.Unlock()
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// TryResult is the result-returning form of [Chain.Try]. A package-level
// function because Go methods cannot introduce type parameters.
func TryResult[T, R any](c *Chain[T], fn func(name string, v T) (R, error)) (R, error) {
	var (
		result R
		zero   R
	)
	err := c.Try(func(name string, v T) error {
		var innerErr error
		result, innerErr = fn(name, v)
		return innerErr
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
