// Package segment transforms an evolving stream of partial and final
// translated transcripts into a stream of disjoint, at-most-once-spoken
// synthesis units for one (session, language) pipeline.
//
// Six interchangeable policies cover the latency/quality spectrum, from
// FinalOnly (wait for committed sentences) to Continuous (forward raw text
// deltas and let the TTS provider handle prosody). Exactly one policy is
// active per deployment; [New] binds it from configuration.
//
// Segmenters are plain state machines: they never block, never call out, and
// never panic on odd input — unexpected text is passed through or ignored.
// The owning pipeline serializes all calls for its (session, language), so
// implementations need no internal locking.
package segment

import (
	"fmt"
	"time"

	"github.com/MrWong99/babelrelay/internal/config"
)

// Event is one post-translation transcript update entering a segmenter.
type Event struct {
	// Text is the cumulative translated text for the current utterance.
	Text string

	// IsFinal marks text the recognizer has committed.
	IsFinal bool

	// Now is the event arrival time. Injected for testability.
	Now time.Time
}

// Unit is one emission: a sentence, phrase, chunk, or raw delta bound for
// synthesis.
type Unit struct {
	// Text is the exact text to synthesize.
	Text string

	// Fingerprint is the stable hash of the normalized text. Zero for
	// delta units, which are not deduplicated.
	Fingerprint uint64

	// Confidence is the policy's stability score in [0, 1], when the policy
	// computes one.
	Confidence float64

	// IsFinal is true when the unit was produced from a final transcript.
	IsFinal bool

	// Delta marks a raw text suffix for the persistent synthesis channel
	// (continuous policy only).
	Delta bool
}

// Segmenter consumes transcript events for a single (session, language) and
// decides what to voice, when.
type Segmenter interface {
	// Consume processes one event and returns zero or more units ready for
	// synthesis, in emission order.
	Consume(ev Event) []Unit

	// Tick gives time-based policies a chance to emit units whose delay has
	// elapsed. Policies without timers return nil.
	Tick(now time.Time) []Unit

	// Flush force-emits everything still pending, e.g. on speaker pause or
	// session teardown.
	Flush(now time.Time) []Unit

	// Reset clears all state, including the already-spoken set.
	Reset()
}

// Config carries the tuning knobs shared across policies. Zero values select
// the defaults documented on each field.
type Config struct {
	// StabilityThreshold is the appearance count at which a hybrid candidate
	// becomes stable. Default: 2. Latency-first deployments use 1.
	StabilityThreshold int

	// StabilityWindow is the age after which repeated appearance alone makes
	// a hybrid candidate stable. Default: 2s.
	StabilityWindow time.Duration

	// MinDelta is the minimum suffix length (runes) the continuous policy
	// forwards. Default: 3.
	MinDelta int
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = 2
	}
	if c.StabilityWindow <= 0 {
		c.StabilityWindow = 2 * time.Second
	}
	if c.MinDelta <= 0 {
		c.MinDelta = 3
	}
}

// New creates the segmenter for the given policy.
func New(policy config.SegmentationPolicy, cfg Config) (Segmenter, error) {
	cfg.applyDefaults()
	switch policy {
	case config.PolicyFinalOnly:
		return newFinalOnly(), nil
	case config.PolicyHybrid:
		return newHybrid(cfg), nil
	case config.PolicyConference:
		return newConference(), nil
	case config.PolicyNaturalPhrase:
		return newNatural(), nil
	case config.PolicyUltraLowLatency:
		return newUltraLow(), nil
	case config.PolicyContinuous:
		return newContinuous(cfg), nil
	default:
		return nil, fmt.Errorf("segment: unknown policy %q", policy)
	}
}
