// Package dispatch turns synthesis units into audio, one worker per
// (session, language).
//
// In request mode a FIFO queue feeds a single worker, which preserves strict
// audio ordering per listener language, speeds playback up adaptively when
// the queue backs up, and drops the oldest entries when it overflows. In
// persistent mode (continuous segmentation) a [StreamWorker] holds one open
// bidirectional synthesis channel instead and forwards text deltas as they
// arrive.
package dispatch

import (
	"errors"
	"sync"
	"time"
)

// ErrQueueOverflow rejects the completion handle of an entry dropped by the
// overflow policy.
var ErrQueueOverflow = errors.New("dispatch: dropped by queue overflow")

// ErrQueueClosed rejects handles still pending when the queue shuts down.
var ErrQueueClosed = errors.New("dispatch: queue closed")

// Entry is one queued synthesis job.
type Entry struct {
	// Text is the utterance to voice.
	Text string

	// Voice is the provider voice hint, empty for the language default.
	Voice string

	// IsFinal carries the final flag through to the emitted audio chunk.
	IsFinal bool

	// Confidence is the segmentation confidence forwarded to listeners.
	Confidence float64

	// EnqueuedAt is when the entry entered the queue.
	EnqueuedAt time.Time

	handle *Handle
}

// Handle resolves exactly once: nil when the entry's audio was emitted, an
// error when the entry was dropped or synthesis failed.
type Handle struct {
	once sync.Once
	ch   chan error
}

func newHandle() *Handle {
	return &Handle{ch: make(chan error, 1)}
}

// Done returns the channel carrying the entry's outcome.
func (h *Handle) Done() <-chan error {
	return h.ch
}

func (h *Handle) resolve(err error) {
	h.once.Do(func() {
		h.ch <- err
		close(h.ch)
	})
}

// Queue is a FIFO of synthesis entries with the drop-oldest overflow policy.
// Multiple producers may Push; exactly one worker consumes.
type Queue struct {
	critical int

	mu      sync.Mutex
	entries []*Entry
	closed  bool

	// notify wakes the worker; buffered so Push never blocks.
	notify chan struct{}

	// onDrop is invoked (without the lock) with the number of entries
	// discarded by an overflow.
	onDrop func(n int)
}

// NewQueue creates a queue with the given critical size. onDrop may be nil.
func NewQueue(critical int, onDrop func(n int)) *Queue {
	if critical <= 0 {
		critical = 10
	}
	return &Queue{
		critical: critical,
		notify:   make(chan struct{}, 1),
		onDrop:   onDrop,
	}
}

// Push appends an entry and returns its completion handle. When the queue
// has grown to twice the critical size, the oldest entries beyond the
// critical size are dropped and their handles rejected with
// [ErrQueueOverflow]; the newest entries are never dropped.
func (q *Queue) Push(e Entry) *Handle {
	e.handle = newHandle()
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		e.handle.resolve(ErrQueueClosed)
		return e.handle
	}
	q.entries = append(q.entries, &e)

	var dropped []*Entry
	if len(q.entries) >= 2*q.critical {
		n := len(q.entries) - q.critical
		dropped = q.entries[:n]
		q.entries = append([]*Entry(nil), q.entries[n:]...)
	}
	q.mu.Unlock()

	for _, d := range dropped {
		d.handle.resolve(ErrQueueOverflow)
	}
	if len(dropped) > 0 && q.onDrop != nil {
		q.onDrop(len(dropped))
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return e.handle
}

// Pop removes the oldest entry. ok is false when the queue is empty; the
// worker then waits on [Queue.Wait].
func (q *Queue) Pop() (e *Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	e = q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Wait returns the worker wake-up channel.
func (q *Queue) Wait() <-chan struct{} {
	return q.notify
}

// Len reports the current depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close rejects all pending handles with [ErrQueueClosed] and makes further
// Push calls fail fast.
func (q *Queue) Close() {
	q.mu.Lock()
	pending := q.entries
	q.entries = nil
	q.closed = true
	q.mu.Unlock()

	for _, e := range pending {
		e.handle.resolve(ErrQueueClosed)
	}
}
