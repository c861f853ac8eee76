// Package correlator pairs asynchronous command requests with the responses
// that later arrive over the transport, keyed by an opaque correlation id.
package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrTimeout is returned by Await when no response arrives in time.
var ErrTimeout = errors.New("timed out waiting for correlated response")

const (
	defaultTTL       = 30 * time.Second
	defaultSweep     = 30 * time.Second
	defaultPollEvery = 100 * time.Millisecond
)

type entry struct {
	payload    []byte
	enqueuedAt time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithTTL sets how long an unconsumed entry may live before the sweep
// evicts it.
func WithTTL(ttl time.Duration) Option {
	return func(t *Table) { t.ttl = ttl }
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Table) { t.sweepEvery = d }
}

// WithPollInterval sets how often Await re-checks the table.
func WithPollInterval(d time.Duration) Option {
	return func(t *Table) { t.pollEvery = d }
}

// Table stores pending responses until a matching Await consumes them or the
// sweep evicts them. The mutex guards only the map itself; it is never held
// while waiting, so Put from the transport read pump cannot block behind a
// slow awaiter.
type Table struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl        time.Duration
	sweepEvery time.Duration
	pollEvery  time.Duration
	log        zerolog.Logger
}

func NewTable(log zerolog.Logger, opts ...Option) *Table {
	t := &Table{
		entries:    make(map[string]entry),
		ttl:        defaultTTL,
		sweepEvery: defaultSweep,
		pollEvery:  defaultPollEvery,
		log:        log.With().Str("component", "correlator").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Put stores a response payload under id. A previous unconsumed entry for the
// same id is overwritten; callers use globally unique ids so this only
// matters when a remote side repeats an echo.
func (t *Table) Put(id string, payload []byte) {
	t.mu.Lock()
	t.entries[id] = entry{payload: payload, enqueuedAt: time.Now()}
	t.mu.Unlock()
}

// Await blocks until a payload for id appears, then removes and returns it.
// It returns ErrTimeout after the timeout elapses (nothing is removed: there
// is nothing to remove), or ctx.Err if the context is cancelled first.
func (t *Table) Await(ctx context.Context, id string, timeout time.Duration) ([]byte, error) {
	if payload, ok := t.take(id); ok {
		return payload, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(t.pollEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-tick.C:
			if payload, ok := t.take(id); ok {
				return payload, nil
			}
		}
	}
}

// Run drives the periodic sweep until ctx is cancelled. Entries older than
// the TTL are dropped even if never awaited, so a requester that crashed
// before calling Await cannot leak correlation ids forever.
func (t *Table) Run(ctx context.Context) {
	tick := time.NewTicker(t.sweepEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.sweep(time.Now()); n > 0 {
				t.log.Info().Int("evicted", n).Msg("removed stale pending responses")
			}
		}
	}
}

func (t *Table) take(id string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	return e.payload, true
}

func (t *Table) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, e := range t.entries {
		if now.Sub(e.enqueuedAt) > t.ttl {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of pending entries. Used by tests and diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
