package transport

import "time"

// backoff yields the doubling reconnect delay sequence, capped at max.
type backoff struct {
	base time.Duration
	max  time.Duration
	next time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, next: base}
}

// Next returns the delay to wait before the upcoming attempt and advances
// the sequence: base, 2*base, 4*base, ... capped at max.
func (b *backoff) Next() time.Duration {
	d := b.next
	doubled := b.next * 2
	if doubled > b.max {
		doubled = b.max
	}
	b.next = doubled
	return d
}

// Reset restarts the sequence after a successful connect.
func (b *backoff) Reset() {
	b.next = b.base
}
