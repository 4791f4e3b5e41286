package connection

import "time"

// Backoff computes reconnect delays: each call to Next returns the current
// delay and doubles it for the following call, never exceeding Max.
// Reset returns to Base. Not safe for concurrent use.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	next time.Duration
}

// NewBackoff creates a backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{Base: base, Max: max, next: base}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Base
	}

	d := b.next

	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}

	return d
}

// Peek returns the delay Next would return without advancing.
func (b *Backoff) Peek() time.Duration {
	if b.next <= 0 {
		return b.Base
	}
	return b.next
}

// Reset returns the delay to its floor.
func (b *Backoff) Reset() {
	b.next = b.Base
}
