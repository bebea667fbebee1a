// ABOUTME: Exponential backoff for separation service reconnects
// ABOUTME: Doubles the delay up to a ceiling, reset on successful connect
package separation

import "time"

// backoff computes reconnect delays. Used only by the network pump
// goroutine, so no locking.
type backoff struct {
	current time.Duration
	initial time.Duration
	max     time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{current: initial, initial: initial, max: max}
}

// next returns the current delay and doubles it for the next failure.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// reset returns the delay to its initial value.
func (b *backoff) reset() {
	b.current = b.initial
}
