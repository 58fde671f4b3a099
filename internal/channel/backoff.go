package channel

import "time"

// Backoff yields reconnect delays: the Nth call to Next returns
// min(Min * 2^(N-1), Max). Reset starts the sequence over.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	attempt int
}

func (b *Backoff) Next() time.Duration {
	d := b.Min
	for i := 0; i < b.attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	b.attempt++
	return d
}

func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt is the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
