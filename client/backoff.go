package client

import (
	"time"

	"github.com/jpillora/backoff"
)

const (
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Minute
)

// Backoff produces reconnection delays that double after every failure, up to a
// ceiling. It is not safe for concurrent use.
type Backoff struct {
	b backoff.Backoff
}

func NewBackoff(initial, ceiling time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}

	if ceiling < initial {
		ceiling = initial
	}

	return &Backoff{b: backoff.Backoff{
		Min:    initial,
		Max:    ceiling,
		Factor: 2,
	}}
}

// Next returns the delay to wait for the current failure and doubles the
// interval for the one after it.
func (b *Backoff) Next() time.Duration {
	return b.b.Duration()
}

// Interval is the delay the next call to Next will return.
func (b *Backoff) Interval() time.Duration {
	return b.b.ForAttempt(b.b.Attempt())
}

// Failures is the number of delays handed out since the last Reset.
func (b *Backoff) Failures() int {
	return int(b.b.Attempt())
}

func (b *Backoff) Reset() {
	b.b.Reset()
}
