// Package idle implements the short backoff a Worker performs at the end
// of the schedule procedure (spec §4.B step 4: "Sleep ~1 µs and loop").
package idle

import "time"

// Backoff is mutated across successive empty schedule passes so a worker
// that has been idle longer sleeps a little longer, up to a cap, without
// ever blocking indefinitely (it must keep re-checking shutdown state).
type Backoff struct {
	streak int
}

const (
	minSleep = time.Microsecond
	maxSleep = 200 * time.Microsecond
)

// Sleep yields the native thread briefly and returns. The first few calls
// in a row prefer a cheap scheduler yield (see idle_unix.go); once that
// stops helping it falls back to a real sleep that grows with the streak.
func (b *Backoff) Sleep() {
	b.streak++
	if b.streak <= 4 {
		schedYield()
		return
	}
	d := minSleep * time.Duration(b.streak-4)
	if d > maxSleep {
		d = maxSleep
	}
	time.Sleep(d)
}

// Reset clears the streak after a successful schedule (work was found).
func (b *Backoff) Reset() {
	b.streak = 0
}
