// Package xrand gives each worker its own seeded PRNG source, the Go
// analogue of the per-worker rand_r seed in spec.md §4.B ("With 50%
// probability (per-worker rand_r seed) try yielded-queue first...").
//
// golang.org/x/exp/rand is used instead of math/rand/v2 because its
// algorithm is frozen (unlike math/rand's, which the standard library
// reserves the right to change between releases): two workers seeded with
// the same value reproduce the same coin-flip and victim-selection
// sequence across Go versions.
package xrand

import (
	"sync"

	"golang.org/x/exp/rand"
)

// Source is a per-worker PRNG. Not safe for concurrent use — each Worker
// owns exactly one, matching the "per-worker seed" ownership in §3.
type Source struct {
	rng *rand.Rand
}

// New creates a Source seeded deterministically from seed. worker.New
// seeds each Worker from NextSeed, so a worker's seed depends on how many
// seeds the process has handed out before it.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// CoinFlip reports true with 50% probability — the schedule-step-3 choice
// between trying the yielded queue first or stealing first.
func (s *Source) CoinFlip() bool {
	return s.rng.Uint32()&1 == 0
}

// Intn returns a pseudo-random number in [0,n). Used to pick a steal
// victim uniformly among the other workers.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// seedCounter hands out distinct default seeds when the caller doesn't
// want to plumb one through explicitly (e.g. ad-hoc tests).
var (
	seedMu      sync.Mutex
	seedCounter uint64 = 1
)

// NextSeed returns a process-wide monotonically increasing seed.
func NextSeed() uint64 {
	seedMu.Lock()
	defer seedMu.Unlock()
	seedCounter++
	return seedCounter
}
