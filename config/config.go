// Package config holds the scheduler's tunables, read once at
// construction (spec §6: "Config: reads sched.stack_cache_limit,
// sched.wf_threshold, sched.stack_size"). Modeled directly on the
// teacher's Config/DefaultConfig pair in workerpool.go: a plain struct
// with a constructor that clamps nonsensical values rather than erroring.
package config

import (
	"runtime"

	"github.com/go-foundations/parcelsched/internal/obslog"
)

// Config carries every tunable the scheduler, worker, and stack cache
// read. CLI/env parsing into a Config is explicitly out of scope (spec
// Non-goals); callers build one programmatically.
type Config struct {
	// NumWorkers is the number of native OS threads running the scheduler
	// loop. Defaults to runtime.GOMAXPROCS(0).
	NumWorkers int

	// StackSize is the size in bytes of each user-level stack's backing
	// region. Default matches spec §3's "default ≈32 KiB".
	StackSize int

	// StackCacheLimit is the maximum number of free stacks a single
	// worker retains before trimming (spec §4.B "Stack cache").
	StackCacheLimit int

	// WorkFirstThreshold is the lifo deque depth above which a worker
	// sets its work_first flag after a push (spec §4.B "Spawn policy").
	WorkFirstThreshold int

	// SPMD selects the startup/exit fan-out semantics in §4.A: when true,
	// Scheduler.Start publishes the startup parcel on every simulated
	// locality and Scheduler.Exit performs a fan-in/fan-out barrier
	// instead of a single broadcast.
	SPMD bool

	// Localities is the number of simulated localities participating in
	// an SPMD epoch. Ignored when SPMD is false.
	Localities int

	// Logger receives scheduler lifecycle events. Defaults to a
	// discarding logger.
	Logger obslog.Logger
}

const (
	defaultStackSize         = 32 * 1024
	defaultStackCacheLimit   = 64
	defaultWorkFirstThreshold = 4
)

// Default returns a Config with the same "sensible defaults, clamped on
// construction" shape as the teacher's DefaultConfig.
func Default() Config {
	c := Config{
		NumWorkers:         runtime.GOMAXPROCS(0),
		StackSize:          defaultStackSize,
		StackCacheLimit:    defaultStackCacheLimit,
		WorkFirstThreshold: defaultWorkFirstThreshold,
		Logger:             obslog.Discard(),
	}
	return c.clamped()
}

// clamped returns a copy with invalid fields replaced by defaults, the
// same pattern NewWithConfig uses in the teacher's workerpool.go.
func (c Config) clamped() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.StackSize <= 0 {
		c.StackSize = defaultStackSize
	}
	if c.StackCacheLimit < 0 {
		c.StackCacheLimit = defaultStackCacheLimit
	}
	if c.WorkFirstThreshold <= 0 {
		c.WorkFirstThreshold = defaultWorkFirstThreshold
	}
	if c.SPMD && c.Localities <= 0 {
		c.Localities = 1
	}
	return c
}

// With applies clamping to a user-constructed Config; call before passing
// to scheduler.New.
func (c Config) With() Config { return c.clamped() }
