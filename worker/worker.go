// Package worker implements spec §4.B: the per-OS-thread scheduling loop
// ("the worker main loop"), its spawn policy, the stack freelist, and the
// ThreadContext adapter that lets action handlers drive all of the above
// without importing this package.
//
// The teacher's workerpool.go runs a fixed Processor over a shared job
// channel per worker goroutine; there's no per-task suspension or
// re-entry, so nothing here is a line-by-line port of it. What is kept
// from the teacher is the shape: one goroutine per logical worker, each
// owning its own queue, with a tight poll-or-steal loop and a shutdown
// signal checked every iteration.
package worker

import (
	"github.com/go-foundations/parcelsched/action"
	"github.com/go-foundations/parcelsched/gas"
	"github.com/go-foundations/parcelsched/internal/idle"
	"github.com/go-foundations/parcelsched/internal/obslog"
	"github.com/go-foundations/parcelsched/internal/xrand"
	"github.com/go-foundations/parcelsched/parcel"
	"github.com/go-foundations/parcelsched/queue"
	"github.com/go-foundations/parcelsched/trace"
)

// Stats are the per-worker counters the scenario tests and examples read
// back (spec §8: "reported worker-thread count", "expect >= 2 steals").
type Stats struct {
	StacksAllocated int64
	StacksTrimmed   int64
	Steals          int64
	Spawned         int64
	Terminated      int64
}

// Scheduler is the subset of scheduler.Scheduler a Worker needs, kept as
// an interface so this package never imports scheduler (scheduler already
// imports worker to build its worker slice; the reverse would cycle).
type Scheduler interface {
	Actions() *action.Table
	GAS() *gas.Heap
	Trace() trace.Sink
	Workers() []*Worker
	YieldedQueue() *queue.TwoLock[*parcel.Parcel]
	Detector() *parcel.Detector
	State() int32
	StackSize() int
	StackCacheLimit() int
	WorkFirstThreshold() int
	Deliver(p *parcel.Parcel)
	Relaunch(p *parcel.Parcel)
	LaunchLocal(p *parcel.Parcel)
	ProcessExit(pid int, output []byte)
	NextTLSID() uint64
}

// Run-state constants mirrored from scheduler to avoid an import; both
// sets are declared with iota in the same order, which is the only thing
// keeping them in lockstep.
const (
	StateRun = iota
	StateStop
	StateShutdown
)

// Worker is one native OS-thread-equivalent scheduling loop (spec §3):
// its own lifo work-stealing deque, its own mailbox, a private stack
// freelist, and the seeded PRNG used for the yielded-vs-steal coin flip
// and steal-victim selection (spec §4.C "random victim selection").
type Worker struct {
	ID      int
	sched   Scheduler
	rng     *xrand.Source
	deque   *queue.Deque[*parcel.Parcel]
	mailbox *queue.TwoLock[*parcel.Parcel]
	log     obslog.Logger

	freeHead  *parcel.Stack
	freeCount int
	trimCh    chan *parcel.Stack

	workFirst bool
	backoff   idle.Backoff

	Stats Stats
}

// New builds a Worker. sched is retained for deque/mailbox peer lookups,
// action dispatch, and state polling.
func New(id int, sched Scheduler, logger obslog.Logger) *Worker {
	return &Worker{
		ID:      id,
		sched:   sched,
		rng:     xrand.New(xrand.NextSeed()),
		deque:   queue.NewDeque[*parcel.Parcel](32),
		mailbox: queue.NewTwoLock[*parcel.Parcel](),
		log:     logger.With(id),
		trimCh:  make(chan *parcel.Stack, 64),
	}
}

// Mailbox exposes the worker's inbound queue so Scheduler.Deliver can
// route affinity-pinned parcels to it (spec §4.B "soft affinity").
func (w *Worker) Mailbox() *queue.TwoLock[*parcel.Parcel] { return w.mailbox }

// Deque exposes the worker's own deque so peers can steal from it (spec
// §4.C) — the only cross-worker access this package performs.
func (w *Worker) Deque() *queue.Deque[*parcel.Parcel] { return w.deque }

// Run is the worker main loop (spec §4.B): schedule picks the next
// parcel, enter drives it (and anything it work-first-redirects into)
// until control returns here. Runs until schedule reports shutdown.
func (w *Worker) Run() {
	go w.trimLoop()
	for {
		p, shutdown := w.schedule()
		if shutdown {
			return
		}
		w.enter(p)
	}
}

// schedule implements spec §4.B's exact step order: drain mail onto the
// own deque, pop own deque (lifo), then a 50/50 choice between the global
// yielded queue and stealing, falling back to the other if the first
// pick is empty, then an idle backoff before retrying.
//
// Once the scheduler leaves RUN, new mail stops being pulled in (anything
// delivered after shutdown was already rejected at the Spawn/Deliver
// boundary, but this is the second line of defense) and no further steal
// or yielded-queue pickup happens — only whatever is already sitting on
// this worker's own deque still gets to run out, matching
// Scheduler.Stop's documented drain behavior.
func (w *Worker) schedule() (*parcel.Parcel, bool) {
	for {
		shuttingDown := false
		switch w.sched.State() {
		case StateShutdown, StateStop:
			shuttingDown = true
		}

		if !shuttingDown {
			w.mailbox.DrainInto(func(p *parcel.Parcel) { w.deque.Push(p) })
		}

		if p, ok := w.deque.Pop(); ok {
			w.workFirst = false
			w.backoff.Reset()
			return p, false
		}

		if shuttingDown {
			return nil, true
		}

		var p *parcel.Parcel
		var ok bool
		if w.rng.CoinFlip() {
			p, ok = w.sched.YieldedQueue().Dequeue()
			if !ok {
				p, ok = w.stealFrom()
			}
		} else {
			p, ok = w.stealFrom()
			if !ok {
				p, ok = w.sched.YieldedQueue().Dequeue()
			}
		}
		if ok {
			w.backoff.Reset()
			return p, false
		}

		w.backoff.Sleep()
	}
}

// stealFrom tries every peer worker once, starting from a random offset,
// and returns the first successful steal (spec §4.C: "thieves pick a
// random victim").
func (w *Worker) stealFrom() (*parcel.Parcel, bool) {
	peers := w.sched.Workers()
	n := len(peers)
	if n <= 1 {
		return nil, false
	}
	start := w.rng.Intn(n)
	for i := 0; i < n; i++ {
		victim := peers[(start+i)%n]
		if victim.ID == w.ID {
			continue
		}
		if p, ok := victim.deque.Steal(); ok {
			if s := p.Stack; s != nil && s.Affinity != parcel.NoAffinity {
				if pinned := ((s.Affinity % n) + n) % n; pinned != w.ID {
					// Pinned to another worker: route it back to that
					// worker's mailbox instead of running it here.
					w.sched.Deliver(p)
					continue
				}
			}
			w.Stats.Steals++
			w.sched.Trace().Append(trace.ClassSteal, "",
				trace.F("from", victim.ID), trace.F("to", w.ID))
			return p, true
		}
	}
	return nil, false
}

// pushLocal lifo-pushes p onto this worker's own deque and updates the
// work_first flag (spec §4.B "set after each lifo push whenever deque
// depth exceeds the configured threshold").
func (w *Worker) pushLocal(p *parcel.Parcel) {
	w.deque.Push(p)
	if w.deque.Size() > w.sched.WorkFirstThreshold() {
		w.workFirst = true
	}
}

// bindStack gives p a Stack, reusing one from the freelist if available
// (spec §4.B "Stack cache"). Called only from enter, the single place
// that ever starts a parcel's goroutine for the first time.
func (w *Worker) bindStack(p *parcel.Parcel) {
	var s *parcel.Stack
	if w.freeHead != nil {
		s = w.freeHead
		w.freeHead = s.Next
		w.freeCount--
		s.Reinit()
	} else {
		s = parcel.NewStack(w.sched.StackSize())
		w.Stats.StacksAllocated++
		w.log.Stack("alloc", w.freeCount)
	}
	s.Bind(p)
}

// freeStack returns p's Stack to the freelist, trimming if the cache has
// grown past its configured limit.
func (w *Worker) freeStack(p *parcel.Parcel) {
	s := p.Stack
	if s == nil {
		return
	}
	p.Stack = nil
	s.Owner = nil
	s.Next = w.freeHead
	w.freeHead = s
	w.freeCount++
	if w.freeCount > w.sched.StackCacheLimit() {
		w.trimStackCache()
	}
}

// trimStackCache hands excess freelist entries to the async trim
// goroutine instead of dropping them inline (spec §9 supplemented
// feature: "ran this asynchronously on a dedicated housekeeping goroutine
// per worker rather than inline in the free path"). Ownership of each
// Stack transfers across trimCh; only trimLoop touches it afterward, so
// the freelist itself stays single-owner.
func (w *Worker) trimStackCache() {
	target := w.sched.StackCacheLimit() / 2
	for w.freeCount > target && w.freeHead != nil {
		s := w.freeHead
		w.freeHead = s.Next
		w.freeCount--
		select {
		case w.trimCh <- s:
		default:
			// trimmer is behind; let the GC reclaim this one directly.
		}
	}
}

// trimLoop drains trimCh for the lifetime of the worker. There is
// nothing to actually free (a Stack header is just Go heap memory, and
// its goroutine has already returned by the time it reaches the
// freelist), so this exists to keep the accounting and logging for stack
// churn off the hot scheduling path, not to release OS resources.
func (w *Worker) trimLoop() {
	for s := range w.trimCh {
		_ = s
		w.Stats.StacksTrimmed++
		w.log.Stack("trim", w.freeCount)
	}
}

// enter dispatches p: binding a stack if this is its first run, resuming
// it otherwise, then blocking for its Outcome. A Redirect outcome (a
// work-first spawn from inside p) is driven immediately, recursively,
// without returning to the caller's schedule loop — exactly the "transfer
// directly, do not re-enter the scheduler" behavior spec §4.B describes
// for work-first handoffs.
func (w *Worker) enter(p *parcel.Parcel) {
	if p.Stack == nil {
		w.bindStack(p)
	}

	if !p.Stack.Started() {
		ctx := &ThreadContext{w: w, p: p}
		p.Stack.DriverCtx = ctx
		p.Stack.Start(func() { w.runHandler(p, ctx) })
	} else {
		ctx, _ := p.Stack.DriverCtx.(*ThreadContext)
		if ctx != nil {
			ctx.w = w
		}
		p.Stack.Resume()
	}

	outcome := p.Stack.WaitReport()
	switch outcome.Kind {
	case parcel.OutcomeTerminated:
		w.handleTermination(p, outcome)
	case parcel.OutcomeParked:
		// The goroutine is suspended elsewhere (a queue, a mailbox, a
		// CVar); nothing more for this dispatch.
	case parcel.OutcomeRedirect:
		w.enter(outcome.Next)
	}
}
