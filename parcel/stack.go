package parcel

import "github.com/go-foundations/parcelsched/errs"

// Stack is the user-level thread header from spec §3. The spec's C
// ancestor gives each Stack a raw memory region plus an arch-specific
// assembly primitive that swaps the machine's stack pointer directly onto
// it (spec §9, "Hand-rolled context switching in platform asm"). Go gives
// user code no access to its own stack pointer, so this repo substitutes
// the one primitive Go *does* expose for "a separately resumable flow of
// control with its own call stack": a goroutine, parked and woken via a
// pair of unbuffered channels instead of a saved/restored SP.
//
// A Stack's goroutine (started by Start) runs exactly one user-level
// thread for its lifetime. It is parked — blocked receiving on resumeCh —
// whenever the thread is not the one actively running, and it reports
// exactly once per dispatch on reportCh: either the thread terminated, it
// voluntarily parked (wait/yield), or — the work-first case — it names
// the very next parcel that must run before control returns to the
// normal schedule loop (see worker.Worker.enter).
//
// This substitution preserves every invariant spec §5 states about
// Stacks: exactly one goroutine is ever unblocked per worker at a time
// (enforced by the blocking channel protocol, not by OS-thread identity),
// a parked Stack is reachable from exactly one place (whatever queue or
// CVar holds its Parcel), and resuming it never reallocates memory — only
// Reinit's field reset runs, same as the spec's freelist reuse.
type Stack struct {
	Size     int
	Owner    *Parcel
	Next     *Stack // freelist / intrusive link
	LCODepth int    // >0 while holding an LCO lock; blocks non-Wait suspension
	TLSID    uint64 // lazily allocated, 0 means unallocated
	Affinity int    // -1 means no soft affinity

	// DriverCtx is an opaque per-stack handle owned by whichever package
	// drives dispatch (worker.ThreadContext). Parcel cannot import worker
	// without creating a cycle, so this is deliberately untyped; only the
	// worker package ever sets or reads it.
	DriverCtx any

	resumeCh chan struct{}
	reportCh chan Outcome
	started  bool
}

// NoAffinity is the sentinel meaning "no soft affinity" (spec §9 open
// question: "-1 as no affinity").
const NoAffinity = -1

// NewStack allocates a Stack header of the given size. Real memory isn't
// reserved (Go goroutines grow their own stacks on demand); Size is kept
// purely for accounting/metrics parity with the spec.
func NewStack(size int) *Stack {
	return &Stack{
		Size:     size,
		Affinity: NoAffinity,
		resumeCh: make(chan struct{}),
		reportCh: make(chan Outcome),
	}
}

// Reinit resets a Stack pulled from a worker's freelist for reuse,
// without reallocating the header or its channels (spec §4.B: "Reuse
// re-initializes the header without reallocating memory").
func (s *Stack) Reinit() {
	s.Owner = nil
	s.Next = nil
	s.LCODepth = 0
	s.TLSID = 0
	s.Affinity = NoAffinity
	s.DriverCtx = nil
	s.started = false
}

// Bind attaches p to s and s to p — the mandatory back-reference pair
// from spec §3.
func (s *Stack) Bind(p *Parcel) {
	s.Owner = p
	p.Stack = s
}

// Start launches the goroutine that will run fn exactly once for this
// Stack's lifetime (spec: "first transfer lands inside
// ExecuteUserThread(p)"). Must be called at most once per bind.
func (s *Stack) Start(fn func()) {
	s.started = true
	go fn()
}

// Started reports whether this Stack's goroutine has already been
// launched — the resume-vs-bind branch in worker.Worker.enter.
func (s *Stack) Started() bool { return s.started }

// Resume wakes a parked goroutine; called by whoever is handing this
// Stack the turn (a fresh pop off a deque, a mailbox delivery, a CVar
// signal). Blocks until the goroutine is actually listening, which it
// always is immediately after reporting — this is the channel-level
// equivalent of "switch the stack pointer to to.stack.sp".
func (s *Stack) Resume() {
	s.resumeCh <- struct{}{}
}

// Park blocks the calling goroutine — which must be this Stack's own —
// until Resume is called on it. This is where a suspended user-level
// thread's Go call stack actually sits idle, the direct analogue of a
// checkpointed native stack pointer.
func (s *Stack) Park() {
	<-s.resumeCh
}

// Report delivers this Stack's one outcome for the current dispatch.
// Sent by the goroutine running fn (passed to Start); received by
// whoever is driving this Stack (worker.Worker.enter, possibly several
// frames deep through chained work-first redirects).
func (s *Stack) Report(o Outcome) {
	s.reportCh <- o
}

// WaitReport blocks until this Stack's goroutine reports an Outcome for
// the current dispatch.
func (s *Stack) WaitReport() Outcome {
	return <-s.reportCh
}

// OutcomeKind distinguishes the three ways a dispatch can end.
type OutcomeKind int

const (
	// OutcomeTerminated: the thread ran hpx_thread_exit; Status/Result/Err
	// carry its return.
	OutcomeTerminated OutcomeKind = iota
	// OutcomeParked: the thread suspended (wait/yield/LCO wait) — the
	// driver should go back to the normal schedule loop.
	OutcomeParked
	// OutcomeRedirect: a work-first spawn from inside this thread — the
	// driver must directly dispatch Next before returning to schedule().
	OutcomeRedirect
)

// Outcome is what a Stack's goroutine reports after every dispatch.
type Outcome struct {
	Kind   OutcomeKind
	Status errs.Status
	Result []byte
	Err    error
	Next   *Parcel // valid only when Kind == OutcomeRedirect
}
