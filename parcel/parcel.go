// Package parcel defines the scheduler's unit of dispatch (spec §3) and
// the user-level stack it may be bound to (spec §3 "Stack"). The two live
// in one package because they hold mandatory back-references to each
// other (a bound Parcel points at its Stack; a Stack's header points back
// at the Parcel that owns it), which Go can't express across a package
// boundary without an interface indirection neither side needs.
package parcel

// Address is a target location a Parcel is destined for. It is opaque to
// the scheduler; only the action table and GAS layer interpret it.
type Address uint64

// ActionID is a stable action identifier. Defined here rather than in
// package action so that action (which needs Parcel/Address/Credit for
// its Context interface) can depend on parcel without parcel depending
// back on action; action.ID is a type alias for this.
type ActionID string

// Continuation names where and what to run next with a thread's result.
type Continuation struct {
	Target Address
	Action ActionID
	Set    bool // false means "no continuation": credit returns to the process
}

// Parcel is the task-control-block described in spec §3: a target,
// an action, arguments, optional continuation, credit, and an optional
// owned Stack. A Parcel with a nil Stack is an interrupt: spec §4.B runs
// it inline on the current stack rather than context-switching.
//
// Invariant (spec §3): a Parcel is reachable from exactly one of {a
// worker's deque, a worker's mailbox, the global yielded queue, a CVar's
// waiter list, a worker's `current`, in flight to the network} at any
// moment. This package doesn't enforce that — the owning worker/scheduler
// code does, by construction of how it moves Parcels between those
// structures — but every mutation point in this repo that hands a Parcel
// off comments which of those states it's entering.
type Parcel struct {
	Target Address
	Action ActionID
	Pid    int // originating locality/rank, for credit recovery bookkeeping
	Credit Credit

	Cont Continuation

	Args []byte

	// Stack is nil for an interrupt. Bound lazily by the worker the first
	// time a non-interrupt Parcel is about to run (spec §3: "Created when
	// a non-interrupt Parcel is first bound").
	Stack *Stack

	// Next chains Parcels intrusively: worker stack-freelists and CVar
	// waiter lists both use it instead of a separate list node, exactly
	// as spec §3 specifies ("Intrusive next pointer for single-linked
	// stacks").
	Next *Parcel

	// TraceID is populated lazily the first time a non-noop trace.Sink is
	// installed; empty string means "no tracing for this parcel".
	TraceID string

	// result/err hold what a thread returned via hpx_thread_continue
	// before its continuation parcel (if any) is built. Not touched once
	// the parcel has terminated and its continuation has launched.
	Result []byte
	Err    error
}

// New creates a parcel with no continuation and no stack (an interrupt
// until a Stack is bound).
func New(target Address, act ActionID, args []byte) *Parcel {
	return &Parcel{Target: target, Action: act, Args: args}
}

// WithContinuation sets the continuation target/action and returns the
// same parcel, mirroring the teacher's fluent WithProcessor/AddJobs style
// in workerpool.go.
func (p *Parcel) WithContinuation(target Address, act ActionID) *Parcel {
	p.Cont = Continuation{Target: target, Action: act, Set: true}
	return p
}

// WithCredit assigns c to the parcel and returns it.
func (p *Parcel) WithCredit(c Credit) *Parcel {
	p.Credit = c
	return p
}

// IsInterrupt reports whether p has no bound stack — it runs to
// completion on the caller's current stack rather than being
// context-switched onto its own (spec glossary: "Interrupt").
func (p *Parcel) IsInterrupt() bool {
	return p.Stack == nil
}

// Reset clears a Parcel so it can be reused by a caller maintaining its
// own free list (the core scheduler doesn't pool Parcels, only Stacks —
// see Worker's stack cache — but tests do).
func (p *Parcel) Reset() {
	*p = Parcel{}
}
