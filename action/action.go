// Package action is the consumed-not-owned "action table" interface from
// spec §6: lookup by action id returns a handler plus attribute bits. Its
// internals (registration bookkeeping, wire-format of ids) are explicitly
// out of scope; this package supplies just enough of a table that the
// scheduler core and its tests have something to register against and
// call through.
package action

import (
	"fmt"
	"sync"

	"github.com/go-foundations/parcelsched/lco"
	"github.com/go-foundations/parcelsched/parcel"
)

// ID is a stable action identifier. The real runtime packs this into
// 16/32 bits on the wire; in-process we just use a string for readability
// in examples and tests. Aliased to parcel.ActionID so a Parcel's Action
// field and an action.Table's keys are the same type without action and
// parcel importing each other.
type ID = parcel.ActionID

// Attrs are the attribute bits consumed by the worker's spawn/exit logic.
type Attrs struct {
	Pinned     bool // target GAS address must be pinned for the action's lifetime
	Marshalled bool // arguments are a marshalled byte buffer, not inline
	Vectored   bool // arguments are a scatter/gather list (unused by the core)
	Interrupt  bool // runs to completion on the caller's stack, no context switch
	Internal   bool // scheduler-internal action (continuations, lco errors)
}

// Handler is the function invoked when a parcel carrying this action's id
// is run. ctx is the lightweight thread's handle into the worker that is
// currently executing it.
type Handler func(ctx Context, args []byte) (ret []byte, err error)

// Context is the full surface spec §6 exposes to application code,
// satisfied by worker.ThreadContext without action importing worker
// (which would cycle back through action.Table).
type Context interface {
	WorkerID() int
	TLSID() uint64

	// CurrentTarget and friends mirror hpx_thread_current_*: the running
	// parcel's identity, without exposing the parcel itself for mutation.
	CurrentTarget() parcel.Address
	CurrentAction() ID
	CurrentCredit() parcel.Credit

	// CreditOutstanding reports how many of the process's TotalCredit
	// units remain unrecovered (spec §9 credit-based termination
	// detection): zero means every parcel spawned so far that carries no
	// continuation has already terminated.
	CreditOutstanding() int64

	// Spawn launches child per the worker's spawn policy (spec §4.B):
	// lifo push, inline run for interrupt actions, or a work-first
	// transfer once the worker's deque has grown past its threshold.
	Spawn(child *parcel.Parcel) error

	// Wait suspends the caller on cvar while lock is held, re-acquiring
	// lock before returning (spec §4.B wait/schedule).
	Wait(lock sync.Locker, cvar *lco.CVar) error
	// Yield voluntarily gives up the processor, landing at the back of
	// the global yielded queue (spec §4.B yield).
	Yield()
	// SetAffinity pins future resumptions of the calling thread's stack
	// to a specific worker (spec §3 Stack.affinity; -1 clears it).
	SetAffinity(workerID int)

	// Signal/SignalAll/SignalError wake waiters queued on a raw CVar.
	Signal(cvar *lco.CVar)
	SignalAll(cvar *lco.CVar)
	SignalError(cvar *lco.CVar, err error)

	// LCOSet/LCOSetError/LCOWait are the LCO-level conveniences used by
	// futures, and-gates, reduces and user LCOs: Set routes the detached
	// waiter chain through the worker's dispatcher, Wait suspends if the
	// LCO hasn't triggered yet and resumes with its value.
	LCOSet(l *lco.LCO, value []byte) error
	LCOSetError(l *lco.LCO, err error)
	LCOWait(l *lco.LCO) ([]byte, error)

	// Exit ends the calling thread early with result/err, equivalent to
	// hpx_thread_exit called before falling off the end of the handler.
	// Never returns.
	Exit(result []byte, err error)
	// ProcessExit ends the whole computation (spec §4.A exit). Never
	// returns.
	ProcessExit(output []byte)
}

// entry bundles a handler with its attributes.
type entry struct {
	fn    Handler
	attrs Attrs
}

// Table is a simple map-backed action registry. A single Table is
// normally shared by every worker in a Scheduler. It holds no lock:
// concurrent Lookups are safe with each other, but Register and
// MustRegister are not synchronized with Lookup or with each other.
type Table struct {
	entries map[ID]entry
}

// NewTable creates an empty action table.
func NewTable() *Table {
	return &Table{entries: make(map[ID]entry)}
}

// Register adds a handler under id. Registering the same id twice is a
// programming error and returns an error rather than silently replacing
// the handler (action-table registration internals are out of scope, but
// double-registration is still a bug worth surfacing).
func (t *Table) Register(id ID, fn Handler, attrs Attrs) error {
	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("action: %q already registered", id)
	}
	t.entries[id] = entry{fn: fn, attrs: attrs}
	return nil
}

// MustRegister panics on error; convenient for package-level init in
// example binaries where a duplicate id is always a coding mistake.
func (t *Table) MustRegister(id ID, fn Handler, attrs Attrs) {
	if err := t.Register(id, fn, attrs); err != nil {
		panic(err)
	}
}

// Lookup returns the handler and attributes registered under id.
func (t *Table) Lookup(id ID) (Handler, Attrs, bool) {
	e, ok := t.entries[id]
	if !ok {
		return nil, Attrs{}, false
	}
	return e.fn, e.attrs, true
}
