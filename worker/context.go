package worker

import (
	"fmt"
	"sync"

	"github.com/go-foundations/parcelsched/action"
	"github.com/go-foundations/parcelsched/errs"
	"github.com/go-foundations/parcelsched/lco"
	"github.com/go-foundations/parcelsched/parcel"
)

// ThreadContext is the per-dispatch handle a running lightweight thread
// uses to reach back into its worker (spec §6's full application-facing
// surface). One is created the first time a Parcel's Stack starts and
// then lives for that Stack's whole lifetime, stashed on
// parcel.Stack.DriverCtx; whichever Worker currently drives the stack
// overwrites ctx.w immediately before each Resume, so a thread resumed on
// a different worker than the one that last ran it sees the right
// WorkerID without any actual thread-local storage.
type ThreadContext struct {
	w        *Worker
	p        *parcel.Parcel
	curAttrs action.Attrs
}

var _ action.Context = (*ThreadContext)(nil)

func (c *ThreadContext) WorkerID() int { return c.w.ID }

// TLSID lazily allocates a thread-local id the first time it's asked for,
// scoped to this Parcel's Stack for its lifetime (spec §6
// "thread_tls_id()").
func (c *ThreadContext) TLSID() uint64 {
	if c.p.Stack.TLSID == 0 {
		c.p.Stack.TLSID = c.w.sched.NextTLSID()
	}
	return c.p.Stack.TLSID
}

func (c *ThreadContext) CurrentTarget() parcel.Address { return c.p.Target }
func (c *ThreadContext) CurrentAction() action.ID       { return c.p.Action }
func (c *ThreadContext) CurrentCredit() parcel.Credit   { return c.p.Credit }

func (c *ThreadContext) CreditOutstanding() int64 { return c.w.sched.Detector().Outstanding() }

// SetAffinity pins future resumptions of the calling thread to a specific
// worker id, or clears the pin with parcel.NoAffinity.
func (c *ThreadContext) SetAffinity(workerID int) {
	c.p.Stack.Affinity = workerID
}

// Spawn implements the spawn policy from spec §4.B: interrupts run
// inline regardless of anything else; otherwise a lifo push unless the
// caller is itself eligible for a work-first handoff, in which case the
// caller is pushed and the child runs immediately on the same OS thread.
func (c *ThreadContext) Spawn(child *parcel.Parcel) error {
	w := c.w
	handler, attrs, ok := w.sched.Actions().Lookup(child.Action)
	if !ok {
		return errs.NewFatal("spawn", fmt.Errorf("unregistered action %q", child.Action))
	}
	w.Stats.Spawned++

	if attrs.Interrupt {
		w.runInterrupt(child, handler, attrs)
		return nil
	}

	canWorkFirst := w.sched.State() == StateRun &&
		!c.curAttrs.Interrupt &&
		c.p.Stack.LCODepth == 0 &&
		w.workFirst

	if !canWorkFirst {
		w.pushLocal(child)
		return nil
	}

	w.pushLocal(c.p)
	c.p.Stack.Report(parcel.Outcome{Kind: parcel.OutcomeRedirect, Next: child})
	c.p.Stack.Park()
	return nil
}

// Wait suspends the caller on cvar while lock is held (spec §4.B
// wait/schedule): push onto the waiter chain, report Parked so the
// driver returns to its schedule loop, release lock, then block until
// resumed, re-acquiring lock before returning.
func (c *ThreadContext) Wait(lock sync.Locker, cvar *lco.CVar) error {
	p := c.p
	cvar.PushWaiter(p)
	p.Stack.Report(parcel.Outcome{Kind: parcel.OutcomeParked})
	lock.Unlock()
	p.Stack.Park()
	lock.Lock()
	return cvar.Error()
}

// Yield gives up the processor voluntarily, landing at the back of the
// global yielded queue so it can't immediately re-select itself (spec
// §4.B yield, §5 "a yielder cannot starve itself").
func (c *ThreadContext) Yield() {
	w := c.w
	p := c.p
	w.sched.YieldedQueue().Enqueue(p)
	p.Stack.Report(parcel.Outcome{Kind: parcel.OutcomeParked})
	p.Stack.Park()
}

// Signal wakes exactly one waiter on cvar.
func (c *ThreadContext) Signal(cvar *lco.CVar) {
	if p := cvar.PopOne(); p != nil {
		c.w.sched.Deliver(p)
	}
}

// SignalAll wakes every waiter currently on cvar.
func (c *ThreadContext) SignalAll(cvar *lco.CVar) {
	c.w.dispatchWaiters(cvar.TakeAll())
}

// SignalError records err on cvar and wakes every waiter.
func (c *ThreadContext) SignalError(cvar *lco.CVar, err error) {
	cvar.SetError(err)
	c.w.dispatchWaiters(cvar.TakeAll())
}

// LCOSet merges value into l and, if that's the triggering set, routes
// l's detached waiter chain through the dispatcher.
func (c *ThreadContext) LCOSet(l *lco.LCO, value []byte) error {
	waiters, err := l.Set(value)
	if err != nil {
		return err
	}
	c.w.dispatchWaiters(waiters)
	return nil
}

// LCOSetError marks l failed and wakes everyone waiting on it.
func (c *ThreadContext) LCOSetError(l *lco.LCO, err error) {
	c.w.dispatchWaiters(l.SetError(err))
}

// LCOWait returns l's value immediately if already triggered, otherwise
// suspends the caller until it is (spec §8: "wait on an already-triggered
// LCO returns immediately without context switch").
func (c *ThreadContext) LCOWait(l *lco.LCO) ([]byte, error) {
	if v, ok, err := l.Get(); ok {
		return v, err
	}
	p := c.p
	if already := l.Attach(p); already {
		v, _, err := l.Get()
		return v, err
	}
	p.Stack.Report(parcel.Outcome{Kind: parcel.OutcomeParked})
	p.Stack.Park()
	v, _, err := l.Get()
	return v, err
}

// threadExitSignal is how ThreadContext.Exit unwinds out of a handler at
// any call depth without returning through it, the same role a longjmp
// back to the scheduler trampoline plays in the C ancestor (spec §9).
// runHandler's recover is the only place this is ever caught.
type threadExitSignal struct {
	result []byte
	err    error
}

// Exit ends the calling thread immediately with result/err (spec §6
// hpx_thread_exit). Never returns to its caller.
func (c *ThreadContext) Exit(result []byte, err error) {
	panic(threadExitSignal{result: result, err: err})
}

// ProcessExit ends the whole computation (spec §4.A exit). Like Exit, it
// unwinds via panic/recover rather than truly blocking forever: blocking
// the calling goroutine would also block whichever worker is driving it
// in WaitReport, which would never see the shutdown state it just
// triggered. Reporting Terminated (with no result — the process's output
// came from SetOutput, not this thread's return value) lets that worker
// finish cleanly and notice the shutdown on its next schedule pass.
func (c *ThreadContext) ProcessExit(output []byte) {
	c.w.sched.ProcessExit(c.p.Pid, output)
	panic(threadExitSignal{})
}

// dispatchWaiters hands each parcel in the chain (as returned by a CVar's
// TakeAll/PopOne) to the scheduler's delivery path: affinity-pinned
// waiters go to their pinned worker's mailbox, everyone else is spawned
// normally.
func (w *Worker) dispatchWaiters(head *parcel.Parcel) {
	for head != nil {
		next := head.Next
		head.Next = nil
		w.sched.Deliver(head)
		head = next
	}
}
