package worker

import (
	"fmt"

	"github.com/go-foundations/parcelsched/action"
	"github.com/go-foundations/parcelsched/errs"
	"github.com/go-foundations/parcelsched/gas"
	"github.com/go-foundations/parcelsched/parcel"
	"github.com/go-foundations/parcelsched/trace"
)

// tryPin attempts the GAS pin a Pinned action's lifetime requires (spec
// §6 "GAS: try_pin(addr) -> local_pointer?"), reporting a Resend outcome
// on failure instead of ever running the handler against an address that
// was never actually pinned.
func (w *Worker) tryPin(p *parcel.Parcel, attrs action.Attrs) (ok bool, outcome parcel.Outcome) {
	if !attrs.Pinned {
		return true, parcel.Outcome{}
	}
	if _, pinned := w.sched.GAS().TryPin(gas.Address(p.Target)); !pinned {
		return false, parcel.Outcome{Kind: parcel.OutcomeTerminated, Status: errs.Resend, Err: errs.ErrResend}
	}
	return true, parcel.Outcome{}
}

// runHandler is what every non-interrupt Stack's goroutine actually
// runs. It always reports exactly once (spec §3's invariant for
// reportCh): normal completion and an explicit ctx.Exit both funnel
// through the same Outcome{Kind: Terminated} report.
func (w *Worker) runHandler(p *parcel.Parcel, ctx *ThreadContext) {
	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(threadExitSignal)
			if !ok {
				panic(r)
			}
			p.Stack.Report(parcel.Outcome{
				Kind:   parcel.OutcomeTerminated,
				Status: errs.StatusOf(sig.err),
				Result: sig.result,
				Err:    sig.err,
			})
		}
	}()

	handler, attrs, ok := w.sched.Actions().Lookup(p.Action)
	if !ok {
		err := errs.NewFatal("dispatch", fmt.Errorf("unregistered action %q", p.Action))
		p.Stack.Report(parcel.Outcome{Kind: parcel.OutcomeTerminated, Status: errs.Error, Err: err})
		return
	}
	ctx.curAttrs = attrs

	if pinned, resend := w.tryPin(p, attrs); !pinned {
		p.Stack.Report(resend)
		return
	}

	result, err := handler(ctx, p.Args)
	p.Stack.Report(parcel.Outcome{
		Kind:   parcel.OutcomeTerminated,
		Status: errs.StatusOf(err),
		Result: result,
		Err:    err,
	})
}

// runInterrupt executes an interrupt action's handler inline on the
// calling goroutine — no Stack, no context switch (spec §3 "Interrupt")
// — then runs the same termination housekeeping a context-switched
// thread gets.
func (w *Worker) runInterrupt(p *parcel.Parcel, handler action.Handler, attrs action.Attrs) {
	ctx := &ThreadContext{w: w, p: p, curAttrs: attrs}

	if pinned, resend := w.tryPin(p, attrs); !pinned {
		w.handleTermination(p, resend)
		return
	}

	result, err := w.callInline(ctx, p, handler)
	w.handleTermination(p, parcel.Outcome{
		Kind:   parcel.OutcomeTerminated,
		Status: errs.StatusOf(err),
		Result: result,
		Err:    err,
	})
}

// callInline runs handler and recovers a ctx.Exit panic exactly like
// runHandler's defer does, since an interrupt has no reportCh to send
// the recovered signal over.
func (w *Worker) callInline(ctx *ThreadContext, p *parcel.Parcel, handler action.Handler) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(threadExitSignal)
			if !ok {
				panic(r)
			}
			result, err = sig.result, sig.err
		}
	}()
	return handler(ctx, p.Args)
}

// handleTermination is spec §4.B's "Thread termination" step, run by
// whichever worker's enter is currently dispatching p (not
// necessarily the one that originally started it): unpin any GAS
// address, rewrite the continuation on an LCOError, launch the
// continuation or recover credit, and return the stack to the freelist.
func (w *Worker) handleTermination(p *parcel.Parcel, outcome parcel.Outcome) {
	_, attrs, _ := w.sched.Actions().Lookup(p.Action)
	if attrs.Pinned {
		w.sched.GAS().Unpin(gas.Address(p.Target))
	}

	if p.TraceID == "" && trace.Enabled(w.sched.Trace()) {
		p.TraceID = trace.NewID()
	}
	w.sched.Trace().Append(trace.ClassParcel, p.TraceID,
		trace.F("event", "terminate"), trace.F("status", outcome.Status.String()))

	if outcome.Status == errs.Resend {
		w.freeStack(p)
		p.Result, p.Err = nil, nil
		w.sched.Relaunch(p)
		return
	}

	if outcome.Status == errs.LCOError && p.Cont.Set {
		p.Cont.Action = lcoErrorAction
	}

	w.Stats.Terminated++

	if p.Cont.Set {
		child := parcel.New(p.Cont.Target, p.Cont.Action, outcome.Result)
		child.Pid = p.Pid
		child.Credit = p.Credit
		p.Credit = 0
		w.sched.LaunchLocal(child)
	} else {
		w.sched.Detector().Recover(p.Credit)
		p.Credit = 0
	}

	w.freeStack(p)
}

// lcoErrorAction is the well-known action id a terminated thread's
// continuation is rewritten to on an LCOError status (spec §4.B). It is
// not registered by this package — an application wiring LCOError
// handling registers it, the same way the C ancestor's runtime resolves
// a fixed lco_error action id.
const lcoErrorAction action.ID = "sched.lco_error"
