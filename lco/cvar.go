// Package lco implements spec §4.D: Local Control Objects (synchronizers)
// and the condition-variable waiter list every LCO owns. Only the
// future/and contracts are required for scheduler correctness per spec;
// user/reduce/dataflow/gencount are supplemented here (SPEC_FULL) so the
// full variant list named in spec §4.D has somewhere to live, with
// dataflow left intentionally unspecified per spec §9's open question.
package lco

import "github.com/go-foundations/parcelsched/parcel"

// CVar is the condition-variable chain described in spec §3: "head
// pointer to a singly-linked list of suspended Parcels, plus an error
// slot." It is never locked on its own — whichever LCO embeds it holds
// that LCO's lock across every CVar operation, per spec §5's discipline
// ("LCOs own their CVar queues while holding the LCO lock").
type CVar struct {
	head *parcel.Parcel
	err  error
}

// PushWaiter links p onto the front of the waiter chain via p.Next, the
// same intrusive link Parcel uses for stack freelists (spec §3).
func (c *CVar) PushWaiter(p *parcel.Parcel) {
	p.Next = c.head
	c.head = p
}

// PopOne detaches and returns just the head waiter, for spec §4.B's plain
// signal (wake one) as distinct from signal_all (wake everyone).
func (c *CVar) PopOne() *parcel.Parcel {
	p := c.head
	if p == nil {
		return nil
	}
	c.head = p.Next
	p.Next = nil
	return p
}

// TakeAll atomically (under the caller's LCO lock) detaches the entire
// waiter chain and returns its head; the CVar is left empty. Spec §4.B
// signal/signal_all: "atomic extraction of the waiter list."
func (c *CVar) TakeAll() *parcel.Parcel {
	h := c.head
	c.head = nil
	return h
}

// SetError records an error to be observed by every waiter resumed after
// it (spec §4.B signal_error).
func (c *CVar) SetError(err error) { c.err = err }

// Error returns the CVar's recorded error, if any.
func (c *CVar) Error() error { return c.err }

// Reset clears the waiter chain and error slot. Spec §8 "Idempotent
// reset": calling this after every waiter has already been signalled
// yields an (already) empty waiter list, so Reset is safe to call
// unconditionally.
func (c *CVar) Reset() {
	c.head = nil
	c.err = nil
}

// Empty reports whether the waiter chain currently holds anyone.
func (c *CVar) Empty() bool { return c.head == nil }
