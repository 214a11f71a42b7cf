package parcel

import "sync"

// Credit implements the credit-recovery scheme sketched in spec §9:
// "Credit-based termination detection embedded in parcels... operations
// are split(n), recover(). Credit is not a synchronization primitive — no
// need for atomics on it." Ownership of a Credit always moves with its
// Parcel; it is read and written only by whichever worker currently holds
// that parcel, so a plain int64 is correct without any locking.
//
// The process starts holding all of it (TotalCredit units, conventionally
// handed entirely to the root parcel at Scheduler.Start). Every split
// divides the caller's credit among the new children, preserving the sum;
// every Recover hands units back to a process-wide Detector. Termination
// is detected once every outstanding unit has been recovered.
type Credit int64

// TotalCredit is the credit value a freshly started root computation
// holds; chosen large enough that Split can be called many times in a
// deep spawn tree before any child's share reaches zero.
const TotalCredit Credit = 1 << 40

// Split divides c among n children, returning n credits that sum to c.
// The caller's own Credit field must be set to zero immediately after
// calling Split (the credit has moved to the children) — Split itself
// does not mutate the receiver since Credit is a value type.
//
// A child that ends up with zero credit (n > int64(c)) is still recovered
// when it terminates, via Recover(0), which adds nothing to the Detector
// and is not otherwise recorded.
func (c Credit) Split(n int) []Credit {
	if n <= 0 {
		return nil
	}
	out := make([]Credit, n)
	base := int64(c) / int64(n)
	rem := int64(c) % int64(n)
	for i := range out {
		share := base
		if int64(i) < rem {
			share++
		}
		out[i] = Credit(share)
	}
	return out
}

// Detector accumulates recovered credit and reports termination once the
// full TotalCredit has been returned. One Detector is shared by a
// Scheduler across all its workers.
type Detector struct {
	mu        sync.Mutex // multiple workers recover concurrently
	recovered int64
}

// NewDetector creates a Detector tracking recovery against total.
func NewDetector() *Detector {
	return &Detector{}
}

// Recover adds c's units back to the detector. Called by a Worker when a
// parcel with no continuation target terminates (spec §4.B: "If no
// continuation target is set, credit is returned to the process for
// termination detection").
func (d *Detector) Recover(c Credit) {
	d.mu.Lock()
	d.recovered += int64(c)
	d.mu.Unlock()
}

// Done reports whether every unit of TotalCredit has been recovered.
func (d *Detector) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recovered >= int64(TotalCredit)
}

// Outstanding returns TotalCredit minus what's been recovered so far,
// exposed for diagnostics and tests.
func (d *Detector) Outstanding() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(TotalCredit) - d.recovered
}
