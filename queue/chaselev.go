// Package queue implements the two lock-free(ish) queues component F of
// spec.md: a Chase-Lev work-stealing deque per worker, and a two-lock
// Michael-Scott queue for mailboxes and the global yielded FIFO.
//
// The teacher's strategies/work_stealing.go sketches a WorkStealingDeque
// guarded by a single sync.RWMutex around the whole push/pop/steal
// surface. That's correct but serializes stealers against each other and
// against the owner, which spec §4.C rules out ("Unbounded; grows by
// doubling... Operations atomic with acq-rel ordering on top/bottom
// indices; CAS on steal"). Deque below keeps the teacher's field names
// (top/bottom/buffer, Push/Pop/Steal/Size/IsEmpty) and growth-by-doubling
// behavior but replaces the mutex with atomics and a CAS race on the
// boundary element, which is the actual Chase-Lev algorithm.
package queue

import "sync/atomic"

// ringBuffer is the Deque's backing store. Old buffers are never freed
// explicitly — once the owner replaces buf with a resized copy, any
// stealer still holding a reference to the old ringBuffer (loaded before
// the swap) keeps it alive and valid through Go's GC, which is the
// "reclaim at deque destruction is acceptable for this core" allowance in
// spec §4.C without needing a hazard-pointer scheme.
type ringBuffer[T any] struct {
	mask int64
	data []T
}

func newRingBuffer[T any](size int64) *ringBuffer[T] {
	if size < 8 {
		size = 8
	}
	// round up to a power of two so masking replaces modulo.
	capSize := int64(1)
	for capSize < size {
		capSize <<= 1
	}
	return &ringBuffer[T]{mask: capSize - 1, data: make([]T, capSize)}
}

func (r *ringBuffer[T]) get(i int64) T { return r.data[i&r.mask] }

func (r *ringBuffer[T]) put(i int64, v T) { r.data[i&r.mask] = v }

func (r *ringBuffer[T]) cap() int64 { return r.mask + 1 }

// grow returns a new, double-size ringBuffer containing the live range
// [t, b), same as the teacher's grow() in strategies/work_stealing.go.
func (r *ringBuffer[T]) grow(t, b int64) *ringBuffer[T] {
	n := newRingBuffer[T](r.cap() * 2)
	for i := t; i < b; i++ {
		n.put(i, r.get(i))
	}
	return n
}

// Deque is a single-producer (owner), multi-consumer (thieves) Chase-Lev
// work-stealing deque. The owner pushes and pops at the bottom (LIFO);
// thieves steal from the top (FIFO among thieves).
type Deque[T any] struct {
	top    atomic.Int64
	bottom atomic.Int64
	buf    atomic.Pointer[ringBuffer[T]]
}

// NewDeque creates an empty deque with room for at least initialCapacity
// elements before its first resize.
func NewDeque[T any](initialCapacity int) *Deque[T] {
	d := &Deque[T]{}
	d.buf.Store(newRingBuffer[T](int64(initialCapacity)))
	return d
}

// Push adds v to the bottom of the deque. Owner-only.
func (d *Deque[T]) Push(v T) {
	b := d.bottom.Load()
	t := d.top.Load()
	buf := d.buf.Load()
	if b-t >= buf.cap() {
		buf = buf.grow(t, b)
		d.buf.Store(buf)
	}
	buf.put(b, v)
	// Release: the value must be visible before bottom advances.
	d.bottom.Store(b + 1)
}

// Pop removes and returns the item at the bottom of the deque. Owner-only.
func (d *Deque[T]) Pop() (v T, ok bool) {
	b := d.bottom.Load() - 1
	buf := d.buf.Load()
	d.bottom.Store(b)
	t := d.top.Load()

	if t > b {
		// Deque was empty; restore bottom.
		d.bottom.Store(t)
		return v, false
	}

	v = buf.get(b)
	if t == b {
		// Last element: race a concurrent Steal for it.
		if !d.top.CompareAndSwap(t, t+1) {
			var zero T
			v = zero
			ok = false
		} else {
			ok = true
		}
		d.bottom.Store(t + 1)
		return v, ok
	}
	return v, true
}

// Steal removes and returns the item at the top of the deque. Safe to
// call concurrently from any number of thieves and concurrently with the
// owner's Push/Pop.
func (d *Deque[T]) Steal() (v T, ok bool) {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return v, false
	}
	buf := d.buf.Load()
	v = buf.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		var zero T
		return zero, false
	}
	return v, true
}

// Size returns a snapshot of the number of items in the deque. Racy by
// construction (top/bottom are independent atomics); for metrics only.
func (d *Deque[T]) Size() int {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return int(b - t)
}

// IsEmpty reports whether the deque held no items at the moment of the
// call.
func (d *Deque[T]) IsEmpty() bool {
	return d.Size() <= 0
}
