package lco

import (
	"fmt"
	"sync"

	"github.com/go-foundations/parcelsched/parcel"
)

// Kind tags which variant an LCO is, in place of the C ancestor's tagged
// union with an embedded vtable pointer (spec §4.D, §9: "tagged variants
// (one per LCO kind) behind a small trait/interface, with an external
// lock word").
type Kind int

const (
	KindFuture Kind = iota
	KindAnd
	KindUser
	KindReduce
	KindDataflow
	KindGenCount
)

func (k Kind) String() string {
	switch k {
	case KindFuture:
		return "future"
	case KindAnd:
		return "and"
	case KindUser:
		return "user"
	case KindReduce:
		return "reduce"
	case KindDataflow:
		return "dataflow"
	case KindGenCount:
		return "gencount"
	default:
		return "unknown"
	}
}

// object is the per-kind vtable (on_set/on_get/on_reset/on_size from spec
// §4.D; on_attach/on_wait/on_fini/on_getref/on_release are common enough
// across kinds that LCO implements them once, above this interface,
// instead of repeating them per variant).
type object interface {
	onSet(value []byte) (triggered bool, err error)
	onGet() (value []byte, err error)
	onReset()
	onSize() int
}

// LCO is a lockable tagged synchronizer (spec §3). The lock is a plain
// sync.Mutex rather than a spin bit packed into a pointer's top bit — the
// design notes explicitly call out not to replicate that trick in a
// language whose allocator gives no alignment guarantee to exploit.
type LCO struct {
	mu        sync.Mutex
	kind      Kind
	obj       object
	triggered bool
	cvar      CVar
	refs      int
}

// NewFuture creates a future LCO. size is the value's declared byte
// length; 0 means "any size accepted." Spec §4.D: "future.set(value) —
// copy value into slot (first set wins if bounded), signal CVar.
// Subsequent get returns copy immediately."
func NewFuture(size int) *LCO {
	return &LCO{kind: KindFuture, obj: &futureObj{size: size}}
}

// NewAnd creates an and-gate LCO counting down from count. Spec §4.D:
// "and.set() — atomic decrement; when count reaches zero signal CVar."
func NewAnd(count int64) *LCO {
	return &LCO{kind: KindAnd, obj: &andObj{initial: count, remaining: count}}
}

// NewReduce creates a reduce LCO that folds count values together with
// combine before triggering. Supplemented beyond spec's required future/
// and pair because spec §4.D names it among the LCO variants.
func NewReduce(count int64, combine func(acc, incoming []byte) []byte) *LCO {
	if combine == nil {
		combine = func(_, incoming []byte) []byte { return incoming }
	}
	return &LCO{kind: KindReduce, obj: &reduceObj{initial: count, remaining: count, combine: combine}}
}

// NewUser creates a user LCO: a future-shaped synchronizer whose "set"
// merges via a caller-supplied function instead of bounded-size copy.
func NewUser(merge func(acc, incoming []byte) []byte) *LCO {
	if merge == nil {
		merge = func(_, incoming []byte) []byte { return incoming }
	}
	return &LCO{kind: KindUser, obj: &userObj{merge: merge}}
}

// NewGenCount creates a generation-counter LCO: each Set advances the
// generation; it never triggers the CVar on its own; the current
// generation is read through Size() without suspending.
func NewGenCount() *LCO {
	return &LCO{kind: KindGenCount, obj: &genCountObj{}}
}

// NewDataflow creates a dataflow LCO. Spec §9 open question: "several
// operations returning without setting a value (empty stubs)... treat
// dataflow as an optional LCO variant and leave its semantics TBD." The
// stub here accepts Set calls (so callers don't need a type switch to
// avoid it) but never triggers and Get always returns "not ready".
func NewDataflow() *LCO {
	return &LCO{kind: KindDataflow, obj: &dataflowObj{}}
}

// Kind reports which variant this LCO is.
func (l *LCO) Kind() Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kind
}

// IsTriggered reports whether the LCO has fired.
func (l *LCO) IsTriggered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.triggered
}

// Set merges value into the LCO. If this is the transition that triggers
// it, Set detaches and returns the waiter chain for the caller (the
// worker-level Signal machinery, which alone knows how to route a waiter
// through a mailbox vs. a direct launch) to dispatch. A already-triggered
// LCO silently ignores further Sets, matching "first set wins" (spec
// §4.D future contract).
func (l *LCO) Set(value []byte) (waiters *parcel.Parcel, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.triggered {
		return nil, nil
	}
	trig, err := l.obj.onSet(value)
	if err != nil {
		return nil, err
	}
	if trig {
		l.triggered = true
		return l.cvar.TakeAll(), nil
	}
	return nil, nil
}

// Get returns the LCO's current value without suspending if it has
// already triggered (spec §8 boundary behavior: "wait on an
// already-triggered LCO returns immediately without context switch").
// ok=false means the caller must suspend via Worker.Wait instead.
func (l *LCO) Get() (value []byte, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.triggered {
		return nil, false, nil
	}
	v, err := l.obj.onGet()
	return v, true, err
}

// Attach enqueues p on the CVar if the LCO hasn't triggered yet.
// already=true means the LCO had already fired and the caller should
// launch p immediately instead of suspending it.
func (l *LCO) Attach(p *parcel.Parcel) (already bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.triggered {
		return true
	}
	l.cvar.PushWaiter(p)
	return false
}

// SetError marks the CVar's error slot, triggers the LCO, and returns the
// detached waiter chain for signal_error dispatch.
func (l *LCO) SetError(err error) (waiters *parcel.Parcel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cvar.SetError(err)
	l.triggered = true
	return l.cvar.TakeAll()
}

// Err returns the CVar's recorded error, if any.
func (l *LCO) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cvar.Error()
}

// Reset clears triggered state, the waiter chain, and the underlying
// object's value/counters — spec §8's "idempotent reset" property.
func (l *LCO) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggered = false
	l.cvar.Reset()
	l.obj.onReset()
}

// Size reports the LCO's declared value size (future) or its remaining
// count (and/reduce); meaning is kind-specific (spec §4.D on_size).
func (l *LCO) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.obj.onSize()
}

// GetRef/Release model spec §4.D's on_getref/on_release: a reference
// count for LCOs shared across multiple owners (e.g. a future handed to
// several continuations). The core scheduler never calls these itself;
// they exist so user actions built on top of it have a place to manage
// shared LCO lifetime.
func (l *LCO) GetRef() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs++
	return l.refs
}

func (l *LCO) Release() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs > 0 {
		l.refs--
	}
	return l.refs
}

// --- kind objects ---

type futureObj struct {
	size int
	val  []byte
	set  bool
}

func (f *futureObj) onSet(value []byte) (bool, error) {
	if f.set {
		return false, nil
	}
	if f.size > 0 && len(value) != f.size {
		return false, fmt.Errorf("lco: future declared size %d, got %d", f.size, len(value))
	}
	f.val = append([]byte(nil), value...)
	f.set = true
	return true, nil
}
func (f *futureObj) onGet() ([]byte, error) { return f.val, nil }
func (f *futureObj) onReset()               { f.val = nil; f.set = false }
func (f *futureObj) onSize() int            { return f.size }

type andObj struct {
	initial   int64
	remaining int64
}

func (a *andObj) onSet(_ []byte) (bool, error) {
	a.remaining--
	return a.remaining <= 0, nil
}
func (a *andObj) onGet() ([]byte, error) { return nil, nil }
func (a *andObj) onReset()               { a.remaining = a.initial }
func (a *andObj) onSize() int            { return int(a.remaining) }

type reduceObj struct {
	initial   int64
	remaining int64
	combine   func(acc, incoming []byte) []byte
	val       []byte
}

func (r *reduceObj) onSet(value []byte) (bool, error) {
	r.val = r.combine(r.val, value)
	r.remaining--
	return r.remaining <= 0, nil
}
func (r *reduceObj) onGet() ([]byte, error) { return r.val, nil }
func (r *reduceObj) onReset()               { r.remaining = r.initial; r.val = nil }
func (r *reduceObj) onSize() int            { return int(r.remaining) }

type userObj struct {
	merge func(acc, incoming []byte) []byte
	val   []byte
	set   bool
}

func (u *userObj) onSet(value []byte) (bool, error) {
	u.val = u.merge(u.val, value)
	u.set = true
	return true, nil
}
func (u *userObj) onGet() ([]byte, error) { return u.val, nil }
func (u *userObj) onReset()               { u.val = nil; u.set = false }
func (u *userObj) onSize() int {
	if u.set {
		return 1
	}
	return 0
}

// genCountObj never triggers its CVar; its generation is what onSize
// reports, read through LCO.Size by callers that poll rather than
// suspend.
type genCountObj struct {
	gen int64
}

func (g *genCountObj) onSet(_ []byte) (bool, error) { g.gen++; return false, nil }
func (g *genCountObj) onGet() ([]byte, error)       { return nil, nil }
func (g *genCountObj) onReset()                     { g.gen = 0 }
func (g *genCountObj) onSize() int                  { return int(g.gen) }

// dataflowObj is the spec §9 open-question stub: accepts Set silently,
// never triggers, Get always reports not-ready. Left deliberately inert
// rather than guessed at.
type dataflowObj struct{}

func (*dataflowObj) onSet(_ []byte) (bool, error) { return false, nil }
func (*dataflowObj) onGet() ([]byte, error)       { return nil, nil }
func (*dataflowObj) onReset()                     {}
func (*dataflowObj) onSize() int                  { return 0 }
