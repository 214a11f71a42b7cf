// Package gas is the narrow global-address-space interface consumed by
// the worker for PINNED actions (spec §6: "GAS: try_pin(addr) ->
// local_pointer?, unpin(addr)"). The scheduler uses it only to pin/unpin
// around a PINNED action's lifetime; it never otherwise touches memory
// layout. AGAS/PGAS heap internals, the cyclic allocator, and remote
// addressing are out of scope — this is a local stand-in good enough to
// exercise the pin/unpin contract end to end.
package gas

import "sync"

// Address is an opaque GAS address. In a real AGAS/PGAS heap this encodes
// locality + offset; here it's just a handle into Heap's local map.
type Address uint64

// Heap is a trivial in-process implementation: every address is always
// local, but TryPin still fails for an address this heap never allocated
// (the stand-in for "belongs to another locality"). It exists so PINNED
// actions have something real to call.
type Heap struct {
	mu     sync.Mutex
	pinned map[Address]int // refcount, supports nested pin/unpin
	memory map[Address][]byte
}

// NewHeap creates an empty local heap.
func NewHeap() *Heap {
	return &Heap{
		pinned: make(map[Address]int),
		memory: make(map[Address][]byte),
	}
}

// Alloc reserves size bytes at a fresh address and returns it.
func (h *Heap) Alloc(size int) Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := Address(len(h.memory) + 1)
	h.memory[addr] = make([]byte, size)
	return addr
}

// TryPin pins addr non-movable for the caller and returns a local byte
// slice backing it. Always succeeds for a locally-allocated address;
// returns ok=false for an address this heap has never seen (the
// GAS-internal case of "belongs to another locality" is out of scope).
func (h *Heap) TryPin(addr Address) (local []byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	mem, exists := h.memory[addr]
	if !exists {
		return nil, false
	}
	h.pinned[addr]++
	return mem, true
}

// Unpin releases one pin on addr taken by TryPin. The worker calls this
// exactly once per successful TryPin when the PINNED action's thread
// terminates.
func (h *Heap) Unpin(addr Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pinned[addr] > 0 {
		h.pinned[addr]--
	}
}

// IsPinned reports whether addr currently has at least one outstanding
// pin; exposed for tests.
func (h *Heap) IsPinned(addr Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pinned[addr] > 0
}
