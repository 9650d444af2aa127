// Package hmm is a drop-in, process-wide dynamic memory allocator: a
// first-fit, address-ordered free-list heap that grows and shrinks a
// program break obtained from the operating system. It exposes the four
// classical entry points — Allocate, Release, AllocateZeroed, Resize —
// over a single lazily-initialized heap, following the "thin top-level
// adapter" shape: all state and algorithm live in internal/allocator.Heap,
// and this package only wires a process-wide default instance to it.
package hmm

import (
	"sync"

	"github.com/go-hmm/hmm/internal/allocator"
)

var (
	defaultOnce sync.Once
	defaultHeap *allocator.Heap
)

// defaultHeapInstance lazily builds the process-wide Heap on first use.
// Construction can only fail if the platform BreakSource cannot reserve
// its address space; every public entry point treats that the same way
// it treats any other OSExhausted condition — a null/zero return, never a
// panic.
func defaultHeapInstance() *allocator.Heap {
	defaultOnce.Do(func() {
		h, err := allocator.NewHeap()
		if err != nil {
			return
		}

		defaultHeap = h
	})

	return defaultHeap
}

// Allocate reserves user_size bytes and returns the payload address, or 0
// ("null") if the request cannot be satisfied.
func Allocate(userSize uintptr) uintptr {
	h := defaultHeapInstance()
	if h == nil {
		return 0
	}

	return h.Allocate(userSize)
}

// Release returns a block previously obtained from Allocate,
// AllocateZeroed, or Resize to the heap. address == 0 is a no-op.
func Release(address uintptr) {
	h := defaultHeapInstance()
	if h == nil {
		return
	}

	h.Release(address)
}

// AllocateZeroed allocates count*element_size bytes and zero-fills them,
// returning 0 if either argument is zero, if the product overflows, or if
// the underlying allocation fails.
func AllocateZeroed(count, elementSize uintptr) uintptr {
	h := defaultHeapInstance()
	if h == nil {
		return 0
	}

	return h.AllocateZeroed(count, elementSize)
}

// Resize changes the usable size of a block, preserving its contents up
// to the smaller of the old and new sizes. See internal/allocator.Heap's
// Resize for the address == 0 / new_size == 0 special cases.
func Resize(address, newSize uintptr) uintptr {
	h := defaultHeapInstance()
	if h == nil {
		return 0
	}

	return h.Resize(address, newSize)
}

// Stats reports cumulative allocation counters for the default heap.
func Stats() allocator.Stats {
	h := defaultHeapInstance()
	if h == nil {
		return allocator.Stats{}
	}

	return h.Stats()
}
