package allocator

import (
	"sync"
	"unsafe"
)

// Heap is the Heap Manager: the process-wide (per-instance) state the spec
// calls free_head/program_break, encapsulated in a single object per the
// design note in spec.md §9 ("Rewrites should encapsulate them in an
// allocator object passed explicitly, with a thin top-level adapter for
// ABI compatibility"). All four public operations run under mu, the single
// lock point called for in §5; allocate_zeroed and resize are built on
// unlocked helpers so they can invoke allocate/release behavior while mu
// is already held.
type Heap struct {
	mu sync.Mutex

	cfg *Config

	freeHead     *freeNode
	initialBreak uintptr
	programBreak uintptr

	stats Stats
}

// NewHeap builds a Heap Manager. With no options a platform-default
// BreakSource is installed (mmapBreak on unix, arenaBreak elsewhere).
func NewHeap(opts ...Option) (*Heap, error) {
	cfg := buildConfig(opts...)

	if cfg.Break == nil {
		b, err := newDefaultBreakSource()
		if err != nil {
			return nil, err
		}

		cfg.Break = b
	}

	base := cfg.Break.QueryBreak()

	return &Heap{cfg: cfg, initialBreak: base, programBreak: base}, nil
}

// ProgramBreak returns the current cached program break.
func (h *Heap) ProgramBreak() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.programBreak
}

// InitialBreak returns the break value observed when this Heap was built.
func (h *Heap) InitialBreak() uintptr {
	return h.initialBreak
}

// Stats returns a snapshot of the heap's allocation statistics.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stats
}

// Allocate reserves a contiguous byte range, returning the payload
// address or 0 ("null") on failure.
func (h *Heap) Allocate(userSize uintptr) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.debugAssertInvariants()

	return h.allocateLocked(userSize)
}

// Release returns a previously allocated block to the free list. address
// == 0 is a silent no-op; address must have been returned by a prior
// Allocate and not yet released (double-free is undefined behavior, not
// detected, per spec).
func (h *Heap) Release(address uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.debugAssertInvariants()

	h.releaseLocked(address)
}

// AllocateZeroed is the calloc-equivalent entry point: allocate count*size
// bytes and zero them. Returns 0 when either argument is zero, when the
// product overflows, or when the underlying allocation fails.
func (h *Heap) AllocateZeroed(count, elementSize uintptr) uintptr {
	if count == 0 || elementSize == 0 {
		return 0
	}

	total, overflow := mulOverflows(count, elementSize)
	if overflow {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.debugAssertInvariants()

	addr := h.allocateLocked(total)
	if addr == 0 {
		return 0
	}

	clear(unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(total)))

	return addr
}

// Resize is the realloc-equivalent entry point. address == 0 behaves as
// Allocate(newSize); newSize == 0 behaves as Release(address) and returns
// 0. Otherwise it returns address unchanged when the current block's
// usable payload already holds newSize (no shrink or split), or allocates,
// copies, and releases the old block.
func (h *Heap) Resize(address, newSize uintptr) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.debugAssertInvariants()

	if address == 0 {
		return h.allocateLocked(newSize)
	}

	if newSize == 0 {
		h.releaseLocked(address)

		return 0
	}

	blockAddr := address - HeaderBytes
	usable := (*blockHeader)(unsafe.Pointer(blockAddr)).size - HeaderBytes

	if newSize <= usable {
		return address
	}

	newAddr := h.allocateLocked(newSize)
	if newAddr == 0 {
		return 0
	}

	copy(
		unsafe.Slice((*byte)(unsafe.Pointer(newAddr)), int(usable)),
		unsafe.Slice((*byte)(unsafe.Pointer(address)), int(usable)),
	)
	h.releaseLocked(address)

	return newAddr
}

// minUserSize is the smallest user payload that sustains the prev/next
// pointers a block carries once it is freed.
const minUserSize = 2 * unsafe.Sizeof(uintptr(0))

func (h *Heap) allocateLocked(userSize uintptr) uintptr {
	if userSize < minUserSize {
		userSize = minUserSize
	}

	need := alignUp(userSize+HeaderBytes, Align)

	victim, status := findFirstFit(h.freeHead, need)

	switch status {
	case fitExact, fitLarger:
		blockAddr := h.takeFromNode(victim, need)
		h.stats.recordAlloc(need)

		return blockAddr + HeaderBytes
	default: // fitSmaller, fitEmpty
		chunks := neededChunks(need, h.cfg.Chunk)

		prevBreak, err := h.extendBreak(int(chunks * h.cfg.Chunk))
		if err != nil {
			return 0
		}

		newNode := nodeAt(prevBreak)
		newNode.header.size = chunks * h.cfg.Chunk
		newNode.prev, newNode.next = nil, nil

		if status == fitSmaller {
			_ = appendNode(h.freeHead, newNode)
		} else {
			h.freeHead = newNode
		}

		blockAddr := h.takeFromNode(newNode, need)
		h.stats.recordAlloc(need)

		return blockAddr + HeaderBytes
	}
}

// takeFromNode removes node from the free list if node's size exactly
// matches need, or if the residual after splitting would be too small to
// hold a free node's own bookkeeping (MinSplitSlack); otherwise it carves
// the high `need` bytes off node per the split primitive (§4.3) and leaves
// node in place, shrunk, on the free list. Returns the header address of
// the (now allocated) block.
func (h *Heap) takeFromNode(node *freeNode, need uintptr) uintptr {
	sz := node.size()
	residual := sz - need

	if sz == need || residual < MinSplitSlack {
		_ = removeNode(&h.freeHead, node)

		return node.addr()
	}

	node.header.size = residual
	allocAddr := node.addr() + residual
	(*blockHeader)(unsafe.Pointer(allocAddr)).size = need

	return allocAddr
}

func (h *Heap) releaseLocked(address uintptr) {
	if address == 0 {
		return
	}

	blockAddr := address - HeaderBytes
	block := nodeAt(blockAddr)
	size := block.header.size

	if h.freeHead == nil {
		block.prev, block.next = nil, nil
		h.freeHead = block
		h.stats.recordFree(size)
		h.maybeReleaseToOS()

		return
	}

	idx := 0
	for cur := h.freeHead; cur != nil; cur = cur.next {
		curEnd := cur.end()

		switch {
		case curEnd == blockAddr:
			cur.header.size += size
			if cur.next != nil && cur.addr()+cur.header.size == cur.next.addr() {
				_ = mergeAdjacent(cur, cur.next)
			}

			h.stats.recordFree(size)
			h.maybeReleaseToOS()

			return
		case blockAddr < curEnd:
			_ = insertAt(&h.freeHead, block, idx)

			if block.next != nil && block.end() == block.next.addr() {
				_ = mergeAdjacent(block, block.next)
			}

			if block.prev != nil && block.prev.end() == block.addr() {
				_ = mergeAdjacent(block.prev, block)
			}

			h.stats.recordFree(size)
			h.maybeReleaseToOS()

			return
		}

		idx++
	}

	_ = appendNode(h.freeHead, block)

	if block.prev != nil && block.prev.end() == block.addr() {
		_ = mergeAdjacent(block.prev, block)
	}

	h.stats.recordFree(size)
	h.maybeReleaseToOS()
}

// maybeReleaseToOS inspects the tail of the free list and retracts the
// program break when the tail is large enough and abuts the break.
func (h *Heap) maybeReleaseToOS() {
	if h.freeHead == nil {
		return
	}

	tail := h.freeHead
	for tail.next != nil {
		tail = tail.next
	}

	if tail.size() < h.cfg.MinRelease || tail.end() != h.programBreak {
		return
	}

	if _, err := h.extendBreak(-int(tail.size())); err != nil {
		return
	}

	_ = removeNode(&h.freeHead, tail)
}

// extendBreak calls into the BreakSource and keeps programBreak in sync.
func (h *Heap) extendBreak(delta int) (uintptr, error) {
	prev, err := h.cfg.Break.Extend(delta)
	if err != nil {
		return 0, errOSExhausted("extend", err)
	}

	h.programBreak = uintptr(int64(prev) + int64(delta))

	return prev, nil
}

// neededChunks returns the smallest positive k with k*chunk >= need.
func neededChunks(need, chunk uintptr) uintptr {
	k := need / chunk
	if need%chunk != 0 {
		k++
	}

	if k == 0 {
		k = 1
	}

	return k
}

// mulOverflows reports whether a*b overflows uintptr arithmetic.
func mulOverflows(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}

	p := a * b
	if p/a != b {
		return 0, true
	}

	return p, false
}
