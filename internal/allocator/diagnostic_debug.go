//go:build debug

package allocator

import "fmt"

// debugAssertInvariants re-validates the free list after every mutating
// operation in debug builds: resolves the §9 "stale cached size" question
// by catching a header/linkage mismatch at the point it's introduced
// rather than at the next unrelated allocation. Panics on violation; never
// built into production binaries.
func (h *Heap) debugAssertInvariants() {
	prevEnd := uintptr(0)

	idx := 0
	for cur := h.freeHead; cur != nil; cur = cur.next {
		if cur.size() < minBlockSize {
			panic(fmt.Sprintf("allocator: free node %d smaller than minBlockSize: %d", idx, cur.size()))
		}

		if idx > 0 && cur.addr() < prevEnd {
			panic(fmt.Sprintf("allocator: free list out of address order or overlapping at node %d", idx))
		}

		if idx > 0 && cur.addr() == prevEnd {
			panic(fmt.Sprintf("allocator: adjacent free nodes left uncoalesced at node %d", idx))
		}

		if cur.end() > h.programBreak {
			panic(fmt.Sprintf("allocator: free node %d extends past program break", idx))
		}

		if cur.prev != nil && cur.prev.next != cur {
			panic(fmt.Sprintf("allocator: broken prev/next linkage at node %d", idx))
		}

		prevEnd = cur.end()
		idx++
	}
}
