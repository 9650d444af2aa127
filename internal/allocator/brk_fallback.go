//go:build !unix

package allocator

import (
	"fmt"
	"sync"
	"unsafe"
)

// defaultReserveFallback bounds the portable break source. Unlike
// mmapBreak's PROT_NONE reservation, this backing store is a real Go byte
// slice paid for up front, so it is kept modest.
const defaultReserveFallback = 256 << 20 // 256MiB

// arenaBreak emulates a program break over a plain Go byte slice for
// platforms without golang.org/x/sys/unix's Mmap/Mprotect, in the same
// bump-pointer style as the teacher's ArenaAllocatorImpl (buffer + current
// position), generalized here to also support retraction.
type arenaBreak struct {
	mu   sync.Mutex
	buf  []byte
	base uintptr
	brk  uintptr
}

func newArenaBreak(reserve uintptr) (*arenaBreak, error) {
	if reserve == 0 {
		return nil, fmt.Errorf("reserve must be greater than 0")
	}

	buf := make([]byte, reserve)

	return &arenaBreak{buf: buf, base: uintptr(unsafe.Pointer(&buf[0]))}, nil
}

func (a *arenaBreak) Extend(delta int) (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.base + a.brk
	if delta == 0 {
		return prev, nil
	}

	next := int64(a.brk) + int64(delta)
	if next < 0 {
		return 0, fmt.Errorf("break would go negative")
	}

	if uintptr(next) > uintptr(len(a.buf)) {
		return 0, fmt.Errorf("break exceeds reserved address space (%d bytes)", len(a.buf))
	}

	a.brk = uintptr(next)

	return prev, nil
}

func (a *arenaBreak) QueryBreak() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.base + a.brk
}

func newDefaultBreakSource() (BreakSource, error) {
	return newArenaBreak(defaultReserveFallback)
}
