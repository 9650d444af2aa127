//go:build unix

package allocator

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapBreak emulates a program break over a single large PROT_NONE
// reservation, committing (mprotect PROT_READ|PROT_WRITE) and decommitting
// (mprotect PROT_NONE) whole pages as the break moves. This gives callers
// real OS-backed address space without a real brk(2) syscall, following
// the same golang.org/x/sys/unix.Mmap + unsafe.Pointer base-address
// pattern used throughout the retrieval pack's other unix-backed
// allocators (reserve once, cast the returned slice's base to a typed
// pointer, do arithmetic in uintptr from there).
type mmapBreak struct {
	mu        sync.Mutex
	mem       []byte
	base      uintptr
	reserved  uintptr
	committed uintptr // highest committed offset from base, page-aligned
	brk       uintptr // current logical break offset from base
}

// newMmapBreak reserves `reserve` bytes of address space, uncommitted.
func newMmapBreak(reserve uintptr) (*mmapBreak, error) {
	mem, err := unix.Mmap(-1, 0, int(reserve), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("reserve %d bytes: %w", reserve, err)
	}

	return &mmapBreak{
		mem:      mem,
		base:     uintptr(unsafe.Pointer(&mem[0])),
		reserved: reserve,
	}, nil
}

func (m *mmapBreak) Extend(delta int) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.base + m.brk
	if delta == 0 {
		return prev, nil
	}

	next := int64(m.brk) + int64(delta)
	if next < 0 {
		return 0, fmt.Errorf("break would go negative")
	}

	if uintptr(next) > m.reserved {
		return 0, fmt.Errorf("break exceeds reserved address space (%d bytes)", m.reserved)
	}

	if delta > 0 {
		need := pageCeil(uintptr(next))
		if need > m.committed {
			if err := unix.Mprotect(m.mem[m.committed:need], unix.PROT_READ|unix.PROT_WRITE); err != nil {
				return 0, fmt.Errorf("commit pages: %w", err)
			}

			m.committed = need
		}
	} else {
		keep := pageCeil(uintptr(next))
		if keep < m.committed {
			if err := unix.Mprotect(m.mem[keep:m.committed], unix.PROT_NONE); err != nil {
				return 0, fmt.Errorf("decommit pages: %w", err)
			}

			m.committed = keep
		}
	}

	m.brk = uintptr(next)

	return prev, nil
}

func (m *mmapBreak) QueryBreak() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.base + m.brk
}

func newDefaultBreakSource() (BreakSource, error) {
	return newMmapBreak(defaultReserveUnix)
}
