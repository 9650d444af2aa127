//go:build unix

package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmapBreak_ExtendCommitsAndDecommitsPages(t *testing.T) {
	m, err := newMmapBreak(1 << 20)
	require.NoError(t, err)

	base := m.QueryBreak()
	assert.Zero(t, base%uintptr(pageSize))

	prev, err := m.Extend(100)
	require.NoError(t, err)
	assert.Equal(t, base, prev)
	assert.Equal(t, base+100, m.QueryBreak())
	assert.Equal(t, pageSize, int(m.committed))

	// Writing within the committed range must not fault.
	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), 100)
	for i := range data {
		data[i] = byte(i)
	}

	prev, err = m.Extend(-50)
	require.NoError(t, err)
	assert.Equal(t, base+100, prev)
	assert.Equal(t, base+50, m.QueryBreak())
}

func TestMmapBreak_ExtendBeyondReservationFails(t *testing.T) {
	m, err := newMmapBreak(4096)
	require.NoError(t, err)

	_, err = m.Extend(8192)
	assert.Error(t, err)
}

func TestMmapBreak_NegativeBreakFails(t *testing.T) {
	m, err := newMmapBreak(4096)
	require.NoError(t, err)

	_, err = m.Extend(-1)
	assert.Error(t, err)
}
