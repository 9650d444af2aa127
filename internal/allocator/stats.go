package allocator

// Stats mirrors the teacher's AllocatorStats shape: plain counters updated
// under the Heap's single lock, not their own atomics, since every mutator
// already runs with mu held.
type Stats struct {
	AllocationCount uint64
	FreeCount       uint64
	BytesAllocated  uint64
	BytesFreed      uint64
	PeakBytesInUse  uint64
}

// BytesInUse returns the live byte count implied by the counters.
func (s Stats) BytesInUse() uint64 {
	return s.BytesAllocated - s.BytesFreed
}

func (s *Stats) recordAlloc(blockSize uintptr) {
	s.AllocationCount++
	s.BytesAllocated += uint64(blockSize)

	if inUse := s.BytesInUse(); inUse > s.PeakBytesInUse {
		s.PeakBytesInUse = inUse
	}
}

func (s *Stats) recordFree(blockSize uintptr) {
	s.FreeCount++
	s.BytesFreed += uint64(blockSize)
}
