//go:build !debug

package allocator

// debugAssertInvariants is a no-op outside debug builds.
func (h *Heap) debugAssertInvariants() {}
