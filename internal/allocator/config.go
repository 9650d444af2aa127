// Package allocator implements the free-space manager for a drop-in
// replacement of the process-wide dynamic memory allocator: a free-list
// based heap that grows and shrinks by moving a program break obtained
// from an external BreakSource.
package allocator

// Tunables, mirroring the design-level constants table: these are fixed
// policy, not runtime inputs. DefaultChunk and DefaultMinRelease seed the
// Config fields Chunk and MinRelease (overridable with WithChunk and
// WithMinRelease) so a Heap can be built with overrides for testing;
// HeaderBytes, Align, MinSplitSlack and findFitSlack are constants only.
const (
	// HeaderBytes is the size of the inline per-block header.
	HeaderBytes = 8
	// Align is the size quantum and pointer alignment.
	Align = 8
	// DefaultChunk is the extension granularity passed to the break source.
	DefaultChunk = 4 * 1024 * 1024
	// DefaultMinRelease is the threshold for attempting to retract the break.
	DefaultMinRelease = 3 * 1024 * 1024
	// MinSplitSlack is the minimum residual a split must leave behind.
	MinSplitSlack = 24
	// findFitSlack is the slack threshold used to classify a first-fit scan
	// result as Larger rather than Smaller. Distinct from MinSplitSlack: a
	// node can be wide enough to count as Larger during the scan yet still
	// be taken whole (not split) once its residual is checked against
	// MinSplitSlack.
	findFitSlack = 16
)

// Config carries the Heap Manager's tunables and collaborators. Zero value
// is not directly usable; build one with DefaultConfig and Options.
type Config struct {
	// Chunk is the extension granularity passed to the break source.
	Chunk uintptr
	// MinRelease is the trailing free-node size above which the heap
	// attempts to retract the program break.
	MinRelease uintptr
	// Break is the OS collaborator that moves the program break. When nil,
	// DefaultConfig (and NewHeap) install the platform default.
	Break BreakSource
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the Config matching the tunables table in the
// spec: 4MiB chunks, 3MiB release threshold, no break source (the caller
// must supply one, or let NewHeap install the platform default).
func DefaultConfig() *Config {
	return &Config{
		Chunk:      DefaultChunk,
		MinRelease: DefaultMinRelease,
	}
}

// WithChunk overrides the extension granularity.
func WithChunk(size uintptr) Option {
	return func(c *Config) { c.Chunk = size }
}

// WithMinRelease overrides the release-to-OS threshold.
func WithMinRelease(size uintptr) Option {
	return func(c *Config) { c.MinRelease = size }
}

// WithBreakSource overrides the OS collaborator, e.g. with a fake for
// testing OSExhausted or specific break layouts.
func WithBreakSource(b BreakSource) Option {
	return func(c *Config) { c.Break = b }
}

func buildConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// alignUp aligns size up to the nearest multiple of alignment, which must
// be a power of two.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}
