package pinetree

const DefaultPoolSize = 128

// Options configures an index using the functional options pattern.
type Options struct {
	poolSize        int
	leafMaxSize     int // 0 derives the capacity from the page geometry
	internalMaxSize int // 0 derives the capacity from the page geometry
	logger          Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		poolSize: DefaultPoolSize,
		logger:   DiscardLogger{},
	}
}

// Option configures index options.
type Option func(*Options)

// WithPoolSize sets the number of frames in the buffer pool.
func WithPoolSize(n int) Option {
	return func(o *Options) {
		o.poolSize = n
	}
}

// WithLeafMaxSize overrides the computed leaf slot capacity. Mainly useful
// in tests to force splits and merges with few keys.
func WithLeafMaxSize(n int) Option {
	return func(o *Options) {
		o.leafMaxSize = n
	}
}

// WithInternalMaxSize overrides the computed internal slot capacity. The
// value counts the sentinel slot.
func WithInternalMaxSize(n int) Option {
	return func(o *Options) {
		o.internalMaxSize = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}
