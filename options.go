package inflate

import "go.uber.org/zap"

// config collects the functional options shared by NewReader,
// NewGzipReader, and NewZlibReader.
type config struct {
	logger     *zap.Logger
	dictionary []byte
	windowSize int
}

// Option configures a Reader, GzipReader, or ZlibReader at construction.
type Option func(*config)

// WithLogger attaches a zap logger that receives Debug-level block and
// header traces. Corruption is reported only through returned errors and
// is not logged. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithDictionary supplies a preset dictionary to seed the sliding
// window with before the first block is decoded. For zlib streams this
// is also how a caller preempts the ErrDictionaryRequired suspension:
// the dictionary ID in the stream is not checked against it (the spec's
// DICTID state only signals that a dictionary is required, it does not
// specify an identifier lookup). NewGzipReader ignores this option.
func WithDictionary(dict []byte) Option {
	return func(c *config) { c.dictionary = dict }
}

// WithWindowSize overrides the sliding window size for a raw
// (unwrapped) deflate Reader. It has no effect on gzip (always 32768)
// or zlib (derived from the header's CINFO field) readers. Values
// outside [512, 32768] are coerced, per the window's own clamping rule.
func WithWindowSize(n int) Option {
	return func(c *config) { c.windowSize = n }
}

func newConfig(opts []Option) *config {
	c := &config{windowSize: maxWindowSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}
