package framing

// DefaultMaxMessageSize bounds a single message when no limit is configured (16MB).
const DefaultMaxMessageSize = 16 << 20

type options struct {
	maxSize     int
	startMarker []byte
	encoder     LengthEncoder
}

// Option configures a framer.
type Option func(*options)

// WithMaxMessageSize limits the size of one message, header included.
// A non-positive size selects DefaultMaxMessageSize.
func WithMaxMessageSize(size int) Option {
	return func(o *options) {
		o.maxSize = size
	}
}

// WithStartMarker makes a delimiter framer strip marker from the front of
// every message and prepend it on Frame.
func WithStartMarker(marker []byte) Option {
	return func(o *options) {
		o.startMarker = append([]byte(nil), marker...)
	}
}

// WithLengthEncoder sets the encoder a fixed header framer uses on Frame.
func WithLengthEncoder(enc LengthEncoder) Option {
	return func(o *options) {
		o.encoder = enc
	}
}

func buildOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if opts.maxSize <= 0 {
		opts.maxSize = DefaultMaxMessageSize
	}
	return opts
}
