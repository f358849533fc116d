package framing

import (
	"bytes"

	"github.com/pkg/errors"
)

// MLLP framing bytes: <VT> payload <FS><CR>.
var (
	mllpStart = []byte{0x0b}
	mllpEnd   = []byte{0x1c, 0x0d}
)

// DelimiterFramer splits a byte stream on a fixed delimiter sequence.
//
// Bytes that cannot be classified yet are kept in two places: the pending
// tail, the last len(delimiter)-1 unresolved bytes that may be the start of a
// delimiter split across reads, and the accumulated fragments, the earlier
// unresolved bytes of the current message in receive order.
type DelimiterFramer struct {
	delim []byte
	opts  options

	tail      []byte
	fragments [][]byte
	buffered  int

	scratch []byte
	err     error
}

// NewDelimiterFramer returns a framer splitting on delim. The delimiter is copied.
func NewDelimiterFramer(delim []byte, opt ...Option) (*DelimiterFramer, error) {
	if len(delim) == 0 {
		return nil, ErrEmptyDelimiter
	}

	return &DelimiterFramer{
		delim: append([]byte(nil), delim...),
		opts:  buildOptions(opt),
	}, nil
}

// NewMLLPFramer returns a delimiter framer for the HL7 minimal lower layer
// protocol: every message starts with 0x0B and ends with 0x1C 0x0D.
func NewMLLPFramer(opt ...Option) *DelimiterFramer {
	f, _ := NewDelimiterFramer(mllpEnd, append(opt, WithStartMarker(mllpStart))...)
	return f
}

// Delimiter returns a copy of the delimiter.
func (f *DelimiterFramer) Delimiter() []byte {
	return append([]byte(nil), f.delim...)
}

// Receive consumes p and returns every message completed by it. On failure
// the messages completed before it are returned with the error.
// p is not retained.
func (f *DelimiterFramer) Receive(p []byte) ([]Message, error) {
	if f.err != nil {
		return nil, f.err
	}

	work := p
	if len(f.tail) > 0 {
		f.scratch = append(append(f.scratch[:0], f.tail...), p...)
		work = f.scratch
		f.tail = f.tail[:0]
	}

	var msgs []Message
	start := 0
	for {
		i := bytes.Index(work[start:], f.delim)
		if i < 0 {
			break
		}

		end := start + i
		msg, err := f.complete(work[start:end])
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
		start = end + len(f.delim)
	}

	rest := work[start:]
	keep := len(f.delim) - 1
	if len(rest) > keep {
		if err := f.accumulate(rest[:len(rest)-keep]); err != nil {
			return msgs, err
		}
		rest = rest[len(rest)-keep:]
	}
	f.tail = append(f.tail[:0], rest...)

	return msgs, nil
}

// complete joins the accumulated fragments with last into a new message.
func (f *DelimiterFramer) complete(last []byte) (Message, error) {
	size := f.buffered + len(last)
	if size > f.opts.maxSize {
		return Message{}, f.fail(errors.Wrapf(ErrMessageTooLarge, "%d bytes, limit %d", size, f.opts.maxSize))
	}

	data := make([]byte, 0, size)
	for _, frag := range f.fragments {
		data = append(data, frag...)
	}
	data = append(data, last...)

	f.fragments = f.fragments[:0]
	f.buffered = 0

	if len(f.opts.startMarker) > 0 {
		data = bytes.TrimPrefix(data, f.opts.startMarker)
	}

	return Message{data: data}, nil
}

func (f *DelimiterFramer) accumulate(p []byte) error {
	f.buffered += len(p)
	if f.buffered > f.opts.maxSize {
		return f.fail(errors.Wrapf(ErrMessageTooLarge, "%d bytes buffered without delimiter, limit %d", f.buffered, f.opts.maxSize))
	}

	f.fragments = append(f.fragments, append([]byte(nil), p...))
	return nil
}

func (f *DelimiterFramer) fail(err error) error {
	f.err = &corruptError{cause: err}
	f.tail, f.fragments, f.buffered = nil, nil, 0
	return f.err
}

// Frame returns body wrapped for the wire: start marker, body, delimiter.
func (f *DelimiterFramer) Frame(body []byte) ([]byte, error) {
	if bytes.Contains(body, f.delim) {
		return nil, ErrDelimiterInPayload
	}

	out := make([]byte, 0, len(f.opts.startMarker)+len(body)+len(f.delim))
	out = append(out, f.opts.startMarker...)
	out = append(out, body...)
	return append(out, f.delim...), nil
}

// Pending returns the number of buffered bytes not yet part of a message.
func (f *DelimiterFramer) Pending() int {
	return f.buffered + len(f.tail)
}

// Reset drops all partial state, including a previous framing error.
func (f *DelimiterFramer) Reset() {
	f.tail, f.fragments, f.buffered = nil, nil, 0
	f.scratch = nil
	f.err = nil
}
