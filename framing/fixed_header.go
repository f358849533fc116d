package framing

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// State is the phase of a FixedHeaderFramer.
type State int

const (
	// AwaitingHeader collects header bytes.
	AwaitingHeader State = iota
	// AwaitingPayload collects the payload announced by the last header.
	AwaitingPayload
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting_header"
	case AwaitingPayload:
		return "awaiting_payload"
	default:
		return "unknown"
	}
}

// LengthDecoder extracts the payload length from a complete header.
type LengthDecoder func(header []byte) (int64, error)

// LengthEncoder writes length into a zeroed header buffer.
type LengthEncoder func(header []byte, length int) error

// FixedHeaderFramer splits a byte stream made of <header><payload> records,
// where the header has a constant size and announces the payload length.
type FixedHeaderFramer struct {
	size   int
	decode LengthDecoder
	opts   options

	state  State
	header *Cursor
	body   *Cursor
	err    error
}

// NewFixedHeaderFramer returns a framer for headers of size bytes.
func NewFixedHeaderFramer(size int, decode LengthDecoder, opt ...Option) (*FixedHeaderFramer, error) {
	if size <= 0 {
		return nil, ErrInvalidHeaderSize
	}
	if decode == nil {
		return nil, ErrMissingLengthDecoder
	}

	return &FixedHeaderFramer{
		size:   size,
		decode: decode,
		opts:   buildOptions(opt),
		header: NewCursor(size),
	}, nil
}

// State returns the current phase.
func (f *FixedHeaderFramer) State() State { return f.state }

// HeaderSize returns the configured header size.
func (f *FixedHeaderFramer) HeaderSize() int { return f.size }

// Receive consumes p and returns every message completed by it. On failure
// the messages completed before it are returned with the error.
// p is not retained.
func (f *FixedHeaderFramer) Receive(p []byte) ([]Message, error) {
	if f.err != nil {
		return nil, f.err
	}

	var msgs []Message
	for {
		switch f.state {
		case AwaitingHeader:
			p = p[f.header.Fill(p):]
			if !f.header.Full() {
				return msgs, nil
			}

			length, err := f.decode(f.header.Bytes())
			if err != nil {
				return msgs, f.fail(errors.Wrap(err, "decode header"))
			}
			if length < 0 {
				return msgs, f.fail(errors.Wrapf(ErrNegativeLength, "header announced %d bytes", length))
			}
			if length > int64(f.opts.maxSize-f.size) {
				return msgs, f.fail(errors.Wrapf(ErrMessageTooLarge, "header announced %d bytes, limit %d", length, f.opts.maxSize))
			}

			f.body = NewCursor(f.size + int(length))
			f.body.Fill(f.header.Bytes())
			f.header.Reset()
			f.state = AwaitingPayload

		case AwaitingPayload:
			p = p[f.body.Fill(p):]
			if !f.body.Full() {
				return msgs, nil
			}

			msgs = append(msgs, Message{data: f.body.Detach(), headerLen: f.size})
			f.body = nil
			f.state = AwaitingHeader
		}
	}
}

func (f *FixedHeaderFramer) fail(err error) error {
	f.err = &corruptError{cause: err}
	f.header.Reset()
	f.body = nil
	return f.err
}

// Frame returns header and body as one record. It needs WithLengthEncoder.
func (f *FixedHeaderFramer) Frame(body []byte) ([]byte, error) {
	if f.opts.encoder == nil {
		return nil, ErrNoLengthEncoder
	}
	if f.size+len(body) > f.opts.maxSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes, limit %d", f.size+len(body), f.opts.maxSize)
	}

	out := make([]byte, f.size+len(body))
	if err := f.opts.encoder(out[:f.size], len(body)); err != nil {
		return nil, errors.Wrap(err, "encode header")
	}
	copy(out[f.size:], body)
	return out, nil
}

// Pending returns the number of buffered bytes not yet part of a message.
func (f *FixedHeaderFramer) Pending() int {
	if f.state == AwaitingPayload {
		return f.body.Len()
	}
	return f.header.Len()
}

// Reset drops all partial state, including a previous framing error.
func (f *FixedHeaderFramer) Reset() {
	f.header.Reset()
	f.body = nil
	f.state = AwaitingHeader
	f.err = nil
}

// Uint16Length returns a decoder and encoder for an unsigned 16 bit length
// stored at offset within the header.
func Uint16Length(order binary.ByteOrder, offset int) (LengthDecoder, LengthEncoder) {
	dec := func(header []byte) (int64, error) {
		if len(header) < offset+2 {
			return 0, errors.Errorf("header of %d bytes has no uint16 at offset %d", len(header), offset)
		}
		return int64(order.Uint16(header[offset:])), nil
	}
	enc := func(header []byte, length int) error {
		if len(header) < offset+2 {
			return errors.Errorf("header of %d bytes has no uint16 at offset %d", len(header), offset)
		}
		if length > 0xffff {
			return errors.Wrapf(ErrMessageTooLarge, "%d bytes do not fit a uint16 length", length)
		}
		order.PutUint16(header[offset:], uint16(length))
		return nil
	}
	return dec, enc
}

// Uint32Length returns a decoder and encoder for an unsigned 32 bit length
// stored at offset within the header.
func Uint32Length(order binary.ByteOrder, offset int) (LengthDecoder, LengthEncoder) {
	dec := func(header []byte) (int64, error) {
		if len(header) < offset+4 {
			return 0, errors.Errorf("header of %d bytes has no uint32 at offset %d", len(header), offset)
		}
		return int64(order.Uint32(header[offset:])), nil
	}
	enc := func(header []byte, length int) error {
		if len(header) < offset+4 {
			return errors.Errorf("header of %d bytes has no uint32 at offset %d", len(header), offset)
		}
		if uint64(length) > 0xffffffff {
			return errors.Wrapf(ErrMessageTooLarge, "%d bytes do not fit a uint32 length", length)
		}
		order.PutUint32(header[offset:], uint32(length))
		return nil
	}
	return dec, enc
}

// Int32Length is like Uint32Length but treats the length as signed, so a
// header with the high bit set decodes to a negative length.
func Int32Length(order binary.ByteOrder, offset int) (LengthDecoder, LengthEncoder) {
	dec, enc := Uint32Length(order, offset)
	signed := func(header []byte) (int64, error) {
		n, err := dec(header)
		if err != nil {
			return 0, err
		}
		return int64(int32(uint32(n))), nil
	}
	signedEnc := func(header []byte, length int) error {
		if int64(length) > math.MaxInt32 {
			return errors.Wrapf(ErrMessageTooLarge, "%d bytes do not fit an int32 length", length)
		}
		return enc(header, length)
	}
	return signed, signedEnc
}
