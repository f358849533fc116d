package framing

import "github.com/pkg/errors"

// Errors returned by framers.
var (
	// ErrEmptyDelimiter is returned when a delimiter framer is built without a delimiter.
	ErrEmptyDelimiter = errors.New("framing: empty delimiter")
	// ErrInvalidHeaderSize is returned when a fixed header framer is built with a non-positive header size.
	ErrInvalidHeaderSize = errors.New("framing: invalid header size")
	// ErrMissingLengthDecoder is returned when a fixed header framer has no LengthDecoder.
	ErrMissingLengthDecoder = errors.New("framing: missing length decoder")
	// ErrNoLengthEncoder is returned by Frame when no LengthEncoder was configured.
	ErrNoLengthEncoder = errors.New("framing: no length encoder")
	// ErrDelimiterInPayload is returned by Frame when the body contains the delimiter.
	ErrDelimiterInPayload = errors.New("framing: payload contains delimiter")

	// ErrNegativeLength is returned when a header decodes to a negative payload length.
	ErrNegativeLength = errors.New("framing: negative payload length")
	// ErrMessageTooLarge is returned when a message exceeds the configured maximum size.
	ErrMessageTooLarge = errors.New("framing: message too large")
	// ErrCorrupted matches every error returned by Receive. After the first one
	// the stream is out of sync and the framer refuses further input.
	ErrCorrupted = errors.New("framing: stream corrupted")
)

type corruptError struct {
	cause error
}

func (e *corruptError) Error() string { return ErrCorrupted.Error() + ": " + e.cause.Error() }

func (e *corruptError) Unwrap() error { return e.cause }

func (e *corruptError) Is(target error) bool { return target == ErrCorrupted }

// IsFatal reports whether err came from a framer and the connection has to be dropped.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCorrupted)
}
