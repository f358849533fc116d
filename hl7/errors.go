package hl7

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by the parser and serializer.
var (
	ErrUnknownType          = errors.New("hl7: unknown type")
	ErrSegmentMismatch      = errors.New("hl7: unexpected segment")
	ErrMessageTypeMismatch  = errors.New("hl7: message type mismatch")
	ErrNestingTooDeep       = errors.New("hl7: nesting too deep")
	ErrScalarOutsideSegment = errors.New("hl7: scalar field outside of a segment")
	ErrUnsupportedKind      = errors.New("hl7: unsupported field kind")
	ErrUnknownEnumValue     = errors.New("hl7: unknown enum value")
	ErrInvalidValue         = errors.New("hl7: invalid value")
	ErrTrailingSegments     = errors.New("hl7: unconsumed trailing segments")
	ErrUnexpectedSegment    = errors.New("hl7: segment matches no field")
	ErrEmptyMessage         = errors.New("hl7: empty message")
	ErrInvalidDelimiters    = errors.New("hl7: invalid delimiters")
)

// ParseError locates a failure inside the message text.
type ParseError struct {
	Segment string
	Coord   Coordinate
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hl7: %s at %s (field %s): %v", e.Segment, e.Coord, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
