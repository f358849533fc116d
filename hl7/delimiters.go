package hl7

import (
	"bytes"

	"github.com/pkg/errors"
)

// Delimiters are the separator characters of an HL7 message.
type Delimiters struct {
	Segment      byte
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// DefaultDelimiters are the HL7 standard separators: CR |^~\&.
var DefaultDelimiters = Delimiters{
	Segment:      '\r',
	Field:        '|',
	Component:    '^',
	Repetition:   '~',
	Escape:       '\\',
	Subcomponent: '&',
}

const headerID = "MSH"

// EncodingCharacters returns the MSH-2 value.
func (d Delimiters) EncodingCharacters() string {
	return string([]byte{d.Component, d.Repetition, d.Escape, d.Subcomponent})
}

// Validate checks that all separators are set and distinct.
func (d Delimiters) Validate() error {
	all := []byte{d.Segment, d.Field, d.Component, d.Repetition, d.Escape, d.Subcomponent}
	seen := make(map[byte]bool, len(all))
	for _, c := range all {
		if c == 0 || seen[c] {
			return errors.Wrapf(ErrInvalidDelimiters, "%q", all)
		}
		seen[c] = true
	}
	return nil
}

// DetectDelimiters reads the separators from an MSH header.
// The segment terminator is always taken from DefaultDelimiters.
func DetectDelimiters(msg []byte) (Delimiters, error) {
	if len(msg) < 8 {
		return Delimiters{}, errors.Wrap(ErrInvalidDelimiters, "message too short")
	}
	if !bytes.HasPrefix(msg, []byte(headerID)) {
		return Delimiters{}, errors.Wrap(ErrInvalidDelimiters, "missing MSH header")
	}

	d := Delimiters{
		Segment:      DefaultDelimiters.Segment,
		Field:        msg[3],
		Component:    msg[4],
		Repetition:   msg[5],
		Escape:       msg[6],
		Subcomponent: msg[7],
	}
	if err := d.Validate(); err != nil {
		return Delimiters{}, err
	}
	return d, nil
}
