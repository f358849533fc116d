package hl7

import (
	"fmt"

	"github.com/pkg/errors"
)

// Coordinate addresses one value in the HL7 grid. Field 0 of a row is the
// segment identifier.
type Coordinate struct {
	Segment      int
	Field        int
	Repetition   int
	Component    int
	Subcomponent int
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d.%d[%d].%d.%d", c.Segment, c.Field, c.Repetition, c.Component, c.Subcomponent)
}

// level tells which coordinate a child field index selects.
type level int

const (
	// levelGroup has no row: children are segments or groups.
	levelGroup level = iota
	levelField
	levelComponent
	levelSubcomponent
)

// at returns c with the coordinate selected by lv set to pos and everything
// below it reset.
func (c Coordinate) at(lv level, pos int) Coordinate {
	switch lv {
	case levelField:
		return Coordinate{Segment: c.Segment, Field: pos}
	case levelComponent:
		c.Component, c.Subcomponent = pos, 0
	case levelSubcomponent:
		c.Subcomponent = pos
	}
	return c
}

// Positions of the header row.
const (
	// messageTypeField is MSH-9.
	messageTypeField = 8
	// headerOffset maps root field index 0 to MSH-10.
	headerOffset = 9
	// segmentOffset skips the segment identifier.
	segmentOffset = 1
)

// maxDepth bounds struct nesting for both directions.
const maxDepth = 64

// frame is the serializer state of one open struct.
type frame struct {
	coord  Coordinate
	level  level
	offset int
	// header marks the message root: its struct fields are segments or groups.
	header bool
	// repeat marks an array of composites: children take successive repetitions.
	repeat bool
	next   int
}

// address returns where a child field with the given declared index goes.
func (f *frame) address(index int) Coordinate {
	return f.coord.at(f.level, index+f.offset)
}

// frameStack is a bounded stack of open structs.
type frameStack struct {
	frames []frame
}

func (s *frameStack) push(f frame) error {
	if len(s.frames) >= maxDepth {
		return errors.Wrapf(ErrNestingTooDeep, "more than %d levels", maxDepth)
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *frameStack) pop() error {
	if len(s.frames) == 0 {
		return errors.New("hl7: unbalanced exit")
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

func (s *frameStack) top() (*frame, error) {
	if len(s.frames) == 0 {
		return nil, errors.New("hl7: event outside of a struct")
	}
	return &s.frames[len(s.frames)-1], nil
}

func (s *frameStack) depth() int { return len(s.frames) }

func (s *frameStack) reset() { s.frames = s.frames[:0] }
