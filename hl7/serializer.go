package hl7

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/hl7socket/codec"
	"github.com/Zereker/hl7socket/metadata"
)

// Serializer is a codec.Visitor that writes HL7 text. It is not safe for
// concurrent use; StartStruct resets it for the next message.
type Serializer struct {
	reg   *metadata.Registry
	b     textBuilder
	stack frameStack
	out   []byte
	err   error
}

// NewSerializer returns a serializer resolving enums in reg.
func NewSerializer(reg *metadata.Registry, opt ...Option) *Serializer {
	opts := buildOptions(opt)
	d := DefaultDelimiters
	if opts.delimiters != nil {
		d = *opts.delimiters
	}
	return &Serializer{reg: reg, b: textBuilder{d: d}}
}

// Bytes returns the text produced by the last completed traversal.
func (s *Serializer) Bytes() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.out == nil {
		return nil, errors.New("hl7: serialization not finished")
	}
	return s.out, nil
}

// fail records the first error and returns it.
func (s *Serializer) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return s.err
}

// StartStruct implements codec.Visitor.
func (s *Serializer) StartStruct(st *metadata.Struct) error {
	s.b.reset()
	s.stack.reset()
	s.out, s.err = nil, nil

	if err := s.b.d.Validate(); err != nil {
		return s.fail(err)
	}

	switch {
	case st.IsMessage():
		row := s.b.addHeader(messageType(st.Name))
		return s.stack.push(frame{coord: Coordinate{Segment: row}, level: levelField, offset: headerOffset, header: true})
	case st.IsSegment():
		row := s.b.addSegment(st.SegmentID())
		return s.stack.push(frame{coord: Coordinate{Segment: row}, level: levelField, offset: segmentOffset})
	default:
		return s.stack.push(frame{level: levelGroup})
	}
}

// messageType splits SSU_U03 into SSU, U03 and SSU_U03.
func messageType(name string) []string {
	typ, trigger, ok := strings.Cut(name, typeSeparator)
	if !ok {
		return []string{name}
	}
	return []string{typ, trigger, name}
}

// EnterStruct implements codec.Visitor.
func (s *Serializer) EnterStruct(f *metadata.Field, st *metadata.Struct) error {
	if s.err != nil {
		return s.err
	}
	top, err := s.stack.top()
	if err != nil {
		return s.fail(err)
	}

	var next frame
	switch {
	case st.IsSegment():
		row := s.b.addSegment(st.SegmentID())
		next = frame{coord: Coordinate{Segment: row}, level: levelField, offset: segmentOffset}
	case top.level == levelGroup || top.header:
		next = frame{level: levelGroup}
	case top.repeat:
		coord := top.coord
		coord.Repetition = top.next
		top.next++
		if err := s.b.markRepetition(coord); err != nil {
			return s.fail(err)
		}
		next = frame{coord: coord, level: levelComponent}
	case top.level >= levelSubcomponent:
		return s.fail(errors.Wrapf(ErrNestingTooDeep, "%s below subcomponent level", f.Name))
	default:
		next = frame{coord: top.address(f.Index), level: top.level + 1}
	}

	if err := s.stack.push(next); err != nil {
		return s.fail(err)
	}
	return nil
}

// ExitStruct implements codec.Visitor.
func (s *Serializer) ExitStruct(*metadata.Field, *metadata.Struct) error {
	if s.err != nil {
		return s.err
	}
	if err := s.stack.pop(); err != nil {
		return s.fail(err)
	}
	return nil
}

// EnterArrayStruct implements codec.Visitor.
func (s *Serializer) EnterArrayStruct(f *metadata.Field, st *metadata.Struct) error {
	if s.err != nil {
		return s.err
	}
	top, err := s.stack.top()
	if err != nil {
		return s.fail(err)
	}

	var next frame
	switch {
	case st.IsSegment() || top.level == levelGroup || top.header:
		next = frame{level: levelGroup}
	case top.level == levelField:
		next = frame{coord: top.address(f.Index), level: levelField, repeat: true}
	default:
		return s.fail(errors.Wrapf(ErrNestingTooDeep, "%s: repetition below field level", f.Name))
	}

	if err := s.stack.push(next); err != nil {
		return s.fail(err)
	}
	return nil
}

// ExitArrayStruct implements codec.Visitor.
func (s *Serializer) ExitArrayStruct(f *metadata.Field, st *metadata.Struct) error {
	return s.ExitStruct(f, st)
}

// EnterStructNull implements codec.Visitor. Absent structs leave no trace.
func (s *Serializer) EnterStructNull(*metadata.Field, *metadata.Struct) error {
	return s.err
}

// EnterScalar implements codec.Visitor.
func (s *Serializer) EnterScalar(f *metadata.Field, v codec.Value) error {
	if s.err != nil {
		return s.err
	}
	top, err := s.scalarFrame(f)
	if err != nil {
		return s.fail(err)
	}

	text, err := s.format(f, v)
	if err != nil {
		return s.fail(err)
	}
	if err := s.b.set(top.address(f.Index), text); err != nil {
		return s.fail(err)
	}
	return nil
}

// EnterArrayScalar implements codec.Visitor. Elements become repetitions.
func (s *Serializer) EnterArrayScalar(f *metadata.Field, vs []codec.Value) error {
	if s.err != nil {
		return s.err
	}
	top, err := s.scalarFrame(f)
	if err != nil {
		return s.fail(err)
	}
	if top.level != levelField {
		return s.fail(errors.Wrapf(ErrNestingTooDeep, "%s: repetition below field level", f.Name))
	}

	at := top.address(f.Index)
	for i, v := range vs {
		text, err := s.format(f, v)
		if err != nil {
			return s.fail(err)
		}
		at.Repetition = i
		if err := s.b.set(at, text); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

func (s *Serializer) scalarFrame(f *metadata.Field) (*frame, error) {
	top, err := s.stack.top()
	if err != nil {
		return nil, err
	}
	if top.level == levelGroup || top.repeat {
		return nil, errors.Wrapf(ErrScalarOutsideSegment, "%s", f.Name)
	}
	return top, nil
}

// NotifyError implements codec.Visitor.
func (s *Serializer) NotifyError(err error) {
	s.fail(err)
}

// Finished implements codec.Visitor.
func (s *Serializer) Finished() error {
	if s.err != nil {
		return s.err
	}
	if s.stack.depth() != 1 {
		return s.fail(errors.Errorf("hl7: %d structs still open", s.stack.depth()-1))
	}
	s.out = s.b.bytes()
	return nil
}

// format renders one value. Bools are 0/1, bytes are base64, enums use their alias.
func (s *Serializer) format(f *metadata.Field, v codec.Value) (string, error) {
	if v.Kind() != f.Kind {
		return "", errors.Wrapf(codec.ErrKindMismatch, "%s value in %s field %s", v.Kind(), f.Kind, f.Name)
	}

	switch v.Kind() {
	case metadata.KindBool:
		if v.AsBool() {
			return "1", nil
		}
		return "0", nil
	case metadata.KindInt32, metadata.KindInt64:
		return strconv.FormatInt(v.AsInt(), 10), nil
	case metadata.KindUint32, metadata.KindUint64:
		return strconv.FormatUint(v.AsUint(), 10), nil
	case metadata.KindFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 32), nil
	case metadata.KindDouble:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64), nil
	case metadata.KindString:
		if v.AsString() == "" {
			return nullValue, nil
		}
		return v.AsString(), nil
	case metadata.KindBytes:
		if len(v.AsBytes()) == 0 {
			return nullValue, nil
		}
		return base64.StdEncoding.EncodeToString(v.AsBytes()), nil
	case metadata.KindEnum:
		e, err := s.reg.ResolveEnum(f)
		if err != nil {
			return "", err
		}
		ev, ok := e.ByNumber(int32(v.AsInt()))
		if !ok {
			return "", errors.Wrapf(ErrUnknownEnumValue, "%d in %s", v.AsInt(), e.Name)
		}
		return ev.Text(), nil
	case metadata.KindStruct, metadata.KindVariant, metadata.KindInvalid:
		return "", errors.Wrapf(ErrUnsupportedKind, "%s field %s", v.Kind(), f.Name)
	}
	return "", errors.Wrapf(ErrUnsupportedKind, "kind %d", v.Kind())
}
