package hl7

import (
	"bytes"
	"encoding/base64"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Zereker/hl7socket/codec"
	"github.com/Zereker/hl7socket/metadata"
)

// nullValue is the HL7 explicit null. Empty strings and bytes are written as
// nullValue so that they survive a round trip.
const nullValue = `""`

// typeSeparator splits a message struct name into message type and trigger event.
const typeSeparator = "_"

// Parser reads HL7 text into visitor events. A Parser is immutable and may be
// shared; every Parse call keeps its own state.
type Parser struct {
	reg  *metadata.Registry
	opts options
}

// NewParser returns a parser resolving types in reg.
func NewParser(reg *metadata.Registry, opt ...Option) *Parser {
	return &Parser{reg: reg, opts: buildOptions(opt)}
}

// Parse walks the struct called root in lock-step with text and reports
// every value to v. It returns the byte offset where parsing stopped, which
// is len(text) when every segment was consumed.
//
// Optional and repeating segments that do not match are skipped without
// error. Segments no segment struct of the registry describes are passed over
// wherever they appear, and so are segments at the top level that no remaining
// field of root can start. In strict mode passing over a segment fails with
// ErrUnexpectedSegment instead. On failure v has already received the events for everything parsed
// before the failure, followed by NotifyError.
func (p *Parser) Parse(root string, text []byte, v codec.Visitor) (int, error) {
	s, ok := p.reg.Struct(root)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownType, "%s", root)
	}

	d, err := p.delimiters(text)
	if err != nil {
		return 0, err
	}

	st := &parseState{
		reg:    p.reg,
		v:      v,
		segs:   d.tokenize(text),
		size:   len(text),
		known:  knownSegments(p.reg),
		strict: p.opts.strict,
		onSkip: p.opts.onSkip,
	}
	if len(st.segs) == 0 {
		return 0, ErrEmptyMessage
	}

	if err := v.StartStruct(s); err != nil {
		return 0, err
	}

	err = st.root(s)
	if err == nil && !p.opts.strict {
		err = st.skipUnknown()
	}
	if err == nil && p.opts.strict && st.pos < len(st.segs) {
		err = errors.Wrapf(ErrTrailingSegments, "%d left, next is %s", len(st.segs)-st.pos, st.segs[st.pos].id)
	}
	if err != nil {
		v.NotifyError(err)
		return st.offset(), err
	}

	if err := v.Finished(); err != nil {
		return st.offset(), err
	}
	return st.offset(), nil
}

func (p *Parser) delimiters(text []byte) (Delimiters, error) {
	if p.opts.delimiters != nil {
		return *p.opts.delimiters, p.opts.delimiters.Validate()
	}
	if bytes.HasPrefix(text, []byte(headerID)) {
		return DetectDelimiters(text)
	}
	return DefaultDelimiters, nil
}

// knownSegments returns the identifiers of every segment struct in reg.
func knownSegments(reg *metadata.Registry) map[string]bool {
	known := map[string]bool{headerID: true}
	for _, name := range reg.StructNames() {
		if s, ok := reg.Struct(name); ok && s.IsSegment() {
			known[s.SegmentID()] = true
		}
	}
	return known
}

// parseState is the cursor of one Parse call.
type parseState struct {
	reg    *metadata.Registry
	v      codec.Visitor
	segs   []segment
	pos    int
	size   int
	depth  int
	known  map[string]bool
	strict bool
	onSkip func(id string, offset int)
}

func (st *parseState) offset() int {
	if st.pos < len(st.segs) {
		return st.segs[st.pos].offset
	}
	return st.size
}

func (st *parseState) current() (*segment, bool) {
	if st.pos >= len(st.segs) {
		return nil, false
	}
	return &st.segs[st.pos], true
}

func (st *parseState) enter() error {
	st.depth++
	if st.depth > maxDepth {
		return errors.Wrapf(ErrNestingTooDeep, "more than %d levels", maxDepth)
	}
	return nil
}

func (st *parseState) leave() { st.depth-- }

// skip passes over the current segment.
func (st *parseState) skip() error {
	seg := &st.segs[st.pos]
	if st.strict {
		return &ParseError{Segment: seg.id, Coord: Coordinate{Segment: st.pos}, Err: ErrUnexpectedSegment}
	}
	if st.onSkip != nil {
		st.onSkip(seg.id, seg.offset)
	}
	st.pos++
	return nil
}

// skipUnknown passes over segments that no segment struct describes.
func (st *parseState) skipUnknown() error {
	for st.pos < len(st.segs) && !st.known[st.segs[st.pos].id] {
		if err := st.skip(); err != nil {
			return err
		}
	}
	return nil
}

// skipForeign passes over segments that none of fields can start.
func (st *parseState) skipForeign(fields []metadata.Field) error {
	for {
		if err := st.skipUnknown(); err != nil {
			return err
		}
		if _, ok := st.current(); !ok {
			return nil
		}
		for i := range fields {
			f := &fields[i]
			if f.Kind != metadata.KindStruct {
				continue
			}
			c, err := st.reg.ResolveStruct(f)
			if err != nil {
				return err
			}
			if st.leads(c) {
				return nil
			}
		}
		if err := st.skip(); err != nil {
			return err
		}
	}
}

func (st *parseState) root(s *metadata.Struct) error {
	seg, _ := st.current()

	switch {
	case s.IsMessage():
		if seg.id != headerID {
			return &ParseError{Segment: seg.id, Err: errors.Wrapf(ErrSegmentMismatch, "want %s", headerID)}
		}
		if err := matchMessageType(s, seg); err != nil {
			return err
		}
		if err := st.header(s, seg); err != nil {
			return err
		}
		st.pos++
		return st.group(s, true)

	case s.IsSegment():
		if seg.id != s.SegmentID() {
			return &ParseError{Segment: seg.id, Err: errors.Wrapf(ErrSegmentMismatch, "want %s", s.SegmentID())}
		}
		return st.segment(s)

	default:
		return st.group(s, true)
	}
}

// matchMessageType accepts MSH-9 values TYPE^TRIGGER[^STRUCTURE] naming s.
func matchMessageType(s *metadata.Struct, seg *segment) error {
	c := Coordinate{Field: messageTypeField}
	comp := func(i int) string {
		c.Component = i
		text, _ := seg.value(c)
		return text
	}

	typ, trigger, structure := comp(0), comp(1), comp(2)
	switch {
	case structure == s.Name:
	case trigger != "" && typ+typeSeparator+trigger == s.Name:
	case trigger == "" && typ == s.Name:
	default:
		return &ParseError{
			Segment: seg.id,
			Coord:   Coordinate{Field: messageTypeField},
			Err:     errors.Wrapf(ErrMessageTypeMismatch, "got %s^%s^%s, want %s", typ, trigger, structure, s.Name),
		}
	}
	return nil
}

// header reads the scalar fields of a message root from the MSH row.
func (st *parseState) header(s *metadata.Struct, seg *segment) error {
	base := Coordinate{Segment: st.pos}
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Kind == metadata.KindStruct {
			continue
		}

		at := base.at(levelField, f.Index+headerOffset)
		var err error
		if f.Array {
			err = st.scalarArray(f, seg, at, levelField)
		} else {
			err = st.scalar(f, seg, at)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// leads reports whether the current segment starts an instance of s: its own
// identifier for a segment, the identifier of its first field's struct for a group.
func (st *parseState) leads(s *metadata.Struct) bool {
	seg, ok := st.current()
	if !ok {
		return false
	}
	if s.IsSegment() {
		return seg.id == s.SegmentID()
	}

	if len(s.Fields) == 0 || s.Fields[0].Kind != metadata.KindStruct {
		return false
	}
	first, ok := st.reg.Struct(s.Fields[0].Type)
	return ok && first.IsSegment() && seg.id == first.SegmentID()
}

// group matches the struct fields of s against the following segments. At the
// top level segments that no remaining field can start are passed over;
// nested groups leave them to their parent.
func (st *parseState) group(s *metadata.Struct, top bool) error {
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Kind != metadata.KindStruct {
			continue
		}
		if top {
			if err := st.skipForeign(s.Fields[i:]); err != nil {
				return err
			}
		}
		if err := st.member(f); err != nil {
			return err
		}
	}
	return nil
}

// member parses one segment or group typed field at the current segment.
func (st *parseState) member(f *metadata.Field) error {
	c, err := st.reg.ResolveStruct(f)
	if err != nil {
		return err
	}
	if err := st.skipUnknown(); err != nil {
		return err
	}

	if !f.Array {
		if !st.leads(c) {
			return st.v.EnterStructNull(f, c)
		}
		return st.instance(f, c)
	}

	if err := st.v.EnterArrayStruct(f, c); err != nil {
		return err
	}
	for st.leads(c) {
		before := st.pos
		if err := st.instance(f, c); err != nil {
			return err
		}
		if st.pos == before {
			break
		}
		if err := st.skipUnknown(); err != nil {
			return err
		}
	}
	return st.v.ExitArrayStruct(f, c)
}

func (st *parseState) instance(f *metadata.Field, c *metadata.Struct) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	if err := st.v.EnterStruct(f, c); err != nil {
		return err
	}

	var err error
	if c.IsSegment() {
		err = st.segment(c)
	} else {
		err = st.group(c, false)
	}
	if err != nil {
		return err
	}
	return st.v.ExitStruct(f, c)
}

// segment reads the current row positionally into s, then matches the
// segment typed fields of s against the rows that follow.
func (st *parseState) segment(s *metadata.Struct) error {
	seg, _ := st.current()
	if err := st.row(s, seg, Coordinate{Segment: st.pos}, levelField, segmentOffset); err != nil {
		return err
	}
	st.pos++

	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Kind != metadata.KindStruct {
			continue
		}
		c, err := st.reg.ResolveStruct(f)
		if err != nil {
			return err
		}
		if !c.IsSegment() {
			continue
		}
		if err := st.member(f); err != nil {
			return err
		}
	}
	return nil
}

// row reads the non-segment fields of s from seg. base locates s itself and
// lv is the level its fields address.
func (st *parseState) row(s *metadata.Struct, seg *segment, base Coordinate, lv level, offset int) error {
	for i := range s.Fields {
		f := &s.Fields[i]
		at := base.at(lv, f.Index+offset)

		var err error
		switch {
		case f.Kind == metadata.KindStruct:
			var c *metadata.Struct
			c, err = st.reg.ResolveStruct(f)
			if err != nil || c.IsSegment() {
				break
			}
			if f.Array {
				err = st.compositeArray(f, c, seg, at, lv)
			} else {
				err = st.composite(f, c, seg, at, lv)
			}
		case f.Array:
			err = st.scalarArray(f, seg, at, lv)
		default:
			err = st.scalar(f, seg, at)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (st *parseState) composite(f *metadata.Field, c *metadata.Struct, seg *segment, at Coordinate, lv level) error {
	if lv >= levelSubcomponent {
		return &ParseError{Segment: seg.id, Coord: at, Field: f.Name, Err: ErrNestingTooDeep}
	}
	if !seg.present(at, lv) {
		return st.v.EnterStructNull(f, c)
	}

	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	if err := st.v.EnterStruct(f, c); err != nil {
		return err
	}
	if err := st.row(c, seg, at, lv+1, 0); err != nil {
		return err
	}
	return st.v.ExitStruct(f, c)
}

func (st *parseState) compositeArray(f *metadata.Field, c *metadata.Struct, seg *segment, at Coordinate, lv level) error {
	if lv != levelField {
		return &ParseError{Segment: seg.id, Coord: at, Field: f.Name, Err: errors.Wrap(ErrNestingTooDeep, "repetition below field level")}
	}

	if err := st.v.EnterArrayStruct(f, c); err != nil {
		return err
	}
	for r := 0; r < seg.repetitions(at.Field); r++ {
		elem := at
		elem.Repetition = r
		if err := st.v.EnterStruct(f, c); err != nil {
			return err
		}
		if err := st.row(c, seg, elem, levelComponent, 0); err != nil {
			return err
		}
		if err := st.v.ExitStruct(f, c); err != nil {
			return err
		}
	}
	return st.v.ExitArrayStruct(f, c)
}

func (st *parseState) scalar(f *metadata.Field, seg *segment, at Coordinate) error {
	text, ok := seg.value(at)
	if !ok {
		return nil
	}

	v, present, err := st.decode(f, text)
	if err != nil {
		return &ParseError{Segment: seg.id, Coord: at, Field: f.Name, Err: err}
	}
	if !present {
		return nil
	}
	return st.v.EnterScalar(f, v)
}

func (st *parseState) scalarArray(f *metadata.Field, seg *segment, at Coordinate, lv level) error {
	if lv != levelField {
		return &ParseError{Segment: seg.id, Coord: at, Field: f.Name, Err: errors.Wrap(ErrNestingTooDeep, "repetition below field level")}
	}

	var vs []codec.Value
	for r := 0; r < seg.repetitions(at.Field); r++ {
		elem := at
		elem.Repetition = r
		text, ok := seg.value(elem)
		if !ok {
			continue
		}
		v, present, err := st.decode(f, text)
		if err != nil {
			return &ParseError{Segment: seg.id, Coord: elem, Field: f.Name, Err: err}
		}
		if present {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return nil
	}
	return st.v.EnterArrayScalar(f, vs)
}

// decode converts text to a value of the field kind. present is false for an
// explicit null on a kind that has no empty form.
func (st *parseState) decode(f *metadata.Field, text string) (v codec.Value, present bool, err error) {
	if text == nullValue {
		switch f.Kind {
		case metadata.KindString:
			return codec.String(""), true, nil
		case metadata.KindBytes:
			return codec.Bytes(nil), true, nil
		default:
			return codec.Value{}, false, nil
		}
	}

	switch f.Kind {
	case metadata.KindBool:
		switch text {
		case "1", "Y":
			return codec.Bool(true), true, nil
		case "0", "N":
			return codec.Bool(false), true, nil
		}
		b, err := strconv.ParseBool(text)
		return codec.Bool(b), true, invalid(err, text, f)
	case metadata.KindInt32:
		n, err := strconv.ParseInt(text, 10, 32)
		return codec.Int32(int32(n)), true, invalid(err, text, f)
	case metadata.KindUint32:
		n, err := strconv.ParseUint(text, 10, 32)
		return codec.Uint32(uint32(n)), true, invalid(err, text, f)
	case metadata.KindInt64:
		n, err := strconv.ParseInt(text, 10, 64)
		return codec.Int64(n), true, invalid(err, text, f)
	case metadata.KindUint64:
		n, err := strconv.ParseUint(text, 10, 64)
		return codec.Uint64(n), true, invalid(err, text, f)
	case metadata.KindFloat:
		x, err := strconv.ParseFloat(text, 32)
		return codec.Float(float32(x)), true, invalid(err, text, f)
	case metadata.KindDouble:
		x, err := strconv.ParseFloat(text, 64)
		return codec.Double(x), true, invalid(err, text, f)
	case metadata.KindString:
		return codec.String(text), true, nil
	case metadata.KindBytes:
		b, err := base64.StdEncoding.DecodeString(text)
		return codec.Bytes(b), true, invalid(err, text, f)
	case metadata.KindEnum:
		n, err := st.enumNumber(f, text)
		return codec.Enum(n), true, err
	case metadata.KindStruct, metadata.KindVariant, metadata.KindInvalid:
		return codec.Value{}, false, errors.Wrapf(ErrUnsupportedKind, "%s", f.Kind)
	}
	return codec.Value{}, false, errors.Wrapf(ErrUnsupportedKind, "%d", f.Kind)
}

func (st *parseState) enumNumber(f *metadata.Field, text string) (int32, error) {
	e, err := st.reg.ResolveEnum(f)
	if err != nil {
		return 0, err
	}
	if ev, ok := e.ByText(text); ok {
		return ev.Number, nil
	}
	if n, err := strconv.ParseInt(text, 10, 32); err == nil {
		if ev, ok := e.ByNumber(int32(n)); ok {
			return ev.Number, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownEnumValue, "%q in %s", text, e.Name)
}

func invalid(err error, text string, f *metadata.Field) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrInvalidValue, "%q is not a valid %s: %v", text, f.Kind, err)
}
