package metadata

// Field describes one member of a struct.
type Field struct {
	Name string
	Kind Kind
	// Array marks a repeated field of Kind.
	Array bool
	// Type names the struct or enum for KindStruct and KindEnum fields.
	Type string
	// Index is the declared position of the field within its struct.
	Index int
	Flags FieldFlag
}

// Has reports whether all bits of flag are set.
func (f *Field) Has(flag FieldFlag) bool { return f.Flags&flag == flag }

// Struct describes a message type.
type Struct struct {
	Name string
	// Segment overrides the HL7 segment identifier, which defaults to Name.
	Segment string
	Fields  []Field
	Flags   StructFlag
}

// IsSegment reports whether the struct is one HL7 segment.
func (s *Struct) IsSegment() bool { return s.Flags&FlagSegment != 0 }

// IsMessage reports whether the struct is an HL7 message root.
func (s *Struct) IsMessage() bool { return s.Flags&FlagMessage != 0 }

// SegmentID returns the identifier written at the start of the segment row.
func (s *Struct) SegmentID() string {
	if s.Segment != "" {
		return s.Segment
	}
	return s.Name
}

// Field returns the field called name.
func (s *Struct) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// EnumValue is one member of an enum.
type EnumValue struct {
	Name   string
	Alias  string
	Number int32
}

// Text returns the alias used by text formats, falling back to the name.
func (v EnumValue) Text() string {
	if v.Alias != "" {
		return v.Alias
	}
	return v.Name
}

// Enum describes an enumeration.
type Enum struct {
	Name   string
	Values []EnumValue
}

// ByNumber returns the value with the given number.
func (e *Enum) ByNumber(n int32) (EnumValue, bool) {
	for _, v := range e.Values {
		if v.Number == n {
			return v, true
		}
	}
	return EnumValue{}, false
}

// ByText returns the value whose alias or name is text. Aliases win.
func (e *Enum) ByText(text string) (EnumValue, bool) {
	for _, v := range e.Values {
		if v.Text() == text {
			return v, true
		}
	}
	for _, v := range e.Values {
		if v.Name == text {
			return v, true
		}
	}
	return EnumValue{}, false
}
