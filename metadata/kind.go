package metadata

import "github.com/pkg/errors"

// Kind is the type of a field value.
type Kind int

// Field kinds.
const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindStruct
	KindEnum
	KindVariant
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindBytes:   "bytes",
	KindStruct:  "struct",
	KindEnum:    "enum",
	KindVariant: "variant",
}

// String returns the descriptor name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, errors.Wrapf(ErrInvalidDescriptor, "unknown kind %q", s)
}

// IsPrimitive reports whether values of the kind are leaf values
// that are not described by another registered type.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindBytes
}

// HasType reports whether fields of the kind reference a registered type.
func (k Kind) HasType() bool {
	return k == KindStruct || k == KindEnum
}

// FieldFlag carries encoding hints for a field.
type FieldFlag uint32

// Field flags used by binary formats.
const (
	FlagVarint FieldFlag = 1 << iota
	FlagZigzag
	FlagFixed
)

// StructFlag marks structs with a special role in a text format.
type StructFlag uint32

const (
	// FlagSegment marks a struct that is one HL7 segment.
	FlagSegment StructFlag = 1 << iota
	// FlagMessage marks the root struct of an HL7 message. Its scalar fields
	// live in the MSH header row.
	FlagMessage
)

var (
	fieldFlagNames  = map[string]FieldFlag{"varint": FlagVarint, "zigzag": FlagZigzag, "fixed": FlagFixed}
	structFlagNames = map[string]StructFlag{"segment": FlagSegment, "message": FlagMessage}
)
