package codec

import (
	"fmt"

	"github.com/Zereker/hl7socket/metadata"
)

// Value is a primitive or enum value tagged with its kind.
type Value struct {
	kind metadata.Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    []byte
}

// Bool returns a bool value.
func Bool(v bool) Value {
	if v {
		return Value{kind: metadata.KindBool, u: 1}
	}
	return Value{kind: metadata.KindBool}
}

// Int32 returns an int32 value.
func Int32(v int32) Value { return Value{kind: metadata.KindInt32, i: int64(v)} }

// Uint32 returns a uint32 value.
func Uint32(v uint32) Value { return Value{kind: metadata.KindUint32, u: uint64(v)} }

// Int64 returns an int64 value.
func Int64(v int64) Value { return Value{kind: metadata.KindInt64, i: v} }

// Uint64 returns a uint64 value.
func Uint64(v uint64) Value { return Value{kind: metadata.KindUint64, u: v} }

// Float returns a float value.
func Float(v float32) Value { return Value{kind: metadata.KindFloat, f: float64(v)} }

// Double returns a double value.
func Double(v float64) Value { return Value{kind: metadata.KindDouble, f: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: metadata.KindString, s: v} }

// Bytes returns a bytes value. b is not copied.
func Bytes(b []byte) Value { return Value{kind: metadata.KindBytes, b: b} }

// Enum returns an enum value holding the member number.
func Enum(n int32) Value { return Value{kind: metadata.KindEnum, i: int64(n)} }

// Kind returns the value kind.
func (v Value) Kind() metadata.Kind { return v.kind }

// AsBool returns the payload of a bool value.
func (v Value) AsBool() bool { return v.u != 0 }

// AsInt returns the payload of an int32, int64 or enum value.
func (v Value) AsInt() int64 { return v.i }

// AsUint returns the payload of a uint32 or uint64 value.
func (v Value) AsUint() uint64 { return v.u }

// AsFloat returns the payload of a float or double value.
func (v Value) AsFloat() float64 { return v.f }

// AsString returns the payload of a string value.
func (v Value) AsString() string { return v.s }

// AsBytes returns the payload of a bytes value.
func (v Value) AsBytes() []byte { return v.b }

// IsZero reports whether v holds the default value of its kind.
func (v Value) IsZero() bool {
	return v.i == 0 && v.u == 0 && v.f == 0 && v.s == "" && len(v.b) == 0
}

// GoString is used by %#v in test failures.
func (v Value) GoString() string {
	switch v.kind {
	case metadata.KindBool:
		return fmt.Sprintf("Bool(%t)", v.AsBool())
	case metadata.KindInt32, metadata.KindInt64, metadata.KindEnum:
		return fmt.Sprintf("%s(%d)", v.kind, v.i)
	case metadata.KindUint32, metadata.KindUint64:
		return fmt.Sprintf("%s(%d)", v.kind, v.u)
	case metadata.KindFloat, metadata.KindDouble:
		return fmt.Sprintf("%s(%g)", v.kind, v.f)
	case metadata.KindString:
		return fmt.Sprintf("String(%q)", v.s)
	case metadata.KindBytes:
		return fmt.Sprintf("Bytes(%x)", v.b)
	default:
		return v.kind.String()
	}
}
