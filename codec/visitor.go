package codec

import "github.com/Zereker/hl7socket/metadata"

// Visitor receives the traversal events of a struct tree.
//
// For struct fields f is the field in the enclosing struct and s its resolved
// type. A non-nil error aborts the traversal and is returned by the producer.
type Visitor interface {
	// StartStruct opens the root struct.
	StartStruct(s *metadata.Struct) error
	// EnterStruct opens a nested struct, standalone or as an array element.
	EnterStruct(f *metadata.Field, s *metadata.Struct) error
	ExitStruct(f *metadata.Field, s *metadata.Struct) error
	// EnterArrayStruct opens an array of structs. Zero or more
	// EnterStruct/ExitStruct pairs follow before ExitArrayStruct.
	EnterArrayStruct(f *metadata.Field, s *metadata.Struct) error
	ExitArrayStruct(f *metadata.Field, s *metadata.Struct) error
	// EnterStructNull reports a struct field that is absent.
	EnterStructNull(f *metadata.Field, s *metadata.Struct) error
	// EnterScalar reports a primitive or enum field.
	EnterScalar(f *metadata.Field, v Value) error
	// EnterArrayScalar reports a repeated primitive or enum field.
	EnterArrayScalar(f *metadata.Field, vs []Value) error
	// NotifyError reports a failure after which no further events follow.
	NotifyError(err error)
	// Finished closes the root struct.
	Finished() error
}

// Discard is a Visitor that ignores every event. Parsing into Discard only
// validates the input.
var Discard Visitor = discard{}

type discard struct{}

func (discard) StartStruct(*metadata.Struct) error                       { return nil }
func (discard) EnterStruct(*metadata.Field, *metadata.Struct) error      { return nil }
func (discard) ExitStruct(*metadata.Field, *metadata.Struct) error       { return nil }
func (discard) EnterArrayStruct(*metadata.Field, *metadata.Struct) error { return nil }
func (discard) ExitArrayStruct(*metadata.Field, *metadata.Struct) error  { return nil }
func (discard) EnterStructNull(*metadata.Field, *metadata.Struct) error  { return nil }
func (discard) EnterScalar(*metadata.Field, Value) error                 { return nil }
func (discard) EnterArrayScalar(*metadata.Field, []Value) error          { return nil }
func (discard) NotifyError(error)                                        {}
func (discard) Finished() error                                          { return nil }
