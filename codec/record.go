package codec

import "github.com/Zereker/hl7socket/metadata"

// Record is a dynamic instance of a metadata.Struct. Fields are keyed by name;
// a field missing from every map is absent.
type Record struct {
	Type    *metadata.Struct
	Scalars map[string]Value
	Arrays  map[string][]Value
	Structs map[string]*Record
	Lists   map[string][]*Record
}

// NewRecord returns an empty record of type t.
func NewRecord(t *metadata.Struct) *Record {
	return &Record{
		Type:    t,
		Scalars: make(map[string]Value),
		Arrays:  make(map[string][]Value),
		Structs: make(map[string]*Record),
		Lists:   make(map[string][]*Record),
	}
}

// Set stores a scalar field and returns r.
func (r *Record) Set(name string, v Value) *Record {
	r.Scalars[name] = v
	return r
}

// SetArray stores a repeated scalar field and returns r.
func (r *Record) SetArray(name string, vs ...Value) *Record {
	r.Arrays[name] = vs
	return r
}

// SetStruct stores a nested struct field and returns r.
func (r *Record) SetStruct(name string, child *Record) *Record {
	r.Structs[name] = child
	return r
}

// Append adds an element to an array of structs and returns r.
func (r *Record) Append(name string, child *Record) *Record {
	r.Lists[name] = append(r.Lists[name], child)
	return r
}

// Get returns a scalar field.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.Scalars[name]
	return v, ok
}

// Child returns a nested struct field.
func (r *Record) Child(name string) (*Record, bool) {
	c, ok := r.Structs[name]
	return c, ok
}
