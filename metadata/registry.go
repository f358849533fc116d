package metadata

import (
	"sort"

	"github.com/pkg/errors"
)

// Registry errors.
var (
	ErrDuplicateType     = errors.New("metadata: duplicate type")
	ErrUnknownType       = errors.New("metadata: unknown type")
	ErrInvalidDescriptor = errors.New("metadata: invalid descriptor")
)

// Registry maps type names to struct and enum descriptors.
// Register everything before sharing the registry between goroutines;
// lookups are safe for concurrent use once registration is over.
type Registry struct {
	structs map[string]*Struct
	enums   map[string]*Enum
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		structs: make(map[string]*Struct),
		enums:   make(map[string]*Enum),
	}
}

// RegisterStruct adds a copy of s.
func (r *Registry) RegisterStruct(s Struct) error {
	if s.Name == "" {
		return errors.Wrap(ErrInvalidDescriptor, "struct without name")
	}
	if r.exists(s.Name) {
		return errors.Wrapf(ErrDuplicateType, "%s", s.Name)
	}

	s.Fields = append([]Field(nil), s.Fields...)
	r.structs[s.Name] = &s
	return nil
}

// RegisterEnum adds a copy of e.
func (r *Registry) RegisterEnum(e Enum) error {
	if e.Name == "" {
		return errors.Wrap(ErrInvalidDescriptor, "enum without name")
	}
	if r.exists(e.Name) {
		return errors.Wrapf(ErrDuplicateType, "%s", e.Name)
	}

	e.Values = append([]EnumValue(nil), e.Values...)
	r.enums[e.Name] = &e
	return nil
}

func (r *Registry) exists(name string) bool {
	_, s := r.structs[name]
	_, e := r.enums[name]
	return s || e
}

// Struct returns the struct called name.
func (r *Registry) Struct(name string) (*Struct, bool) {
	s, ok := r.structs[name]
	return s, ok
}

// Enum returns the enum called name.
func (r *Registry) Enum(name string) (*Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// ResolveStruct returns the struct referenced by a KindStruct field.
func (r *Registry) ResolveStruct(f *Field) (*Struct, error) {
	if f.Kind != KindStruct {
		return nil, errors.Errorf("metadata: field %s is %s, not struct", f.Name, f.Kind)
	}
	s, ok := r.structs[f.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "struct %s referenced by field %s", f.Type, f.Name)
	}
	return s, nil
}

// ResolveEnum returns the enum referenced by a KindEnum field.
func (r *Registry) ResolveEnum(f *Field) (*Enum, error) {
	if f.Kind != KindEnum {
		return nil, errors.Errorf("metadata: field %s is %s, not enum", f.Name, f.Kind)
	}
	e, ok := r.enums[f.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "enum %s referenced by field %s", f.Type, f.Name)
	}
	return e, nil
}

// StructNames returns all struct names in sorted order.
func (r *Registry) StructNames() []string {
	names := make([]string, 0, len(r.structs))
	for name := range r.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every type reference resolves and that field names
// and indices are unique within each struct.
func (r *Registry) Validate() error {
	for _, name := range r.StructNames() {
		s := r.structs[name]
		names := make(map[string]bool, len(s.Fields))
		indices := make(map[int]bool, len(s.Fields))

		for i := range s.Fields {
			f := &s.Fields[i]
			switch {
			case f.Name == "":
				return errors.Wrapf(ErrInvalidDescriptor, "%s: field %d has no name", s.Name, i)
			case names[f.Name]:
				return errors.Wrapf(ErrInvalidDescriptor, "%s: duplicate field %s", s.Name, f.Name)
			case f.Index < 0 || indices[f.Index]:
				return errors.Wrapf(ErrInvalidDescriptor, "%s: bad or duplicate index %d on %s", s.Name, f.Index, f.Name)
			case f.Kind == KindInvalid:
				return errors.Wrapf(ErrInvalidDescriptor, "%s: field %s has no kind", s.Name, f.Name)
			}
			names[f.Name] = true
			indices[f.Index] = true

			var err error
			switch f.Kind {
			case KindStruct:
				_, err = r.ResolveStruct(f)
			case KindEnum:
				_, err = r.ResolveEnum(f)
			}
			if err != nil {
				return errors.Wrapf(err, "validate %s", s.Name)
			}
		}
	}
	return nil
}
