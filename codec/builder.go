package codec

import (
	"github.com/pkg/errors"

	"github.com/Zereker/hl7socket/metadata"
)

// Builder is a Visitor that assembles the visited tree into a Record.
type Builder struct {
	root  *Record
	stack []*Record
	err   error
	done  bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) top() (*Record, error) {
	if len(b.stack) == 0 {
		return nil, errors.New("codec: event outside of a struct")
	}
	return b.stack[len(b.stack)-1], nil
}

// StartStruct implements Visitor.
func (b *Builder) StartStruct(s *metadata.Struct) error {
	b.root = NewRecord(s)
	b.stack = append(b.stack[:0], b.root)
	b.err, b.done = nil, false
	return nil
}

// EnterStruct implements Visitor.
func (b *Builder) EnterStruct(f *metadata.Field, s *metadata.Struct) error {
	parent, err := b.top()
	if err != nil {
		return err
	}

	child := NewRecord(s)
	if f.Array {
		parent.Append(f.Name, child)
	} else {
		parent.SetStruct(f.Name, child)
	}
	b.stack = append(b.stack, child)
	return nil
}

// ExitStruct implements Visitor.
func (b *Builder) ExitStruct(*metadata.Field, *metadata.Struct) error {
	if len(b.stack) < 2 {
		return errors.New("codec: unbalanced ExitStruct")
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

// EnterArrayStruct implements Visitor.
func (b *Builder) EnterArrayStruct(*metadata.Field, *metadata.Struct) error { return nil }

// ExitArrayStruct implements Visitor.
func (b *Builder) ExitArrayStruct(*metadata.Field, *metadata.Struct) error { return nil }

// EnterStructNull implements Visitor.
func (b *Builder) EnterStructNull(*metadata.Field, *metadata.Struct) error { return nil }

// EnterScalar implements Visitor.
func (b *Builder) EnterScalar(f *metadata.Field, v Value) error {
	r, err := b.top()
	if err != nil {
		return err
	}
	r.Set(f.Name, v)
	return nil
}

// EnterArrayScalar implements Visitor.
func (b *Builder) EnterArrayScalar(f *metadata.Field, vs []Value) error {
	r, err := b.top()
	if err != nil || len(vs) == 0 {
		return err
	}
	r.SetArray(f.Name, append([]Value(nil), vs...)...)
	return nil
}

// NotifyError implements Visitor.
func (b *Builder) NotifyError(err error) { b.err = err }

// Finished implements Visitor.
func (b *Builder) Finished() error {
	if len(b.stack) != 1 {
		return errors.Errorf("codec: %d structs still open", len(b.stack)-1)
	}
	b.done = true
	return nil
}

// Record returns the assembled tree. After a failed traversal it returns the
// partial tree together with the reported error.
func (b *Builder) Record() (*Record, error) {
	if b.err != nil {
		return b.root, b.err
	}
	if !b.done {
		return b.root, errors.New("codec: traversal not finished")
	}
	return b.root, nil
}
