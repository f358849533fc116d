package codec

import (
	"github.com/pkg/errors"

	"github.com/Zereker/hl7socket/metadata"
)

// ErrKindMismatch is returned when a record value does not match its field.
var ErrKindMismatch = errors.New("codec: value kind does not match field")

// Walker drives a Visitor from a Record in declared field order.
type Walker struct {
	Registry *metadata.Registry
	// OmitDefaults skips zero scalars, empty arrays and absent structs instead
	// of reporting them. Absent scalars are never reported.
	OmitDefaults bool
}

// Walk reports rec to v. Errors from v or from type resolution abort the walk;
// they are passed to v.NotifyError before being returned.
func (w Walker) Walk(rec *Record, v Visitor) error {
	if rec == nil || rec.Type == nil {
		return errors.New("codec: walk of untyped record")
	}
	if err := v.StartStruct(rec.Type); err != nil {
		return err
	}
	if err := w.fields(rec, v); err != nil {
		v.NotifyError(err)
		return err
	}
	return v.Finished()
}

func (w Walker) fields(rec *Record, v Visitor) error {
	for i := range rec.Type.Fields {
		f := &rec.Type.Fields[i]

		var err error
		switch {
		case f.Kind == metadata.KindStruct && f.Array:
			err = w.list(f, rec.Lists[f.Name], v)
		case f.Kind == metadata.KindStruct:
			err = w.child(f, rec.Structs[f.Name], v)
		case f.Array:
			err = w.array(f, rec.Arrays[f.Name], v)
		default:
			err = w.scalar(f, rec.Scalars, v)
		}
		if err != nil {
			return errors.Wrapf(err, "%s.%s", rec.Type.Name, f.Name)
		}
	}
	return nil
}

func (w Walker) list(f *metadata.Field, list []*Record, v Visitor) error {
	s, err := w.Registry.ResolveStruct(f)
	if err != nil {
		return err
	}
	if len(list) == 0 && w.OmitDefaults {
		return nil
	}

	if err := v.EnterArrayStruct(f, s); err != nil {
		return err
	}
	for _, elem := range list {
		if err := w.nested(f, s, elem, v); err != nil {
			return err
		}
	}
	return v.ExitArrayStruct(f, s)
}

func (w Walker) child(f *metadata.Field, child *Record, v Visitor) error {
	s, err := w.Registry.ResolveStruct(f)
	if err != nil {
		return err
	}
	if child == nil {
		if w.OmitDefaults {
			return nil
		}
		return v.EnterStructNull(f, s)
	}
	return w.nested(f, s, child, v)
}

func (w Walker) nested(f *metadata.Field, s *metadata.Struct, rec *Record, v Visitor) error {
	if rec.Type == nil || rec.Type.Name != s.Name {
		return errors.Errorf("codec: record for %s holds a different type", s.Name)
	}
	if err := v.EnterStruct(f, s); err != nil {
		return err
	}
	if err := w.fields(rec, v); err != nil {
		return err
	}
	return v.ExitStruct(f, s)
}

func (w Walker) array(f *metadata.Field, vs []Value, v Visitor) error {
	if len(vs) == 0 && w.OmitDefaults {
		return nil
	}
	for _, val := range vs {
		if val.Kind() != f.Kind {
			return errors.Wrapf(ErrKindMismatch, "%s element in %s array", val.Kind(), f.Kind)
		}
	}
	return v.EnterArrayScalar(f, vs)
}

func (w Walker) scalar(f *metadata.Field, scalars map[string]Value, v Visitor) error {
	val, ok := scalars[f.Name]
	if !ok {
		return nil
	}
	if val.Kind() != f.Kind {
		return errors.Wrapf(ErrKindMismatch, "%s value in %s field", val.Kind(), f.Kind)
	}
	if w.OmitDefaults && val.IsZero() {
		return nil
	}
	return v.EnterScalar(f, val)
}
