package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/hl7socket/metadata"
)

// recorder logs every event as a short string.
type recorder struct {
	events []string
}

func (r *recorder) log(format string, args ...any) error {
	r.events = append(r.events, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) StartStruct(s *metadata.Struct) error { return r.log("start %s", s.Name) }
func (r *recorder) EnterStruct(f *metadata.Field, s *metadata.Struct) error {
	return r.log("enter %s:%s", f.Name, s.Name)
}
func (r *recorder) ExitStruct(f *metadata.Field, _ *metadata.Struct) error {
	return r.log("exit %s", f.Name)
}
func (r *recorder) EnterArrayStruct(f *metadata.Field, _ *metadata.Struct) error {
	return r.log("array %s", f.Name)
}
func (r *recorder) ExitArrayStruct(f *metadata.Field, _ *metadata.Struct) error {
	return r.log("end array %s", f.Name)
}
func (r *recorder) EnterStructNull(f *metadata.Field, _ *metadata.Struct) error {
	return r.log("null %s", f.Name)
}
func (r *recorder) EnterScalar(f *metadata.Field, v Value) error {
	return r.log("%s=%#v", f.Name, v)
}
func (r *recorder) EnterArrayScalar(f *metadata.Field, vs []Value) error {
	return r.log("%s=%d values", f.Name, len(vs))
}
func (r *recorder) NotifyError(err error) { _ = r.log("error %v", err) }
func (r *recorder) Finished() error       { return r.log("finished") }

func testRegistry(t *testing.T) *metadata.Registry {
	t.Helper()

	reg := metadata.NewRegistry()
	require.NoError(t, reg.RegisterStruct(metadata.Struct{
		Name: "Point",
		Fields: []metadata.Field{
			{Name: "x", Kind: metadata.KindInt32, Index: 0},
			{Name: "y", Kind: metadata.KindInt32, Index: 1},
		},
	}))
	require.NoError(t, reg.RegisterStruct(metadata.Struct{
		Name: "Shape",
		Fields: []metadata.Field{
			{Name: "name", Kind: metadata.KindString, Index: 0},
			{Name: "origin", Kind: metadata.KindStruct, Type: "Point", Index: 1},
			{Name: "points", Kind: metadata.KindStruct, Type: "Point", Array: true, Index: 2},
			{Name: "tags", Kind: metadata.KindString, Array: true, Index: 3},
			{Name: "closed", Kind: metadata.KindBool, Index: 4},
		},
	}))
	require.NoError(t, reg.Validate())
	return reg
}

func point(reg *metadata.Registry, x, y int32) *Record {
	s, _ := reg.Struct("Point")
	return NewRecord(s).Set("x", Int32(x)).Set("y", Int32(y))
}

func TestWalker_Events(t *testing.T) {
	reg := testRegistry(t)
	shape, _ := reg.Struct("Shape")

	rec := NewRecord(shape).
		Set("name", String("tri")).
		Append("points", point(reg, 0, 0)).
		Append("points", point(reg, 1, 0)).
		Set("closed", Bool(false))

	var r recorder
	require.NoError(t, Walker{Registry: reg}.Walk(rec, &r))
	assert.Equal(t, []string{
		"start Shape",
		`name=String("tri")`,
		"null origin",
		"array points",
		"enter points:Point", "x=int32(0)", "y=int32(0)", "exit points",
		"enter points:Point", "x=int32(1)", "y=int32(0)", "exit points",
		"end array points",
		"tags=0 values",
		"closed=Bool(false)",
		"finished",
	}, r.events)

	r = recorder{}
	require.NoError(t, Walker{Registry: reg, OmitDefaults: true}.Walk(rec, &r))
	assert.Equal(t, []string{
		"start Shape",
		`name=String("tri")`,
		"array points",
		"enter points:Point", "exit points",
		"enter points:Point", "x=int32(1)", "exit points",
		"end array points",
		"finished",
	}, r.events)
}

func TestWalker_BuilderRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	shape, _ := reg.Struct("Shape")

	rec := NewRecord(shape).
		Set("name", String("square")).
		SetStruct("origin", point(reg, 5, -5)).
		Append("points", point(reg, 1, 2)).
		SetArray("tags", String("a"), String("b")).
		Set("closed", Bool(true))

	b := NewBuilder()
	require.NoError(t, Walker{Registry: reg}.Walk(rec, b))

	got, err := b.Record()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestWalker_KindMismatch(t *testing.T) {
	reg := testRegistry(t)
	shape, _ := reg.Struct("Shape")

	rec := NewRecord(shape).Set("name", Int32(3))

	b := NewBuilder()
	err := Walker{Registry: reg}.Walk(rec, b)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = b.Record()
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestWalker_UnknownNestedType(t *testing.T) {
	reg := metadata.NewRegistry()
	require.NoError(t, reg.RegisterStruct(metadata.Struct{
		Name:   "Broken",
		Fields: []metadata.Field{{Name: "x", Kind: metadata.KindStruct, Type: "Missing"}},
	}))
	broken, _ := reg.Struct("Broken")

	err := Walker{Registry: reg}.Walk(NewRecord(broken), NewBuilder())
	assert.ErrorIs(t, err, metadata.ErrUnknownType)
}

func TestDiscard(t *testing.T) {
	reg := testRegistry(t)

	assert.NoError(t, Walker{Registry: reg}.Walk(point(reg, 1, 2), Discard))
}

func TestValue(t *testing.T) {
	assert.True(t, Int32(0).IsZero())
	assert.False(t, Bool(true).IsZero())
	assert.True(t, Bytes(nil).IsZero())
	assert.Equal(t, metadata.KindEnum, Enum(2).Kind())
	assert.Equal(t, int64(2), Enum(2).AsInt())
	assert.InDelta(t, 1.5, Float(1.5).AsFloat(), 0)
	assert.Equal(t, uint64(7), Uint64(7).AsUint())
}
