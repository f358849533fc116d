package metadata

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type fieldDoc struct {
	Name  string   `yaml:"name"`
	Kind  string   `yaml:"kind"`
	Array bool     `yaml:"array"`
	Type  string   `yaml:"type"`
	Index *int     `yaml:"index"`
	Flags []string `yaml:"flags"`
}

type structDoc struct {
	Name    string     `yaml:"name"`
	Segment string     `yaml:"segment"`
	Flags   []string   `yaml:"flags"`
	Fields  []fieldDoc `yaml:"fields"`
}

type enumValueDoc struct {
	Name   string `yaml:"name"`
	Alias  string `yaml:"alias"`
	Number int32  `yaml:"number"`
}

type enumDoc struct {
	Name   string         `yaml:"name"`
	Values []enumValueDoc `yaml:"values"`
}

type document struct {
	Enums   []enumDoc   `yaml:"enums"`
	Structs []structDoc `yaml:"structs"`
}

// Load reads a YAML or JSON descriptor document and returns a validated registry.
// Fields without an explicit index get their position in the list.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "metadata: decode descriptor")
	}

	reg := NewRegistry()
	for _, ed := range doc.Enums {
		e := Enum{Name: ed.Name}
		for _, v := range ed.Values {
			e.Values = append(e.Values, EnumValue(v))
		}
		if err := reg.RegisterEnum(e); err != nil {
			return nil, err
		}
	}

	for _, sd := range doc.Structs {
		s, err := sd.build()
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterStruct(s); err != nil {
			return nil, err
		}
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadFile is Load on the named file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: open descriptor")
	}
	defer f.Close()

	return Load(f)
}

func (sd structDoc) build() (Struct, error) {
	s := Struct{Name: sd.Name, Segment: sd.Segment}
	for _, name := range sd.Flags {
		flag, ok := structFlagNames[name]
		if !ok {
			return s, errors.Wrapf(ErrInvalidDescriptor, "%s: unknown struct flag %q", sd.Name, name)
		}
		s.Flags |= flag
	}

	for i, fd := range sd.Fields {
		kind, err := ParseKind(fd.Kind)
		if err != nil {
			return s, errors.Wrapf(err, "%s.%s", sd.Name, fd.Name)
		}

		f := Field{Name: fd.Name, Kind: kind, Array: fd.Array, Type: fd.Type, Index: i}
		if fd.Index != nil {
			f.Index = *fd.Index
		}
		for _, name := range fd.Flags {
			flag, ok := fieldFlagNames[name]
			if !ok {
				return s, errors.Wrapf(ErrInvalidDescriptor, "%s.%s: unknown field flag %q", sd.Name, fd.Name, name)
			}
			f.Flags |= flag
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}
