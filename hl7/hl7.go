package hl7

import (
	"github.com/Zereker/hl7socket/codec"
	"github.com/Zereker/hl7socket/metadata"
)

type options struct {
	delimiters   *Delimiters
	strict       bool
	omitDefaults bool
	onSkip       func(id string, offset int)
}

// Option configures a Parser, a Serializer or Marshal.
type Option func(*options)

// WithDelimiters overrides the separators. Parsers otherwise detect them from
// the MSH header and serializers use DefaultDelimiters.
func WithDelimiters(d Delimiters) Option {
	return func(o *options) {
		o.delimiters = &d
	}
}

// WithStrict makes the parser fail when segments are left after the root struct
// or when a segment would be passed over.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithOmitDefaults makes Marshal skip zero values and absent structs.
func WithOmitDefaults() Option {
	return func(o *options) {
		o.omitDefaults = true
	}
}

// WithSkipHook calls fn with the identifier and byte offset of every segment
// the parser passes over.
func WithSkipHook(fn func(id string, offset int)) Option {
	return func(o *options) {
		o.onSkip = fn
	}
}

func buildOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Marshal serializes rec as HL7 text.
func Marshal(reg *metadata.Registry, rec *codec.Record, opt ...Option) ([]byte, error) {
	opts := buildOptions(opt)
	s := NewSerializer(reg, opt...)

	w := codec.Walker{Registry: reg, OmitDefaults: opts.omitDefaults}
	if err := w.Walk(rec, s); err != nil {
		return nil, err
	}
	return s.Bytes()
}

// Unmarshal parses data as an instance of the struct called root.
// On failure the partially filled record is returned with the error.
func Unmarshal(reg *metadata.Registry, root string, data []byte, opt ...Option) (*codec.Record, error) {
	b := codec.NewBuilder()
	if _, err := NewParser(reg, opt...).Parse(root, data, b); err != nil {
		rec, _ := b.Record()
		return rec, err
	}
	return b.Record()
}
