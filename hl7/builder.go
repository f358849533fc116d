package hl7

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

type row struct {
	fields []field
	header bool
	// reps holds the repetition count marked for a field position.
	reps map[int]int
}

// textBuilder collects values by coordinate and renders them as HL7 text.
// Rows keep their creation order.
type textBuilder struct {
	d    Delimiters
	rows []*row
}

func (b *textBuilder) reset() {
	b.rows = b.rows[:0]
}

// addSegment starts a new row and returns its index.
func (b *textBuilder) addSegment(id string) int {
	b.rows = append(b.rows, &row{fields: []field{{{{id}}}}})
	return len(b.rows) - 1
}

// addHeader starts an MSH row carrying msgType in MSH-9 and returns its index.
func (b *textBuilder) addHeader(msgType []string) int {
	idx := b.addSegment(headerID)
	b.rows[idx].header = true
	for i, token := range msgType {
		_ = b.set(Coordinate{Segment: idx, Field: messageTypeField, Component: i}, token)
	}
	return idx
}

// set stores v at c, growing the row as needed.
func (b *textBuilder) set(c Coordinate, v string) error {
	if c.Segment < 0 || c.Segment >= len(b.rows) {
		return errors.Errorf("hl7: no segment %d", c.Segment)
	}
	r := b.rows[c.Segment]
	if c.Field < 1 || (r.header && c.Field == 1) {
		return errors.Errorf("hl7: position %s is reserved", c)
	}

	for len(r.fields) <= c.Field {
		r.fields = append(r.fields, nil)
	}
	f := r.fields[c.Field]
	for len(f) <= c.Repetition {
		f = append(f, nil)
	}
	rep := f[c.Repetition]
	for len(rep) <= c.Component {
		rep = append(rep, nil)
	}
	comp := rep[c.Component]
	for len(comp) <= c.Subcomponent {
		comp = append(comp, "")
	}

	comp[c.Subcomponent] = v
	rep[c.Component] = comp
	f[c.Repetition] = rep
	r.fields[c.Field] = f
	return nil
}

// markRepetition records that the field at c has at least c.Repetition+1
// repetitions, so an empty last repetition is still written.
func (b *textBuilder) markRepetition(c Coordinate) error {
	if c.Segment < 0 || c.Segment >= len(b.rows) {
		return errors.Errorf("hl7: no segment %d", c.Segment)
	}
	r := b.rows[c.Segment]
	if c.Field < 1 || (r.header && c.Field == 1) {
		return errors.Errorf("hl7: position %s is reserved", c)
	}

	if r.reps == nil {
		r.reps = make(map[int]int)
	}
	if n := c.Repetition + 1; n > r.reps[c.Field] {
		r.reps[c.Field] = n
	}
	return nil
}

func (b *textBuilder) bytes() []byte {
	var buf bytes.Buffer
	for _, r := range b.rows {
		buf.WriteString(b.d.escape(r.fields[0][0][0][0]))

		start := 1
		if r.header {
			buf.WriteByte(b.d.Field)
			buf.WriteString(b.d.EncodingCharacters())
			start = 2
		}

		rendered := make([]string, len(r.fields))
		last := start - 1
		for i := start; i < len(r.fields); i++ {
			rendered[i] = b.renderField(r.fields[i], r.reps[i])
			if rendered[i] != "" {
				last = i
			}
		}
		for i := start; i <= last; i++ {
			buf.WriteByte(b.d.Field)
			buf.WriteString(rendered[i])
		}
		buf.WriteByte(b.d.Segment)
	}
	return buf.Bytes()
}

func (b *textBuilder) renderField(f field, marked int) string {
	reps := make([]string, max(len(f), marked))
	for i, rep := range f {
		comps := make([]string, len(rep))
		for j, comp := range rep {
			subs := make([]string, len(comp))
			for k, sub := range comp {
				subs[k] = b.d.escape(sub)
			}
			comps[j] = joinTrimmed(subs, b.d.Subcomponent, 0)
		}
		reps[i] = joinTrimmed(comps, b.d.Component, 0)
	}
	return joinTrimmed(reps, b.d.Repetition, marked)
}

// joinTrimmed joins parts with sep after dropping trailing empty parts beyond
// the first keep.
func joinTrimmed(parts []string, sep byte, keep int) string {
	n := len(parts)
	for n > keep && parts[n-1] == "" {
		n--
	}
	return strings.Join(parts[:n], string(sep))
}
