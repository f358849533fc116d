package hl7

import "strings"

// Grid types, outermost to innermost. Text is stored unescaped.
type (
	field      []repetition
	repetition []component
	component  []string
)

// segment is one tokenized row.
type segment struct {
	id     string
	fields []field
	offset int
}

func (s *segment) component(c Coordinate) component {
	if c.Field >= len(s.fields) {
		return nil
	}
	f := s.fields[c.Field]
	if c.Repetition >= len(f) {
		return nil
	}
	rep := f[c.Repetition]
	if c.Component >= len(rep) {
		return nil
	}
	return rep[c.Component]
}

// value returns the text at c when it is present and not empty.
func (s *segment) value(c Coordinate) (string, bool) {
	comp := s.component(c)
	if c.Subcomponent >= len(comp) || comp[c.Subcomponent] == "" {
		return "", false
	}
	return comp[c.Subcomponent], true
}

// repetitions returns the number of repetitions of a field with any content.
func (s *segment) repetitions(fieldPos int) int {
	if !s.present(Coordinate{Field: fieldPos}, levelField) {
		return 0
	}
	return len(s.fields[fieldPos])
}

// present reports whether anything non-empty is stored below the position c
// of a value sitting at level lv.
func (s *segment) present(c Coordinate, lv level) bool {
	if c.Field >= len(s.fields) {
		return false
	}

	var comps []component
	switch lv {
	case levelField:
		for _, rep := range s.fields[c.Field] {
			comps = append(comps, rep...)
		}
	case levelComponent:
		if comp := s.component(c); comp != nil {
			comps = []component{comp}
		}
	case levelSubcomponent:
		_, ok := s.value(c)
		return ok
	}

	for _, comp := range comps {
		for _, sub := range comp {
			if sub != "" {
				return true
			}
		}
	}
	return false
}

// tokenize splits text into segments. With the standard CR terminator, LF and
// CRLF line endings are accepted too. Empty lines are skipped.
func (d Delimiters) tokenize(text []byte) []segment {
	var segs []segment
	start := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && !d.isTerminator(text[i]) {
			continue
		}
		if i > start {
			segs = append(segs, d.splitSegment(string(text[start:i]), start))
		}
		start = i + 1
	}
	return segs
}

func (d Delimiters) isTerminator(c byte) bool {
	return c == d.Segment || (d.Segment == '\r' && c == '\n')
}

func (d Delimiters) splitSegment(line string, offset int) segment {
	parts := strings.Split(line, string(d.Field))
	seg := segment{
		id:     d.unescape(parts[0]),
		fields: make([]field, len(parts)),
		offset: offset,
	}

	for i, p := range parts {
		if i == 1 && seg.id == headerID {
			seg.fields[i] = field{{{p}}}
			continue
		}
		seg.fields[i] = d.splitField(p)
	}
	return seg
}

func (d Delimiters) splitField(text string) field {
	reps := strings.Split(text, string(d.Repetition))
	f := make(field, len(reps))
	for i, r := range reps {
		comps := strings.Split(r, string(d.Component))
		rep := make(repetition, len(comps))
		for j, c := range comps {
			subs := strings.Split(c, string(d.Subcomponent))
			for k := range subs {
				subs[k] = d.unescape(subs[k])
			}
			rep[j] = subs
		}
		f[i] = rep
	}
	return f
}
