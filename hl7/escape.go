package hl7

import (
	"encoding/hex"
	"strings"
)

// escape replaces separator characters in s with HL7 escape sequences.
func (d Delimiters) escape(s string) string {
	if !strings.ContainsAny(s, string([]byte{d.Field, d.Component, d.Repetition, d.Escape, d.Subcomponent, d.Segment, '\n'})) {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		var code string
		switch c {
		case d.Field:
			code = "F"
		case d.Component:
			code = "S"
		case d.Subcomponent:
			code = "T"
		case d.Repetition:
			code = "R"
		case d.Escape:
			code = "E"
		case d.Segment, '\n':
			code = "X" + strings.ToUpper(hex.EncodeToString([]byte{c}))
		default:
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte(d.Escape)
		sb.WriteString(code)
		sb.WriteByte(d.Escape)
	}
	return sb.String()
}

// unescape is the inverse of escape. Unknown or unterminated sequences are kept as is.
func (d Delimiters) unescape(s string) string {
	if strings.IndexByte(s, d.Escape) < 0 {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != d.Escape {
			sb.WriteByte(c)
			continue
		}

		end := strings.IndexByte(s[i+1:], d.Escape)
		if end < 0 {
			sb.WriteString(s[i:])
			break
		}
		code := s[i+1 : i+1+end]

		switch {
		case code == "F":
			sb.WriteByte(d.Field)
		case code == "S":
			sb.WriteByte(d.Component)
		case code == "T":
			sb.WriteByte(d.Subcomponent)
		case code == "R":
			sb.WriteByte(d.Repetition)
		case code == "E":
			sb.WriteByte(d.Escape)
		case strings.HasPrefix(code, "X"):
			raw, err := hex.DecodeString(code[1:])
			if err != nil {
				sb.WriteString(s[i : i+2+end])
				break
			}
			sb.Write(raw)
		default:
			sb.WriteString(s[i : i+2+end])
		}
		i += end + 1
	}
	return sb.String()
}
