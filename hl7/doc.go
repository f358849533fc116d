// Package hl7 maps metadata described struct trees onto HL7 v2 text and back.
//
// HL7 text is a grid: segments (rows) split into fields, repetitions,
// components and subcomponents. The mapping is driven by struct flags:
//
//   - A struct flagged metadata.FlagMessage is a message root. Serializing it
//     writes an MSH header row whose MSH-9 field is TYPE^TRIGGER^TYPE_TRIGGER,
//     split from the struct name. Its scalar fields live in the header row
//     starting at MSH-10; its struct fields are segments or groups.
//   - A struct flagged metadata.FlagSegment is one row. The row starts with the
//     segment identifier and field Index i is written at HL7 field i+1.
//     Non-segment struct fields of a segment are composites: their fields are
//     components, and one level further subcomponents. Arrays inside a segment
//     are repetitions. Segment typed fields of a segment follow it as rows.
//   - Any other struct is a group of segments with no row of its own.
//
// Parser reports what it finds through a codec.Visitor; Serializer is a
// codec.Visitor producing text. Marshal and Unmarshal wire both to codec.Record.
package hl7
