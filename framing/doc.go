// Package framing reassembles an arbitrarily fragmented byte stream into
// discrete application messages.
//
// Two conventions are supported:
//   - DelimiterFramer: <payload><delimiter> repeated, where the delimiter is any
//     non-empty byte sequence fixed per connection.
//   - FixedHeaderFramer: <header of N bytes><payload of L bytes> repeated, where L
//     is obtained from the header by a caller supplied LengthDecoder.
//
// A framer instance belongs to exactly one connection and is not safe for
// concurrent use. Every Message a framer returns owns its memory: framers copy
// whatever they must keep and never hand out slices of the caller's read buffer.
package framing
