package socket

import "github.com/Zereker/hl7socket/framing"

// Message is one framed unit received from or written to a connection.
// framing.Message satisfies it.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the message payload without framing bytes.
	Body() []byte
}

// Framer turns the inbound byte stream into messages and wraps outbound
// bodies for the wire. *framing.DelimiterFramer and *framing.FixedHeaderFramer
// implement it.
//
// Receive is only called from the read loop. Frame may run concurrently with
// Receive and must not touch receive state.
type Framer interface {
	// Receive consumes one chunk read from the connection. Messages completed
	// before a failure are returned together with the error.
	Receive(p []byte) ([]framing.Message, error)
	// Frame returns body as it goes on the wire.
	Frame(body []byte) ([]byte, error)
}

// FramerFactory returns a fresh Framer for one connection.
type FramerFactory func() (Framer, error)
