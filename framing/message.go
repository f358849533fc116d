package framing

// Message is one framed application payload. The bytes are owned by the
// holder of the Message; no framer keeps a reference to them.
type Message struct {
	data      []byte
	headerLen int
}

// NewMessage wraps body as a message without header.
func NewMessage(body []byte) Message {
	return Message{data: body}
}

// Length returns the payload length.
func (m Message) Length() int { return len(m.data) - m.headerLen }

// Body returns the payload without the header prefix.
func (m Message) Body() []byte { return m.data[m.headerLen:] }

// Header returns the fixed header prefix consumed by the framer, if any.
func (m Message) Header() []byte { return m.data[:m.headerLen] }

// Bytes returns header and payload as one contiguous range.
func (m Message) Bytes() []byte { return m.data }
