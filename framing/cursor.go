package framing

// Cursor is a fixed capacity byte buffer with a write offset.
// Framers use it to collect a header or a payload across reads.
type Cursor struct {
	buf []byte
	w   int
}

// NewCursor returns a cursor able to hold exactly size bytes.
func NewCursor(size int) *Cursor {
	return &Cursor{buf: make([]byte, size)}
}

// Fill copies as much of p as fits and returns the number of bytes consumed.
func (c *Cursor) Fill(p []byte) int {
	n := copy(c.buf[c.w:], p)
	c.w += n
	return n
}

// Full reports whether the cursor holds Cap bytes.
func (c *Cursor) Full() bool { return c.w == len(c.buf) }

// Len returns the number of bytes written so far.
func (c *Cursor) Len() int { return c.w }

// Cap returns the cursor capacity.
func (c *Cursor) Cap() int { return len(c.buf) }

// Remaining returns how many bytes are still missing.
func (c *Cursor) Remaining() int { return len(c.buf) - c.w }

// Bytes returns the written part of the buffer. The slice is only valid
// until the next Reset or Fill.
func (c *Cursor) Bytes() []byte { return c.buf[:c.w] }

// Reset rewinds the write offset, keeping the buffer.
func (c *Cursor) Reset() { c.w = 0 }

// Detach hands the written bytes to the caller and drops the cursor's
// reference to them. The cursor is empty and has zero capacity afterwards.
func (c *Cursor) Detach() []byte {
	b := c.buf[:c.w]
	c.buf, c.w = nil, 0
	return b
}
