package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodies(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Body()))
	}
	return out
}

// feed sends data to f in chunks of at most size bytes.
func feed(t *testing.T, f *DelimiterFramer, data []byte, size int) []string {
	t.Helper()

	var out []string
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		msgs, err := f.Receive(data[:n])
		require.NoError(t, err)
		out = append(out, bodies(msgs)...)
		data = data[n:]
	}
	return out
}

func TestNewDelimiterFramer_EmptyDelimiter(t *testing.T) {
	_, err := NewDelimiterFramer(nil)
	assert.ErrorIs(t, err, ErrEmptyDelimiter)
}

func TestDelimiterFramer_ThreeReads(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\n"))
	require.NoError(t, err)

	var got []string
	for _, read := range []string{"AB\n", "CD\n", "E"} {
		msgs, err := f.Receive([]byte(read))
		require.NoError(t, err)
		got = append(got, bodies(msgs)...)
	}

	assert.Equal(t, []string{"AB", "CD"}, got)
	assert.Equal(t, 1, f.Pending())

	msgs, err := f.Receive([]byte("F\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"EF"}, bodies(msgs))
	assert.Zero(t, f.Pending())
}

func TestDelimiterFramer_ByteByByte(t *testing.T) {
	delims := []string{"\n", "\r\n", "||", "<END>", "\x1c\r"}
	payloads := []string{"", "x", "hello world", "a|b|c", "<EN", "line\rwith\rcr"}

	for _, d := range delims {
		for _, p := range payloads {
			if bytes.Contains([]byte(p), []byte(d)) {
				continue
			}
			f, err := NewDelimiterFramer([]byte(d))
			require.NoError(t, err)

			for size := 1; size <= len(p)+len(d); size++ {
				got := feed(t, f, []byte(p+d), size)
				assert.Equal(t, []string{p}, got, "delimiter %q payload %q chunk %d", d, p, size)
				assert.Zero(t, f.Pending())
			}
		}
	}
}

func TestDelimiterFramer_ManyMessagesAnyChunking(t *testing.T) {
	delim := []byte("\r\n\r\n")
	want := []string{"first", "", "second message", "3", "a\r\nb", "last one \r"}

	var stream []byte
	for _, m := range want {
		stream = append(stream, m...)
		stream = append(stream, delim...)
	}

	for size := 1; size <= len(stream); size++ {
		f, err := NewDelimiterFramer(delim)
		require.NoError(t, err)

		got := feed(t, f, stream, size)
		require.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestDelimiterFramer_SplitDelimiter(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("#END#"))
	require.NoError(t, err)

	msgs, err := f.Receive([]byte("payload#EN"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 10, f.Pending())

	msgs, err = f.Receive([]byte("D#next"))
	require.NoError(t, err)
	assert.Equal(t, []string{"payload"}, bodies(msgs))
	assert.Equal(t, 4, f.Pending())
}

func TestDelimiterFramer_LeadingDelimiter(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\n"))
	require.NoError(t, err)

	msgs, err := f.Receive([]byte("abc"))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = f.Receive([]byte("\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", ""}, bodies(msgs))
}

func TestDelimiterFramer_DoesNotAliasInput(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\n"))
	require.NoError(t, err)

	read := []byte("one\ntw")
	msgs, err := f.Receive(read)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	copy(read, "XXXXXX")
	assert.Equal(t, "one", string(msgs[0].Body()))

	msgs, err = f.Receive([]byte("o\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, bodies(msgs))
}

func TestDelimiterFramer_MaxMessageSize(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\n"), WithMaxMessageSize(8))
	require.NoError(t, err)

	_, err = f.Receive([]byte("12345"))
	require.NoError(t, err)

	_, err = f.Receive([]byte("6789"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.True(t, IsFatal(err))

	_, err = f.Receive([]byte("\n"))
	assert.ErrorIs(t, err, ErrCorrupted)

	f.Reset()
	msgs, err := f.Receive([]byte("ok\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, bodies(msgs))
}

func TestDelimiterFramer_Frame(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\r\n"))
	require.NoError(t, err)

	out, err := f.Frame([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping\r\n", string(out))

	_, err = f.Frame([]byte("bad\r\nbody"))
	assert.ErrorIs(t, err, ErrDelimiterInPayload)
}

func TestMLLPFramer(t *testing.T) {
	f := NewMLLPFramer()

	wire, err := f.Frame([]byte("MSH|^~\\&|\rPID|1\r"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x0b), wire[0])
	assert.Equal(t, []byte{0x1c, 0x0d}, wire[len(wire)-2:])

	stream := append(append([]byte{}, wire...), wire...)
	got := feed(t, f, stream, 3)
	assert.Equal(t, []string{"MSH|^~\\&|\rPID|1\r", "MSH|^~\\&|\rPID|1\r"}, got)
}

func TestDelimiterFramer_MessagesBeforeFailure(t *testing.T) {
	f, err := NewDelimiterFramer([]byte("\n"), WithMaxMessageSize(4))
	require.NoError(t, err)

	msgs, err := f.Receive([]byte("ab\ntoolong\ncd\n"))
	require.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Equal(t, []string{"ab"}, bodies(msgs))

	msgs, err = f.Receive([]byte("ef\n"))
	assert.ErrorIs(t, err, ErrCorrupted)
	assert.Empty(t, msgs)
}
