// Package socket is a TCP transport for message oriented protocols.
// Each connection owns a Framer that cuts the inbound byte stream into
// messages and wraps outbound ones, with asynchronous read and write loops
// and idle timeout monitoring.
package socket

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/hl7socket/framing"
)

// Errors returned by connection operations.
var (
	// ErrInvalidFramer is returned when no framer is provided.
	ErrInvalidFramer = errors.New("invalid framer")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Conn is one accepted TCP connection. Inbound bytes go through its Framer
// and every framed message is passed to the OnMessageOption callback.
// Outbound messages are framed by the same Framer and written by a
// separate loop.
type Conn struct {
	id      string
	rawConn *net.TCPConn
	logger  Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// Default configuration values.
const (
	// defaultBufferSize is the default size of the message channel buffer.
	defaultBufferSize = 1
	// defaultReadBufferSize is the default number of bytes requested per read.
	defaultReadBufferSize = 4096
	// defaultHeartbeat is the default heartbeat; deadlines are twice as long.
	defaultHeartbeat = 30 * time.Second
)

// NewConn creates a new connection wrapper around the given TCP connection.
// It applies the provided options and validates them before returning.
// Returns an error if required options (framer, onMessage) are missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.heartbeat <= 0 {
		opts.heartbeat = defaultHeartbeat
	}

	if opts.framer == nil {
		return ErrInvalidFramer
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newConnWithOptions creates a new Conn with the given options.
func newConnWithOptions(c *net.TCPConn, opts options) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:      id,
		rawConn: c,
		logger:  withFields(opts.logger, "conn_id", id, "addr", c.RemoteAddr().String()),
		opts:    opts,
		sendMsg: make(chan []byte, opts.bufferSize),
	}
}

// ID returns the unique identifier of the connection.
func (c *Conn) ID() string {
	return c.id
}

// Run starts the connection's read and write loops.
// It creates two goroutines for concurrent reading and writing,
// and blocks until an error occurs or the context is canceled.
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established")
	c.logger.Debug("connection options",
		"buffer_size", c.opts.bufferSize,
		"read_buffer_size", c.opts.readBufferSize,
		"heartbeat", c.opts.heartbeat)

	c.opts.metrics.connOpened()
	defer c.opts.metrics.connClosed()

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "error", err)
	} else {
		c.logger.Info("connection closed")
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying TCP connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// ErrBufferFull is returned when the send buffer is full and cannot accept more messages.
// This error indicates backpressure - the receiver is not consuming messages fast enough.
// Recommended handling strategies:
//   - Drop the message (for non-critical data like metrics)
//   - Use WriteBlocking or WriteTimeout to wait for buffer space
//   - Implement application-level flow control
var ErrBufferFull = errors.New("send buffer full")

// Write frames the message body and queues it without blocking.
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - framing error: if the framer rejects the body
func (c *Conn) Write(message Message) error {
	data, err := c.frame(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking frames the message body and blocks until it is queued or
// the context is canceled.
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	data, err := c.frame(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout frames the message body and waits up to timeout for buffer
// space. It returns ErrBufferFull when the timeout expires.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	data, err := c.frame(message)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- data:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

func (c *Conn) frame(message Message) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.opts.framer.Frame(message.Body())
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop reads chunks from the connection and feeds them to the framer.
// The read buffer is reused across reads; the framer copies what it keeps.
func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, c.opts.readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))

			n, err := c.rawConn.Read(buf)
			if n > 0 {
				if err := c.receive(buf[:n]); err != nil {
					return err
				}
			}

			if err != nil {
				c.logger.Debug("read error", "error", err)
				if errors.Is(err, io.EOF) || c.opts.onError(err) == Disconnect {
					return err
				}
			}
		}
	}
}

// receive delivers the messages completed by p. Framing errors end the
// connection: the stream position is lost.
func (c *Conn) receive(p []byte) error {
	c.opts.metrics.read(len(p))

	msgs, err := c.opts.framer.Receive(p)
	for _, m := range msgs {
		c.opts.metrics.messageReceived()
		if err := c.opts.onMessage(m); err != nil {
			return err
		}
	}

	if err != nil {
		c.opts.metrics.framingError()
		c.logger.Warn("framing error", "error", err, "fatal", framing.IsFatal(err))
		return err
	}
	return nil
}

// writeLoop continuously sends messages from the send channel to the connection.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends data to the connection with a deadline. Errors the onError
// callback answers with Continue are dropped.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	_, err := c.rawConn.Write(data)
	if err != nil {
		c.logger.Debug("write error", "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
		return nil
	}

	c.opts.metrics.messageSent(len(data))
	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
