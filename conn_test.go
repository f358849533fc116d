package socket

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Zereker/hl7socket/framing"
)

// mockMessage implements Message interface for testing
type mockMessage struct {
	body []byte
}

func (m mockMessage) Length() int {
	return len(m.body)
}

func (m mockMessage) Body() []byte {
	return m.body
}

// mockFramer implements Framer for testing
type mockFramer struct {
	receiveFunc func([]byte) ([]framing.Message, error)
	frameFunc   func([]byte) ([]byte, error)
}

func (f *mockFramer) Receive(p []byte) ([]framing.Message, error) {
	if f.receiveFunc != nil {
		return f.receiveFunc(p)
	}
	return []framing.Message{framing.NewMessage(append([]byte(nil), p...))}, nil
}

func (f *mockFramer) Frame(body []byte) ([]byte, error) {
	if f.frameFunc != nil {
		return f.frameFunc(body)
	}
	return body, nil
}

func newLineFramer(t *testing.T) *framing.DelimiterFramer {
	t.Helper()

	f, err := framing.NewDelimiterFramer([]byte("\n"))
	if err != nil {
		t.Fatalf("NewDelimiterFramer failed: %v", err)
	}
	return f
}

// createTestTCPPair creates a connected pair of TCP connections for testing
func createTestTCPPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	clientChan := make(chan *net.TCPConn, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := net.DialTCP("tcp", nil, listener.Addr().(*net.TCPAddr))
		if err != nil {
			errChan <- err
			return
		}
		clientChan <- conn
	}()

	serverConn, err := listener.AcceptTCP()
	if err != nil {
		t.Fatalf("failed to accept: %v", err)
	}

	select {
	case clientConn := <-clientChan:
		return serverConn, clientConn
	case err := <-errChan:
		serverConn.Close()
		t.Fatalf("client dial failed: %v", err)
		return nil, nil
	case <-time.After(5 * time.Second):
		serverConn.Close()
		t.Fatal("timeout waiting for client connection")
		return nil, nil
	}
}

func runConn(ctx context.Context, conn *Conn) chan error {
	done := make(chan error, 1)
	go func() {
		done <- conn.Run(ctx)
	}()
	return done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to complete")
		return nil
	}
}

func TestNewConn(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, err := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	if conn.rawConn != serverConn {
		t.Error("rawConn not set correctly")
	}
	if conn.ID() == "" {
		t.Error("connection id is empty")
	}
}

func TestNewConn_UniqueIDs(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	onMessage := OnMessageOption(func(Message) error { return nil })
	a, _ := NewConn(serverConn, FramerOption(newLineFramer(t)), onMessage)
	b, _ := NewConn(serverConn, FramerOption(newLineFramer(t)), onMessage)
	if a.ID() == b.ID() {
		t.Errorf("ids collide: %s", a.ID())
	}
}

func TestNewConn_MissingFramer(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	_, err := NewConn(serverConn, OnMessageOption(func(Message) error { return nil }))
	if err != ErrInvalidFramer {
		t.Errorf("expected ErrInvalidFramer, got %v", err)
	}
}

func TestNewConn_MissingOnMessage(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	_, err := NewConn(serverConn, FramerOption(newLineFramer(t)))
	if err != ErrInvalidOnMessage {
		t.Errorf("expected ErrInvalidOnMessage, got %v", err)
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := options{
		framer:    &mockFramer{},
		onMessage: func(Message) error { return nil },
	}

	if err := checkOptions(&opts); err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}

	if opts.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, defaultBufferSize)
	}
	if opts.readBufferSize != defaultReadBufferSize {
		t.Errorf("readBufferSize = %d, want %d", opts.readBufferSize, defaultReadBufferSize)
	}
	if opts.heartbeat != defaultHeartbeat {
		t.Errorf("heartbeat = %v, want %v", opts.heartbeat, defaultHeartbeat)
	}
	if opts.logger == nil {
		t.Error("logger should default to slog")
	}
	if opts.onError(errors.New("x")) != Disconnect {
		t.Error("default onError should disconnect")
	}
}

func TestConn_Write(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, err := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
		BufferSizeOption(1),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	if err := conn.Write(mockMessage{body: []byte("one")}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := string(<-conn.sendMsg); got != "one\n" {
		t.Errorf("queued %q, want %q", got, "one\n")
	}

	_ = conn.Write(mockMessage{body: []byte("two")})
	if err := conn.Write(mockMessage{body: []byte("three")}); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestConn_Write_FrameError(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)

	err := conn.Write(mockMessage{body: []byte("bad\nbody")})
	if !errors.Is(err, framing.ErrDelimiterInPayload) {
		t.Errorf("expected ErrDelimiterInPayload, got %v", err)
	}
}

func TestConn_Write_Closed(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)
	_ = conn.Close()
	_ = conn.Close()

	if !conn.IsClosed() {
		t.Error("IsClosed should be true")
	}
	if err := conn.Write(mockMessage{body: []byte("x")}); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if err := conn.WriteBlocking(context.Background(), mockMessage{}); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if err := conn.WriteTimeout(mockMessage{}, time.Millisecond); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestConn_WriteBlocking(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)

	if err := conn.WriteBlocking(context.Background(), mockMessage{body: []byte("a")}); err != nil {
		t.Fatalf("WriteBlocking failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := conn.WriteBlocking(ctx, mockMessage{body: []byte("b")}); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestConn_WriteTimeout(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)

	if err := conn.WriteTimeout(mockMessage{body: []byte("a")}, time.Second); err != nil {
		t.Fatalf("WriteTimeout failed: %v", err)
	}
	if err := conn.WriteTimeout(mockMessage{body: []byte("b")}, 20*time.Millisecond); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestConn_Run_ContextCanceled(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConn(ctx, conn)

	time.Sleep(50 * time.Millisecond)
	cancel()
	_ = conn.Close()

	waitDone(t, done)
	if !conn.IsClosed() {
		t.Error("connection should be closed after Run")
	}
}

func TestConn_Run_FramesSplitReads(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	received := make(chan string, 3)
	conn, err := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(m Message) error {
			received <- string(m.Body())
			return nil
		}),
		ReadBufferSizeOption(3),
		HeartbeatOption(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	done := runConn(context.Background(), conn)

	for _, chunk := range []string{"AB\n", "CD\n", "E"} {
		if _, err := clientConn.Write([]byte(chunk)); err != nil {
			t.Fatalf("client write failed: %v", err)
		}
	}

	for _, want := range []string{"AB", "CD"} {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("received %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case got := <-received:
		t.Errorf("unexpected message %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	clientConn.Close()
	waitDone(t, done)
}

func TestConn_Run_Echo(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	var conn *Conn
	conn, err := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(m Message) error {
			return conn.Write(m)
		}),
		BufferSizeOption(4),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	done := runConn(context.Background(), conn)

	if _, err := clientConn.Write([]byte("ping\n")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 16)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if string(buf[:n]) != "ping\n" {
		t.Errorf("echo = %q, want %q", buf[:n], "ping\n")
	}

	_ = conn.Close()
	waitDone(t, done)
}

func TestConn_Run_FramingErrorDisconnects(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	framer, _ := framing.NewDelimiterFramer([]byte("\n"), framing.WithMaxMessageSize(4))
	received := make(chan string, 2)
	onErrorCalled := false

	conn, _ := NewConn(serverConn,
		FramerOption(framer),
		OnMessageOption(func(m Message) error {
			received <- string(m.Body())
			return nil
		}),
		OnErrorOption(func(error) ErrorAction {
			onErrorCalled = true
			return Continue
		}),
	)
	done := runConn(context.Background(), conn)

	if _, err := clientConn.Write([]byte("ok\nway too long\n")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	err := waitDone(t, done)
	if !errors.Is(err, framing.ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if onErrorCalled {
		t.Error("framing errors must not reach onError")
	}
	if got := <-received; got != "ok" {
		t.Errorf("received %q, want %q", got, "ok")
	}
}

func TestConn_Run_OnMessageError(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	onMessageErr := errors.New("onMessage error")
	conn, _ := NewConn(serverConn,
		FramerOption(&mockFramer{}),
		OnMessageOption(func(Message) error { return onMessageErr }),
	)
	done := runConn(context.Background(), conn)

	_, _ = clientConn.Write([]byte("test"))

	if err := waitDone(t, done); err != onMessageErr {
		t.Errorf("expected onMessage error, got %v", err)
	}
}

func TestConn_Run_ReadTimeoutContinue(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	timeouts := make(chan struct{}, 8)
	received := make(chan string, 1)
	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(m Message) error {
			received <- string(m.Body())
			return nil
		}),
		OnErrorOption(func(err error) ErrorAction {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				select {
				case timeouts <- struct{}{}:
				default:
				}
				return Continue
			}
			return Disconnect
		}),
		HeartbeatOption(10*time.Millisecond),
	)
	done := runConn(context.Background(), conn)

	select {
	case <-timeouts:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for read deadline")
	}

	_, _ = clientConn.Write([]byte("late\n"))
	select {
	case got := <-received:
		if got != "late" {
			t.Errorf("received %q, want %q", got, "late")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection stopped after a read timeout")
	}

	_ = conn.Close()
	waitDone(t, done)
}

func TestConn_write_ErrorHandling(t *testing.T) {
	for _, tc := range []struct {
		name    string
		action  ErrorAction
		wantErr bool
	}{
		{"continue", Continue, false},
		{"disconnect", Disconnect, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			serverConn, clientConn := createTestTCPPair(t)
			defer clientConn.Close()

			conn, _ := NewConn(serverConn,
				FramerOption(newLineFramer(t)),
				OnMessageOption(func(Message) error { return nil }),
				OnErrorOption(func(error) ErrorAction { return tc.action }),
			)
			serverConn.Close()

			err := conn.write([]byte("data"))
			if (err != nil) != tc.wantErr {
				t.Errorf("write error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConn_writeLoop_ContextCanceled(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	conn, _ := NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(Message) error { return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := conn.writeLoop(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
