package socket

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_NilRegistry(t *testing.T) {
	m, err := NewMetrics(nil, "test")
	if err != nil || m != nil {
		t.Fatalf("NewMetrics(nil) = %v, %v", m, err)
	}

	// nil metrics record nothing and do not panic
	m.connOpened()
	m.read(10)
	m.messageReceived()
	m.messageSent(3)
	m.framingError()
	m.connClosed()
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg, "test"); err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	if _, err := NewMetrics(reg, "test"); err == nil {
		t.Error("expected error registering twice")
	}
}

func TestMetrics_ConnTraffic(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	serverConn, clientConn := createTestTCPPair(t)
	defer clientConn.Close()

	received := make(chan struct{}, 2)
	var conn *Conn
	conn, err = NewConn(serverConn,
		FramerOption(newLineFramer(t)),
		OnMessageOption(func(msg Message) error {
			received <- struct{}{}
			return conn.Write(msg)
		}),
		MetricsOption(m),
		BufferSizeOption(4),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	done := runConn(context.Background(), conn)

	if _, err := clientConn.Write([]byte("a\nbb\n")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 16)
	total := 0
	for total < 5 {
		n, err := clientConn.Read(buf)
		if err != nil {
			t.Fatalf("client read failed: %v", err)
		}
		total += n
	}

	if got := testutil.ToFloat64(m.received); got != 2 {
		t.Errorf("received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bytesRead); got != 5 {
		t.Errorf("bytes read = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.connections); got != 1 {
		t.Errorf("connections = %v, want 1", got)
	}

	_ = conn.Close()
	waitDone(t, done)

	if got := testutil.ToFloat64(m.sent); got != 2 {
		t.Errorf("sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bytesWritten); got != 5 {
		t.Errorf("bytes written = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.connections); got != 0 {
		t.Errorf("connections = %v, want 0", got)
	}
}
