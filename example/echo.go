package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	socket "github.com/Zereker/hl7socket"
	"github.com/Zereker/hl7socket/framing"
)

// Echo server: every newline terminated line is sent back to its sender.
// Try it with `nc 127.0.0.1 12345`.
func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		panic(err)
	}

	server, err := socket.New(addr)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	newFramer := func() (socket.Framer, error) {
		return framing.NewDelimiterFramer([]byte("\n"), framing.WithMaxMessageSize(64<<10))
	}

	echo := func(conn *socket.Conn, m socket.Message) error {
		slog.Debug("echo", "conn_id", conn.ID(), "length", m.Length())
		return conn.Write(m)
	}

	handler := socket.NewFramedHandler(newFramer, echo,
		socket.OnErrorOption(func(err error) socket.ErrorAction {
			slog.Error("connection error", "error", err)
			return socket.Disconnect
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, handler); err != nil && err != context.Canceled {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
