// Command hl7relay accepts HL7 messages over TCP, checks them against a
// metadata registry and publishes them to NATS.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	socket "github.com/Zereker/hl7socket"
	"github.com/Zereker/hl7socket/hl7"
	"github.com/Zereker/hl7socket/internal/config"
	"github.com/Zereker/hl7socket/metadata"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("hl7relay failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg, err := metadata.LoadFile(cfg.HL7.Metadata)
	if err != nil {
		return err
	}
	if _, ok := reg.Struct(cfg.HL7.Root); !ok {
		return errors.Errorf("root type %s is not in %s", cfg.HL7.Root, cfg.HL7.Metadata)
	}

	parserOpts := []hl7.Option{hl7.WithSkipHook(func(id string, offset int) {
		logger.Debug("skipping segment", "segment", id, "offset", offset)
	})}
	if cfg.HL7.Strict {
		parserOpts = append(parserOpts, hl7.WithStrict())
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("hl7relay"))
	if err != nil {
		return errors.Wrap(err, "connect to NATS")
	}
	defer nc.Close()
	logger.Info("connected to NATS", "url", cfg.NATS.URL)

	promReg := prometheus.NewRegistry()
	sockMetrics, err := socket.NewMetrics(promReg, "hl7relay")
	if err != nil {
		return err
	}

	r, err := newRelay(hl7.NewParser(reg, parserOpts...), cfg.HL7.Root, cfg.NATS.SubjectPrefix, nc, logger, promReg)
	if err != nil {
		return err
	}

	framers, err := newFramerFactory(cfg.Framing)
	if err != nil {
		return err
	}

	handler := socket.NewFramedHandler(framers, r.onMessage,
		socket.LoggerOption(logger),
		socket.MetricsOption(sockMetrics),
		socket.HeartbeatOption(cfg.Heartbeat),
	)

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrap(err, "resolve listen address")
	}
	server, err := socket.New(addr, socket.ServerLoggerOption(logger))
	if err != nil {
		return errors.Wrap(err, "listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(ctx, handler)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
		httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		group.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("hl7relay stopped")
		return nil
	}
	return err
}
