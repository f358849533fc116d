package main

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	socket "github.com/Zereker/hl7socket"
	"github.com/Zereker/hl7socket/codec"
	"github.com/Zereker/hl7socket/hl7"
)

// Message headers added to every published message.
const (
	headerType   = "Hl7-Type"
	headerConnID = "Conn-Id"
)

// publisher is the part of *nats.Conn the relay needs.
type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// relay validates framed messages against the root type and forwards them.
type relay struct {
	parser  *hl7.Parser
	root    string
	subject string
	pub     publisher
	logger  *slog.Logger

	messages *prometheus.CounterVec
}

func newRelay(parser *hl7.Parser, root, prefix string, pub publisher, logger *slog.Logger, reg prometheus.Registerer) (*relay, error) {
	r := &relay{
		parser:  parser,
		root:    root,
		subject: prefix + "." + root,
		pub:     pub,
		logger:  logger,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hl7relay",
			Name:      "messages_total",
			Help:      "Relayed messages by outcome",
		}, []string{"status"}), // status: published, parse_error, publish_error
	}

	if err := reg.Register(r.messages); err != nil {
		return nil, errors.Wrap(err, "register relay metrics")
	}
	return r, nil
}

// onMessage is the socket.FramedHandler callback.
func (r *relay) onMessage(c *socket.Conn, m socket.Message) error {
	return r.handle(c.ID(), m)
}

// handle parses one message and publishes it. A message that does not parse
// is logged and dropped; the connection stays open.
func (r *relay) handle(connID string, m socket.Message) error {
	body := m.Body()

	if _, err := r.parser.Parse(r.root, body, codec.Discard); err != nil {
		r.messages.WithLabelValues("parse_error").Inc()
		r.logger.Warn("dropping unparsable message", "conn_id", connID, "length", m.Length(), "error", err)
		return nil
	}

	msg := nats.NewMsg(r.subject)
	msg.Data = body
	msg.Header.Set(headerType, r.root)
	msg.Header.Set(headerConnID, connID)

	if err := r.pub.PublishMsg(msg); err != nil {
		r.messages.WithLabelValues("publish_error").Inc()
		r.logger.Error("publish failed", "conn_id", connID, "subject", r.subject, "error", err)
		return nil
	}

	r.messages.WithLabelValues("published").Inc()
	r.logger.Debug("message published", "conn_id", connID, "subject", r.subject, "length", m.Length())
	return nil
}
