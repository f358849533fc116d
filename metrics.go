package socket

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts connection traffic. Methods on a nil *Metrics do nothing.
type Metrics struct {
	connections   prometheus.Gauge
	received      prometheus.Counter
	sent          prometheus.Counter
	bytesRead     prometheus.Counter
	bytesWritten  prometheus.Counter
	framingErrors prometheus.Counter
}

// NewMetrics creates the connection metrics under namespace and registers them
// on reg. A nil reg returns nil metrics, which disables recording.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "connections",
			Help:      "Number of open connections",
		}),
		received:      counter("messages_received_total", "Messages framed from inbound data"),
		sent:          counter("messages_sent_total", "Messages written to connections"),
		bytesRead:     counter("read_bytes_total", "Bytes read from connections"),
		bytesWritten:  counter("written_bytes_total", "Bytes written to connections"),
		framingErrors: counter("framing_errors_total", "Connections dropped on a framing error"),
	}

	for _, c := range []prometheus.Collector{m.connections, m.received, m.sent, m.bytesRead, m.bytesWritten, m.framingErrors} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register socket metrics")
		}
	}
	return m, nil
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) read(n int) {
	if m != nil {
		m.bytesRead.Add(float64(n))
	}
}

func (m *Metrics) messageReceived() {
	if m != nil {
		m.received.Inc()
	}
}

func (m *Metrics) messageSent(n int) {
	if m != nil {
		m.sent.Inc()
		m.bytesWritten.Add(float64(n))
	}
}

func (m *Metrics) framingError() {
	if m != nil {
		m.framingErrors.Inc()
	}
}
