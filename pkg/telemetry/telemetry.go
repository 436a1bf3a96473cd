// Package telemetry exposes agent events as Prometheus metrics.
//
//	m := telemetry.New(prometheus.DefaultRegisterer)
//	agent, err := instrumental.New(cfg, instrumental.WithEventHandler(m))
//	...
//	m.TrackPending(prometheus.DefaultRegisterer, agent.Pending)
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/instrumental/instrumental-go/pkg/instrumental"
	"github.com/instrumental/instrumental-go/pkg/lifecycle"
)

const (
	namespace = "instrumental"
	subsystem = "agent"
)

var states = []lifecycle.State{
	lifecycle.StateDisconnected,
	lifecycle.StateConnecting,
	lifecycle.StateAuthenticating,
	lifecycle.StateStreaming,
	lifecycle.StateClosing,
}

// Metrics implements instrumental.EventHandler by updating Prometheus
// collectors.
type Metrics struct {
	sent           prometheus.Counter
	sendErrors     *prometheus.CounterVec
	dropped        prometheus.Counter
	state          *prometheus.GaugeVec
	queueFull      prometheus.Gauge
	failures       prometheus.Gauge
	reconnectDelay prometheus.Gauge
	sendDuration   prometheus.Histogram
}

var _ instrumental.EventHandler = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		sent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Messages written to the collector.",
		}),
		sendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_failures_total",
			Help:      "Failed connection cycles by cause.",
		}, []string{"cause"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_dropped_total",
			Help:      "Messages rejected because the queue was full.",
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_state",
			Help:      "1 for the current collector connection state, 0 otherwise.",
		}, []string{"state"}),
		queueFull: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_full",
			Help:      "1 while the queue is dropping messages.",
		}),
		failures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "consecutive_failures",
			Help:      "Connection failures since the last successful authentication.",
		}),
		reconnectDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay before the next connection attempt.",
		}),
		sendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Time spent writing one message to the socket.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	m.setState(lifecycle.StateDisconnected)
	return m
}

// TrackPending registers a gauge reporting the queue depth from pending.
func (m *Metrics) TrackPending(reg prometheus.Registerer, pending func() int) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pending_messages",
		Help:      "Queued messages including the one in flight.",
	}, func() float64 { return float64(pending()) })
	return reg.Register(g)
}

func (m *Metrics) OnStateChange(ev instrumental.StateChangeEvent) {
	m.setState(ev.Current)
	if ev.Current == lifecycle.StateStreaming {
		m.failures.Set(0)
		m.reconnectDelay.Set(0)
	}
}

func (m *Metrics) OnSendSuccess(ev instrumental.SendSuccessEvent) {
	m.sent.Inc()
	m.sendDuration.Observe(ev.Duration.Seconds())
}

func (m *Metrics) OnSendError(ev instrumental.SendErrorEvent) {
	m.sendErrors.WithLabelValues(Cause(ev.Error)).Inc()
	m.failures.Set(float64(ev.Failures))
	m.reconnectDelay.Set(ev.Delay.Seconds())
}

func (m *Metrics) OnDrop(instrumental.DropEvent) {
	m.dropped.Inc()
}

func (m *Metrics) OnOverflow(ev instrumental.OverflowEvent) {
	if ev.Full {
		m.queueFull.Set(1)
	} else {
		m.queueFull.Set(0)
	}
}

func (m *Metrics) setState(current lifecycle.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}
