// serialcomm/metrics.go
package serialcomm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts bridge traffic. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	FramesReceived    *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	BytesSent         prometheus.Counter
	FloodInjections   prometheus.Counter
	StatisticsRecords prometheus.Counter
	Delivered         prometheus.Counter
}

// NewMetrics creates the bridge metrics and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serialbridge",
				Subsystem: "frames",
				Name:      "received_total",
				Help:      "Frames read from the device, by kind",
			},
			[]string{"kind"},
		),
		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serialbridge",
				Subsystem: "frames",
				Name:      "sent_total",
				Help:      "Frames written to the device, by kind",
			},
			[]string{"kind"},
		),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialbridge",
			Subsystem: "link",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the device",
		}),
		FloodInjections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialbridge",
			Subsystem: "flood",
			Name:      "injections_total",
			Help:      "Filler frames queued by flood mode",
		}),
		StatisticsRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialbridge",
			Subsystem: "statistics",
			Name:      "records_total",
			Help:      "Statistics records written to the statistics file",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialbridge",
			Subsystem: "messages",
			Name:      "delivered_total",
			Help:      "Delivered messages reported by the device",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.FramesSent, m.BytesSent,
			m.FloodInjections, m.StatisticsRecords, m.Delivered)
	}
	return m
}

func (m *Metrics) frameReceived(kind FrameKind) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) delivered() {
	if m == nil {
		return
	}
	m.Delivered.Inc()
}

func (m *Metrics) frameSent(kind FrameKind, n int) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind.String()).Inc()
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) floodInjected() {
	if m == nil {
		return
	}
	m.FloodInjections.Inc()
}

func (m *Metrics) statisticsRecorded() {
	if m == nil {
		return
	}
	m.StatisticsRecords.Inc()
}
