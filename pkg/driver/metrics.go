package driver

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	frames       *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	sessions     *prometheus.CounterVec
	supervision  *prometheus.CounterVec
	updates      prometheus.Counter
}

// newMetrics creates the driver's counters and registers them on reg
// when it is non-nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zwave",
				Subsystem: "driver",
				Name:      "frames_total",
				Help:      "Frames decoded or encoded.",
			},
			[]string{"direction"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zwave",
				Subsystem: "driver",
				Name:      "decode_errors_total",
				Help:      "Received frames that could not be decoded, by cause.",
			},
			[]string{"reason"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zwave",
				Subsystem: "driver",
				Name:      "sessions_total",
				Help:      "Partial report and datagram sessions, by outcome.",
			},
			[]string{"kind", "outcome"},
		),
		supervision: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zwave",
				Subsystem: "driver",
				Name:      "supervision_reports_total",
				Help:      "Supervision reports matched to a session, by status.",
			},
			[]string{"status"},
		),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zwave",
			Subsystem: "driver",
			Name:      "value_updates_total",
			Help:      "Value updates published.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.frames, m.decodeErrors, m.sessions, m.supervision, m.updates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
