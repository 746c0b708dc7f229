package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNamespace is the namespace of the collectors registered by RegisterMetrics.
const MetricsNamespace = "ova"

// RegisterMetrics exposes m through reg as prometheus CounterFunc and GaugeFunc
// collectors. constLabels are attached to every collector, so that several sessions
// can share a registry when each uses distinct labels, e.g. {"instrument": "ova-1"}.
//
// All collectors are attempted; the returned error joins the failures.
func RegisterMetrics(reg prometheus.Registerer, m *ChannelMetrics, constLabels prometheus.Labels) error {
	counter := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   "session",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, fn)
	}

	collectors := []prometheus.Collector{
		counter("exchanges_total", "Number of command/response exchanges started.",
			func() float64 { return float64(m.ExchangeCount.Load()) }),
		counter("exchange_errors_total", "Number of failed exchanges.",
			func() float64 { return float64(m.ExchangeErrCount.Load()) }),
		counter("timeouts_total", "Number of exchanges that ran out of budget.",
			func() float64 { return float64(m.TimeoutCount.Load()) }),
		counter("writes_total", "Number of commands sent without a response.",
			func() float64 { return float64(m.WriteCount.Load()) }),
		counter("sent_bytes_total", "Number of bytes written to the instrument.",
			func() float64 { return float64(m.BytesSent.Load()) }),
		counter("received_bytes_total", "Number of bytes read from the instrument.",
			func() float64 { return float64(m.BytesRecv.Load()) }),
		counter("stale_drains_total", "Number of socket drains before a command.",
			func() float64 { return float64(m.StaleDrainCount.Load()) }),
		counter("discarded_bytes_total", "Number of stale bytes discarded by drains.",
			func() float64 { return float64(m.DiscardedBytes.Load()) }),
		counter("connects_total", "Number of successful session opens.",
			func() float64 { return float64(m.ConnectCount.Load()) }),
		counter("connections_lost_total", "Number of sessions closed by an I/O failure.",
			func() float64 { return float64(m.ConnLostCount.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   "session",
			Name:        "inflight",
			Help:        "1 while an exchange or a reservation holds the command channel.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(m.InflightGauge.Load()) }),
	}

	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
