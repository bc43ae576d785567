package flow

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the executor's Prometheus collectors. A nil *metrics is a no-op.
type metrics struct {
	processed    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	candidates   *prometheus.GaugeVec
	passDuration prometheus.Histogram
}

func newFlowCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowrun",
			Subsystem: "flow",
			Name:      name,
			Help:      help,
		},
		[]string{"flow"},
	)
}

// newMetrics creates the collectors and registers them with reg. Collectors
// already registered by another executor on the same registry are reused.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		processed: newFlowCounterVec("processed_total", "Candidates processed successfully"),
		failures:  newFlowCounterVec("failures_total", "Handler invocations that failed"),
		skipped:   newFlowCounterVec("skipped_total", "Candidates stamped concurrently by another worker"),
		candidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowrun",
			Subsystem: "flow",
			Name:      "candidates",
			Help:      "Candidates visited in the most recent pass",
		}, []string{"flow"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowrun",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one executor pass over all flows",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	var err error
	if m.processed, err = register(reg, m.processed); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.skipped, err = register(reg, m.skipped); err != nil {
		return nil, err
	}
	if m.candidates, err = register(reg, m.candidates); err != nil {
		return nil, err
	}
	if m.passDuration, err = register(reg, m.passDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) recordProcessed(flow string) {
	if m != nil {
		m.processed.WithLabelValues(flow).Inc()
	}
}

func (m *metrics) recordFailure(flow string) {
	if m != nil {
		m.failures.WithLabelValues(flow).Inc()
	}
}

func (m *metrics) recordSkipped(flow string) {
	if m != nil {
		m.skipped.WithLabelValues(flow).Inc()
	}
}

func (m *metrics) recordCandidates(flow string, n int) {
	if m != nil {
		m.candidates.WithLabelValues(flow).Set(float64(n))
	}
}

func (m *metrics) recordPass(d time.Duration) {
	if m != nil {
		m.passDuration.Observe(d.Seconds())
	}
}
