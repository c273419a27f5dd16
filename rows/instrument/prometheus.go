package instrument

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports phase latencies and row counts.
type PrometheusObserver struct {
	phaseDuration *prometheus.HistogramVec
	requests      prometheus.Counter
	rows          prometheus.Counter
}

func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ddbrows_phase_duration_seconds",
				Help:    "Time spent in each phase of row materialization",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ddbrows_requests_total",
			Help: "Total number of materialized row requests",
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ddbrows_rows_total",
			Help: "Total number of rows returned",
		}),
	}
	for _, c := range []prometheus.Collector{o.phaseDuration, o.requests, o.rows} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) Observe(_ context.Context, info QueryInfo) {
	for phase, ms := range info.Durations() {
		o.phaseDuration.WithLabelValues(phase).Observe(float64(ms) / 1000)
	}
	o.requests.Inc()
	o.rows.Add(float64(info.Rows))
}
