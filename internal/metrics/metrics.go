// Package metrics exposes run results as Prometheus metrics written to a
// node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/musicsnap/internal/model"
)

const namespace = "musicsnap"

// Recorder holds the run metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	fetchesTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	payloadBytes   *prometheus.GaugeVec
	rangeState     *prometheus.GaugeVec
	runOutcome     *prometheus.GaugeVec
	lastRunSeconds prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Endpoint fetches by range, endpoint and result.",
		}, []string{"range", "endpoint", "result"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of endpoint fetches in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"range", "endpoint"}),
		payloadBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Size of the last saved payload.",
		}, []string{"range", "endpoint"}),
		rangeState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "range_state",
			Help:      "Terminal state of each range in the last run (1 for the current state).",
		}, []string{"range", "state"}),
		runOutcome: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_outcome",
			Help:      "Outcome of the last run (1 for the current outcome).",
		}, []string{"outcome"}),
		lastRunSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records a finished run.
func (r *Recorder) Observe(summary model.RunSummary, outcome model.RunOutcome, finished time.Time) {
	for _, rr := range summary.Ranges {
		for _, o := range rr.Results {
			result := "success"
			if !o.Success {
				result = o.ErrorKind
			}
			r.fetchesTotal.WithLabelValues(rr.Range.String(), o.Endpoint, result).Inc()
			r.fetchDuration.WithLabelValues(rr.Range.String(), o.Endpoint).Observe(o.Duration.Seconds())
			if o.Success {
				r.payloadBytes.WithLabelValues(rr.Range.String(), o.Endpoint).Set(float64(o.Bytes))
			}
		}
		for _, state := range []model.RangeState{model.StatePromoted, model.StateFallbackRestored, model.StateFallbackUnavailable} {
			r.rangeState.WithLabelValues(rr.Range.String(), string(state)).Set(boolValue(rr.State == state))
		}
	}

	for _, o := range []model.RunOutcome{model.OutcomeSuccess, model.OutcomeDegraded, model.OutcomeFailed} {
		r.runOutcome.WithLabelValues(string(o)).Set(boolValue(o == outcome))
	}
	r.lastRunSeconds.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
