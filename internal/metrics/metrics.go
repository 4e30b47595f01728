package metrics

import (
	"fmt"
	"time"

	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowtag"

// Metrics holds the Prometheus collectors for classification and aggregation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Lines        *prometheus.CounterVec
	LinesSkipped *prometheus.CounterVec
	Files        *prometheus.CounterVec
	FileDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_total",
				Help:      "Flow log lines classified, by outcome",
			},
			[]string{"outcome"},
		),
		LinesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_skipped_total",
				Help:      "Flow log lines skipped, by reason",
			},
			[]string{"reason"},
		),
		Files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Flow log files aggregated, by status",
			},
			[]string{"status"},
		),
		FileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Time spent aggregating and writing one flow log file",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Lines, m.LinesSkipped, m.Files, m.FileDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveFile records one file. result may be nil when err is set.
func (m *Metrics) ObserveFile(result *model.FileResult, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FileDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.Files.WithLabelValues("failed").Inc()
	} else {
		m.Files.WithLabelValues("ok").Inc()
	}
	if result != nil {
		m.ObserveStats(result.Stats)
	}
}

// ObserveStats adds the line statistics of one aggregation.
func (m *Metrics) ObserveStats(stats model.LineStats) {
	if m == nil {
		return
	}
	m.Lines.WithLabelValues(classifier.Matched.String()).Add(float64(stats.Matched))
	m.Lines.WithLabelValues(classifier.Untagged.String()).Add(float64(stats.Untagged))
	m.Lines.WithLabelValues(classifier.Skipped.String()).Add(float64(stats.TotalSkipped()))
	for reason, n := range stats.Skipped {
		m.LinesSkipped.WithLabelValues(reason.String()).Add(float64(n))
	}
}

// ObserveLine records a single classification.
func (m *Metrics) ObserveLine(res classifier.Result) {
	if m == nil {
		return
	}
	m.Lines.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == classifier.Skipped {
		m.LinesSkipped.WithLabelValues(res.Reason.String()).Inc()
	}
}
