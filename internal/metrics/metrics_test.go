package metrics

import (
	"errors"
	"testing"
	"time"

	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	result := model.NewFileResult("flow.log")
	result.Stats.Matched = 3
	result.Stats.Untagged = 2
	result.Stats.Skipped[model.SkipNoData] = 4

	m.ObserveFile(result, nil, 10*time.Millisecond)
	m.ObserveFile(nil, errors.New("open failed"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Lines.WithLabelValues("matched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lines.WithLabelValues("untagged")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Lines.WithLabelValues("skipped")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues("no-data")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "flowtag_file_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestObserveLine(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveLine(classifier.Result{Outcome: classifier.Skipped, Reason: model.SkipUnknownProtocol})
	m.ObserveLine(classifier.Result{Outcome: classifier.Matched, Tag: "web"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lines.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues("unknown-protocol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lines.WithLabelValues("matched")))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveFile(nil, nil, time.Second)
	m.ObserveLine(classifier.Result{})
}
