package output

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "summaries")
	w, err := NewSummaryWriter(config.SummaryConfig{Dir: dir})
	require.NoError(t, err)
	assert.DirExists(t, dir)

	result := sampleResult("/data/flows/flow.log")
	result.RunID = "run-1"
	result.CompletedAt = time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	result.Stats.Lines = 13
	result.Stats.Matched = 10
	result.Stats.Skipped[model.SkipMalformed] = 3

	require.NoError(t, w.Write(context.Background(), result))

	path := filepath.Join(dir, "run-1", "flow.log.summary.json")
	assert.Equal(t, path, w.SummaryPath("run-1", result.Source))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Summary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, Summary{
		RunID:       "run-1",
		Source:      "/data/flows/flow.log",
		Output:      "flow.log_output.csv",
		CompletedAt: "2024-05-04T10:00:00Z",
		Lines:       13,
		Matched:     10,
		Skipped:     map[string]uint64{"malformed": 3},
		Tags:        1,
		Pairs:       1,
	}, got)
}

func TestSummaryWriter_RequiresDir(t *testing.T) {
	_, err := NewSummaryWriter(config.SummaryConfig{})
	assert.Error(t, err)
}

func TestSummaryWriter_Registered(t *testing.T) {
	writers, err := factory.CreateWriters([]config.WriterDef{
		{Type: "summary", Enabled: true, Summary: config.SummaryConfig{Dir: t.TempDir()}},
		{Type: "clickhouse", Enabled: false},
	})
	require.NoError(t, err)
	require.Len(t, writers, 1)
	assert.Equal(t, "summary", writers[0].Name())
}
