package output

import (
	"testing"
	"time"

	"FlowTagger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSummary(t *testing.T) {
	result := sampleResult("flow.log")
	result.RunID = "7d1b3e0c-1111-4222-8333-944455556666"
	result.CompletedAt = time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	result.Stats.Lines = 12
	result.Stats.Matched = 10
	result.Stats.Skipped[model.SkipNoData] = 2

	data, err := EncodeSummary(result)
	require.NoError(t, err)

	summary, err := DecodeSummary(data)
	require.NoError(t, err)
	fields := summary.AsMap()

	assert.Equal(t, result.RunID, fields["run_id"])
	assert.Equal(t, "flow.log", fields["source"])
	assert.Equal(t, "2024-05-04T10:00:00Z", fields["completed_at"])

	tags := fields["tags"].([]any)
	require.Len(t, tags, 1)
	assert.Equal(t, map[string]any{"tag": "web", "count": 10.0}, tags[0])

	pairs := fields["port_protocols"].([]any)
	require.Len(t, pairs, 1)
	assert.Equal(t, map[string]any{"port": "80", "protocol": "tcp", "count": 5.0}, pairs[0])

	stats := fields["stats"].(map[string]any)
	assert.Equal(t, 12.0, stats["lines"])
	assert.Equal(t, map[string]any{"no-data": 2.0}, stats["skipped"])
}

func TestDecodeSummary_Garbage(t *testing.T) {
	_, err := DecodeSummary([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
