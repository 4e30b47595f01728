package output

import (
	"context"
	"errors"
	"testing"

	"FlowTagger/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountRows(t *testing.T) {
	result := model.NewFileResult("flow.log")
	result.Tags.Add("web", 10)
	result.Tags.Add(model.UntaggedTag, 2)
	result.PortProtocols.Add(model.PortProtocol{Port: "80", Protocol: "tcp"}, 5)

	rows := countRows(result)
	require.Len(t, rows, 3)

	assert.Equal(t, sectionTag, rows[0].Section)
	assert.Equal(t, "web", *rows[0].Tag)
	assert.Nil(t, rows[0].Port)
	assert.Equal(t, uint64(10), rows[0].Count)

	assert.Equal(t, model.UntaggedTag, *rows[1].Tag)

	assert.Equal(t, sectionPortProtocol, rows[2].Section)
	assert.Nil(t, rows[2].Tag)
	assert.Equal(t, "80", *rows[2].Port)
	assert.Equal(t, "tcp", *rows[2].Protocol)
	assert.Equal(t, uint64(5), rows[2].Count)
}

// stubBatch fails every Append and records how the batch was finished.
type stubBatch struct {
	driver.Batch
	aborted bool
	sent    bool
}

func (b *stubBatch) Append(...any) error { return errors.New("column mismatch") }
func (b *stubBatch) Abort() error { b.aborted = true; return nil }
func (b *stubBatch) Send() error { b.sent = true; return nil }

type stubConn struct {
	driver.Conn
	batch *stubBatch
}

func (c *stubConn) PrepareBatch(context.Context, string, ...driver.PrepareBatchOption) (driver.Batch, error) {
	return c.batch, nil
}

func TestClickHouseWriter_AbortsBatchOnAppendError(t *testing.T) {
	batch := &stubBatch{}
	w := &ClickHouseWriter{conn: &stubConn{batch: batch}}

	result := model.NewFileResult("flow.log")
	result.Tags.Add("web", 1)

	err := w.Write(context.Background(), result)
	require.Error(t, err)
	assert.True(t, batch.aborted)
	assert.False(t, batch.sent)
}
