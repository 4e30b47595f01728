package output

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const (
	sectionTag          = "tag"
	sectionPortProtocol = "port_protocol"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_tag_counts (
    RunID       String,
    Timestamp   DateTime,
    Source      String,
    Section     LowCardinality(String),
    Tag         Nullable(String),
    Port        Nullable(String),
    Protocol    Nullable(String),
    Count       UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Source, Timestamp);
`

// countRow is one row of the flow_tag_counts table.
type countRow struct {
	Section  string
	Tag      *string
	Port     *string
	Protocol *string
	Count    uint64
}

// ClickHouseWriter inserts tag and port/protocol counts into ClickHouse.
// It implements the model.Writer interface.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	slog.Info("Connected to ClickHouse and ensured table exists", "host", cfg.Host, "database", cfg.Database)

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write inserts one row per tag and one per matched port/protocol pair.
func (w *ClickHouseWriter) Write(ctx context.Context, result *model.FileResult) error {
	rows := countRows(result)
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO flow_tag_counts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	ts := result.CompletedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	for _, row := range rows {
		if err := batch.Append(result.RunID, ts, result.Source, row.Section, row.Tag, row.Port, row.Protocol, row.Count); err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				slog.Warn("Failed to abort ClickHouse batch", "file", result.Source, "error", abortErr)
			}
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	slog.Debug("Wrote counts to ClickHouse", "file", result.Source, "rows", len(rows))
	return nil
}

// Close closes the connection pool.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// countRows flattens result into table rows, tags first, both in encounter
// order.
func countRows(result *model.FileResult) []countRow {
	rows := make([]countRow, 0, result.Tags.Len()+result.PortProtocols.Len())
	result.Tags.Each(func(tag string, n uint64) {
		rows = append(rows, countRow{Section: sectionTag, Tag: &tag, Count: n})
	})
	result.PortProtocols.Each(func(key model.PortProtocol, n uint64) {
		port, protocol := key.Port, key.Protocol
		rows = append(rows, countRow{Section: sectionPortProtocol, Port: &port, Protocol: &protocol, Count: n})
	})
	return rows
}
