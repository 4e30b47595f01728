package output

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func init() {
	factory.RegisterWriter("nats", func(def config.WriterDef) (model.Writer, error) {
		return NewNATSPublisher(def.NATS)
	})
}

// DefaultSubject is used when the writer definition has no subject.
const DefaultSubject = "flowtag.results"

// NATSPublisher publishes a protobuf-encoded summary of every result to a
// NATS subject. It implements the model.Writer interface.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server in cfg.
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url, nats.Name("flowtag"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS server", "url", url, "subject", subject)
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Name returns the writer type.
func (p *NATSPublisher) Name() string {
	return "nats"
}

// Write publishes the summary of result.
func (p *NATSPublisher) Write(_ context.Context, result *model.FileResult) error {
	data, err := EncodeSummary(result)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish summary for '%s': %w", result.Source, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// EncodeSummary serializes result as a protobuf Struct:
//
//	run_id, source, completed_at (RFC 3339)
//	tags:           [{tag, count}]
//	port_protocols: [{port, protocol, count}]
//	stats:          {lines, matched, untagged, skipped: {reason: count}}
func EncodeSummary(result *model.FileResult) ([]byte, error) {
	tags := make([]any, 0, result.Tags.Len())
	result.Tags.Each(func(tag string, n uint64) {
		tags = append(tags, map[string]any{"tag": tag, "count": n})
	})
	pairs := make([]any, 0, result.PortProtocols.Len())
	result.PortProtocols.Each(func(key model.PortProtocol, n uint64) {
		pairs = append(pairs, map[string]any{"port": key.Port, "protocol": key.Protocol, "count": n})
	})
	skipped := make(map[string]any, len(result.Stats.Skipped))
	for reason, n := range result.Stats.Skipped {
		skipped[reason.String()] = n
	}

	summary, err := structpb.NewStruct(map[string]any{
		"run_id":         result.RunID,
		"source":         result.Source,
		"completed_at":   result.CompletedAt.UTC().Format(time.RFC3339),
		"tags":           tags,
		"port_protocols": pairs,
		"stats": map[string]any{
			"lines":    result.Stats.Lines,
			"matched":  result.Stats.Matched,
			"untagged": result.Stats.Untagged,
			"skipped":  skipped,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build summary for '%s': %w", result.Source, err)
	}

	data, err := proto.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary for '%s': %w", result.Source, err)
	}
	return data, nil
}

// DecodeSummary parses a payload produced by EncodeSummary.
func DecodeSummary(data []byte) (*structpb.Struct, error) {
	var summary structpb.Struct
	if err := proto.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}
