package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
)

func init() {
	factory.RegisterWriter("summary", func(def config.WriterDef) (model.Writer, error) {
		return NewSummaryWriter(def.Summary)
	})
}

// Summary is the JSON document written for every processed file.
type Summary struct {
	RunID       string            `json:"run_id"`
	Source      string            `json:"source"`
	Output      string            `json:"output"`
	CompletedAt string            `json:"completed_at"`
	Lines       uint64            `json:"lines"`
	Matched     uint64            `json:"matched"`
	Untagged    uint64            `json:"untagged"`
	Skipped     map[string]uint64 `json:"skipped"`
	Tags        int               `json:"distinct_tags"`
	Pairs       int               `json:"distinct_port_protocols"`
}

// SummaryWriter writes <dir>/<run id>/<base name>.summary.json per result.
type SummaryWriter struct {
	dir string
}

// NewSummaryWriter creates the root directory of the summaries.
func NewSummaryWriter(cfg config.SummaryConfig) (*SummaryWriter, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("summary writer needs a directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create summary directory: %w", err)
	}
	return &SummaryWriter{dir: cfg.Dir}, nil
}

// Name returns the writer type.
func (w *SummaryWriter) Name() string {
	return "summary"
}

// SummaryPath returns where the summary of source is written for a run.
func (w *SummaryWriter) SummaryPath(runID, source string) string {
	if runID == "" {
		runID = "unknown-run"
	}
	return filepath.Join(w.dir, runID, filepath.Base(source)+".summary.json")
}

// Write serializes the line statistics of result.
func (w *SummaryWriter) Write(_ context.Context, result *model.FileResult) error {
	path := w.SummaryPath(result.RunID, result.Source)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	summary := Summary{
		RunID:       result.RunID,
		Source:      result.Source,
		Output:      filepath.Base(result.Source) + outputSuffix,
		CompletedAt: result.CompletedAt.UTC().Format(time.RFC3339),
		Lines:       result.Stats.Lines,
		Matched:     result.Stats.Matched,
		Untagged:    result.Stats.Untagged,
		Skipped:     make(map[string]uint64, len(result.Stats.Skipped)),
		Tags:        result.Tags.Len(),
		Pairs:       result.PortProtocols.Len(),
	}
	for reason, n := range result.Stats.Skipped {
		summary.Skipped[reason.String()] = n
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file '%s': %w", path, err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close summary file '%s': %w", path, err)
	}
	return nil
}

// Close is a no-op.
func (w *SummaryWriter) Close() error {
	return nil
}
