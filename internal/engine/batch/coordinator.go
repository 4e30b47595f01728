// Package batch fans flow log files out to a bounded set of workers, each
// aggregating one file and handing the result to the writers.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/aggregator"
	"FlowTagger/internal/errors"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/output"
	"FlowTagger/internal/registry"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a Coordinator.
type Options struct {
	// LookupPath is the lookup table loaded once per Run.
	LookupPath string
	// OutputDir receives one CSV artifact per successful file. It is created
	// if absent.
	OutputDir string
	// MaxWorkers bounds the number of files processed at once. Zero or less
	// selects config.DefaultMaxWorkers.
	MaxWorkers int
	// Writers are optional sinks called after the CSV artifact is written.
	// Their failures are logged and do not fail the file.
	Writers []model.Writer
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// FileReport is the outcome of one file. Exactly one of Result and Err is set.
type FileReport struct {
	Path    string
	Output  string
	Result  *model.FileResult
	Err     error
	Elapsed time.Duration
}

// Report collects the outcome of every file of a run, in input order.
type Report struct {
	RunID string
	Files []FileReport
}

// Failed returns the reports of the files that could not be processed.
func (r *Report) Failed() []FileReport {
	var failed []FileReport
	for _, f := range r.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Succeeded returns the number of files whose artifact was written.
func (r *Report) Succeeded() int {
	return len(r.Files) - len(r.Failed())
}

// Coordinator runs batches of flow log files against one protocol registry.
type Coordinator struct {
	registry   *registry.Registry
	lookupPath string
	outputDir  string
	numWorkers int
	writers    []model.Writer
	metrics    *metrics.Metrics
}

// New creates a Coordinator.
func New(reg *registry.Registry, opts Options) (*Coordinator, error) {
	if reg == nil {
		return nil, errors.New(errors.KindConfig, "protocol registry is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New(errors.KindConfig, "output directory is required")
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = config.DefaultMaxWorkers
	}
	return &Coordinator{
		registry:   reg,
		lookupPath: opts.LookupPath,
		outputDir:  opts.OutputDir,
		numWorkers: workers,
		writers:    opts.Writers,
		metrics:    opts.Metrics,
	}, nil
}

// Run processes files concurrently. It returns an error only when a shared
// precondition fails: no input files, the output directory cannot be created,
// or the lookup table cannot be loaded. Per-file failures are reported in the
// returned Report and never stop the other files.
func (c *Coordinator) Run(ctx context.Context, files []string) (*Report, error) {
	if len(files) == 0 {
		return nil, errors.New(errors.KindConfig, "no flow log files supplied")
	}
	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to create output directory '%s'", c.outputDir)
	}

	table, err := lookup.Load(c.lookupPath)
	if err != nil {
		slog.Error("Lookup table parsing failed", "path", c.lookupPath, "error", err)
		return nil, err
	}

	runID := uuid.NewString()
	log := slog.With("run", runID)
	warnDuplicateOutputs(log, files)

	csvWriter := output.NewCSVWriter(c.outputDir)
	reports := make([]FileReport, len(files))

	log.Info("Batch started", "files", len(files), "workers", c.numWorkers, "lookup_entries", table.Len())
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(c.numWorkers)
	for _, group := range groupByOutput(files) {
		group := group
		g.Go(func() error {
			for _, i := range group {
				reports[i] = c.processFile(ctx, log, runID, files[i], table, csvWriter)
			}
			return nil
		})
	}
	g.Wait()

	report := &Report{RunID: runID, Files: reports}
	log.Info("Batch finished", "succeeded", report.Succeeded(), "failed", len(report.Failed()), "elapsed", time.Since(start))
	return report, nil
}

// processFile aggregates one file and writes its artifact. It never panics the
// batch; every failure is returned in the report.
func (c *Coordinator) processFile(ctx context.Context, log *slog.Logger, runID, path string, table *lookup.Table, csvWriter *output.CSVWriter) (report FileReport) {
	report.Path = path
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
		c.metrics.ObserveFile(report.Result, report.Err, report.Elapsed)
	}()

	log.Info("Processing flow log", "file", path)

	result, err := aggregator.AggregateFile(path, table, c.registry)
	if err != nil {
		log.Error("Error processing flow log", "file", path, "error", err)
		report.Err = err
		return report
	}
	result.RunID = runID

	if err := csvWriter.Write(ctx, result); err != nil {
		log.Error("Failed to write output file", "file", path, "error", err)
		report.Err = err
		return report
	}
	report.Output = csvWriter.OutputPath(path)
	report.Result = result

	for _, w := range c.writers {
		if err := w.Write(ctx, result); err != nil {
			log.Warn("Writer failed", "writer", w.Name(), "file", path, "error", err)
		}
	}

	log.Info("Completed flow log", "file", path, "output", report.Output,
		"lines", result.Stats.Lines, "tags", result.Tags.Len(), "skipped", result.Stats.TotalSkipped())
	return report
}

// groupByOutput returns the indexes of files grouped by artifact name, in
// order of first appearance. Files of one group are processed sequentially
// so that the last of them owns the artifact.
func groupByOutput(files []string) [][]int {
	pos := make(map[string]int, len(files))
	var groups [][]int
	for i, f := range files {
		base := filepath.Base(f)
		g, ok := pos[base]
		if !ok {
			g = len(groups)
			pos[base] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// warnDuplicateOutputs reports inputs from different directories that share a
// base name and would therefore overwrite each other's artifact.
func warnDuplicateOutputs(log *slog.Logger, files []string) {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		if prev, ok := seen[base]; ok && prev != f {
			log.Warn("Flow logs share a base name, the later one overwrites the output",
				"first", prev, "second", f, "output", fmt.Sprintf("%s_output.csv", base))
			continue
		}
		seen[base] = f
	}
}
