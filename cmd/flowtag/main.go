package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/batch"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
)

const appName = "flowtag"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes one batch and returns the process exit status: 0 when every
// file succeeded, 1 otherwise, 2 on usage errors.
func run(args []string, stderr io.Writer) int {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 2
	}

	// 1. Load configuration
	cfg := config.Default()
	if cli.ConfigPath != "" {
		if cfg, err = config.LoadConfig(cli.ConfigPath); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return 1
		}
	}
	if cli.ProtocolPath != "" {
		cfg.ProtocolFile = cli.ProtocolPath
	}
	if cli.Workers > 0 {
		cfg.Batch.MaxWorkers = cli.Workers
	}

	if _, err := logger.InitWriter(cfg.Log, stderr); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}

	// 2. Load the protocol registry
	reg, err := loadRegistry(cfg.ProtocolFile)
	if err != nil {
		slog.Error("Failed to load protocol registry", "error", err)
		return 1
	}

	// 3. Optional sinks
	writers, err := factory.CreateWriters(cfg.Writers)
	if err != nil {
		slog.Error("Failed to create writers", "error", err)
		return 1
	}
	defer func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				slog.Warn("Failed to close writer", "writer", w.Name(), "error", err)
			}
		}
	}()

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		return 1
	}

	coordinator, err := batch.New(reg, batch.Options{
		LookupPath: cli.LookupPath,
		OutputDir:  cli.OutputDir,
		MaxWorkers: cfg.Workers(),
		Writers:    writers,
		Metrics:    m,
	})
	if err != nil {
		slog.Error("Failed to create batch coordinator", "error", err)
		return 1
	}

	// 4. Run the batch; files in flight finish on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := coordinator.Run(ctx, cli.LogPaths)
	if err != nil {
		slog.Error("Batch aborted", "error", err)
		return 1
	}

	for _, f := range report.Failed() {
		fmt.Fprintf(stderr, "%s: %s: %v\n", appName, f.Path, f.Err)
	}
	if len(report.Failed()) > 0 {
		return 1
	}
	return 0
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		slog.Info("No protocol file configured, using built-in protocol names")
		return registry.Builtin(), nil
	}
	return registry.Load(path)
}
