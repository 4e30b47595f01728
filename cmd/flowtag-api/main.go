package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowTagger/internal/api"
	"FlowTagger/internal/config"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// Load the shared tables before accepting requests
	var reg *registry.Registry
	if cfg.ProtocolFile == "" {
		reg = registry.Builtin()
	} else if reg, err = registry.Load(cfg.ProtocolFile); err != nil {
		slog.Error("Failed to load protocol registry", "error", err)
		os.Exit(1)
	}
	table, err := lookup.Load(cfg.API.LookupFile)
	if err != nil {
		slog.Error("Failed to load lookup table", "error", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(promReg)
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	apiServer := api.NewServer(table, reg, m, promReg)
	server := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, health := api.NewGRPCServer()
	lis, err := net.Listen("tcp", cfg.API.GRPCListenAddr)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "addr", cfg.API.GRPCListenAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC health server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "error", err)
		}
	}()

	go func() {
		slog.Info("API server starting", "addr", server.Addr,
			"protocols", reg.Len(), "lookup_entries", table.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen", "addr", server.Addr, "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("API server shutting down...")

	health.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	slog.Info("API server exited.")
}
