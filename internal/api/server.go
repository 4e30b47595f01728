// Package api exposes the classifier and the aggregator over HTTP, plus a
// gRPC health service for the flowtag-api process.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"FlowTagger/internal/engine/aggregator"
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/errors"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/registry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds an aggregate request body.
const maxBodySize = 32 << 20

// Server holds the dependencies for API handlers.
type Server struct {
	table    *lookup.Table
	registry *registry.Registry
	metrics  *metrics.Metrics
	router   *mux.Router
}

// NewServer wires the routes. m may be nil; gatherer may be nil to disable
// the /metrics endpoint.
func NewServer(table *lookup.Table, reg *registry.Registry, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{table: table, registry: reg, metrics: m, router: mux.NewRouter()}

	s.router.HandleFunc("/api/v1/classify", s.classifyHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/aggregate", s.aggregateHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/lookup/{port}/{protocol}", s.lookupHandler).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type classifyRequest struct {
	Line string `json:"line"`
}

type classifyResponse struct {
	Outcome  string `json:"outcome"`
	Tag      string `json:"tag,omitempty"`
	Port     string `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type tagCount struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
}

type portProtocolCount struct {
	Port     string `json:"port"`
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

type lineStats struct {
	Lines    uint64            `json:"lines"`
	Matched  uint64            `json:"matched"`
	Untagged uint64            `json:"untagged"`
	Skipped  map[string]uint64 `json:"skipped"`
}

type aggregateResponse struct {
	TagCounts          []tagCount          `json:"tag_counts"`
	PortProtocolCounts []portProtocolCount `json:"port_protocol_counts"`
	Stats              lineStats           `json:"stats"`
}

type lookupResponse struct {
	Port     string `json:"port"`
	Protocol string `json:"protocol"`
	Tag      string `json:"tag"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// classifyHandler classifies a single flow log line.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to decode request: " + err.Error()})
		return
	}

	res := classifier.Classify(req.Line, s.table, s.registry)
	s.metrics.ObserveLine(res)

	resp := classifyResponse{Outcome: res.Outcome.String(), Tag: res.Tag}
	switch res.Outcome {
	case classifier.Matched:
		resp.Port = res.Key.Port
		resp.Protocol = res.Key.Protocol
	case classifier.Skipped:
		resp.Reason = res.Reason.String()
		resp.Detail = res.Detail
	}
	writeJSON(w, http.StatusOK, resp)
}

// aggregateHandler aggregates a flow log sent as the request body.
func (s *Server) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	result, err := aggregator.Aggregate(body, "request", s.table, s.registry)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsData(err) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	s.metrics.ObserveStats(result.Stats)

	resp := aggregateResponse{
		TagCounts:          make([]tagCount, 0, result.Tags.Len()),
		PortProtocolCounts: make([]portProtocolCount, 0, result.PortProtocols.Len()),
		Stats: lineStats{
			Lines:    result.Stats.Lines,
			Matched:  result.Stats.Matched,
			Untagged: result.Stats.Untagged,
			Skipped:  make(map[string]uint64, len(result.Stats.Skipped)),
		},
	}
	result.Tags.Each(func(tag string, n uint64) {
		resp.TagCounts = append(resp.TagCounts, tagCount{Tag: tag, Count: n})
	})
	result.PortProtocols.Each(func(key model.PortProtocol, n uint64) {
		resp.PortProtocolCounts = append(resp.PortProtocolCounts, portProtocolCount{Port: key.Port, Protocol: key.Protocol, Count: n})
	})
	for reason, n := range result.Stats.Skipped {
		resp.Stats.Skipped[reason.String()] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookupHandler returns the tag of a port and protocol keyword.
func (s *Server) lookupHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	port, protocol := vars["port"], strings.ToLower(vars["protocol"])

	tag, ok := s.table.Tag(port, protocol)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no tag for " + port + "/" + protocol})
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Port: port, Protocol: protocol, Tag: tag})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
