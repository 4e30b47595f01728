package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// WriterFactory creates an optional result writer from its config definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

var (
	mu sync.RWMutex
	// registry holds the mapping of writer types to their factory functions.
	registry = make(map[string]WriterFactory)
)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types returns the registered writer types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// CreateWriters instantiates every enabled writer in defs. On error the
// writers created so far are closed.
func CreateWriters(defs []config.WriterDef) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		slog.Info("Creating result writer", "type", def.Type)

		mu.RLock()
		factory, ok := registry[def.Type]
		mu.RUnlock()
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		w, err := factory(def)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}

	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			slog.Warn("Failed to close writer", "writer", w.Name(), "error", err)
		}
	}
}
