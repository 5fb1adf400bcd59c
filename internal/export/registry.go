package export

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Exporter)
)

// Register adds an exporter factory to the registry.
// Called by exporter implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Exporter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an exporter factory by name.
func Get(name string) (func(*slog.Logger) Exporter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an exporter for cfg.Type. A nil logger discards.
func New(cfg Config, logger *slog.Logger) (Exporter, error) {
	if cfg.Type == "" {
		return nil, errors.New("export type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownExporterError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	return factory(logger.With("target", cfg.Type)), nil
}

// List returns all registered exporter names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an exporter type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownExporterError is returned when an unknown exporter type is requested.
type UnknownExporterError struct {
	Type      string
	Available []string
}

func (e *UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown export type %q\nAvailable exporters: %v\nHint: Check targets[].type in leapseed.yaml", e.Type, e.Available)
}
