// Package vdb defines the virtualized database interface (spec.md §6.2):
// the combiner's handle onto whichever time-series backend a resource's
// virtualized queries actually run against. Adapters are stateless,
// replaceable, thin translations from a VirtualizedQuery into a native
// round trip, grounded on the teacher's internal/adapters.EngineAdapter.
package vdb

import (
	"context"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
)

// VirtualizedDatabase is the interface every backend adapter implements.
// Adapters must propagate errors explicitly; no silent retries, no
// hidden fallbacks — the retry policy lives one layer up, in Retrying.
type VirtualizedDatabase interface {
	// Name identifies the backend, e.g. "bigquery", "duckdb", "opcua".
	Name() string

	// PushdownSettings reports which VQ-layer operations this backend
	// accepts natively (spec.md §4.4).
	PushdownSettings() prepare.Capabilities

	// Query executes vq and returns the resulting solution mappings,
	// column-validated against vq.ExpectedColumns() before being handed
	// back to the combiner.
	Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// Registry holds the configured VirtualizedDatabase adapters, keyed by
// the backend name a resource's hasResource IRI maps to.
type Registry struct {
	backends map[string]VirtualizedDatabase
}

func NewRegistry() *Registry {
	return &Registry{backends: map[string]VirtualizedDatabase{}}
}

func (r *Registry) Register(db VirtualizedDatabase) {
	r.backends[db.Name()] = db
}

func (r *Registry) Get(name string) (VirtualizedDatabase, bool) {
	db, ok := r.backends[name]
	return db, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	return names
}

func (r *Registry) CloseAll() error {
	var lastErr error
	for _, db := range r.backends {
		if err := db.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
