// Package collector fans out across external rate providers and gathers
// per-source outcomes without letting one source's failure affect another.
package collector

import (
	"context"
	"sort"
	"time"

	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/set"
)

// Source is one external rate provider. Implementations normalize their
// provider-native quoting direction to KRW-per-unit before returning records,
// and either return the full parsed set or an error, never a silent partial.
type Source interface {
	// ID is the stable source identifier persisted with each record.
	ID() string

	// Name is the human-readable provider name, used in logs only.
	Name() string

	// Priority orders collection; lower collects first.
	Priority() int

	// Active reports whether the source is usable with the current
	// configuration (typically credential presence).
	Active() bool

	// Timeout bounds a single Fetch call.
	Timeout() time.Duration

	// Fetch retrieves rates for the currencies in the universe.
	Fetch(ctx context.Context, universe set.Set[string]) ([]rates.RawRateRecord, error)
}

// Registry is the explicit set of configured sources, constructed once at
// startup and passed into the Collector.
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry ordered by source priority.
func NewRegistry(sources ...Source) *Registry {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return &Registry{sources: ordered}
}

// All returns every registered source in priority order.
func (r *Registry) All() []Source {
	return r.sources
}

// Active returns the sources whose activation predicate holds, in priority
// order.
func (r *Registry) Active() []Source {
	active := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Active() {
			active = append(active, src)
		}
	}
	return active
}
