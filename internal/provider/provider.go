package provider

import (
	"context"
	"sort"

	"github.com/prospectiq/donorsync-worker/internal/models"
)

// RecordKind selects which stream of provider records a fetch walks.
type RecordKind string

const (
	KindConstituents RecordKind = "constituents"
	KindDonations    RecordKind = "donations"
)

// RawRecord is an untransformed provider record. It is stored alongside the
// normalized fields for audit and debugging.
type RawRecord map[string]interface{}

// BatchIterator walks a finite, non-restartable sequence of record batches.
// Pagination cursors live inside the iterator; adapters share no mutable
// state across iterators for different accounts.
type BatchIterator interface {
	// Next returns the next batch. An empty batch with a nil error signals
	// exhaustion; after that the iterator must not be called again.
	Next(ctx context.Context) ([]RawRecord, error)
}

// Adapter is implemented once per external data source. Fetch performs I/O;
// the Map functions are pure and total for well-formed records. Mapped
// records carry the provider-side external ID and normalized fields only;
// the coordinator stamps account, provider, row ID and sync time.
type Adapter interface {
	Provider() string
	Kinds() []RecordKind
	Fetch(ctx context.Context, credential string, kind RecordKind, batchSize int) (BatchIterator, error)
	MapConstituent(raw RawRecord) (models.Constituent, error)
	MapDonation(raw RawRecord) (models.Donation, error)
}

// Registry maps provider identifiers to adapters. Adding a provider means
// registering its adapter here, not touching the coordinator.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter registered for the provider, if any.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Providers lists registered provider identifiers in stable order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
