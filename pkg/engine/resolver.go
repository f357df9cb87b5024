package engine

import (
	"context"
	"fmt"
)

// Backend is the hierarchical key-value configuration store.
// Lookup reports found=false when no data source has the key.
type Backend interface {
	Lookup(ctx context.Context, key string) (value interface{}, found bool, err error)
}

// Lookup tiers reported to observers.
const (
	TierInline   = "inline"
	TierGeneric  = "generic"
	TierSpecific = "specific"
)

// Resolver queries a Backend and normalizes what it returns. It never merges.
type Resolver struct {
	backend  Backend
	observer Observer
}

// NewResolver creates a resolver over backend.
func NewResolver(backend Backend) *Resolver {
	return &Resolver{backend: backend, observer: nopObserver{}}
}

// Resolve looks up key. When the key is absent the fallback is returned,
// or an empty record if fallback is nil.
func (r *Resolver) Resolve(ctx context.Context, flavor Flavor, key string, fallback *ConfigRecord) (ConfigRecord, bool, error) {
	raw, found, err := r.backend.Lookup(ctx, key)
	if err != nil {
		return ConfigRecord{}, false, NewBackendError(key, err)
	}
	if !found {
		if fallback == nil {
			return EmptyRecord(), false, nil
		}
		return fallback.Clone(), false, nil
	}
	rec, err := NormalizeRecord(raw, flavor)
	if err != nil {
		return ConfigRecord{}, false, NewBackendError(key, err)
	}
	return rec, true, nil
}

// ResolveInline resolves a single key with a literal default record.
func (r *Resolver) ResolveInline(ctx context.Context, flavor Flavor, key string, builtin ConfigRecord) (ConfigRecord, error) {
	rec, found, err := r.Resolve(ctx, flavor, key, &builtin)
	if err != nil {
		return ConfigRecord{}, err
	}
	r.observer.ObserveLookup(TierInline, key, found)
	return rec, nil
}

// ResolveTiered resolves the generic key for id's kind, then the specific
// key for id with the generic record as fallback.
func (r *Resolver) ResolveTiered(ctx context.Context, id ResourceIdentifier) (generic, specific ConfigRecord, err error) {
	genericKey, specificKey := ResourceKeys(id)

	generic, found, err := r.Resolve(ctx, FlavorResource, genericKey, nil)
	if err != nil {
		return ConfigRecord{}, ConfigRecord{}, err
	}
	r.observer.ObserveLookup(TierGeneric, genericKey, found)

	specific, found, err = r.Resolve(ctx, FlavorResource, specificKey, &generic)
	if err != nil {
		return ConfigRecord{}, ConfigRecord{}, err
	}
	r.observer.ObserveLookup(TierSpecific, specificKey, found)

	return generic, specific, nil
}

// ResourceKeys returns the generic and specific lookup keys for id.
func ResourceKeys(id ResourceIdentifier) (generic, specific string) {
	generic = ResourceKeyPrefix + id.Kind
	specific = fmt.Sprintf("%s%s_%s", ResourceKeyPrefix, id.Kind, id.Title)
	return generic, specific
}
