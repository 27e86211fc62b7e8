package schema

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of resolved schema/manifest documents
// Registry keeps in its LRU cache when callers don't pick their own
// (spec §4.E, "Resolution results are cached LRU-style by URI").
const DefaultCacheSize = 256

// Registry resolves schema, manifest, and standard-version-map URIs
// through an ordered chain of ResourceMapping plugins, caching resolved
// bytes by URI.
type Registry struct {
	mappings []ResourceMapping
	cache    *lru.Cache[string, []byte]
}

// NewRegistry creates a Registry with an LRU cache of DefaultCacheSize
// resolved documents.
func NewRegistry() *Registry {
	r, _ := NewRegistryCacheSize(DefaultCacheSize)
	return r
}

// NewRegistryCacheSize creates a Registry whose LRU cache holds
// cacheSize resolved documents.
func NewRegistryCacheSize(cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("schema: new registry: %w", err)
	}

	return &Registry{cache: cache}, nil
}

// AddMapping appends m to the resolution chain; mappings are tried in
// the order they were added.
func (r *Registry) AddMapping(m ResourceMapping) {
	r.mappings = append(r.mappings, m)
}

// Resolve returns the bytes for uri, trying each installed mapping in
// order and caching the first hit.
func (r *Registry) Resolve(uri string) ([]byte, error) {
	if data, ok := r.cache.Get(uri); ok {
		return data, nil
	}

	for _, m := range r.mappings {
		data, ok, err := m.Resolve(uri)
		if err != nil {
			return nil, err
		}

		if ok {
			r.cache.Add(uri, data)
			return data, nil
		}
	}

	return nil, fmt.Errorf("schema: no mapping claims URI %q", uri)
}
