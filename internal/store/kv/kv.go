// Package kv provides save-all persistence for the repository's collections.
// Every mutation rewrites the full set of collections; there are no partial
// writes, so a backend either holds a complete consistent snapshot or the
// previous one.
package kv

import (
	"context"
	"sync"
)

// Collection names, each serialized as one JSON document.
const (
	CollectionProducts     = "products"
	CollectionSales        = "sales"
	CollectionRawMaterials = "rawMaterials"
	CollectionEmployees    = "employees"
	CollectionConfig       = "config"
)

type Store interface {
	SaveAll(ctx context.Context, collections map[string][]byte) error
	Load(ctx context.Context) (map[string][]byte, error)
	Close() error
}

// Volatile keeps collections in process memory. It backs the repository when
// no external store is configured and in tests.
type Volatile struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewVolatile() *Volatile {
	return &Volatile{data: make(map[string][]byte)}
}

func (v *Volatile) SaveAll(ctx context.Context, collections map[string][]byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for name, payload := range collections {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		v.data[name] = buf
	}
	return nil
}

func (v *Volatile) Load(ctx context.Context) (map[string][]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string][]byte, len(v.data))
	for name, payload := range v.data {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		out[name] = buf
	}
	return out, nil
}

func (v *Volatile) Close() error { return nil }
