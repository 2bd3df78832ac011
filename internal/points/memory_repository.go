package points

import (
	"context"
	"sync"
)

type memoryActivity struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryActivityRepository builds an in-memory activity store for development and tests.
func NewMemoryActivityRepository() ActivityRepository {
	return &memoryActivity{docs: make(map[string][]byte)}
}

func (r *memoryActivity) Get(_ context.Context, address string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[address], nil
}

func (r *memoryActivity) GetMany(_ context.Context, addresses []string) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(addresses))
	for _, a := range addresses {
		if doc, ok := r.docs[a]; ok {
			out[a] = doc
		}
	}
	return out, nil
}

func (r *memoryActivity) All(_ context.Context) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.docs))
	for a, doc := range r.docs {
		out[a] = doc
	}
	return out, nil
}

func (r *memoryActivity) Upsert(_ context.Context, address string, doc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[address] = append([]byte(nil), doc...)
	return nil
}
