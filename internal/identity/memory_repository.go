package identity

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu        sync.RWMutex
	byAddress map[string]Identity
	codes     map[string]string
}

// NewMemoryRepository builds an in-memory identity store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byAddress: make(map[string]Identity), codes: make(map[string]string)}
}

func (r *memoryRepository) CreateIfAbsent(_ context.Context, identity Identity) (Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.byAddress[identity.Address]; exists {
		return existing, false, nil
	}
	if _, taken := r.codes[identity.ReferralCode]; taken {
		return Identity{}, false, ErrReferralCodeTaken
	}
	r.byAddress[identity.Address] = identity
	r.codes[identity.ReferralCode] = identity.Address
	return identity, true, nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, address string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byAddress[address]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, identity := range r.byAddress {
		if identity.ID == id {
			return identity, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (r *memoryRepository) FindByReferralCode(_ context.Context, code string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	address, ok := r.codes[code]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byAddress[address], nil
}

func (r *memoryRepository) SetReferredBy(_ context.Context, address, referrer string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byAddress[address]
	if !ok {
		return false, ErrNotFound
	}
	if identity.ReferredBy != "" || address == referrer {
		return false, nil
	}
	identity.ReferredBy = referrer
	r.byAddress[address] = identity
	return true, nil
}

func (r *memoryRepository) ListReferees(_ context.Context, referrer string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for address, identity := range r.byAddress {
		if identity.ReferredBy == referrer {
			out = append(out, address)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.byAddress))
	for _, identity := range r.byAddress {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (r *memoryRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(identity *Identity) {
		t := at.UTC()
		identity.LastLogin = &t
	})
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	return r.update(id, func(identity *Identity) { identity.TokenVersion = version })
}

func (r *memoryRepository) update(id string, apply func(*Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for address, identity := range r.byAddress {
		if identity.ID == id {
			apply(&identity)
			r.byAddress[address] = identity
			return nil
		}
	}
	return ErrNotFound
}
