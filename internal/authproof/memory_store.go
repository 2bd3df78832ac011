package authproof

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	challenge Challenge
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an in-process challenge store for development and tests.
func NewMemoryStore() ChallengeStore {
	return &memoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryStore) Put(_ context.Context, challenge Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[challengeKey(challenge.Address, challenge.ID)] = memoryEntry{challenge: challenge, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryStore) Take(_ context.Context, address, id string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(address, id)
	e, ok := s.entries[key]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	delete(s.entries, key)
	if s.now().After(e.expiresAt) {
		return Challenge{}, ErrChallengeNotFound
	}
	return e.challenge, nil
}
