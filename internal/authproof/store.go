package authproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengePrefix = "challenge:v1:"

// ChallengeStore keeps issued challenges until they are consumed or expire.
// Challenges are keyed by the account they were issued to, so only that account
// can consume one. Take must be atomic so that a challenge is accepted at most once.
type ChallengeStore interface {
	Put(ctx context.Context, challenge Challenge, ttl time.Duration) error
	Take(ctx context.Context, address, id string) (Challenge, error)
}

func challengeKey(address, id string) string {
	return challengePrefix + address + ":" + id
}

// RedisChallengeStore stores challenges as JSON values with a TTL.
type RedisChallengeStore struct {
	client *redis.Client
}

// NewRedisChallengeStore builds a Redis-backed challenge store.
func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

// Put stores the challenge until ttl elapses.
func (s *RedisChallengeStore) Put(ctx context.Context, challenge Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(challenge.Address, challenge.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the challenge.
func (s *RedisChallengeStore) Take(ctx context.Context, address, id string) (Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeKey(address, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("take challenge: %w", err)
	}
	var challenge Challenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return challenge, nil
}
