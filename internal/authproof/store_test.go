package authproof

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisChallengeStoreTakeIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisChallengeStore(client)
	ctx := context.Background()
	challenge := Challenge{ID: "c-1", Address: "addr", Message: "sign me", Anchor: Anchor{Blockhash: "h", Height: 7}}

	if err := store.Put(ctx, challenge, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Take(ctx, "addr", "c-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.Message != "sign me" || got.Anchor.Height != 7 {
		t.Fatalf("unexpected challenge: %+v", got)
	}
	if _, err := store.Take(ctx, "addr", "c-1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on second take, got %v", err)
	}
}

func TestRedisChallengeStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisChallengeStore(client)
	ctx := context.Background()
	if err := store.Put(ctx, Challenge{ID: "c-2"}, time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := store.Take(ctx, "", "c-2"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected expired challenge to be gone, got %v", err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore().(*memoryStore)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, Challenge{ID: "c-3"}, time.Minute)
	now = now.Add(2 * time.Minute)

	if _, err := store.Take(ctx, "", "c-3"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestRedisChallengeStoreScopesByAddress(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisChallengeStore(client)
	ctx := context.Background()
	if err := store.Put(ctx, Challenge{ID: "c-4", Address: "owner"}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := store.Take(ctx, "intruder", "c-4"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound for another address, got %v", err)
	}
	if _, err := store.Take(ctx, "owner", "c-4"); err != nil {
		t.Fatalf("owner take after foreign attempt: %v", err)
	}
}

func TestMemoryStoreScopesByAddress(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, Challenge{ID: "c-5", Address: "owner"}, time.Minute)

	if _, err := store.Take(ctx, "intruder", "c-5"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound for another address, got %v", err)
	}
	if _, err := store.Take(ctx, "owner", "c-5"); err != nil {
		t.Fatalf("owner take after foreign attempt: %v", err)
	}
}
