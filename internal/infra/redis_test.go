package infra

import (
	"context"
	"testing"
)

func TestRedisOptionsNameConnections(t *testing.T) {
	opt, err := redisOptions("redis://localhost:6379/2", "mrgn points")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opt.ClientName != "mrgn-points" {
		t.Fatalf("unexpected client name %q", opt.ClientName)
	}
	if opt.DB != 2 || opt.Addr != "localhost:6379" {
		t.Fatalf("url settings lost: %+v", opt)
	}
}

func TestRedisOptionsKeepExplicitName(t *testing.T) {
	opt, err := redisOptions("redis://localhost:6379/0?client_name=worker", "mrgn points")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opt.ClientName != "worker" {
		t.Fatalf("explicit client name overwritten: %q", opt.ClientName)
	}
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", "mrgn points"); err == nil {
		t.Fatal("expected error for empty url")
	}
}
