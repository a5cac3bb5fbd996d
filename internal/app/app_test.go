package app

import (
	"testing"
	"time"

	"github.com/hackgods/availability-holds/internal/config"
	"github.com/hackgods/availability-holds/internal/hold"
)

func TestNewLocker(t *testing.T) {
	t.Parallel()

	local, err := NewLocker(config.Config{LockBackend: "local", LockWait: time.Second}, nil)
	if err != nil {
		t.Fatalf("expected local locker, got %v", err)
	}
	if _, ok := local.(*hold.LocalLocker); !ok {
		t.Fatalf("expected *hold.LocalLocker, got %T", local)
	}

	if _, err := NewLocker(config.Config{LockBackend: "redis"}, nil); err == nil {
		t.Fatalf("expected error for redis backend without a client")
	}
	if _, err := NewLocker(config.Config{LockBackend: "zookeeper"}, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestServiceOptions(t *testing.T) {
	t.Parallel()

	cfg := config.Config{HoldTTL: 2 * time.Hour, SweepBatchSize: 10}
	svc := hold.NewService(nil, nil, nil, nil, ServiceOptions(cfg)...)
	if svc.HoldTTL() != 2*time.Hour {
		t.Fatalf("expected hold ttl from config, got %s", svc.HoldTTL())
	}
}
