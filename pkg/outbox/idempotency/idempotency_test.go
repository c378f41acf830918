package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryStore struct {
	marks   map[string]time.Duration
	setErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{marks: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.marks[key]; ok {
		return false, nil
	}
	m.marks[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.marks, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "wh:idempotency:" + scope + ":" + id
}

func TestCheckAndMark(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 48*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	seen, err := manager.CheckAndMark(ctx, "alerts:lot_expiring", "lot-1:2026-03-01")
	if err != nil || seen {
		t.Fatalf("first mark: seen=%v err=%v", seen, err)
	}
	if ttl := store.marks["wh:idempotency:alerts:lot_expiring:lot-1:2026-03-01"]; ttl != 48*time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	seen, err = manager.CheckAndMark(ctx, "alerts:lot_expiring", "lot-1:2026-03-01")
	if err != nil || !seen {
		t.Fatalf("second mark: seen=%v err=%v", seen, err)
	}
	seen, _ = manager.CheckAndMark(ctx, "alerts:low_stock", "lot-1:2026-03-01")
	if seen {
		t.Fatal("scopes must not collide")
	}
}

func TestForgetAllowsRetry(t *testing.T) {
	store := newMemoryStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()

	_, _ = manager.CheckAndMark(ctx, "alerts:low_stock", "p-1")
	if err := manager.Forget(ctx, "alerts:low_stock", "p-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if seen, _ := manager.CheckAndMark(ctx, "alerts:low_stock", "p-1"); seen {
		t.Fatal("expected key to be free after Forget")
	}
}

func TestCheckAndMarkErrors(t *testing.T) {
	store := newMemoryStore()
	manager, _ := NewManager(store, time.Hour)
	if _, err := manager.CheckAndMark(context.Background(), "", "k"); err == nil {
		t.Fatal("expected error for empty scope")
	}
	store.setErr = errors.New("redis down")
	if _, err := manager.CheckAndMark(context.Background(), "s", "k"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestNewManagerValidates(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewManager(newMemoryStore(), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
