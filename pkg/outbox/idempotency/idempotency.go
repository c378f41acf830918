package idempotency

import (
	"context"
	"errors"
	"time"
)

// store is the slice of pkg/redis.Client the manager needs.
type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager remembers natural keys (a lot and a day, a product and a day) so
// repeated scans emit each alert once per TTL.
type Manager struct {
	store store
	ttl   time.Duration
}

func NewManager(s store, ttl time.Duration) (*Manager, error) {
	if s == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// CheckAndMark reports whether scope/key was already marked and marks it
// otherwise.
func (m *Manager) CheckAndMark(ctx context.Context, scope, key string) (bool, error) {
	k, err := m.key(scope, key)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, k, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Forget clears a mark so the next scan tries again, used when the alert
// could not be queued after marking.
func (m *Manager) Forget(ctx context.Context, scope, key string) error {
	k, err := m.key(scope, key)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, k)
}

func (m *Manager) key(scope, key string) (string, error) {
	if scope == "" || key == "" {
		return "", errors.New("scope and key are required")
	}
	return m.store.IdempotencyKey(scope, key), nil
}
