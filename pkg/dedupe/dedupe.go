// Package dedupe suppresses repeated side effects for the same key. Claims are
// best-effort: a restart (memory) or key expiry (Redis) forgets them.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/redis"
)

// Deduper claims a key for exactly one caller until the key is released or expires.
type Deduper interface {
	// Claim returns true for the first caller and false for every later caller.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a claim so the side effect can be retried.
	Release(ctx context.Context, key string) error
}

// Memory is a process-local deduper with optional expiry.
type Memory struct {
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	claims map[string]time.Time
}

// NewMemory returns a Memory deduper. ttl <= 0 keeps claims for the process lifetime.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{ttl: ttl, now: now, claims: make(map[string]time.Time)}
}

func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if claimedAt, ok := m.claims[key]; ok {
		if m.ttl <= 0 || now.Sub(claimedAt) < m.ttl {
			return false, nil
		}
	}
	m.claims[key] = now
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

// Redis stores claims with SETNX so every API instance sees the same markers.
type Redis struct {
	store redis.DedupeStore
	scope string
	ttl   time.Duration
}

// NewRedis returns a Redis-backed deduper namespaced by scope.
func NewRedis(store redis.DedupeStore, scope string, ttl time.Duration) (*Redis, error) {
	if store == nil {
		return nil, fmt.Errorf("redis dedupe store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("dedupe ttl must be positive")
	}
	return &Redis{store: store, scope: scope, ttl: ttl}, nil
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.store.SetNX(ctx, r.store.DedupeKey(r.scope, key), time.Now().UTC().Format(time.RFC3339), r.ttl)
	if err != nil {
		return false, fmt.Errorf("dedupe claim: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.store.Del(ctx, r.store.DedupeKey(r.scope, key)); err != nil {
		return fmt.Errorf("dedupe release: %w", err)
	}
	return nil
}
