// Package ratelimit provides fixed-window limiters keyed by actor. The memory
// implementation is process-local; the Redis implementation shares counters
// across API instances.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/redis"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int64
	Window  time.Duration
}

// Limiter decides whether the actor identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy names a limit so different surfaces do not share counters.
type Policy struct {
	Name   string
	Limit  int64
	Window time.Duration
}

func (p Policy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

func (p Policy) scope(key string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("%s:%s", name, key)
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	policy  Policy
	now     func() time.Time
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int64
}

// NewMemory returns a Memory limiter. now may be nil.
func NewMemory(policy Policy, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{policy: policy, now: now, windows: make(map[string]*window)}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	decision := Decision{Allowed: true, Limit: m.policy.Limit, Window: m.policy.Window}
	if !m.policy.enabled() {
		return decision, nil
	}

	now := m.now()
	scope := m.policy.scope(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[scope]
	if !ok || now.Sub(w.start) >= m.policy.Window {
		w = &window{start: now}
		m.windows[scope] = w
		if now.Sub(m.lastSweep) >= m.policy.Window {
			m.sweep(now)
		}
	}
	w.count++

	decision.Count = w.count
	decision.Allowed = w.count <= m.policy.Limit
	return decision, nil
}

// sweep drops expired windows at most once per window length; called with
// mu held.
func (m *Memory) sweep(now time.Time) {
	m.lastSweep = now
	for scope, w := range m.windows {
		if now.Sub(w.start) >= m.policy.Window {
			delete(m.windows, scope)
		}
	}
}

// Redis counts attempts in Redis with a TTL equal to the window.
type Redis struct {
	policy Policy
	store  redis.WindowLimiter
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(policy Policy, store redis.WindowLimiter) (*Redis, error) {
	if store == nil {
		return nil, fmt.Errorf("redis window limiter required")
	}
	return &Redis{policy: policy, store: store}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	decision := Decision{Allowed: true, Limit: r.policy.Limit, Window: r.policy.Window}
	if !r.policy.enabled() {
		return decision, nil
	}
	allowed, count, err := r.store.FixedWindowAllow(ctx, r.policy.scope(key), r.policy.Limit, r.policy.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", r.policy.Name, err)
	}
	decision.Allowed = allowed
	decision.Count = count
	return decision, nil
}
