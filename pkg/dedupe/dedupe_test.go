package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaimOnce(t *testing.T) {
	d := NewMemory(0, nil)
	ctx := context.Background()

	first, err := d.Claim(ctx, "proposal:42")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.Claim(ctx, "proposal:42")
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, d.Release(ctx, "proposal:42"))
	third, err := d.Claim(ctx, "proposal:42")
	require.NoError(t, err)
	assert.True(t, third)
}

func TestMemoryClaimExpires(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	d := NewMemory(time.Hour, func() time.Time { return now })

	ok, _ := d.Claim(context.Background(), "k")
	require.True(t, ok)
	now = now.Add(59 * time.Minute)
	ok, _ = d.Claim(context.Background(), "k")
	require.False(t, ok)
	now = now.Add(2 * time.Minute)
	ok, _ = d.Claim(context.Background(), "k")
	require.True(t, ok)
}

func TestMemoryConcurrentClaimsHaveOneWinner(t *testing.T) {
	d := NewMemory(0, nil)
	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := d.Claim(context.Background(), "proposal:1"); ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

type fakeStore struct {
	keys   map[string]bool
	setErr error
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeStore) DedupeKey(scope, id string) string {
	return "cw:dedupe:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.keys, k)
	}
	return nil
}

func TestRedisClaimAndRelease(t *testing.T) {
	store := &fakeStore{keys: map[string]bool{}}
	d, err := NewRedis(store, "fanout", time.Hour)
	require.NoError(t, err)

	ok, err := d.Claim(context.Background(), "proposal:5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, store.keys["cw:dedupe:fanout:proposal:5"])

	ok, err = d.Claim(context.Background(), "proposal:5")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Release(context.Background(), "proposal:5"))
	assert.Empty(t, store.keys)
}

func TestRedisErrors(t *testing.T) {
	_, err := NewRedis(nil, "fanout", time.Hour)
	require.Error(t, err)
	_, err = NewRedis(&fakeStore{}, "fanout", 0)
	require.Error(t, err)

	d, err := NewRedis(&fakeStore{keys: map[string]bool{}, setErr: errors.New("down")}, "fanout", time.Hour)
	require.NoError(t, err)
	_, err = d.Claim(context.Background(), "x")
	require.Error(t, err)
}
