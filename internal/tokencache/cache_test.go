package tokencache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMinter() (func(context.Context) (string, error), *int32) {
	var calls int32
	return func(context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return fmt.Sprintf("token-%d", n), nil
	}, &calls
}

func stores(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
	}
}

func TestKey(t *testing.T) {
	k := Key("1700002", "100", "2500", "UAH")
	assert.Equal(t, k, Key("1700002", "100", "2500", "UAH"))
	assert.NotEqual(t, k, Key("1700002", "100", "2501", "UAH"))
	assert.NotEqual(t, k, Key("1700002", "101", "2500", "UAH"))
	assert.Contains(t, k, keyPrefix)
}

func TestCache_AcquireReusesUntilInvalidated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := New(store, time.Hour, zap.NewNop())
			mint, calls := newMinter()
			key := Key("1700002", "100", "2500", "UAH")

			first, err := cache.Acquire(ctx, key, mint)
			require.NoError(t, err)
			second, err := cache.Acquire(ctx, key, mint)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))

			require.NoError(t, cache.Invalidate(ctx, key))

			third, err := cache.Acquire(ctx, key, mint)
			require.NoError(t, err)
			assert.NotEqual(t, first, third)
			assert.Equal(t, int32(2), atomic.LoadInt32(calls))
		})
	}
}

func TestCache_ConcurrentMintKeepsWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := New(store, time.Hour, zap.NewNop())
			key := Key("m", "1", "1", "UAH")

			// The racing caller stores its token while this caller is minting.
			mint := func(ctx context.Context) (string, error) {
				_, err := store.SetNX(ctx, key, "winner", time.Hour)
				return "loser", err
			}

			got, err := cache.Acquire(ctx, key, mint)
			require.NoError(t, err)
			assert.Equal(t, "winner", got)
		})
	}
}

func TestCache_MintErrorStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache := New(store, time.Hour, zap.NewNop())
	key := Key("m", "1", "1", "UAH")

	_, err := cache.Acquire(ctx, key, func(context.Context) (string, error) {
		return "", errors.New("api down")
	})
	require.Error(t, err)

	_, ok, _ := store.Get(ctx, key)
	assert.False(t, ok)
}

func TestCache_Observer(t *testing.T) {
	var results []string
	cache := New(NewMemoryStore(), time.Hour, zap.NewNop()).WithObserver(func(r string) {
		results = append(results, r)
	})
	mint, _ := newMinter()

	_, _ = cache.Acquire(context.Background(), "k", mint)
	_, _ = cache.Acquire(context.Background(), "k", mint)

	assert.Equal(t, []string{"miss", "hit"}, results)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.SetNX(ctx, "k", "v", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = store.SetNX(ctx, "k", "other", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, live, _ := store.Get(ctx, "k")
	assert.False(t, live)

	ok, _ = store.SetNX(ctx, "k", "other", time.Minute)
	assert.True(t, ok)
}
