package checkpoint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behavior every Store must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "run-1", []byte(`{"topic":"dark mode"}`)))

		data, err := store.Load(ctx, "run-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"topic":"dark mode"}`, string(data))
	})

	t.Run("Save replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "run-2", []byte("a")))
		require.NoError(t, store.Save(ctx, "run-2", []byte("b")))

		data, err := store.Load(ctx, "run-2")
		require.NoError(t, err)
		assert.Equal(t, "b", string(data))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"run-1", "run-2"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "run-1"))

		_, err := store.Load(ctx, "run-1")
		assert.ErrorIs(t, err, ErrNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-2"}, ids)

		assert.NoError(t, store.Delete(ctx, "never-saved"))
	})

	t.Run("Claim", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "run-3", []byte("c")))

		data, err := store.Claim(ctx, "run-3")
		require.NoError(t, err)
		assert.Equal(t, "c", string(data))

		_, err = store.Claim(ctx, "run-3")
		assert.ErrorIs(t, err, ErrClaimed)
		_, err = store.Load(ctx, "run-3")
		assert.ErrorIs(t, err, ErrClaimed)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-2"}, ids, "claimed runs are not listed")

		require.NoError(t, store.Delete(ctx, "run-3"))
		_, err = store.Claim(ctx, "run-3")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Claim Non-Existent", func(t *testing.T) {
		_, err := store.Claim(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Concurrent Claim", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "run-4", []byte("d")))

		var wg sync.WaitGroup
		var won, lost atomic.Int32
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Claim(ctx, "run-4")
				switch {
				case err == nil:
					won.Add(1)
				case errors.Is(err, ErrClaimed):
					lost.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), won.Load())
		assert.Equal(t, int32(7), lost.Load())
		require.NoError(t, store.Delete(ctx, "run-4"))
	})
}

func TestMemory_Contract(t *testing.T) {
	runStoreContract(t, NewMemory(0))
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "run", []byte("x")))

	_, err := m.Load(ctx, "run")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Load(ctx, "run")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemory_CopiesData(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, m.Save(ctx, "run", data))
	data[0] = 'z'

	got, err := m.Load(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_Contract(t *testing.T) {
	_, client := newMiniredis(t)
	runStoreContract(t, NewRedisFromClient(client))
}

func TestRedis_TTL(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewRedisFromClient(client, WithTTL(time.Hour), WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run", []byte("x")))
	assert.True(t, mr.Exists("test:run"))
	assert.Equal(t, time.Hour, mr.TTL("test:run"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_ClaimKeepsTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewRedisFromClient(client, WithTTL(time.Hour), WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run", []byte("x")))
	_, err := store.Claim(ctx, "run")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL("test:run"))
	assert.False(t, mr.Exists("test:missing"), "claiming a missing run must not create it")
	_, err = store.Claim(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("test:missing"))
}

func TestRedis_ListPrunesExpired(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewRedisFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "live", []byte("x")))
	// An index entry whose expiry is in the past.
	require.NoError(t, client.ZAdd(ctx, store.indexKey(), backend.Z{Score: 1, Member: "stale"}).Err())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, ids)
}

func TestRedis_Ping(t *testing.T) {
	_, client := newMiniredis(t)
	assert.NoError(t, NewRedisFromClient(client).Ping(context.Background()))
}
