package ratelimit

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisStoreForTest(t *testing.T) *RedisStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisStore(client)
}

func postgresStoreForTest(t *testing.T) *PostgresStore {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func exerciseStore(t *testing.T, store CounterStore) {
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	bucket := "chat_user"

	c, err := store.Peek(ctx, key, bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Count)

	const n = 25
	counts := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := store.Increment(ctx, key, bucket, time.Minute)
			if assert.NoError(t, err) {
				counts <- c.Count
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int64]bool)
	for c := range counts {
		assert.False(t, seen[c], "count %d returned twice", c)
		seen[c] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "count %d missing", i)
	}

	c, err = store.Peek(ctx, key, bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(n), c.Count)
	assert.True(t, c.ResetAt.After(time.Now().Add(-time.Minute)))

	require.NoError(t, store.Reset(ctx, key, bucket))
	c, err = store.Increment(ctx, key, bucket, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func exerciseExpiry(t *testing.T, store CounterStore) {
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	_, err := store.Increment(ctx, key, "short", time.Second)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	c, err := store.Increment(ctx, key, "short", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestRedisStore(t *testing.T) {
	store := redisStoreForTest(t)
	exerciseStore(t, store)
	exerciseExpiry(t, store)
}

func TestPostgresStore(t *testing.T) {
	store := postgresStoreForTest(t)
	exerciseStore(t, store)
	exerciseExpiry(t, store)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}
