package keylock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRedis connects to COMPLIANCEHUB_TEST_REDIS_URL or skips.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("COMPLIANCEHUB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("COMPLIANCEHUB_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return client
}

func TestRedis_UnlockTwiceConcurrently(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedis(client, zap.NewNop(), WithTTL(5*time.Second), WithRetryWait(5*time.Millisecond))
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), lockKeyPrefix+key) })

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()

	// A second holder's lock must survive a late call to the first unlock.
	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := l.Lock(ctx2, key)
	require.NoError(t, err)
	unlock()

	n, err := client.Exists(ctx, lockKeyPrefix+key).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	second()

	n, err = client.Exists(ctx, lockKeyPrefix+key).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestRedis_SerializesSameKey(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedis(client, zap.NewNop(), WithRetryWait(5*time.Millisecond))
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), lockKeyPrefix+key) })

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, key)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	next, err := l.Lock(ctx, key)
	require.NoError(t, err)
	next()
}
