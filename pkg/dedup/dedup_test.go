package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStoreClaim verifies ids are claimed once until they expire.
func TestMemoryStoreClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	first, err := s.Claim(ctx, "d-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.Claim(ctx, "d-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.Claim(ctx, "d-2")
	require.NoError(t, err)
	assert.True(t, other)

	now = now.Add(time.Hour)
	expired, err := s.Claim(ctx, "d-1")
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Len(t, s.seen, 1)
}

// TestNewStore verifies the backend follows the redis client.
func TestNewStore(t *testing.T) {
	if _, ok := NewStore(nil, 0).(*MemoryStore); !ok {
		t.Fatalf("expected memory store without redis")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	if _, ok := NewStore(client, time.Hour).(*RedisStore); !ok {
		t.Fatalf("expected redis store with a client")
	}
}

// TestRedisStoreUnavailable verifies connection errors surface to the caller.
func TestRedisStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ok, err := NewRedisStore(client, time.Minute).Claim(context.Background(), "d-1")
	assert.Error(t, err)
	assert.False(t, ok)
}
