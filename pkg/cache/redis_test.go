package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestProvideRedisDisabled verifies an empty address yields no client.
func TestProvideRedisDisabled(t *testing.T) {
	client, cleanup, err := ProvideRedis(Redis{})
	assert.NoError(t, err)
	assert.Nil(t, client)
	cleanup()
}

// TestRedisOptions verifies defaults reach the client options.
func TestRedisOptions(t *testing.T) {
	conf := Redis{Addr: "localhost:6379", DB: 2}
	conf.SetDefaults()
	opts := conf.options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
}
