package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
)

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(redis.Nil))
	assert.False(t, IsNilError(errors.New("timeout")))
	assert.False(t, IsNilError(nil))
}

func TestClientAgainstServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewClient(ctx, config.Default().Redis)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer c.Close()

	require.NoError(t, c.Set(ctx, "fidx-test:a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "fidx-test:b", "2", time.Minute))
	v, err := c.Get(ctx, "fidx-test:a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	n, err := c.FlushByPattern(ctx, "fidx-test:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = c.Get(ctx, "fidx-test:a")
	assert.True(t, IsNilError(err))
	require.NoError(t, c.Ping(ctx))
}
