//go:build integration

package containers

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const defaultRedisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis used by the identity lock suites.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis from REDIS_TEST_IMAGE (default redis:7-alpine)
// and returns a connected client. The container is shared through Manager and
// reaped by Ryuk, so no cleanup is registered on t.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	image := os.Getenv("REDIS_TEST_IMAGE")
	if image == "" {
		image = defaultRedisImage
	}
	container, err := tcredis.Run(ctx, image)
	require.NoError(t, err, "start redis container")

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "parse redis url %q", url)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")

	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

// HeldKeys returns the identity lock keys currently present, sorted.
func (r *RedisContainer) HeldKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, "identity:lock:*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
