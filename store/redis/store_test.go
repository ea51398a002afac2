package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/redis"
	"github.com/xraph/treasury/store/storetest"
)

// TestConformance needs a reachable server:
//
//	TREASURY_TEST_REDIS_ADDR=localhost:6379
//
// Each subtest writes under its own key prefix and deletes it afterwards.
func TestConformance(t *testing.T) {
	addr := os.Getenv("TREASURY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TREASURY_TEST_REDIS_ADDR not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		prefix := "treasury-test-" + uuid.NewString()

		s, err := redis.Open(ctx, &goredis.Options{Addr: addr}, prefix)
		require.NoError(t, err)

		// Registered before storetest closes the store, so it runs after.
		t.Cleanup(func() {
			client := goredis.NewClient(&goredis.Options{Addr: addr})
			defer client.Close()
			iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
			for iter.Next(ctx) {
				_ = client.Del(ctx, iter.Val()).Err()
			}
		})
		return s
	})
}
