//go:build integration

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"checkin/internal/checkin/ports"
	"checkin/pkg/testutil/containers"
)

func TestRedisRegistryStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redis := containers.GetManager().GetRedis(t)

	suite.Run(t, &registryStoreSuite{
		newStore: func(t *testing.T) ports.RegistryStore {
			if err := redis.FlushAll(context.Background()); err != nil {
				t.Fatalf("flush redis: %v", err)
			}
			return NewRedis(redis.Client, WithKeyPrefix("checkin-test"))
		},
	})
}
