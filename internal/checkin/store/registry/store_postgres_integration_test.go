//go:build integration

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"checkin/internal/checkin/ports"
	"checkin/pkg/testutil/containers"
)

func TestPostgresRegistryStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	store := NewPostgres(pg.DB)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	suite.Run(t, &registryStoreSuite{
		newStore: func(t *testing.T) ports.RegistryStore {
			if err := pg.Truncate(context.Background(), "tag_bindings"); err != nil {
				t.Fatalf("truncate: %v", err)
			}
			return store
		},
	})
}
