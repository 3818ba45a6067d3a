package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/ports"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// registryStoreSuite runs the same behaviour checks against every
// RegistryStore implementation.
type registryStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) ports.RegistryStore
	store    ports.RegistryStore
}

var boundAt = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)

func binding(serial id.TagSerial, entityID id.EntityID) models.TagBinding {
	return models.TagBinding{Serial: serial, EntityID: entityID, BoundAt: boundAt}
}

func (s *registryStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *registryStoreSuite) TestBindAndFind() {
	ctx := context.Background()

	res, err := s.store.Bind(ctx, binding("04:A1:B2:C3:D4", "guest-002"))
	s.Require().NoError(err)
	s.False(res.AlreadyBound)
	s.Nil(res.ReleasedSerial)

	b, err := s.store.FindBySerial(ctx, "04:A1:B2:C3:D4")
	s.Require().NoError(err)
	s.Equal(id.EntityID("guest-002"), b.EntityID)
	s.True(b.BoundAt.Equal(boundAt))

	b, err = s.store.FindByEntity(ctx, "guest-002")
	s.Require().NoError(err)
	s.Equal(id.TagSerial("04:A1:B2:C3:D4"), b.Serial)
}

func (s *registryStoreSuite) TestFindMissing() {
	ctx := context.Background()

	_, err := s.store.FindBySerial(ctx, "04:00:00:00:00")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByEntity(ctx, "guest-404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *registryStoreSuite) TestBindSameEntityIsNoOp() {
	ctx := context.Background()

	_, err := s.store.Bind(ctx, binding("04:A1:B2:C3:D4", "guest-002"))
	s.Require().NoError(err)

	later := binding("04:A1:B2:C3:D4", "guest-002")
	later.BoundAt = boundAt.Add(time.Hour)
	res, err := s.store.Bind(ctx, later)
	s.Require().NoError(err)
	s.True(res.AlreadyBound)
	s.True(res.Binding.BoundAt.Equal(boundAt), "original bound_at is kept")
}

func (s *registryStoreSuite) TestBindConflictLeavesBinding() {
	ctx := context.Background()

	_, err := s.store.Bind(ctx, binding("04:A1:B2:C3:D4", "guest-002"))
	s.Require().NoError(err)

	_, err = s.store.Bind(ctx, binding("04:A1:B2:C3:D4", "guest-001"))
	var conflict *models.BindConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(id.EntityID("guest-002"), conflict.ExistingEntityID)
	s.ErrorIs(err, sentinel.ErrConflict)

	b, err := s.store.FindBySerial(ctx, "04:A1:B2:C3:D4")
	s.Require().NoError(err)
	s.Equal(id.EntityID("guest-002"), b.EntityID)

	_, err = s.store.FindByEntity(ctx, "guest-001")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *registryStoreSuite) TestRebindReleasesPreviousSerial() {
	ctx := context.Background()

	_, err := s.store.Bind(ctx, binding("04:E5:F6:G7:H8", "plusone-1"))
	s.Require().NoError(err)

	res, err := s.store.Bind(ctx, binding("04:99:88:77:66", "plusone-1"))
	s.Require().NoError(err)
	s.Require().NotNil(res.ReleasedSerial)
	s.Equal(id.TagSerial("04:E5:F6:G7:H8"), *res.ReleasedSerial)

	_, err = s.store.FindBySerial(ctx, "04:E5:F6:G7:H8")
	s.ErrorIs(err, sentinel.ErrNotFound)

	b, err := s.store.FindByEntity(ctx, "plusone-1")
	s.Require().NoError(err)
	s.Equal(id.TagSerial("04:99:88:77:66"), b.Serial)
}

func (s *registryStoreSuite) TestUnbind() {
	ctx := context.Background()

	removed, err := s.store.Unbind(ctx, "04:00:00:00:00")
	s.Require().NoError(err)
	s.Nil(removed, "unbinding an unbound serial is a no-op")

	_, err = s.store.Bind(ctx, binding("04:I9:J0:K1:L2", "guest-003"))
	s.Require().NoError(err)

	removed, err = s.store.Unbind(ctx, "04:I9:J0:K1:L2")
	s.Require().NoError(err)
	s.Require().NotNil(removed)
	s.Equal(id.EntityID("guest-003"), removed.EntityID)

	_, err = s.store.FindByEntity(ctx, "guest-003")
	s.ErrorIs(err, sentinel.ErrNotFound)

	// The serial is free again.
	_, err = s.store.Bind(ctx, binding("04:I9:J0:K1:L2", "guest-001"))
	s.NoError(err)
}

func (s *registryStoreSuite) TestListOrderedBySerial() {
	ctx := context.Background()
	for _, b := range []models.TagBinding{
		binding("04:I9:J0:K1:L2", "guest-003"),
		binding("04:A1:B2:C3:D4", "guest-002"),
		binding("04:E5:F6:G7:H8", "plusone-1"),
	} {
		_, err := s.store.Bind(ctx, b)
		s.Require().NoError(err)
	}

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(id.TagSerial("04:A1:B2:C3:D4"), all[0].Serial)
	s.Equal(id.TagSerial("04:E5:F6:G7:H8"), all[1].Serial)
	s.Equal(id.TagSerial("04:I9:J0:K1:L2"), all[2].Serial)
}

func (s *registryStoreSuite) TestImport() {
	ctx := context.Background()

	s.Run("imports a batch", func() {
		err := s.store.Import(ctx, []models.TagBinding{
			binding("04:A1:B2:C3:D4", "guest-002"),
			binding("04:E5:F6:G7:H8", "plusone-1"),
		})
		s.Require().NoError(err)

		all, err := s.store.List(ctx)
		s.Require().NoError(err)
		s.Len(all, 2)
	})

	s.Run("re-importing the same pairs is accepted", func() {
		err := s.store.Import(ctx, []models.TagBinding{binding("04:A1:B2:C3:D4", "guest-002")})
		s.NoError(err)
	})

	s.Run("overlap with existing state rejects the batch", func() {
		err := s.store.Import(ctx, []models.TagBinding{
			binding("04:I9:J0:K1:L2", "guest-003"),
			binding("04:A1:B2:C3:D4", "guest-001"),
		})
		s.Require().Error(err)
		s.True(errors.Is(err, sentinel.ErrConflict))

		_, err = s.store.FindBySerial(ctx, "04:I9:J0:K1:L2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *registryStoreSuite) TestConcurrentBindSameSerial() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := range goroutines {
		entity := id.EntityID("guest-" + string(rune('a'+i)))
		wg.Go(func() {
			_, err := s.store.Bind(ctx, binding("04:A1:B2:C3:D4", entity))
			var conflict *models.BindConflictError
			switch {
			case err == nil:
				successes.Add(1)
			case errors.As(err, &conflict):
				conflicts.Add(1)
			default:
				s.Failf("unexpected error", "%v", err)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one entity wins the serial")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *registryStoreSuite) TestConcurrentBindSamePair() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var fresh, already atomic.Int32
	for range goroutines {
		wg.Go(func() {
			res, err := s.store.Bind(ctx, binding("04:A1:B2:C3:D4", "guest-002"))
			if !s.NoError(err) {
				return
			}
			if res.AlreadyBound {
				already.Add(1)
			} else {
				fresh.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(1), fresh.Load())
	s.Equal(int32(goroutines-1), already.Load())
}
