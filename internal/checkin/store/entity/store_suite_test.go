package entity

import (
	"context"
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

type entityStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) ports.EntityStore
	store    ports.EntityStore
}

var (
	importedAt = time.Date(2026, 6, 14, 16, 0, 0, 0, time.UTC)
	firstScan  = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
)

func fixtureEntities() []*models.Entity {
	owner := id.EntityID("guest-001")
	checkedAt := importedAt
	return []*models.Entity{
		{ID: "guest-001", Kind: models.EntityKindGuest, DisplayName: "Ada Lovelace", TableNumber: "1", PlusOneAllowed: true, RSVPSource: models.RSVPSourceOnline},
		{ID: "guest-002", Kind: models.EntityKindGuest, DisplayName: "Alan Turing", TableNumber: "2", RSVPSource: models.RSVPSourceOnsite, CheckedIn: true, CheckedInAt: &checkedAt},
		{ID: "plusone-1", Kind: models.EntityKindPlusOne, DisplayName: "Charles Babbage", OwnerID: &owner, TableNumber: "1", RSVPSource: models.RSVPSourceOnline},
	}
}

func (s *entityStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.Require().NoError(s.store.Import(context.Background(), fixtureEntities()))
}

func (s *entityStoreSuite) TestGet() {
	ctx := context.Background()

	e, err := s.store.Get(ctx, "plusone-1")
	s.Require().NoError(err)
	s.Equal(models.EntityKindPlusOne, e.Kind)
	s.Require().NotNil(e.OwnerID)
	s.Equal(id.EntityID("guest-001"), *e.OwnerID)
	s.False(e.CheckedIn)

	_, err = s.store.Get(ctx, "guest-404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *entityStoreSuite) TestListOrderedByID() {
	all, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(id.EntityID("guest-001"), all[0].ID)
	s.Equal(id.EntityID("guest-002"), all[1].ID)
	s.Equal(id.EntityID("plusone-1"), all[2].ID)
}

func (s *entityStoreSuite) TestCheckInFirstTimestampWins() {
	ctx := context.Background()

	res, err := s.store.CheckIn(ctx, "guest-001", firstScan)
	s.Require().NoError(err)
	s.False(res.WasAlreadyCheckedIn)
	s.True(res.CheckedInAt.Equal(firstScan))

	res, err = s.store.CheckIn(ctx, "guest-001", firstScan.Add(time.Minute))
	s.Require().NoError(err)
	s.True(res.WasAlreadyCheckedIn)
	s.True(res.CheckedInAt.Equal(firstScan))

	e, err := s.store.Get(ctx, "guest-001")
	s.Require().NoError(err)
	s.True(e.CheckedIn)
	s.Require().NotNil(e.CheckedInAt)
	s.True(e.CheckedInAt.Equal(firstScan))
}

func (s *entityStoreSuite) TestCheckInImportedAsCheckedIn() {
	res, err := s.store.CheckIn(context.Background(), "guest-002", firstScan)
	s.Require().NoError(err)
	s.True(res.WasAlreadyCheckedIn)
	s.True(res.CheckedInAt.Equal(importedAt))
}

func (s *entityStoreSuite) TestCheckInUnknown() {
	_, err := s.store.CheckIn(context.Background(), "guest-404", firstScan)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *entityStoreSuite) TestConcurrentCheckInHasOneWinner() {
	ctx := context.Background()
	const goroutines = 25

	var wg sync.WaitGroup
	var first atomic.Int32
	times := make([]time.Time, goroutines)
	for i := range goroutines {
		wg.Go(func() {
			res, err := s.store.CheckIn(ctx, "plusone-1", firstScan.Add(time.Duration(i)*time.Second))
			if !s.NoError(err) {
				return
			}
			if !res.WasAlreadyCheckedIn {
				first.Add(1)
			}
			times[i] = res.CheckedInAt
		})
	}
	wg.Wait()

	s.Equal(int32(1), first.Load(), "exactly one caller performs the check-in")
	for _, t := range times[1:] {
		s.True(t.Equal(times[0]), "every caller observes the same check-in time")
	}
}

func (s *entityStoreSuite) TestGiveSouvenir() {
	ctx := context.Background()

	res, err := s.store.GiveSouvenir(ctx, "guest-001")
	s.Require().NoError(err)
	s.False(res.WasAlreadyGiven)

	res, err = s.store.GiveSouvenir(ctx, "guest-001")
	s.Require().NoError(err)
	s.True(res.WasAlreadyGiven)

	_, err = s.store.GiveSouvenir(ctx, "guest-404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *entityStoreSuite) TestSetBoundTag() {
	ctx := context.Background()
	serial := id.TagSerial("04:A1:B2:C3:D4")

	s.Require().NoError(s.store.SetBoundTag(ctx, "guest-002", &serial))
	e, err := s.store.Get(ctx, "guest-002")
	s.Require().NoError(err)
	s.Require().NotNil(e.BoundTagSerial)
	s.Equal(serial, *e.BoundTagSerial)

	s.Require().NoError(s.store.SetBoundTag(ctx, "guest-002", nil))
	e, err = s.store.Get(ctx, "guest-002")
	s.Require().NoError(err)
	s.Nil(e.BoundTagSerial)

	s.ErrorIs(s.store.SetBoundTag(ctx, "guest-404", &serial), sentinel.ErrNotFound)
}

func (s *entityStoreSuite) TestImportRejectsExistingIDs() {
	ctx := context.Background()

	err := s.store.Import(ctx, []*models.Entity{
		{ID: "guest-003", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnsite},
		{ID: "guest-001", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnsite},
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.Get(ctx, "guest-003")
	s.ErrorIs(err, sentinel.ErrNotFound, "a rejected batch leaves nothing behind")
}

func (s *entityStoreSuite) TestStats() {
	ctx := context.Background()
	_, err := s.store.GiveSouvenir(ctx, "guest-002")
	s.Require().NoError(err)

	st, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(models.Stats{
		TotalEntities:       3,
		GuestCount:          2,
		PlusOneCount:        1,
		PlusOneAllowedCount: 1,
		CheckedInCount:      1,
		OnlineRSVPCount:     2,
		SouvenirGivenCount:  1,
		SouvenirRemaining:   2,
	}, st)

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Equal(models.ComputeStats(all), st, "stored stats agree with a recomputation")
}
