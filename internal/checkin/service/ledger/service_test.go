package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/ports/mocks"
	"checkin/internal/checkin/seed"
	registrysvc "checkin/internal/checkin/service/registry"
	"checkin/internal/checkin/store/entity"
	"checkin/internal/checkin/store/registry"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

type LedgerServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockEntityStore
	publisher *mocks.MockAuditPublisher
	service   *Service
	ctx       context.Context
	at        time.Time
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockEntityStore(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)

	var err error
	s.service, err = New(s.store, WithAuditPublisher(s.publisher))
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.at = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
}

func (s *LedgerServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LedgerServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.ErrorContains(err, "entity store is required")
}

func (s *LedgerServiceSuite) TestCheckInFirstTime() {
	s.store.EXPECT().CheckIn(gomock.Any(), id.EntityID("guest-001"), s.at).
		Return(models.CheckInResult{EntityID: "guest-001", CheckedInAt: s.at}, nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(string(audit.EventGuestCheckedIn), ev.Action)
		s.Equal(id.EntityID("guest-001"), ev.EntityID)
		return nil
	})

	res, err := s.service.CheckIn(s.ctx, "guest-001", s.at)
	s.Require().NoError(err)
	s.False(res.WasAlreadyCheckedIn)
}

func (s *LedgerServiceSuite) TestCheckInRepeated() {
	s.store.EXPECT().CheckIn(gomock.Any(), id.EntityID("guest-002"), gomock.Any()).
		Return(models.CheckInResult{EntityID: "guest-002", WasAlreadyCheckedIn: true, CheckedInAt: s.at}, nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(string(audit.EventGuestCheckInRepeated), ev.Action)
		return nil
	})

	res, err := s.service.CheckIn(s.ctx, "guest-002", s.at.Add(time.Hour))
	s.Require().NoError(err)
	s.True(res.WasAlreadyCheckedIn)
	s.Equal(s.at, res.CheckedInAt)
}

func (s *LedgerServiceSuite) TestCheckInUnknownEntityIsAudited() {
	s.store.EXPECT().CheckIn(gomock.Any(), id.EntityID("guest-404"), gomock.Any()).
		Return(models.CheckInResult{}, sentinel.ErrNotFound)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(string(audit.EventEntityNotFound), ev.Action)
		return nil
	})

	_, err := s.service.CheckIn(s.ctx, "guest-404", s.at)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerServiceSuite) TestCheckInStoreFailure() {
	s.store.EXPECT().CheckIn(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.CheckInResult{}, errors.New("connection refused"))

	_, err := s.service.CheckIn(s.ctx, "guest-001", s.at)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *LedgerServiceSuite) TestGiveSouvenirOnlyAuditsFirstTime() {
	gomock.InOrder(
		s.store.EXPECT().GiveSouvenir(gomock.Any(), id.EntityID("guest-001")).
			Return(models.SouvenirResult{EntityID: "guest-001"}, nil),
		s.store.EXPECT().GiveSouvenir(gomock.Any(), id.EntityID("guest-001")).
			Return(models.SouvenirResult{EntityID: "guest-001", WasAlreadyGiven: true}, nil),
	)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	res, err := s.service.GiveSouvenir(s.ctx, "guest-001")
	s.Require().NoError(err)
	s.False(res.WasAlreadyGiven)

	res, err = s.service.GiveSouvenir(s.ctx, "guest-001")
	s.Require().NoError(err)
	s.True(res.WasAlreadyGiven)
}

func (s *LedgerServiceSuite) TestEntityNotFound() {
	s.store.EXPECT().Get(gomock.Any(), id.EntityID("guest-404")).Return(nil, sentinel.ErrNotFound)

	_, err := s.service.Entity(s.ctx, "guest-404")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerServiceSuite) TestImportGuestsRejectsExistingIDs() {
	s.store.EXPECT().Get(gomock.Any(), id.EntityID("guest-001")).Return(&models.Entity{ID: "guest-001"}, nil)

	_, err := s.service.ImportGuests(s.ctx, []models.GuestImport{{ID: "guest-001", FirstName: "Jane"}})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *LedgerServiceSuite) TestImportGuestsWithTagsNeedsRegistry() {
	_, err := s.service.ImportGuests(s.ctx, []models.GuestImport{{ID: "guest-009", NFCTag: "04:AA:BB:CC:DD"}})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

// Repeated check-ins of the same guest never move the timestamp and never
// double count.
func TestCheckInIdempotentTimestamp(t *testing.T) {
	ctx := context.Background()
	store := entity.NewInMemory()
	require.NoError(t, store.Import(ctx, []*models.Entity{
		{ID: "guest-001", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnline},
	}))
	svc, err := New(store)
	require.NoError(t, err)

	t1 := time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
	first, err := svc.CheckIn(ctx, "guest-001", t1)
	require.NoError(t, err)
	assert.False(t, first.WasAlreadyCheckedIn)

	second, err := svc.CheckIn(ctx, "guest-001", t1.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, second.WasAlreadyCheckedIn)
	assert.Equal(t, t1, second.CheckedInAt)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CheckedInCount)
}

func TestConcurrentCheckInsHaveExactlyOneFirst(t *testing.T) {
	ctx := context.Background()
	store := entity.NewInMemory()
	require.NoError(t, store.Import(ctx, []*models.Entity{
		{ID: "guest-003", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnline},
	}))
	svc, err := New(store)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	var firsts, repeats atomic.Int32
	at := time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
	for i := range n {
		wg.Go(func() {
			res, err := svc.CheckIn(ctx, "guest-003", at.Add(time.Duration(i)*time.Millisecond))
			if err != nil {
				t.Errorf("check-in: %v", err)
				return
			}
			if res.WasAlreadyCheckedIn {
				repeats.Add(1)
			} else {
				firsts.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
	assert.Equal(t, int32(n-1), repeats.Load())

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CheckedInCount)
}

func TestImportDemoGuests(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 6, 14, 16, 0, 0, 0, time.UTC))
	entities := entity.NewInMemory()
	bindings := registry.NewInMemory()
	reg, err := registrysvc.New(bindings, entities)
	require.NoError(t, err)
	svc, err := New(entities, WithBindingImporter(reg))
	require.NoError(t, err)

	guests, err := seed.DemoGuests()
	require.NoError(t, err)

	summary, err := svc.ImportGuests(ctx, guests)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Entities: 4, Bindings: 3}, summary)

	b, err := bindings.FindBySerial(ctx, "04:A1:B2:C3:D4")
	require.NoError(t, err)
	assert.Equal(t, id.EntityID("guest-002"), b.EntityID)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEntities)
	assert.Equal(t, 3, stats.CheckedInCount)
	assert.Equal(t, 3, stats.SouvenirRemaining)

	_, err = svc.ImportGuests(ctx, guests)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "a second import of the same list is rejected")
}

func TestFailedEntityImportReleasesItsBindings(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 6, 14, 16, 0, 0, 0, time.UTC))
	ctrl := gomock.NewController(t)
	store := mocks.NewMockEntityStore(ctrl)
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound).AnyTimes()
	store.EXPECT().Import(gomock.Any(), gomock.Any()).Return(errors.New("db unavailable"))

	bindings := registry.NewInMemory()
	require.NoError(t, bindings.Import(ctx, []models.TagBinding{
		{Serial: "04:00:00:00:09", EntityID: "guest-101"},
	}))
	reg, err := registrysvc.New(bindings, entity.NewInMemory())
	require.NoError(t, err)
	svc, err := New(store, WithBindingImporter(reg))
	require.NoError(t, err)

	_, err = svc.ImportGuests(ctx, []models.GuestImport{
		{ID: "guest-100", FirstName: "Nina", RSVPSource: "online", NFCTag: "04:00:00:00:01"},
		{ID: "guest-101", FirstName: "Omar", RSVPSource: "online", NFCTag: "04:00:00:00:09"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = bindings.FindBySerial(ctx, "04:00:00:00:01")
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "tag added by the failed import is released")

	kept, err := bindings.FindBySerial(ctx, "04:00:00:00:09")
	require.NoError(t, err, "tag held before the import stays bound")
	assert.Equal(t, id.EntityID("guest-101"), kept.EntityID)
}
