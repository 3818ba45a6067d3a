package registry

//go:generate mockgen -source=../../ports/ports.go -destination=../../ports/mocks/ports_mocks.go -package=mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/ports/mocks"
	"checkin/internal/checkin/store/entity"
	registrystore "checkin/internal/checkin/store/registry"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

type RegistryServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockRegistryStore
	entities  *mocks.MockEntityStore
	publisher *mocks.MockAuditPublisher
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockRegistryStore(s.ctrl)
	s.entities = mocks.NewMockEntityStore(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)

	var err error
	s.service, err = New(s.store, s.entities, WithAuditPublisher(s.publisher))
	s.Require().NoError(err)

	s.now = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *RegistryServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RegistryServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.entities)
	s.ErrorContains(err, "registry store is required")

	_, err = New(s.store, nil)
	s.ErrorContains(err, "entity lookup is required")
}

func (s *RegistryServiceSuite) TestResolve() {
	s.Run("bound serial", func() {
		b := &models.TagBinding{Serial: "04:A1:B2:C3:D4", EntityID: "guest-002"}
		s.store.EXPECT().FindBySerial(gomock.Any(), id.TagSerial("04:A1:B2:C3:D4")).Return(b, nil)

		got, err := s.service.Resolve(s.ctx, "04:A1:B2:C3:D4")
		s.Require().NoError(err)
		s.Equal(b, got)
	})

	s.Run("unbound serial resolves to nil", func() {
		s.store.EXPECT().FindBySerial(gomock.Any(), id.TagSerial("04:00:00:00:00")).
			Return(nil, sentinel.ErrNotFound)

		got, err := s.service.Resolve(s.ctx, "04:00:00:00:00")
		s.Require().NoError(err)
		s.Nil(got)
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().FindBySerial(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := s.service.Resolve(s.ctx, "04:A1:B2:C3:D4")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *RegistryServiceSuite) TestBindUnknownEntity() {
	s.entities.EXPECT().Get(gomock.Any(), id.EntityID("guest-404")).Return(nil, sentinel.ErrNotFound)

	_, err := s.service.Bind(s.ctx, "04:A1:B2:C3:D4", "guest-404")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistryServiceSuite) TestBindValidation() {
	_, err := s.service.Bind(s.ctx, "", "guest-001")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RegistryServiceSuite) TestBindNewTagMirrorsAndAudits() {
	serial := id.TagSerial("04:99:88:77:66")
	want := models.TagBinding{Serial: serial, EntityID: "guest-001", BoundAt: s.now}

	s.entities.EXPECT().Get(gomock.Any(), id.EntityID("guest-001")).Return(&models.Entity{ID: "guest-001"}, nil)
	s.store.EXPECT().Bind(gomock.Any(), want).Return(models.BindResult{Binding: want}, nil)
	s.store.EXPECT().FindByEntity(gomock.Any(), id.EntityID("guest-001")).Return(&want, nil)
	s.entities.EXPECT().SetBoundTag(gomock.Any(), id.EntityID("guest-001"), &serial).Return(nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(string(audit.EventTagBound), ev.Action)
		s.Equal(id.EntityID("guest-001"), ev.EntityID)
		s.Equal(serial, ev.Serial)
		return nil
	})

	res, err := s.service.Bind(s.ctx, serial, "guest-001")
	s.Require().NoError(err)
	s.False(res.AlreadyBound)
	s.Equal(want, res.Binding)
}

func (s *RegistryServiceSuite) TestBindSamePairIsQuiet() {
	b := models.TagBinding{Serial: "04:A1:B2:C3:D4", EntityID: "guest-002", BoundAt: s.now.Add(-time.Hour)}
	s.entities.EXPECT().Get(gomock.Any(), id.EntityID("guest-002")).Return(&models.Entity{ID: "guest-002"}, nil)
	s.store.EXPECT().Bind(gomock.Any(), gomock.Any()).Return(models.BindResult{Binding: b, AlreadyBound: true}, nil)

	res, err := s.service.Bind(s.ctx, "04:A1:B2:C3:D4", "guest-002")
	s.Require().NoError(err)
	s.True(res.AlreadyBound)
}

func (s *RegistryServiceSuite) TestBindConflict() {
	s.entities.EXPECT().Get(gomock.Any(), id.EntityID("guest-001")).Return(&models.Entity{ID: "guest-001"}, nil)
	s.store.EXPECT().Bind(gomock.Any(), gomock.Any()).Return(models.BindResult{},
		&models.BindConflictError{Serial: "04:A1:B2:C3:D4", ExistingEntityID: "guest-002"})
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(string(audit.EventTagBindConflict), ev.Action)
		s.Contains(ev.Reason, "guest-002")
		return nil
	})

	_, err := s.service.Bind(s.ctx, "04:A1:B2:C3:D4", "guest-001")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	var conflict *models.BindConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(id.EntityID("guest-002"), conflict.ExistingEntityID)
}

func (s *RegistryServiceSuite) TestUnbindUnboundIsNoOp() {
	s.store.EXPECT().Unbind(gomock.Any(), id.TagSerial("04:00:00:00:00")).Return(nil, nil)

	s.NoError(s.service.Unbind(s.ctx, "04:00:00:00:00"))
}

func (s *RegistryServiceSuite) TestUnbindClearsEntity() {
	removed := &models.TagBinding{Serial: "04:I9:J0:K1:L2", EntityID: "guest-003"}
	s.store.EXPECT().Unbind(gomock.Any(), id.TagSerial("04:I9:J0:K1:L2")).Return(removed, nil)
	s.store.EXPECT().FindByEntity(gomock.Any(), id.EntityID("guest-003")).Return(nil, sentinel.ErrNotFound)
	s.entities.EXPECT().SetBoundTag(gomock.Any(), id.EntityID("guest-003"), (*id.TagSerial)(nil)).Return(nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	s.NoError(s.service.Unbind(s.ctx, "04:I9:J0:K1:L2"))
}

func (s *RegistryServiceSuite) TestImportConflict() {
	s.store.EXPECT().Import(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

	err := s.service.Import(s.ctx, []models.TagBinding{{Serial: "04:A1:B2:C3:D4", EntityID: "guest-001"}})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// Bind and rebind behaviour against the real in-memory stores.
func TestBindWithMemoryStores(t *testing.T) {
	ctx := context.Background()
	entities := entity.NewInMemory()
	owner := id.EntityID("guest-003")
	require.NoError(t, entities.Import(ctx, []*models.Entity{
		{ID: "guest-001", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnline},
		{ID: "guest-002", Kind: models.EntityKindGuest, RSVPSource: models.RSVPSourceOnline},
		{ID: "plusone-1", Kind: models.EntityKindPlusOne, OwnerID: &owner, RSVPSource: models.RSVPSourceOnline},
	}))
	svc, err := New(registrystore.NewInMemory(), entities)
	require.NoError(t, err)

	t.Run("bind is idempotent and conflicts leave state", func(t *testing.T) {
		_, err := svc.Bind(ctx, "04:A1:B2:C3:D4", "guest-002")
		require.NoError(t, err)

		res, err := svc.Bind(ctx, "04:A1:B2:C3:D4", "guest-002")
		require.NoError(t, err)
		assert.True(t, res.AlreadyBound)

		_, err = svc.Bind(ctx, "04:A1:B2:C3:D4", "guest-001")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		b, err := svc.Resolve(ctx, "04:A1:B2:C3:D4")
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, id.EntityID("guest-002"), b.EntityID)
	})

	t.Run("rebinding an entity releases its old tag and updates the record", func(t *testing.T) {
		_, err := svc.Bind(ctx, "04:E5:F6:G7:H8", "plusone-1")
		require.NoError(t, err)

		res, err := svc.Bind(ctx, "04:99:88:77:66", "plusone-1")
		require.NoError(t, err)
		require.NotNil(t, res.ReleasedSerial)
		assert.Equal(t, id.TagSerial("04:E5:F6:G7:H8"), *res.ReleasedSerial)

		old, err := svc.Resolve(ctx, "04:E5:F6:G7:H8")
		require.NoError(t, err)
		assert.Nil(t, old)

		e, err := entities.Get(ctx, "plusone-1")
		require.NoError(t, err)
		require.NotNil(t, e.BoundTagSerial)
		assert.Equal(t, id.TagSerial("04:99:88:77:66"), *e.BoundTagSerial)
	})

	t.Run("unbind clears the entity record", func(t *testing.T) {
		require.NoError(t, svc.Unbind(ctx, "04:99:88:77:66"))

		e, err := entities.Get(ctx, "plusone-1")
		require.NoError(t, err)
		assert.Nil(t, e.BoundTagSerial)

		b, err := svc.BindingForEntity(ctx, "plusone-1")
		require.NoError(t, err)
		assert.Nil(t, b)
	})
}
