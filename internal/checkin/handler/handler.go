// Package handler exposes the check-in engine to staff devices over HTTP and
// streams scan outcomes over a WebSocket feed.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/reader"
	"checkin/internal/checkin/service/ledger"
	"checkin/internal/checkin/service/session"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler_mocks.go -package=mocks

// Ledger is the guest-record side of the engine.
type Ledger interface {
	Entity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	List(ctx context.Context) ([]*models.Entity, error)
	GiveSouvenir(ctx context.Context, entityID id.EntityID) (models.SouvenirResult, error)
	Stats(ctx context.Context) (models.Stats, error)
	ImportGuests(ctx context.Context, guests []models.GuestImport) (ledger.ImportSummary, error)
}

// Registry is the tag binding side of the engine.
type Registry interface {
	Resolve(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error)
	Bind(ctx context.Context, serial id.TagSerial, entityID id.EntityID) (models.BindResult, error)
	Unbind(ctx context.Context, serial id.TagSerial) error
	List(ctx context.Context) ([]models.TagBinding, error)
}

// Sessions hands out the scan session owned by each staff device.
type Sessions interface {
	Session(deviceID id.DeviceID) (*session.Session, error)
	Lookup(deviceID id.DeviceID) (*session.Session, bool)
	Statuses() []session.Status
}

// Handler wires check-in endpoints to the engine services.
type Handler struct {
	ledger   Ledger
	registry Registry
	sessions Sessions
	tokens   TokenIssuer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	defaultMode    reader.Mode
	originPatterns []string
	heartbeat      time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

type Option func(*Handler)

// WithDefaultMode sets the reader mode used when a start request names none.
func WithDefaultMode(mode reader.Mode) Option {
	return func(h *Handler) {
		h.defaultMode = mode
	}
}

// WithOriginPatterns allows cross-origin outcome feed connections from the
// given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.originPatterns = append(h.originPatterns, patterns...)
	}
}

// WithHeartbeat sets the outcome feed ping interval.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// New constructs a check-in handler with its dependencies.
func New(ledger Ledger, registry Registry, sessions Sessions, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		ledger:      ledger,
		registry:    registry,
		sessions:    sessions,
		logger:      logger,
		metrics:     metrics,
		defaultMode: reader.ModeSimulated,
		heartbeat:   defaultHeartbeat,
		closing:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts staff device endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/scan/start", h.HandleStartScan)
	r.Post("/scan/stop", h.HandleStopScan)
	r.Get("/scan/state", h.HandleScanState)
	r.Get("/scan/sessions", h.HandleScanSessions)
	r.Get("/outcomes", h.HandleOutcomeFeed)

	r.Get("/stats", h.HandleStats)
	r.Get("/entities", h.HandleListEntities)
	r.Get("/entities/{id}", h.HandleGetEntity)
	r.Post("/entities/{id}/souvenir", h.HandleGiveSouvenir)

	r.Get("/tags", h.HandleListTags)
	r.Get("/tags/{serial}", h.HandleResolveTag)
	r.Post("/tags/bind", h.HandleBindTag)
	r.Post("/tags/unbind", h.HandleUnbindTag)
}

// RegisterAdmin mounts guest-list and device enrollment endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/guests/import", h.HandleImportGuests)
	if h.tokens != nil {
		r.Post("/devices/token", h.HandleIssueDeviceToken)
	}
}

// Shutdown closes every open outcome feed. Feeds are hijacked connections, so
// http.Server.Shutdown does not wait for them; register this with
// RegisterOnShutdown.
func (h *Handler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// requireDevice returns the authenticated staff device or writes 401.
func (h *Handler) requireDevice(w http.ResponseWriter, r *http.Request) (id.DeviceID, bool) {
	deviceID := requestcontext.DeviceID(r.Context())
	if deviceID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "staff device authentication required"))
		return "", false
	}
	return deviceID, true
}

// HandleStartScan handles POST /scan/start.
func (h *Handler) HandleStartScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deviceID, ok := h.requireDevice(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartScanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sess, err := h.sessions.Session(deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	mode := req.ParsedMode(h.defaultMode)
	scanID, err := sess.Start(ctx, session.StartOptions{Mode: mode, Timeout: req.Timeout()})
	if err != nil {
		h.logger.WarnContext(ctx, "scan start rejected",
			"request_id", requestID,
			"device_id", deviceID,
			"mode", mode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, ScanStartedResponse{
		ScanID:   scanID,
		DeviceID: deviceID,
		Mode:     mode,
		State:    sess.State(),
	})
}

// HandleStopScan handles POST /scan/stop. Stopping an idle device is a no-op.
func (h *Handler) HandleStopScan(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.requireDevice(w, r)
	if !ok {
		return
	}
	sess, found := h.sessions.Lookup(deviceID)
	if !found {
		httputil.WriteJSON(w, http.StatusOK, session.Status{DeviceID: deviceID, State: session.StateIdle})
		return
	}
	sess.Stop()
	httputil.WriteJSON(w, http.StatusOK, sess.Status())
}

// HandleScanState handles GET /scan/state.
func (h *Handler) HandleScanState(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.requireDevice(w, r)
	if !ok {
		return
	}
	sess, found := h.sessions.Lookup(deviceID)
	if !found {
		httputil.WriteJSON(w, http.StatusOK, session.Status{DeviceID: deviceID, State: session.StateIdle})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Status())
}

// HandleScanSessions handles GET /scan/sessions.
func (h *Handler) HandleScanSessions(w http.ResponseWriter, r *http.Request) {
	statuses := h.sessions.Statuses()
	if statuses == nil {
		statuses = []session.Status{}
	}
	httputil.WriteJSON(w, http.StatusOK, ScanSessionsResponse{Sessions: statuses})
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.logError(r, "stats failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleListEntities handles GET /entities.
func (h *Handler) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.ledger.List(r.Context())
	if err != nil {
		h.logError(r, "list entities failed", err)
		httputil.WriteError(w, err)
		return
	}
	if entities == nil {
		entities = []*models.Entity{}
	}
	httputil.WriteJSON(w, http.StatusOK, EntitiesResponse{Entities: entities})
}

// HandleGetEntity handles GET /entities/{id}.
func (h *Handler) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.ledger.Entity(r.Context(), entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// HandleGiveSouvenir handles POST /entities/{id}/souvenir.
func (h *Handler) HandleGiveSouvenir(w http.ResponseWriter, r *http.Request) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.ledger.GiveSouvenir(r.Context(), entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListTags handles GET /tags.
func (h *Handler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.registry.List(r.Context())
	if err != nil {
		h.logError(r, "list bindings failed", err)
		httputil.WriteError(w, err)
		return
	}
	if bindings == nil {
		bindings = []models.TagBinding{}
	}
	httputil.WriteJSON(w, http.StatusOK, TagsResponse{Bindings: bindings})
}

// HandleResolveTag handles GET /tags/{serial}.
func (h *Handler) HandleResolveTag(w http.ResponseWriter, r *http.Request) {
	serial, err := id.ParseTagSerial(chi.URLParam(r, "serial"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	binding, err := h.registry.Resolve(r.Context(), serial)
	if err != nil {
		h.logError(r, "tag lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromBinding(serial, binding))
}

// HandleBindTag handles POST /tags/bind.
func (h *Handler) HandleBindTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BindTagRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.registry.Bind(ctx, req.parsedSerial, req.parsedEntityID)
	if err != nil {
		var conflict *models.BindConflictError
		if errors.As(err, &conflict) {
			httputil.WriteJSON(w, http.StatusConflict, conflictResponse{
				Error:            string(dErrors.CodeConflict),
				ErrorDescription: conflict.Error(),
				ExistingEntityID: conflict.ExistingEntityID,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	resp := BindTagResponse{BindResult: result}
	if e, err := h.ledger.Entity(ctx, req.parsedEntityID); err == nil {
		resp.TagRecord = tagRecordFor(e, result.Binding.BoundAt)
	} else {
		h.logger.WarnContext(ctx, "bound entity could not be reloaded for tag record",
			"request_id", requestID,
			"entity_id", req.parsedEntityID,
			"error", err,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUnbindTag handles POST /tags/unbind.
func (h *Handler) HandleUnbindTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UnbindTagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.registry.Unbind(ctx, req.parsedSerial); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UnbindTagResponse{Serial: req.parsedSerial})
}

// HandleImportGuests handles POST /guests/import.
func (h *Handler) HandleImportGuests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ImportGuestsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	summary, err := h.ledger.ImportGuests(ctx, req.Guests)
	if err != nil {
		h.logger.WarnContext(ctx, "guest import rejected",
			"request_id", requestID,
			"guests", len(req.Guests),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, summary)
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
