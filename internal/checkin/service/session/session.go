// Package session runs scan sessions: one reader activation producing exactly
// one outcome.
//
// A session moves idle → activating → listening → resolving → committing →
// reporting → idle. Waiting for the reader in listening is the only blocking
// step; Start and Stop return to the caller promptly.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/observability"
	"checkin/internal/checkin/ports"
	"checkin/internal/checkin/reader"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/audit"
)

type State string

const (
	StateIdle       State = "idle"
	StateActivating State = "activating"
	StateListening  State = "listening"
	StateResolving  State = "resolving"
	StateCommitting State = "committing"
	StateReporting  State = "reporting"
)

const defaultSubscriberBuffer = 16

// ErrBusy is returned by Start while a scan is in progress.
var ErrBusy = dErrors.New(dErrors.CodeConflict, "scan already in progress")

type (
	AuditPublisher = ports.AuditPublisher
	TagResolver    = ports.TagResolver
	Ledger         = ports.CheckInRecorder
)

// StartOptions selects the reader and bounds the wait for a tag. A zero
// Timeout waits until a tag arrives or Stop is called.
type StartOptions struct {
	Mode    reader.Mode
	Timeout time.Duration
}

// Status is a point-in-time view of a session.
type Status struct {
	DeviceID    id.DeviceID     `json:"device_id"`
	State       State           `json:"state"`
	ScanID      *id.SessionID   `json:"scan_id,omitempty"`
	Mode        reader.Mode     `json:"mode,omitempty"`
	LastOutcome *models.Outcome `json:"last_outcome,omitempty"`
}

type Session struct {
	deviceID       id.DeviceID
	readers        *reader.Set
	resolver       TagResolver
	ledger         Ledger
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	clock          func() time.Time
	bufferSize     int

	mu      sync.Mutex
	state   State
	scanID  id.SessionID
	mode    reader.Mode
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	last    *models.Outcome
	subs    map[uint64]chan models.Outcome
	nextSub uint64
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Session) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for check-in and outcome times.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithDeviceID(deviceID id.DeviceID) Option {
	return func(s *Session) {
		s.deviceID = deviceID
	}
}

// WithSubscriberBuffer sets how many undelivered outcomes a subscriber may
// hold before further outcomes are dropped for it.
func WithSubscriberBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func New(readers *reader.Set, resolver TagResolver, ledger Ledger, opts ...Option) (*Session, error) {
	if readers == nil {
		return nil, errors.New("reader set is required")
	}
	if resolver == nil {
		return nil, errors.New("tag resolver is required")
	}
	if ledger == nil {
		return nil, errors.New("check-in ledger is required")
	}
	s := &Session{
		readers:    readers,
		resolver:   resolver,
		ledger:     ledger,
		tracer:     otel.Tracer("checkin/session"),
		clock:      time.Now,
		bufferSize: defaultSubscriberBuffer,
		state:      StateIdle,
		subs:       make(map[uint64]chan models.Outcome),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start activates the reader for mode and returns once it is listening.
// The scan itself runs in the background and ends with exactly one outcome
// delivered to subscribers. An absent hardware capability is reported here
// with CodeUnavailable; falling back to another mode is the caller's call.
func (s *Session) Start(ctx context.Context, opts StartOptions) (id.SessionID, error) {
	if opts.Timeout < 0 {
		return id.SessionID{}, dErrors.New(dErrors.CodeValidation, "timeout must not be negative")
	}
	r, err := s.readers.Get(opts.Mode)
	if err != nil {
		return id.SessionID{}, err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return id.SessionID{}, ErrBusy
	}
	// The scan outlives the request that started it; only Stop, the timeout
	// or a tag ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	scanID := id.NewSessionID()
	done := make(chan struct{})
	s.state = StateActivating
	s.scanID = scanID
	s.mode = opts.Mode
	s.cancel = cancel
	s.done = done
	s.stopped = false
	s.mu.Unlock()

	// Activation may block on the device (hardware capability check), so it
	// runs unlocked. A Stop meanwhile cancels runCtx and waits on done.
	events, err := r.Activate(runCtx)
	if err != nil {
		cancel()
		s.mu.Lock()
		stopped := s.stopped
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()
		close(done)
		switch {
		case errors.Is(err, reader.ErrUnsupported):
			return id.SessionID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "nfc reader not supported on this device")
		case stopped:
			return id.SessionID{}, dErrors.Wrap(err, dErrors.CodeConflict, "scan stopped before the reader was ready")
		}
		return id.SessionID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate reader")
	}
	// When Stop came first the session stays in activating; the run below
	// sees the cancelled context and reports Cancelled.
	s.advance(StateActivating, StateListening)

	if s.metrics != nil {
		s.metrics.IncrementActiveSessions()
	}
	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventScanStarted,
		"session_id", scanID.String(),
		"device_id", s.deviceID.String(),
		"mode", opts.Mode.String(),
	)

	go s.run(runCtx, cancel, r, events, opts.Timeout, scanID, opts.Mode, s.clock(), done)
	return scanID, nil
}

// Stop cancels the scan in progress and returns once the reader is
// deactivated and the session is idle. It is a no-op when idle, and does not
// change an outcome that has already been decided.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	if s.state != StateReporting {
		s.stopped = true
	}
	cancel, done, scanID := s.cancel, s.done, s.scanID
	s.mu.Unlock()

	cancel()
	<-done

	if s.logger != nil {
		s.logger.Debug("scan stop completed", "session_id", scanID.String(), "device_id", s.deviceID.String())
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{DeviceID: s.deviceID, State: s.state}
	if s.state != StateIdle {
		scanID := s.scanID
		st.ScanID = &scanID
		st.Mode = s.mode
	}
	if s.last != nil {
		last := *s.last
		st.LastOutcome = &last
	}
	return st
}

// Subscribe registers for outcomes. The returned cancel function removes the
// subscription and closes the channel; calling it more than once is safe.
func (s *Session) Subscribe() (<-chan models.Outcome, func()) {
	ch := make(chan models.Outcome, s.bufferSize)

	s.mu.Lock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) run(
	ctx context.Context,
	cancel context.CancelFunc,
	r reader.Reader,
	events <-chan models.ReaderEvent,
	timeout time.Duration,
	scanID id.SessionID,
	mode reader.Mode,
	startedAt time.Time,
	done chan<- struct{},
) {
	defer close(done)
	defer cancel()

	outcome := s.scan(ctx, events, timeout)
	if s.enterReporting() && outcome.Kind != models.OutcomeCancelled {
		outcome = models.StoppedOutcome(outcome)
	}
	s.report(context.WithoutCancel(ctx), r, outcome, scanID, mode, startedAt)
}

// scan waits for one reader event and carries it through resolve and commit.
func (s *Session) scan(ctx context.Context, events <-chan models.ReaderEvent, timeout time.Duration) models.Outcome {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var tag models.RawTagEvent
	select {
	case <-ctx.Done():
		return models.CancelledOutcome()
	case <-expired:
		return models.TimedOutOutcome()
	case ev, ok := <-events:
		switch {
		case !ok:
			return models.ReaderErrorOutcome("reader stopped before a tag was read")
		case ev.Err != nil:
			return models.ReaderErrorOutcome(ev.Err.Error())
		case ev.Tag == nil:
			return models.ReaderErrorOutcome("reader reported an empty event")
		}
		tag = *ev.Tag
	}
	hint := reader.DecodePayload(tag.Payload)
	if s.logger != nil {
		s.logger.DebugContext(ctx, "tag detected",
			"serial", tag.Serial.String(),
			"device_id", s.deviceID.String(),
			"payload_type", string(hint.Type),
		)
	}

	if !s.advance(StateListening, StateResolving) {
		return models.CancelledOutcome()
	}
	binding, err := s.resolve(ctx, tag.Serial)
	if ctx.Err() != nil {
		return models.CancelledOutcome()
	}
	if err != nil {
		s.logError(ctx, "tag lookup failed", err, "serial", tag.Serial.String())
		return models.IntegrityErrorOutcome(tag.Serial, "", "tag lookup failed")
	}
	if binding == nil {
		return models.UnknownTagOutcome(tag.Serial)
	}
	// The registry is authoritative; a stale record on the tag is only noted.
	if hint.GuestID != "" && hint.GuestID != binding.EntityID.String() && s.logger != nil {
		s.logger.WarnContext(ctx, "tag payload disagrees with registry",
			"serial", tag.Serial.String(),
			"entity_id", binding.EntityID.String(),
			"payload_guest_id", hint.GuestID,
		)
	}

	if !s.advance(StateResolving, StateCommitting) {
		return models.CancelledOutcome()
	}
	// A check-in that has started is allowed to finish; a Stop meanwhile
	// turns the reported outcome into Cancelled.
	result, err := s.commit(context.WithoutCancel(ctx), binding.EntityID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logError(ctx, "tag bound to unknown entity", err,
				"serial", tag.Serial.String(), "entity_id", binding.EntityID.String())
			return models.IntegrityErrorOutcome(tag.Serial, binding.EntityID, "bound entity not found")
		}
		s.logError(ctx, "check-in failed", err,
			"serial", tag.Serial.String(), "entity_id", binding.EntityID.String())
		return models.IntegrityErrorOutcome(tag.Serial, binding.EntityID, "check-in could not be recorded")
	}
	return models.SuccessOutcome(tag.Serial, binding.EntityID, result.WasAlreadyCheckedIn)
}

func (s *Session) resolve(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	ctx, span := s.tracer.Start(ctx, "session.resolve",
		trace.WithAttributes(attribute.String("tag.serial", serial.String())))
	defer span.End()

	binding, err := s.resolver.Resolve(ctx, serial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
	}
	return binding, err
}

func (s *Session) commit(ctx context.Context, entityID id.EntityID) (models.CheckInResult, error) {
	ctx, span := s.tracer.Start(ctx, "session.commit",
		trace.WithAttributes(attribute.String("entity.id", entityID.String())))
	defer span.End()

	result, err := s.ledger.CheckIn(ctx, entityID, s.clock())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check-in failed")
		return result, err
	}
	span.SetAttributes(attribute.Bool("checkin.repeated", result.WasAlreadyCheckedIn))
	return result, nil
}

// advance moves from one state to the next unless Stop got there first.
func (s *Session) advance(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state != from {
		return false
	}
	s.state = to
	return true
}

// enterReporting fixes the outcome: once in reporting, Stop no longer
// affects it. Reports whether a stop was requested first.
func (s *Session) enterReporting() (stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReporting
	return s.stopped
}

// report deactivates the reader, then stamps and delivers the outcome and
// returns the session to idle.
func (s *Session) report(ctx context.Context, r reader.Reader, outcome models.Outcome, scanID id.SessionID, mode reader.Mode, startedAt time.Time) {
	r.Deactivate()

	now := s.clock()
	outcome.SessionID = scanID
	outcome.At = now
	if outcomeID, err := id.NewOutcomeID(now); err == nil {
		outcome.ID = outcomeID
	} else {
		s.logError(ctx, "failed to generate outcome id", err)
	}

	s.mu.Lock()
	last := outcome
	s.last = &last
	for key, ch := range s.subs {
		select {
		case ch <- outcome:
		default:
			if s.logger != nil {
				s.logger.WarnContext(ctx, "outcome subscriber full, dropping outcome",
					"subscriber", key, "session_id", scanID.String())
			}
		}
	}
	s.state = StateIdle
	s.cancel = nil
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions()
		s.metrics.ObserveOutcome(string(outcome.Kind), mode.String(), now.Sub(startedAt).Seconds())
	}

	event := audit.EventScanCompleted
	if outcome.Kind == models.OutcomeCancelled {
		event = audit.EventScanStopped
	}
	reason := string(outcome.Kind)
	if outcome.Reason != "" {
		reason += ": " + outcome.Reason
	}
	observability.LogAudit(ctx, s.logger, s.auditPublisher, event,
		"session_id", scanID.String(),
		"device_id", s.deviceID.String(),
		"serial", outcome.Serial.String(),
		"entity_id", outcome.EntityID.String(),
		"reason", reason,
	)
}

func (s *Session) logError(ctx context.Context, msg string, err error, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "error", err, "device_id", s.deviceID.String())
	s.logger.ErrorContext(ctx, msg, args...)
}
