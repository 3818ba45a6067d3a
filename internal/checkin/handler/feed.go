package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/service/session"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

// FeedSubprotocol must be offered by outcome feed clients.
const FeedSubprotocol = "checkin.outcomes.v1"

const (
	defaultHeartbeat  = 30 * time.Second
	feedWriteTimeout  = 5 * time.Second
	feedPingTimeout   = 5 * time.Second
	feedMaxFrameBytes = 4 << 10
)

// Feed message types.
const (
	FeedTypeStatus  = "status"
	FeedTypeOutcome = "outcome"
)

// FeedMessage is one frame on the outcome feed. The first frame is always the
// device's current status; every completed scan follows as an outcome frame.
type FeedMessage struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Status  *session.Status `json:"status,omitempty"`
	Outcome *models.Outcome `json:"outcome,omitempty"`
}

// HandleOutcomeFeed handles GET /outcomes. It upgrades to a WebSocket and
// streams the calling device's scan outcomes until either side closes.
func (h *Handler) HandleOutcomeFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deviceID, ok := h.requireDevice(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Session(deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{FeedSubprotocol},
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "outcome feed accept failed",
			"request_id", requestID,
			"device_id", deviceID,
			"error", err,
		)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	if sp := conn.Subprotocol(); sp != FeedSubprotocol {
		_ = conn.Close(websocket.StatusPolicyViolation, "subprotocol "+FeedSubprotocol+" required")
		return
	}
	conn.SetReadLimit(feedMaxFrameBytes)

	// Subscribe before sending the status frame so no outcome falls between.
	outcomes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if h.metrics != nil {
		h.metrics.IncrementFeedClients()
		defer h.metrics.DecrementFeedClients()
	}
	h.logger.InfoContext(ctx, "outcome feed connected",
		"request_id", requestID,
		"device_id", deviceID,
	)

	// The feed is server-to-client only; CloseRead discards client frames and
	// cancels ctx once the peer goes away.
	ctx = conn.CloseRead(ctx)

	status := sess.Status()
	if err := writeFeed(ctx, conn, FeedMessage{Type: FeedTypeStatus, At: time.Now(), Status: &status}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case <-h.closing:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case outcome, ok := <-outcomes:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := writeFeed(ctx, conn, FeedMessage{Type: FeedTypeOutcome, At: outcome.At, Outcome: &outcome}); err != nil {
				h.logger.InfoContext(ctx, "outcome feed write failed",
					"device_id", deviceID,
					"outcome_id", outcome.ID,
					"close_status", websocket.CloseStatus(err),
					"error", err,
				)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, feedPingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.InfoContext(ctx, "outcome feed heartbeat failed",
					"device_id", deviceID,
					"error", err,
				)
				_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

func writeFeed(parent context.Context, conn *websocket.Conn, msg FeedMessage) error {
	ctx, cancel := context.WithTimeout(parent, feedWriteTimeout)
	defer cancel()

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
