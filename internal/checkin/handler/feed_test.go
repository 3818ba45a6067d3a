package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/coder/websocket"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/service/session"
	id "checkin/pkg/domain"
)

func (s *HandlerSuite) dialFeed(ctx context.Context, srv *httptest.Server, subprotocols ...string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/outcomes"
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	s.Require().NoError(err)
	s.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func (s *HandlerSuite) readFeed(ctx context.Context, conn *websocket.Conn) FeedMessage {
	typ, data, err := conn.Read(ctx)
	s.Require().NoError(err)
	s.Require().Equal(websocket.MessageText, typ)

	var msg FeedMessage
	s.Require().NoError(json.Unmarshal(data, &msg))
	return msg
}

func (s *HandlerSuite) TestOutcomeFeed() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dialFeed(ctx, srv, FeedSubprotocol)
	defer func() { _ = conn.CloseNow() }()
	s.Equal(FeedSubprotocol, conn.Subprotocol())

	first := s.readFeed(ctx, conn)
	s.Equal(FeedTypeStatus, first.Type)
	s.Require().NotNil(first.Status)
	s.Equal(testDevice, first.Status.DeviceID)
	s.Equal(session.StateIdle, first.Status.State)

	resp, err := http.Post(srv.URL+"/v1/scan/start", "application/json", strings.NewReader(`{"mode":"simulated"}`))
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	msg := s.readFeed(ctx, conn)
	s.Equal(FeedTypeOutcome, msg.Type)
	s.Require().NotNil(msg.Outcome)
	s.Equal(models.OutcomeSuccess, msg.Outcome.Kind)
	s.Equal(id.EntityID("guest-002"), msg.Outcome.EntityID)
	s.True(msg.Outcome.AlreadyCheckedIn)
	s.NotEmpty(msg.Outcome.ID)

	s.NoError(conn.Close(websocket.StatusNormalClosure, ""))
}

func (s *HandlerSuite) TestOutcomeFeedRequiresSubprotocol() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dialFeed(ctx, srv)
	defer func() { _ = conn.CloseNow() }()

	_, _, err := conn.Read(ctx)
	s.Require().Error(err)
	s.Equal(websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func (s *HandlerSuite) TestOutcomeFeedClosedOnShutdown() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dialFeed(ctx, srv, FeedSubprotocol)
	defer func() { _ = conn.CloseNow() }()
	s.Equal(FeedTypeStatus, s.readFeed(ctx, conn).Type)

	s.handler.Shutdown()
	s.handler.Shutdown()

	_, _, err := conn.Read(ctx)
	s.Require().Error(err)
	s.Equal(websocket.StatusGoingAway, websocket.CloseStatus(err))
}
