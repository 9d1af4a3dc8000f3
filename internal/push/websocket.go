package push

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rider-order-sync/internal/logger"
)

// WebSocketSource holds one WebSocket session with the backend's event
// gateway and joins the rider's room once connected. Wrap it in
// Reconnecting to redial after the session ends.
type WebSocketSource struct {
	url     string
	riderID string
	token   string
	log     logger.Logger
	dialer  *websocket.Dialer

	// OnConnect runs after every room join, before any event is handled.
	OnConnect func()
}

func NewWebSocketSource(url, riderID, token string, log logger.Logger) *WebSocketSource {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 15 * time.Second
	return &WebSocketSource{
		url:     url,
		riderID: riderID,
		token:   token,
		log:     log,
		dialer:  &d,
	}
}

// Run dials, joins the room and hands events to h until the connection
// drops or ctx is done.
func (s *WebSocketSource) Run(ctx context.Context, h Handler) error {
	ctx = logger.With(ctx, logger.RiderIDKey, s.riderID)
	err := s.session(ctx, h)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *WebSocketSource) session(ctx context.Context, h Handler) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	join, err := Encode(EventJoinRoom, s.riderID)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	s.log.Infof(ctx, "[WebSocket] joined room %s", s.riderID)
	if s.OnConnect != nil {
		s.OnConnect()
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		ev, err := Decode(msg)
		if err != nil {
			s.log.Warnf(ctx, "[WebSocket] skipping message: %v", err)
			continue
		}
		if err := h(ctx, ev); err != nil {
			s.log.Warnf(ctx, "[WebSocket] handling %s: %v", ev.Kind, err)
		}
	}
}
