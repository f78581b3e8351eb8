package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/session"
)

// notificationBuffer is the number of decoded notifications queued before the
// reader blocks on the consumer.
const notificationBuffer = 256

// Channel subscribes to a session's realtime notifications over a websocket.
type Channel struct {
	client *Client
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewChannel creates a realtime channel for the server behind c.
func NewChannel(c *Client, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{client: c, dialer: websocket.DefaultDialer, logger: logger}
}

// Subscribe dials the events endpoint of token.
func (ch *Channel) Subscribe(ctx context.Context, token string) (session.Subscription, error) {
	u := *ch.client.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + sessionPath(token) + "/events"

	conn, resp, err := ch.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sub := &Subscription{
		conn:    conn,
		ch:      make(chan domain.Notification, notificationBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		logger:  ch.logger,
	}
	go sub.readLoop()
	return sub, nil
}

// Subscription is one live websocket subscription.
type Subscription struct {
	conn    *websocket.Conn
	ch      chan domain.Notification
	done    chan struct{}
	closing chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// Notifications returns the notification stream. It is closed when the
// connection ends, whether by Close or by the server.
func (s *Subscription) Notifications() <-chan domain.Notification {
	return s.ch
}

// Close tears the connection down and waits for the reader to stop.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	<-s.done
	return err
}

func (s *Subscription) readLoop() {
	defer close(s.done)
	defer close(s.ch)
	for {
		var n domain.Notification
		if err := s.conn.ReadJSON(&n); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("subscription ended", "err", err)
			}
			return
		}
		select {
		case s.ch <- n:
		case <-s.closing:
			return
		}
	}
}
