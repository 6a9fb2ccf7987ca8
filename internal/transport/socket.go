// Package transport carries the two channels to the quiz backend: a
// persistent JSON-over-WebSocket event stream and a small REST surface
// for the initial snapshot queries the live stream patches.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

// SocketConfig tunes the websocket connection.
type SocketConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	EventBuffer    int
}

// DefaultSocketConfig returns the connection defaults.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		EventBuffer:    64,
	}
}

// Socket is one live connection to a room. Events decode onto a buffered
// channel in delivery order; Emit is safe for concurrent use. Errors on
// the advisory channel never roll back any cached state.
type Socket struct {
	id     string
	conn   *websocket.Conn
	config SocketConfig

	events chan quiz.Event
	errs   chan error
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the backend's websocket endpoint and starts the read
// pump. The caller owns the socket and must Close it when the screen
// unmounts, otherwise a remounted subscription double-applies events.
func Dial(ctx context.Context, url string, config SocketConfig) (*Socket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s := &Socket{
		id:     uuid.New().String(),
		conn:   conn,
		config: config,
		events: make(chan quiz.Event, config.EventBuffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	conn.SetReadLimit(config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))
	})

	go s.readPump()
	go s.pingLoop()

	log.Debug().Str("socket_id", s.id).Str("url", url).Msg("socket connected")
	return s, nil
}

// ID is the client-side connection identifier, also used as the
// transport session id for participant identity matching.
func (s *Socket) ID() string {
	return s.id
}

// Events is the inbound event stream. It closes when the connection ends.
func (s *Socket) Events() <-chan quiz.Event {
	return s.events
}

// Errors delivers at most one advisory transport failure.
func (s *Socket) Errors() <-chan error {
	return s.errs
}

// Emit marshals payload into an envelope and writes it. Delivery is
// fire-and-forget; confirmation only ever arrives as a later event.
func (s *Socket) Emit(name quiz.EventName, payload any) error {
	event, err := quiz.NewEvent(name, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(event); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
		log.Debug().Str("socket_id", s.id).Msg("socket closed")
	})
	return err
}

func (s *Socket) readPump() {
	defer close(s.events)
	for {
		var event quiz.Event
		if err := s.conn.ReadJSON(&event); err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("socket_id", s.id).Msg("socket read failed")
				}
				select {
				case s.errs <- err:
				default:
				}
			}
			return
		}
		if event.Name == "" {
			// Not an envelope we understand; a buggy server frame must
			// not crash the client.
			log.Debug().Str("socket_id", s.id).Msg("frame without event name dropped")
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
