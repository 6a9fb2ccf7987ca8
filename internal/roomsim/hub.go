package roomsim

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

const writeTimeout = 10 * time.Second

// conn is one client connection with serialized writes.
type conn struct {
	sid    string
	roomID int64
	ws     *websocket.Conn
	mu     sync.Mutex
}

func (c *conn) send(name quiz.EventName, payload any) {
	event, err := quiz.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(name)).Msg("marshal event")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(event); err != nil {
		log.Debug().Err(err).Str("sid", c.sid).Msg("write to client failed")
	}
}

// sendRaw forwards an already-enveloped event.
func (c *conn) sendRaw(event quiz.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(event); err != nil {
		log.Debug().Err(err).Str("sid", c.sid).Msg("write to client failed")
	}
}

// hub tracks which connections belong to which room.
type hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*conn]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[int64]map[*conn]struct{})}
}

func (h *hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[c.roomID]
	if !ok {
		set = make(map[*conn]struct{})
		h.rooms[c.roomID] = set
	}
	set[c] = struct{}{}
}

func (h *hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[c.roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
}

// broadcast sends to every connection in the room, optionally skipping
// one (the event's originator, matching the backend's skip_sid).
func (h *hub) broadcast(roomID int64, name quiz.EventName, payload any, skip *conn) {
	event, err := quiz.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(name)).Msg("marshal broadcast")
		return
	}
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c == skip {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.sendRaw(event)
	}
}

func (h *hub) empty(roomID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID]) == 0
}
