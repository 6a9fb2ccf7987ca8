package roomsim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/quiz"
	"github.com/teamtrivia/roomsync/internal/transport"
)

// Server exposes the simulator over HTTP: the REST surface under
// /api/v1 and the event stream at /ws.
type Server struct {
	store    *Store
	hub      *hub
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	timersMu sync.Mutex
	timers   map[int64]context.CancelFunc
}

// NewServer wires a simulator. A nil clock uses the real clock; tests
// pass a fake one to fast-forward countdowns.
func NewServer(store *Store, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		store: store,
		hub:   newHub(),
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		timers: make(map[int64]context.CancelFunc),
	}
}

// Handler builds the HTTP handler: chi for routing, permissive CORS for
// browser clients in development.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route(transport.APIPrefix, func(r chi.Router) {
		r.Post("/check_pin", s.handleCheckPIN)
		r.Post("/create_room", s.handleCreateRoom)
		r.Get("/create_room/{roomID}", s.handleHostInit)
		r.Get("/join_room/{roomID}", s.handleJoinInit)
		r.Post("/start_game/{roomID}", s.handleStartGame)
	})
	r.Get("/ws", s.handleSocket)
	return cors.AllowAll().Handler(r)
}

func (s *Server) handleCheckPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN int64 `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := transport.LoginResponse{OK: s.store.CheckPIN(req.PIN)}
	if resp.OK {
		resp.RoomID = &req.PIN
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req transport.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok := s.store.CreateRoom(req.RoomID, req.RoomName, req.QuizTheme, req.MaxParticipants)
	resp := transport.LoginResponse{OK: ok}
	if ok {
		resp.RoomID = &req.RoomID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHostInit(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}
	snap, host, err := s.store.BindHost(roomID, "")
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	snap.Role = quiz.RoleHost
	snap.Team = host.Team
	snap.PlayerID = host.ID
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJoinInit(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}
	snap, p, err := s.store.BindParticipant(roomID, "")
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	snap.Role = quiz.RoleParticipant
	snap.Team = p.Team
	snap.PlayerID = p.ID
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}
	gi, question, err := s.store.StartGame(roomID)
	if err != nil {
		httpError(w, statusFor(err), err.Error())
		return
	}
	s.hub.broadcast(roomID, quiz.EventGameStarted, gi, nil)
	if question != nil {
		s.hub.broadcast(roomID, quiz.EventNewQuestion, question, nil)
	}
	s.restartTimer(roomID)
	writeJSON(w, http.StatusOK, gi)
}

// handleSocket upgrades the connection and runs its event loop. The
// connection picks its room with a create_room or join_room event.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &conn{sid: uuid.New().String(), ws: ws}
	defer s.disconnect(c)

	for {
		var event quiz.Event
		if err := ws.ReadJSON(&event); err != nil {
			return
		}
		s.handleClientEvent(c, event)
	}
}

func (s *Server) handleClientEvent(c *conn, event quiz.Event) {
	switch event.Name {
	case quiz.EventCreateRoom:
		var ref quiz.RoomRef
		if err := quiz.DecodeInto(event, &ref); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		snap, host, err := s.store.BindHost(ref.RoomID, c.sid)
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		c.roomID = ref.RoomID
		s.hub.add(c)
		snap.Role = quiz.RoleHost
		snap.Team = host.Team
		snap.PlayerID = host.ID
		c.send(quiz.EventRoomCreated, snap)

	case quiz.EventJoinRoom:
		var ref quiz.RoomRef
		if err := quiz.DecodeInto(event, &ref); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		snap, p, err := s.store.BindParticipant(ref.RoomID, c.sid)
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		c.roomID = ref.RoomID
		s.hub.add(c)
		snap.Role = quiz.RoleParticipant
		snap.Team = p.Team
		snap.PlayerID = p.ID
		c.send(quiz.EventRoomJoined, snap)
		s.hub.broadcast(ref.RoomID, quiz.EventPlayerJoined, p, c)

	case quiz.EventMessage:
		var out quiz.MessageOut
		if err := quiz.DecodeInto(event, &out); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		createdAt, err := time.Parse(time.RFC3339, out.CreatedAt)
		if err != nil {
			createdAt = time.Now().UTC()
		}
		msg, err := s.store.AddMessage(out.RoomID, quiz.ChatMessage{
			Team:      out.Team,
			Text:      out.Text,
			CreatedAt: createdAt,
		})
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		s.hub.broadcast(out.RoomID, quiz.EventMessage, msg, nil)

	case quiz.EventStartGame:
		var ref quiz.RoomRef
		if err := quiz.DecodeInto(event, &ref); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		gi, question, err := s.store.StartGame(ref.RoomID)
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		s.hub.broadcast(ref.RoomID, quiz.EventGameStarted, gi, nil)
		if question != nil {
			s.hub.broadcast(ref.RoomID, quiz.EventNewQuestion, question, nil)
		}
		s.restartTimer(ref.RoomID)

	case quiz.EventNextQuestion:
		var ref quiz.RoomRef
		if err := quiz.DecodeInto(event, &ref); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		next, status, err := s.store.HandleTimerEnd(ref.RoomID)
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		s.publishAdvance(ref.RoomID, next, status)

	case quiz.EventAnswer:
		var out quiz.AnswerOut
		if err := quiz.DecodeInto(event, &out); err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		status, next, gameStatus, err := s.store.SubmitAnswer(
			out.RoomID, out.QuestionIndex, out.Answer, out.Team)
		if err != nil {
			c.send(quiz.EventError, quiz.ErrorPayload{Detail: err.Error()})
			return
		}
		s.hub.broadcast(out.RoomID, quiz.EventCheckAnswer, string(status), nil)
		s.publishAdvance(out.RoomID, next, gameStatus)

	default:
		log.Debug().Str("event", string(event.Name)).Msg("unknown client event dropped")
	}
}

// publishAdvance broadcasts the aftermath of a question advance: either
// the end of the game or the next question (on both names, matching the
// backend's double emit), restarting the countdown as needed.
func (s *Server) publishAdvance(roomID int64, next *quiz.Question, status quiz.GameStatus) {
	if status == quiz.GameFinished {
		s.stopTimer(roomID)
		s.hub.broadcast(roomID, quiz.EventGameFinished, string(quiz.GameFinished), nil)
		return
	}
	if next != nil {
		s.hub.broadcast(roomID, quiz.EventNewQuestion, next, nil)
		s.hub.broadcast(roomID, quiz.EventNextQuestion, next, nil)
		s.restartTimer(roomID)
	}
}

func (s *Server) disconnect(c *conn) {
	c.ws.Close()
	if c.roomID == 0 {
		return
	}
	s.hub.remove(c)
	roomID, left, _, ok := s.store.Unbind(c.sid)
	if !ok {
		return
	}
	s.hub.broadcast(roomID, quiz.EventUserLeft, left, nil)
	if s.hub.empty(roomID) {
		s.stopTimer(roomID)
	}
}

// restartTimer replaces the room's countdown goroutine. Each second it
// publishes timer_tick; at zero it publishes timer_end and advances.
func (s *Server) restartTimer(roomID int64) {
	s.stopTimer(roomID)
	ctx, cancel := context.WithCancel(context.Background())
	s.timersMu.Lock()
	s.timers[roomID] = cancel
	s.timersMu.Unlock()

	go s.runTimer(ctx, roomID)
}

func (s *Server) stopTimer(roomID int64) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if cancel, ok := s.timers[roomID]; ok {
		cancel()
		delete(s.timers, roomID)
	}
}

// Close stops every room countdown.
func (s *Server) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
}

func (s *Server) runTimer(ctx context.Context, roomID int64) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			counter, active := s.store.TickCounter(roomID)
			if !active {
				return
			}
			s.hub.broadcast(roomID, quiz.EventTimerTick, quiz.CounterPayload{Counter: counter}, nil)
			if counter > 0 {
				continue
			}
			s.hub.broadcast(roomID, quiz.EventTimerEnd, quiz.CounterPayload{Counter: 0}, nil)
			next, status, err := s.store.HandleTimerEnd(roomID)
			if err != nil {
				return
			}
			if status == quiz.GameFinished {
				s.hub.broadcast(roomID, quiz.EventGameFinished, string(quiz.GameFinished), nil)
				return
			}
			if next != nil {
				s.hub.broadcast(roomID, quiz.EventNewQuestion, next, nil)
				s.hub.broadcast(roomID, quiz.EventNextQuestion, next, nil)
			}
		}
	}
}

func parseRoomID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "roomId must be a positive integer")
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomFull):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response failed")
	}
}

func httpError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
