// Package roomsim is an in-process quiz backend speaking the same REST
// and websocket protocol as the production server. Integration tests and
// local development run against it; it is not the production server.
package roomsim

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

var (
	// ErrRoomNotFound reports an unknown room id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull reports a room at its participant capacity.
	ErrRoomFull = errors.New("room has reached maxParticipants limit")
)

// QuestionDuration is the per-question countdown the simulator deals out.
const QuestionDuration = 30

// simRoom is one room's server-side state. Questions are scripted up
// front and revealed into the visible game info one at a time, so
// clients see the list grow question by question.
type simRoom struct {
	snapshot quiz.RoomSnapshot
	script   []quiz.Question
	revealed int
}

// Store holds every simulated room. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	rooms  map[int64]*simRoom
	nextID int64
	sids   map[string]sidBinding
}

type sidBinding struct {
	roomID        int64
	participantID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rooms:  make(map[int64]*simRoom),
		nextID: 1,
		sids:   make(map[string]sidBinding),
	}
}

// CheckPIN reports whether a room with this PIN exists.
func (s *Store) CheckPIN(pin int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[pin]
	return ok
}

// CreateRoom registers a room with a scripted question set derived from
// the topic. Returns false when the id is taken.
func (s *Store) CreateRoom(roomID int64, name, topic string, maxParticipants int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[roomID]; exists {
		return false
	}
	s.rooms[roomID] = &simRoom{
		snapshot: quiz.RoomSnapshot{
			RoomID:          roomID,
			Name:            name,
			Topic:           topic,
			MaxParticipants: maxParticipants,
			GameInfo: &quiz.GameInfo{
				Status:     quiz.GameWaiting,
				ActiveTeam: quiz.TeamRed,
				Counter:    QuestionDuration,
			},
		},
		script: scriptQuestions(topic),
	}
	return true
}

// BindHost attaches the connection as the room's host, creating the
// host participant on first bind.
func (s *Store) BindHost(roomID int64, sid string) (*quiz.RoomSnapshot, quiz.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, quiz.Participant{}, fmt.Errorf("bind host to %d: %w", roomID, ErrRoomNotFound)
	}

	var host *quiz.Participant
	for i := range room.snapshot.Participants {
		if room.snapshot.Participants[i].Role == quiz.RoleHost {
			host = &room.snapshot.Participants[i]
			break
		}
	}
	if host == nil {
		room.snapshot.Participants = append(room.snapshot.Participants, quiz.Participant{
			ID:   s.issueID(),
			Role: quiz.RoleHost,
			Team: quiz.TeamRed,
		})
		host = &room.snapshot.Participants[len(room.snapshot.Participants)-1]
	}
	s.bindSID(roomID, host, sid)
	return room.snapshot.Clone(), *host, nil
}

// BindParticipant attaches the connection as a new participant, dealt
// onto the smaller team.
func (s *Store) BindParticipant(roomID int64, sid string) (*quiz.RoomSnapshot, quiz.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, quiz.Participant{}, fmt.Errorf("bind participant to %d: %w", roomID, ErrRoomNotFound)
	}
	if len(room.snapshot.Participants) >= room.snapshot.MaxParticipants {
		return nil, quiz.Participant{}, ErrRoomFull
	}

	p := quiz.Participant{
		ID:   s.issueID(),
		Role: quiz.RoleParticipant,
		Team: nextTeam(room.snapshot.Participants),
	}
	room.snapshot.Participants = append(room.snapshot.Participants, p)
	s.bindSID(roomID, &room.snapshot.Participants[len(room.snapshot.Participants)-1], sid)
	p.SessionID = sid
	return room.snapshot.Clone(), p, nil
}

// Unbind removes the participant bound to sid. It returns the removed
// participant with its last-known role and, when the host left, the
// promoted replacement.
func (s *Store) Unbind(sid string) (roomID int64, left quiz.Participant, promoted *quiz.Participant, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, found := s.sids[sid]
	if !found {
		return 0, quiz.Participant{}, nil, false
	}
	delete(s.sids, sid)

	room, roomOK := s.rooms[binding.roomID]
	if !roomOK {
		return 0, quiz.Participant{}, nil, false
	}

	idx := -1
	for i, p := range room.snapshot.Participants {
		if p.ID == binding.participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, quiz.Participant{}, nil, false
	}

	left = room.snapshot.Participants[idx]
	wasHost := left.Role == quiz.RoleHost
	room.snapshot.Participants = append(
		room.snapshot.Participants[:idx], room.snapshot.Participants[idx+1:]...)

	if wasHost && len(room.snapshot.Participants) > 0 {
		first := &room.snapshot.Participants[0]
		first.Role = quiz.RoleHost
		if first.Team == "" {
			first.Team = quiz.TeamRed
		}
		clone := *first
		promoted = &clone
	}
	return binding.roomID, left, promoted, true
}

// Snapshot returns a deep copy of the room.
func (s *Store) Snapshot(roomID int64) (*quiz.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("snapshot of %d: %w", roomID, ErrRoomNotFound)
	}
	return room.snapshot.Clone(), nil
}

// AddMessage appends a chat message to the transcript.
func (s *Store) AddMessage(roomID int64, m quiz.ChatMessage) (quiz.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return quiz.ChatMessage{}, fmt.Errorf("message to %d: %w", roomID, ErrRoomNotFound)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	room.snapshot.Messages = append(room.snapshot.Messages, m)
	return m, nil
}

// StartGame activates the game and reveals the first question. Returns
// the updated game info and the revealed question.
func (s *Store) StartGame(roomID int64) (*quiz.GameInfo, *quiz.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil, fmt.Errorf("start game in %d: %w", roomID, ErrRoomNotFound)
	}

	gi := room.snapshot.GameInfo
	gi.Status = quiz.GameActive
	gi.Questions = nil
	gi.ActiveQuestionIndex = 0
	gi.Counter = QuestionDuration
	room.revealed = 0

	q := s.revealNext(room)
	return cloneGameInfo(gi), q, nil
}

// SubmitAnswer resolves the active question and advances the game.
// Returns the answer status, the next revealed question (nil when none)
// and the resulting game status.
func (s *Store) SubmitAnswer(roomID int64, questionIndex int, answer string, team quiz.Team) (quiz.AnswerStatus, *quiz.Question, quiz.GameStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return quiz.AnswerIncorrect, nil, quiz.GameWaiting, fmt.Errorf("answer in %d: %w", roomID, ErrRoomNotFound)
	}
	gi := room.snapshot.GameInfo
	if gi.Status != quiz.GameActive {
		return quiz.AnswerIncorrect, nil, gi.Status, nil
	}
	if questionIndex != gi.ActiveQuestionIndex {
		return quiz.AnswerIncorrect, nil, gi.Status, nil
	}
	q := gi.ActiveQuestion()
	if q == nil {
		return quiz.AnswerIncorrect, nil, gi.Status, nil
	}

	status := quiz.AnswerIncorrect
	if team == gi.ActiveTeam && len(q.Answers) > 0 &&
		strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answers[0])) {
		status = quiz.AnswerCorrect
	}
	q.StatusAnswer = status

	next := s.revealNext(room)
	return status, next, gi.Status, nil
}

// TickCounter decrements the countdown by one second and reports the
// new value together with whether the game is still active.
func (s *Store) TickCounter(roomID int64) (counter int, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return 0, false
	}
	gi := room.snapshot.GameInfo
	if gi.Status != quiz.GameActive {
		return gi.Counter, false
	}
	if gi.Counter > 0 {
		gi.Counter--
	}
	return gi.Counter, true
}

// HandleTimerEnd marks an unanswered active question incorrect and
// advances, mirroring an expired countdown.
func (s *Store) HandleTimerEnd(roomID int64) (*quiz.Question, quiz.GameStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, quiz.GameWaiting, fmt.Errorf("timer end in %d: %w", roomID, ErrRoomNotFound)
	}
	gi := room.snapshot.GameInfo
	if gi.Status != quiz.GameActive {
		return nil, gi.Status, nil
	}
	if q := gi.ActiveQuestion(); q != nil && q.StatusAnswer == quiz.AnswerUnset {
		q.StatusAnswer = quiz.AnswerIncorrect
	}
	next := s.revealNext(room)
	return next, gi.Status, nil
}

// revealNext moves the next scripted question into the visible list, or
// finishes the game when the script is exhausted. Callers hold the lock.
func (s *Store) revealNext(room *simRoom) *quiz.Question {
	gi := room.snapshot.GameInfo
	if room.revealed >= len(room.script) {
		gi.Status = quiz.GameFinished
		gi.ActiveQuestionIndex = 0
		gi.Counter = 0
		return nil
	}
	q := room.script[room.revealed]
	room.revealed++
	gi.Questions = append(gi.Questions, q)
	gi.ActiveQuestionIndex = len(gi.Questions)
	gi.ActiveTeam = q.Team
	gi.Counter = QuestionDuration
	clone := q
	return &clone
}

func (s *Store) bindSID(roomID int64, p *quiz.Participant, sid string) {
	if sid == "" {
		return
	}
	if prev := p.SessionID; prev != "" && prev != sid {
		delete(s.sids, prev)
	}
	p.SessionID = sid
	s.sids[sid] = sidBinding{roomID: roomID, participantID: p.ID}
}

func (s *Store) issueID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func nextTeam(participants []quiz.Participant) quiz.Team {
	var red, blue int
	for _, p := range participants {
		switch p.Team {
		case quiz.TeamRed:
			red++
		case quiz.TeamBlue:
			blue++
		}
	}
	if red <= blue {
		return quiz.TeamRed
	}
	return quiz.TeamBlue
}

func cloneGameInfo(gi *quiz.GameInfo) *quiz.GameInfo {
	clone := *gi
	clone.Questions = append([]quiz.Question(nil), gi.Questions...)
	return &clone
}

// scriptQuestions deals a small fixed round set for the topic, two
// questions per team, first answer correct.
func scriptQuestions(topic string) []quiz.Question {
	teams := []quiz.Team{quiz.TeamRed, quiz.TeamBlue, quiz.TeamRed, quiz.TeamBlue}
	out := make([]quiz.Question, len(teams))
	for i, team := range teams {
		out[i] = quiz.Question{
			Text:    fmt.Sprintf("%s: question %d for team %s", topic, i/2+1, team),
			Team:    team,
			Answers: []string{"A", "B", "C", "D"},
		}
	}
	return out
}
