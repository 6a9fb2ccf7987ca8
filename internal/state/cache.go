// Package state holds the single in-memory room snapshot and applies the
// named incremental events that patch it. The cache performs no I/O; the
// room controller feeds it events in delivery order.
package state

import (
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

// Cache owns the authoritative RoomSnapshot. It is not safe for concurrent
// use; the room controller serializes every mutation on its event loop.
type Cache struct {
	room *quiz.RoomSnapshot
}

// New returns an empty cache. Loaded reports false until the first
// ApplySnapshot.
func New() *Cache {
	return &Cache{}
}

// Loaded reports whether an initial snapshot has been applied. Patches
// arriving before load are dropped as stale.
func (c *Cache) Loaded() bool {
	return c.room != nil
}

// Snapshot returns a deep copy of the current room state, or nil before
// the initial load.
func (c *Cache) Snapshot() *quiz.RoomSnapshot {
	return c.room.Clone()
}

// Room returns the live snapshot for read-only use inside the controller
// loop. Callers outside the loop must use Snapshot.
func (c *Cache) Room() *quiz.RoomSnapshot {
	return c.room
}

// SetCaller records the resolved caller identity on the snapshot so that
// host promotion and team assignment can track the local participant
// even when the server never sent an explicit player id.
func (c *Cache) SetCaller(id int64) {
	if c.room == nil || id == 0 {
		return
	}
	c.room.PlayerID = id
	for _, p := range c.room.Participants {
		if p.ID == id {
			if p.Role != "" {
				c.room.Role = p.Role
			}
			if p.Team != "" {
				c.room.Team = p.Team
			}
			break
		}
	}
}

// ApplySnapshot replaces the cache wholesale. Used for the initial load
// and full-resync events (room_created, room_joined, room_updated).
func (c *Cache) ApplySnapshot(snap *quiz.RoomSnapshot) {
	if snap == nil {
		return
	}
	c.room = snap.Clone()
}

// ApplyParticipantJoined appends p unless a participant with the same id
// is already present, making duplicate delivery a no-op.
func (c *Cache) ApplyParticipantJoined(p quiz.Participant) {
	if c.room == nil {
		return
	}
	for _, existing := range c.room.Participants {
		if existing.ID == p.ID {
			log.Debug().Int64("participant_id", p.ID).Msg("duplicate player_joined dropped")
			return
		}
	}
	c.room.Participants = append(c.room.Participants, p)
}

// ApplyParticipantLeft removes the participant with matching id. If the
// removed participant held the host role, the earliest-joined remaining
// participant is promoted; when that participant is the local caller, the
// caller's own role follows.
func (c *Cache) ApplyParticipantLeft(p quiz.Participant) {
	if c.room == nil {
		return
	}
	idx := -1
	for i, existing := range c.room.Participants {
		if existing.ID == p.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		log.Debug().Int64("participant_id", p.ID).Msg("user_left for unknown participant dropped")
		return
	}
	wasHost := c.room.Participants[idx].Role == quiz.RoleHost || p.Role == quiz.RoleHost
	c.room.Participants = append(c.room.Participants[:idx], c.room.Participants[idx+1:]...)

	if !wasHost || len(c.room.Participants) == 0 {
		return
	}
	promoted := &c.room.Participants[0]
	promoted.Role = quiz.RoleHost
	if promoted.Team == "" {
		promoted.Team = quiz.TeamRed
	}
	if c.room.PlayerID != 0 && promoted.ID == c.room.PlayerID {
		c.room.Role = quiz.RoleHost
	}
}

// ApplyMessage appends to the message log.
func (c *Cache) ApplyMessage(m quiz.ChatMessage) {
	if c.room == nil {
		return
	}
	c.room.Messages = append(c.room.Messages, m)
}

// ApplyGameStarted replaces the embedded game info wholesale.
func (c *Cache) ApplyGameStarted(gi *quiz.GameInfo) {
	if c.room == nil || gi == nil {
		return
	}
	clone := *gi
	clone.Questions = append([]quiz.Question(nil), gi.Questions...)
	c.room.GameInfo = &clone
}

// ApplyQuestion appends a question delivered by new_question/next_question,
// advances the active index, switches the active team to the question's
// owner and resets the countdown counter. The backend emits new_question
// and next_question back to back for the same question, so an exact repeat
// of the last appended question only re-activates it.
func (c *Cache) ApplyQuestion(q quiz.Question, questionDuration int) {
	gi := c.gameInfo()
	if gi == nil {
		return
	}
	if !c.sameAsLast(gi, q) {
		gi.Questions = append(gi.Questions, q)
	}
	gi.ActiveQuestionIndex = len(gi.Questions)
	gi.ActiveTeam = q.Team
	gi.Counter = questionDuration
}

// ApplyAnswerStatus sets the resolved status on the currently active
// question. Events that arrive with no active question are dropped.
func (c *Cache) ApplyAnswerStatus(status quiz.AnswerStatus) {
	gi := c.gameInfo()
	if gi == nil {
		return
	}
	q := gi.ActiveQuestion()
	if q == nil {
		log.Debug().Str("status", string(status)).Msg("check_answer with no active question dropped")
		return
	}
	q.StatusAnswer = status
}

// ApplyCounter overwrites the server-reported countdown counter.
func (c *Cache) ApplyCounter(counter int) {
	gi := c.gameInfo()
	if gi == nil {
		return
	}
	if counter < 0 {
		counter = 0
	}
	gi.Counter = counter
}

// ApplyGameStatus overwrites the game status. Finishing zeroes the counter.
func (c *Cache) ApplyGameStatus(status quiz.GameStatus) {
	gi := c.gameInfo()
	if gi == nil {
		return
	}
	gi.Status = status
	if status == quiz.GameFinished {
		gi.Counter = 0
	}
}

// ApplyTeams overwrites participant team assignments from an absolute
// map keyed by participant id. Ids not present in the room are ignored,
// so replaying the same assignment is idempotent.
func (c *Cache) ApplyTeams(teams map[int64]quiz.Team) {
	if c.room == nil {
		return
	}
	for i := range c.room.Participants {
		if team, ok := teams[c.room.Participants[i].ID]; ok {
			c.room.Participants[i].Team = team
		}
	}
	if c.room.PlayerID != 0 {
		if team, ok := teams[c.room.PlayerID]; ok {
			c.room.Team = team
		}
	}
}

func (c *Cache) gameInfo() *quiz.GameInfo {
	if c.room == nil || c.room.GameInfo == nil {
		return nil
	}
	return c.room.GameInfo
}

func (c *Cache) sameAsLast(gi *quiz.GameInfo, q quiz.Question) bool {
	if len(gi.Questions) == 0 {
		return false
	}
	last := gi.Questions[len(gi.Questions)-1]
	if last.Text != q.Text || last.Team != q.Team || len(last.Answers) != len(q.Answers) {
		return false
	}
	for i := range last.Answers {
		if last.Answers[i] != q.Answers[i] {
			return false
		}
	}
	return true
}
