package quiz

import "time"

// Team identifies which of the two quiz teams a participant or message
// belongs to. The wire protocol calls this field "command".
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Role is the participant's role inside a room. At most one participant
// holds RoleHost at a time.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// GameStatus is the lifecycle state of the embedded game.
type GameStatus string

const (
	GameWaiting  GameStatus = "waiting"
	GameActive   GameStatus = "active"
	GameFinished GameStatus = "finished"
)

// AnswerStatus is the resolved state of a question's answer. The empty
// string means the question has not been answered yet.
type AnswerStatus string

const (
	AnswerUnset     AnswerStatus = ""
	AnswerCorrect   AnswerStatus = "correct"
	AnswerIncorrect AnswerStatus = "incorrect"
)

// Participant is one member of a room. IDs are issued by the server per
// transport session.
type Participant struct {
	ID   int64 `json:"id"`
	Team Team  `json:"command,omitempty"`
	Role Role  `json:"role"`

	// SessionID is the transport session bound to this participant, when
	// the server chooses to expose it. Used to match the local caller
	// against the participant list.
	SessionID string `json:"sid,omitempty"`
}

// ChatMessage is one entry in the room transcript. Admin side-channel
// commands share this representation and are told apart by a reserved
// text prefix; they are filtered from display but never removed from
// the log.
type ChatMessage struct {
	Team      Team      `json:"command"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
}

// Question is one quiz question. StatusAnswer is the only field mutated
// after creation, set once when the server resolves the answer.
type Question struct {
	Text         string       `json:"question"`
	Team         Team         `json:"team"`
	Answers      []string     `json:"answers"`
	StatusAnswer AnswerStatus `json:"statusAnswer,omitempty"`
}

// GameInfo is the live game portion of a room snapshot.
//
// ActiveQuestionIndex is 1-based; 0 means no question is active. The
// invariant 0 <= ActiveQuestionIndex <= len(Questions) holds after every
// applied patch.
type GameInfo struct {
	Status              GameStatus `json:"status"`
	ActiveTeam          Team       `json:"activeTeam"`
	Questions           []Question `json:"questions"`
	ActiveQuestionIndex int        `json:"activeQuestionIndex"`
	Counter             int        `json:"counter"`
}

// ActiveQuestion returns the currently active question, or nil when no
// question is active or the index is out of range.
func (g *GameInfo) ActiveQuestion() *Question {
	if g == nil {
		return nil
	}
	idx := g.ActiveQuestionIndex
	if idx < 1 || idx > len(g.Questions) {
		return nil
	}
	return &g.Questions[idx-1]
}

// RoomSnapshot is the authoritative room state as last received from the
// server, either by REST fetch or a full-resync socket event.
type RoomSnapshot struct {
	RoomID          int64         `json:"roomId"`
	Name            string        `json:"roomName"`
	Topic           string        `json:"quizTheme"`
	MaxParticipants int           `json:"maxParticipants"`
	Messages        []ChatMessage `json:"messages"`
	Participants    []Participant `json:"participants"`
	Role            Role          `json:"role,omitempty"`
	Team            Team          `json:"team,omitempty"`
	PlayerID        int64         `json:"playerId,omitempty"`
	GameInfo        *GameInfo     `json:"gameInfo,omitempty"`
}

// Clone returns a deep copy so callers can hand the snapshot to
// presentation code without exposing the cache's backing slices.
func (r *RoomSnapshot) Clone() *RoomSnapshot {
	if r == nil {
		return nil
	}
	out := *r
	out.Messages = append([]ChatMessage(nil), r.Messages...)
	out.Participants = append([]Participant(nil), r.Participants...)
	if r.GameInfo != nil {
		gi := *r.GameInfo
		gi.Questions = append([]Question(nil), r.GameInfo.Questions...)
		out.GameInfo = &gi
	}
	return &out
}
