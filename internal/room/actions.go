package room

import (
	"math/rand"
	"strings"
	"time"

	"github.com/teamtrivia/roomsync/internal/admin"
	"github.com/teamtrivia/roomsync/internal/quiz"
)

// Action dispatchers validate their preconditions locally and emit, or
// do nothing. They never mutate the cache optimistically; the
// authoritative effect arrives as a later event. The UI is expected to
// have disabled the control already, so a refused action is silent.

// SendMessage emits an ordinary chat message. A blank draft or a muted
// chat makes it a no-op.
func (c *Controller) SendMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.cache.Room()
	if room == nil {
		return
	}
	if admin.DeriveState(room.Messages).ChatMuted {
		return
	}
	c.emit(quiz.EventMessage, quiz.MessageOut{
		RoomID:    c.roomID,
		Text:      text,
		Team:      c.callerTeam(room),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// StartGame asks the server to start the game. Host only, and only
// while the game is not already running.
func (c *Controller) StartGame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.cache.Room()
	if room == nil || c.callerRole(room) != quiz.RoleHost {
		return
	}
	if room.GameInfo != nil && room.GameInfo.Status == quiz.GameActive {
		return
	}
	c.emit(quiz.EventStartGame, quiz.RoomRef{RoomID: c.roomID})
}

// RequestNextQuestion advances the round when the derived view allows it.
func (c *Controller) RequestNextQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.viewLocked().CanRequestNextQuestion {
		return
	}
	c.emit(quiz.EventNextQuestion, quiz.RoomRef{RoomID: c.roomID})
}

// SubmitAnswer records the local selection and emits the answer. Refused
// outright when the caller cannot answer right now.
func (c *Controller) SubmitAnswer(answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.viewLocked()
	if !v.CanAnswer {
		return
	}
	// SelectedAnswer is the one piece of optimistic local state; it is
	// cleared as soon as the active question or game status moves.
	c.selectedAnswer = answer
	c.emit(quiz.EventAnswer, quiz.AnswerOut{
		RoomID:        c.roomID,
		QuestionIndex: v.QuestionIndex,
		Answer:        answer,
		Team:          v.Team,
	})
}

// SetLobbyLocked toggles the lobby lock via the admin side-channel.
func (c *Controller) SetLobbyLocked(locked bool) {
	c.sendCommand(admin.Command{Kind: admin.KindLobbyLock, Value: locked})
}

// SetChatMuted toggles chat muting via the admin side-channel.
func (c *Controller) SetChatMuted(muted bool) {
	c.sendCommand(admin.Command{Kind: admin.KindChatMuted, Value: muted})
}

// SetHintsEnabled toggles hints via the admin side-channel.
func (c *Controller) SetHintsEnabled(enabled bool) {
	c.sendCommand(admin.Command{Kind: admin.KindHintsEnabled, Value: enabled})
}

// SetPaused toggles the game pause via the admin side-channel.
func (c *Controller) SetPaused(paused bool) {
	c.sendCommand(admin.Command{Kind: admin.KindPause, Value: paused})
}

// ShuffleTeams deals every participant a random team and broadcasts the
// resulting absolute assignment. Clients replay the payload, never the
// shuffle itself, so everyone converges regardless of local RNG.
func (c *Controller) ShuffleTeams() {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.cache.Room()
	if room == nil || c.callerRole(room) != quiz.RoleHost {
		return
	}

	ids := make([]int64, len(room.Participants))
	for i, p := range room.Participants {
		ids[i] = p.ID
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	teams := make(map[int64]quiz.Team, len(ids))
	for i, id := range ids {
		if i%2 == 0 {
			teams[id] = quiz.TeamRed
		} else {
			teams[id] = quiz.TeamBlue
		}
	}
	c.emitCommand(room, admin.Command{Kind: admin.KindShuffleTeams, Teams: teams})
}

// ResetTeams deals teams back to the deterministic join-order
// alternation and broadcasts the assignment.
func (c *Controller) ResetTeams() {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.cache.Room()
	if room == nil || c.callerRole(room) != quiz.RoleHost {
		return
	}

	teams := make(map[int64]quiz.Team, len(room.Participants))
	for i, p := range room.Participants {
		if i%2 == 0 {
			teams[p.ID] = quiz.TeamRed
		} else {
			teams[p.ID] = quiz.TeamBlue
		}
	}
	c.emitCommand(room, admin.Command{Kind: admin.KindResetTeams, Teams: teams})
}

// sendCommand encodes a toggle command and emits it as chat. Host only.
// This is the only path that broadcasts a command; replay paths apply
// without emitting.
func (c *Controller) sendCommand(cmd admin.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.cache.Room()
	if room == nil || c.callerRole(room) != quiz.RoleHost {
		return
	}
	c.emitCommand(room, cmd)
}

func (c *Controller) emitCommand(room *quiz.RoomSnapshot, cmd admin.Command) {
	text, err := admin.Encode(cmd)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", string(cmd.Kind)).Msg("encode admin command failed")
		return
	}
	c.emit(quiz.EventMessage, quiz.MessageOut{
		RoomID:    c.roomID,
		Text:      text,
		Team:      c.callerTeam(room),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Controller) emit(name quiz.EventName, payload any) {
	if c.socket == nil {
		return
	}
	if err := c.socket.Emit(name, payload); err != nil {
		c.logger.Warn().Err(err).Str("event", string(name)).Msg("emit failed")
	}
}
