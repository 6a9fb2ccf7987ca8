package room

import (
	"github.com/teamtrivia/roomsync/internal/admin"
	"github.com/teamtrivia/roomsync/internal/countdown"
	"github.com/teamtrivia/roomsync/internal/quiz"
)

// View is the read-only model presentation renders from. Everything in
// it derives from the snapshot cache; mutating a View mutates nothing.
type View struct {
	Loaded bool

	RoomID          int64
	Name            string
	Topic           string
	MaxParticipants int

	Role quiz.Role
	Team quiz.Team

	Participants []quiz.Participant
	Messages     []quiz.ChatMessage // admin commands filtered out
	Panel        admin.PanelState

	GameStatus     quiz.GameStatus
	ActiveTeam     quiz.Team
	QuestionIndex  int
	Question       *quiz.Question
	SelectedAnswer string
	Remaining      int

	IsTeamTurn             bool
	CanAnswer              bool
	CanRequestNextQuestion bool

	Advisory string
}

// View derives the current view model.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	room := c.cache.Snapshot()
	if room == nil {
		return View{Advisory: c.advisory}
	}

	v := View{
		Loaded:          true,
		RoomID:          room.RoomID,
		Name:            room.Name,
		Topic:           room.Topic,
		MaxParticipants: room.MaxParticipants,
		Role:            c.callerRole(room),
		Team:            c.callerTeam(room),
		Participants:    room.Participants,
		Messages:        admin.VisibleMessages(room.Messages),
		Panel:           admin.DeriveState(room.Messages),
		SelectedAnswer:  c.selectedAnswer,
		Advisory:        c.advisory,
	}

	gi := room.GameInfo
	if gi == nil {
		v.Remaining = c.recon.Remaining(countdown.Input{})
		return v
	}

	v.GameStatus = gi.Status
	v.ActiveTeam = gi.ActiveTeam
	v.QuestionIndex = gi.ActiveQuestionIndex
	question := gi.ActiveQuestion()
	v.Question = question

	active := gi.Status == quiz.GameActive
	resolved := question != nil && question.StatusAnswer != quiz.AnswerUnset

	v.Remaining = c.recon.Remaining(countdown.Input{
		GameActive:        active,
		QuestionIndex:     gi.ActiveQuestionIndex,
		Resolved:          resolved,
		Paused:            v.Panel.Paused,
		ServerCounter:     c.serverCounter,
		ServerCounterSeen: c.serverCounterSeen,
	})

	v.IsTeamTurn = active && question != nil && v.Team == gi.ActiveTeam
	v.CanAnswer = question != nil && v.IsTeamTurn && !resolved &&
		v.Remaining > 0 && !v.Panel.Paused
	v.CanRequestNextQuestion = v.Role == quiz.RoleHost && active && !v.Panel.Paused &&
		(question == nil || resolved || v.Remaining == 0)

	return v
}

func (c *Controller) callerRole(room *quiz.RoomSnapshot) quiz.Role {
	for _, p := range room.Participants {
		if p.ID == c.selfID {
			return p.Role
		}
	}
	return room.Role
}

func (c *Controller) callerTeam(room *quiz.RoomSnapshot) quiz.Team {
	for _, p := range room.Participants {
		if p.ID == c.selfID && p.Team != "" {
			return p.Team
		}
	}
	return room.Team
}
