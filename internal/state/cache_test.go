package state

import (
	"testing"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

func loadedCache(participants ...quiz.Participant) *Cache {
	c := New()
	c.ApplySnapshot(&quiz.RoomSnapshot{
		RoomID:          12345,
		Name:            "Friday quiz",
		MaxParticipants: 8,
		Participants:    participants,
	})
	return c
}

func gameCache(gi quiz.GameInfo) *Cache {
	c := loadedCache(quiz.Participant{ID: 1, Role: quiz.RoleHost, Team: quiz.TeamRed})
	c.ApplyGameStarted(&gi)
	return c
}

func TestPatchesBeforeLoadAreDropped(t *testing.T) {
	c := New()
	c.ApplyParticipantJoined(quiz.Participant{ID: 1, Role: quiz.RoleHost})
	c.ApplyMessage(quiz.ChatMessage{Text: "hi"})
	c.ApplyCounter(10)
	if c.Loaded() {
		t.Fatalf("cache reports loaded before any snapshot")
	}
	if c.Snapshot() != nil {
		t.Fatalf("snapshot is non-nil before load")
	}
}

func TestParticipantJoinedIsIdempotent(t *testing.T) {
	c := loadedCache()
	p := quiz.Participant{ID: 7, Role: quiz.RoleParticipant, Team: quiz.TeamBlue}
	c.ApplyParticipantJoined(p)
	c.ApplyParticipantJoined(p)
	if got := len(c.Room().Participants); got != 1 {
		t.Fatalf("got %d participants after duplicate join, want 1", got)
	}
}

func TestJoinLeaveKeepsInvariants(t *testing.T) {
	// Arbitrary join/leave sequence: no duplicate ids, exactly one host
	// whenever the room is non-empty.
	c := loadedCache()
	join := func(id int64, role quiz.Role) {
		c.ApplyParticipantJoined(quiz.Participant{ID: id, Role: role})
	}
	leave := func(id int64, role quiz.Role) {
		c.ApplyParticipantLeft(quiz.Participant{ID: id, Role: role})
	}

	join(1, quiz.RoleHost)
	join(2, quiz.RoleParticipant)
	join(2, quiz.RoleParticipant)
	join(3, quiz.RoleParticipant)
	leave(2, quiz.RoleParticipant)
	leave(1, quiz.RoleHost)
	join(4, quiz.RoleParticipant)
	leave(3, quiz.RoleHost) // 3 was promoted

	seen := make(map[int64]bool)
	hosts := 0
	for _, p := range c.Room().Participants {
		if seen[p.ID] {
			t.Fatalf("duplicate participant id %d", p.ID)
		}
		seen[p.ID] = true
		if p.Role == quiz.RoleHost {
			hosts++
		}
	}
	if len(c.Room().Participants) > 0 && hosts != 1 {
		t.Fatalf("got %d hosts, want exactly 1", hosts)
	}
}

func TestHostPromotionOnLeave(t *testing.T) {
	// Room 12345: P1 is host, P2 joined later. P1 disconnects.
	c := loadedCache(
		quiz.Participant{ID: 1, Role: quiz.RoleHost, Team: quiz.TeamRed},
		quiz.Participant{ID: 2, Role: quiz.RoleParticipant, Team: quiz.TeamBlue},
	)
	c.SetCaller(2)
	c.ApplyParticipantLeft(quiz.Participant{ID: 1, Role: quiz.RoleHost})

	room := c.Room()
	if len(room.Participants) != 1 || room.Participants[0].ID != 2 {
		t.Fatalf("unexpected participants after host left: %+v", room.Participants)
	}
	if room.Participants[0].Role != quiz.RoleHost {
		t.Fatalf("P2 not promoted to host: role %q", room.Participants[0].Role)
	}
	if room.Role != quiz.RoleHost {
		t.Fatalf("local caller role not updated on own promotion: %q", room.Role)
	}
}

func TestLeaveUnknownParticipantIsDropped(t *testing.T) {
	c := loadedCache(quiz.Participant{ID: 1, Role: quiz.RoleHost})
	c.ApplyParticipantLeft(quiz.Participant{ID: 99, Role: quiz.RoleParticipant})
	if got := len(c.Room().Participants); got != 1 {
		t.Fatalf("got %d participants, want 1", got)
	}
}

func TestQuestionFlow(t *testing.T) {
	c := gameCache(quiz.GameInfo{Status: quiz.GameActive, ActiveTeam: quiz.TeamRed})

	q := quiz.Question{Text: "Capital of France?", Team: quiz.TeamRed, Answers: []string{"Paris", "Lyon"}}
	c.ApplyQuestion(q, 30)
	// The backend emits new_question and next_question for the same
	// question; the repeat only re-activates it.
	c.ApplyQuestion(q, 30)

	gi := c.Room().GameInfo
	if len(gi.Questions) != 1 {
		t.Fatalf("got %d questions after duplicate delivery, want 1", len(gi.Questions))
	}
	if gi.ActiveQuestionIndex != 1 || gi.ActiveTeam != quiz.TeamRed || gi.Counter != 30 {
		t.Fatalf("unexpected game info after question: %+v", gi)
	}

	c.ApplyAnswerStatus(quiz.AnswerCorrect)
	if got := gi.Questions[0].StatusAnswer; got != quiz.AnswerCorrect {
		t.Fatalf("got statusAnswer %q, want %q", got, quiz.AnswerCorrect)
	}
	if gi.Status != quiz.GameActive {
		t.Fatalf("game status changed by check_answer: %q", gi.Status)
	}
}

func TestAnswerStatusWithoutActiveQuestionIsDropped(t *testing.T) {
	c := gameCache(quiz.GameInfo{Status: quiz.GameActive})
	c.ApplyAnswerStatus(quiz.AnswerCorrect) // no active question
	if n := len(c.Room().GameInfo.Questions); n != 0 {
		t.Fatalf("got %d questions, want 0", n)
	}
}

func TestGameStartedReplacesWholesale(t *testing.T) {
	c := gameCache(quiz.GameInfo{
		Status:              quiz.GameActive,
		Questions:           []quiz.Question{{Text: "old", Team: quiz.TeamRed}},
		ActiveQuestionIndex: 1,
	})
	c.ApplyGameStarted(&quiz.GameInfo{Status: quiz.GameActive, ActiveTeam: quiz.TeamBlue, Counter: 30})

	gi := c.Room().GameInfo
	if len(gi.Questions) != 0 || gi.ActiveQuestionIndex != 0 || gi.ActiveTeam != quiz.TeamBlue {
		t.Fatalf("game_started did not replace wholesale: %+v", gi)
	}
}

func TestCounterAndFinish(t *testing.T) {
	c := gameCache(quiz.GameInfo{Status: quiz.GameActive, Counter: 30})
	c.ApplyCounter(12)
	if got := c.Room().GameInfo.Counter; got != 12 {
		t.Fatalf("got counter %d, want 12", got)
	}
	c.ApplyCounter(-5)
	if got := c.Room().GameInfo.Counter; got != 0 {
		t.Fatalf("negative counter not clamped: %d", got)
	}
	c.ApplyCounter(9)
	c.ApplyGameStatus(quiz.GameFinished)
	gi := c.Room().GameInfo
	if gi.Status != quiz.GameFinished || gi.Counter != 0 {
		t.Fatalf("finish should zero the counter: %+v", gi)
	}
}

func TestApplyTeamsIsIdempotent(t *testing.T) {
	c := loadedCache(
		quiz.Participant{ID: 1, Role: quiz.RoleHost, Team: quiz.TeamRed},
		quiz.Participant{ID: 2, Role: quiz.RoleParticipant, Team: quiz.TeamRed},
	)
	c.SetCaller(2)
	teams := map[int64]quiz.Team{1: quiz.TeamBlue, 2: quiz.TeamBlue, 99: quiz.TeamRed}
	c.ApplyTeams(teams)
	c.ApplyTeams(teams)

	room := c.Room()
	if room.Participants[0].Team != quiz.TeamBlue || room.Participants[1].Team != quiz.TeamBlue {
		t.Fatalf("assignments not applied: %+v", room.Participants)
	}
	if room.Team != quiz.TeamBlue {
		t.Fatalf("caller team not updated: %q", room.Team)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := loadedCache(quiz.Participant{ID: 1, Role: quiz.RoleHost})
	snap := c.Snapshot()
	snap.Participants[0].Role = quiz.RoleParticipant
	snap.Name = "mutated"
	if c.Room().Participants[0].Role != quiz.RoleHost || c.Room().Name != "Friday quiz" {
		t.Fatalf("mutating a snapshot reached the cache")
	}
}
