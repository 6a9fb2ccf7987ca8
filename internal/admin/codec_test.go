package admin

import (
	"testing"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

func msg(text string) quiz.ChatMessage {
	return quiz.ChatMessage{Team: quiz.TeamRed, Text: text}
}

func mustEncode(t *testing.T, cmd Command) string {
	t.Helper()
	text, err := Encode(cmd)
	if err != nil {
		t.Fatalf("encode %v: %v", cmd, err)
	}
	return text
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []Command{
		{Kind: KindLobbyLock, Value: true},
		{Kind: KindChatMuted, Value: false},
		{Kind: KindHintsEnabled, Value: true},
		{Kind: KindPause, Value: true},
		{Kind: KindShuffleTeams, Teams: map[int64]quiz.Team{1: quiz.TeamRed, 2: quiz.TeamBlue}},
		{Kind: KindResetTeams, Teams: map[int64]quiz.Team{3: quiz.TeamRed}},
	}
	for _, want := range tests {
		text := mustEncode(t, want)
		got, ok := Decode(text)
		if !ok {
			t.Fatalf("decode %q: not recognized as command", text)
		}
		if got.Kind != want.Kind || got.Value != want.Value {
			t.Fatalf("decode %q: got %+v, want %+v", text, got, want)
		}
		if len(got.Teams) != len(want.Teams) {
			t.Fatalf("decode %q: got %d team entries, want %d", text, len(got.Teams), len(want.Teams))
		}
		for id, team := range want.Teams {
			if got.Teams[id] != team {
				t.Fatalf("decode %q: participant %d got team %q, want %q", text, id, got.Teams[id], team)
			}
		}
	}
}

func TestDecodeDegradesToChat(t *testing.T) {
	tests := []string{
		"hello team",
		"",
		"__cmd",
		"__cmd:not json",
		`__cmd:{"kind":"unknown_kind","value":true}`,
		`__cmd:{"kind":`,
		` __cmd:{"kind":"pause","value":true}`, // prefix must be at the start
	}
	for _, text := range tests {
		if _, ok := Decode(text); ok {
			t.Fatalf("Decode(%q) recognized a command, want ordinary chat", text)
		}
	}
}

func TestDeriveStateLastWriterWins(t *testing.T) {
	lock := func(v bool) quiz.ChatMessage {
		return msg(mustEncode(t, Command{Kind: KindLobbyLock, Value: v}))
	}

	st := DeriveState([]quiz.ChatMessage{lock(true), lock(false)})
	if st.LobbyLocked {
		t.Fatalf("lock(true) then lock(false): LobbyLocked = true, want false")
	}
	st = DeriveState([]quiz.ChatMessage{lock(false), lock(true)})
	if !st.LobbyLocked {
		t.Fatalf("lock(false) then lock(true): LobbyLocked = false, want true")
	}
}

func TestDeriveStateFoldsAllToggles(t *testing.T) {
	log := []quiz.ChatMessage{
		msg("ordinary chatter"),
		msg(mustEncode(t, Command{Kind: KindChatMuted, Value: true})),
		msg(mustEncode(t, Command{Kind: KindHintsEnabled, Value: true})),
		msg(mustEncode(t, Command{Kind: KindPause, Value: true})),
		msg(mustEncode(t, Command{Kind: KindPause, Value: false})),
		msg(mustEncode(t, Command{Kind: KindShuffleTeams, Teams: map[int64]quiz.Team{1: quiz.TeamBlue}})),
	}
	st := DeriveState(log)
	if !st.ChatMuted || !st.HintsEnabled {
		t.Fatalf("got %+v, want ChatMuted and HintsEnabled set", st)
	}
	if st.Paused {
		t.Fatalf("last pause command was false, got Paused = true")
	}
	if st.LobbyLocked {
		t.Fatalf("no lock command in log, got LobbyLocked = true")
	}
}

func TestVisibleMessagesIsOrderedComplement(t *testing.T) {
	chat1 := msg("first")
	cmd := msg(mustEncode(t, Command{Kind: KindPause, Value: true}))
	chat2 := msg("second")
	log := []quiz.ChatMessage{chat1, cmd, chat2}

	visible := VisibleMessages(log)
	if len(visible) != 2 {
		t.Fatalf("got %d visible messages, want 2", len(visible))
	}
	if visible[0].Text != "first" || visible[1].Text != "second" {
		t.Fatalf("visible order broken: %q, %q", visible[0].Text, visible[1].Text)
	}
	for _, m := range visible {
		if _, ok := Decode(m.Text); ok {
			t.Fatalf("visible message %q decodes as a command", m.Text)
		}
	}
}

func TestTeamAssignmentsReplayIsDeterministic(t *testing.T) {
	reset := map[int64]quiz.Team{1: quiz.TeamRed, 2: quiz.TeamBlue}
	shuffle := map[int64]quiz.Team{1: quiz.TeamBlue, 2: quiz.TeamRed}
	log := []quiz.ChatMessage{
		msg(mustEncode(t, Command{Kind: KindResetTeams, Teams: reset})),
		msg(mustEncode(t, Command{Kind: KindShuffleTeams, Teams: shuffle})),
	}

	apply := func() map[int64]quiz.Team {
		final := make(map[int64]quiz.Team)
		for _, teams := range TeamAssignments(log) {
			for id, team := range teams {
				final[id] = team
			}
		}
		return final
	}

	first := apply()
	second := apply() // fresh client replaying the same log
	for id, team := range first {
		if second[id] != team {
			t.Fatalf("replay diverged for participant %d: %q vs %q", id, team, second[id])
		}
	}
	if first[1] != quiz.TeamBlue || first[2] != quiz.TeamRed {
		t.Fatalf("shuffle payload should win: got %v", first)
	}
}
