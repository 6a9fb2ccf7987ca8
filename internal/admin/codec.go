// Package admin encodes host moderation commands as specially-prefixed
// chat messages so they ride the existing message stream instead of
// needing dedicated server endpoints. Commands stay in the transcript
// forever; clients rebuild toggle state by folding the log and hide the
// command messages from display.
package admin

import (
	"encoding/json"
	"strings"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

// Prefix marks a chat message as an admin command. Text without the
// prefix, or with a body that fails to decode, is ordinary chat.
const Prefix = "__cmd:"

// Kind names an admin command.
type Kind string

const (
	KindLobbyLock    Kind = "lobby_lock"
	KindChatMuted    Kind = "chat_muted"
	KindHintsEnabled Kind = "hints_enabled"
	KindPause        Kind = "pause"
	KindShuffleTeams Kind = "shuffle_teams"
	KindResetTeams   Kind = "reset_teams"
)

// Command is one decoded admin command. Toggle kinds carry Value; the
// team kinds carry Teams, an absolute participant-id to team map that is
// safe to re-apply on replay.
type Command struct {
	Kind  Kind                `json:"kind"`
	Value bool                `json:"value,omitempty"`
	Teams map[int64]quiz.Team `json:"teams,omitempty"`
}

// PanelState is the admin toggle state derived by folding the command
// log left to right from defaults; the latest command of each kind wins.
type PanelState struct {
	LobbyLocked  bool
	ChatMuted    bool
	HintsEnabled bool
	Paused       bool
}

// Encode serializes a command into chat-message text.
func Encode(cmd Command) (string, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return Prefix + string(body), nil
}

// Decode returns the typed command when text carries the reserved prefix
// and a well-formed body. Anything else reports ok=false and degrades to
// ordinary chat; Decode never fails hard.
func Decode(text string) (Command, bool) {
	body, found := strings.CutPrefix(text, Prefix)
	if !found {
		return Command{}, false
	}
	var cmd Command
	if err := json.Unmarshal([]byte(body), &cmd); err != nil {
		return Command{}, false
	}
	switch cmd.Kind {
	case KindLobbyLock, KindChatMuted, KindHintsEnabled, KindPause,
		KindShuffleTeams, KindResetTeams:
		return cmd, true
	default:
		return Command{}, false
	}
}

// DeriveState folds the ordered message log into the current toggle
// state. Team commands do not touch the toggles; see TeamAssignments.
func DeriveState(messages []quiz.ChatMessage) PanelState {
	var st PanelState
	for _, m := range messages {
		cmd, ok := Decode(m.Text)
		if !ok {
			continue
		}
		switch cmd.Kind {
		case KindLobbyLock:
			st.LobbyLocked = cmd.Value
		case KindChatMuted:
			st.ChatMuted = cmd.Value
		case KindHintsEnabled:
			st.HintsEnabled = cmd.Value
		case KindPause:
			st.Paused = cmd.Value
		}
	}
	return st
}

// TeamAssignments extracts the team-assignment payloads from the log in
// order. Each map is absolute, so applying the sequence is idempotent
// and every client replaying the same log converges on the same teams.
func TeamAssignments(messages []quiz.ChatMessage) []map[int64]quiz.Team {
	var out []map[int64]quiz.Team
	for _, m := range messages {
		cmd, ok := Decode(m.Text)
		if !ok {
			continue
		}
		if cmd.Kind == KindShuffleTeams || cmd.Kind == KindResetTeams {
			out = append(out, cmd.Teams)
		}
	}
	return out
}

// VisibleMessages returns the subsequence of messages that do not decode
// as admin commands, preserving order. This is what chat UI renders.
func VisibleMessages(messages []quiz.ChatMessage) []quiz.ChatMessage {
	visible := make([]quiz.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if _, ok := Decode(m.Text); ok {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}
