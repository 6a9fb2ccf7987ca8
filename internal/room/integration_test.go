package room_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/teamtrivia/roomsync/internal/quiz"
	"github.com/teamtrivia/roomsync/internal/room"
	"github.com/teamtrivia/roomsync/internal/roomsim"
	"github.com/teamtrivia/roomsync/internal/transport"
)

const testRoomID = 12345

// client bundles one connected controller for the integration flow.
type client struct {
	ctrl   *room.Controller
	socket *transport.Socket
	cancel context.CancelFunc
}

func (c *client) close() {
	c.cancel()
	c.socket.Close()
}

// startSim runs the simulator on a frozen clock so no countdown fires
// under the test; every state change is driven by explicit events.
func startSim(t *testing.T) *httptest.Server {
	t.Helper()
	sim := roomsim.NewServer(roomsim.NewStore(), clockwork.NewFakeClock())
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		srv.Close()
		sim.Close()
	})
	return srv
}

func connect(t *testing.T, srv *httptest.Server, handshake quiz.EventName) *client {
	t.Helper()
	wsAddr := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	socket, err := transport.Dial(context.Background(), wsAddr, transport.DefaultSocketConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	ctrl := room.New(room.Config{
		RoomID: testRoomID,
		Socket: socket,
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx, socket.Events())

	if err := socket.Emit(handshake, quiz.RoomRef{RoomID: testRoomID}); err != nil {
		t.Fatalf("handshake %s: %v", handshake, err)
	}

	c := &client{ctrl: ctrl, socket: socket, cancel: cancel}
	t.Cleanup(c.close)
	return c
}

func waitFor(t *testing.T, ctrl *room.Controller, desc string, cond func(room.View) bool) room.View {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if v := ctrl.View(); cond(v) {
			return v
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last view: %+v", desc, ctrl.View())
	return room.View{}
}

func TestRoomLifecycleAgainstSimulator(t *testing.T) {
	srv := startSim(t)
	api := transport.NewAPI(srv.URL)

	resp, err := api.CreateRoom(context.Background(), transport.CreateRoomRequest{
		RoomID: testRoomID, RoomName: "Friday quiz", QuizTheme: "history", MaxParticipants: 4,
	})
	if err != nil || !resp.OK {
		t.Fatalf("CreateRoom: resp=%+v err=%v", resp, err)
	}

	host := connect(t, srv, quiz.EventCreateRoom)
	waitFor(t, host.ctrl, "host snapshot", func(v room.View) bool {
		return v.Loaded && v.Role == quiz.RoleHost
	})

	guest := connect(t, srv, quiz.EventJoinRoom)
	gv := waitFor(t, guest.ctrl, "guest snapshot", func(v room.View) bool {
		return v.Loaded && v.Role == quiz.RoleParticipant
	})
	if gv.Team != quiz.TeamBlue {
		t.Fatalf("guest dealt %q, want blue opposite the red host", gv.Team)
	}
	waitFor(t, host.ctrl, "host sees the join", func(v room.View) bool {
		return len(v.Participants) == 2
	})

	// Chat fans out to every member, the sender included.
	guest.ctrl.SendMessage("hello from blue")
	for _, c := range []*client{host, guest} {
		waitFor(t, c.ctrl, "chat delivery", func(v room.View) bool {
			return len(v.Messages) == 1 && v.Messages[0].Text == "hello from blue"
		})
	}

	// Mute travels the chat channel itself but never shows up in it.
	host.ctrl.SetChatMuted(true)
	waitFor(t, guest.ctrl, "mute state", func(v room.View) bool {
		return v.Panel.ChatMuted && len(v.Messages) == 1
	})
	guest.ctrl.SendMessage("should not send")
	host.ctrl.SetChatMuted(false)
	waitFor(t, guest.ctrl, "unmute state", func(v room.View) bool {
		return !v.Panel.ChatMuted
	})
	if got := len(host.ctrl.View().Messages); got != 1 {
		t.Fatalf("muted message reached the room: %d visible messages", got)
	}

	host.ctrl.StartGame()
	hv := waitFor(t, host.ctrl, "first question", func(v room.View) bool {
		return v.GameStatus == quiz.GameActive && v.QuestionIndex == 1 && v.Question != nil
	})
	if hv.ActiveTeam != quiz.TeamRed || !hv.CanAnswer {
		t.Fatalf("host on the opening red question: %+v", hv)
	}
	waitFor(t, guest.ctrl, "guest sees the question", func(v room.View) bool {
		return v.GameStatus == quiz.GameActive && v.QuestionIndex == 1
	})
	if guest.ctrl.View().CanAnswer {
		t.Fatalf("blue guest can answer the red question")
	}

	// The scripted first option is always the correct one.
	host.ctrl.SubmitAnswer("A")
	for _, c := range []*client{host, guest} {
		waitFor(t, c.ctrl, "advance to question 2", func(v room.View) bool {
			return v.QuestionIndex == 2 && v.Question != nil && v.Question.Team == quiz.TeamBlue
		})
	}

	// Host departure promotes the earliest-joined survivor.
	host.close()
	waitFor(t, guest.ctrl, "host promotion", func(v room.View) bool {
		return len(v.Participants) == 1 && v.Role == quiz.RoleHost
	})
}

func TestAdminToggleReplayForLateJoiner(t *testing.T) {
	srv := startSim(t)
	api := transport.NewAPI(srv.URL)
	if resp, err := api.CreateRoom(context.Background(), transport.CreateRoomRequest{
		RoomID: testRoomID, RoomName: "locked", QuizTheme: "music", MaxParticipants: 4,
	}); err != nil || !resp.OK {
		t.Fatalf("CreateRoom: resp=%+v err=%v", resp, err)
	}

	host := connect(t, srv, quiz.EventCreateRoom)
	waitFor(t, host.ctrl, "host snapshot", func(v room.View) bool {
		return v.Loaded && v.Role == quiz.RoleHost
	})
	host.ctrl.SetLobbyLocked(true)
	host.ctrl.SetHintsEnabled(true)
	waitFor(t, host.ctrl, "toggles applied", func(v room.View) bool {
		return v.Panel.LobbyLocked && v.Panel.HintsEnabled
	})

	// A client joining afterwards reconstructs the panel purely from the
	// transcript embedded in its snapshot.
	late := connect(t, srv, quiz.EventJoinRoom)
	lv := waitFor(t, late.ctrl, "late joiner snapshot", func(v room.View) bool {
		return v.Loaded
	})
	if !lv.Panel.LobbyLocked || !lv.Panel.HintsEnabled || lv.Panel.ChatMuted {
		t.Fatalf("replayed panel state wrong: %+v", lv.Panel)
	}
	if len(lv.Messages) != 0 {
		t.Fatalf("admin commands leaked into visible chat: %+v", lv.Messages)
	}
}
