package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(APIPrefix+"/check_pin", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PIN int64 `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ok := body.PIN == 12345
		resp := LoginResponse{OK: ok}
		if ok {
			resp.RoomID = &body.PIN
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(APIPrefix+"/create_room", func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.RoomID == 12345 {
			http.Error(w, "room exists", http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(LoginResponse{OK: true, RoomID: &req.RoomID})
	})
	mux.HandleFunc(APIPrefix+"/join_room/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, APIPrefix+"/join_room/")
		if id != "12345" {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(quiz.RoomSnapshot{
			RoomID:   12345,
			Name:     "Friday quiz",
			Role:     quiz.RoleParticipant,
			Team:     quiz.TeamBlue,
			PlayerID: 2,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckPIN(t *testing.T) {
	api := NewAPI(apiServer(t).URL)

	resp, err := api.CheckPIN(context.Background(), 12345)
	if err != nil {
		t.Fatalf("CheckPIN: %v", err)
	}
	if !resp.OK || resp.RoomID == nil || *resp.RoomID != 12345 {
		t.Fatalf("valid pin: %+v", resp)
	}

	resp, err = api.CheckPIN(context.Background(), 99999)
	if err != nil {
		t.Fatalf("CheckPIN unknown: %v", err)
	}
	if resp.OK {
		t.Fatalf("unknown pin reported ok")
	}
}

func TestCreateRoomConflictSurfacesStatus(t *testing.T) {
	api := NewAPI(apiServer(t).URL)
	_, err := api.CreateRoom(context.Background(), CreateRoomRequest{
		RoomID: 12345, RoomName: "dup", QuizTheme: "music", MaxParticipants: 4,
	})
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("got %v, want an error carrying status 409", err)
	}
}

func TestJoinSnapshotCarriesCallerIdentity(t *testing.T) {
	api := NewAPI(apiServer(t).URL)
	snap, err := api.JoinSnapshot(context.Background(), 12345)
	if err != nil {
		t.Fatalf("JoinSnapshot: %v", err)
	}
	if snap.PlayerID != 2 || snap.Role != quiz.RoleParticipant || snap.Team != quiz.TeamBlue {
		t.Fatalf("caller fields lost: %+v", snap)
	}
}

func TestContextCancellationAborts(t *testing.T) {
	api := NewAPI(apiServer(t).URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := api.CheckPIN(ctx, 12345); err == nil {
		t.Fatalf("request survived a cancelled context")
	}
}
