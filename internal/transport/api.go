package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

// APIPrefix is the backend's versioned REST prefix.
const APIPrefix = "/api/v1"

// API is the request/response client for the snapshot queries the live
// event stream layers on top of.
type API struct {
	baseURL string
	client  *http.Client
}

// NewAPI returns an API client rooted at baseURL (scheme://host[:port]).
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// LoginResponse is the result of check_pin/create_room.
type LoginResponse struct {
	OK     bool   `json:"ok"`
	RoomID *int64 `json:"roomId"`
}

// CreateRoomRequest is the create_room form payload.
type CreateRoomRequest struct {
	RoomID          int64  `json:"roomId"`
	RoomName        string `json:"roomName"`
	QuizTheme       string `json:"quizTheme"`
	MaxParticipants int    `json:"maxParticipants"`
}

// CheckPIN asks whether a room with the given PIN exists.
func (a *API) CheckPIN(ctx context.Context, pin int64) (LoginResponse, error) {
	var out LoginResponse
	err := a.post(ctx, "/check_pin", map[string]int64{"pin": pin}, &out)
	return out, err
}

// CreateRoom registers a new room.
func (a *API) CreateRoom(ctx context.Context, req CreateRoomRequest) (LoginResponse, error) {
	var out LoginResponse
	err := a.post(ctx, "/create_room", req, &out)
	return out, err
}

// HostSnapshot fetches the initial room snapshot as the host.
func (a *API) HostSnapshot(ctx context.Context, roomID int64) (*quiz.RoomSnapshot, error) {
	var snap quiz.RoomSnapshot
	if err := a.get(ctx, fmt.Sprintf("/create_room/%d", roomID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// JoinSnapshot fetches the initial room snapshot as a participant.
func (a *API) JoinSnapshot(ctx context.Context, roomID int64) (*quiz.RoomSnapshot, error) {
	var snap quiz.RoomSnapshot
	if err := a.get(ctx, fmt.Sprintf("/join_room/%d", roomID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// StartGame starts the game and returns the full game info the
// game_started event will mirror.
func (a *API) StartGame(ctx context.Context, roomID int64) (*quiz.GameInfo, error) {
	var gi quiz.GameInfo
	err := a.post(ctx, fmt.Sprintf("/start_game/%d", roomID), quiz.RoomRef{RoomID: roomID}, &gi)
	if err != nil {
		return nil, err
	}
	return &gi, nil
}

func (a *API) get(ctx context.Context, endpoint string, out any) error {
	return a.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (a *API) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return a.do(ctx, http.MethodPost, endpoint, bytes.NewReader(data), out)
}

func (a *API) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+APIPrefix+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
