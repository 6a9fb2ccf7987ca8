package quiz

import (
	"encoding/json"
	"fmt"
)

// EventName names a real-time event on the room channel.
type EventName string

// Inbound events consumed by the client.
const (
	EventRoomCreated  EventName = "room_created"
	EventRoomJoined   EventName = "room_joined"
	EventRoomUpdated  EventName = "room_updated"
	EventPlayerJoined EventName = "player_joined"
	EventUserLeft     EventName = "user_left"
	EventMessage      EventName = "message"
	EventGameStarted  EventName = "game_started"
	EventNewQuestion  EventName = "new_question"
	EventNextQuestion EventName = "next_question"
	EventCheckAnswer  EventName = "check_answer"
	EventTimerTick    EventName = "timer_tick"
	EventTimerEnd     EventName = "timer_end"
	EventGameFinished EventName = "game_finished"
	EventError        EventName = "error"
)

// Outbound events emitted by client actions.
const (
	EventCreateRoom EventName = "create_room"
	EventJoinRoom   EventName = "join_room"
	EventStartGame  EventName = "start_game"
	EventAnswer     EventName = "answer"
)

// Event is the wire envelope for every message on the room channel.
// Data stays raw until the event name selects a payload type.
type Event struct {
	Name EventName       `json:"event"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an envelope. It is the inverse of the
// Decode* helpers below.
func NewEvent(name EventName, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return Event{Name: name, Data: data}, nil
}

// MessageOut is the payload of an outbound "message" event.
type MessageOut struct {
	RoomID    int64  `json:"roomId"`
	Text      string `json:"text"`
	Team      Team   `json:"command"`
	CreatedAt string `json:"createdAt"`
}

// AnswerOut is the payload of an outbound "answer" event.
type AnswerOut struct {
	RoomID        int64  `json:"roomId"`
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
	Team          Team   `json:"team"`
}

// RoomRef is the payload of outbound events that carry only a room id
// (create_room, join_room, start_game, next_question).
type RoomRef struct {
	RoomID int64 `json:"roomId"`
}

// ErrorPayload is the advisory payload of an inbound "error" event.
type ErrorPayload struct {
	Detail string `json:"detail"`
}

// CounterPayload accepts the two shapes the backend uses for
// timer_tick/timer_end: a bare number or {"counter": n}.
type CounterPayload struct {
	Counter int
}

// MarshalJSON always writes the object form.
func (c CounterPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Counter int `json:"counter"`
	}{Counter: c.Counter})
}

// UnmarshalJSON implements both counter wire shapes.
func (c *CounterPayload) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Counter = n
		return nil
	}
	var obj struct {
		Counter int `json:"counter"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshal counter payload: %w", err)
	}
	c.Counter = obj.Counter
	return nil
}

// DecodeInto unmarshals the event payload into out.
func DecodeInto(e Event, out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return nil
}

// DecodeSnapshot decodes the payload of room_created/room_joined/room_updated.
func DecodeSnapshot(e Event) (*RoomSnapshot, error) {
	var snap RoomSnapshot
	if err := json.Unmarshal(e.Data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", e.Name, err)
	}
	return &snap, nil
}

// DecodeParticipant decodes player_joined/user_left payloads.
func DecodeParticipant(e Event) (Participant, error) {
	var p Participant
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return Participant{}, fmt.Errorf("decode %s participant: %w", e.Name, err)
	}
	return p, nil
}

// DecodeChatMessage decodes a "message" payload.
func DecodeChatMessage(e Event) (ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return ChatMessage{}, fmt.Errorf("decode chat message: %w", err)
	}
	return m, nil
}

// DecodeGameInfo decodes a "game_started" payload.
func DecodeGameInfo(e Event) (*GameInfo, error) {
	var gi GameInfo
	if err := json.Unmarshal(e.Data, &gi); err != nil {
		return nil, fmt.Errorf("decode game info: %w", err)
	}
	return &gi, nil
}

// DecodeQuestion decodes new_question/next_question payloads.
func DecodeQuestion(e Event) (Question, error) {
	var q Question
	if err := json.Unmarshal(e.Data, &q); err != nil {
		return Question{}, fmt.Errorf("decode %s question: %w", e.Name, err)
	}
	return q, nil
}

// DecodeAnswerStatus decodes a "check_answer" payload, which is a bare
// JSON string.
func DecodeAnswerStatus(e Event) (AnswerStatus, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return AnswerUnset, fmt.Errorf("decode answer status: %w", err)
	}
	switch st := AnswerStatus(s); st {
	case AnswerCorrect, AnswerIncorrect:
		return st, nil
	default:
		return AnswerUnset, fmt.Errorf("unknown answer status %q", s)
	}
}

// DecodeCounter decodes timer_tick/timer_end payloads.
func DecodeCounter(e Event) (int, error) {
	var c CounterPayload
	if err := json.Unmarshal(e.Data, &c); err != nil {
		return 0, err
	}
	if c.Counter < 0 {
		return 0, nil
	}
	return c.Counter, nil
}

// DecodeGameStatus decodes a "game_finished" payload, a bare status string.
func DecodeGameStatus(e Event) (GameStatus, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("decode game status: %w", err)
	}
	switch st := GameStatus(s); st {
	case GameWaiting, GameActive, GameFinished:
		return st, nil
	default:
		return "", fmt.Errorf("unknown game status %q", s)
	}
}
