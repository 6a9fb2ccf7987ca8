// Package room composes the snapshot cache, admin codec and countdown
// reconciler behind one controller per room screen. The controller owns
// no authoritative state of its own beyond local UI scratch (draft
// answer selection); everything else derives from the cache.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/teamtrivia/roomsync/internal/admin"
	"github.com/teamtrivia/roomsync/internal/countdown"
	"github.com/teamtrivia/roomsync/internal/quiz"
	"github.com/teamtrivia/roomsync/internal/state"
)

// Emitter is the outbound half of the transport the controller talks
// through. Emission is fire-and-forget; confirmation arrives only as a
// later inbound event.
type Emitter interface {
	Emit(name quiz.EventName, payload any) error
	ID() string
}

// Controller drives one room screen. All cache mutation happens on the
// Run loop in delivery order; View takes a read lock and derives the
// rest on demand.
type Controller struct {
	mu     sync.RWMutex
	cache  *state.Cache
	recon  *countdown.Reconciler
	socket Emitter
	clock  clockwork.Clock
	logger zerolog.Logger

	roomID int64

	// Memoized caller identity, resolved once per snapshot load so it
	// cannot slide across unrelated patches.
	selfID int64

	selectedAnswer string
	lastIndex      int
	lastStatus     quiz.GameStatus

	// Server counter observed since the current question started. The
	// initial snapshot always carries a counter value, so authority is
	// granted only to counters pushed by timer events.
	serverCounter     int
	serverCounterSeen bool

	advisory string

	updates chan struct{}
}

// Config assembles a controller.
type Config struct {
	RoomID           int64
	Socket           Emitter
	Clock            clockwork.Clock
	QuestionDuration int
	Logger           zerolog.Logger
}

// New returns a controller with an empty cache. Apply an initial
// snapshot with LoadSnapshot, then Run it against the socket's event
// stream.
func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		cache:   state.New(),
		recon:   countdown.New(clock, cfg.QuestionDuration),
		socket:  cfg.Socket,
		clock:   clock,
		logger:  cfg.Logger,
		roomID:  cfg.RoomID,
		updates: make(chan struct{}, 1),
	}
}

// Updates signals after every applied event or local tick. The channel
// never blocks the loop; a slow reader just coalesces redraws.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// LoadSnapshot applies the initial REST snapshot the live events layer
// on top of.
func (c *Controller) LoadSnapshot(snap *quiz.RoomSnapshot) {
	c.mu.Lock()
	c.applySnapshot(snap)
	c.mu.Unlock()
	c.notify()
}

// Run consumes events in delivery order until the stream closes or ctx
// is cancelled. The one-second ticker is the only spontaneous mutation
// source and is released on exit, so a torn-down controller can never
// tick against a stale question index.
func (c *Controller) Run(ctx context.Context, events <-chan quiz.Event) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(event)
			c.notify()
		case <-ticker.Chan():
			c.notify()
		}
	}
}

func (c *Controller) handleEvent(event quiz.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Name {
	case quiz.EventRoomCreated, quiz.EventRoomJoined, quiz.EventRoomUpdated:
		snap, err := quiz.DecodeSnapshot(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.applySnapshot(snap)

	case quiz.EventPlayerJoined:
		p, err := quiz.DecodeParticipant(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyParticipantJoined(p)

	case quiz.EventUserLeft:
		p, err := quiz.DecodeParticipant(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyParticipantLeft(p)

	case quiz.EventMessage:
		m, err := quiz.DecodeChatMessage(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyMessage(m)
		// Team commands take effect the moment their carrier message
		// lands, for every client including the issuer.
		if cmd, ok := admin.Decode(m.Text); ok && cmd.Teams != nil {
			c.cache.ApplyTeams(cmd.Teams)
		}

	case quiz.EventGameStarted:
		gi, err := quiz.DecodeGameInfo(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyGameStarted(gi)
		c.serverCounterSeen = false

	case quiz.EventNewQuestion, quiz.EventNextQuestion:
		q, err := quiz.DecodeQuestion(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyQuestion(q, c.recon.Duration())
		c.serverCounterSeen = false

	case quiz.EventCheckAnswer:
		status, err := quiz.DecodeAnswerStatus(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyAnswerStatus(status)

	case quiz.EventTimerTick, quiz.EventTimerEnd:
		counter, err := quiz.DecodeCounter(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyCounter(counter)
		c.serverCounter = counter
		c.serverCounterSeen = true

	case quiz.EventGameFinished:
		status, err := quiz.DecodeGameStatus(event)
		if err != nil {
			c.dropEvent(event, err)
			return
		}
		c.cache.ApplyGameStatus(status)

	case quiz.EventError:
		var payload quiz.ErrorPayload
		if err := quiz.DecodeInto(event, &payload); err != nil {
			c.dropEvent(event, err)
			return
		}
		c.advisory = payload.Detail

	default:
		c.logger.Debug().Str("event", string(event.Name)).Msg("unknown event dropped")
	}

	c.reconcileLocalState()
}

// applySnapshot replaces the cache and re-runs everything keyed to a
// snapshot load: identity resolution and side-channel replay.
func (c *Controller) applySnapshot(snap *quiz.RoomSnapshot) {
	if snap == nil {
		return
	}
	c.cache.ApplySnapshot(snap)
	c.selfID = resolveIdentity(snap, c.sessionID())
	c.cache.SetCaller(c.selfID)

	// Replay historical team commands from the transcript so a freshly
	// joined client converges with everyone who saw them live. Replay
	// only applies; it never re-broadcasts.
	for _, teams := range admin.TeamAssignments(snap.Messages) {
		c.cache.ApplyTeams(teams)
	}

	c.selectedAnswer = ""
	c.serverCounterSeen = false
	if gi := c.cache.Room().GameInfo; gi != nil {
		c.lastIndex = gi.ActiveQuestionIndex
		c.lastStatus = gi.Status
	} else {
		c.lastIndex = 0
		c.lastStatus = ""
	}
}

// reconcileLocalState clears local-only UI scratch whenever the active
// question or game status moves under it.
func (c *Controller) reconcileLocalState() {
	gi := c.cache.Room().GameInfo
	if gi == nil {
		return
	}
	if gi.ActiveQuestionIndex != c.lastIndex || gi.Status != c.lastStatus {
		c.selectedAnswer = ""
		c.lastIndex = gi.ActiveQuestionIndex
		c.lastStatus = gi.Status
	}
}

// resolveIdentity finds the caller in the participant list: the explicit
// player id on the snapshot wins, then a transport session match, then
// the most-recently-joined participant as a last resort.
func resolveIdentity(snap *quiz.RoomSnapshot, sessionID string) int64 {
	if snap.PlayerID != 0 {
		return snap.PlayerID
	}
	if sessionID != "" {
		for _, p := range snap.Participants {
			if p.SessionID == sessionID {
				return p.ID
			}
		}
	}
	if n := len(snap.Participants); n > 0 {
		return snap.Participants[n-1].ID
	}
	return 0
}

func (c *Controller) sessionID() string {
	if c.socket == nil {
		return ""
	}
	return c.socket.ID()
}

func (c *Controller) dropEvent(event quiz.Event, err error) {
	c.logger.Debug().Err(err).Str("event", string(event.Name)).Msg("malformed event dropped")
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
