// Package countdown computes the "seconds remaining" value shown for the
// active question. The server is authoritative whenever it pushes a
// counter; between pushes the client counts down against its own clock so
// the display keeps moving even when the backend only ticks periodically.
package countdown

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuestionDuration is the per-question countdown the backend
// starts every question from.
const DefaultQuestionDuration = 30

// Input is everything one evaluation of the reconciler looks at.
type Input struct {
	GameActive    bool
	QuestionIndex int // 1-based; 0 means no active question
	Resolved      bool
	Paused        bool

	// ServerCounter is the last counter pushed by timer_tick/timer_end
	// for the current question; ServerCounterSeen reports whether one
	// arrived at all.
	ServerCounter     int
	ServerCounterSeen bool
}

// Reconciler tracks local countdown state for the question it last saw.
// Not safe for concurrent use; the room controller owns it.
type Reconciler struct {
	clock    clockwork.Clock
	duration int

	lastIndex int
	remaining int
	lastTick  time.Time
}

// New returns a reconciler counting down from duration seconds per
// question. A nil clock falls back to the real clock.
func New(clock clockwork.Clock, duration int) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultQuestionDuration
	}
	return &Reconciler{
		clock:     clock,
		duration:  duration,
		remaining: duration,
		lastTick:  clock.Now(),
	}
}

// Remaining evaluates the authoritative display value for in.
//
// Precedence: idle baseline, paused freeze, resolved freeze, server
// counter, local tick. Once an answer resolves the value stays frozen at
// the local count; it does not snap to a later server value.
func (r *Reconciler) Remaining(in Input) int {
	now := r.clock.Now()

	if !in.GameActive || in.QuestionIndex == 0 {
		r.lastIndex = 0
		r.lastTick = now
		return clamp(r.remaining, r.duration)
	}

	if in.QuestionIndex != r.lastIndex {
		r.lastIndex = in.QuestionIndex
		r.remaining = r.duration
		r.lastTick = now
	}

	if in.Paused {
		r.lastTick = now
		if in.ServerCounterSeen {
			r.remaining = clamp(in.ServerCounter, r.duration)
		}
		return clamp(r.remaining, r.duration)
	}

	if in.Resolved {
		r.lastTick = now
		return clamp(r.remaining, r.duration)
	}

	if in.ServerCounterSeen && in.ServerCounter > 0 {
		r.remaining = clamp(in.ServerCounter, r.duration)
		r.lastTick = now
		return r.remaining
	}

	if elapsed := int(now.Sub(r.lastTick) / time.Second); elapsed > 0 {
		r.remaining -= elapsed
		r.lastTick = r.lastTick.Add(time.Duration(elapsed) * time.Second)
	}
	if r.remaining < 0 {
		r.remaining = 0
	}
	return r.remaining
}

// Duration returns the configured per-question duration in seconds.
func (r *Reconciler) Duration() int {
	return r.duration
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
