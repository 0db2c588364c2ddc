package workspace

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
)

// Animator is the narrow interface to the external animation engine. The
// tracker reports the new running offsets for a monitor; easing and
// per-frame interpolation happen elsewhere.
type Animator interface {
	StartParallax(monitor string, offsetX, offsetY float64, direction int)
}

// MonitorState holds the tracked position and running parallax offsets for
// one output. A monitor starts unknown and becomes known on the first
// observed context after connect; there is no terminal state short of
// disconnect.
type MonitorState struct {
	Known   bool
	Context Context
	OffsetX float64
	OffsetY float64
}

// Tracker accumulates workspace transitions into per-monitor parallax
// offsets and drives the animator toward them.
type Tracker struct {
	mu          sync.Mutex
	shift       float64
	policy      Policy
	animator    Animator
	monitors    map[string]*MonitorState
	subscribers []chan ChangeEvent
	log         *zerolog.Logger
}

// NewTracker creates a tracker. The animator may be nil, in which case
// offsets are still accumulated but no animation is started.
func NewTracker(shiftPixels float64, policy Policy, animator Animator) *Tracker {
	return &Tracker{
		shift:    shiftPixels,
		policy:   policy,
		animator: animator,
		monitors: make(map[string]*MonitorState),
		log:      logger.WithComponent("tracker"),
	}
}

// Observe records a context for a monitor without producing an offset. Used
// for the initial query after connect (Unknown -> Known).
func (t *Tracker) Observe(monitor string, ctx Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(monitor).Known = true
	t.state(monitor).Context = ctx
}

// State returns a copy of a monitor's tracked state.
func (t *Tracker) State(monitor string) MonitorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.state(monitor)
}

// States returns a copy of every tracked monitor state.
func (t *Tracker) States() map[string]MonitorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]MonitorState, len(t.monitors))
	for name, st := range t.monitors {
		out[name] = *st
	}
	return out
}

// HandleChange applies a change event: the offset is computed and added to
// the primary monitor's running offset and an animation is started toward
// the new value. When a secondary monitor is affected (steal/move), the
// same computation and animation start happen independently for it using
// the secondary contexts.
func (t *Tracker) HandleChange(ev ChangeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.applyLocked(ev.Monitor, ev.Old, ev.New, ev.Vertical)

	if ev.SecondaryMonitor != "" {
		t.applyLocked(ev.SecondaryMonitor, ev.SecondaryOld, ev.SecondaryNew, ev.Vertical)
	}

	t.broadcastLocked(ev)
}

// Subscribe returns a channel receiving every applied change event.
// Slow subscribers drop events rather than blocking the tracker.
func (t *Tracker) Subscribe() chan ChangeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan ChangeEvent, 16)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (t *Tracker) Unsubscribe(ch chan ChangeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, sub := range t.subscribers {
		if sub == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (t *Tracker) broadcastLocked(ev ChangeEvent) {
	for _, sub := range t.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// HandleSteal reassigns a workspace from one monitor to another: the source
// monitor's context is cleared and the destination takes ownership, with
// offsets and animations applied to both.
func (t *Tracker) HandleSteal(fromMonitor, toMonitor string, ctx Context) {
	t.mu.Lock()
	toOld := *t.state(toMonitor)
	fromOld := *t.state(fromMonitor)
	t.mu.Unlock()

	cleared := Context{Model: ctx.Model}

	t.log.Debug().
		Str("from", fromMonitor).
		Str("to", toMonitor).
		Str("workspace", ctx.String()).
		Msg("workspace steal")

	t.HandleChange(ChangeEvent{
		Old:              toOld.Context,
		New:              ctx,
		Monitor:          toMonitor,
		SecondaryMonitor: fromMonitor,
		SecondaryOld:     fromOld.Context,
		SecondaryNew:     cleared,
		Steal:            true,
	})
}

// HandleMove relocates a workspace between monitors. The state transition
// is identical to a steal; the separate name exists because compositors
// that move workspaces (Niri) preserve workspace identity rather than
// creating ambiguity about ownership.
func (t *Tracker) HandleMove(fromMonitor, toMonitor string, ctx Context) {
	t.HandleSteal(fromMonitor, toMonitor, ctx)
}

func (t *Tracker) applyLocked(monitor string, from, to Context, vertical bool) {
	st := t.state(monitor)

	offset := Offset(from, to, t.shift, &t.policy)
	if vertical {
		st.OffsetY += offset
	} else {
		st.OffsetX += offset
	}
	st.Known = true
	st.Context = to

	if t.animator != nil {
		t.animator.StartParallax(monitor, st.OffsetX, st.OffsetY, Compare(from, to))
	}
}

func (t *Tracker) state(monitor string) *MonitorState {
	st, ok := t.monitors[monitor]
	if !ok {
		st = &MonitorState{}
		t.monitors[monitor] = st
	}
	return st
}
