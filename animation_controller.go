package lantern

import (
	"context"
	"sync"
	"time"
)

// AnimationState is a controller's lifecycle position.
type AnimationState uint8

const (
	AnimationIdle     AnimationState = iota // created, not started
	AnimationRunning                        // advancing each frame
	AnimationPaused                         // held at the current values
	AnimationStopping                       // playing back after Stop with StopReverse
	AnimationStopped                        // stopped before finishing
	AnimationFinished                       // ran to completion
)

func (s AnimationState) String() string {
	switch s {
	case AnimationIdle:
		return "idle"
	case AnimationRunning:
		return "running"
	case AnimationPaused:
		return "paused"
	case AnimationStopping:
		return "stopping"
	case AnimationStopped:
		return "stopped"
	case AnimationFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// AnimationEventType identifies a controller notification.
type AnimationEventType uint8

const (
	AnimationEventStart    AnimationEventType = iota // delay consumed, values start moving
	AnimationEventFinished                           // a play-through completed
	AnimationEventStopped                            // stopped by Stop, Restore or node destruction
)

// AnimationEvent carries a controller notification.
type AnimationEvent struct {
	Type       AnimationEventType
	Controller *AnimationController
}

// AnimationController drives one Animation. All methods except
// WaitUntilStopped must be called from the frame loop.
type AnimationController struct {
	stage    *Stage
	anim     *Animation
	settings AnimationSettings

	state       AnimationState
	pausedFrom  AnimationState
	repeatsLeft int
	playingBack bool // a looping StopReverse animation returning to its start

	events emitter[AnimationEventType, AnimationEvent]

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

func newAnimationController(s *Stage, a *Animation, settings AnimationSettings) *AnimationController {
	return &AnimationController{
		stage:    s,
		anim:     a,
		settings: settings,
		done:     make(chan struct{}),
	}
}

// Animation returns the driven animation.
func (c *AnimationController) Animation() *Animation { return c.anim }

// State returns the lifecycle state.
func (c *AnimationController) State() AnimationState { return c.state }

// On subscribes fn to a controller event.
func (c *AnimationController) On(typ AnimationEventType, fn func(AnimationEvent)) Subscription {
	return c.events.on(typ, fn, false)
}

// Once subscribes fn to the next occurrence of a controller event.
func (c *AnimationController) Once(typ AnimationEventType, fn func(AnimationEvent)) Subscription {
	return c.events.on(typ, fn, true)
}

// Off removes a listener.
func (c *AnimationController) Off(sub Subscription) bool { return c.events.off(sub) }

// Start begins or resumes the animation. A finished or stopped animation
// replays from its original starting values.
func (c *AnimationController) Start() *AnimationController {
	switch c.state {
	case AnimationRunning, AnimationStopping:
		return c
	case AnimationPaused:
		c.state = c.pausedFrom
		c.stage.animations.add(c)
		c.stage.requestRender()
		return c
	case AnimationIdle:
		if c.anim.node.destroyed {
			return c
		}
		c.anim.capture()
	case AnimationStopped, AnimationFinished:
		if c.anim.node.destroyed {
			return c
		}
		c.anim.rewind(c.anim.delay)
		c.anim.startEmitted = false
		c.rearm()
	}
	c.repeatsLeft = c.settings.Repeat
	c.playingBack = false
	c.state = AnimationRunning
	c.stage.animations.add(c)
	c.stage.requestRender()
	return c
}

// Pause holds the animation at its current values.
func (c *AnimationController) Pause() {
	if c.state != AnimationRunning && c.state != AnimationStopping {
		return
	}
	c.pausedFrom = c.state
	c.state = AnimationPaused
}

// Stop halts the animation according to its stop method. Stopping an
// animation that is not playing is a no-op.
func (c *AnimationController) Stop() {
	switch c.state {
	case AnimationRunning, AnimationPaused:
	default:
		return
	}
	switch c.settings.StopMethod {
	case StopReverse:
		c.anim.reverse()
		c.state = AnimationStopping
		c.stage.animations.add(c)
		c.stage.requestRender()
	case StopReset:
		c.anim.restore()
		c.end(AnimationStopped)
	default:
		c.end(AnimationStopped)
	}
}

// Restore writes the starting values back onto the node and stops.
func (c *AnimationController) Restore() {
	if c.state == AnimationIdle {
		return
	}
	c.anim.restore()
	if c.state != AnimationStopped && c.state != AnimationFinished {
		c.end(AnimationStopped)
	}
}

// WaitUntilStopped blocks until the animation finishes or is stopped,
// whichever happens first, or ctx is done. It may be called from any
// goroutine.
func (c *AnimationController) WaitUntilStopped(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current play finishes or stops.
func (c *AnimationController) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *AnimationController) resolve() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *AnimationController) rearm() {
	c.mu.Lock()
	if c.closed {
		c.done = make(chan struct{})
		c.closed = false
	}
	c.mu.Unlock()
}

// end moves to a terminal state, notifies listeners and releases waiters.
func (c *AnimationController) end(state AnimationState) {
	c.state = state
	typ := AnimationEventStopped
	if state == AnimationFinished {
		typ = AnimationEventFinished
	}
	c.events.emit(typ, AnimationEvent{Type: typ, Controller: c})
	c.resolve()
}

// update advances the animation by dt milliseconds.
func (c *AnimationController) update(dt float64) {
	stopping := c.state == AnimationStopping
	r := c.anim.step(dt, c.anim.loop && !stopping)
	if r.started && !stopping {
		c.events.emit(AnimationEventStart, AnimationEvent{Type: AnimationEventStart, Controller: c})
	}
	if !r.finished {
		return
	}
	switch {
	case stopping:
		c.end(AnimationStopped)
	case c.anim.loop && c.anim.duration > 0:
		c.nextLoop()
	case c.repeatsLeft != 0:
		if c.repeatsLeft > 0 {
			c.repeatsLeft--
		}
		c.anim.rewind(float64(c.settings.RepeatDelay) / float64(time.Millisecond))
	default:
		c.end(AnimationFinished)
	}
}

// nextLoop applies the stop method at the end of a looping play. StopReset
// jumps back to the starting values and plays again; StopReverse plays back
// to the starting values, then forward again. Only forward plays report
// finished.
func (c *AnimationController) nextLoop() {
	if c.playingBack {
		c.playingBack = false
		c.anim.rewind(0)
		return
	}
	c.events.emit(AnimationEventFinished, AnimationEvent{Type: AnimationEventFinished, Controller: c})
	c.resolve()
	if c.state != AnimationRunning {
		// A finished listener stopped or paused the animation.
		return
	}
	switch c.settings.StopMethod {
	case StopReverse:
		c.anim.reverse()
		c.playingBack = true
	default:
		c.anim.restore()
		c.anim.rewind(0)
	}
}

// animationManager holds the controllers advanced each frame.
type animationManager struct {
	active  []*AnimationController
	index   map[*AnimationController]bool
	scratch []*AnimationController
}

func (m *animationManager) add(c *AnimationController) {
	if m.index == nil {
		m.index = make(map[*AnimationController]bool)
	}
	if m.index[c] {
		return
	}
	m.index[c] = true
	m.active = append(m.active, c)
}

// Len returns the number of controllers in the active list.
func (m *animationManager) Len() int { return len(m.active) }

// update advances every playing controller and drops the rest. It reports
// whether any animation advanced.
func (m *animationManager) update(dt float64) bool {
	if len(m.active) == 0 {
		return false
	}
	snap := append(m.scratch[:0], m.active...)
	advanced := false
	for _, c := range snap {
		if c.state == AnimationRunning || c.state == AnimationStopping {
			c.update(dt)
			advanced = true
		}
	}
	keep := m.active[:0]
	for _, c := range m.active {
		if c.state == AnimationRunning || c.state == AnimationStopping {
			keep = append(keep, c)
		} else {
			delete(m.index, c)
		}
	}
	for i := len(keep); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = keep
	for i := range snap {
		snap[i] = nil
	}
	m.scratch = snap[:0]
	return advanced
}

// stopNode ends every animation of n without applying stop methods.
func (m *animationManager) stopNode(n *Node) {
	for _, c := range m.active {
		if c.anim.node == n && c.state != AnimationStopped && c.state != AnimationFinished {
			c.end(AnimationStopped)
		}
	}
}

// AnimationSequence plays controllers one after another. A controller that
// stops early ends the sequence.
type AnimationSequence struct {
	steps   []*AnimationController
	current int
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
}

// NewAnimationSequence chains controllers.
func NewAnimationSequence(steps ...*AnimationController) *AnimationSequence {
	return &AnimationSequence{steps: steps, current: -1, done: make(chan struct{})}
}

// Start plays the first step.
func (q *AnimationSequence) Start() {
	if q.current >= 0 || len(q.steps) == 0 {
		if len(q.steps) == 0 {
			q.finish()
		}
		return
	}
	for i, c := range q.steps {
		i := i
		c.On(AnimationEventFinished, func(AnimationEvent) { q.advance(i) })
		c.On(AnimationEventStopped, func(AnimationEvent) {
			if q.current == i {
				q.finish()
			}
		})
	}
	q.current = 0
	q.steps[0].Start()
}

func (q *AnimationSequence) advance(i int) {
	if q.current != i {
		return
	}
	q.current = i + 1
	if c := q.steps[i]; c.state == AnimationRunning {
		// Looping steps keep running after finished.
		c.Stop()
	}
	if q.current >= len(q.steps) {
		q.finish()
		return
	}
	q.steps[q.current].Start()
}

// Stop stops the playing step and ends the sequence.
func (q *AnimationSequence) Stop() {
	if q.current >= 0 && q.current < len(q.steps) {
		q.steps[q.current].Stop()
	}
	q.finish()
}

// Current returns the index of the playing step, or -1.
func (q *AnimationSequence) Current() int {
	if q.current >= len(q.steps) {
		return -1
	}
	return q.current
}

func (q *AnimationSequence) finish() {
	q.current = len(q.steps)
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}

// WaitUntilStopped blocks until the sequence ends or ctx is done.
func (q *AnimationSequence) WaitUntilStopped(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
