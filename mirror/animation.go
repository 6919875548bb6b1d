package mirror

import (
	"context"
	"sync"

	"github.com/phanxgames/lantern"
)

// AnimationEvent is an animation notification delivered on the control
// side.
type AnimationEvent struct {
	Type      lantern.AnimationEventType
	Animation *Animation
	// State is the worker-side state when the event fired.
	State lantern.AnimationState
}

// Animation is a control-side handle to an animation controller on the
// worker. Commands are queued; State reflects the last event received.
type Animation struct {
	c    *Client
	id   ID
	node *Node

	mu        sync.Mutex
	state     lantern.AnimationState
	done      chan struct{}
	closed    bool
	listeners []animListener
	nextSub   Subscription
}

type animListener struct {
	id   Subscription
	typ  lantern.AnimationEventType
	fn   func(AnimationEvent)
	once bool
}

// Animate creates an animation of n on the worker. It does not start it.
func (n *Node) Animate(props lantern.AnimationProps, settings lantern.AnimationSettings) (*Animation, error) {
	if n.destroyed.Load() {
		return nil, ErrDestroyed
	}
	a := &Animation{c: n.c, id: n.c.newID(), node: n, done: make(chan struct{})}
	n.c.mu.Lock()
	n.c.anims[a.id] = a
	n.c.mu.Unlock()
	err := n.c.send(Message{
		Kind:              MsgAnimate,
		Target:            n.id,
		Animation:         a.id,
		AnimationProps:    props,
		AnimationSettings: settings,
	})
	if err != nil {
		n.c.mu.Lock()
		delete(n.c.anims, a.id)
		n.c.mu.Unlock()
		return nil, err
	}
	return a, nil
}

// ID returns the handle ID.
func (a *Animation) ID() ID { return a.id }

// Node returns the animated node.
func (a *Animation) Node() *Node { return a.node }

// State returns the state reported by the last event.
func (a *Animation) State() lantern.AnimationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Animation) command(cmd AnimationCommand) error {
	return a.c.send(Message{Kind: MsgAnimationCommand, Target: a.id, Command: cmd})
}

// Start queues a start. Waiters of a previous play are released first.
func (a *Animation) Start() error {
	a.mu.Lock()
	if a.closed {
		a.done = make(chan struct{})
		a.closed = false
	}
	a.mu.Unlock()
	return a.command(AnimStart)
}

// Pause queues a pause.
func (a *Animation) Pause() error { return a.command(AnimPause) }

// Stop queues a stop using the animation's stop method.
func (a *Animation) Stop() error { return a.command(AnimStop) }

// Restore queues a restore of the starting values.
func (a *Animation) Restore() error { return a.command(AnimRestore) }

// On registers fn for an animation event.
func (a *Animation) On(typ lantern.AnimationEventType, fn func(AnimationEvent)) Subscription {
	return a.listen(typ, fn, false)
}

// Once registers fn for the next event of typ only.
func (a *Animation) Once(typ lantern.AnimationEventType, fn func(AnimationEvent)) Subscription {
	return a.listen(typ, fn, true)
}

func (a *Animation) listen(typ lantern.AnimationEventType, fn func(AnimationEvent), once bool) Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSub++
	a.listeners = append(a.listeners, animListener{id: a.nextSub, typ: typ, fn: fn, once: once})
	return a.nextSub
}

// Off removes a listener.
func (a *Animation) Off(sub Subscription) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, l := range a.listeners {
		if l.id == sub {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// WaitUntilStopped blocks until the current play finishes or stops, or ctx
// is done.
func (a *Animation) WaitUntilStopped(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-a.c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply records a worker event and notifies listeners.
func (a *Animation) apply(ev Event) {
	a.mu.Lock()
	a.state = ev.AnimationState
	var fns []func(AnimationEvent)
	kept := a.listeners[:0]
	for _, l := range a.listeners {
		if l.typ == ev.AnimationEvent {
			fns = append(fns, l.fn)
			if l.once {
				continue
			}
		}
		kept = append(kept, l)
	}
	a.listeners = kept
	a.mu.Unlock()

	ae := AnimationEvent{Type: ev.AnimationEvent, Animation: a, State: ev.AnimationState}
	for _, fn := range fns {
		fn(ae)
	}

	if ev.AnimationEvent == lantern.AnimationEventFinished || ev.AnimationEvent == lantern.AnimationEventStopped {
		a.mu.Lock()
		if !a.closed {
			a.closed = true
			close(a.done)
		}
		a.mu.Unlock()
	}
}
