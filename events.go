package lantern

import "fmt"

// Subscription identifies a registered listener. Pass it to Off to remove
// the listener.
type Subscription uint64

type listener[K comparable, E any] struct {
	id      Subscription
	typ     K
	fn      func(E)
	any     bool
	once    bool
	removed bool
}

// emitter is a typed observer list. Removal is synchronous: a listener
// removed while an event is being dispatched is not called for the rest of
// that dispatch.
type emitter[K comparable, E any] struct {
	next      Subscription
	listeners []*listener[K, E]
	scratch   []*listener[K, E]
}

func (e *emitter[K, E]) on(typ K, fn func(E), once bool) Subscription {
	e.next++
	e.listeners = append(e.listeners, &listener[K, E]{id: e.next, typ: typ, fn: fn, once: once})
	return e.next
}

// onAny registers fn for every event type.
func (e *emitter[K, E]) onAny(fn func(E)) Subscription {
	e.next++
	e.listeners = append(e.listeners, &listener[K, E]{id: e.next, fn: fn, any: true})
	return e.next
}

func (e *emitter[K, E]) off(id Subscription) bool {
	for i, l := range e.listeners {
		if l.id == id {
			l.removed = true
			copy(e.listeners[i:], e.listeners[i+1:])
			e.listeners[len(e.listeners)-1] = nil
			e.listeners = e.listeners[:len(e.listeners)-1]
			return true
		}
	}
	return false
}

func (e *emitter[K, E]) has(typ K) bool {
	for _, l := range e.listeners {
		if l.any || l.typ == typ {
			return true
		}
	}
	return false
}

func (e *emitter[K, E]) emit(typ K, ev E) {
	if len(e.listeners) == 0 {
		return
	}
	// Snapshot so listeners may subscribe or unsubscribe while dispatching.
	snap := append(e.scratch[:0], e.listeners...)
	for _, l := range snap {
		if l.removed || (!l.any && l.typ != typ) {
			continue
		}
		if l.once {
			e.off(l.id)
		}
		callListener(typ, l.fn, ev)
	}
	for i := range snap {
		snap[i] = nil
	}
	e.scratch = snap[:0]
}

// callListener runs fn. A panic in fn is logged and does not reach the
// emitter's caller.
func callListener[K comparable, E any](typ K, fn func(E), ev E) {
	defer recoverListener(typ)
	fn(ev)
}

func recoverListener(event any) {
	if r := recover(); r != nil {
		Logger().Error("lantern: event listener panicked", "event", fmt.Sprint(event), "panic", fmt.Sprint(r))
	}
}

func (e *emitter[K, E]) clear() {
	for _, l := range e.listeners {
		l.removed = true
	}
	e.listeners = nil
	e.scratch = nil
}

// NodeEventType identifies a node notification.
type NodeEventType uint8

const (
	EventLoaded      NodeEventType = iota // the node's texture finished loading
	EventFailed                           // the node's texture failed to load
	EventFreed                            // the node's texture was freed
	EventOutOfBounds                      // bounds state became outOfBounds
	EventInBounds                         // bounds state became inBounds
	EventInViewport                       // bounds state became inViewport
	EventTextLoaded                       // text layout completed
	EventTextFailed                       // text layout failed
)

func (t NodeEventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventFailed:
		return "failed"
	case EventFreed:
		return "freed"
	case EventOutOfBounds:
		return "outOfBounds"
	case EventInBounds:
		return "inBounds"
	case EventInViewport:
		return "inViewport"
	case EventTextLoaded:
		return "textLoaded"
	case EventTextFailed:
		return "textFailed"
	default:
		return "unknown"
	}
}

// NodeEvent carries a node notification.
type NodeEvent struct {
	Type       NodeEventType
	Node       *Node
	NodeID     NodeID
	Dimensions Dimensions  // loaded, textLoaded
	Previous   BoundsState // bounds transitions
	Current    BoundsState // bounds transitions
	Err        error       // failed, textFailed
}

// EventSink receives every node event emitted on a stage, after the node's
// own listeners. Used by the ECS bridge and the mirror worker.
type EventSink interface {
	EmitNodeEvent(ev NodeEvent)
}

// StageEventType identifies a stage-level notification.
type StageEventType uint8

const (
	StageEventIdle                  StageEventType = iota // stage went idle (once per idle period)
	StageEventFrameTick                                   // a frame was processed
	StageEventFPSUpdate                                   // periodic FPS report
	StageEventCriticalCleanup                             // texture memory crossed the critical threshold
	StageEventCriticalCleanupFailed                       // cleanup could not get below the critical threshold
)

func (t StageEventType) String() string {
	switch t {
	case StageEventIdle:
		return "idle"
	case StageEventFrameTick:
		return "frameTick"
	case StageEventFPSUpdate:
		return "fpsUpdate"
	case StageEventCriticalCleanup:
		return "criticalCleanup"
	case StageEventCriticalCleanupFailed:
		return "criticalCleanupFailed"
	default:
		return "unknown"
	}
}

// StageEvent carries a stage notification.
type StageEvent struct {
	Type     StageEventType
	FPS      float64 // fpsUpdate
	Delta    float64 // frameTick, milliseconds
	MemUsed  int64   // criticalCleanup*, bytes
	Critical int64   // criticalCleanup*, bytes
}
