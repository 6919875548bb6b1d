package ecs

import (
	"github.com/phanxgames/lantern"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// NodeEventType is the Donburi event type for lantern node events.
// Subscribe to this in your ECS systems to receive texture, bounds and text
// events.
var NodeEventType = events.NewEventType[lantern.NodeEvent]()

type donburiSink struct {
	world donburi.World
	// filter, when non-nil, limits which event types are published.
	filter map[lantern.NodeEventType]bool
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Node
// events are published to NodeEventType and can be consumed with
// events.Subscribe and ProcessEvents. When types are given, only those
// event types are published.
func NewDonburiSink(world donburi.World, types ...lantern.NodeEventType) lantern.EventSink {
	s := &donburiSink{world: world}
	if len(types) > 0 {
		s.filter = make(map[lantern.NodeEventType]bool, len(types))
		for _, t := range types {
			s.filter[t] = true
		}
	}
	return s
}

func (s *donburiSink) EmitNodeEvent(ev lantern.NodeEvent) {
	if s.filter != nil && !s.filter[ev.Type] {
		return
	}
	NodeEventType.Publish(s.world, ev)
}
