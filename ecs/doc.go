// Package ecs provides ECS adapters for lantern's node events.
//
// The primary adapter is [NewDonburiSink], which bridges node events
// (texture loaded/failed/freed, bounds transitions, text layout) into a
// [Donburi] world as typed events. Subscribe to [NodeEventType] in your ECS
// systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	stage.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
