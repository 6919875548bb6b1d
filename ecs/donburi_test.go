package ecs

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/phanxgames/lantern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

type nopRenderer struct{}

func (nopRenderer) UploadTexture(*lantern.Texture, image.Image) error   { return nil }
func (nopRenderer) FreeTexture(*lantern.Texture)                        {}
func (nopRenderer) CreateRenderTarget(*lantern.Texture, int, int) error { return nil }
func (nopRenderer) PrepareShader(*lantern.ShaderType) error             { return nil }
func (nopRenderer) BeginFrame(*lantern.Texture, lantern.Color)          {}
func (nopRenderer) DrawBatch(*lantern.Batch)                            {}
func (nopRenderer) EndFrame()                                           {}

func TestNewDonburiSink(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)
	require.NotNil(t, sink)
}

func TestDonburiSink_EmitNodeEvent(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var received []lantern.NodeEvent
	NodeEventType.Subscribe(world, func(w donburi.World, e lantern.NodeEvent) {
		received = append(received, e)
	})

	sink.EmitNodeEvent(lantern.NodeEvent{
		Type:       lantern.EventLoaded,
		NodeID:     42,
		Dimensions: lantern.Dimensions{Width: 64, Height: 32},
	})
	errBoom := errors.New("boom")
	sink.EmitNodeEvent(lantern.NodeEvent{Type: lantern.EventFailed, NodeID: 7, Err: errBoom})

	// Events are queued until processed.
	assert.Empty(t, received)
	NodeEventType.ProcessEvents(world)

	require.Len(t, received, 2)
	assert.Equal(t, lantern.EventLoaded, received[0].Type)
	assert.Equal(t, lantern.NodeID(42), received[0].NodeID)
	assert.Equal(t, 64.0, received[0].Dimensions.Width)
	assert.ErrorIs(t, received[1].Err, errBoom)
}

func TestDonburiSink_Filter(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world, lantern.EventInViewport)

	var got []lantern.NodeEventType
	NodeEventType.Subscribe(world, func(w donburi.World, e lantern.NodeEvent) {
		got = append(got, e.Type)
	})
	sink.EmitNodeEvent(lantern.NodeEvent{Type: lantern.EventLoaded})
	sink.EmitNodeEvent(lantern.NodeEvent{Type: lantern.EventInViewport})
	events.ProcessAllEvents(world)

	assert.Equal(t, []lantern.NodeEventType{lantern.EventInViewport}, got)
}

func TestDonburiSink_MultipleSubscribers(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var count1, count2 int
	NodeEventType.Subscribe(world, func(w donburi.World, e lantern.NodeEvent) { count1++ })
	NodeEventType.Subscribe(world, func(w donburi.World, e lantern.NodeEvent) { count2++ })

	sink.EmitNodeEvent(lantern.NodeEvent{Type: lantern.EventFreed})
	events.ProcessAllEvents(world)

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestDonburiSink_StageBoundsEvents(t *testing.T) {
	world := donburi.NewWorld()
	stage, err := lantern.NewStage(lantern.DefaultSettings(), nopRenderer{})
	require.NoError(t, err)
	defer stage.Close()
	stage.SetEventSink(NewDonburiSink(world, lantern.EventInViewport, lantern.EventOutOfBounds))

	p := lantern.DefaultNodeProps()
	p.Parent = stage.Root()
	p.X, p.Y = 10, 10
	p.Width, p.Height = 50, 50
	p.Color = lantern.ColorWhite
	n := stage.CreateNode(p)

	var seen []lantern.NodeEvent
	NodeEventType.Subscribe(world, func(w donburi.World, e lantern.NodeEvent) {
		if e.NodeID == n.ID() {
			seen = append(seen, e)
		}
	})

	now := time.Now()
	stage.Frame(now)
	n.SetX(-5000)
	stage.Frame(now.Add(16 * time.Millisecond))
	NodeEventType.ProcessEvents(world)

	require.Len(t, seen, 2)
	assert.Equal(t, lantern.EventInViewport, seen[0].Type)
	assert.Equal(t, lantern.EventOutOfBounds, seen[1].Type)
	assert.Equal(t, lantern.BoundsInViewport, seen[1].Previous)
}
