package lantern

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewStageErrors(t *testing.T) {
	if _, err := NewStage(testSettings(), nil); err == nil {
		t.Error("nil renderer should fail")
	}
	bad := testSettings()
	bad.AppWidth = -1
	if _, err := NewStage(bad, newRecordingRenderer()); err == nil {
		t.Error("invalid settings should fail")
	}
}

func TestNewStageRoot(t *testing.T) {
	ts := newTestStage(t)
	root := ts.Root()
	if root.Width() != 1280 || root.Height() != 720 {
		t.Errorf("root size = %vx%v", root.Width(), root.Height())
	}
	if ts.NumNodes() != 1 {
		t.Errorf("NumNodes = %d, want 1", ts.NumNodes())
	}
	if n, ok := ts.Node(root.ID()); !ok || n != root {
		t.Error("root should be reachable by ID")
	}
	if ts.Viewport() != (Rect{0, 0, 1280, 720}) {
		t.Errorf("Viewport = %v", ts.Viewport())
	}
}

func TestFrameTickAndIdle(t *testing.T) {
	ts := newTestStage(t)
	var deltas []float64
	idles := 0
	ts.On(StageEventFrameTick, func(ev StageEvent) { deltas = append(deltas, ev.Delta) })
	ts.On(StageEventIdle, func(StageEvent) { idles++ })

	if !ts.step(0) {
		t.Fatal("the first frame should render")
	}
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	if !ts.step(16 * time.Millisecond) {
		t.Fatal("a new node should render")
	}
	if len(deltas) != 2 || deltas[0] != 0 || deltas[1] != 16 {
		t.Errorf("deltas = %v, want [0 16]", deltas)
	}

	ts.step(16 * time.Millisecond)
	ts.step(16 * time.Millisecond)
	if !ts.Idle() || idles != 1 {
		t.Errorf("idle = %v, idle events = %d, want one per idle period", ts.Idle(), idles)
	}

	n.SetX(5)
	if !ts.step(16*time.Millisecond) || ts.Idle() {
		t.Error("a change should leave idle")
	}
	ts.step(16 * time.Millisecond)
	if idles != 2 {
		t.Errorf("idle events = %d, want 2", idles)
	}
	if ts.Frames() != 6 {
		t.Errorf("Frames = %d, want 6", ts.Frames())
	}
}

func TestFPSUpdate(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	var reports []float64
	ts.On(StageEventFPSUpdate, func(ev StageEvent) { reports = append(reports, ev.FPS) })

	ts.step(0)
	for i := 1; i < 10; i++ {
		n.SetX(float64(i))
		ts.step(100 * time.Millisecond)
	}
	ts.step(100 * time.Millisecond) // idle, closes the interval
	if len(reports) != 1 || !approx(reports[0], 10) {
		t.Fatalf("fps reports = %v, want [10]", reports)
	}
	if !approx(ts.FPS(), 10) {
		t.Errorf("FPS = %v", ts.FPS())
	}
}

func TestBeforeFrame(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	ts.step(0)
	ts.step(16 * time.Millisecond)

	var calls []time.Time
	ts.SetBeforeFrame(func(now time.Time) {
		calls = append(calls, now)
		n.SetX(50)
	})
	if !ts.step(16 * time.Millisecond) {
		t.Error("changes made before the frame should render in it")
	}
	if len(calls) != 1 || !calls[0].Equal(ts.now) {
		t.Errorf("calls = %v", calls)
	}
	if q := ts.r.lastScreen(t).quads(); len(q) != 1 || q[0].Transform[4] != 50 {
		t.Errorf("quads = %+v", q)
	}

	ts.SetBeforeFrame(nil)
	ts.step(16 * time.Millisecond)
	if len(calls) != 1 {
		t.Error("SetBeforeFrame(nil) should remove the hook")
	}
}

func TestRunDelaysBetweenFrames(t *testing.T) {
	ts := newTestStage(t)
	ts.SetTargetFPS(50)
	refresh := make(chan time.Time)
	errc := make(chan error, 1)
	go func() { errc <- ts.Run(context.Background(), refresh) }()

	start := time.Now()
	for _, ms := range []int{0, 1, 2} {
		refresh <- testEpoch.Add(time.Duration(ms) * time.Millisecond)
	}
	// The third tick is only taken after two frame intervals.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("three ticks accepted after %v, want at least 40ms", elapsed)
	}
	close(refresh)
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run = %v, want nil when refresh closes", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if ts.Frames() != 3 {
		t.Errorf("Frames = %d, want 3", ts.Frames())
	}
}

func TestRunUncappedTakesEveryTick(t *testing.T) {
	ts := newTestStage(t)
	refresh := make(chan time.Time, 4)
	for ms := 0; ms < 4; ms++ {
		refresh <- testEpoch.Add(time.Duration(ms) * time.Millisecond)
	}
	close(refresh)
	if err := ts.Run(context.Background(), refresh); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if ts.Frames() != 4 {
		t.Errorf("Frames = %d, want 4", ts.Frames())
	}
}

func TestRunContextAndClose(t *testing.T) {
	ts := newTestStage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ts.Run(ctx, make(chan time.Time)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with canceled context = %v", err)
	}

	ts.Close()
	if err := ts.Run(context.Background(), nil); !errors.Is(err, ErrStageStopped) {
		t.Errorf("Run after Close = %v", err)
	}
}

func TestSetTargetFPS(t *testing.T) {
	ts := newTestStage(t)
	ts.SetTargetFPS(-5)
	if ts.TargetFPS() != 0 {
		t.Errorf("negative target should clamp to 0, got %d", ts.TargetFPS())
	}
	ts.SetTargetFPS(50)
	if ts.frameInterval() != 20*time.Millisecond {
		t.Errorf("frameInterval = %v", ts.frameInterval())
	}
	if tickInterval(0) != time.Second/60 {
		t.Error("uncapped ticker should run at 60Hz")
	}
}

func TestCloseFreesEverything(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: 0xff0000ff})
	n := ts.texturedBox(tex)
	ts.step(0)

	ts.Close()
	ts.Close()
	if !n.Destroyed() || !ts.Root().Destroyed() {
		t.Error("Close should destroy the tree")
	}
	if len(ts.r.freed) != 1 || ts.r.freed[0] != tex.ID() {
		t.Errorf("freed = %v", ts.r.freed)
	}
	if ts.Frame(ts.now.Add(time.Second)) {
		t.Error("a closed stage should not render")
	}
	mustPanic(t, "closed stage", func() { ts.box(nil, 0, 0, 1, 1, ColorWhite) })
}

func TestWaitWithSyncLoads(t *testing.T) {
	ts := newTestStage(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.Wait(ctx); err != nil {
		t.Errorf("Wait = %v", err)
	}
}

func TestDebugMode(t *testing.T) {
	s := testSettings()
	s.Debug = true
	ts := newTestStageWith(t, s)
	if !ts.DebugMode() {
		t.Fatal("Settings.Debug should enable debug mode")
	}
	ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	if !ts.step(0) {
		t.Error("debug mode should not change rendering")
	}
	ts.SetDebugMode(false)
	if ts.DebugMode() {
		t.Error("SetDebugMode(false)")
	}
}

type panickingSink struct{ calls *int }

func (s panickingSink) EmitNodeEvent(NodeEvent) {
	*s.calls++
	panic("sink boom")
}

func TestListenerPanicsStayInsideFrame(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: 0xff0000ff})
	n := ts.texturedBox(tex)
	n.On(EventLoaded, func(NodeEvent) { panic("loaded listener boom") })
	loaded := 0
	n.On(EventLoaded, func(NodeEvent) { loaded++ })
	ticks := 0
	ts.On(StageEventFrameTick, func(StageEvent) { panic("tick listener boom") })
	ts.On(StageEventFrameTick, func(StageEvent) { ticks++ })
	sinkCalls := 0
	ts.SetEventSink(panickingSink{calls: &sinkCalls})
	ts.SetBeforeFrame(func(time.Time) { panic("before frame boom") })

	var rendered bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Frame panicked: %v", r)
			}
		}()
		rendered = ts.step(16 * time.Millisecond)
	}()
	if !rendered {
		t.Error("the frame should still render")
	}
	if loaded != 1 || ticks != 1 || sinkCalls == 0 {
		t.Errorf("loaded = %d, ticks = %d, sink calls = %d, want later listeners still called", loaded, ticks, sinkCalls)
	}
	if q := ts.r.lastScreen(t).quads(); len(q) != 1 || q[0].NodeID != n.ID() {
		t.Errorf("quads = %+v", q)
	}
}

func TestFrameRecoversRendererPanic(t *testing.T) {
	r := &panickingRenderer{recordingRenderer: newRecordingRenderer(), panics: true}
	s, err := NewStage(testSettings(), r, WithSyncTextureLoads(), WithStartTime(testEpoch))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	p := DefaultNodeProps()
	p.Parent = s.Root()
	p.Width, p.Height = 10, 10
	p.Color = ColorWhite
	s.CreateNode(p)

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Frame panicked: %v", r)
			}
		}()
		if s.Frame(testEpoch) {
			t.Error("a frame whose render failed should report false")
		}
	}()

	r.panics = false
	if !s.Frame(testEpoch.Add(16 * time.Millisecond)) {
		t.Error("the next frame should render again")
	}
	if q := r.lastScreen(t).quads(); len(q) != 1 {
		t.Errorf("quads = %+v", q)
	}
}

type panickingRenderer struct {
	*recordingRenderer
	panics bool
}

func (r *panickingRenderer) DrawBatch(b *Batch) {
	if r.panics {
		panic("draw failed")
	}
	r.recordingRenderer.DrawBatch(b)
}
