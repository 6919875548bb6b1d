package lantern

import (
	"math"
	"testing"
	"time"
)

// --- Construction ---

func TestCreateNodeDefaults(t *testing.T) {
	ts := newTestStage(t)
	n := ts.CreateNode(DefaultNodeProps())
	if n.ID() == 0 || n.ID() == ts.Root().ID() {
		t.Errorf("ID = %d, want a fresh non-zero ID", n.ID())
	}
	if n.Kind() != NodeKindPlain {
		t.Errorf("Kind = %v, want plain", n.Kind())
	}
	if n.ScaleX() != 1 || n.ScaleY() != 1 {
		t.Errorf("Scale = (%v, %v), want (1, 1)", n.ScaleX(), n.ScaleY())
	}
	if n.Prop(PropAlpha) != 1 || n.Prop(PropPivotX) != 0.5 {
		t.Errorf("Alpha = %v, PivotX = %v", n.Prop(PropAlpha), n.Prop(PropPivotX))
	}
	if n.Parent() != nil {
		t.Error("node without Parent prop should be detached")
	}
	if n.UpdateType() != UpdateAll {
		t.Errorf("UpdateType = %b, want UpdateAll", n.UpdateType())
	}
	if got, ok := ts.Node(n.ID()); !ok || got != n {
		t.Error("Stage.Node should find the new node")
	}
}

func TestCreateNodeSanitizesProps(t *testing.T) {
	ts := newTestStage(t)
	p := DefaultNodeProps()
	p.X = math.NaN()
	p.Width = -10
	p.Height = math.Inf(1)
	p.Alpha = 3
	p.ScaleX = math.Inf(-1)
	n := ts.CreateNode(p)
	if n.X() != 0 || n.Width() != 0 || n.Height() != 0 {
		t.Errorf("X, W, H = %v, %v, %v; want 0, 0, 0", n.X(), n.Width(), n.Height())
	}
	if n.Prop(PropAlpha) != 1 {
		t.Errorf("Alpha = %v, want clamped to 1", n.Prop(PropAlpha))
	}
	if n.ScaleX() != 1 {
		t.Errorf("ScaleX = %v, want fallback 1", n.ScaleX())
	}
}

func TestCornerColorsOverrideColor(t *testing.T) {
	ts := newTestStage(t)
	p := DefaultNodeProps()
	p.Color = 0xff0000ff
	p.ColorBr = 0x0000ffff
	n := ts.CreateNode(p)
	want := [4]Color{0xff0000ff, 0xff0000ff, 0xff0000ff, 0x0000ffff}
	if n.Colors() != want {
		t.Errorf("Colors = %x, want %x", n.Colors(), want)
	}
	n.SetColorProp(ColorPropTop, 0x00ff00ff)
	if n.ColorProp(ColorPropTl) != 0x00ff00ff || n.ColorProp(ColorPropTr) != 0x00ff00ff {
		t.Error("SetColorProp(Top) should set both top corners")
	}
	if n.ColorProp(ColorPropBl) != 0xff0000ff {
		t.Error("SetColorProp(Top) should not touch the bottom corners")
	}
}

func TestSetPropUnknownPanics(t *testing.T) {
	ts := newTestStage(t)
	n := ts.CreateNode(DefaultNodeProps())
	mustPanic(t, "unknown prop", func() { n.SetProp(Prop(200), 1) })
}

// --- Tree manipulation ---

func TestAddChildReparents(t *testing.T) {
	ts := newTestStage(t)
	a := ts.CreateNode(DefaultNodeProps())
	b := ts.CreateNode(DefaultNodeProps())
	c := ts.CreateNode(DefaultNodeProps())
	a.AddChild(c)
	b.AddChild(c)
	if c.Parent() != b {
		t.Error("child should move to the new parent")
	}
	if a.NumChildren() != 0 || b.NumChildren() != 1 {
		t.Errorf("children = %d, %d; want 0, 1", a.NumChildren(), b.NumChildren())
	}
}

func TestAddChildAtIndex(t *testing.T) {
	ts := newTestStage(t)
	p := ts.CreateNode(DefaultNodeProps())
	a := ts.CreateNode(DefaultNodeProps())
	b := ts.CreateNode(DefaultNodeProps())
	c := ts.CreateNode(DefaultNodeProps())
	p.AddChild(a)
	p.AddChild(b)
	p.AddChildAt(c, 1)
	got := p.Children()
	if len(got) != 3 || got[0] != a || got[1] != c || got[2] != b {
		t.Errorf("children order wrong: %v", got)
	}
	p.SetChildIndex(a, 2)
	if p.ChildAt(2) != a || p.ChildAt(0) != c {
		t.Errorf("SetChildIndex order wrong: %v", p.Children())
	}
	mustPanic(t, "out of range", func() { p.AddChildAt(ts.CreateNode(DefaultNodeProps()), 9) })
}

func TestAddChildPanics(t *testing.T) {
	ts := newTestStage(t)
	other := newTestStage(t)
	a := ts.CreateNode(DefaultNodeProps())
	b := ts.CreateNode(DefaultNodeProps())
	a.AddChild(b)

	mustPanic(t, "nil child", func() { a.AddChild(nil) })
	mustPanic(t, "cycle", func() { b.AddChild(a) })
	mustPanic(t, "cycle", func() { a.AddChild(a) })
	mustPanic(t, "another stage", func() { a.AddChild(other.CreateNode(DefaultNodeProps())) })
	mustPanic(t, "not this node", func() { b.RemoveChild(a) })
}

func TestSetParentNilDetaches(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	n.SetParent(nil)
	if n.Parent() != nil || ts.Root().NumChildren() != 0 {
		t.Error("SetParent(nil) should detach")
	}
	n.RemoveFromParent() // no-op
}

func TestDestroyIsRecursive(t *testing.T) {
	ts := newTestStage(t)
	parent := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	child := ts.box(parent, 0, 0, 10, 10, ColorWhite)
	before := ts.NumNodes()

	parent.Destroy()
	if !parent.Destroyed() || !child.Destroyed() {
		t.Fatal("Destroy should destroy the whole subtree")
	}
	if ts.NumNodes() != before-2 {
		t.Errorf("NumNodes = %d, want %d", ts.NumNodes(), before-2)
	}
	if _, ok := ts.Node(child.ID()); ok {
		t.Error("destroyed node should not be found")
	}
	if ts.Root().NumChildren() != 0 {
		t.Error("destroyed node should be removed from its parent")
	}
	parent.Destroy() // second call is a no-op
	mustPanic(t, "destroyed node", func() { child.SetX(5) })
	mustPanic(t, "destroyed node", func() { ts.Root().AddChild(child) })
}

func TestDestroyReleasesListeners(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	calls := 0
	n.On(EventInViewport, func(NodeEvent) { calls++ })
	n.Destroy()
	ts.step(0)
	if calls != 0 {
		t.Errorf("listener called %d times after destroy", calls)
	}
}

// --- Dirty propagation ---

func TestSetUpdateTypeFlagsAncestors(t *testing.T) {
	ts := newTestStage(t)
	parent := ts.box(ts.Root(), 0, 0, 100, 100, ColorWhite)
	child := ts.box(parent, 0, 0, 10, 10, ColorWhite)
	ts.step(0)
	if ts.Root().UpdateType() != 0 || parent.UpdateType() != 0 || child.UpdateType() != 0 {
		t.Fatal("update pass should clear every pending bit")
	}

	child.SetX(5)
	if child.UpdateType()&UpdateLocal == 0 {
		t.Error("child should have UpdateLocal")
	}
	if parent.UpdateType()&UpdateChildren == 0 || ts.Root().UpdateType()&UpdateChildren == 0 {
		t.Error("ancestors should have UpdateChildren")
	}
	if !ts.step(16 * time.Millisecond) {
		t.Error("frame with a change should render")
	}
	if x, _ := child.LocalToWorld(0, 0); x != 5 {
		t.Errorf("world x = %v, want 5", x)
	}
}

func TestSetSameValueIsNoop(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 3, 0, 10, 10, ColorWhite)
	ts.step(0)
	n.SetX(3)
	n.SetSize(10, 10)
	if n.UpdateType() != 0 {
		t.Errorf("UpdateType = %b, want 0 for unchanged values", n.UpdateType())
	}
}

// --- Z-order ---

func sortedIDs(n *Node) []NodeID {
	var ids []NodeID
	for _, c := range n.SortedChildren() {
		ids = append(ids, c.ID())
	}
	return ids
}

func equalIDs(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestZIndexSortsChildren(t *testing.T) {
	ts := newTestStage(t)
	root := ts.Root()
	a := ts.box(root, 0, 0, 10, 10, ColorWhite)
	b := ts.box(root, 0, 0, 10, 10, ColorWhite)
	c := ts.box(root, 0, 0, 10, 10, ColorWhite)
	a.SetZIndex(2)
	c.SetZIndex(-1)
	ts.step(0)

	want := []NodeID{c.ID(), b.ID(), a.ID()}
	if got := sortedIDs(root); !equalIDs(got, want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
	// Insertion order is untouched.
	if root.ChildAt(0) != a {
		t.Error("Children should keep insertion order")
	}
	// Paint order follows z-index.
	if got := ts.r.lastScreen(t).quadIDs(); !equalIDs(got, want) {
		t.Errorf("paint order = %v, want %v", got, want)
	}
}

func TestZIndexTiesKeepInsertionOrder(t *testing.T) {
	ts := newTestStage(t)
	root := ts.Root()
	var want []NodeID
	for i := 0; i < 5; i++ {
		n := ts.box(root, 0, 0, 10, 10, ColorWhite)
		n.SetZIndex(1)
		want = append(want, n.ID())
	}
	ts.step(0)
	if got := sortedIDs(root); !equalIDs(got, want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
}

func TestZIndexLockedKeepsSlot(t *testing.T) {
	ts := newTestStage(t)
	root := ts.Root()
	a := ts.box(root, 0, 0, 10, 10, ColorWhite)
	b := ts.box(root, 0, 0, 10, 10, ColorWhite)
	b.SetZIndex(1)
	a.SetZIndexLocked(true)
	a.SetZIndex(5)
	ts.step(0)
	if got, want := sortedIDs(root), []NodeID{a.ID(), b.ID()}; !equalIDs(got, want) {
		t.Errorf("locked sorted = %v, want %v", got, want)
	}

	a.SetZIndexLocked(false)
	ts.step(time.Millisecond)
	if got, want := sortedIDs(root), []NodeID{b.ID(), a.ID()}; !equalIDs(got, want) {
		t.Errorf("unlocked sorted = %v, want %v", got, want)
	}
}

// --- Events ---

func TestNodeOnceAndOff(t *testing.T) {
	ts := newTestStage(t)
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	var once, on int
	n.Once(EventInViewport, func(NodeEvent) { once++ })
	sub := n.On(EventOutOfBounds, func(NodeEvent) { on++ })
	ts.step(0)

	n.SetX(5000)
	ts.step(time.Millisecond)
	if !n.Off(sub) {
		t.Error("Off should report the listener was registered")
	}
	if n.Off(sub) {
		t.Error("second Off should report false")
	}
	n.SetX(0)
	ts.step(time.Millisecond)
	n.SetX(5000)
	ts.step(time.Millisecond)

	if once != 1 {
		t.Errorf("Once listener called %d times, want 1", once)
	}
	if on != 1 {
		t.Errorf("On listener called %d times, want 1", on)
	}
}

type sinkFunc func(NodeEvent)

func (f sinkFunc) EmitNodeEvent(ev NodeEvent) { f(ev) }

func TestEventSinkReceivesNodeEvents(t *testing.T) {
	ts := newTestStage(t)
	var got []NodeEvent
	ts.SetEventSink(sinkFunc(func(ev NodeEvent) { got = append(got, ev) }))
	n := ts.box(ts.Root(), 0, 0, 10, 10, ColorWhite)
	ts.step(0)

	found := false
	for _, ev := range got {
		if ev.NodeID == n.ID() && ev.Type == EventInViewport {
			found = true
			if ev.Node != n || ev.Previous != BoundsInit || ev.Current != BoundsInViewport {
				t.Errorf("event = %+v", ev)
			}
		}
	}
	if !found {
		t.Error("sink should receive the inViewport event")
	}
	if ts.EventSink() == nil {
		t.Error("EventSink should return the installed sink")
	}
}
