package mirror

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/phanxgames/lantern"
)

// Worker is the stage side of a mirror. It runs on the stage's frame loop:
// at the start of every frame it applies queued messages in order, then the
// dirty fields of every queued buffer, and forwards subscribed node events
// and animation events to the client.
type Worker struct {
	stage  *lantern.Stage
	msgs   <-chan Message
	events chan<- Event
	dirty  *dirtyQueue
	next   lantern.EventSink

	nodes    map[ID]*lantern.Node
	buffers  map[ID]*BufferStruct
	ids      map[lantern.NodeID]ID
	subs     map[ID]uint32 // bit per lantern.NodeEventType
	textures map[ID]*lantern.Texture
	shaders  map[ID]*lantern.ShaderNode
	anims    map[ID]*lantern.AnimationController
	animNode map[ID]ID

	dropped atomic.Uint64
}

func newWorker(stage *lantern.Stage, msgs <-chan Message, events chan<- Event, dirty *dirtyQueue, root *BufferStruct) *Worker {
	w := &Worker{
		stage:    stage,
		msgs:     msgs,
		events:   events,
		dirty:    dirty,
		next:     stage.EventSink(),
		nodes:    map[ID]*lantern.Node{RootID: stage.Root()},
		buffers:  map[ID]*BufferStruct{RootID: root},
		ids:      map[lantern.NodeID]ID{stage.Root().ID(): RootID},
		subs:     make(map[ID]uint32),
		textures: make(map[ID]*lantern.Texture),
		shaders:  make(map[ID]*lantern.ShaderNode),
		anims:    make(map[ID]*lantern.AnimationController),
		animNode: make(map[ID]ID),
	}
	stage.SetEventSink(w)
	stage.SetBeforeFrame(w.frame)
	return w
}

// Stage returns the mirrored stage.
func (w *Worker) Stage() *lantern.Stage { return w.stage }

// Dropped returns the number of events dropped because the client's event
// queue was full.
func (w *Worker) Dropped() uint64 { return w.dropped.Load() }

// NumNodes returns the number of mirrored nodes, root included.
func (w *Worker) NumNodes() int { return len(w.nodes) }

// Run drives the stage's frame loop until ctx is done. See Stage.Run.
func (w *Worker) Run(ctx context.Context, refresh <-chan time.Time) error {
	return w.stage.Run(ctx, refresh)
}

// frame runs before every stage frame.
func (w *Worker) frame(time.Time) {
	// Only the messages queued so far; a busy client cannot hold the frame.
	for n := len(w.msgs); n > 0; n-- {
		w.handle(<-w.msgs)
	}
	for _, id := range w.dirty.take() {
		if buf, ok := w.buffers[id]; ok {
			w.applyDirty(id, buf, buf.TakeDirty())
		}
	}
}

// handle applies one message. A panic raised by the stage for a bad
// message is reported to the client instead of unwinding the frame.
func (w *Worker) handle(m Message) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(m, fmt.Errorf("mirror: %s: %v", m.Kind, r))
		}
	}()
	switch m.Kind {
	case MsgCreateNode:
		w.createNode(m)
	case MsgSetParent:
		n, ok := w.node(m, m.Target)
		if !ok {
			return
		}
		if m.Parent == 0 {
			n.RemoveFromParent()
			return
		}
		p, ok := w.node(m, m.Parent)
		if !ok {
			return
		}
		p.AddChildAt(n, m.Index)
	case MsgDestroy:
		n, ok := w.node(m, m.Target)
		if !ok {
			return
		}
		if m.Target == RootID {
			w.fail(m, fmt.Errorf("mirror: cannot destroy the root node"))
			return
		}
		w.forgetSubtree(n)
		n.Destroy()
	case MsgSetText, MsgSetFontFamily:
		n, ok := w.node(m, m.Target)
		if !ok {
			return
		}
		tp, _ := n.Text()
		if m.Kind == MsgSetText {
			tp.Text = m.Str
		} else {
			tp.FontFamily = m.Str
		}
		n.SetTextProps(tp)
	case MsgSubscribe:
		w.subs[m.Target] |= 1 << m.EventType
	case MsgUnsubscribe:
		w.subs[m.Target] &^= 1 << m.EventType
	case MsgCreateTexture:
		props := m.TextureProps
		if m.Parent != 0 {
			parent, ok := w.textures[m.Parent]
			if !ok {
				w.fail(m, fmt.Errorf("%w: texture %d", ErrUnknownHandle, m.Parent))
				return
			}
			props.Parent = parent
		}
		t, err := w.stage.CreateTexture(m.TextureType, props, m.TextureOptions)
		if err != nil {
			w.fail(m, err)
			return
		}
		w.textures[m.Target] = t
	case MsgReleaseTexture:
		if t, ok := w.textures[m.Target]; ok {
			w.stage.ReleaseTexture(t)
			delete(w.textures, m.Target)
		}
	case MsgCreateShader:
		sn, err := w.stage.CreateShader(m.Str, m.ShaderProps)
		if err != nil {
			w.fail(m, err)
			return
		}
		w.shaders[m.Target] = sn
	case MsgSetShaderProp:
		sn, ok := w.shaders[m.Target]
		if !ok {
			w.fail(m, fmt.Errorf("%w: shader %d", ErrUnknownHandle, m.Target))
			return
		}
		if err := sn.SetProp(m.Str, m.Value); err != nil {
			w.fail(m, err)
		}
	case MsgRemoveShader:
		if sn, ok := w.shaders[m.Target]; ok {
			w.stage.RemoveShader(sn)
			delete(w.shaders, m.Target)
		}
	case MsgAnimate:
		w.animate(m)
	case MsgAnimationCommand:
		ctrl, ok := w.anims[m.Target]
		if !ok {
			w.fail(m, fmt.Errorf("%w: animation %d", ErrUnknownHandle, m.Target))
			return
		}
		switch m.Command {
		case AnimStart:
			ctrl.Start()
		case AnimPause:
			ctrl.Pause()
		case AnimStop:
			ctrl.Stop()
		case AnimRestore:
			ctrl.Restore()
		}
	default:
		w.fail(m, fmt.Errorf("mirror: unknown message kind %d", m.Kind))
	}
}

func (w *Worker) node(m Message, id ID) (*lantern.Node, bool) {
	n, ok := w.nodes[id]
	if !ok {
		w.fail(m, fmt.Errorf("%w: node %d", ErrUnknownHandle, id))
	}
	return n, ok
}

// createNode decodes the buffer's tag into a layout, creates the node from
// the whole buffer and acknowledges it.
func (w *Worker) createNode(m Message) {
	buf := m.Buffer
	// Unblock the client even if creation fails; its writes go nowhere.
	defer buf.Ack()

	l, err := LayoutForTag(buf.Tag())
	if err != nil {
		w.fail(m, err)
		return
	}
	p := lantern.DefaultNodeProps()
	if m.Parent != 0 {
		parent, ok := w.node(m, m.Parent)
		if !ok {
			return
		}
		p.Parent = parent
	}

	buf.TakeDirty()
	var n *lantern.Node
	if l.Kind == lantern.NodeKindText {
		tp := textProps(buf, lantern.TextProps{Text: m.Str, FontFamily: m.Str2})
		n = w.stage.CreateTextNode(p, tp)
	} else {
		n = w.stage.CreateNode(p)
	}
	w.nodes[m.Target] = n
	w.buffers[m.Target] = buf
	w.ids[n.ID()] = m.Target
	w.applyFields(m.Target, n, buf, nodeFieldsMask)

	buf.Ack()
	// Writes that landed between the read and the acknowledgement were not
	// queued by the client.
	if d := buf.TakeDirty(); d != 0 {
		w.applyDirty(m.Target, buf, d)
	}
}

// Field groups applied together.
const (
	nodeFieldsMask uint64 = 1<<numNodeFields - 1
	textFieldsMask uint64 = (1<<numTextNodeFields - 1) &^ nodeFieldsMask
	srcFieldsMask  uint64 = 1<<FieldSrcX | 1<<FieldSrcY | 1<<FieldSrcWidth | 1<<FieldSrcHeight | 1<<FieldHasSrc
	flipFieldsMask uint64 = 1<<FieldFlipX | 1<<FieldFlipY
)

func (w *Worker) applyDirty(id ID, buf *BufferStruct, mask uint64) {
	if mask == 0 {
		return
	}
	n, ok := w.nodes[id]
	if !ok || n.Destroyed() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.fail(Message{Target: id}, fmt.Errorf("mirror: apply fields of node %d: %v", id, r))
		}
	}()
	w.applyFields(id, n, buf, mask)
	if mask&textFieldsMask != 0 && n.Kind() == lantern.NodeKindText {
		tp, _ := n.Text()
		n.SetTextProps(textProps(buf, tp))
	}
}

// applyFields writes the fields in mask from buf onto n.
func (w *Worker) applyFields(id ID, n *lantern.Node, buf *BufferStruct, mask uint64) {
	for f := FieldX; f <= FieldZIndex; f++ {
		if mask&(1<<f) == 0 {
			continue
		}
		if f == FieldZIndex {
			n.SetZIndex(buf.Int(f))
			continue
		}
		n.SetProp(lantern.Prop(f), buf.Float(f))
	}
	corners := [4]lantern.ColorProp{lantern.ColorPropTl, lantern.ColorPropTr, lantern.ColorPropBl, lantern.ColorPropBr}
	for i, cp := range corners {
		f := FieldColorTl + Field(i)
		if mask&(1<<f) != 0 {
			n.SetColorProp(cp, buf.Color(f))
		}
	}
	if mask&(1<<FieldClipping) != 0 {
		n.SetClipping(buf.Bool(FieldClipping))
	}
	if mask&(1<<FieldContainBounds) != 0 {
		n.SetContainBounds(buf.Bool(FieldContainBounds))
	}
	if mask&(1<<FieldZIndexLocked) != 0 {
		n.SetZIndexLocked(buf.Bool(FieldZIndexLocked))
	}
	if mask&(1<<FieldAutosize) != 0 {
		n.SetAutosize(buf.Bool(FieldAutosize))
	}
	if mask&flipFieldsMask != 0 {
		o := n.TextureOptions()
		o.FlipX, o.FlipY = buf.Bool(FieldFlipX), buf.Bool(FieldFlipY)
		n.SetTextureOptions(o)
	}
	if mask&srcFieldsMask != 0 {
		if buf.Bool(FieldHasSrc) {
			n.SetSrc(&lantern.Rect{
				X:      buf.Float(FieldSrcX),
				Y:      buf.Float(FieldSrcY),
				Width:  buf.Float(FieldSrcWidth),
				Height: buf.Float(FieldSrcHeight),
			})
		} else {
			n.SetSrc(nil)
		}
	}
	if mask&(1<<FieldShader) != 0 {
		sid := buf.ID(FieldShader)
		if sid == 0 {
			n.SetShader(nil)
		} else if sn, ok := w.shaders[sid]; ok {
			n.SetShader(sn)
		} else {
			w.fail(Message{Target: id}, fmt.Errorf("%w: shader %d", ErrUnknownHandle, sid))
		}
	}
	if mask&(1<<FieldRTT) != 0 {
		n.SetRTT(buf.Bool(FieldRTT))
	}
	if mask&(1<<FieldTexture) != 0 && !n.RTT() {
		tid := buf.ID(FieldTexture)
		if tid == 0 {
			n.SetTexture(nil)
		} else if t, ok := w.textures[tid]; ok {
			n.SetTexture(t)
		} else {
			w.fail(Message{Target: id}, fmt.Errorf("%w: texture %d", ErrUnknownHandle, tid))
		}
	}
}

// textProps overlays the numeric text fields of buf on base.
func textProps(buf *BufferStruct, base lantern.TextProps) lantern.TextProps {
	base.FontSize = buf.Float(FieldFontSize)
	base.MaxWidth = buf.Float(FieldMaxWidth)
	base.MaxHeight = buf.Float(FieldMaxHeight)
	base.MaxLines = buf.Int(FieldMaxLines)
	base.TextAlign = lantern.TextAlign(buf.Int(FieldTextAlign))
	base.Contain = lantern.TextContain(buf.Int(FieldContain))
	base.LetterSpacing = buf.Float(FieldLetterSpacing)
	base.LineHeight = buf.Float(FieldLineHeight)
	return base
}

// forgetSubtree drops n and its descendants from every index.
func (w *Worker) forgetSubtree(n *lantern.Node) {
	if id, ok := w.ids[n.ID()]; ok {
		delete(w.ids, n.ID())
		delete(w.nodes, id)
		delete(w.buffers, id)
		delete(w.subs, id)
		for aid, nid := range w.animNode {
			if nid == id {
				delete(w.animNode, aid)
				delete(w.anims, aid)
			}
		}
	}
	for _, c := range n.Children() {
		w.forgetSubtree(c)
	}
}

func (w *Worker) animate(m Message) {
	n, ok := w.node(m, m.Target)
	if !ok {
		return
	}
	ctrl, err := w.stage.Animate(n, m.AnimationProps, m.AnimationSettings)
	if err != nil {
		w.fail(m, err)
		return
	}
	aid := m.Animation
	forward := func(ev lantern.AnimationEvent) {
		w.post(Event{
			Kind:           EventAnimation,
			Target:         aid,
			AnimationEvent: ev.Type,
			AnimationState: ev.Controller.State(),
		})
	}
	ctrl.On(lantern.AnimationEventStart, forward)
	ctrl.On(lantern.AnimationEventFinished, forward)
	ctrl.On(lantern.AnimationEventStopped, forward)
	w.anims[aid] = ctrl
	w.animNode[aid] = m.Target
}

// EmitNodeEvent forwards subscribed events of mirrored nodes to the client
// and passes every event on to the previous sink.
func (w *Worker) EmitNodeEvent(ev lantern.NodeEvent) {
	if w.next != nil {
		w.next.EmitNodeEvent(ev)
	}
	id, ok := w.ids[ev.NodeID]
	if !ok || w.subs[id]&(1<<ev.Type) == 0 {
		return
	}
	w.post(Event{
		Kind:       EventNode,
		Target:     id,
		NodeEvent:  ev.Type,
		Dimensions: ev.Dimensions,
		Previous:   ev.Previous,
		Current:    ev.Current,
		Err:        ev.Err,
	})
}

func (w *Worker) fail(m Message, err error) {
	lantern.Logger().Debug("mirror: message failed", "message", m.Kind.String(), "target", uint64(m.Target), "error", err)
	w.post(Event{Kind: EventError, Target: m.Target, Message: m.Kind, Err: err})
}

// post sends ev without blocking the frame loop. Events are dropped when
// the client falls behind.
func (w *Worker) post(ev Event) {
	select {
	case w.events <- ev:
	default:
		n := w.dropped.Add(1)
		lantern.Logger().Warn("mirror: event queue full, event dropped", "kind", ev.Kind, "target", uint64(ev.Target), "dropped", n)
	}
}
