package mirror

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/phanxgames/lantern"
)

// Subscription identifies a control-side listener.
type Subscription uint64

// NodeEvent is a node notification delivered on the control side.
type NodeEvent struct {
	Type       lantern.NodeEventType
	Node       *Node
	Dimensions lantern.Dimensions
	Previous   lantern.BoundsState
	Current    lantern.BoundsState
	Err        error
}

type nodeListener struct {
	id  Subscription
	typ lantern.NodeEventType
	fn  func(NodeEvent)
}

// Client is the control side of a mirrored stage. Its methods are safe to
// call from any goroutine. Listeners run on the goroutine calling Dispatch
// or Poll.
type Client struct {
	msgs   chan<- Message
	events <-chan Event
	dirty  *dirtyQueue

	done      chan struct{}
	closeOnce sync.Once
	nextID    atomic.Uint64

	root *Node

	mu        sync.Mutex
	nodes     map[ID]*Node
	listeners map[ID][]nodeListener
	anims     map[ID]*Animation
	onError   []func(Event)
	nextSub   Subscription
}

func newClient(msgs chan<- Message, events <-chan Event, dirty *dirtyQueue, root *BufferStruct) *Client {
	c := &Client{
		msgs:      msgs,
		events:    events,
		dirty:     dirty,
		done:      make(chan struct{}),
		nodes:     make(map[ID]*Node),
		listeners: make(map[ID][]nodeListener),
		anims:     make(map[ID]*Animation),
	}
	c.nextID.Store(uint64(RootID))
	c.root = &Node{c: c, id: RootID, buf: root}
	c.nodes[RootID] = c.root
	return c
}

// Root returns the handle of the stage's root node.
func (c *Client) Root() *Node { return c.root }

// Close stops the client. Later calls return ErrClosed and Dispatch
// returns.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed when the client closes.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) newID() ID { return ID(c.nextID.Add(1)) }

// send queues m for the worker. It blocks while the queue is full.
func (c *Client) send(m Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.msgs <- m:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// NodeProps are the initial properties of a mirrored node. Parent, Texture
// and Shader of the embedded lantern.NodeProps are ignored in favor of the
// handle fields.
type NodeProps struct {
	lantern.NodeProps
	Parent  *Node
	Texture *Texture
	Shader  *Shader
}

// DefaultNodeProps returns lantern's defaults.
func DefaultNodeProps() NodeProps {
	return NodeProps{NodeProps: lantern.DefaultNodeProps()}
}

// CreateNode creates a node on the worker. The handle is usable at once;
// writes made before the worker acknowledges the node are applied with its
// creation.
func (c *Client) CreateNode(p NodeProps) (*Node, error) {
	return c.createNode(NodeLayout, p, nil)
}

// CreateTextNode creates a text node on the worker.
func (c *Client) CreateTextNode(p NodeProps, text lantern.TextProps) (*Node, error) {
	return c.createNode(TextNodeLayout, p, &text)
}

func (c *Client) createNode(l *Layout, p NodeProps, text *lantern.TextProps) (*Node, error) {
	buf := NewBufferStruct(l)
	initNodeBuffer(buf, p)
	m := Message{Kind: MsgCreateNode, Buffer: buf, Index: -1}
	if text != nil {
		initTextBuffer(buf, *text)
		m.Str = text.Text
		m.Str2 = text.FontFamily
	}
	n := &Node{c: c, id: c.newID(), buf: buf}
	m.Target = n.id
	if p.Parent != nil {
		m.Parent = p.Parent.id
	}

	c.mu.Lock()
	c.nodes[n.id] = n
	if p.Parent != nil && !p.Parent.destroyed.Load() {
		n.parent = p.Parent
		p.Parent.children = append(p.Parent.children, n)
	}
	c.mu.Unlock()

	if err := c.send(m); err != nil {
		c.forget(n)
		return nil, err
	}
	return n, nil
}

func initNodeBuffer(b *BufferStruct, p NodeProps) {
	np := p.NodeProps
	floats := [...]struct {
		f Field
		v float64
	}{
		{FieldX, np.X}, {FieldY, np.Y}, {FieldWidth, np.Width}, {FieldHeight, np.Height},
		{FieldScaleX, np.ScaleX}, {FieldScaleY, np.ScaleY}, {FieldRotation, np.Rotation},
		{FieldMountX, np.MountX}, {FieldMountY, np.MountY},
		{FieldPivotX, np.PivotX}, {FieldPivotY, np.PivotY},
		{FieldAlpha, np.Alpha},
	}
	for _, f := range floats {
		b.init(f.f, floatBits(f.v))
	}
	b.init(FieldZIndex, intBits(np.ZIndex))

	corners := [4]lantern.Color{np.ColorTl, np.ColorTr, np.ColorBl, np.ColorBr}
	for i, c := range corners {
		if c == 0 {
			c = np.Color
		}
		b.init(FieldColorTl+Field(i), colorBits(c))
	}

	b.init(FieldClipping, boolBits(np.Clipping))
	b.init(FieldContainBounds, boolBits(np.ContainBounds))
	b.init(FieldZIndexLocked, boolBits(np.ZIndexLocked))
	b.init(FieldAutosize, boolBits(np.Autosize))
	b.init(FieldRTT, boolBits(np.RTT))
	b.init(FieldFlipX, boolBits(np.TextureOptions.FlipX))
	b.init(FieldFlipY, boolBits(np.TextureOptions.FlipY))
	if np.Src != nil {
		b.init(FieldSrcX, floatBits(np.Src.X))
		b.init(FieldSrcY, floatBits(np.Src.Y))
		b.init(FieldSrcWidth, floatBits(np.Src.Width))
		b.init(FieldSrcHeight, floatBits(np.Src.Height))
		b.init(FieldHasSrc, 1)
	}
	if p.Texture != nil {
		b.init(FieldTexture, uint64(p.Texture.id))
	}
	if p.Shader != nil {
		b.init(FieldShader, uint64(p.Shader.id))
	}
}

func initTextBuffer(b *BufferStruct, t lantern.TextProps) {
	b.init(FieldFontSize, floatBits(t.FontSize))
	b.init(FieldMaxWidth, floatBits(t.MaxWidth))
	b.init(FieldMaxHeight, floatBits(t.MaxHeight))
	b.init(FieldMaxLines, intBits(t.MaxLines))
	b.init(FieldTextAlign, intBits(int(t.TextAlign)))
	b.init(FieldContain, intBits(int(t.Contain)))
	b.init(FieldLetterSpacing, floatBits(t.LetterSpacing))
	b.init(FieldLineHeight, floatBits(t.LineHeight))
}

// forget drops n and its descendants from the control-side tree.
func (c *Client) forget(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := n.parent; p != nil {
		p.removeChild(n)
		n.parent = nil
	}
	var walk func(*Node)
	walk = func(x *Node) {
		x.destroyed.Store(true)
		delete(c.nodes, x.id)
		delete(c.listeners, x.id)
		for _, ch := range x.children {
			walk(ch)
		}
		x.children = nil
	}
	walk(n)
}

// Node returns the handle with the given ID.
func (c *Client) Node(id ID) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	return n, ok
}

// NumNodes returns the number of live node handles, root included.
func (c *Client) NumNodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// OnError registers fn for messages that failed on the worker.
func (c *Client) OnError(fn func(Event)) {
	c.mu.Lock()
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

// Dispatch delivers worker events to listeners until ctx is done or the
// client closes.
func (c *Client) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case ev := <-c.events:
			c.deliver(ev)
		}
	}
}

// Poll delivers the events already queued without blocking and returns how
// many it delivered.
func (c *Client) Poll() int {
	n := 0
	for {
		select {
		case ev := <-c.events:
			c.deliver(ev)
			n++
		default:
			return n
		}
	}
}

func (c *Client) deliver(ev Event) {
	switch ev.Kind {
	case EventNode:
		c.mu.Lock()
		n := c.nodes[ev.Target]
		var fns []func(NodeEvent)
		for _, l := range c.listeners[ev.Target] {
			if l.typ == ev.NodeEvent {
				fns = append(fns, l.fn)
			}
		}
		c.mu.Unlock()
		if n == nil {
			return
		}
		ne := NodeEvent{
			Type:       ev.NodeEvent,
			Node:       n,
			Dimensions: ev.Dimensions,
			Previous:   ev.Previous,
			Current:    ev.Current,
			Err:        ev.Err,
		}
		for _, fn := range fns {
			fn(ne)
		}
	case EventAnimation:
		c.mu.Lock()
		a := c.anims[ev.Target]
		c.mu.Unlock()
		if a != nil {
			a.apply(ev)
		}
	case EventError:
		c.mu.Lock()
		fns := append(([]func(Event))(nil), c.onError...)
		c.mu.Unlock()
		if len(fns) == 0 {
			lantern.Logger().Warn("mirror: message failed", "message", ev.Message.String(), "target", uint64(ev.Target), "error", ev.Err)
		}
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// on registers a node listener and subscribes the worker to the event type
// when it is the first listener for it.
func (c *Client) on(n *Node, typ lantern.NodeEventType, fn func(NodeEvent)) (Subscription, error) {
	c.mu.Lock()
	first := true
	for _, l := range c.listeners[n.id] {
		if l.typ == typ {
			first = false
			break
		}
	}
	c.nextSub++
	sub := c.nextSub
	c.listeners[n.id] = append(c.listeners[n.id], nodeListener{id: sub, typ: typ, fn: fn})
	c.mu.Unlock()
	if first {
		if err := c.send(Message{Kind: MsgSubscribe, Target: n.id, EventType: typ}); err != nil {
			return 0, err
		}
	}
	return sub, nil
}

func (c *Client) off(n *Node, sub Subscription) bool {
	c.mu.Lock()
	ls := c.listeners[n.id]
	var typ lantern.NodeEventType
	found := false
	for i, l := range ls {
		if l.id == sub {
			typ = l.typ
			c.listeners[n.id] = append(ls[:i:i], ls[i+1:]...)
			found = true
			break
		}
	}
	last := found
	for _, l := range c.listeners[n.id] {
		if l.typ == typ {
			last = false
		}
	}
	c.mu.Unlock()
	if last {
		_ = c.send(Message{Kind: MsgUnsubscribe, Target: n.id, EventType: typ})
	}
	return found
}

// Texture is a control-side texture handle.
type Texture struct {
	c  *Client
	id ID
}

// ID returns the handle ID.
func (t *Texture) ID() ID { return t.id }

// TextureProps describes a texture. Parent of the embedded props is
// ignored in favor of the handle.
type TextureProps struct {
	lantern.TextureProps
	Parent *Texture
}

// CreateTexture creates a texture on the worker. Identical requests share
// one worker-side texture.
func (c *Client) CreateTexture(typ lantern.TextureType, p TextureProps, opts lantern.TextureOptions) (*Texture, error) {
	t := &Texture{c: c, id: c.newID()}
	m := Message{
		Kind:           MsgCreateTexture,
		Target:         t.id,
		TextureType:    typ,
		TextureProps:   p.TextureProps,
		TextureOptions: opts,
	}
	m.TextureProps.Parent = nil
	if p.Parent != nil {
		m.Parent = p.Parent.id
	}
	if err := c.send(m); err != nil {
		return nil, err
	}
	return t, nil
}

// Release releases the texture on the worker.
func (t *Texture) Release() error {
	return t.c.send(Message{Kind: MsgReleaseTexture, Target: t.id})
}

// Shader is a control-side shader handle.
type Shader struct {
	c  *Client
	id ID
}

// ID returns the handle ID.
func (s *Shader) ID() ID { return s.id }

// CreateShader creates a shader node of the named type on the worker.
func (c *Client) CreateShader(name string, props map[string]any) (*Shader, error) {
	s := &Shader{c: c, id: c.newID()}
	if err := c.send(Message{Kind: MsgCreateShader, Target: s.id, Str: name, ShaderProps: props}); err != nil {
		return nil, err
	}
	return s, nil
}

// SetProp sets a shader prop. Validation errors are reported through
// OnError.
func (s *Shader) SetProp(name string, v any) error {
	return s.c.send(Message{Kind: MsgSetShaderProp, Target: s.id, Str: name, Value: v})
}

// Remove removes the shader on the worker.
func (s *Shader) Remove() error {
	return s.c.send(Message{Kind: MsgRemoveShader, Target: s.id})
}
