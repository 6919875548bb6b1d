package mirror

import (
	"context"
	"sync/atomic"

	"github.com/phanxgames/lantern"
)

// Node is a control-side handle to a node living on the worker. Property
// setters write the node's buffer and never block; the worker applies them
// on its next frame. Getters return the last value written on the control
// side, not values the worker derived.
type Node struct {
	c         *Client
	id        ID
	buf       *BufferStruct
	destroyed atomic.Bool

	// Guarded by c.mu.
	parent   *Node
	children []*Node
}

// ID returns the node's handle ID.
func (n *Node) ID() ID { return n.id }

// Kind returns the node kind of the buffer's layout.
func (n *Node) Kind() lantern.NodeKind { return n.buf.layout.Kind }

// Buffer returns the node's buffer struct.
func (n *Node) Buffer() *BufferStruct { return n.buf }

// Destroyed reports whether Destroy was called on the node or an ancestor.
func (n *Node) Destroyed() bool { return n.destroyed.Load() }

// WaitShared blocks until the worker has created the node.
func (n *Node) WaitShared(ctx context.Context) error {
	select {
	case <-n.buf.Acked():
		return nil
	case <-n.c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) set(f Field, v uint64) {
	if n.destroyed.Load() {
		return
	}
	if n.buf.store(f, v) && n.buf.Shared() {
		n.c.dirty.push(n.id)
	}
}

// Parent returns the parent handle, or nil.
func (n *Node) Parent() *Node {
	n.c.mu.Lock()
	defer n.c.mu.Unlock()
	return n.parent
}

// Children returns a copy of the child handles.
func (n *Node) Children() []*Node {
	n.c.mu.Lock()
	defer n.c.mu.Unlock()
	return append([]*Node(nil), n.children...)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// SetParent moves the node under parent. A nil parent detaches it.
func (n *Node) SetParent(parent *Node) error {
	if n.destroyed.Load() {
		return ErrDestroyed
	}
	if parent != nil && parent.destroyed.Load() {
		return ErrDestroyed
	}
	var pid ID
	if parent != nil {
		pid = parent.id
	}
	if err := n.c.send(Message{Kind: MsgSetParent, Target: n.id, Parent: pid, Index: -1}); err != nil {
		return err
	}
	n.c.mu.Lock()
	if n.parent != nil {
		n.parent.removeChild(n)
	}
	n.parent = parent
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	n.c.mu.Unlock()
	return nil
}

// Destroy destroys the node and its descendants on the worker. Their
// handles become inert.
func (n *Node) Destroy() error {
	if n.destroyed.Load() {
		return nil
	}
	if err := n.c.send(Message{Kind: MsgDestroy, Target: n.id}); err != nil {
		return err
	}
	n.c.forget(n)
	return nil
}

// On registers fn for a node event. The worker only forwards event types
// that have at least one listener.
func (n *Node) On(typ lantern.NodeEventType, fn func(NodeEvent)) (Subscription, error) {
	if n.destroyed.Load() {
		return 0, ErrDestroyed
	}
	return n.c.on(n, typ, fn)
}

// Off removes a listener registered with On.
func (n *Node) Off(sub Subscription) bool { return n.c.off(n, sub) }

// Prop returns a numeric property.
func (n *Node) Prop(p lantern.Prop) float64 {
	if p == lantern.PropZIndex {
		return float64(n.buf.Int(FieldZIndex))
	}
	return n.buf.Float(Field(p))
}

// SetProp sets a numeric property.
func (n *Node) SetProp(p lantern.Prop, v float64) {
	if p == lantern.PropZIndex {
		n.set(FieldZIndex, intBits(int(v)))
		return
	}
	n.set(Field(p), floatBits(v))
}

// X returns the x position.
func (n *Node) X() float64 { return n.buf.Float(FieldX) }

// Y returns the y position.
func (n *Node) Y() float64 { return n.buf.Float(FieldY) }

// Width returns the width.
func (n *Node) Width() float64 { return n.buf.Float(FieldWidth) }

// Height returns the height.
func (n *Node) Height() float64 { return n.buf.Float(FieldHeight) }

// Alpha returns the alpha.
func (n *Node) Alpha() float64 { return n.buf.Float(FieldAlpha) }

func (n *Node) SetX(v float64)        { n.set(FieldX, floatBits(v)) }
func (n *Node) SetY(v float64)        { n.set(FieldY, floatBits(v)) }
func (n *Node) SetWidth(v float64)    { n.set(FieldWidth, floatBits(v)) }
func (n *Node) SetHeight(v float64)   { n.set(FieldHeight, floatBits(v)) }
func (n *Node) SetRotation(v float64) { n.set(FieldRotation, floatBits(v)) }
func (n *Node) SetAlpha(v float64)    { n.set(FieldAlpha, floatBits(v)) }
func (n *Node) SetZIndex(z int)       { n.set(FieldZIndex, intBits(z)) }

// SetPosition sets x and y.
func (n *Node) SetPosition(x, y float64) {
	n.SetX(x)
	n.SetY(y)
}

// SetSize sets width and height.
func (n *Node) SetSize(w, h float64) {
	n.SetWidth(w)
	n.SetHeight(h)
}

// SetScale sets both scale factors.
func (n *Node) SetScale(sx, sy float64) {
	n.set(FieldScaleX, floatBits(sx))
	n.set(FieldScaleY, floatBits(sy))
}

// SetMount sets the mount point.
func (n *Node) SetMount(x, y float64) {
	n.set(FieldMountX, floatBits(x))
	n.set(FieldMountY, floatBits(y))
}

// SetPivot sets the pivot point.
func (n *Node) SetPivot(x, y float64) {
	n.set(FieldPivotX, floatBits(x))
	n.set(FieldPivotY, floatBits(y))
}

// Colors returns the corner colors tl, tr, bl, br.
func (n *Node) Colors() [4]lantern.Color {
	return [4]lantern.Color{
		n.buf.Color(FieldColorTl), n.buf.Color(FieldColorTr),
		n.buf.Color(FieldColorBl), n.buf.Color(FieldColorBr),
	}
}

// SetColor sets all four corners.
func (n *Node) SetColor(c lantern.Color) { n.SetColorProp(lantern.ColorPropAll, c) }

// SetColorProp sets every corner of a color group.
func (n *Node) SetColorProp(cp lantern.ColorProp, c lantern.Color) {
	for _, f := range colorFields(cp) {
		n.set(f, colorBits(c))
	}
}

func colorFields(cp lantern.ColorProp) []Field {
	switch cp {
	case lantern.ColorPropTop:
		return []Field{FieldColorTl, FieldColorTr}
	case lantern.ColorPropBottom:
		return []Field{FieldColorBl, FieldColorBr}
	case lantern.ColorPropLeft:
		return []Field{FieldColorTl, FieldColorBl}
	case lantern.ColorPropRight:
		return []Field{FieldColorTr, FieldColorBr}
	case lantern.ColorPropTl:
		return []Field{FieldColorTl}
	case lantern.ColorPropTr:
		return []Field{FieldColorTr}
	case lantern.ColorPropBl:
		return []Field{FieldColorBl}
	case lantern.ColorPropBr:
		return []Field{FieldColorBr}
	default:
		return []Field{FieldColorTl, FieldColorTr, FieldColorBl, FieldColorBr}
	}
}

func (n *Node) SetClipping(v bool)      { n.set(FieldClipping, boolBits(v)) }
func (n *Node) SetContainBounds(v bool) { n.set(FieldContainBounds, boolBits(v)) }
func (n *Node) SetZIndexLocked(v bool)  { n.set(FieldZIndexLocked, boolBits(v)) }
func (n *Node) SetAutosize(v bool)      { n.set(FieldAutosize, boolBits(v)) }
func (n *Node) SetRTT(v bool)           { n.set(FieldRTT, boolBits(v)) }

// SetTextureOptions sets the per-node flips. PreventCleanup applies to
// textures and is set through CreateTexture.
func (n *Node) SetTextureOptions(o lantern.TextureOptions) {
	n.set(FieldFlipX, boolBits(o.FlipX))
	n.set(FieldFlipY, boolBits(o.FlipY))
}

// SetSrc sets the source region, or clears it when r is nil.
func (n *Node) SetSrc(r *lantern.Rect) {
	if r == nil {
		n.set(FieldHasSrc, 0)
		return
	}
	n.set(FieldSrcX, floatBits(r.X))
	n.set(FieldSrcY, floatBits(r.Y))
	n.set(FieldSrcWidth, floatBits(r.Width))
	n.set(FieldSrcHeight, floatBits(r.Height))
	n.set(FieldHasSrc, 1)
}

// SetTexture attaches t, or detaches the texture when t is nil.
func (n *Node) SetTexture(t *Texture) {
	var id ID
	if t != nil {
		id = t.id
	}
	n.set(FieldTexture, uint64(id))
}

// SetShader attaches s, or the default shader when s is nil.
func (n *Node) SetShader(s *Shader) {
	var id ID
	if s != nil {
		id = s.id
	}
	n.set(FieldShader, uint64(id))
}

// Text node setters. They panic on a plain node.

func (n *Node) SetFontSize(v float64)      { n.set(FieldFontSize, floatBits(v)) }
func (n *Node) SetMaxWidth(v float64)      { n.set(FieldMaxWidth, floatBits(v)) }
func (n *Node) SetMaxHeight(v float64)     { n.set(FieldMaxHeight, floatBits(v)) }
func (n *Node) SetMaxLines(v int)          { n.set(FieldMaxLines, intBits(v)) }
func (n *Node) SetLetterSpacing(v float64) { n.set(FieldLetterSpacing, floatBits(v)) }
func (n *Node) SetLineHeight(v float64)    { n.set(FieldLineHeight, floatBits(v)) }

func (n *Node) SetTextAlign(a lantern.TextAlign) { n.set(FieldTextAlign, intBits(int(a))) }
func (n *Node) SetContain(c lantern.TextContain) { n.set(FieldContain, intBits(int(c))) }

// SetText replaces the text of a text node.
func (n *Node) SetText(text string) error {
	if n.destroyed.Load() {
		return ErrDestroyed
	}
	return n.c.send(Message{Kind: MsgSetText, Target: n.id, Str: text})
}

// SetFontFamily replaces the font family of a text node.
func (n *Node) SetFontFamily(family string) error {
	if n.destroyed.Load() {
		return ErrDestroyed
	}
	return n.c.send(Message{Kind: MsgSetFontFamily, Target: n.id, Str: family})
}
