package lantern

import "fmt"

// NodeID identifies a node. IDs are assigned by the Stage at creation and are
// never reused by the same Stage.
type NodeID uint32

// UpdateType is a bitmask describing what the update pass must recompute for
// a node.
type UpdateType uint16

const (
	UpdateChildren            UpdateType = 1 << iota // a descendant has pending work
	UpdateLocal                                      // local transform inputs changed
	UpdateGlobal                                     // world transform must be recomposed
	UpdateRenderBounds                               // world bounding rect must be recomputed
	UpdateClipping                                   // effective clip rect must be recomputed
	UpdateBoundsState                                // viewport classification must be redone
	UpdateWorldAlpha                                 // world alpha must be recomputed
	UpdatePremultipliedColors                        // corner colors must be premultiplied again
	UpdateUniforms                                   // shader uniforms must be derived again
	UpdateRenderTexture                              // render-to-texture target must be resized
	UpdateIsRenderable                               // renderability must be re-evaluated
	UpdateZIndexSort                                 // children must be re-sorted by z-index

	UpdateNone UpdateType = 0
	UpdateAll  UpdateType = UpdateChildren | UpdateLocal | UpdateGlobal | UpdateRenderBounds |
		UpdateClipping | UpdateBoundsState | UpdateWorldAlpha | UpdatePremultipliedColors |
		UpdateUniforms | UpdateRenderTexture | UpdateIsRenderable | UpdateZIndexSort
)

// clipRect is an effective clipping rectangle. An invalid clipRect means
// "no clipping".
type clipRect struct {
	Rect
	valid bool
}

// intersect narrows c by other. Clip rectangles only ever shrink.
func (c clipRect) intersect(other clipRect) clipRect {
	switch {
	case !other.valid:
		return c
	case !c.valid:
		return other
	default:
		return clipRect{Rect: c.Rect.Intersection(other.Rect), valid: true}
	}
}

// NodeProps is the full initial property set of a node. Start from
// DefaultNodeProps and override what you need.
type NodeProps struct {
	Name string

	X, Y          float64
	Width, Height float64
	ScaleX        float64
	ScaleY        float64
	Rotation      float64 // radians
	MountX        float64 // 0..1 anchor that (X, Y) refers to
	MountY        float64
	PivotX        float64 // 0..1 origin for scale and rotation
	PivotY        float64

	Alpha float64

	// Color fills all four corners. A non-zero corner color overrides it for
	// that corner.
	Color                              Color
	ColorTl, ColorTr, ColorBl, ColorBr Color

	Clipping      bool
	ContainBounds bool // descendants are classified against this node's bounds
	ZIndex        int
	ZIndexLocked  bool
	RTT           bool

	Parent         *Node
	Texture        *Texture
	TextureOptions TextureOptions
	Shader         *ShaderNode
	Src            *Rect // source region in texture pixels
	Autosize       bool  // take width/height from the texture when it loads

	Data any
}

// DefaultNodeProps returns the documented defaults: alpha 1, scale 1,
// mount 0, pivot 0.5, no clipping, zIndex 0, color 0 (transparent).
func DefaultNodeProps() NodeProps {
	return NodeProps{
		ScaleX: 1,
		ScaleY: 1,
		PivotX: 0.5,
		PivotY: 0.5,
		Alpha:  1,
	}
}

// Node is the fundamental scene graph element. A single flat struct is used
// for every node kind; kind-specific data lives in side tables on the Stage.
type Node struct {
	// Identity
	id    NodeID
	kind  NodeKind
	stage *Stage
	Name  string
	Data  any

	// Hierarchy
	parent         *Node
	children       []*Node
	sortedChildren []*Node // z-ordered traversal order, rebuilt on UpdateZIndexSort

	// Geometry (local)
	x, y           float64
	w, h           float64
	scaleX, scaleY float64
	rotation       float64
	mountX, mountY float64
	pivotX, pivotY float64

	// Visual
	alpha         float64
	colors        [4]Color // tl, tr, bl, br
	clipping      bool
	containBounds bool
	containDirty  bool

	// Ordering
	zIndex       int
	zIndexLocked bool
	lockedSlot   int

	// Attachments
	rtt         bool
	rttDirty    bool
	texture     *Texture
	textureSub  Subscription
	textureOpts TextureOptions
	shader      *ShaderNode
	src         Rect
	hasSrc      bool
	autosize    bool

	// Derived, recomputed by the update pass
	updateType     UpdateType
	localTransform [6]float64
	worldTransform [6]float64
	worldAlpha     float64
	premultiplied  [4]Color
	renderBounds   Rect
	clip           clipRect
	viewport       Rect // viewport this node was last classified against
	boundsState    BoundsState
	uniforms       Uniforms
	renderable     bool
	faulted        bool
	paintOrder     int

	events    emitter[NodeEventType, NodeEvent]
	destroyed bool
}

// ID returns the node's stage-unique ID.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node's kind tag.
func (n *Node) Kind() NodeKind { return n.kind }

// Stage returns the stage that created the node.
func (n *Node) Stage() *Stage { return n.stage }

// Destroyed reports whether Destroy has been called.
func (n *Node) Destroyed() bool { return n.destroyed }

func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s#%d(%s)", n.kind, n.id, n.Name)
	}
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

// applyProps copies an initial property set onto a fresh node. Parent and
// attachments are wired by the caller once the node is registered.
func (n *Node) applyProps(p NodeProps) {
	n.Name = p.Name
	n.Data = p.Data
	n.x = sanitizeFinite(p.X, 0)
	n.y = sanitizeFinite(p.Y, 0)
	n.w = sanitizeDim(p.Width)
	n.h = sanitizeDim(p.Height)
	n.scaleX = sanitizeFinite(p.ScaleX, 1)
	n.scaleY = sanitizeFinite(p.ScaleY, 1)
	n.rotation = sanitizeFinite(p.Rotation, 0)
	n.mountX = sanitizeFinite(p.MountX, 0)
	n.mountY = sanitizeFinite(p.MountY, 0)
	n.pivotX = sanitizeFinite(p.PivotX, 0.5)
	n.pivotY = sanitizeFinite(p.PivotY, 0.5)
	n.alpha = clamp01(sanitizeFinite(p.Alpha, 1))
	n.colors = [4]Color{p.Color, p.Color, p.Color, p.Color}
	for i, c := range [4]Color{p.ColorTl, p.ColorTr, p.ColorBl, p.ColorBr} {
		if c != 0 {
			n.colors[i] = c
		}
	}
	n.clipping = p.Clipping
	n.containBounds = p.ContainBounds
	n.zIndex = p.ZIndex
	n.zIndexLocked = p.ZIndexLocked
	n.lockedSlot = p.ZIndex
	n.textureOpts = p.TextureOptions
	if p.Src != nil {
		n.src = *p.Src
		n.hasSrc = true
	}
	n.autosize = p.Autosize
	n.worldTransform = identityTransform
	n.localTransform = identityTransform
	n.updateType = UpdateAll
}

// setUpdateType records pending work for the update pass, requests a render
// and flags every ancestor as having dirty children. The ancestor walk stops
// at the first ancestor that is already flagged, since its own ancestors are
// flagged too.
func (n *Node) setUpdateType(t UpdateType) {
	if n.destroyed {
		panic(fmt.Sprintf("lantern: operation on destroyed node %d", n.id))
	}
	n.updateType |= t
	n.faulted = false
	if n.stage != nil {
		n.stage.requestRender()
	}
	for p := n.parent; p != nil; p = p.parent {
		if p.updateType&UpdateChildren != 0 {
			break
		}
		p.updateType |= UpdateChildren
	}
}

// UpdateType returns the pending update bitmask.
func (n *Node) UpdateType() UpdateType { return n.updateType }

// --- Tree manipulation ---

// Parent returns the node's parent, or nil.
func (n *Node) Parent() *Node { return n.parent }

// SetParent moves the node under parent, appending it to parent's children.
// A nil parent detaches the node.
func (n *Node) SetParent(parent *Node) {
	if parent == nil {
		n.RemoveFromParent()
		return
	}
	parent.AddChild(n)
}

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil, destroyed, or an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	n.AddChildAt(child, -1)
}

// AddChildAt inserts child at the given index; -1 appends.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("lantern: cannot add nil child")
	}
	checkAlive(n, "AddChild (parent)")
	checkAlive(child, "AddChild (child)")
	if child.stage != n.stage {
		panic("lantern: cannot add a child from another stage")
	}
	if isAncestor(child, n) {
		panic("lantern: adding child would create a cycle")
	}
	if child.parent == n {
		if index < 0 {
			index = len(n.children) - 1
		}
		n.SetChildIndex(child, index)
		return
	}
	if index > len(n.children) || index < -1 {
		panic("lantern: child index out of range")
	}
	if child.parent != nil {
		child.parent.detachChild(child)
	}
	child.parent = n
	if index < 0 {
		n.children = append(n.children, child)
	} else {
		n.children = append(n.children, nil)
		copy(n.children[index+1:], n.children[index:])
		n.children[index] = child
	}
	child.lockedSlot = child.zIndex
	markSubtreeDirty(child)
	n.setUpdateType(UpdateChildren | UpdateZIndexSort)
	if n.stage != nil && n.stage.debug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveChild detaches child from this node.
// Panics if child's parent is not n.
func (n *Node) RemoveChild(child *Node) {
	checkAlive(n, "RemoveChild")
	if child == nil || child.parent != n {
		panic("lantern: child's parent is not this node")
	}
	n.detachChild(child)
	child.parent = nil
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.parent == nil {
		return
	}
	n.parent.RemoveChild(n)
}

// Children returns the child list in insertion order. The returned slice
// MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SortedChildren returns the children in paint order as of the last update
// pass. The returned slice MUST NOT be mutated by the caller.
func (n *Node) SortedChildren() []*Node {
	if len(n.sortedChildren) != len(n.children) {
		return n.children
	}
	return n.sortedChildren
}

// SetChildIndex moves child to a new index among its siblings.
func (n *Node) SetChildIndex(child *Node, index int) {
	checkAlive(n, "SetChildIndex")
	if child.parent != n {
		panic("lantern: child's parent is not this node")
	}
	nc := len(n.children)
	if index < 0 || index >= nc {
		panic("lantern: child index out of range")
	}
	oldIndex := -1
	for i, c := range n.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
	n.setUpdateType(UpdateZIndexSort)
}

// detachChild removes child from n.children without clearing child.parent.
func (n *Node) detachChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			break
		}
	}
	n.sortedChildren = n.sortedChildren[:0]
	n.setUpdateType(UpdateChildren | UpdateZIndexSort)
}

// --- Destruction ---

// Destroy detaches the node's texture and shader, removes it from its
// parent, destroys all descendants and removes every listener. Calling
// Destroy twice is a no-op; any other operation on a destroyed node panics.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	n.RemoveFromParent()
	n.destroy()
}

func (n *Node) destroy() {
	for _, child := range n.children {
		child.parent = nil
		child.destroy()
	}
	n.children = nil
	n.sortedChildren = nil
	if n.rtt {
		rt := n.texture
		n.setTexture(nil)
		n.rtt = false
		if rt != nil {
			rt.mgr.ReleaseTexture(rt)
		}
	}
	n.setTexture(nil)
	n.setShader(nil)
	if n.stage != nil {
		n.stage.forgetNode(n)
	}
	n.events.clear()
	n.uniforms = nil
	n.Data = nil
	n.renderable = false
	n.destroyed = true
}

// checkAlive panics when a destroyed node is used.
func checkAlive(n *Node, op string) {
	if n.destroyed {
		panic(fmt.Sprintf("lantern: %s on destroyed node %q (ID %d)", op, n.Name, n.id))
	}
}

// --- Events ---

// On subscribes fn to a node event. Listeners run on the frame loop.
func (n *Node) On(typ NodeEventType, fn func(NodeEvent)) Subscription {
	checkAlive(n, "On")
	return n.events.on(typ, fn, false)
}

// Once subscribes fn to the next occurrence of a node event.
func (n *Node) Once(typ NodeEventType, fn func(NodeEvent)) Subscription {
	checkAlive(n, "Once")
	return n.events.on(typ, fn, true)
}

// Off removes a listener. It reports whether the listener was registered.
func (n *Node) Off(sub Subscription) bool {
	return n.events.off(sub)
}

func (n *Node) emit(ev NodeEvent) {
	ev.Node = n
	ev.NodeID = n.id
	n.events.emit(ev.Type, ev)
	if n.stage != nil && n.stage.sink != nil {
		callListener(ev.Type, n.stage.sink.EmitNodeEvent, ev)
	}
}

// --- Attachments ---

// Texture returns the attached texture, or nil.
func (n *Node) Texture() *Texture { return n.texture }

// SetTexture attaches t, replacing any previous texture. The previous
// texture's reference count is decremented, t's is incremented and its load
// starts if needed. A texture that was released and has since been freed is
// not attached; the node falls back to no texture.
func (n *Node) SetTexture(t *Texture) {
	checkAlive(n, "SetTexture")
	if n.rtt {
		Logger().Warn("lantern: SetTexture ignored on render-to-texture node", "node", n.id)
		return
	}
	n.setTexture(t)
}

func (n *Node) setTexture(t *Texture) {
	if n.texture == t {
		return
	}
	if t != nil && t.released && t.state == TextureFreed {
		Logger().Warn("lantern: released texture assigned, falling back to none",
			"node", n.id, "texture", t.key)
		t = nil
	}
	if old := n.texture; old != nil {
		old.events.off(n.textureSub)
		n.textureSub = 0
		n.texture = nil
		old.mgr.decRef(old)
	}
	if t != nil {
		n.texture = t
		n.textureSub = t.events.onAny(n.onTextureEvent)
		t.mgr.incRef(t)
		if t.state == TextureLoaded {
			n.applyAutosize()
		}
	}
	if !n.destroyed {
		n.setUpdateType(UpdateIsRenderable | UpdateUniforms)
	}
}

func (n *Node) onTextureEvent(ev TextureEvent) {
	switch ev.Type {
	case TextureEventLoaded:
		n.applyAutosize()
		n.setUpdateType(UpdateIsRenderable)
		n.emit(NodeEvent{Type: EventLoaded, Dimensions: ev.Dimensions})
	case TextureEventFailed:
		n.setUpdateType(UpdateIsRenderable)
		n.emit(NodeEvent{Type: EventFailed, Err: ev.Err})
	case TextureEventFreed:
		n.setUpdateType(UpdateIsRenderable)
		n.emit(NodeEvent{Type: EventFreed})
	}
}

// applyAutosize copies the texture (or source region) size onto the node
// when autosize is enabled.
func (n *Node) applyAutosize() {
	if !n.autosize || n.texture == nil {
		return
	}
	w, h := float64(n.texture.width), float64(n.texture.height)
	if n.hasSrc {
		w, h = n.src.Width, n.src.Height
	}
	if w != n.w || h != n.h {
		n.SetSize(w, h)
	}
}

// TextureOptions returns the node's texture sampling options.
func (n *Node) TextureOptions() TextureOptions { return n.textureOpts }

// SetTextureOptions sets the node's texture sampling options.
func (n *Node) SetTextureOptions(o TextureOptions) {
	n.textureOpts = o
	n.setUpdateType(UpdateIsRenderable)
}

// Src returns the source region and whether one is set.
func (n *Node) Src() (Rect, bool) { return n.src, n.hasSrc }

// SetSrc sets the source region in texture pixels. A nil rect draws the
// whole texture.
func (n *Node) SetSrc(r *Rect) {
	if r == nil {
		n.hasSrc = false
		n.src = Rect{}
	} else {
		n.hasSrc = true
		n.src = *r
	}
	n.applyAutosize()
	n.setUpdateType(UpdateIsRenderable)
}

// Autosize reports whether the node takes its size from its texture.
func (n *Node) Autosize() bool { return n.autosize }

// SetAutosize toggles taking width/height from the texture when it loads.
func (n *Node) SetAutosize(v bool) {
	n.autosize = v
	if v && n.texture != nil && n.texture.state == TextureLoaded {
		n.applyAutosize()
	}
}

// Shader returns the attached shader node, or nil for the default quad.
func (n *Node) Shader() *ShaderNode { return n.shader }

// SetShader attaches sn. A shader node that was removed from its manager is
// not attached; the node falls back to the default shader.
func (n *Node) SetShader(sn *ShaderNode) {
	checkAlive(n, "SetShader")
	n.setShader(sn)
}

func (n *Node) setShader(sn *ShaderNode) {
	if n.shader == sn {
		return
	}
	if sn != nil && sn.removed {
		Logger().Warn("lantern: removed shader assigned, falling back to default",
			"node", n.id, "shader", sn.key)
		sn = nil
	}
	if n.shader != nil {
		n.shader.detach(n)
	}
	n.shader = sn
	n.uniforms = nil
	if sn != nil {
		sn.attach(n)
	}
	if !n.destroyed {
		n.setUpdateType(UpdateUniforms | UpdateRenderBounds | UpdateIsRenderable)
	}
}

// Uniforms returns the derived uniforms as of the last update pass.
func (n *Node) Uniforms() Uniforms { return n.uniforms }

// RTT reports whether the node renders its subtree into an offscreen texture.
func (n *Node) RTT() bool { return n.rtt }

// SetRTT toggles render-to-texture. While enabled the node owns a render
// texture sized to its width/height and its children are drawn into it.
func (n *Node) SetRTT(v bool) {
	checkAlive(n, "SetRTT")
	if n.rtt == v {
		return
	}
	if v {
		n.setTexture(nil)
		n.rtt = true
		n.setTexture(n.stage.textures.createRenderTexture(int(n.w), int(n.h)))
		n.rttDirty = true
	} else {
		rt := n.texture
		n.rtt = false
		n.setTexture(nil)
		if rt != nil {
			n.stage.textures.ReleaseTexture(rt)
		}
	}
	for _, c := range n.children {
		markSubtreeDirty(c)
	}
	n.setUpdateType(UpdateAll)
}

// --- Derived state ---

// WorldAlpha returns the alpha multiplied down from the root.
func (n *Node) WorldAlpha() float64 { return n.worldAlpha }

// RenderBounds returns the world-space bounding rectangle.
func (n *Node) RenderBounds() Rect { return n.renderBounds }

// ClipRect returns the effective clipping rectangle and whether any clipping
// applies.
func (n *Node) ClipRect() (Rect, bool) { return n.clip.Rect, n.clip.valid }

// BoundsState returns the last viewport classification.
func (n *Node) BoundsState() BoundsState { return n.boundsState }

// IsRenderable reports whether the node was submitted for drawing on the last
// update pass.
func (n *Node) IsRenderable() bool { return n.renderable && !n.faulted }

// PremultipliedColors returns the corner colors (tl, tr, bl, br) multiplied by
// world alpha.
func (n *Node) PremultipliedColors() [4]Color { return n.premultiplied }

// --- Helpers ---

// isAncestor reports whether candidate is node or one of its ancestors.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// markSubtreeDirty schedules a full recalculation for node and all its
// descendants.
func markSubtreeDirty(node *Node) {
	node.updateType |= UpdateAll
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}

// sortKey is the z-order key. Locked nodes keep the slot they were assigned
// when locked or attached.
func (n *Node) sortKey() int {
	if n.zIndexLocked {
		return n.lockedSlot
	}
	return n.zIndex
}

// rebuildSortedChildren rebuilds the z-ordered traversal order.
// Stable insertion sort: ties keep insertion order, and the common case of
// nearly sorted children is O(n).
func rebuildSortedChildren(n *Node) {
	nc := len(n.children)
	if cap(n.sortedChildren) < nc {
		n.sortedChildren = make([]*Node, nc)
	}
	n.sortedChildren = n.sortedChildren[:nc]
	copy(n.sortedChildren, n.children)
	for i := 1; i < nc; i++ {
		key := n.sortedChildren[i]
		k := key.sortKey()
		j := i - 1
		for j >= 0 && n.sortedChildren[j].sortKey() > k {
			n.sortedChildren[j+1] = n.sortedChildren[j]
			j--
		}
		n.sortedChildren[j+1] = key
	}
}
