package lantern

import (
	"fmt"
	"runtime/debug"
)

// updateScope is what a parent hands down to its children during the update
// pass.
type updateScope struct {
	transform [6]float64
	alpha     float64
	clip      clipRect
	viewport  Rect // rect for inViewport
	bounds    Rect // viewport expanded by the bounds margin
}

// childUpdateMask is the subset of a parent's work that children inherit.
const childUpdateMask = UpdateGlobal | UpdateWorldAlpha | UpdateClipping | UpdateBoundsState

// updateTree runs the update pass from the root. It reports whether any node
// had pending work.
func (s *Stage) updateTree() bool {
	root := s.root
	if root.updateType == 0 {
		return false
	}
	scope := updateScope{
		transform: identityTransform,
		alpha:     1,
		viewport:  s.viewport,
		bounds:    s.viewport.Expand(s.settings.BoundsMargin.Margin()),
	}
	s.updateChild(root, &scope, 0)
	return true
}

// updateChild updates one node and isolates panics to its subtree. A node
// whose update panics is skipped by the renderer and retried on the next
// frame until it updates successfully.
func (s *Stage) updateChild(n *Node, scope *updateScope, inherited UpdateType) {
	wasFaulted := n.faulted
	defer func() {
		if r := recover(); r != nil {
			n.faulted = true
			n.renderable = false
			n.updateType |= UpdateAll
			for p := n.parent; p != nil && p.updateType&UpdateChildren == 0; p = p.parent {
				p.updateType |= UpdateChildren
			}
			s.requestRender()
			attrs := []any{"node", n.id, "panic", fmt.Sprint(r)}
			if wasFaulted {
				Logger().Debug("lantern: node update still failing", attrs...)
				return
			}
			if s.debug {
				attrs = append(attrs, "stack", string(debug.Stack()))
			}
			Logger().Warn("lantern: node update failed", attrs...)
		}
	}()
	s.updateNode(n, scope, inherited)
}

// updateNode recomputes the derived state of n selected by its update bits
// and the bits inherited from its parent, then descends into the children
// that have work.
func (s *Stage) updateNode(n *Node, scope *updateScope, inherited UpdateType) {
	if n.destroyed {
		return
	}
	ut := n.updateType | inherited
	n.updateType = 0
	if ut == 0 {
		return
	}
	n.faulted = false

	if ut&UpdateLocal != 0 {
		n.localTransform = computeLocalTransform(n)
		ut |= UpdateGlobal
	}
	if ut&UpdateGlobal != 0 {
		n.worldTransform = multiplyAffine(scope.transform, n.localTransform)
		if !isFiniteAffine(n.worldTransform) {
			n.worldTransform = identityTransform
		}
		ut |= UpdateRenderBounds
	}
	if ut&UpdateWorldAlpha != 0 {
		n.worldAlpha = scope.alpha * n.alpha
		ut |= UpdatePremultipliedColors | UpdateIsRenderable
	}
	if ut&UpdatePremultipliedColors != 0 {
		for i, c := range n.colors {
			n.premultiplied[i] = c.Premultiply(n.worldAlpha)
		}
	}
	if ut&UpdateRenderBounds != 0 {
		n.renderBounds = transformedAABB(n.worldTransform, n.w, n.h)
		if sn := n.shader; sn != nil && sn.typ.Extent != nil {
			n.renderBounds = n.renderBounds.Expand(sn.typ.Extent(sn.values))
		}
		ut |= UpdateBoundsState | UpdateIsRenderable
		if n.clipping {
			ut |= UpdateClipping
		}
	}

	var childUT UpdateType
	if ut&UpdateClipping != 0 {
		prev := n.clip
		n.clip = scope.clip
		if n.clipping {
			n.clip = clipRect{Rect: n.renderBounds, valid: true}.intersect(scope.clip)
		}
		if n.clip != prev {
			childUT |= UpdateClipping
		}
		ut |= UpdateIsRenderable
	}
	if ut&UpdateBoundsState != 0 || n.viewport != scope.viewport {
		n.viewport = scope.viewport
		s.classifyBounds(n, scope)
		ut |= UpdateIsRenderable
	}
	if ut&UpdateRenderTexture != 0 && n.rtt {
		s.textures.resizeRenderTexture(n.texture, int(n.w), int(n.h))
		n.rttDirty = true
		childUT |= UpdateBoundsState
	}
	if ut&UpdateUniforms != 0 {
		n.uniforms = nil
		if n.shader != nil {
			n.uniforms = s.shaders.uniforms(n.shader, n.w, n.h)
		}
	}
	if ut&UpdateIsRenderable != 0 {
		n.renderable = n.computeRenderable()
	}
	if ut&UpdateZIndexSort != 0 {
		rebuildSortedChildren(n)
	}

	if len(n.children) == 0 {
		n.containDirty = false
		return
	}

	childUT |= ut & (UpdateGlobal | UpdateWorldAlpha)
	if ut&UpdateRenderBounds != 0 && (n.containBounds || n.containDirty) {
		childUT |= UpdateBoundsState
	}
	n.containDirty = false
	if n.rtt {
		// Render-to-texture children live in the texture's own space, so
		// only a resize of the texture reaches them.
		childUT &^= UpdateGlobal | UpdateWorldAlpha | UpdateClipping
	}
	if ut&UpdateChildren == 0 && childUT == 0 {
		return
	}

	var child updateScope
	if n.rtt {
		n.rttDirty = true
		vp := Rect{Width: n.w, Height: n.h}
		child = updateScope{
			transform: identityTransform,
			alpha:     1,
			viewport:  vp,
			bounds:    vp.Expand(s.settings.BoundsMargin.Margin()),
		}
	} else {
		child = updateScope{
			transform: n.worldTransform,
			alpha:     n.worldAlpha,
			clip:      n.clip,
			viewport:  scope.viewport,
			bounds:    scope.bounds,
		}
		if n.containBounds {
			child.viewport = scope.viewport.Intersection(n.renderBounds)
			child.bounds = child.viewport
		}
	}
	for _, c := range n.SortedChildren() {
		s.updateChild(c, &child, childUT&childUpdateMask)
	}
}

// classifyBounds places n's render bounds relative to the viewport and emits
// an event when the classification changes.
func (s *Stage) classifyBounds(n *Node, scope *updateScope) {
	rb := n.renderBounds
	var state BoundsState
	switch {
	case rb.Intersects(scope.viewport):
		state = BoundsInViewport
	case rb.Intersects(scope.bounds):
		state = BoundsInBounds
	default:
		state = BoundsOutOfBounds
	}
	if state == n.boundsState {
		return
	}
	prev := n.boundsState
	n.boundsState = state
	var typ NodeEventType
	switch state {
	case BoundsOutOfBounds:
		typ = EventOutOfBounds
	case BoundsInBounds:
		typ = EventInBounds
	default:
		typ = EventInViewport
	}
	n.emit(NodeEvent{Type: typ, Previous: prev, Current: state})
}

// computeRenderable decides whether n is submitted to the renderer: it must
// be visible, sized, not out of bounds, not clipped away, and have something
// to draw.
func (n *Node) computeRenderable() bool {
	if n.worldAlpha <= 0 || n.w <= 0 || n.h <= 0 {
		return false
	}
	if n.boundsState == BoundsOutOfBounds {
		return false
	}
	if n.clip.valid && (n.clip.Empty() || !n.renderBounds.Intersects(n.clip.Rect)) {
		return false
	}
	if t := n.texture; t != nil {
		switch t.state {
		case TextureLoaded:
			return true
		case TextureFailed:
			// Failed textures fall back to a flat color quad.
			return n.hasColor()
		default:
			return false
		}
	}
	return n.hasColor()
}

func (n *Node) hasColor() bool {
	return n.colors[0]|n.colors[1]|n.colors[2]|n.colors[3] != 0
}
