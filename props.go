package lantern

import "fmt"

// Prop names a numeric node property. Animations and the cross-thread mirror
// address properties through Prop instead of per-field setters.
type Prop uint8

const (
	PropX Prop = iota
	PropY
	PropWidth
	PropHeight
	PropScaleX
	PropScaleY
	PropRotation
	PropMountX
	PropMountY
	PropPivotX
	PropPivotY
	PropAlpha
	PropZIndex

	numProps
)

var propNames = [numProps]string{
	"x", "y", "width", "height", "scaleX", "scaleY", "rotation",
	"mountX", "mountY", "pivotX", "pivotY", "alpha", "zIndex",
}

func (p Prop) String() string {
	if p < numProps {
		return propNames[p]
	}
	return fmt.Sprintf("Prop(%d)", uint8(p))
}

// ParseProp returns the Prop with the given name.
func ParseProp(name string) (Prop, bool) {
	for i, n := range propNames {
		if n == name {
			return Prop(i), true
		}
	}
	return 0, false
}

// Prop returns the current value of a numeric property.
func (n *Node) Prop(p Prop) float64 {
	switch p {
	case PropX:
		return n.x
	case PropY:
		return n.y
	case PropWidth:
		return n.w
	case PropHeight:
		return n.h
	case PropScaleX:
		return n.scaleX
	case PropScaleY:
		return n.scaleY
	case PropRotation:
		return n.rotation
	case PropMountX:
		return n.mountX
	case PropMountY:
		return n.mountY
	case PropPivotX:
		return n.pivotX
	case PropPivotY:
		return n.pivotY
	case PropAlpha:
		return n.alpha
	case PropZIndex:
		return float64(n.zIndex)
	}
	panic(fmt.Sprintf("lantern: unknown prop %d", p))
}

// SetProp sets a numeric property, applying the same validation and dirty
// flags as the dedicated setter.
func (n *Node) SetProp(p Prop, v float64) {
	switch p {
	case PropX:
		n.SetX(v)
	case PropY:
		n.SetY(v)
	case PropWidth:
		n.SetWidth(v)
	case PropHeight:
		n.SetHeight(v)
	case PropScaleX:
		n.SetScaleX(v)
	case PropScaleY:
		n.SetScaleY(v)
	case PropRotation:
		n.SetRotation(v)
	case PropMountX:
		n.SetMountX(v)
	case PropMountY:
		n.SetMountY(v)
	case PropPivotX:
		n.SetPivotX(v)
	case PropPivotY:
		n.SetPivotY(v)
	case PropAlpha:
		n.SetAlpha(v)
	case PropZIndex:
		n.SetZIndex(int(v))
	default:
		panic(fmt.Sprintf("lantern: unknown prop %d", p))
	}
}

// ColorProp names a group of corner colors.
type ColorProp uint8

const (
	ColorPropAll ColorProp = iota
	ColorPropTop
	ColorPropBottom
	ColorPropLeft
	ColorPropRight
	ColorPropTl
	ColorPropTr
	ColorPropBl
	ColorPropBr
)

// corners lists the corner indices (tl=0, tr=1, bl=2, br=3) a group covers.
func (c ColorProp) corners() []int {
	switch c {
	case ColorPropTop:
		return []int{0, 1}
	case ColorPropBottom:
		return []int{2, 3}
	case ColorPropLeft:
		return []int{0, 2}
	case ColorPropRight:
		return []int{1, 3}
	case ColorPropTl:
		return []int{0}
	case ColorPropTr:
		return []int{1}
	case ColorPropBl:
		return []int{2}
	case ColorPropBr:
		return []int{3}
	default:
		return []int{0, 1, 2, 3}
	}
}

// ColorProp returns the color of the first corner in the group.
func (n *Node) ColorProp(c ColorProp) Color {
	return n.colors[c.corners()[0]]
}

// SetColorProp sets every corner in the group.
func (n *Node) SetColorProp(c ColorProp, v Color) {
	changed := false
	for _, i := range c.corners() {
		if n.colors[i] != v {
			n.colors[i] = v
			changed = true
		}
	}
	if changed {
		n.setUpdateType(UpdatePremultipliedColors | UpdateIsRenderable)
	}
}

// --- Geometry ---

// X returns the local x position of the mount point.
func (n *Node) X() float64 { return n.x }

// Y returns the local y position of the mount point.
func (n *Node) Y() float64 { return n.y }

// SetX sets the local x position. NaN and infinities become 0.
func (n *Node) SetX(v float64) {
	v = sanitizeFinite(v, 0)
	if n.x == v {
		return
	}
	n.x = v
	n.setUpdateType(UpdateLocal)
}

// SetY sets the local y position. NaN and infinities become 0.
func (n *Node) SetY(v float64) {
	v = sanitizeFinite(v, 0)
	if n.y == v {
		return
	}
	n.y = v
	n.setUpdateType(UpdateLocal)
}

// SetPosition sets x and y.
func (n *Node) SetPosition(x, y float64) {
	n.SetX(x)
	n.SetY(y)
}

// Width returns the node width.
func (n *Node) Width() float64 { return n.w }

// Height returns the node height.
func (n *Node) Height() float64 { return n.h }

// sizeUpdate is the work a width or height change schedules.
const sizeUpdate = UpdateLocal | UpdateRenderBounds | UpdateIsRenderable | UpdateUniforms | UpdateRenderTexture

// SetWidth sets the width. NaN, infinite and negative values become 0.
func (n *Node) SetWidth(v float64) {
	v = sanitizeDim(v)
	if n.w == v {
		return
	}
	n.w = v
	n.setUpdateType(sizeUpdate)
}

// SetHeight sets the height. NaN, infinite and negative values become 0.
func (n *Node) SetHeight(v float64) {
	v = sanitizeDim(v)
	if n.h == v {
		return
	}
	n.h = v
	n.setUpdateType(sizeUpdate)
}

// SetSize sets width and height.
func (n *Node) SetSize(w, h float64) {
	n.SetWidth(w)
	n.SetHeight(h)
}

// ScaleX returns the horizontal scale.
func (n *Node) ScaleX() float64 { return n.scaleX }

// ScaleY returns the vertical scale.
func (n *Node) ScaleY() float64 { return n.scaleY }

// SetScaleX sets the horizontal scale.
func (n *Node) SetScaleX(v float64) {
	v = sanitizeFinite(v, 1)
	if n.scaleX == v {
		return
	}
	n.scaleX = v
	n.setUpdateType(UpdateLocal)
}

// SetScaleY sets the vertical scale.
func (n *Node) SetScaleY(v float64) {
	v = sanitizeFinite(v, 1)
	if n.scaleY == v {
		return
	}
	n.scaleY = v
	n.setUpdateType(UpdateLocal)
}

// SetScale sets both scale factors.
func (n *Node) SetScale(sx, sy float64) {
	n.SetScaleX(sx)
	n.SetScaleY(sy)
}

// Rotation returns the rotation in radians.
func (n *Node) Rotation() float64 { return n.rotation }

// SetRotation sets the rotation in radians around the pivot point.
func (n *Node) SetRotation(v float64) {
	v = sanitizeFinite(v, 0)
	if n.rotation == v {
		return
	}
	n.rotation = v
	n.setUpdateType(UpdateLocal)
}

// MountX returns the horizontal mount anchor.
func (n *Node) MountX() float64 { return n.mountX }

// MountY returns the vertical mount anchor.
func (n *Node) MountY() float64 { return n.mountY }

// SetMountX sets the normalized horizontal anchor that x refers to.
func (n *Node) SetMountX(v float64) {
	v = sanitizeFinite(v, 0)
	if n.mountX == v {
		return
	}
	n.mountX = v
	n.setUpdateType(UpdateLocal)
}

// SetMountY sets the normalized vertical anchor that y refers to.
func (n *Node) SetMountY(v float64) {
	v = sanitizeFinite(v, 0)
	if n.mountY == v {
		return
	}
	n.mountY = v
	n.setUpdateType(UpdateLocal)
}

// SetMount sets both mount anchors.
func (n *Node) SetMount(x, y float64) {
	n.SetMountX(x)
	n.SetMountY(y)
}

// PivotX returns the horizontal pivot.
func (n *Node) PivotX() float64 { return n.pivotX }

// PivotY returns the vertical pivot.
func (n *Node) PivotY() float64 { return n.pivotY }

// SetPivotX sets the normalized horizontal origin of scale and rotation.
func (n *Node) SetPivotX(v float64) {
	v = sanitizeFinite(v, 0.5)
	if n.pivotX == v {
		return
	}
	n.pivotX = v
	n.setUpdateType(UpdateLocal)
}

// SetPivotY sets the normalized vertical origin of scale and rotation.
func (n *Node) SetPivotY(v float64) {
	v = sanitizeFinite(v, 0.5)
	if n.pivotY == v {
		return
	}
	n.pivotY = v
	n.setUpdateType(UpdateLocal)
}

// SetPivot sets both pivot coordinates.
func (n *Node) SetPivot(x, y float64) {
	n.SetPivotX(x)
	n.SetPivotY(y)
}

// --- Visual ---

// Alpha returns the node's own alpha.
func (n *Node) Alpha() float64 { return n.alpha }

// SetAlpha sets the alpha, clamped to [0, 1].
func (n *Node) SetAlpha(v float64) {
	v = clamp01(sanitizeFinite(v, 1))
	if n.alpha == v {
		return
	}
	n.alpha = v
	n.setUpdateType(UpdateWorldAlpha)
}

// Color returns the top-left corner color.
func (n *Node) Color() Color { return n.colors[0] }

// SetColor sets all four corner colors.
func (n *Node) SetColor(c Color) { n.SetColorProp(ColorPropAll, c) }

// Colors returns the corner colors tl, tr, bl, br.
func (n *Node) Colors() [4]Color { return n.colors }

// Clipping reports whether the node clips its subtree to its bounds.
func (n *Node) Clipping() bool { return n.clipping }

// SetClipping toggles clipping of the subtree to the node's bounds.
func (n *Node) SetClipping(v bool) {
	if n.clipping == v {
		return
	}
	n.clipping = v
	n.setUpdateType(UpdateClipping)
}

// ContainBounds reports whether descendants are classified against this
// node's bounds instead of the full viewport.
func (n *Node) ContainBounds() bool { return n.containBounds }

// SetContainBounds toggles bounds containment for descendants.
func (n *Node) SetContainBounds(v bool) {
	if n.containBounds == v {
		return
	}
	n.containBounds = v
	n.containDirty = true
	n.setUpdateType(UpdateRenderBounds)
}

// --- Ordering ---

// ZIndex returns the z-index.
func (n *Node) ZIndex() int { return n.zIndex }

// SetZIndex sets the z-index. Siblings are re-sorted on the next update pass
// unless the node is z-locked, in which case it keeps its slot.
func (n *Node) SetZIndex(z int) {
	checkAlive(n, "SetZIndex")
	if n.zIndex == z {
		return
	}
	n.zIndex = z
	if n.zIndexLocked {
		return
	}
	if n.parent != nil {
		n.parent.setUpdateType(UpdateZIndexSort)
	}
}

// ZIndexLocked reports whether the node's paint slot is pinned.
func (n *Node) ZIndexLocked() bool { return n.zIndexLocked }

// SetZIndexLocked pins the node's paint slot at its current z-index. While
// locked, z-index changes do not move it relative to its siblings.
func (n *Node) SetZIndexLocked(v bool) {
	checkAlive(n, "SetZIndexLocked")
	if n.zIndexLocked == v {
		return
	}
	n.zIndexLocked = v
	n.lockedSlot = n.zIndex
	if n.parent != nil {
		n.parent.setUpdateType(UpdateZIndexSort)
	}
}
