package lantern

import "math"

// Color is a packed 0xRRGGBBAA color. Not premultiplied; premultiplication
// against world alpha happens during the update pass.
type Color uint32

// Common colors.
const (
	ColorTransparent Color = 0x00000000
	ColorBlack       Color = 0x000000ff
	ColorWhite       Color = 0xffffffff
)

// RGBA builds a Color from 8-bit channels.
func RGBA(r, g, b, a uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

// R returns the red channel.
func (c Color) R() uint8 { return uint8(c >> 24) }

// G returns the green channel.
func (c Color) G() uint8 { return uint8(c >> 16) }

// B returns the blue channel.
func (c Color) B() uint8 { return uint8(c >> 8) }

// A returns the alpha channel.
func (c Color) A() uint8 { return uint8(c) }

// Floats returns the channels normalized to [0, 1].
func (c Color) Floats() (r, g, b, a float32) {
	return float32(c.R()) / 255, float32(c.G()) / 255, float32(c.B()) / 255, float32(c.A()) / 255
}

// Premultiply scales the color channels by the color's own alpha times alpha
// and returns the result with alpha = A * alpha.
func (c Color) Premultiply(alpha float64) Color {
	a := float64(c.A()) / 255 * clamp01(alpha)
	return RGBA(
		uint8(math.Round(float64(c.R())*a)),
		uint8(math.Round(float64(c.G())*a)),
		uint8(math.Round(float64(c.B())*a)),
		uint8(math.Round(a*255)),
	)
}

// LerpColor interpolates each channel of a and b independently by t.
func LerpColor(a, b Color, t float64) Color {
	ch := func(x, y uint8) uint8 {
		v := float64(x) + (float64(y)-float64(x))*t
		return uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return RGBA(ch(a.R(), b.R()), ch(a.G(), b.G()), ch(a.B(), b.B()), ch(a.A(), b.A()))
}

// Vec2 is a 2D vector used for positions, offsets, sizes, and directions.
type Vec2 struct {
	X, Y float64
}

// Dimensions is a width/height pair reported by texture and text events.
type Dimensions struct {
	Width, Height float64
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Intersection returns the overlapping area of r and other. Disjoint
// rectangles produce a zero-size rect positioned at the clamped corner.
func (r Rect) Intersection(other Rect) Rect {
	x0 := math.Max(r.X, other.X)
	y0 := math.Max(r.Y, other.Y)
	x1 := math.Min(r.X+r.Width, other.X+other.Width)
	y1 := math.Min(r.Y+r.Height, other.Y+other.Height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// ContainsRect reports whether other lies entirely within r.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Expand grows the rect by the given margins.
func (r Rect) Expand(m Margin) Rect {
	return Rect{
		X:      r.X - m.Left,
		Y:      r.Y - m.Top,
		Width:  r.Width + m.Left + m.Right,
		Height: r.Height + m.Top + m.Bottom,
	}
}

// Margin holds per-side distances, used for the bounds margin around the
// viewport.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// UniformMargin returns a Margin with the same value on every side.
func UniformMargin(v float64) Margin {
	return Margin{v, v, v, v}
}

// NodeKind tags the shape of a node's data. Kind-specific data lives in
// side tables on the Stage keyed by node ID.
type NodeKind uint8

const (
	NodeKindPlain NodeKind = iota // geometry, color, texture, shader
	NodeKindText                  // plain node plus a text side-table entry
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindPlain:
		return "plain"
	case NodeKindText:
		return "text"
	default:
		return "unknown"
	}
}

// BoundsState classifies a node's render bounds against the viewport.
type BoundsState uint8

const (
	BoundsInit        BoundsState = iota // not yet classified
	BoundsOutOfBounds                    // outside the margin-expanded viewport
	BoundsInBounds                       // inside the margin but not the viewport
	BoundsInViewport                     // intersects the viewport
)

func (s BoundsState) String() string {
	switch s {
	case BoundsOutOfBounds:
		return "outOfBounds"
	case BoundsInBounds:
		return "inBounds"
	case BoundsInViewport:
		return "inViewport"
	default:
		return "init"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sanitizeDim clamps NaN, infinite and negative dimensions to zero.
func sanitizeDim(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// sanitizeFinite replaces NaN and infinities with fallback.
func sanitizeFinite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
