package lantern

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform computes the local affine matrix from the node's
// geometry. Returns [a, b, c, d, tx, ty].
//
// The mount point shifts the node so that (x, y) names the mount anchor
// rather than the top-left corner. Scale and rotation happen around the
// pivot point:
//
//	Translate(x - mountX*w + pivotX*w, y - mountY*h + pivotY*h) -> Rotate -> Scale -> Translate(-pivotX*w, -pivotY*h)
func computeLocalTransform(n *Node) [6]float64 {
	w, h := n.w, n.h
	px := n.pivotX * w
	py := n.pivotY * h

	sx := n.scaleX
	sy := n.scaleY

	var sin, cos float64
	if n.rotation == 0 {
		sin, cos = 0, 1
	} else {
		sin, cos = math.Sincos(n.rotation)
	}

	// Rotate * Scale:
	a := cos * sx
	b := sin * sx
	c := -sin * sy
	d := cos * sy

	// Translate(-pivot) folded in, then the mount/pivot translation.
	tx := n.x - n.mountX*w + px - (a*px + c*py)
	ty := n.y - n.mountY*h + py - (b*px + d*py)

	return [6]float64{a, b, c, d, tx, ty}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular (determinant near 0).
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// transformedAABB returns the axis-aligned bounding box of the rectangle
// (0, 0, w, h) after applying m.
func transformedAABB(m [6]float64, w, h float64) Rect {
	// Fast path for unrotated, unskewed matrices.
	if m[1] == 0 && m[2] == 0 {
		x0, y0 := m[4], m[5]
		x1, y1 := m[4]+m[0]*w, m[5]+m[3]*h
		return Rect{
			X:      math.Min(x0, x1),
			Y:      math.Min(y0, y1),
			Width:  math.Abs(x1 - x0),
			Height: math.Abs(y1 - y0),
		}
	}
	x0, y0 := transformPoint(m, 0, 0)
	x1, y1 := transformPoint(m, w, 0)
	x2, y2 := transformPoint(m, 0, h)
	x3, y3 := transformPoint(m, w, h)
	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// isFiniteAffine reports whether every element of m is finite.
func isFiniteAffine(m [6]float64) bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// --- Coordinate conversion ---

// WorldToLocal converts a world-space point to this node's local coordinate
// space, as of the last update pass.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	inv := invertAffine(n.worldTransform)
	return transformPoint(inv, wx, wy)
}

// LocalToWorld converts a local-space point to world-space, as of the last
// update pass.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return transformPoint(n.worldTransform, lx, ly)
}

// WorldTransform returns the node's world affine matrix [a, b, c, d, tx, ty]
// as of the last update pass. For nodes inside a render-to-texture subtree
// the matrix is relative to the render-to-texture ancestor.
func (n *Node) WorldTransform() [6]float64 {
	return n.worldTransform
}
