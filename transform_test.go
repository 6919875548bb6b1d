package lantern

import (
	"math"
	"testing"
)

func affineApprox(a, b [6]float64) bool {
	for i := range a {
		if !approx(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestComputeLocalTransform(t *testing.T) {
	tests := []struct {
		name  string
		setup func(n *Node)
		want  [6]float64
	}{
		{"identity", func(n *Node) {}, identityTransform},
		{"translate", func(n *Node) { n.x, n.y = 10, 20 }, [6]float64{1, 0, 0, 1, 10, 20}},
		{"mount center", func(n *Node) {
			n.x, n.y = 50, 50
			n.mountX, n.mountY = 0.5, 0.5
		}, [6]float64{1, 0, 0, 1, 0, 0}},
		{"scale around center pivot", func(n *Node) {
			n.scaleX, n.scaleY = 2, 2
			n.pivotX, n.pivotY = 0.5, 0.5
		}, [6]float64{2, 0, 0, 2, -50, -50}},
		{"rotate 90 around center", func(n *Node) {
			n.rotation = math.Pi / 2
			n.pivotX, n.pivotY = 0.5, 0.5
		}, [6]float64{0, 1, -1, 0, 100, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{w: 100, h: 100, scaleX: 1, scaleY: 1}
			tt.setup(n)
			if got := computeLocalTransform(n); !affineApprox(got, tt.want) {
				t.Errorf("computeLocalTransform = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMultiplyAndInvertAffine(t *testing.T) {
	parent := [6]float64{2, 0, 0, 2, 10, 10}
	child := [6]float64{1, 0, 0, 1, 5, 5}
	got := multiplyAffine(parent, child)
	if !affineApprox(got, [6]float64{2, 0, 0, 2, 20, 20}) {
		t.Errorf("multiply = %v", got)
	}

	m := [6]float64{0, 1, -1, 0, 30, 40}
	if id := multiplyAffine(m, invertAffine(m)); !affineApprox(id, identityTransform) {
		t.Errorf("m * inverse(m) = %v", id)
	}
	if invertAffine([6]float64{0, 0, 0, 0, 1, 1}) != identityTransform {
		t.Error("singular matrices should invert to identity")
	}
}

func TestTransformedAABB(t *testing.T) {
	if r := transformedAABB([6]float64{-1, 0, 0, 1, 100, 0}, 50, 20); r != (Rect{50, 0, 50, 20}) {
		t.Errorf("flipped = %v", r)
	}
	r := transformedAABB([6]float64{0, 1, -1, 0, 100, 0}, 100, 50)
	if !approx(r.X, 50) || !approx(r.Y, 0) || !approx(r.Width, 50) || !approx(r.Height, 100) {
		t.Errorf("rotated = %v", r)
	}
}

func TestNodeWorldTransformAndConversion(t *testing.T) {
	ts := newTestStage(t)
	parent := ts.box(ts.Root(), 100, 100, 200, 200, 0)
	parent.SetScaleX(2)
	parent.SetScaleY(2)
	child := ts.box(parent, 10, 20, 10, 10, ColorWhite)
	ts.step(0)

	// The parent scales around its center, so its origin lands at (0, 0).
	if got := child.WorldTransform(); !affineApprox(got, [6]float64{2, 0, 0, 2, 20, 40}) {
		t.Errorf("world transform = %v", got)
	}
	if x, y := child.LocalToWorld(5, 5); !approx(x, 30) || !approx(y, 50) {
		t.Errorf("LocalToWorld = %v, %v", x, y)
	}
	if x, y := child.WorldToLocal(30, 50); !approx(x, 5) || !approx(y, 5) {
		t.Errorf("WorldToLocal = %v, %v", x, y)
	}
	if child.RenderBounds() != (Rect{20, 40, 20, 20}) {
		t.Errorf("RenderBounds = %v", child.RenderBounds())
	}
}

func TestIsFiniteAffine(t *testing.T) {
	if !isFiniteAffine(identityTransform) {
		t.Error("identity is finite")
	}
	if isFiniteAffine([6]float64{1, 0, 0, 1, math.NaN(), 0}) {
		t.Error("NaN translation should not be finite")
	}
}
