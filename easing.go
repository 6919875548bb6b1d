package lantern

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/tanema/gween/ease"
)

// TimingFunction maps linear progress in [0, 1] to eased progress. Eased
// values may leave [0, 1] for overshooting curves (back, elastic).
type TimingFunction func(p float64) float64

// Linear is the identity timing function.
func Linear(p float64) float64 { return p }

// CubicBezier returns the CSS cubic-bezier(x1, y1, x2, y2) curve.
func CubicBezier(x1, y1, x2, y2 float64) TimingFunction {
	if x1 == y1 && x2 == y2 {
		return Linear
	}
	cx := 3 * x1
	bx := 3*(x2-x1) - cx
	ax := 1 - cx - bx
	cy := 3 * y1
	by := 3*(y2-y1) - cy
	ay := 1 - cy - by

	sampleX := func(t float64) float64 { return ((ax*t+bx)*t + cx) * t }
	sampleY := func(t float64) float64 { return ((ay*t+by)*t + cy) * t }
	slopeX := func(t float64) float64 { return (3*ax*t+2*bx)*t + cx }

	solve := func(x float64) float64 {
		// Newton-Raphson, falling back to bisection when the slope is flat.
		t := x
		for i := 0; i < 8; i++ {
			d := sampleX(t) - x
			if math.Abs(d) < 1e-7 {
				return t
			}
			s := slopeX(t)
			if math.Abs(s) < 1e-6 {
				break
			}
			t -= d / s
		}
		lo, hi := 0.0, 1.0
		t = x
		for i := 0; i < 32 && lo < hi; i++ {
			v := sampleX(t)
			if math.Abs(v-x) < 1e-7 {
				return t
			}
			if x > v {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return t
	}
	return func(p float64) float64 {
		if p <= 0 {
			return 0
		}
		if p >= 1 {
			return 1
		}
		return sampleY(solve(p))
	}
}

// StepStart jumps to the end value as soon as the animation starts.
func StepStart(p float64) float64 {
	if p > 0 {
		return 1
	}
	return 0
}

// StepEnd holds the start value until the animation finishes.
func StepEnd(p float64) float64 {
	if p >= 1 {
		return 1
	}
	return 0
}

// fromTween adapts a gween easing function to a TimingFunction.
func fromTween(fn ease.TweenFunc) TimingFunction {
	return func(p float64) float64 {
		return float64(fn(float32(p), 0, 1, 1))
	}
}

var namedEasings = map[string]TimingFunction{
	"linear":      Linear,
	"ease":        CubicBezier(0.25, 0.1, 0.25, 1),
	"ease-in":     CubicBezier(0.42, 0, 1, 1),
	"ease-out":    CubicBezier(0, 0, 0.58, 1),
	"ease-in-out": CubicBezier(0.42, 0, 0.58, 1),
	"step-start":  StepStart,
	"step-end":    StepEnd,
}

func init() {
	families := []struct {
		name                string
		in, out, inOut, oIn ease.TweenFunc
	}{
		{"quad", ease.InQuad, ease.OutQuad, ease.InOutQuad, ease.OutInQuad},
		{"cubic", ease.InCubic, ease.OutCubic, ease.InOutCubic, ease.OutInCubic},
		{"quart", ease.InQuart, ease.OutQuart, ease.InOutQuart, ease.OutInQuart},
		{"quint", ease.InQuint, ease.OutQuint, ease.InOutQuint, ease.OutInQuint},
		{"sine", ease.InSine, ease.OutSine, ease.InOutSine, ease.OutInSine},
		{"expo", ease.InExpo, ease.OutExpo, ease.InOutExpo, ease.OutInExpo},
		{"circ", ease.InCirc, ease.OutCirc, ease.InOutCirc, ease.OutInCirc},
		{"elastic", ease.InElastic, ease.OutElastic, ease.InOutElastic, ease.OutInElastic},
		{"back", ease.InBack, ease.OutBack, ease.InOutBack, ease.OutInBack},
		{"bounce", ease.InBounce, ease.OutBounce, ease.InOutBounce, ease.OutInBounce},
	}
	for _, f := range families {
		namedEasings["ease-in-"+f.name] = fromTween(f.in)
		namedEasings["ease-out-"+f.name] = fromTween(f.out)
		namedEasings["ease-in-out-"+f.name] = fromTween(f.inOut)
		namedEasings["ease-out-in-"+f.name] = fromTween(f.oIn)
	}
}

var (
	easingMu    sync.Mutex
	easingCache = map[string]TimingFunction{}
)

// ParseEasing resolves an easing name: a CSS keyword (linear, ease,
// ease-in, ease-out, ease-in-out, step-start, step-end), a
// cubic-bezier(x1, y1, x2, y2) expression, or a named curve such as
// ease-in-quad or ease-out-bounce. The empty name is linear.
func ParseEasing(name string) (TimingFunction, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Linear, nil
	}
	if fn, ok := namedEasings[name]; ok {
		return fn, nil
	}
	if !strings.HasPrefix(name, "cubic-bezier(") || !strings.HasSuffix(name, ")") {
		return nil, fmt.Errorf("lantern: unknown easing %q", name)
	}
	easingMu.Lock()
	defer easingMu.Unlock()
	if fn, ok := easingCache[name]; ok {
		return fn, nil
	}
	args := strings.Split(name[len("cubic-bezier("):len(name)-1], ",")
	if len(args) != 4 {
		return nil, fmt.Errorf("lantern: cubic-bezier needs 4 arguments, got %d", len(args))
	}
	var v [4]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return nil, fmt.Errorf("lantern: invalid cubic-bezier argument %q: %w", a, err)
		}
		v[i] = f
	}
	if v[0] < 0 || v[0] > 1 || v[2] < 0 || v[2] > 1 {
		return nil, fmt.Errorf("lantern: cubic-bezier x values must be within [0, 1]")
	}
	fn := CubicBezier(v[0], v[1], v[2], v[3])
	easingCache[name] = fn
	return fn, nil
}
