package lantern

import (
	"fmt"
	"sort"
	"time"
)

// StopMethod is what Stop does to an animated node.
type StopMethod uint8

const (
	StopNone    StopMethod = iota // halt at the current values
	StopReverse                   // play back to the starting values, then stop
	StopReset                     // jump back to the starting values
)

func (m StopMethod) String() string {
	switch m {
	case StopReverse:
		return "reverse"
	case StopReset:
		return "reset"
	default:
		return "none"
	}
}

// AnimationProps lists the target values of an animation.
type AnimationProps struct {
	Props       map[Prop]float64
	Colors      map[ColorProp]Color
	ShaderProps map[string]float64 // numeric props of the node's shader
}

// AnimationSettings controls timing.
type AnimationSettings struct {
	Duration time.Duration
	Delay    time.Duration
	// Easing names a timing function (see ParseEasing). Timing, if set,
	// takes precedence.
	Easing     string
	Timing     TimingFunction
	Loop       bool
	StopMethod StopMethod
	// Repeat plays the animation this many extra times; -1 repeats forever.
	Repeat      int
	RepeatDelay time.Duration
}

type animProp struct {
	prop                   Prop
	orig, target, from, to float64
}

type animColor struct {
	prop                   ColorProp
	orig, target, from, to Color
}

type animShader struct {
	name                   string
	orig, target, from, to float64
}

// stepResult reports what one frame of progress produced.
type stepResult struct {
	started  bool // delay exhausted; emitted once per play
	finished bool // progress reached 1
}

// Animation advances a node's properties from their starting values to
// target values. Progress is normalized to [0, 1] and advanced by
// delta/duration once the delay has been consumed.
type Animation struct {
	node *Node

	props  []animProp
	colors []animColor
	shader []animShader

	duration  float64 // ms
	delay     float64 // ms
	delayLeft float64
	progress  float64
	timing    TimingFunction
	loop      bool
	stop      StopMethod

	captured     bool
	startEmitted bool
}

func newAnimation(n *Node, p AnimationProps, s AnimationSettings) (*Animation, error) {
	timing := s.Timing
	if timing == nil {
		fn, err := ParseEasing(s.Easing)
		if err != nil {
			return nil, err
		}
		timing = fn
	}
	a := &Animation{
		node:      n,
		duration:  float64(s.Duration) / float64(time.Millisecond),
		delay:     float64(s.Delay) / float64(time.Millisecond),
		delayLeft: float64(s.Delay) / float64(time.Millisecond),
		timing:    timing,
		loop:      s.Loop,
		stop:      s.StopMethod,
	}
	for prop, to := range p.Props {
		if prop >= numProps {
			return nil, fmt.Errorf("lantern: unknown animation prop %d", prop)
		}
		to = sanitizeFinite(to, 0)
		a.props = append(a.props, animProp{prop: prop, target: to, to: to})
	}
	sort.Slice(a.props, func(i, j int) bool { return a.props[i].prop < a.props[j].prop })
	for prop, to := range p.Colors {
		a.colors = append(a.colors, animColor{prop: prop, target: to, to: to})
	}
	sort.Slice(a.colors, func(i, j int) bool { return a.colors[i].prop < a.colors[j].prop })
	if len(p.ShaderProps) > 0 {
		sn := n.shader
		if sn == nil {
			return nil, fmt.Errorf("%w: node %d has no shader to animate", ErrInvalidShaderProp, n.id)
		}
		for name, to := range p.ShaderProps {
			v, ok := sn.Prop(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no prop %q", ErrInvalidShaderProp, sn.typ.Name, name)
			}
			if _, numeric := v.(float64); !numeric {
				return nil, fmt.Errorf("%w: %s.%s is not numeric", ErrInvalidShaderProp, sn.typ.Name, name)
			}
			a.shader = append(a.shader, animShader{name: name, target: to, to: to})
		}
		sort.Slice(a.shader, func(i, j int) bool { return a.shader[i].name < a.shader[j].name })
	}
	return a, nil
}

// Node returns the animated node.
func (a *Animation) Node() *Node { return a.node }

// Progress returns the normalized progress of the current play.
func (a *Animation) Progress() float64 { return a.progress }

// capture records the node's current values as the starting values.
func (a *Animation) capture() {
	n := a.node
	for i := range a.props {
		p := &a.props[i]
		p.orig = n.Prop(p.prop)
		p.from = p.orig
	}
	for i := range a.colors {
		c := &a.colors[i]
		c.orig = n.ColorProp(c.prop)
		c.from = c.orig
	}
	for i := range a.shader {
		s := &a.shader[i]
		if n.shader != nil {
			if v, ok := n.shader.Prop(s.name); ok {
				s.orig, _ = v.(float64)
			}
		}
		s.from = s.orig
	}
	a.captured = true
}

// rewind prepares another play from the captured starting values.
func (a *Animation) rewind(delay float64) {
	for i := range a.props {
		a.props[i].from, a.props[i].to = a.props[i].orig, a.props[i].target
	}
	for i := range a.colors {
		a.colors[i].from, a.colors[i].to = a.colors[i].orig, a.colors[i].target
	}
	for i := range a.shader {
		a.shader[i].from, a.shader[i].to = a.shader[i].orig, a.shader[i].target
	}
	a.progress = 0
	a.delayLeft = delay
}

// step advances the animation by dt milliseconds.
func (a *Animation) step(dt float64, loop bool) stepResult {
	var r stepResult
	if a.delayLeft > 0 {
		a.delayLeft -= dt
		if a.delayLeft <= 0 && !a.startEmitted {
			a.startEmitted = true
			r.started = true
		}
		return r
	}
	if !a.startEmitted {
		a.startEmitted = true
		r.started = true
	}
	if a.duration <= 0 {
		// Degenerate: set the targets and finish.
		a.progress = 1
		a.apply(1)
		r.finished = true
		return r
	}
	a.progress += dt / a.duration
	if a.progress < 1 {
		a.apply(a.progress)
		return r
	}
	a.apply(1)
	if loop && a.stop == StopNone {
		a.progress = 0
		return r
	}
	// A loop with a stop method reports finished and leaves the next play
	// to the controller.
	a.progress = 1
	r.finished = true
	return r
}

// apply writes the eased values for progress p. At p >= 1 the exact target
// values are written.
func (a *Animation) apply(p float64) {
	n := a.node
	if n.destroyed {
		return
	}
	e := 1.0
	if p < 1 {
		e = a.timing(p)
	}
	for _, ap := range a.props {
		v := ap.to
		if p < 1 && ap.from != ap.to {
			v = ap.from + e*(ap.to-ap.from)
		}
		n.SetProp(ap.prop, v)
	}
	for _, ac := range a.colors {
		v := ac.to
		if p < 1 {
			v = LerpColor(ac.from, ac.to, e)
		}
		n.SetColorProp(ac.prop, v)
	}
	if sn := n.shader; sn != nil {
		for _, as := range a.shader {
			v := as.to
			if p < 1 && as.from != as.to {
				v = as.from + e*(as.to-as.from)
			}
			if err := sn.SetProp(as.name, v); err != nil {
				Logger().Warn("lantern: shader prop animation failed", "node", n.id, "prop", as.name, "error", err)
			}
		}
	}
}

// reverse plays from the node's current values back to the captured
// starting values, restarting progress.
func (a *Animation) reverse() {
	n := a.node
	for i := range a.props {
		p := &a.props[i]
		p.from, p.to = n.Prop(p.prop), p.orig
	}
	for i := range a.colors {
		c := &a.colors[i]
		c.from, c.to = n.ColorProp(c.prop), c.orig
	}
	for i := range a.shader {
		s := &a.shader[i]
		s.from = s.to
		if n.shader != nil {
			if v, ok := n.shader.Prop(s.name); ok {
				s.from, _ = v.(float64)
			}
		}
		s.to = s.orig
	}
	a.progress = 0
	a.delayLeft = 0
}

// restore writes the captured starting values straight onto the node.
func (a *Animation) restore() {
	a.progress = 0
	if !a.captured || a.node.destroyed {
		return
	}
	n := a.node
	for _, p := range a.props {
		n.SetProp(p.prop, p.orig)
	}
	for _, c := range a.colors {
		n.SetColorProp(c.prop, c.orig)
	}
	if sn := n.shader; sn != nil {
		for _, s := range a.shader {
			_ = sn.SetProp(s.name, s.orig)
		}
	}
}
