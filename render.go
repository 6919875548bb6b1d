package lantern

import "time"

// renderStats holds per-frame timing and draw metrics. Only populated in
// debug mode.
type renderStats struct {
	updateTime  time.Duration
	collectTime time.Duration
	submitTime  time.Duration
	quads       int
	batches     int
	passes      int
}

// render draws every dirty render-to-texture subtree, then the screen.
func (s *Stage) render() {
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}
	s.stats.quads, s.stats.batches, s.stats.passes = 0, 0, 0

	s.renderTargets(s.root)

	s.quads = s.quads[:0]
	s.quads = s.collect(s.root, s.quads)
	if s.debug {
		s.stats.collectTime = time.Since(t0)
		t0 = time.Now()
	}
	s.submit(nil, s.quads, s.settings.ClearColor)
	if s.debug {
		s.stats.submitTime = time.Since(t0)
	}
}

// renderTargets renders RTT subtrees post-order, so nested targets are
// complete before the target that composites them.
func (s *Stage) renderTargets(n *Node) {
	if n.destroyed || n.faulted {
		return
	}
	for _, c := range n.SortedChildren() {
		s.renderTargets(c)
	}
	if !n.rtt || !n.rttDirty {
		return
	}
	t := n.texture
	if t == nil || t.state != TextureLoaded {
		return
	}
	quads := s.rttQuads[:0]
	for _, c := range n.SortedChildren() {
		quads = s.collect(c, quads)
	}
	s.submit(t, quads, ColorTransparent)
	s.rttQuads = quads[:0]
	n.rttDirty = false
}

// collect appends the quads of n's subtree in paint order. The children of
// an RTT node are drawn into its texture, not here. A faulted node skips its
// whole subtree until it updates successfully again.
func (s *Stage) collect(n *Node, out []Quad) []Quad {
	if n.destroyed || n.faulted {
		return out
	}
	if n.renderable {
		out = append(out, n.quad())
	}
	if n.rtt {
		return out
	}
	for _, c := range n.SortedChildren() {
		out = s.collect(c, out)
	}
	return out
}

// quad builds n's draw description from its derived state.
func (n *Node) quad() Quad {
	q := Quad{
		NodeID:    n.id,
		Transform: n.worldTransform,
		Width:     n.w,
		Height:    n.h,
		Colors:    n.premultiplied,
		FlipX:     n.textureOpts.FlipX,
		FlipY:     n.textureOpts.FlipY,
		Uniforms:  n.uniforms,
		Clip:      n.clip.Rect,
		Clipped:   n.clip.valid,
	}
	if sn := n.shader; sn != nil {
		q.Shader = sn.typ
		if sn.typ.Extent != nil {
			q.Extent = sn.typ.Extent(sn.values)
		}
	}
	if t := n.texture; t != nil && t.state == TextureLoaded {
		q.Texture = t.Root()
		q.Src = t.SourceRegion()
		if n.hasSrc {
			q.Src = Rect{X: q.Src.X + n.src.X, Y: q.Src.Y + n.src.Y, Width: n.src.Width, Height: n.src.Height}
		}
		if !n.hasColor() {
			// Untinted.
			w := ColorWhite.Premultiply(n.worldAlpha)
			q.Colors = [4]Color{w, w, w, w}
		}
	}
	return q
}

// submit groups quads into batches and hands them to the renderer.
func (s *Stage) submit(target *Texture, quads []Quad, clear Color) {
	s.batches = appendBatches(s.batches[:0], target, quads)
	s.renderer.BeginFrame(target, clear)
	for i := range s.batches {
		s.renderer.DrawBatch(&s.batches[i])
	}
	s.renderer.EndFrame()
	s.stats.quads += len(quads)
	s.stats.batches += len(s.batches)
	s.stats.passes++
	for i := range s.batches {
		s.batches[i] = Batch{}
	}
}
