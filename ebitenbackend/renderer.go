package ebitenbackend

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/lantern"
)

// maxTintsPerTexture bounds the tinted copies kept for one texture.
const maxTintsPerTexture = 4

// Renderer draws lantern quads with Ebitengine. The screen pass renders into
// an offscreen canvas, which Game copies to the window.
type Renderer struct {
	width, height int

	images map[lantern.TextureID]*ebiten.Image
	pool   targetPool
	canvas *ebiten.Image
	white  *ebiten.Image

	sources  map[string]string
	programs map[string]*ebiten.Shader
	uniforms map[string]any

	mgr     *lantern.TextureManager
	tints   map[lantern.TextureID]*tintSet
	scratch []*ebiten.Image

	target *ebiten.Image
	verts  []ebiten.Vertex
	inds   []uint32
}

var (
	_ lantern.Renderer             = (*Renderer)(nil)
	_ lantern.TintFreer            = (*Renderer)(nil)
	_ lantern.TextureManagerBinder = (*Renderer)(nil)
)

// NewRenderer returns a renderer whose screen is w x h pixels.
func NewRenderer(w, h int) *Renderer {
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("ebitenbackend: invalid screen size %dx%d", w, h))
	}
	r := &Renderer{
		width:    w,
		height:   h,
		images:   make(map[lantern.TextureID]*ebiten.Image),
		pool:     newTargetPool(defaultMaxIdle),
		sources:  make(map[string]string, len(builtinShaderSources)),
		programs: make(map[string]*ebiten.Shader),
		uniforms: make(map[string]any),
		tints:    make(map[lantern.TextureID]*tintSet),
	}
	for name, src := range builtinShaderSources {
		r.sources[name] = src
	}
	r.canvas = ebiten.NewImage(w, h)
	r.white = ebiten.NewImage(1, 1)
	r.white.Fill(color.White)
	return r
}

// Size returns the screen size.
func (r *Renderer) Size() (w, h int) { return r.width, r.height }

// Canvas returns the image the screen pass draws into.
func (r *Renderer) Canvas() *ebiten.Image { return r.canvas }

// BindTextureManager lets the renderer report tint cache memory.
func (r *Renderer) BindTextureManager(m *lantern.TextureManager) { r.mgr = m }

// UploadTexture copies img into a new GPU image for t.
func (r *Renderer) UploadTexture(t *lantern.Texture, img image.Image) error {
	if img == nil {
		return fmt.Errorf("ebitenbackend: nil image for %s", t)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("ebitenbackend: empty image for %s", t)
	}
	r.dropTints(t, true)
	if old, ok := r.images[t.ID()]; ok {
		old.Deallocate()
	}
	r.images[t.ID()] = ebiten.NewImageFromImage(img)
	return nil
}

// CreateRenderTarget allocates (or resizes) the offscreen target of a
// render texture.
func (r *Renderer) CreateRenderTarget(t *lantern.Texture, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("ebitenbackend: invalid render target size %dx%d", w, h)
	}
	r.dropTints(t, true)
	if old, ok := r.images[t.ID()]; ok {
		if _, target := r.pool.target(t.ID()); !target {
			old.Deallocate()
		}
	}
	r.images[t.ID()] = r.pool.attach(t.ID(), w, h).img
	return nil
}

// FreeTexture releases t's GPU image.
func (r *Renderer) FreeTexture(t *lantern.Texture) {
	img, ok := r.images[t.ID()]
	if !ok {
		return
	}
	r.release(t.ID(), img)
	delete(r.images, t.ID())
}

func (r *Renderer) release(id lantern.TextureID, img *ebiten.Image) {
	if r.pool.detach(id) {
		return
	}
	img.Deallocate()
}

// NumImages returns the number of live texture images, render targets
// included.
func (r *Renderer) NumImages() int { return len(r.images) }

// BeginFrame starts drawing into target, or the canvas when target is nil.
func (r *Renderer) BeginFrame(target *lantern.Texture, clear lantern.Color) {
	r.target = r.canvas
	if target != nil {
		rt, ok := r.pool.target(target.ID())
		if !ok {
			r.target = nil
			return
		}
		r.target = rt.view()
	}
	if clear.A() == 0 {
		r.target.Clear()
		return
	}
	r.target.Fill(color.RGBA{R: clear.R(), G: clear.G(), B: clear.B(), A: clear.A()})
}

// EndFrame finishes the current target and recycles this frame's scratch
// images.
func (r *Renderer) EndFrame() {
	r.target = nil
	for i, img := range r.scratch {
		r.pool.put(img)
		r.scratch[i] = nil
	}
	r.scratch = r.scratch[:0]
}

// DrawBatch draws a batch into the current target. Default quads are
// coalesced into one DrawTriangles32 call; shader quads are drawn one by
// one.
func (r *Renderer) DrawBatch(b *lantern.Batch) {
	dst := r.target
	if dst == nil || len(b.Quads) == 0 {
		return
	}
	if b.Clipped {
		rect := clipRect(b.Clip)
		if rect.Empty() {
			return
		}
		dst = dst.SubImage(rect.Add(dst.Bounds().Min)).(*ebiten.Image)
	}

	if b.Shader == nil || b.Shader.Name == lantern.ShaderDefault {
		src := r.source(b.Texture)
		if src == nil {
			return
		}
		r.verts = r.verts[:0]
		r.inds = r.inds[:0]
		for i := range b.Quads {
			q := &b.Quads[i]
			r.verts, r.inds = appendQuad(r.verts, r.inds, q.Transform, q.Width, q.Height, quadSrc(q, b.Texture), q.FlipX, q.FlipY, q.Colors)
		}
		var op ebiten.DrawTrianglesOptions
		op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
		dst.DrawTriangles32(r.verts, r.inds, src, &op)
		return
	}
	prog := r.program(b.Shader)
	for i := range b.Quads {
		r.drawShaderQuad(dst, &b.Quads[i], prog)
	}
}

// source returns the image a batch samples: the texture's image, or the
// white pixel for flat color quads.
func (r *Renderer) source(t *lantern.Texture) *ebiten.Image {
	if t == nil {
		return r.white
	}
	return r.images[t.ID()]
}

// quadSrc returns the source rect of q, or the white pixel for a flat quad.
func quadSrc(q *lantern.Quad, t *lantern.Texture) lantern.Rect {
	if t == nil {
		return lantern.Rect{Width: 1, Height: 1}
	}
	return q.Src
}

// drawShaderQuad renders the tinted quad into a base image grown by the
// effect's extent, then draws the base through prog.
func (r *Renderer) drawShaderQuad(dst *ebiten.Image, q *lantern.Quad, prog *ebiten.Shader) {
	ext := q.Extent
	bw := int(math.Ceil(q.Width + ext.Left + ext.Right))
	bh := int(math.Ceil(q.Height + ext.Top + ext.Bottom))
	if bw <= 0 || bh <= 0 {
		return
	}
	base := r.base(q, bw, bh)
	if base == nil {
		return
	}

	var geo ebiten.GeoM
	geo.Translate(-ext.Left, -ext.Top)
	geo.Concat(transformGeoM(q.Transform))

	if prog == nil {
		// No program for this type; draw the plain quad.
		var op ebiten.DrawImageOptions
		op.GeoM = geo
		dst.DrawImage(base, &op)
		return
	}

	clear(r.uniforms)
	for k, v := range q.Uniforms {
		r.uniforms[k] = v
	}
	r.uniforms["Offset"] = []float32{float32(ext.Left), float32(ext.Top)}

	var op ebiten.DrawRectShaderOptions
	op.GeoM = geo
	op.Images[0] = base
	op.Uniforms = r.uniforms
	dst.DrawRectShader(bw, bh, prog, &op)
}

// base returns q's tinted quad drawn at (ext.Left, ext.Top) in a bw x bh
// image. Textured bases are cached per texture; flat ones are scratch
// images recycled at EndFrame.
func (r *Renderer) base(q *lantern.Quad, bw, bh int) *ebiten.Image {
	if q.Texture == nil {
		img := r.pool.take(bw, bh)
		r.scratch = append(r.scratch, img)
		sub := img.SubImage(image.Rect(0, 0, bw, bh)).(*ebiten.Image)
		r.paintBase(sub, q, r.white, lantern.Rect{Width: 1, Height: 1})
		return sub
	}
	src, ok := r.images[q.Texture.ID()]
	if !ok {
		return nil
	}
	key := tintKeyOf(q, bw, bh)
	set := r.tints[q.Texture.ID()]
	if set != nil {
		if img := set.get(key); img != nil {
			r.reportTints(q.Texture, set)
			return img
		}
	} else {
		set = &tintSet{}
		r.tints[q.Texture.ID()] = set
	}
	img := ebiten.NewImage(bw, bh)
	r.paintBase(img, q, src, q.Src)
	set.put(key, img)
	r.reportTints(q.Texture, set)
	return img
}

func (r *Renderer) paintBase(img *ebiten.Image, q *lantern.Quad, src *ebiten.Image, srcRect lantern.Rect) {
	local := [6]float64{1, 0, 0, 1, q.Extent.Left, q.Extent.Top}
	verts, inds := appendQuad(nil, nil, local, q.Width, q.Height, srcRect, q.FlipX, q.FlipY, q.Colors)
	var op ebiten.DrawTrianglesOptions
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	img.DrawTriangles32(verts, inds, src, &op)
}

func (r *Renderer) reportTints(t *lantern.Texture, set *tintSet) {
	if r.mgr != nil {
		r.mgr.SetTintMemory(t, set.bytes())
	}
}

// FreeTint drops the tinted copies of t. The texture manager clears its
// own accounting.
func (r *Renderer) FreeTint(t *lantern.Texture) {
	r.dropTints(t, false)
}

// dropTints disposes t's tinted copies, optionally clearing the manager's
// record of them.
func (r *Renderer) dropTints(t *lantern.Texture, report bool) {
	set, ok := r.tints[t.ID()]
	if !ok {
		return
	}
	set.dispose()
	delete(r.tints, t.ID())
	if report && r.mgr != nil {
		r.mgr.SetTintMemory(t, 0)
	}
}

// NumTints returns the number of textures with cached tinted copies.
func (r *Renderer) NumTints() int { return len(r.tints) }

// Close releases every GPU resource held by the renderer.
func (r *Renderer) Close() {
	for id, img := range r.images {
		r.release(id, img)
		delete(r.images, id)
	}
	for id, set := range r.tints {
		set.dispose()
		delete(r.tints, id)
	}
	r.EndFrame()
	r.pool.drain()
	for name, p := range r.programs {
		p.Deallocate()
		delete(r.programs, name)
	}
}

// tintKey identifies one tinted rendering of a texture region.
type tintKey struct {
	src          lantern.Rect
	colors       [4]lantern.Color
	w, h         int
	extent       lantern.Margin
	flipX, flipY bool
}

func tintKeyOf(q *lantern.Quad, bw, bh int) tintKey {
	return tintKey{
		src:    q.Src,
		colors: q.Colors,
		w:      bw,
		h:      bh,
		extent: q.Extent,
		flipX:  q.FlipX,
		flipY:  q.FlipY,
	}
}

type tintEntry struct {
	key tintKey
	img *ebiten.Image
}

// tintSet is a small most-recently-used list of tinted copies.
type tintSet struct {
	entries []tintEntry
}

func (s *tintSet) get(k tintKey) *ebiten.Image {
	for i, e := range s.entries {
		if e.key == k {
			copy(s.entries[1:i+1], s.entries[:i])
			s.entries[0] = e
			return e.img
		}
	}
	return nil
}

func (s *tintSet) put(k tintKey, img *ebiten.Image) {
	if len(s.entries) == maxTintsPerTexture {
		last := s.entries[len(s.entries)-1]
		last.img.Deallocate()
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, tintEntry{})
	copy(s.entries[1:], s.entries)
	s.entries[0] = tintEntry{key: k, img: img}
}

func (s *tintSet) bytes() int64 {
	var n int64
	for _, e := range s.entries {
		n += int64(e.key.w) * int64(e.key.h) * 4
	}
	return n
}

func (s *tintSet) dispose() {
	for _, e := range s.entries {
		e.img.Deallocate()
	}
	s.entries = nil
}

// appendQuad appends 4 vertices and 6 indices for one quad of w x h
// local pixels mapped by tx. Colors are premultiplied tl, tr, bl, br.
func appendQuad(verts []ebiten.Vertex, inds []uint32, tx [6]float64, w, h float64, src lantern.Rect, flipX, flipY bool, colors [4]lantern.Color) ([]ebiten.Vertex, []uint32) {
	// TL, TR, BL, BR
	lx := [4]float64{0, w, 0, w}
	ly := [4]float64{0, 0, h, h}

	sx0, sx1 := float32(src.X), float32(src.X+src.Width)
	sy0, sy1 := float32(src.Y), float32(src.Y+src.Height)
	if flipX {
		sx0, sx1 = sx1, sx0
	}
	if flipY {
		sy0, sy1 = sy1, sy0
	}
	sx := [4]float32{sx0, sx1, sx0, sx1}
	sy := [4]float32{sy0, sy0, sy1, sy1}

	a, b, c, d, ox, oy := tx[0], tx[1], tx[2], tx[3], tx[4], tx[5]
	base := uint32(len(verts))
	for i := 0; i < 4; i++ {
		cr, cg, cb, ca := colors[i].Floats()
		verts = append(verts, ebiten.Vertex{
			DstX:   float32(a*lx[i] + c*ly[i] + ox),
			DstY:   float32(b*lx[i] + d*ly[i] + oy),
			SrcX:   sx[i],
			SrcY:   sy[i],
			ColorR: cr,
			ColorG: cg,
			ColorB: cb,
			ColorA: ca,
		})
	}

	// Two triangles: TL-TR-BL, TR-BR-BL
	inds = append(inds,
		base+0, base+1, base+2,
		base+1, base+3, base+2,
	)
	return verts, inds
}

// transformGeoM converts a [6]float64 affine transform into an ebiten.GeoM.
func transformGeoM(t [6]float64) ebiten.GeoM {
	var m ebiten.GeoM
	m.SetElement(0, 0, t[0])
	m.SetElement(1, 0, t[1])
	m.SetElement(0, 1, t[2])
	m.SetElement(1, 1, t[3])
	m.SetElement(0, 2, t[4])
	m.SetElement(1, 2, t[5])
	return m
}

// clipRect rounds a clip rect outward to whole pixels.
func clipRect(c lantern.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(c.X)),
		int(math.Floor(c.Y)),
		int(math.Ceil(c.X+c.Width)),
		int(math.Ceil(c.Y+c.Height)),
	)
}
