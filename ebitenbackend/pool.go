package ebitenbackend

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/lantern"
)

// defaultMaxIdle bounds the idle images kept per power-of-two size.
const defaultMaxIdle = 4

// renderTarget is an offscreen image owned by a render texture. The image
// is power-of-two sized; size is the part the texture actually uses.
type renderTarget struct {
	img  *ebiten.Image
	size image.Point
}

// view returns the used part of the target.
func (t renderTarget) view() *ebiten.Image {
	return t.img.SubImage(image.Rectangle{Max: t.size}).(*ebiten.Image)
}

// targetPool hands out offscreen images rounded up to power-of-two sizes.
// Render textures own theirs by texture ID until they are resized or
// freed; scratch images are taken and put back within one frame.
type targetPool struct {
	free    map[image.Point][]*ebiten.Image
	idle    int
	maxIdle int // per size; 0 keeps everything
	owned   map[lantern.TextureID]renderTarget
}

func newTargetPool(maxIdle int) targetPool {
	return targetPool{
		free:    make(map[image.Point][]*ebiten.Image),
		maxIdle: maxIdle,
		owned:   make(map[lantern.TextureID]renderTarget),
	}
}

func pow2Size(w, h int) image.Point {
	return image.Pt(nextPowerOfTwo(w), nextPowerOfTwo(h))
}

// take returns a cleared image with at least w x h pixels.
func (p *targetPool) take(w, h int) *ebiten.Image {
	size := pow2Size(w, h)
	if stack := p.free[size]; len(stack) > 0 {
		img := stack[len(stack)-1]
		stack[len(stack)-1] = nil
		p.free[size] = stack[:len(stack)-1]
		p.idle--
		img.Clear()
		return img
	}
	return ebiten.NewImageWithOptions(image.Rectangle{Max: size}, &ebiten.NewImageOptions{Unmanaged: true})
}

// put makes img available to take again. Images past the per-size idle
// limit are deallocated.
func (p *targetPool) put(img *ebiten.Image) {
	if img == nil {
		return
	}
	size := img.Bounds().Size()
	if p.maxIdle > 0 && len(p.free[size]) >= p.maxIdle {
		img.Deallocate()
		return
	}
	if p.free == nil {
		p.free = make(map[image.Point][]*ebiten.Image)
	}
	p.free[size] = append(p.free[size], img)
	p.idle++
}

// attach gives render texture id a target of w x h. A texture that already
// owns an image of the same power-of-two size keeps it.
func (p *targetPool) attach(id lantern.TextureID, w, h int) renderTarget {
	if p.owned == nil {
		p.owned = make(map[lantern.TextureID]renderTarget)
	}
	rt, ok := p.owned[id]
	if ok && rt.img.Bounds().Size() == pow2Size(w, h) {
		rt.img.Clear()
	} else {
		if ok {
			p.put(rt.img)
		}
		rt.img = p.take(w, h)
	}
	rt.size = image.Pt(w, h)
	p.owned[id] = rt
	return rt
}

// detach returns id's target to the pool. It reports whether id owned one.
func (p *targetPool) detach(id lantern.TextureID) bool {
	rt, ok := p.owned[id]
	if !ok {
		return false
	}
	delete(p.owned, id)
	p.put(rt.img)
	return true
}

// target returns id's render target.
func (p *targetPool) target(id lantern.TextureID) (renderTarget, bool) {
	rt, ok := p.owned[id]
	return rt, ok
}

// Len returns the number of idle images.
func (p *targetPool) Len() int { return p.idle }

// Owned returns the number of render textures holding a target.
func (p *targetPool) Owned() int { return len(p.owned) }

// drain deallocates every image, owned ones included.
func (p *targetPool) drain() {
	for size, stack := range p.free {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.free, size)
	}
	for id, rt := range p.owned {
		rt.img.Deallocate()
		delete(p.owned, id)
	}
	p.idle = 0
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
