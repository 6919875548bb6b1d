package lantern

import (
	"fmt"
	"image"
	"time"
)

// TextureID identifies a texture within its manager.
type TextureID uint32

// TextureType selects how a texture's pixels are produced.
type TextureType uint8

const (
	TextureTypeImage  TextureType = iota // fetched and decoded from Src, or in-memory Data
	TextureTypeColor                     // 1x1 solid color
	TextureTypeNoise                     // generated grey noise
	TextureTypeSub                       // region of a parent texture
	TextureTypeRender                    // offscreen render target

	numTextureTypes
)

func (t TextureType) String() string {
	switch t {
	case TextureTypeImage:
		return "image"
	case TextureTypeColor:
		return "color"
	case TextureTypeNoise:
		return "noise"
	case TextureTypeSub:
		return "sub"
	case TextureTypeRender:
		return "render"
	default:
		return "unknown"
	}
}

// TextureState is a texture's position in its load lifecycle:
// initial -> loading -> loaded|failed -> freed -> loading ...
type TextureState uint8

const (
	TextureInitial TextureState = iota
	TextureLoading
	TextureLoaded
	TextureFailed
	TextureFreed
)

func (s TextureState) String() string {
	switch s {
	case TextureInitial:
		return "initial"
	case TextureLoading:
		return "loading"
	case TextureLoaded:
		return "loaded"
	case TextureFailed:
		return "failed"
	case TextureFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// TextureProps describes a texture's source. Only the fields relevant to the
// texture type are used and take part in the cache key.
type TextureProps struct {
	Src    string      // image: fetched through the ImageFetcher
	Data   image.Image // image: in-memory pixels, keyed by identity
	Color  Color       // color
	Width  int         // noise, render
	Height int         // noise, render
	Seed   int64       // noise
	Parent *Texture    // sub
	Region Rect        // sub: region of Parent in pixels
}

// TextureOptions control how a texture is created and sampled. FlipX and
// FlipY apply per node; PreventCleanup applies to the texture.
type TextureOptions struct {
	FlipX          bool
	FlipY          bool
	PreventCleanup bool // never evicted by the usage tracker
}

// TextureEventType identifies a texture notification.
type TextureEventType uint8

const (
	TextureEventLoaded TextureEventType = iota
	TextureEventFailed
	TextureEventFreed
)

// TextureEvent carries a texture notification.
type TextureEvent struct {
	Type       TextureEventType
	Texture    *Texture
	Dimensions Dimensions
	Err        error
}

// Texture is a GPU texture resource shared by every node that references it.
// Textures are created through a TextureManager and are only touched from
// the frame loop.
type Texture struct {
	id    TextureID
	typ   TextureType
	props TextureProps
	key   string
	mgr   *TextureManager

	state         TextureState
	err           error
	width, height int
	loadGen       uint64
	parentSub     Subscription

	refCount       int
	lastUsed       time.Time
	preventCleanup bool
	released       bool

	events emitter[TextureEventType, TextureEvent]
}

// ID returns the texture ID, which backends use to key their resources.
func (t *Texture) ID() TextureID { return t.id }

// Type returns the texture type.
func (t *Texture) Type() TextureType { return t.typ }

// Key returns the normalized cache key.
func (t *Texture) Key() string { return t.key }

// Props returns the texture's source description.
func (t *Texture) Props() TextureProps { return t.props }

// State returns the lifecycle state.
func (t *Texture) State() TextureState { return t.state }

// Err returns the last load error, if the texture failed.
func (t *Texture) Err() error { return t.err }

// Width returns the loaded pixel width, or 0.
func (t *Texture) Width() int { return t.width }

// Height returns the loaded pixel height, or 0.
func (t *Texture) Height() int { return t.height }

// Dimensions returns the loaded size.
func (t *Texture) Dimensions() Dimensions {
	return Dimensions{Width: float64(t.width), Height: float64(t.height)}
}

// RefCount returns the number of node attachments, including those of
// sub-textures for a parent texture.
func (t *Texture) RefCount() int { return t.refCount }

// LastUsed returns the time of the last reference change.
func (t *Texture) LastUsed() time.Time { return t.lastUsed }

// PreventCleanup reports whether the tracker must never evict the texture.
func (t *Texture) PreventCleanup() bool { return t.preventCleanup }

// Released reports whether ReleaseTexture was called.
func (t *Texture) Released() bool { return t.released }

// Memory returns the bytes currently accounted to the texture, excluding
// tinted copies.
func (t *Texture) Memory() int64 {
	if t.mgr == nil {
		return 0
	}
	return t.mgr.memory.TextureBytes(t)
}

// Root returns the texture that owns the pixels: the top-most parent of a
// sub-texture chain, or t itself.
func (t *Texture) Root() *Texture {
	r := t
	for r.typ == TextureTypeSub && r.props.Parent != nil {
		r = r.props.Parent
	}
	return r
}

// SourceRegion returns the region of Root() that t covers.
func (t *Texture) SourceRegion() Rect {
	if t.typ != TextureTypeSub || t.props.Parent == nil {
		return Rect{Width: float64(t.width), Height: float64(t.height)}
	}
	pr := t.props.Parent.SourceRegion()
	r := t.props.Region
	r.X += pr.X
	r.Y += pr.Y
	return r
}

// On subscribes fn to a texture event.
func (t *Texture) On(typ TextureEventType, fn func(TextureEvent)) Subscription {
	return t.events.on(typ, fn, false)
}

// Off removes a listener.
func (t *Texture) Off(sub Subscription) bool {
	return t.events.off(sub)
}

func (t *Texture) emit(ev TextureEvent) {
	ev.Texture = t
	t.events.emit(ev.Type, ev)
}

func (t *Texture) String() string {
	return fmt.Sprintf("texture#%d(%s %s)", t.id, t.key, t.state)
}

// textureKey normalizes a texture request into its cache key. Render
// textures are never shared and report cacheable = false.
func textureKey(typ TextureType, p TextureProps) (key string, cacheable bool, err error) {
	switch typ {
	case TextureTypeImage:
		switch {
		case p.Src != "":
			return "image:" + p.Src, true, nil
		case p.Data != nil:
			return fmt.Sprintf("image:data:%p", p.Data), true, nil
		}
		return "", false, fmt.Errorf("lantern: image texture needs Src or Data")
	case TextureTypeColor:
		return fmt.Sprintf("color:%08x", uint32(p.Color)), true, nil
	case TextureTypeNoise:
		if p.Width <= 0 || p.Height <= 0 {
			return "", false, fmt.Errorf("lantern: noise texture needs a positive size")
		}
		return fmt.Sprintf("noise:%dx%d:%d", p.Width, p.Height, p.Seed), true, nil
	case TextureTypeSub:
		if p.Parent == nil {
			return "", false, fmt.Errorf("lantern: sub texture needs a parent")
		}
		r := p.Region
		return fmt.Sprintf("sub:%d:%g,%g,%g,%g", p.Parent.id, r.X, r.Y, r.Width, r.Height), true, nil
	case TextureTypeRender:
		return "render", false, nil
	}
	return "", false, fmt.Errorf("%w: %d", ErrUnknownTextureType, typ)
}
