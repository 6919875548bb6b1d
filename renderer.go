package lantern

import "image"

// Renderer is the GPU backend a Stage draws through. Every method is called
// on the frame loop. Backends key their resources by Texture.ID and by
// ShaderType.
type Renderer interface {
	// UploadTexture copies img into a GPU texture owned by t. Calling it
	// again for the same texture replaces the previous allocation.
	UploadTexture(t *Texture, img image.Image) error
	// FreeTexture releases t's GPU texture.
	FreeTexture(t *Texture)
	// CreateRenderTarget (re)allocates an offscreen target of w x h pixels
	// for a render texture.
	CreateRenderTarget(t *Texture, w, h int) error
	// PrepareShader compiles the program of a shader type. It is called once
	// per type, when the first shader node of that type is created.
	PrepareShader(st *ShaderType) error

	// BeginFrame starts drawing into target, or the screen when target is
	// nil, clearing it to clear.
	BeginFrame(target *Texture, clear Color)
	// DrawBatch draws quads that share a texture, shader and clip rect.
	DrawBatch(b *Batch)
	// EndFrame finishes the target started by BeginFrame.
	EndFrame()
}

// TintFreer is implemented by backends that cache color-tinted copies of
// textures. Those copies are accounted separately through
// TextureManager.SetTintMemory and evicted independently of the source.
type TintFreer interface {
	FreeTint(t *Texture)
}

// TextureManagerBinder is implemented by backends that report memory back to
// the stage's texture manager, for example tint caches.
type TextureManagerBinder interface {
	BindTextureManager(m *TextureManager)
}

// Quad is one node's final draw description.
type Quad struct {
	NodeID NodeID
	// Transform maps the unit quad scaled to Width x Height into target
	// space.
	Transform     [6]float64
	Width, Height float64
	// Colors are premultiplied corner colors: tl, tr, bl, br.
	Colors [4]Color
	// Texture is the texture that owns the pixels (the root of a
	// sub-texture chain), or nil for a flat color quad.
	Texture *Texture
	// Src is the region of Texture to sample, in pixels.
	Src          Rect
	FlipX, FlipY bool
	Shader       *ShaderType // nil for the default quad
	Uniforms     Uniforms
	// Extent is how far the shader draws outside the quad.
	Extent  Margin
	Clip    Rect
	Clipped bool
}

// Batch is a run of consecutive quads that can be drawn with one program
// and one clip rect.
type Batch struct {
	Target  *Texture // nil for the screen
	Texture *Texture
	Shader  *ShaderType
	Clip    Rect
	Clipped bool
	Quads   []Quad
}
