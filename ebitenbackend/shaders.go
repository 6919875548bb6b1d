package ebitenbackend

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/lantern"
)

// Every program samples a base image holding the node's tinted quad, drawn
// at Offset inside a canvas grown by the effect's extent. Colors are
// premultiplied throughout.

const sdfFuncs = `
func cornerRadius(p vec2, r vec4) float {
	if p.x < 0 {
		if p.y < 0 {
			return r.x
		}
		return r.w
	}
	if p.y < 0 {
		return r.y
	}
	return r.z
}

func sdRoundBox(p, half vec2, r float) float {
	q := abs(p) - half + r
	return min(max(q.x, q.y), 0) + length(max(q, vec2(0))) - r
}

func coverage(d float) float {
	return clamp(0.5-d, 0, 1)
}
`

const roundedShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Radius vec4
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset - Size/2
	d := sdRoundBox(p, Size/2, cornerRadius(p, Radius))
	return c * coverage(d)
}
` + sdfFuncs

const borderShaderSrc = `//kage:unit pixels
package main

var Size vec2
var BorderWidth vec4
var BorderColor vec4
var BorderGap float
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset
	// BorderWidth is top, right, bottom, left.
	inner := vec4(BorderWidth.w, BorderWidth.x, Size.x-BorderWidth.y, Size.y-BorderWidth.z)
	inBorder := p.x < inner.x || p.y < inner.y || p.x >= inner.z || p.y >= inner.w
	if inBorder {
		return BorderColor
	}
	g := BorderGap
	if p.x < inner.x+g || p.y < inner.y+g || p.x >= inner.z-g || p.y >= inner.w-g {
		return vec4(0)
	}
	return c
}
`

const roundedWithBorderShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Radius vec4
var BorderWidth vec4
var BorderColor vec4
var BorderGap float
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset - Size/2
	r := cornerRadius(p, Radius)
	outer := sdRoundBox(p, Size/2, r)

	// Shift the inner box so uneven sides stay aligned with the edges.
	shift := vec2(BorderWidth.w-BorderWidth.y, BorderWidth.x-BorderWidth.z) / 2
	half := Size/2 - vec2(BorderWidth.y+BorderWidth.w, BorderWidth.x+BorderWidth.z)/2
	bw := max(max(BorderWidth.x, BorderWidth.y), max(BorderWidth.z, BorderWidth.w))
	inner := sdRoundBox(p-shift, max(half, vec2(0)), max(r-bw, 0))
	content := sdRoundBox(p-shift, max(half-BorderGap, vec2(0)), max(r-bw-BorderGap, 0))

	out := c * coverage(content)
	border := BorderColor * coverage(outer) * (1 - coverage(inner))
	return border + out*(1-border.a)
}
` + sdfFuncs

const shadowShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Radius vec4
// Shadow is x, y, spread, blur.
var Shadow vec4
var ShadowColor vec4
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset - Size/2 - Shadow.xy
	half := Size/2 + Shadow.z
	d := sdRoundBox(p, max(half, vec2(0)), cornerRadius(p, Radius))
	a := coverage(d)
	if Shadow.w >= 1 {
		a = 1 - smoothstep(-Shadow.w/2, Shadow.w/2, d)
	}
	return c + ShadowColor*a*(1-c.a)
}
` + sdfFuncs

const holePunchShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Radius vec4
// Hole is x, y, width, height in node pixels.
var Hole vec4
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	half := Hole.zw / 2
	p := srcPos - imageSrc0Origin() - Offset - Hole.xy - half
	d := sdRoundBox(p, half, cornerRadius(p, Radius))
	return c * (1 - coverage(d))
}
` + sdfFuncs

const gradientFuncs = `
var Stops [8]float
var Colors [8]vec4
var Count float

func gradientAt(t float) vec4 {
	t = clamp(t, 0, 1)
	c := Colors[0]
	for i := 1; i < 8; i++ {
		if float(i) < Count {
			s0 := Stops[i-1]
			s1 := Stops[i]
			if t >= s0 {
				f := 1.0
				if s1 > s0 {
					f = clamp((t-s0)/(s1-s0), 0, 1)
				}
				c = mix(Colors[i-1], Colors[i], f)
			}
		}
	}
	return c
}
`

const linearGradientShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Angle float
var LineDist float
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset - Size/2
	dir := vec2(sin(Angle), -cos(Angle))
	g := gradientAt(dot(p, dir)/max(LineDist, 0.001) + 0.5)
	return g + c*(1-g.a)
}
` + gradientFuncs

const radialGradientShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Center vec2
var Radius vec2
var Offset vec2

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	p := srcPos - imageSrc0Origin() - Offset
	g := gradientAt(length((p - Center) / Radius))
	return g + c*(1-g.a)
}
` + gradientFuncs

// builtinShaderSources maps built-in shader type names to Kage sources.
// Default has no program: it is drawn as a plain quad.
var builtinShaderSources = map[string]string{
	lantern.ShaderRounded:           roundedShaderSrc,
	lantern.ShaderBorder:            borderShaderSrc,
	lantern.ShaderRoundedWithBorder: roundedWithBorderShaderSrc,
	lantern.ShaderShadow:            shadowShaderSrc,
	lantern.ShaderHolePunch:         holePunchShaderSrc,
	lantern.ShaderLinearGradient:    linearGradientShaderSrc,
	lantern.ShaderRadialGradient:    radialGradientShaderSrc,
}

// RegisterShaderSource sets the Kage program used for shader type name. It
// must be called before the first node of that type is created. The program
// receives the uniforms of the shader type plus Offset, the position of the
// node's quad inside the base image.
func (r *Renderer) RegisterShaderSource(name, src string) {
	r.sources[name] = src
	delete(r.programs, name)
}

// PrepareShader compiles the program for st.
func (r *Renderer) PrepareShader(st *lantern.ShaderType) error {
	if st.Name == lantern.ShaderDefault {
		return nil
	}
	if _, ok := r.programs[st.Name]; ok {
		return nil
	}
	src, ok := r.sources[st.Name]
	if !ok {
		return fmt.Errorf("ebitenbackend: no program for shader type %q", st.Name)
	}
	s, err := ebiten.NewShader([]byte(src))
	if err != nil {
		return fmt.Errorf("ebitenbackend: compile %s shader: %w", st.Name, err)
	}
	r.programs[st.Name] = s
	return nil
}

// program returns the compiled program for st, or nil for the default quad.
func (r *Renderer) program(st *lantern.ShaderType) *ebiten.Shader {
	if st == nil || st.Name == lantern.ShaderDefault {
		return nil
	}
	return r.programs[st.Name]
}
