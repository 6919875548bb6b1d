package lantern

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Built-in shader type names.
const (
	ShaderDefault           = "Default"
	ShaderRounded           = "Rounded"
	ShaderBorder            = "Border"
	ShaderRoundedWithBorder = "RoundedWithBorder"
	ShaderShadow            = "Shadow"
	ShaderHolePunch         = "HolePunch"
	ShaderLinearGradient    = "LinearGradient"
	ShaderRadialGradient    = "RadialGradient"
)

// maxGradientStops is the fixed stop capacity of the gradient programs.
const maxGradientStops = 8

// BuiltinShaderTypes returns fresh definitions of the built-in effects.
func BuiltinShaderTypes() []*ShaderType {
	return []*ShaderType{
		{Name: ShaderDefault},
		roundedType(),
		borderType(ShaderBorder, false),
		borderType(ShaderRoundedWithBorder, true),
		shadowType(),
		holePunchType(),
		linearGradientType(),
		radialGradientType(),
	}
}

func roundedType() *ShaderType {
	return &ShaderType{
		Name:          ShaderRounded,
		SizeDependent: true,
		Props: []PropDef{
			{Name: "radius", Default: [4]float64{}, Resolve: resolveCorners},
		},
		Uniforms: func(v map[string]any, w, h float64) Uniforms {
			return Uniforms{
				"Size":   sizeUniform(w, h),
				"Radius": cornerUniform(v["radius"].([4]float64), w, h),
			}
		},
	}
}

// borderType builds Border and RoundedWithBorder. "width" writes all four
// sides; "top", "right", "bottom" and "left" override one side each.
func borderType(name string, rounded bool) *ShaderType {
	side := func(i int) PropDef {
		names := [4]string{"top", "right", "bottom", "left"}
		return PropDef{
			Name:    names[i],
			Resolve: resolveNonNegative,
			Get:     func(v map[string]any) any { return borderWidths(v)[i] },
			Set: func(v map[string]any, x any) error {
				w := borderWidths(v)
				w[i] = x.(float64)
				v["widths"] = w
				return nil
			},
		}
	}
	t := &ShaderType{
		Name:          name,
		SizeDependent: true,
		Props: []PropDef{
			{
				Name:    "width",
				Default: 0.0,
				Resolve: resolveNonNegative,
				Get:     func(v map[string]any) any { return borderWidths(v)[0] },
				Set: func(v map[string]any, x any) error {
					f := x.(float64)
					v["widths"] = [4]float64{f, f, f, f}
					return nil
				},
			},
			side(0), side(1), side(2), side(3),
			{Name: "color", Default: ColorWhite, Resolve: resolveColor},
			{Name: "gap", Default: 0.0, Resolve: resolveNonNegative},
		},
	}
	if rounded {
		t.Props = append(t.Props, PropDef{Name: "radius", Default: [4]float64{}, Resolve: resolveCorners})
	}
	t.Uniforms = func(v map[string]any, w, h float64) Uniforms {
		bw := borderWidths(v)
		u := Uniforms{
			"Size":        sizeUniform(w, h),
			"BorderWidth": []float32{float32(bw[0]), float32(bw[1]), float32(bw[2]), float32(bw[3])},
			"BorderColor": colorUniform(v["color"].(Color)),
			"BorderGap":   float32(v["gap"].(float64)),
		}
		if rounded {
			u["Radius"] = cornerUniform(v["radius"].([4]float64), w, h)
		}
		return u
	}
	return t
}

func borderWidths(v map[string]any) [4]float64 {
	w, _ := v["widths"].([4]float64)
	return w
}

func shadowType() *ShaderType {
	return &ShaderType{
		Name:          ShaderShadow,
		SizeDependent: true,
		Props: []PropDef{
			{Name: "x", Default: 0.0, Geometry: true},
			{Name: "y", Default: 0.0, Geometry: true},
			{Name: "spread", Default: 0.0, Geometry: true},
			{Name: "blur", Default: 10.0, Resolve: resolveNonNegative, Geometry: true},
			{Name: "color", Default: Color(0x000000ff), Resolve: resolveColor},
			{Name: "radius", Default: [4]float64{}, Resolve: resolveCorners},
		},
		Uniforms: func(v map[string]any, w, h float64) Uniforms {
			return Uniforms{
				"Size":        sizeUniform(w, h),
				"Shadow":      []float32{f32(v, "x"), f32(v, "y"), f32(v, "spread"), f32(v, "blur")},
				"ShadowColor": colorUniform(v["color"].(Color)),
				"Radius":      cornerUniform(v["radius"].([4]float64), w, h),
			}
		},
		Extent: func(v map[string]any) Margin {
			reach := math32.Max(0, f32(v, "spread")+f32(v, "blur"))
			x, y := f32(v, "x"), f32(v, "y")
			return Margin{
				Top:    float64(math32.Max(0, reach-y)),
				Right:  float64(math32.Max(0, reach+x)),
				Bottom: float64(math32.Max(0, reach+y)),
				Left:   float64(math32.Max(0, reach-x)),
			}
		},
	}
}

func holePunchType() *ShaderType {
	return &ShaderType{
		Name:          ShaderHolePunch,
		SizeDependent: true,
		Props: []PropDef{
			{Name: "x", Default: 0.0},
			{Name: "y", Default: 0.0},
			{Name: "width", Default: 50.0, Resolve: resolveNonNegative},
			{Name: "height", Default: 50.0, Resolve: resolveNonNegative},
			{Name: "radius", Default: [4]float64{}, Resolve: resolveCorners},
		},
		Uniforms: func(v map[string]any, w, h float64) Uniforms {
			hw, hh := v["width"].(float64), v["height"].(float64)
			return Uniforms{
				"Size":   sizeUniform(w, h),
				"Hole":   []float32{f32(v, "x"), f32(v, "y"), float32(hw), float32(hh)},
				"Radius": cornerUniform(v["radius"].([4]float64), hw, hh),
			}
		},
	}
}

func gradientProps() []PropDef {
	return []PropDef{
		{Name: "stops", Default: []float64{0, 1}, Resolve: resolveStops},
		{Name: "colors", Default: []Color{0x00000000, 0x000000ff}, Resolve: resolveGradientColors},
	}
}

func resolveStops(v any) (any, error) {
	s, err := toFloats(v)
	if err != nil {
		return nil, err
	}
	if len(s) > maxGradientStops {
		return nil, fmt.Errorf("at most %d stops, got %d", maxGradientStops, len(s))
	}
	for i, f := range s {
		if f < 0 || f > 1 || (i > 0 && f < s[i-1]) {
			return nil, fmt.Errorf("stops must be ascending within [0, 1]")
		}
	}
	return s, nil
}

func resolveGradientColors(v any) (any, error) {
	c, err := toColors(v)
	if err != nil {
		return nil, err
	}
	if len(c) > maxGradientStops {
		return nil, fmt.Errorf("at most %d colors, got %d", maxGradientStops, len(c))
	}
	return c, nil
}

// gradientUniforms packs stops and colors into fixed-size arrays. When
// fewer stops than colors are given, colors are spread evenly.
func gradientUniforms(v map[string]any, u Uniforms) {
	stops := v["stops"].([]float64)
	colors := v["colors"].([]Color)
	n := len(colors)
	s := make([]float32, maxGradientStops)
	c := make([]float32, maxGradientStops*4)
	for i := 0; i < n; i++ {
		switch {
		case i < len(stops):
			s[i] = float32(stops[i])
		case n > 1:
			s[i] = float32(i) / float32(n-1)
		}
		copy(c[i*4:], colorUniform(colors[i]))
	}
	u["Stops"] = s
	u["Colors"] = c
	u["Count"] = float32(n)
}

func linearGradientType() *ShaderType {
	return &ShaderType{
		Name:          ShaderLinearGradient,
		SizeDependent: true,
		Props: append([]PropDef{
			// Degrees, 0 points up and 90 to the right.
			{Name: "angle", Default: 0.0},
		}, gradientProps()...),
		Uniforms: func(v map[string]any, w, h float64) Uniforms {
			a := f32(v, "angle") * math32.Pi / 180
			sin, cos := math32.Sin(a), math32.Cos(a)
			u := Uniforms{
				"Size":     sizeUniform(w, h),
				"Angle":    a,
				"LineDist": math32.Abs(float32(w)*sin) + math32.Abs(float32(h)*cos),
			}
			gradientUniforms(v, u)
			return u
		},
	}
}

func radialGradientType() *ShaderType {
	return &ShaderType{
		Name:          ShaderRadialGradient,
		SizeDependent: true,
		Props: append([]PropDef{
			// Center in node pixels; negative means the node center.
			{Name: "x", Default: -1.0},
			{Name: "y", Default: -1.0},
			// Radii in pixels; zero means half the node size.
			{Name: "width", Default: 0.0, Resolve: resolveNonNegative},
			{Name: "height", Default: 0.0, Resolve: resolveNonNegative},
		}, gradientProps()...),
		Uniforms: func(v map[string]any, w, h float64) Uniforms {
			cx, cy := f32(v, "x"), f32(v, "y")
			if cx < 0 {
				cx = float32(w) / 2
			}
			if cy < 0 {
				cy = float32(h) / 2
			}
			rx, ry := f32(v, "width"), f32(v, "height")
			if rx == 0 {
				rx = float32(w) / 2
			}
			if ry == 0 {
				ry = float32(h) / 2
			}
			u := Uniforms{
				"Size":   sizeUniform(w, h),
				"Center": []float32{cx, cy},
				"Radius": []float32{math32.Max(rx, 1e-3), math32.Max(ry, 1e-3)},
			}
			gradientUniforms(v, u)
			return u
		},
	}
}

func f32(v map[string]any, name string) float32 {
	f, _ := v[name].(float64)
	return float32(f)
}

func sizeUniform(w, h float64) []float32 {
	return []float32{float32(w), float32(h)}
}

// colorUniform returns c premultiplied, as backends blend premultiplied.
func colorUniform(c Color) []float32 {
	r, g, b, a := c.Floats()
	return []float32{r * a, g * a, b * a, a}
}

// cornerUniform clamps corner radii to half the smaller side.
func cornerUniform(r [4]float64, w, h float64) []float32 {
	limit := math32.Min(float32(w), float32(h)) / 2
	out := make([]float32, 4)
	for i, v := range r {
		out[i] = math32.Min(float32(v), math32.Max(limit, 0))
	}
	return out
}
