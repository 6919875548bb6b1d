package lantern

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Uniforms maps uniform names to values a backend binds before drawing a
// node with a shader. Values are float32, []float32 or int.
type Uniforms map[string]any

// PropDef declares one shader prop.
//
// Resolve is a pure transform from the caller's input to the stored value
// and also validates it. Get/Set bind a prop that is not stored under its own
// name, for example a shorthand writing several stored props. A prop with
// neither is stored as given after numeric normalization.
type PropDef struct {
	Name    string
	Default any
	Resolve func(v any) (any, error)
	Get     func(values map[string]any) any
	Set     func(values map[string]any, v any) error
	// Geometry props change how much area the effect covers, so changing
	// them recomputes render bounds as well as uniforms.
	Geometry bool
}

// ShaderType describes an effect: its prop schema and how uniforms are
// derived from prop values and node size.
type ShaderType struct {
	Name  string
	Props []PropDef
	// SizeDependent uniforms are derived per node size; the uniform cache
	// keys them by width and height.
	SizeDependent bool
	Uniforms      func(values map[string]any, w, h float64) Uniforms
	// Extent is how far the effect draws outside the node, in pixels.
	Extent func(values map[string]any) Margin
}

func (t *ShaderType) prop(name string) (*PropDef, bool) {
	for i := range t.Props {
		if t.Props[i].Name == name {
			return &t.Props[i], true
		}
	}
	return nil, false
}

// ShaderNode is a shader type bound to resolved prop values. Shader nodes
// are cached by key and shared by every node created with the same props.
type ShaderNode struct {
	typ     *ShaderType
	mgr     *ShaderManager
	key     string
	values  map[string]any
	nodes   map[*Node]struct{}
	removed bool
}

// Type returns the shader type.
func (sn *ShaderNode) Type() *ShaderType { return sn.typ }

// Key returns the cache key: the canonical type name and sorted prop values.
func (sn *ShaderNode) Key() string { return sn.key }

// Removed reports whether RemoveShader was called.
func (sn *ShaderNode) Removed() bool { return sn.removed }

// NumNodes returns the number of nodes using the shader.
func (sn *ShaderNode) NumNodes() int { return len(sn.nodes) }

// Prop returns a prop value.
func (sn *ShaderNode) Prop(name string) (any, bool) {
	if d, ok := sn.typ.prop(name); ok && d.Get != nil {
		return d.Get(sn.values), true
	}
	v, ok := sn.values[name]
	return v, ok
}

// Values returns a copy of the stored prop values.
func (sn *ShaderNode) Values() map[string]any {
	out := make(map[string]any, len(sn.values))
	for k, v := range sn.values {
		out[k] = v
	}
	return out
}

// SetProp validates and stores a prop value, then requests work on every
// node using the shader: geometry props recompute render bounds and
// uniforms, other props only uniforms.
func (sn *ShaderNode) SetProp(name string, v any) error {
	d, ok := sn.typ.prop(name)
	if !ok {
		return fmt.Errorf("%w: %s has no prop %q", ErrInvalidShaderProp, sn.typ.Name, name)
	}
	if err := setPropValue(sn.values, d, v); err != nil {
		return err
	}
	old := sn.key
	sn.key = shaderKey(sn.typ, sn.values)
	if sn.mgr != nil && old != sn.key && !sn.removed {
		sn.mgr.rekey(sn, old)
	}
	ut := UpdateUniforms
	if d.Geometry {
		ut |= UpdateRenderBounds | UpdateIsRenderable
	}
	for n := range sn.nodes {
		if !n.destroyed {
			n.setUpdateType(ut)
		}
	}
	return nil
}

func (sn *ShaderNode) attach(n *Node) {
	if sn.nodes == nil {
		sn.nodes = make(map[*Node]struct{})
	}
	sn.nodes[n] = struct{}{}
}

func (sn *ShaderNode) detach(n *Node) {
	delete(sn.nodes, n)
}

func (sn *ShaderNode) String() string { return sn.key }

func setPropValue(values map[string]any, d *PropDef, v any) error {
	var err error
	if d.Resolve != nil {
		v, err = d.Resolve(v)
	} else if _, numeric := d.Default.(float64); numeric {
		v, err = toFloat(v)
	} else {
		v, err = normalizeShaderValue(v)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidShaderProp, d.Name, err)
	}
	if d.Set != nil {
		if err := d.Set(values, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidShaderProp, d.Name, err)
		}
		return nil
	}
	values[d.Name] = v
	return nil
}

// shaderKey builds the cache key from the type name and stored values.
func shaderKey(t *ShaderType, values map[string]any) string {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(canonicalShaderName(t.Name))
	b.WriteByte('{')
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		writeShaderValue(&b, values[k])
	}
	b.WriteByte('}')
	return b.String()
}

func writeShaderValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case Color:
		fmt.Fprintf(b, "#%08x", uint32(x))
	case [4]float64:
		for i, f := range x {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case []float64:
		b.WriteByte('[')
		for i, f := range x {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		b.WriteByte(']')
	case []Color:
		b.WriteByte('[')
		for i, c := range x {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(b, "#%08x", uint32(c))
		}
		b.WriteByte(']')
	default:
		fmt.Fprint(b, x)
	}
}

// --- Value coercion ---

// normalizeShaderValue converts numeric inputs to float64 and leaves other
// supported types unchanged.
func normalizeShaderValue(v any) (any, error) {
	switch x := v.(type) {
	case Color, [4]float64, []float64, []Color, bool, string:
		return x, nil
	}
	return toFloat(v)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint32:
		f = float64(x)
	default:
		return 0, fmt.Errorf("want a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %v", f)
	}
	return f, nil
}

func toColor(v any) (Color, error) {
	switch x := v.(type) {
	case Color:
		return x, nil
	case uint32:
		return Color(x), nil
	case int:
		if x < 0 || x > math.MaxUint32 {
			return 0, fmt.Errorf("color out of range: %d", x)
		}
		return Color(uint32(x)), nil
	case int64:
		if x < 0 || x > math.MaxUint32 {
			return 0, fmt.Errorf("color out of range: %d", x)
		}
		return Color(uint32(x)), nil
	case string:
		var c Color
		err := c.UnmarshalText([]byte(x))
		return c, err
	}
	return 0, fmt.Errorf("want a color, got %T", v)
}

func toColors(v any) ([]Color, error) {
	switch x := v.(type) {
	case []Color:
		return append([]Color(nil), x...), nil
	case []uint32:
		out := make([]Color, len(x))
		for i, c := range x {
			out[i] = Color(c)
		}
		return out, nil
	case []any:
		out := make([]Color, len(x))
		for i, e := range x {
			c, err := toColor(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return nil, fmt.Errorf("want a color list, got %T", v)
}

func toFloats(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("want a number list, got %T", v)
}

// toCorners accepts one radius for all corners or four (tl, tr, br, bl).
func toCorners(v any) ([4]float64, error) {
	switch x := v.(type) {
	case [4]float64:
		return x, nil
	case []float64:
		if len(x) != 4 {
			return [4]float64{}, fmt.Errorf("want 1 or 4 values, got %d", len(x))
		}
		return [4]float64(x), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return [4]float64{}, err
	}
	return [4]float64{f, f, f, f}, nil
}

func resolveNonNegative(v any) (any, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return nil, fmt.Errorf("must be >= 0, got %g", f)
	}
	return f, nil
}

func resolveColor(v any) (any, error) {
	return toColor(v)
}

func resolveCorners(v any) (any, error) {
	c, err := toCorners(v)
	if err != nil {
		return nil, err
	}
	for _, f := range c {
		if f < 0 {
			return nil, fmt.Errorf("radius must be >= 0, got %g", f)
		}
	}
	return c, nil
}

func resolveColors(v any) (any, error) { return toColors(v) }

func resolveFloats(v any) (any, error) { return toFloats(v) }
