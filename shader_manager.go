package lantern

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// canonicalShaderName normalizes shader type names so "RoundedWithBorder",
// "roundedWithBorder" and "rounded-with-border" name the same type.
func canonicalShaderName(name string) string {
	return strcase.ToKebab(strings.TrimSpace(name))
}

// ShaderManager registers shader types, caches shader nodes by key and
// caches derived uniforms.
type ShaderManager struct {
	renderer Renderer
	types    map[string]*ShaderType
	cache    map[string]*ShaderNode
	prepared map[*ShaderType]error

	uniformCap   int
	uniformLRU   *list.List // front = most recent
	uniformElems map[uniformKey]*list.Element
	hits, misses int
}

type uniformKey struct {
	key  string
	w, h float64
}

type uniformEntry struct {
	k uniformKey
	u Uniforms
}

// newShaderManager returns a manager with the built-in types registered.
func newShaderManager(r Renderer, uniformCap int) *ShaderManager {
	m := &ShaderManager{
		renderer:     r,
		types:        make(map[string]*ShaderType),
		cache:        make(map[string]*ShaderNode),
		prepared:     make(map[*ShaderType]error),
		uniformCap:   uniformCap,
		uniformLRU:   list.New(),
		uniformElems: make(map[uniformKey]*list.Element),
	}
	for _, t := range BuiltinShaderTypes() {
		if err := m.Register(t); err != nil {
			panic(err)
		}
	}
	return m
}

// Register adds a shader type. Names are compared after normalization.
func (m *ShaderManager) Register(t *ShaderType) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("lantern: shader type needs a name")
	}
	name := canonicalShaderName(t.Name)
	if _, ok := m.types[name]; ok {
		return fmt.Errorf("lantern: shader type %q already registered", t.Name)
	}
	seen := make(map[string]bool, len(t.Props))
	for _, p := range t.Props {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("lantern: shader type %q has an empty or duplicate prop %q", t.Name, p.Name)
		}
		if (p.Get == nil) != (p.Set == nil) {
			return fmt.Errorf("lantern: shader prop %s.%s needs both Get and Set", t.Name, p.Name)
		}
		seen[p.Name] = true
	}
	m.types[name] = t
	return nil
}

// Lookup returns a registered type.
func (m *ShaderManager) Lookup(name string) (*ShaderType, bool) {
	t, ok := m.types[canonicalShaderName(name)]
	return t, ok
}

// Types returns the canonical names of the registered types.
func (m *ShaderManager) Types() []string {
	out := make([]string, 0, len(m.types))
	for k := range m.types {
		out = append(out, k)
	}
	return out
}

// Len returns the number of cached shader nodes.
func (m *ShaderManager) Len() int { return len(m.cache) }

// CreateShader returns the shader node for (name, props). Identical
// requests return the same node until it is removed. Unknown type names
// fail with ErrUnknownShaderType, unknown or invalid props with
// ErrInvalidShaderProp.
func (m *ShaderManager) CreateShader(name string, props map[string]any) (*ShaderNode, error) {
	t, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShaderType, name)
	}
	values := make(map[string]any, len(t.Props))
	for i := range t.Props {
		d := &t.Props[i]
		if d.Default == nil || d.Set != nil {
			continue
		}
		values[d.Name] = d.Default
	}
	for i := range t.Props {
		d := &t.Props[i]
		if d.Set != nil && d.Default != nil {
			if err := setPropValue(values, d, d.Default); err != nil {
				return nil, err
			}
		}
	}
	for k, v := range props {
		d, ok := t.prop(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no prop %q", ErrInvalidShaderProp, t.Name, k)
		}
		if err := setPropValue(values, d, v); err != nil {
			return nil, err
		}
	}
	key := shaderKey(t, values)
	if sn, ok := m.cache[key]; ok {
		return sn, nil
	}
	if err := m.prepare(t); err != nil {
		return nil, err
	}
	sn := &ShaderNode{typ: t, mgr: m, key: key, values: values}
	m.cache[key] = sn
	return sn, nil
}

// prepare compiles the type's program on the backend once.
func (m *ShaderManager) prepare(t *ShaderType) error {
	if err, ok := m.prepared[t]; ok {
		return err
	}
	var err error
	if m.renderer != nil {
		err = m.renderer.PrepareShader(t)
	}
	if err != nil {
		err = fmt.Errorf("lantern: prepare shader %s: %w", t.Name, err)
		Logger().Warn("lantern: shader preparation failed", "shader", t.Name, "error", err)
	}
	m.prepared[t] = err
	return err
}

// RemoveShader drops sn from the cache. Nodes already using it keep
// rendering with it; assigning it to a node afterwards falls back to the
// default shader.
func (m *ShaderManager) RemoveShader(sn *ShaderNode) {
	if sn == nil || sn.removed {
		return
	}
	sn.removed = true
	if m.cache[sn.key] == sn {
		delete(m.cache, sn.key)
	}
	m.dropUniforms(sn.key)
}

// rekey moves sn to its new key after a prop change. If another node
// already owns the new key, sn stays uncached.
func (m *ShaderManager) rekey(sn *ShaderNode, old string) {
	if m.cache[old] == sn {
		delete(m.cache, old)
	}
	if _, taken := m.cache[sn.key]; !taken {
		m.cache[sn.key] = sn
	}
}

// uniforms returns the derived uniforms for sn at the given node size,
// using the bounded cache.
func (m *ShaderManager) uniforms(sn *ShaderNode, w, h float64) Uniforms {
	if sn.typ.Uniforms == nil {
		return nil
	}
	k := uniformKey{key: sn.key}
	if sn.typ.SizeDependent {
		k.w, k.h = w, h
	}
	if e, ok := m.uniformElems[k]; ok {
		m.hits++
		m.uniformLRU.MoveToFront(e)
		return e.Value.(*uniformEntry).u
	}
	m.misses++
	u := sn.typ.Uniforms(sn.values, w, h)
	if m.uniformCap <= 0 {
		return u
	}
	m.uniformElems[k] = m.uniformLRU.PushFront(&uniformEntry{k: k, u: u})
	for m.uniformLRU.Len() > m.uniformCap {
		last := m.uniformLRU.Back()
		m.uniformLRU.Remove(last)
		delete(m.uniformElems, last.Value.(*uniformEntry).k)
	}
	return u
}

func (m *ShaderManager) dropUniforms(key string) {
	for k, e := range m.uniformElems {
		if k.key == key {
			m.uniformLRU.Remove(e)
			delete(m.uniformElems, k)
		}
	}
}

// UniformCacheStats returns cache hits, misses and current size.
func (m *ShaderManager) UniformCacheStats() (hits, misses, size int) {
	return m.hits, m.misses, m.uniformLRU.Len()
}
