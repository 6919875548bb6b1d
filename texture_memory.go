package lantern

import (
	"sort"
	"time"
)

// bytesPerPixel is the RGBA8 footprint used for texture memory estimates.
const bytesPerPixel = 4

// TextureMemory keeps byte accounting for loaded textures and, separately,
// for tinted copies a backend caches of them.
type TextureMemory struct {
	critical    int64
	targetLevel float64
	baseline    int64

	textureBytes int64
	tintBytes    int64
	perTexture   map[*Texture]int64
	perTint      map[*Texture]tintEntry
}

type tintEntry struct {
	bytes    int64
	lastUsed time.Time
}

// MemoryStats is a snapshot of texture memory accounting.
type MemoryStats struct {
	Used     int64 // baseline + textures + tints
	Critical int64
	Target   int64
	Baseline int64
	Textures int64
	Tints    int64
	Loaded   int // textures with memory accounted
}

func newTextureMemory(critical int64, targetLevel float64, baseline int64) *TextureMemory {
	return &TextureMemory{
		critical:    critical,
		targetLevel: targetLevel,
		baseline:    baseline,
		perTexture:  make(map[*Texture]int64),
		perTint:     make(map[*Texture]tintEntry),
	}
}

// Used returns the bytes in use, including the reserved baseline.
func (m *TextureMemory) Used() int64 {
	return m.baseline + m.textureBytes + m.tintBytes
}

// Critical returns the critical threshold in bytes; 0 disables it.
func (m *TextureMemory) Critical() int64 { return m.critical }

// Target returns the level eviction brings usage down to.
func (m *TextureMemory) Target() int64 {
	return int64(float64(m.critical) * m.targetLevel)
}

// OverCritical reports whether usage exceeds the critical threshold.
func (m *TextureMemory) OverCritical() bool {
	return m.critical > 0 && m.Used() > m.critical
}

// TextureBytes returns the bytes accounted to t.
func (m *TextureMemory) TextureBytes(t *Texture) int64 {
	return m.perTexture[t]
}

// TintBytes returns the bytes accounted to t's tinted copies.
func (m *TextureMemory) TintBytes(t *Texture) int64 {
	return m.perTint[t].bytes
}

// Stats returns a snapshot.
func (m *TextureMemory) Stats() MemoryStats {
	return MemoryStats{
		Used:     m.Used(),
		Critical: m.critical,
		Target:   m.Target(),
		Baseline: m.baseline,
		Textures: m.textureBytes,
		Tints:    m.tintBytes,
		Loaded:   len(m.perTexture),
	}
}

func (m *TextureMemory) setTexture(t *Texture, bytes int64) {
	m.textureBytes += bytes - m.perTexture[t]
	if bytes == 0 {
		delete(m.perTexture, t)
		return
	}
	m.perTexture[t] = bytes
}

func (m *TextureMemory) removeTexture(t *Texture) {
	m.setTexture(t, 0)
	m.removeTint(t)
}

func (m *TextureMemory) setTint(t *Texture, bytes int64, now time.Time) {
	m.tintBytes += bytes - m.perTint[t].bytes
	if bytes == 0 {
		delete(m.perTint, t)
		return
	}
	m.perTint[t] = tintEntry{bytes: bytes, lastUsed: now}
}

func (m *TextureMemory) removeTint(t *Texture) {
	m.setTint(t, 0, time.Time{})
}

// tintsByAge returns textures with tinted copies, least recently used first.
func (m *TextureMemory) tintsByAge() []*Texture {
	out := make([]*Texture, 0, len(m.perTint))
	for t := range m.perTint {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := m.perTint[out[i]].lastUsed, m.perTint[out[j]].lastUsed
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].id < out[j].id
	})
	return out
}

func (m *TextureMemory) tintLastUsed(t *Texture) time.Time {
	return m.perTint[t].lastUsed
}
