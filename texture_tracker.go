package lantern

import (
	"container/list"
	"sort"
	"time"
)

// CleanupMode tells a tracker why cleanup runs.
type CleanupMode uint8

const (
	CleanupIdle     CleanupMode = iota // the stage went idle
	CleanupPeriodic                    // the cleanup interval elapsed
	CleanupCritical                    // memory is over the critical threshold
)

func (m CleanupMode) String() string {
	switch m {
	case CleanupIdle:
		return "idle"
	case CleanupPeriodic:
		return "periodic"
	case CleanupCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Eviction names one resource a tracker wants freed: either a texture or
// only its tinted copies.
type Eviction struct {
	Texture *Texture
	Tint    bool
}

// TextureTracker decides which textures may be released. Implementations
// only propose evictions; the TextureManager frees them and re-checks that
// each texture is still unreferenced at that moment.
type TextureTracker interface {
	Register(t *Texture, now time.Time)
	Unregister(t *Texture)
	IncrementRef(t *Texture, now time.Time)
	DecrementRef(t *Texture, now time.Time)
	Cleanup(now time.Time, mode CleanupMode, mem *TextureMemory) []Eviction
}

// evictable reports whether t currently holds resources that may be freed.
func evictable(t *Texture) bool {
	if t.refCount > 0 || t.preventCleanup {
		return false
	}
	switch t.state {
	case TextureLoading, TextureLoaded, TextureFailed:
		return true
	}
	return false
}

// --- Manual reference counting ---

// ManualCountTracker frees textures that have had no references for at least
// AgeThreshold. The grace period avoids reloading textures that are detached
// and re-attached in quick succession, such as during list scrolling.
type ManualCountTracker struct {
	AgeThreshold time.Duration
	zeroRef      map[*Texture]time.Time
}

// NewManualCountTracker returns a tracker with the given grace period.
func NewManualCountTracker(age time.Duration) *ManualCountTracker {
	return &ManualCountTracker{AgeThreshold: age, zeroRef: make(map[*Texture]time.Time)}
}

// Register adds t to the zero-reference set if it is unreferenced.
func (m *ManualCountTracker) Register(t *Texture, now time.Time) {
	if t.refCount == 0 {
		m.zeroRef[t] = now
	}
}

// Unregister forgets t.
func (m *ManualCountTracker) Unregister(t *Texture) {
	delete(m.zeroRef, t)
}

// IncrementRef removes t from the zero-reference set.
func (m *ManualCountTracker) IncrementRef(t *Texture, _ time.Time) {
	delete(m.zeroRef, t)
}

// DecrementRef starts t's grace period when its count reaches zero.
func (m *ManualCountTracker) DecrementRef(t *Texture, now time.Time) {
	if t.refCount == 0 {
		m.zeroRef[t] = now
	}
}

// ZeroRefCount returns the size of the zero-reference set.
func (m *ManualCountTracker) ZeroRefCount() int { return len(m.zeroRef) }

// InZeroRefSet reports whether t is waiting out its grace period.
func (m *ManualCountTracker) InZeroRefSet(t *Texture) bool {
	_, ok := m.zeroRef[t]
	return ok
}

// Cleanup proposes every zero-reference texture whose grace period elapsed.
// Under critical pressure the grace period is ignored.
func (m *ManualCountTracker) Cleanup(now time.Time, mode CleanupMode, _ *TextureMemory) []Eviction {
	return m.expired(now, mode == CleanupCritical)
}

func (m *ManualCountTracker) expired(now time.Time, ignoreAge bool) []Eviction {
	var out []*Texture
	for t, since := range m.zeroRef {
		if t.state == TextureFreed || t.state == TextureInitial {
			delete(m.zeroRef, t)
			continue
		}
		if !evictable(t) {
			continue
		}
		if ignoreAge || now.Sub(since) >= m.AgeThreshold {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := m.zeroRef[out[i]], m.zeroRef[out[j]]
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].id < out[j].id
	})
	ev := make([]Eviction, len(out))
	for i, t := range out {
		ev[i] = Eviction{Texture: t}
	}
	return ev
}

// --- Threshold-based eviction ---

// ThresholdTracker evicts least recently used unreferenced textures, and
// tinted copies, once memory exceeds the critical threshold, until usage
// falls to the target level. Referenced textures are never proposed.
type ThresholdTracker struct {
	lru   *list.List // front = least recently released
	elems map[*Texture]*list.Element
}

type lruEntry struct {
	tex      *Texture
	lastUsed time.Time
}

// NewThresholdTracker returns an empty tracker.
func NewThresholdTracker() *ThresholdTracker {
	return &ThresholdTracker{lru: list.New(), elems: make(map[*Texture]*list.Element)}
}

// Register adds t to the LRU if it is unreferenced.
func (m *ThresholdTracker) Register(t *Texture, now time.Time) {
	if t.refCount == 0 {
		m.touch(t, now)
	}
}

// Unregister forgets t.
func (m *ThresholdTracker) Unregister(t *Texture) {
	if e, ok := m.elems[t]; ok {
		m.lru.Remove(e)
		delete(m.elems, t)
	}
}

// IncrementRef removes t from the eviction candidates.
func (m *ThresholdTracker) IncrementRef(t *Texture, _ time.Time) {
	m.Unregister(t)
}

// DecrementRef makes t a candidate once unreferenced.
func (m *ThresholdTracker) DecrementRef(t *Texture, now time.Time) {
	if t.refCount == 0 {
		m.touch(t, now)
	}
}

func (m *ThresholdTracker) touch(t *Texture, now time.Time) {
	if e, ok := m.elems[t]; ok {
		e.Value.(*lruEntry).lastUsed = now
		m.lru.MoveToBack(e)
		return
	}
	m.elems[t] = m.lru.PushBack(&lruEntry{tex: t, lastUsed: now})
}

// Len returns the number of candidates.
func (m *ThresholdTracker) Len() int { return m.lru.Len() }

// Cleanup proposes evictions while memory is over the critical threshold.
func (m *ThresholdTracker) Cleanup(_ time.Time, mode CleanupMode, mem *TextureMemory) []Eviction {
	return m.evict(mem.Used(), mode, mem, nil)
}

// evict walks candidates oldest first, simulating the freed bytes, until
// used drops to the target. Textures in skip are already being freed.
func (m *ThresholdTracker) evict(used int64, mode CleanupMode, mem *TextureMemory, skip map[*Texture]bool) []Eviction {
	if mem.Critical() <= 0 {
		return nil
	}
	if used <= mem.Critical() && mode != CleanupCritical {
		return nil
	}
	target := mem.Target()
	if used <= target {
		return nil
	}

	tints := mem.tintsByAge()
	tinted := make(map[*Texture]bool)
	var out []Eviction
	e := m.lru.Front()
	for used > target && (e != nil || len(tints) > 0) {
		var entry *lruEntry
		if e != nil {
			entry = e.Value.(*lruEntry)
		}
		// Interleave tinted copies and textures by age.
		if len(tints) > 0 && (entry == nil || !mem.tintLastUsed(tints[0]).After(entry.lastUsed)) {
			t := tints[0]
			tints = tints[1:]
			if skip[t] {
				continue
			}
			tinted[t] = true
			used -= mem.TintBytes(t)
			out = append(out, Eviction{Texture: t, Tint: true})
			continue
		}
		next := e.Next()
		t := entry.tex
		if t.state == TextureFreed || t.state == TextureInitial {
			m.lru.Remove(e)
			delete(m.elems, t)
		} else if !skip[t] && evictable(t) {
			b := mem.TextureBytes(t)
			if !tinted[t] {
				b += mem.TintBytes(t)
			}
			if b > 0 {
				used -= b
				out = append(out, Eviction{Texture: t})
			}
		}
		e = next
	}
	return out
}

// --- Both ---

// CombinedTracker runs manual reference counting and threshold eviction
// together. Grace-period expiry is applied first; if memory is still over
// the critical threshold afterwards, threshold eviction frees unreferenced
// textures down to the target even if their grace period has not elapsed.
// Referenced textures are never proposed by either.
type CombinedTracker struct {
	Manual    *ManualCountTracker
	Threshold *ThresholdTracker
}

// NewCombinedTracker returns a tracker using both strategies.
func NewCombinedTracker(age time.Duration) *CombinedTracker {
	return &CombinedTracker{Manual: NewManualCountTracker(age), Threshold: NewThresholdTracker()}
}

func (c *CombinedTracker) Register(t *Texture, now time.Time) {
	c.Manual.Register(t, now)
	c.Threshold.Register(t, now)
}

func (c *CombinedTracker) Unregister(t *Texture) {
	c.Manual.Unregister(t)
	c.Threshold.Unregister(t)
}

func (c *CombinedTracker) IncrementRef(t *Texture, now time.Time) {
	c.Manual.IncrementRef(t, now)
	c.Threshold.IncrementRef(t, now)
}

func (c *CombinedTracker) DecrementRef(t *Texture, now time.Time) {
	c.Manual.DecrementRef(t, now)
	c.Threshold.DecrementRef(t, now)
}

func (c *CombinedTracker) Cleanup(now time.Time, mode CleanupMode, mem *TextureMemory) []Eviction {
	out := c.Manual.expired(now, false)
	used := mem.Used()
	skip := make(map[*Texture]bool, len(out))
	for _, ev := range out {
		skip[ev.Texture] = true
		used -= mem.TextureBytes(ev.Texture) + mem.TintBytes(ev.Texture)
	}
	return append(out, c.Threshold.evict(used, mode, mem, skip)...)
}

// TrackerStrategy selects the tracker a Stage builds from Settings.
type TrackerStrategy string

const (
	StrategyManual    TrackerStrategy = "manual"
	StrategyThreshold TrackerStrategy = "threshold"
	StrategyBoth      TrackerStrategy = "both"
)

// newTracker builds the tracker for the configured strategy.
func newTracker(s TextureMemorySettings) TextureTracker {
	switch s.Strategy {
	case StrategyThreshold:
		return NewThresholdTracker()
	case StrategyBoth:
		return NewCombinedTracker(s.ZeroRefAgeThreshold.Duration())
	default:
		return NewManualCountTracker(s.ZeroRefAgeThreshold.Duration())
	}
}
