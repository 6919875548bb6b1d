package lantern

import (
	"fmt"
	"testing"
	"time"
)

// fakeTexture returns a loaded, unmanaged texture accounted in mem.
func fakeTexture(id TextureID, bytes int64, mem *TextureMemory) *Texture {
	t := &Texture{id: id, key: fmt.Sprintf("fake:%d", id), state: TextureLoaded}
	mem.setTexture(t, bytes)
	return t
}

func evictedIDs(evs []Eviction) []TextureID {
	var ids []TextureID
	for _, ev := range evs {
		ids = append(ids, ev.Texture.id)
	}
	return ids
}

func equalTextureIDs(a, b []TextureID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- ManualCountTracker ---

func TestManualTrackerAgeThreshold(t *testing.T) {
	mem := newTextureMemory(0, 0.5, 0)
	tr := NewManualCountTracker(time.Second)
	a := fakeTexture(1, 10, mem)
	b := fakeTexture(2, 10, mem)
	c := fakeTexture(3, 10, mem)
	c.refCount = 1

	tr.Register(a, testEpoch)
	tr.Register(b, testEpoch.Add(500*time.Millisecond))
	tr.Register(c, testEpoch)
	if tr.ZeroRefCount() != 2 || tr.InZeroRefSet(c) {
		t.Fatalf("zero-ref set = %d, referenced texture included = %v", tr.ZeroRefCount(), tr.InZeroRefSet(c))
	}

	got := evictedIDs(tr.Cleanup(testEpoch.Add(time.Second), CleanupPeriodic, mem))
	if !equalTextureIDs(got, []TextureID{1}) {
		t.Errorf("periodic = %v, want [1]", got)
	}
	got = evictedIDs(tr.Cleanup(testEpoch.Add(time.Second), CleanupCritical, mem))
	if !equalTextureIDs(got, []TextureID{1, 2}) {
		t.Errorf("critical = %v, want [1 2] oldest first", got)
	}
}

func TestManualTrackerRefTransitions(t *testing.T) {
	mem := newTextureMemory(0, 0.5, 0)
	tr := NewManualCountTracker(0)
	a := fakeTexture(1, 10, mem)
	tr.Register(a, testEpoch)

	a.refCount = 1
	tr.IncrementRef(a, testEpoch)
	if tr.InZeroRefSet(a) {
		t.Error("referenced texture should leave the zero-ref set")
	}
	if evs := tr.Cleanup(testEpoch, CleanupCritical, mem); len(evs) != 0 {
		t.Errorf("referenced texture proposed: %v", evictedIDs(evs))
	}

	a.refCount = 0
	tr.DecrementRef(a, testEpoch)
	if !tr.InZeroRefSet(a) {
		t.Error("unreferenced texture should join the zero-ref set")
	}

	a.state = TextureFreed
	tr.Cleanup(testEpoch, CleanupPeriodic, mem)
	if tr.ZeroRefCount() != 0 {
		t.Error("freed textures should be pruned from the zero-ref set")
	}

	b := fakeTexture(2, 10, mem)
	tr.Register(b, testEpoch)
	tr.Unregister(b)
	if tr.ZeroRefCount() != 0 {
		t.Error("Unregister should forget the texture")
	}
}

// --- ThresholdTracker ---

func TestThresholdTrackerBelowCritical(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewThresholdTracker()
	for i := 1; i <= 3; i++ {
		tr.Register(fakeTexture(TextureID(i), 300, mem), testEpoch)
	}
	if evs := tr.Cleanup(testEpoch, CleanupPeriodic, mem); len(evs) != 0 {
		t.Errorf("below critical proposed %v", evictedIDs(evs))
	}
	if tr.Len() != 3 {
		t.Errorf("Len = %d, want 3", tr.Len())
	}
}

func TestThresholdTrackerEvictsLRUToTarget(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewThresholdTracker()
	var texs []*Texture
	for i := 1; i <= 4; i++ {
		tex := fakeTexture(TextureID(i), 300, mem)
		tr.Register(tex, testEpoch.Add(time.Duration(i)*time.Second))
		texs = append(texs, tex)
	}

	got := evictedIDs(tr.Cleanup(testEpoch, CleanupPeriodic, mem))
	if !equalTextureIDs(got, []TextureID{1, 2, 3}) {
		t.Errorf("evicted = %v, want [1 2 3]", got)
	}

	// A referenced texture is skipped.
	texs[1].refCount = 1
	tr.IncrementRef(texs[1], testEpoch)
	got = evictedIDs(tr.Cleanup(testEpoch, CleanupPeriodic, mem))
	if !equalTextureIDs(got, []TextureID{1, 3, 4}) {
		t.Errorf("evicted = %v, want [1 3 4]", got)
	}

	// Releasing it again makes it the most recently used candidate.
	texs[1].refCount = 0
	tr.DecrementRef(texs[1], testEpoch.Add(time.Minute))
	got = evictedIDs(tr.Cleanup(testEpoch, CleanupPeriodic, mem))
	if !equalTextureIDs(got, []TextureID{1, 3, 4}) {
		t.Errorf("evicted = %v, want [1 3 4]", got)
	}
}

func TestThresholdTrackerCriticalModeEvictsToTarget(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewThresholdTracker()
	tr.Register(fakeTexture(1, 400, mem), testEpoch)
	tr.Register(fakeTexture(2, 400, mem), testEpoch)
	// 800 is under critical but over target.
	if evs := tr.Cleanup(testEpoch, CleanupIdle, mem); len(evs) != 0 {
		t.Errorf("idle proposed %v", evictedIDs(evs))
	}
	if got := evictedIDs(tr.Cleanup(testEpoch, CleanupCritical, mem)); !equalTextureIDs(got, []TextureID{1}) {
		t.Errorf("critical = %v, want [1]", got)
	}
}

func TestThresholdTrackerEvictsTintsIndependently(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewThresholdTracker()
	held := fakeTexture(1, 500, mem)
	held.refCount = 1
	tr.Register(held, testEpoch)
	mem.setTint(held, 600, testEpoch)

	evs := tr.Cleanup(testEpoch, CleanupPeriodic, mem)
	if len(evs) != 1 || evs[0].Texture != held || !evs[0].Tint {
		t.Fatalf("evictions = %+v, want only the tint of the referenced texture", evs)
	}
}

func TestThresholdTrackerDisabled(t *testing.T) {
	mem := newTextureMemory(0, 0.5, 0)
	tr := NewThresholdTracker()
	tr.Register(fakeTexture(1, 1<<30, mem), testEpoch)
	if evs := tr.Cleanup(testEpoch, CleanupCritical, mem); evs != nil {
		t.Errorf("zero critical threshold should disable eviction, got %v", evictedIDs(evs))
	}
}

// --- CombinedTracker ---

func TestCombinedTrackerAgeThenThreshold(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewCombinedTracker(time.Second)
	old := fakeTexture(1, 600, mem)
	young := fakeTexture(2, 600, mem)
	held := fakeTexture(3, 600, mem)
	held.refCount = 1
	tr.Register(old, testEpoch)
	tr.Register(young, testEpoch.Add(900*time.Millisecond))
	tr.Register(held, testEpoch)

	got := tr.Cleanup(testEpoch.Add(time.Second), CleanupPeriodic, mem)
	if ids := evictedIDs(got); !equalTextureIDs(ids, []TextureID{1, 2}) {
		t.Errorf("evicted = %v, want [1 2]: expired first, then LRU under pressure", ids)
	}
	for _, ev := range got {
		if ev.Texture == held {
			t.Error("referenced texture must never be proposed")
		}
	}
}

func TestCombinedTrackerNoPressure(t *testing.T) {
	mem := newTextureMemory(1000, 0.5, 0)
	tr := NewCombinedTracker(time.Second)
	tr.Register(fakeTexture(1, 100, mem), testEpoch)
	tr.Register(fakeTexture(2, 100, mem), testEpoch.Add(900*time.Millisecond))
	got := evictedIDs(tr.Cleanup(testEpoch.Add(time.Second), CleanupPeriodic, mem))
	if !equalTextureIDs(got, []TextureID{1}) {
		t.Errorf("evicted = %v, want only the expired texture", got)
	}
}

func TestNewTrackerFromStrategy(t *testing.T) {
	s := DefaultSettings().TextureMemory
	tests := []struct {
		strategy TrackerStrategy
		want     string
	}{
		{StrategyManual, "*lantern.ManualCountTracker"},
		{StrategyThreshold, "*lantern.ThresholdTracker"},
		{StrategyBoth, "*lantern.CombinedTracker"},
	}
	for _, tt := range tests {
		s.Strategy = tt.strategy
		if got := fmt.Sprintf("%T", newTracker(s)); got != tt.want {
			t.Errorf("newTracker(%s) = %s, want %s", tt.strategy, got, tt.want)
		}
	}
}

func TestWithTrackerOverridesStrategy(t *testing.T) {
	tr := NewThresholdTracker()
	ts := newTestStage(t, WithTracker(tr))
	if ts.Textures().Tracker() != tr {
		t.Error("WithTracker should replace the configured tracker")
	}
}
