package lantern

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// texturedBox creates a node under the root showing tex.
func (ts *testStage) texturedBox(tex *Texture) *Node {
	p := DefaultNodeProps()
	p.Parent = ts.Root()
	p.Width, p.Height = 16, 16
	p.Texture = tex
	return ts.CreateNode(p)
}

func mustTexture(t *testing.T, ts *testStage, typ TextureType, props TextureProps) *Texture {
	t.Helper()
	tex, err := ts.CreateTexture(typ, props, TextureOptions{})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return tex
}

// --- Cache ---

func TestCreateTextureCacheIdentity(t *testing.T) {
	ts := newTestStage(t)
	red := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: 0xff0000ff})
	if again := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: 0xff0000ff}); again != red {
		t.Error("identical requests should return the same texture")
	}
	if blue := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: 0x0000ffff}); blue == red {
		t.Error("different props should return different textures")
	}
	if got, ok := ts.Textures().Lookup(TextureTypeColor, TextureProps{Color: 0xff0000ff}); !ok || got != red {
		t.Error("Lookup should find the cached texture")
	}
	if red.Key() != "color:ff0000ff" {
		t.Errorf("Key = %q", red.Key())
	}

	noise := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 8, Height: 8, Seed: 3})
	sub1 := mustTexture(t, ts, TextureTypeSub, TextureProps{Parent: noise, Region: Rect{0, 0, 4, 4}})
	sub2 := mustTexture(t, ts, TextureTypeSub, TextureProps{Parent: noise, Region: Rect{0, 0, 4, 4}})
	if sub1 != sub2 {
		t.Error("identical sub-texture requests should share")
	}

	rt1 := mustTexture(t, ts, TextureTypeRender, TextureProps{Width: 8, Height: 8})
	rt2 := mustTexture(t, ts, TextureTypeRender, TextureProps{Width: 8, Height: 8})
	if rt1 == rt2 {
		t.Error("render textures should never be shared")
	}
	if ts.Textures().Len() != 6 {
		t.Errorf("Len = %d, want 6", ts.Textures().Len())
	}
}

func TestCreateTextureErrors(t *testing.T) {
	ts := newTestStage(t)
	tests := []struct {
		name  string
		typ   TextureType
		props TextureProps
	}{
		{"image without source", TextureTypeImage, TextureProps{}},
		{"noise without size", TextureTypeNoise, TextureProps{Width: 0, Height: 4}},
		{"sub without parent", TextureTypeSub, TextureProps{}},
		{"unknown type", TextureType(99), TextureProps{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.CreateTexture(tt.typ, tt.props, TextureOptions{}); err == nil {
				t.Error("expected an error")
			}
		})
	}
	_, err := ts.CreateTexture(TextureType(99), TextureProps{}, TextureOptions{})
	if !errors.Is(err, ErrUnknownTextureType) {
		t.Errorf("err = %v, want ErrUnknownTextureType", err)
	}
}

// --- Reference counting ---

func TestRefCountsPerAttachment(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: ColorWhite})
	if tex.State() != TextureInitial {
		t.Errorf("state = %v, want initial until referenced", tex.State())
	}
	a := ts.texturedBox(tex)
	b := ts.texturedBox(tex)
	if tex.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", tex.RefCount())
	}
	if tex.State() != TextureLoading {
		t.Errorf("state = %v, want loading once referenced", tex.State())
	}
	a.SetTexture(tex) // same texture, no change
	if tex.RefCount() != 2 {
		t.Errorf("re-assigning the same texture changed RefCount to %d", tex.RefCount())
	}
	a.SetTexture(nil)
	if tex.RefCount() != 1 {
		t.Errorf("RefCount = %d, want 1", tex.RefCount())
	}
	b.Destroy()
	if tex.RefCount() != 0 {
		t.Errorf("RefCount = %d, want 0 after destroy", tex.RefCount())
	}
}

func TestSubTextureReferencesParent(t *testing.T) {
	ts := newTestStage(t)
	page := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 8, Height: 8, Seed: 1})
	sub := mustTexture(t, ts, TextureTypeSub, TextureProps{Parent: page, Region: Rect{2, 2, 4, 4}})
	n := ts.texturedBox(sub)
	if page.RefCount() != 1 || sub.RefCount() != 1 {
		t.Fatalf("refs page=%d sub=%d, want 1, 1", page.RefCount(), sub.RefCount())
	}
	ts.step(0)
	if page.State() != TextureLoaded || sub.State() != TextureLoaded {
		t.Fatalf("states page=%v sub=%v", page.State(), sub.State())
	}
	if sub.Width() != 4 || sub.Height() != 4 {
		t.Errorf("sub size = %dx%d, want 4x4", sub.Width(), sub.Height())
	}
	if sub.Memory() != 0 || page.Memory() != 8*8*4 {
		t.Errorf("memory sub=%d page=%d", sub.Memory(), page.Memory())
	}
	q := ts.r.lastScreen(t).quads()[0]
	if q.Texture != page || q.Src != (Rect{2, 2, 4, 4}) {
		t.Errorf("quad texture/src = %v %v", q.Texture, q.Src)
	}

	n.SetTexture(nil)
	if page.RefCount() != 0 || sub.RefCount() != 0 {
		t.Errorf("refs page=%d sub=%d after detach", page.RefCount(), sub.RefCount())
	}
}

// --- Loading ---

func TestImageLoadAutosize(t *testing.T) {
	data := encodePNG(t, 4, 3)
	var fetched []string
	fetcher := FetcherFunc(func(_ context.Context, src string) ([]byte, error) {
		fetched = append(fetched, src)
		return data, nil
	})
	ts := newTestStage(t, WithImageFetcher(fetcher))
	tex := mustTexture(t, ts, TextureTypeImage, TextureProps{Src: "logo.png"})
	p := DefaultNodeProps()
	p.Parent = ts.Root()
	p.Texture = tex
	p.Autosize = true
	n := ts.CreateNode(p)
	var dims Dimensions
	n.On(EventLoaded, func(ev NodeEvent) { dims = ev.Dimensions })
	ts.step(0)

	if len(fetched) != 1 || fetched[0] != "logo.png" {
		t.Errorf("fetched = %v", fetched)
	}
	if tex.State() != TextureLoaded || ts.r.uploads[tex.ID()] != 1 {
		t.Fatalf("state = %v uploads = %d", tex.State(), ts.r.uploads[tex.ID()])
	}
	if dims != (Dimensions{4, 3}) {
		t.Errorf("loaded dimensions = %v", dims)
	}
	if n.Width() != 4 || n.Height() != 3 {
		t.Errorf("autosized node = %vx%v, want 4x3", n.Width(), n.Height())
	}
	if tex.Memory() != 4*3*4 {
		t.Errorf("Memory = %d, want 48", tex.Memory())
	}

	n.SetSrc(&Rect{1, 1, 2, 2})
	if n.Width() != 2 || n.Height() != 2 {
		t.Errorf("autosize with src = %vx%v, want 2x2", n.Width(), n.Height())
	}
}

func TestImageLoadFailures(t *testing.T) {
	fetcher := FetcherFunc(func(_ context.Context, src string) ([]byte, error) {
		if src == "garbage" {
			return []byte("definitely not an image"), nil
		}
		return nil, errors.New("404")
	})
	ts := newTestStage(t, WithImageFetcher(fetcher))
	garbage := mustTexture(t, ts, TextureTypeImage, TextureProps{Src: "garbage"})
	missing := mustTexture(t, ts, TextureTypeImage, TextureProps{Src: "missing"})
	n := ts.texturedBox(garbage)
	ts.texturedBox(missing)
	var failErr error
	n.On(EventFailed, func(ev NodeEvent) { failErr = ev.Err })
	ts.step(0)

	if garbage.State() != TextureFailed || !errors.Is(garbage.Err(), ErrDecode) {
		t.Errorf("garbage: state = %v err = %v", garbage.State(), garbage.Err())
	}
	if !errors.Is(failErr, ErrDecode) {
		t.Errorf("failed event err = %v", failErr)
	}
	if missing.State() != TextureFailed || missing.Err() == nil {
		t.Errorf("missing: state = %v err = %v", missing.State(), missing.Err())
	}
}

func TestImageWithoutFetcher(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeImage, TextureProps{Src: "a.png"})
	ts.texturedBox(tex)
	ts.step(0)
	if !errors.Is(tex.Err(), ErrNoImageFetcher) {
		t.Errorf("err = %v, want ErrNoImageFetcher", tex.Err())
	}
}

func TestImageFromData(t *testing.T) {
	ts := newTestStage(t)
	img := image.NewRGBA(image.Rect(0, 0, 5, 2))
	tex := mustTexture(t, ts, TextureTypeImage, TextureProps{Data: img})
	ts.texturedBox(tex)
	ts.step(0)
	if tex.State() != TextureLoaded || tex.Width() != 5 || tex.Height() != 2 {
		t.Errorf("state = %v size = %dx%d", tex.State(), tex.Width(), tex.Height())
	}
}

func TestUploadFailure(t *testing.T) {
	ts := newTestStage(t)
	ts.r.uploadErr = errors.New("out of VRAM")
	tex := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 2, Height: 2})
	ts.texturedBox(tex)
	ts.step(0)
	if tex.State() != TextureFailed {
		t.Errorf("state = %v, want failed", tex.State())
	}
	if tex.Memory() != 0 {
		t.Error("failed texture should not be accounted")
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(encodePNG(t, 2, 2))
	if err != nil || img.Bounds().Dx() != 2 {
		t.Fatalf("DecodeImage = %v, %v", img, err)
	}
	if _, err := DecodeImage(nil); !errors.Is(err, ErrDecode) {
		t.Errorf("empty payload err = %v", err)
	}
	if _, err := DecodeImage([]byte("%PDF-1.4")); !errors.Is(err, ErrDecode) {
		t.Errorf("non-image err = %v", err)
	}
}

// --- Release ---

func TestReleaseTexture(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 4, Height: 4})
	n := ts.texturedBox(tex)
	ts.step(0)
	before := ts.Textures().Len()

	ts.ReleaseTexture(tex)
	if _, ok := ts.Textures().Lookup(TextureTypeNoise, TextureProps{Width: 4, Height: 4}); ok {
		t.Error("released texture should leave the cache")
	}
	if tex.State() != TextureLoaded {
		t.Error("referenced texture should keep rendering after release")
	}
	fresh := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 4, Height: 4})
	if fresh == tex {
		t.Error("request after release should create a new texture")
	}

	n.SetTexture(nil)
	if tex.State() != TextureFreed {
		t.Errorf("state = %v, want freed at zero refs", tex.State())
	}
	if len(ts.r.freed) != 1 || ts.r.freed[0] != tex.ID() {
		t.Errorf("freed = %v", ts.r.freed)
	}
	if ts.Textures().Len() != before {
		t.Errorf("Len = %d, want %d (released forgotten, fresh added)", ts.Textures().Len(), before)
	}
	if _, ok := ts.Textures().Texture(tex.ID()); ok {
		t.Error("released texture should be forgotten")
	}

	n.SetTexture(tex)
	if n.Texture() != nil {
		t.Error("a released and freed texture should not attach")
	}
	if _, err := ts.CreateTexture(TextureTypeSub, TextureProps{Parent: tex}, TextureOptions{}); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("sub of released parent err = %v", err)
	}
}

// --- Cleanup ---

func ageSettings(age time.Duration) Settings {
	s := testSettings()
	s.TextureMemory.ZeroRefAgeThreshold = Duration(age)
	return s
}

func TestCleanupWaitsForAgeThreshold(t *testing.T) {
	ts := newTestStageWith(t, ageSettings(time.Second))
	mgr := ts.Textures()
	tex := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: ColorWhite})
	n := ts.texturedBox(tex)
	ts.step(0)
	n.SetTexture(nil)

	mgr.ProcessLoads(testEpoch.Add(500 * time.Millisecond))
	if freed := mgr.Cleanup(CleanupPeriodic); freed != 0 {
		t.Errorf("freed %d before the grace period elapsed", freed)
	}
	mgr.ProcessLoads(testEpoch.Add(time.Second))
	if freed := mgr.Cleanup(CleanupPeriodic); freed != 1 {
		t.Fatalf("freed = %d, want 1", freed)
	}
	if tex.State() != TextureFreed || tex.Memory() != 0 {
		t.Errorf("state = %v memory = %d", tex.State(), tex.Memory())
	}

	// Evicted textures stay cached and reload when referenced again.
	if got, ok := mgr.Lookup(TextureTypeColor, TextureProps{Color: ColorWhite}); !ok || got != tex {
		t.Fatal("evicted texture should stay cached")
	}
	n.SetTexture(tex)
	ts.now = testEpoch.Add(2 * time.Second)
	ts.step(0)
	if tex.State() != TextureLoaded || ts.r.uploads[tex.ID()] != 2 {
		t.Errorf("reload: state = %v uploads = %d", tex.State(), ts.r.uploads[tex.ID()])
	}
}

func TestCriticalCleanupIgnoresAge(t *testing.T) {
	ts := newTestStageWith(t, ageSettings(time.Hour))
	tex := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: ColorWhite})
	kept := mustTexture(t, ts, TextureTypeColor, TextureProps{Color: ColorBlack})
	n := ts.texturedBox(tex)
	ts.texturedBox(kept)
	ts.step(0)
	n.SetTexture(nil)

	if freed := ts.Textures().Cleanup(CleanupCritical); freed != 1 {
		t.Errorf("freed = %d, want 1", freed)
	}
	if kept.State() != TextureLoaded {
		t.Error("referenced texture must never be evicted")
	}
}

func TestPreventCleanup(t *testing.T) {
	ts := newTestStageWith(t, ageSettings(0))
	tex, err := ts.CreateTexture(TextureTypeColor, TextureProps{Color: ColorWhite}, TextureOptions{PreventCleanup: true})
	if err != nil {
		t.Fatal(err)
	}
	n := ts.texturedBox(tex)
	ts.step(0)
	n.SetTexture(nil)
	if freed := ts.Textures().Cleanup(CleanupCritical); freed != 0 {
		t.Errorf("freed = %d, want 0 for preventCleanup", freed)
	}
}

func TestCriticalMemoryDefersLoads(t *testing.T) {
	s := testSettings()
	s.TextureMemory.Strategy = StrategyThreshold
	s.TextureMemory.CriticalThreshold = datasize.ByteSize(100)
	s.TextureMemory.BaselineMemoryAllocation = 0
	ts := newTestStageWith(t, s)
	var events []StageEvent
	ts.On(StageEventCriticalCleanup, func(ev StageEvent) { events = append(events, ev) })
	ts.On(StageEventCriticalCleanupFailed, func(ev StageEvent) { events = append(events, ev) })

	a := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 4, Height: 4, Seed: 1})
	b := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 4, Height: 4, Seed: 2})
	na := ts.texturedBox(a)
	ts.texturedBox(b)
	ts.step(0)

	if len(events) != 2 || events[0].Type != StageEventCriticalCleanup || events[1].Type != StageEventCriticalCleanupFailed {
		t.Fatalf("events = %+v", events)
	}
	if events[0].MemUsed != 128 || events[0].Critical != 100 {
		t.Errorf("event memory = %d / %d", events[0].MemUsed, events[0].Critical)
	}
	if !ts.Textures().Deferring() {
		t.Fatal("loads should be deferred while nothing can be evicted")
	}

	c := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 4, Height: 4, Seed: 3})
	ts.texturedBox(c)
	ts.step(16 * time.Millisecond)
	if c.State() != TextureLoading {
		t.Errorf("deferred texture state = %v, want loading", c.State())
	}

	na.SetTexture(nil)
	ts.step(16 * time.Millisecond) // renders the detach
	ts.step(16 * time.Millisecond) // idle: cleanup frees a, loads resume
	if a.State() != TextureFreed {
		t.Errorf("a = %v, want freed", a.State())
	}
	if ts.Textures().Deferring() {
		t.Error("loads should resume once below the critical threshold")
	}
	ts.step(16 * time.Millisecond)
	if c.State() != TextureLoaded {
		t.Errorf("c = %v, want loaded after resume", c.State())
	}
}

func TestMemoryStats(t *testing.T) {
	ts := newTestStage(t)
	tex := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 10, Height: 10})
	ts.texturedBox(tex)
	ts.step(0)
	st := ts.Textures().Memory().Stats()
	baseline := int64(25 * datasize.MB)
	if st.Baseline != baseline || st.Textures != 400 || st.Used != baseline+400 || st.Loaded != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Target != int64(float64(124*datasize.MB)*0.5) {
		t.Errorf("Target = %d", st.Target)
	}

	ts.Textures().SetTintMemory(tex, 100)
	if ts.Textures().Memory().Stats().Tints != 100 {
		t.Error("tint bytes should be accounted")
	}
	ts.Textures().SetTintMemory(tex, 0)
	if ts.Textures().Memory().TintBytes(tex) != 0 {
		t.Error("zero tint bytes should remove the record")
	}
}
