package lantern

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// loadResult is a finished (or failed) load waiting to be applied on the
// frame loop.
type loadResult struct {
	tex *Texture
	gen uint64
	img image.Image
	err error
}

// TextureManager owns every texture of a stage: the cache keyed by
// normalized props, reference counts, asynchronous loads and memory
// accounting. All methods except the internal loader goroutines run on the
// frame loop.
type TextureManager struct {
	renderer Renderer
	fetcher  ImageFetcher
	tracker  TextureTracker
	memory   *TextureMemory
	sync     bool

	cache    map[string]*Texture
	textures map[TextureID]*Texture
	nextID   TextureID

	sem      *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	mu       sync.Mutex
	pending  []loadResult // written by loader goroutines
	ready    []loadResult

	now       time.Time
	memDirty  bool
	deferring bool
	deferred  []*Texture

	emitStage func(StageEvent)
}

func newTextureManager(r Renderer, fetcher ImageFetcher, tracker TextureTracker, s TextureMemorySettings, concurrency int, syncLoads bool) *TextureManager {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TextureManager{
		renderer:  r,
		fetcher:   fetcher,
		tracker:   tracker,
		memory:    newTextureMemory(int64(s.CriticalThreshold.Bytes()), s.TargetThresholdLevel, int64(s.BaselineMemoryAllocation.Bytes())),
		sync:      syncLoads,
		cache:     make(map[string]*Texture),
		textures:  make(map[TextureID]*Texture),
		sem:       semaphore.NewWeighted(int64(concurrency)),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now(),
		emitStage: func(StageEvent) {},
	}
}

// Memory returns the byte accounting.
func (m *TextureManager) Memory() *TextureMemory { return m.memory }

// Tracker returns the usage tracker.
func (m *TextureManager) Tracker() TextureTracker { return m.tracker }

// Len returns the number of live textures.
func (m *TextureManager) Len() int { return len(m.textures) }

// Texture returns a live texture by ID.
func (m *TextureManager) Texture(id TextureID) (*Texture, bool) {
	t, ok := m.textures[id]
	return t, ok
}

// Lookup returns the cached texture for a request without creating it.
func (m *TextureManager) Lookup(typ TextureType, props TextureProps) (*Texture, bool) {
	key, cacheable, err := textureKey(typ, props)
	if err != nil || !cacheable {
		return nil, false
	}
	t, ok := m.cache[key]
	return t, ok
}

// Deferring reports whether new loads are held back because memory could
// not be brought below the critical threshold.
func (m *TextureManager) Deferring() bool { return m.deferring }

// CreateTexture returns the texture for (typ, props). Requests that
// normalize to the same key return the same texture until it is released
// or evicted and forgotten. The texture starts loading once a node
// references it.
func (m *TextureManager) CreateTexture(typ TextureType, props TextureProps, opts TextureOptions) (*Texture, error) {
	key, cacheable, err := textureKey(typ, props)
	if err != nil {
		return nil, err
	}
	if typ == TextureTypeSub && props.Parent.released && props.Parent.state == TextureFreed {
		return nil, fmt.Errorf("%w: parent %s", ErrTextureReleased, props.Parent.key)
	}
	if cacheable {
		if t, ok := m.cache[key]; ok {
			if opts.PreventCleanup {
				t.preventCleanup = true
			}
			return t, nil
		}
	}
	m.nextID++
	t := &Texture{
		id:             m.nextID,
		typ:            typ,
		props:          props,
		key:            key,
		mgr:            m,
		lastUsed:       m.now,
		preventCleanup: opts.PreventCleanup || typ == TextureTypeRender,
	}
	if typ == TextureTypeSub {
		t.parentSub = props.Parent.events.onAny(func(ev TextureEvent) { m.onParentEvent(t, ev) })
	}
	m.textures[t.id] = t
	if cacheable {
		m.cache[key] = t
	}
	m.tracker.Register(t, m.now)
	return t, nil
}

// ReleaseTexture removes t from the cache. Nodes still holding it keep
// rendering it; once nothing references it the texture is freed and
// forgotten. Later requests for the same props create a new texture.
func (m *TextureManager) ReleaseTexture(t *Texture) {
	if t == nil || t.released {
		return
	}
	t.released = true
	if m.cache[t.key] == t {
		delete(m.cache, t.key)
	}
	if t.refCount == 0 {
		m.free(t)
		m.forget(t)
	}
}

// SetTintMemory records the bytes a backend holds in tinted copies of t.
// Calling it again refreshes the copies' recency; 0 removes the record.
func (m *TextureManager) SetTintMemory(t *Texture, bytes int64) {
	m.memory.setTint(t, bytes, m.now)
	m.memDirty = true
}

func (m *TextureManager) incRef(t *Texture) {
	if t.typ == TextureTypeSub && t.props.Parent != nil {
		m.incRef(t.props.Parent)
	}
	t.refCount++
	t.lastUsed = m.now
	m.tracker.IncrementRef(t, m.now)
	if t.refCount == 1 && (t.state == TextureInitial || t.state == TextureFreed) {
		m.load(t)
	}
}

func (m *TextureManager) decRef(t *Texture) {
	if t.refCount <= 0 {
		panic(fmt.Sprintf("lantern: texture reference count below zero (%s)", t.key))
	}
	t.refCount--
	t.lastUsed = m.now
	m.tracker.DecrementRef(t, m.now)
	if t.refCount == 0 && t.released {
		m.free(t)
		m.forget(t)
	}
	if t.typ == TextureTypeSub && t.props.Parent != nil {
		m.decRef(t.props.Parent)
	}
}

// load moves t to loading and starts producing its pixels, unless new loads
// are deferred under memory pressure.
func (m *TextureManager) load(t *Texture) {
	t.state = TextureLoading
	t.err = nil
	t.loadGen++
	if m.deferring && t.typ != TextureTypeRender && t.typ != TextureTypeSub {
		m.deferred = append(m.deferred, t)
		return
	}
	m.start(t)
}

func (m *TextureManager) start(t *Texture) {
	r := loadResult{tex: t, gen: t.loadGen}
	p := t.props
	switch t.typ {
	case TextureTypeImage:
		switch {
		case p.Data != nil:
			r.img = p.Data
		case m.fetcher == nil:
			r.err = fmt.Errorf("%w: %s", ErrNoImageFetcher, p.Src)
		case m.sync:
			r.img, r.err = m.fetch(m.ctx, p.Src)
		default:
			m.inflight.Add(1)
			go func() {
				defer m.inflight.Done()
				r.img, r.err = m.fetch(m.ctx, p.Src)
				m.mu.Lock()
				m.pending = append(m.pending, r)
				m.mu.Unlock()
			}()
			return
		}
	case TextureTypeColor:
		r.img = solidImage(p.Color)
	case TextureTypeNoise:
		r.img = noiseImage(p.Width, p.Height, p.Seed)
	case TextureTypeSub:
		switch p.Parent.state {
		case TextureLoaded:
		case TextureFailed:
			r.err = fmt.Errorf("lantern: parent texture failed: %w", p.Parent.err)
		default:
			// Completed by onParentEvent.
			return
		}
	case TextureTypeRender:
	}
	m.ready = append(m.ready, r)
}

// fetch runs on a loader goroutine (or inline for synchronous loads).
func (m *TextureManager) fetch(ctx context.Context, src string) (image.Image, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.sem.Release(1)
	data, err := m.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("lantern: fetch %q: %w", src, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("lantern: decode %q: %w", src, err)
	}
	return img, nil
}

func (m *TextureManager) onParentEvent(t *Texture, ev TextureEvent) {
	switch ev.Type {
	case TextureEventLoaded:
		if t.state == TextureLoading {
			m.ready = append(m.ready, loadResult{tex: t, gen: t.loadGen})
		}
	case TextureEventFailed:
		if t.state == TextureLoading {
			m.ready = append(m.ready, loadResult{
				tex: t,
				gen: t.loadGen,
				err: fmt.Errorf("lantern: parent texture failed: %w", ev.Err),
			})
		}
	case TextureEventFreed:
		if t.state == TextureLoaded || t.state == TextureFailed {
			t.state = TextureFreed
			t.width, t.height = 0, 0
			t.loadGen++
			t.emit(TextureEvent{Type: TextureEventFreed})
		}
	}
}

// ProcessLoads applies finished loads: uploads pixels, updates memory
// accounting and emits loaded/failed events. Results for textures that were
// freed or reloaded since the load started are discarded. It returns the
// number of results applied.
func (m *TextureManager) ProcessLoads(now time.Time) int {
	m.now = now
	m.mu.Lock()
	m.ready = append(m.ready, m.pending...)
	m.pending = m.pending[:0]
	m.mu.Unlock()

	applied := 0
	// Completing a parent can make its sub-textures ready in the same frame.
	for round := 0; round < 4 && len(m.ready) > 0; round++ {
		batch := m.ready
		m.ready = nil
		for _, r := range batch {
			if m.complete(r) {
				applied++
			}
		}
	}
	m.maintain()
	return applied
}

func (m *TextureManager) complete(r loadResult) bool {
	t := r.tex
	if r.gen != t.loadGen || t.state != TextureLoading {
		return false
	}
	err := r.err
	var w, h int
	if err == nil {
		switch t.typ {
		case TextureTypeSub:
			reg := t.props.Region
			w, h = int(reg.Width), int(reg.Height)
			if w <= 0 || h <= 0 {
				w, h = t.props.Parent.width, t.props.Parent.height
			}
		case TextureTypeRender:
			w, h = max(t.props.Width, 1), max(t.props.Height, 1)
			err = m.renderer.CreateRenderTarget(t, w, h)
		default:
			b := r.img.Bounds()
			w, h = b.Dx(), b.Dy()
			err = m.renderer.UploadTexture(t, r.img)
		}
	}
	if err != nil {
		t.state = TextureFailed
		t.err = err
		Logger().Warn("lantern: texture load failed", "texture", t.key, "error", err)
		t.emit(TextureEvent{Type: TextureEventFailed, Err: err})
		return true
	}
	t.state = TextureLoaded
	t.width, t.height = w, h
	if t.typ != TextureTypeSub {
		m.memory.setTexture(t, int64(w)*int64(h)*bytesPerPixel)
		m.memDirty = true
	}
	t.emit(TextureEvent{Type: TextureEventLoaded, Dimensions: t.Dimensions()})
	return true
}

// free releases t's GPU resources. Referenced textures are never freed.
func (m *TextureManager) free(t *Texture) {
	if t.refCount > 0 {
		return
	}
	switch t.state {
	case TextureLoading, TextureLoaded, TextureFailed:
	default:
		return
	}
	if t.state == TextureLoaded && t.typ != TextureTypeSub {
		m.renderer.FreeTexture(t)
	}
	if m.memory.TintBytes(t) > 0 {
		if tf, ok := m.renderer.(TintFreer); ok {
			tf.FreeTint(t)
		}
	}
	m.memory.removeTexture(t)
	m.memDirty = true
	t.state = TextureFreed
	t.err = nil
	t.width, t.height = 0, 0
	t.loadGen++
	t.emit(TextureEvent{Type: TextureEventFreed})
}

func (m *TextureManager) freeTint(t *Texture) {
	if m.memory.TintBytes(t) == 0 {
		return
	}
	if tf, ok := m.renderer.(TintFreer); ok {
		tf.FreeTint(t)
	}
	m.memory.removeTint(t)
	m.memDirty = true
}

// forget drops a released, freed texture from every index.
func (m *TextureManager) forget(t *Texture) {
	delete(m.textures, t.id)
	if m.cache[t.key] == t {
		delete(m.cache, t.key)
	}
	m.tracker.Unregister(t)
	if t.typ == TextureTypeSub && t.props.Parent != nil {
		t.props.Parent.events.off(t.parentSub)
	}
	t.events.clear()
}

// Cleanup asks the tracker for evictions and frees them, re-checking that
// each texture is unreferenced at that moment. It returns the number of
// textures or tint caches freed.
func (m *TextureManager) Cleanup(mode CleanupMode) int {
	freed := 0
	for _, ev := range m.tracker.Cleanup(m.now, mode, m.memory) {
		t := ev.Texture
		if ev.Tint {
			if m.memory.TintBytes(t) > 0 {
				m.freeTint(t)
				freed++
			}
			continue
		}
		if t.refCount > 0 || t.preventCleanup {
			continue
		}
		// An evicted texture stays cached; referencing it again reloads it
		// into a fresh GPU allocation.
		m.free(t)
		if t.released {
			m.forget(t)
		}
		freed++
	}
	if freed > 0 {
		Logger().Debug("lantern: texture cleanup", "mode", mode.String(), "freed", freed,
			"used", m.memory.Used())
	}
	return freed
}

// maintain re-checks memory pressure after accounting changed.
func (m *TextureManager) maintain() {
	if m.memDirty {
		m.checkCriticalMemory()
	}
}

// checkCriticalMemory runs a critical cleanup when usage is over the
// critical threshold. If nothing more can be evicted, new loads are
// deferred until usage drops again.
func (m *TextureManager) checkCriticalMemory() {
	m.memDirty = false
	if !m.memory.OverCritical() {
		m.resume()
		return
	}
	m.emitStage(StageEvent{Type: StageEventCriticalCleanup, MemUsed: m.memory.Used(), Critical: m.memory.Critical()})
	m.Cleanup(CleanupCritical)
	m.memDirty = false
	if !m.memory.OverCritical() {
		m.resume()
		return
	}
	if !m.deferring {
		m.deferring = true
		Logger().Warn("lantern: texture memory over critical threshold, deferring loads",
			"used", m.memory.Used(), "critical", m.memory.Critical())
		m.emitStage(StageEvent{Type: StageEventCriticalCleanupFailed, MemUsed: m.memory.Used(), Critical: m.memory.Critical()})
	}
}

func (m *TextureManager) resume() {
	if !m.deferring {
		return
	}
	m.deferring = false
	list := m.deferred
	m.deferred = nil
	for _, t := range list {
		if t.state == TextureLoading && t.refCount > 0 {
			m.start(t)
		}
	}
}

func (m *TextureManager) createRenderTexture(w, h int) *Texture {
	t, err := m.CreateTexture(TextureTypeRender, TextureProps{Width: w, Height: h}, TextureOptions{})
	if err != nil {
		// Render textures have no failing key.
		panic(err)
	}
	return t
}

// resizeRenderTexture reallocates a render target after its node resized.
func (m *TextureManager) resizeRenderTexture(t *Texture, w, h int) {
	if t == nil || t.typ != TextureTypeRender {
		return
	}
	w, h = max(w, 1), max(h, 1)
	t.props.Width, t.props.Height = w, h
	if t.state != TextureLoaded || (t.width == w && t.height == h) {
		return
	}
	if err := m.renderer.CreateRenderTarget(t, w, h); err != nil {
		t.state = TextureFailed
		t.err = err
		m.memory.removeTexture(t)
		m.memDirty = true
		Logger().Warn("lantern: render target resize failed", "texture", t.id, "error", err)
		t.emit(TextureEvent{Type: TextureEventFailed, Err: err})
		return
	}
	t.width, t.height = w, h
	m.memory.setTexture(t, int64(w)*int64(h)*bytesPerPixel)
	m.memDirty = true
}

// Wait blocks until every in-flight fetch has finished. The results are
// applied by the next ProcessLoads.
func (m *TextureManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight loads and frees every loaded texture.
func (m *TextureManager) Close() {
	m.cancel()
	m.inflight.Wait()
	for _, t := range m.textures {
		if t.state == TextureLoaded && t.typ != TextureTypeSub {
			m.renderer.FreeTexture(t)
		}
		m.memory.removeTexture(t)
		t.state = TextureFreed
	}
	m.cache = make(map[string]*Texture)
}
