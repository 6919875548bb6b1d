package lantern

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Option configures a Stage.
type Option func(*stageOptions)

type stageOptions struct {
	fetcher   ImageFetcher
	text      TextRenderer
	tracker   TextureTracker
	syncLoads bool
	now       time.Time
}

// WithImageFetcher sets the source of image texture bytes.
func WithImageFetcher(f ImageFetcher) Option {
	return func(o *stageOptions) { o.fetcher = f }
}

// WithTextRenderer sets the text layout collaborator of text nodes.
func WithTextRenderer(r TextRenderer) Option {
	return func(o *stageOptions) { o.text = r }
}

// WithTracker replaces the usage tracker selected by the memory settings.
func WithTracker(t TextureTracker) Option {
	return func(o *stageOptions) { o.tracker = t }
}

// WithSyncTextureLoads fetches images and lays out text inline instead of
// on loader goroutines. Results are still applied by the next Frame.
// Intended for tests and single-threaded hosts.
func WithSyncTextureLoads() Option {
	return func(o *stageOptions) { o.syncLoads = true }
}

// WithStartTime sets the stage clock's initial time, used to stamp
// textures created before the first Frame.
func WithStartTime(t time.Time) Option {
	return func(o *stageOptions) { o.now = t }
}

// Stage owns a node tree, its texture and shader managers, the running
// animations and the frame loop. A Stage is not safe for concurrent use:
// every method must be called from the goroutine running the frame loop
// (see the mirror package for driving a stage from another goroutine).
type Stage struct {
	settings Settings
	renderer Renderer

	root   *Node
	nodes  map[NodeID]*Node
	nextID NodeID

	textures   *TextureManager
	shaders    *ShaderManager
	animations animationManager

	viewport Rect
	debug    bool
	sink     EventSink
	events   emitter[StageEventType, StageEvent]

	// Text layout
	text        TextRenderer
	texts       map[NodeID]*textEntry
	syncLoads   bool
	ctx         context.Context
	cancel      context.CancelFunc
	textWG      sync.WaitGroup
	textMu      sync.Mutex
	textPending []textResult // written by layout goroutines
	textReady   []textResult

	// Frame loop
	renderRequested bool
	idle            bool
	closed          bool
	frames          uint64
	lastFrame       time.Time
	lastCleanup     time.Time
	targetFPS       int
	fps             fpsCounter
	beforeFrame     func(now time.Time)

	// Render buffers, reused across frames
	quads    []Quad
	rttQuads []Quad
	batches  []Batch
	stats    renderStats
}

// NewStage validates settings and builds a stage drawing through r. The
// root node covers the app size.
func NewStage(settings Settings, r Renderer, opts ...Option) (*Stage, error) {
	if r == nil {
		return nil, errors.New("lantern: nil renderer")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := stageOptions{now: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	tracker := o.tracker
	if tracker == nil {
		tracker = newTracker(settings.TextureMemory)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stage{
		settings:    settings,
		renderer:    r,
		nodes:       make(map[NodeID]*Node),
		viewport:    Rect{Width: float64(settings.AppWidth), Height: float64(settings.AppHeight)},
		debug:       settings.Debug,
		text:        o.text,
		texts:       make(map[NodeID]*textEntry),
		syncLoads:   o.syncLoads,
		ctx:         ctx,
		cancel:      cancel,
		targetFPS:   settings.TargetFPS,
		lastCleanup: o.now,
		fps:         newFPSCounter(settings.FPSUpdateInterval.Duration(), o.now),
	}
	s.textures = newTextureManager(r, o.fetcher, tracker, settings.TextureMemory,
		settings.MaxLoadConcurrency, o.syncLoads)
	s.textures.now = o.now
	s.textures.emitStage = s.emitStage
	s.shaders = newShaderManager(r, settings.ShaderUniformCacheSize)
	if b, ok := r.(TextureManagerBinder); ok {
		b.BindTextureManager(s.textures)
	}

	p := DefaultNodeProps()
	p.Name = "root"
	p.Width = float64(settings.AppWidth)
	p.Height = float64(settings.AppHeight)
	s.root = s.CreateNode(p)
	s.renderRequested = true

	Logger().Info("lantern: stage created",
		"width", settings.AppWidth, "height", settings.AppHeight,
		"tracker", fmt.Sprintf("%T", tracker), "critical", settings.TextureMemory.CriticalThreshold.String())
	return s, nil
}

// Root returns the root node.
func (s *Stage) Root() *Node { return s.root }

// Settings returns the settings the stage was built with.
func (s *Stage) Settings() Settings { return s.settings }

// Textures returns the texture manager.
func (s *Stage) Textures() *TextureManager { return s.textures }

// Shaders returns the shader manager.
func (s *Stage) Shaders() *ShaderManager { return s.shaders }

// Node returns a live node by ID.
func (s *Stage) Node(id NodeID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NumNodes returns the number of live nodes, including the root.
func (s *Stage) NumNodes() int { return len(s.nodes) }

// Frames returns the number of frames processed.
func (s *Stage) Frames() uint64 { return s.frames }

// Idle reports whether the last frame had nothing to draw.
func (s *Stage) Idle() bool { return s.idle }

// Viewport returns the rect nodes are classified against.
func (s *Stage) Viewport() Rect { return s.viewport }

// SetViewport changes the viewport and reclassifies every node.
func (s *Stage) SetViewport(r Rect) {
	if r == s.viewport {
		return
	}
	s.viewport = r
	markSubtreeDirty(s.root)
	s.requestRender()
}

// CreateNode creates a node from a full initial property set. Missing
// fields take the zero value; start from DefaultNodeProps for the
// documented defaults.
func (s *Stage) CreateNode(p NodeProps) *Node {
	return s.createNode(NodeKindPlain, p)
}

// CreateTextNode creates a text node. The layout starts immediately; its
// texture is attached when textLoaded fires.
func (s *Stage) CreateTextNode(p NodeProps, text TextProps) *Node {
	n := s.createNode(NodeKindText, p)
	e := &textEntry{props: text}
	s.texts[n.id] = e
	s.layoutText(n, e)
	return n
}

func (s *Stage) createNode(kind NodeKind, p NodeProps) *Node {
	if s.closed {
		panic("lantern: CreateNode on closed stage")
	}
	s.nextID++
	n := &Node{id: s.nextID, kind: kind, stage: s}
	n.applyProps(p)
	s.nodes[n.id] = n
	if p.Parent != nil {
		p.Parent.AddChild(n)
	}
	if p.Shader != nil {
		n.setShader(p.Shader)
	}
	switch {
	case p.RTT:
		n.SetRTT(true)
	case p.Texture != nil:
		n.setTexture(p.Texture)
	}
	return n
}

// forgetNode drops a destroyed node from the stage's indexes.
func (s *Stage) forgetNode(n *Node) {
	delete(s.nodes, n.id)
	s.animations.stopNode(n)
	if n.kind == NodeKindText {
		s.forgetText(n)
	}
}

// CreateTexture returns the texture for (typ, props). See
// TextureManager.CreateTexture.
func (s *Stage) CreateTexture(typ TextureType, props TextureProps, opts TextureOptions) (*Texture, error) {
	return s.textures.CreateTexture(typ, props, opts)
}

// ReleaseTexture forces t out of the texture cache.
func (s *Stage) ReleaseTexture(t *Texture) { s.textures.ReleaseTexture(t) }

// CreateShader returns the shader node for a type and props. Unknown types
// return ErrUnknownShaderType.
func (s *Stage) CreateShader(name string, props map[string]any) (*ShaderNode, error) {
	return s.shaders.CreateShader(name, props)
}

// RemoveShader forces sn out of the shader cache.
func (s *Stage) RemoveShader(sn *ShaderNode) { s.shaders.RemoveShader(sn) }

// Animate builds a controller animating n toward the target props. The
// animation starts when Start is called.
func (s *Stage) Animate(n *Node, props AnimationProps, settings AnimationSettings) (*AnimationController, error) {
	checkAlive(n, "Animate")
	if n.stage != s {
		panic("lantern: Animate with a node from another stage")
	}
	a, err := newAnimation(n, props, settings)
	if err != nil {
		return nil, err
	}
	return newAnimationController(s, a, settings), nil
}

// NumAnimations returns the number of animations advanced each frame.
func (s *Stage) NumAnimations() int { return s.animations.Len() }

// On subscribes fn to a stage event.
func (s *Stage) On(typ StageEventType, fn func(StageEvent)) Subscription {
	return s.events.on(typ, fn, false)
}

// Once subscribes fn to the next occurrence of a stage event.
func (s *Stage) Once(typ StageEventType, fn func(StageEvent)) Subscription {
	return s.events.on(typ, fn, true)
}

// Off removes a stage listener.
func (s *Stage) Off(sub Subscription) bool { return s.events.off(sub) }

func (s *Stage) emitStage(ev StageEvent) {
	s.events.emit(ev.Type, ev)
}

// SetBeforeFrame registers fn to run at the start of every Frame, before
// loads and animations are processed. The mirror worker applies control-side
// changes here. Pass nil to remove it.
func (s *Stage) SetBeforeFrame(fn func(now time.Time)) { s.beforeFrame = fn }

// EventSink returns the sink set by SetEventSink.
func (s *Stage) EventSink() EventSink { return s.sink }

// SetEventSink forwards every node event to sink after the node's own
// listeners. Pass nil to stop forwarding.
func (s *Stage) SetEventSink(sink EventSink) { s.sink = sink }

// SetDebugMode enables or disables debug mode. When enabled, tree depth and
// child count warnings are logged, node update panics include stacks, and
// per-frame timing stats are logged at debug level.
func (s *Stage) SetDebugMode(enabled bool) { s.debug = enabled }

// DebugMode reports whether debug mode is on.
func (s *Stage) DebugMode() bool { return s.debug }

// requestRender marks the next frame as needing a render.
func (s *Stage) requestRender() {
	s.renderRequested = true
	s.idle = false
}

// Wait blocks until every in-flight image fetch and text layout has
// finished. The results are applied by the next Frame.
func (s *Stage) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.textWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.textures.Wait(ctx)
}

// Close destroys the tree, cancels in-flight loads and frees every texture.
// Run returns ErrStageStopped afterwards.
func (s *Stage) Close() {
	if s.closed {
		return
	}
	s.root.Destroy()
	s.closed = true
	s.cancel()
	s.textWG.Wait()
	s.textures.Close()
	s.events.clear()
	Logger().Info("lantern: stage closed", "frames", s.frames)
}
