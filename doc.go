// Package lantern is a retained-mode 2D scene graph for TV and embedded
// displays.
//
// Application code builds a tree of [Node] values (rectangles, images and
// text) on a [Stage]. Each frame the stage advances animations, runs an
// update pass that recomputes only what changed (transforms, clipping,
// z-order, viewport classification, shader uniforms), and hands the
// resulting quads to a [Renderer] in batches. GPU texture memory is managed
// under a hard budget by a [TextureManager] and a [TextureTracker].
//
// # Quick start
//
//	stage, err := lantern.NewStage(lantern.DefaultSettings(), renderer,
//		lantern.WithImageFetcher(lantern.FSFetcher{FS: assets}))
//	if err != nil {
//		return err
//	}
//	p := lantern.DefaultNodeProps()
//	p.Parent = stage.Root()
//	p.Width, p.Height = 200, 120
//	p.Color = 0x3366ffff
//	box := stage.CreateNode(p)
//
//	ctrl, err := stage.Animate(box,
//		lantern.AnimationProps{Props: map[lantern.Prop]float64{lantern.PropX: 400}},
//		lantern.AnimationSettings{Duration: time.Second, Easing: "ease-in-out"})
//	if err != nil {
//		return err
//	}
//	ctrl.Start()
//	return stage.Run(ctx, nil)
//
// The ebitenbackend package provides a Renderer on Ebitengine. The mirror
// package lets a control goroutine drive a stage that lives on its own
// frame-loop goroutine, and the ecs package forwards node events into a
// Donburi world.
//
// # Textures
//
// Textures are created by type and props ([TextureTypeImage],
// [TextureTypeColor], [TextureTypeNoise], [TextureTypeSub],
// [TextureTypeRender]); identical requests return the same texture.
// Attaching a texture to a node counts a reference and starts its load.
// Loads are asynchronous and applied on the frame loop. Unreferenced
// textures are freed by the configured tracker: after a grace period
// ([ManualCountTracker]), least recently used first when memory is over
// the critical threshold ([ThresholdTracker]), or both ([CombinedTracker]).
//
// # Shaders
//
// Effects are shader types with a prop schema. [Stage.CreateShader] returns
// a shared [ShaderNode] per distinct prop set. The built-in types are
// Default, Rounded, Border, RoundedWithBorder, Shadow, HolePunch,
// LinearGradient and RadialGradient.
//
// # Logging
//
// lantern logs through log/slog and is silent by default; see [SetLogger].
package lantern
