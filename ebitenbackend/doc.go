// Package ebitenbackend draws a lantern Stage with Ebitengine.
//
// [Renderer] implements [lantern.Renderer] on ebiten images: textures are
// uploaded once and keyed by texture ID, render textures come from a
// power-of-two pool, default quads sharing a texture are coalesced into one
// DrawTriangles32 call, and shader quads run the built-in Kage programs.
// The screen pass renders into an offscreen canvas so an idle stage keeps
// showing its last frame.
//
// Usage:
//
//	r := ebitenbackend.NewRenderer(1920, 1080)
//	stage, err := lantern.NewStage(settings, r,
//		lantern.WithTextRenderer(ebitenbackend.NewFontTextRenderer()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	// build the scene...
//	if err := ebitenbackend.Run(stage, r, ebitenbackend.RunConfig{Title: "lantern"}); err != nil {
//		log.Fatal(err)
//	}
package ebitenbackend
