package ebitenbackend

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/lantern"
)

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title string
	// Window size; zero uses the renderer size.
	Width, Height int
	Resizable     bool
	// ScreenshotDir is where Screenshot writes PNG files.
	ScreenshotDir string
	// Script is an optional frame script, see LoadScript.
	Script *Script
	// OnUpdate runs once per tick before the frame is drawn. Returning an
	// error stops the game.
	OnUpdate func() error
}

// Game adapts a Stage to ebiten.Game. Draw runs one stage frame and copies
// the renderer's canvas to the screen.
type Game struct {
	stage    *lantern.Stage
	renderer *Renderer
	cfg      RunConfig
	now      func() time.Time

	screenshotQueue []string
	exitAfterDraw   bool
}

var _ ebiten.Game = (*Game)(nil)

// NewGame returns a Game drawing stage through r.
func NewGame(stage *lantern.Stage, r *Renderer, cfg RunConfig) *Game {
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}
	return &Game{stage: stage, renderer: r, cfg: cfg, now: time.Now}
}

// Stage returns the stage the game drives.
func (g *Game) Stage() *lantern.Stage { return g.stage }

// Update runs the script step and the OnUpdate hook.
func (g *Game) Update() error {
	if g.exitAfterDraw {
		return ebiten.Termination
	}
	if s := g.cfg.Script; s != nil {
		s.step(g)
		if s.Done() && len(g.screenshotQueue) == 0 && s.ExitOnDone {
			g.exitAfterDraw = true
		}
	}
	if g.cfg.OnUpdate != nil {
		return g.cfg.OnUpdate()
	}
	return nil
}

// Draw advances the stage by one frame and presents the canvas. The canvas
// keeps the last rendered frame while the stage is idle.
func (g *Game) Draw(screen *ebiten.Image) {
	g.stage.Frame(g.now())
	screen.DrawImage(g.renderer.Canvas(), nil)
	g.flushScreenshots()
}

// Layout fixes the logical screen to the renderer size.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.renderer.Size()
}

// Run opens a window and drives stage until the window closes or the
// OnUpdate hook returns an error.
func Run(stage *lantern.Stage, r *Renderer, cfg RunConfig) error {
	g := NewGame(stage, r, cfg)
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = r.Size()
	}
	ebiten.SetWindowSize(w, h)
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if fps := stage.TargetFPS(); fps > 0 {
		ebiten.SetTPS(fps)
	}
	lantern.Logger().Info("ebitenbackend: game started", "width", w, "height", h)
	err := ebiten.RunGame(g)
	lantern.Logger().Info("ebitenbackend: game stopped", "frames", stage.Frames())
	return err
}
