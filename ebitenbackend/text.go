package ebitenbackend

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/phanxgames/lantern"
)

// DefaultFontFamily is the family used when TextProps.FontFamily is empty
// or unknown.
const DefaultFontFamily = "Go"

const defaultFontSize = 24

// FontTextRenderer rasterizes text on the CPU with OpenType fonts. It wraps
// on spaces and does no shaping. Safe for concurrent use.
type FontTextRenderer struct {
	mu    sync.RWMutex
	fonts map[string]*opentype.Font
}

var _ lantern.TextRenderer = (*FontTextRenderer)(nil)

// NewFontTextRenderer returns a renderer with the Go Regular font registered
// as DefaultFontFamily.
func NewFontTextRenderer() *FontTextRenderer {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic("ebitenbackend: failed to parse Go Regular: " + err.Error())
	}
	return &FontTextRenderer{fonts: map[string]*opentype.Font{DefaultFontFamily: f}}
}

// RegisterFont parses an OpenType or TrueType font and registers it under
// family.
func (r *FontTextRenderer) RegisterFont(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("ebitenbackend: parse font %q: %w", family, err)
	}
	r.mu.Lock()
	r.fonts[family] = f
	r.mu.Unlock()
	return nil
}

func (r *FontTextRenderer) font(family string) *opentype.Font {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fonts[family]; ok {
		return f
	}
	return r.fonts[DefaultFontFamily]
}

// LayoutText wraps p.Text to MaxWidth, truncates to MaxLines and MaxHeight
// and draws the lines in white. Tint the node to color the text.
func (r *FontTextRenderer) LayoutText(ctx context.Context, p lantern.TextProps) (lantern.TextLayout, error) {
	size := p.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	face, err := opentype.NewFace(r.font(p.FontFamily), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return lantern.TextLayout{}, fmt.Errorf("ebitenbackend: font face: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	lineHeight := p.LineHeight
	if lineHeight <= 0 {
		lineHeight = fixedToFloat(m.Height)
	}
	measure := func(s string) float64 {
		return measureString(face, s, p.LetterSpacing)
	}

	lines := wrapText(p.Text, p.MaxWidth, measure)
	maxLines := p.MaxLines
	if p.MaxHeight > 0 {
		fit := int(math.Floor(p.MaxHeight / lineHeight))
		if fit < 1 {
			fit = 1
		}
		if maxLines == 0 || fit < maxLines {
			maxLines = fit
		}
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	if err := ctx.Err(); err != nil {
		return lantern.TextLayout{}, err
	}

	widths := make([]float64, len(lines))
	width := 0.0
	for i, l := range lines {
		widths[i] = measure(l)
		width = math.Max(width, widths[i])
	}
	if p.MaxWidth > 0 && p.TextAlign != lantern.AlignLeft {
		width = p.MaxWidth
	}
	height := lineHeight * float64(len(lines))
	out := lantern.TextLayout{Width: width, Height: height, Lines: len(lines)}
	w, h := int(math.Ceil(width)), int(math.Ceil(height))
	if w <= 0 || h <= 0 {
		return out, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{Dst: dst, Src: image.White, Face: face}
	ascent := fixedToFloat(m.Ascent)
	for i, l := range lines {
		if err := ctx.Err(); err != nil {
			return lantern.TextLayout{}, err
		}
		x := 0.0
		switch p.TextAlign {
		case lantern.AlignCenter:
			x = (width - widths[i]) / 2
		case lantern.AlignRight:
			x = width - widths[i]
		}
		y := float64(i)*lineHeight + (lineHeight-fixedToFloat(m.Height))/2 + ascent
		d.Dot = fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y)}
		if p.LetterSpacing == 0 {
			d.DrawString(l)
			continue
		}
		for _, c := range l {
			d.DrawString(string(c))
			d.Dot.X += floatToFixed(p.LetterSpacing)
		}
	}
	out.Image = dst
	return out, nil
}

func measureString(face font.Face, s string, spacing float64) float64 {
	w := fixedToFloat(font.MeasureString(face, s))
	if spacing != 0 {
		w += spacing * float64(len([]rune(s)))
	}
	return w
}

// wrapText splits text into lines no wider than maxWidth. Explicit newlines
// always break; a single word wider than maxWidth gets a line of its own.
func wrapText(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			lines = append(lines, para)
			continue
		}
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			next := cur + " " + w
			if measure(next) > maxWidth {
				lines = append(lines, cur)
				cur = w
				continue
			}
			cur = next
		}
		lines = append(lines, cur)
	}
	return lines
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }
