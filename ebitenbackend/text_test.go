package ebitenbackend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanxgames/lantern"
)

// runeWidth measures every rune as 10 pixels.
func runeWidth(s string) float64 { return float64(len([]rune(s))) * 10 }

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{"unbounded", "hello world", 0, []string{"hello world"}},
		{"fits", "hello world", 110, []string{"hello world"}},
		{"wraps", "hello world", 60, []string{"hello", "world"}},
		{"long word", "extraordinary a", 50, []string{"extraordinary", "a"}},
		{"newlines", "a\nb c", 0, []string{"a", "b c"}},
		{"blank line", "a\n\nb", 100, []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapText(tt.text, tt.maxWidth, runeWidth))
		})
	}
}

func TestFontTextRendererLayout(t *testing.T) {
	r := NewFontTextRenderer()
	l, err := r.LayoutText(context.Background(), lantern.TextProps{Text: "Hello", FontSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Lines)
	assert.Greater(t, l.Width, 0.0)
	assert.Greater(t, l.Height, 0.0)
	require.NotNil(t, l.Image)
	assert.GreaterOrEqual(t, l.Image.Bounds().Dx(), int(l.Width))
}

func TestFontTextRendererMaxLines(t *testing.T) {
	r := NewFontTextRenderer()
	p := lantern.TextProps{
		Text:     strings.Repeat("word ", 40),
		FontSize: 16,
		MaxWidth: 120,
		MaxLines: 2,
	}
	l, err := r.LayoutText(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Lines)
	assert.LessOrEqual(t, l.Width, 120.0)
}

func TestFontTextRendererMaxHeight(t *testing.T) {
	r := NewFontTextRenderer()
	p := lantern.TextProps{
		Text:       "a\nb\nc\nd",
		FontSize:   16,
		LineHeight: 20,
		MaxHeight:  45,
	}
	l, err := r.LayoutText(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Lines)
	assert.Equal(t, 40.0, l.Height)
}

func TestFontTextRendererAlignUsesMaxWidth(t *testing.T) {
	r := NewFontTextRenderer()
	l, err := r.LayoutText(context.Background(), lantern.TextProps{Text: "hi", MaxWidth: 300, TextAlign: lantern.AlignCenter})
	require.NoError(t, err)
	assert.Equal(t, 300.0, l.Width)
}

func TestFontTextRendererCanceled(t *testing.T) {
	r := NewFontTextRenderer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.LayoutText(ctx, lantern.TextProps{Text: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFontTextRendererEmpty(t *testing.T) {
	r := NewFontTextRenderer()
	l, err := r.LayoutText(context.Background(), lantern.TextProps{})
	require.NoError(t, err)
	assert.Nil(t, l.Image)
	assert.Equal(t, 0.0, l.Width)
}

func TestRegisterFontInvalid(t *testing.T) {
	r := NewFontTextRenderer()
	assert.Error(t, r.RegisterFont("bad", []byte("not a font")))
}
