package lantern

import (
	"context"
	"fmt"
	"image"
)

// TextContain selects which node dimensions a text layout may change.
type TextContain uint8

const (
	ContainNone   TextContain = iota // the node takes the laid-out width and height
	ContainWidth                     // width is fixed, wrapping at it; height follows the text
	ContainBoth                      // width and height are fixed
)

func (c TextContain) String() string {
	switch c {
	case ContainWidth:
		return "width"
	case ContainBoth:
		return "both"
	default:
		return "none"
	}
}

// TextAlign is the horizontal alignment of lines within the layout width.
type TextAlign uint8

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

func (a TextAlign) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// TextProps are the text-specific fields of a text node.
type TextProps struct {
	Text       string
	FontFamily string
	FontSize   float64
	Contain    TextContain
	// MaxWidth and MaxHeight bound the layout; 0 means unbounded unless the
	// node's own size applies through Contain.
	MaxWidth      float64
	MaxHeight     float64
	MaxLines      int // 0 = unlimited
	TextAlign     TextAlign
	LetterSpacing float64
	LineHeight    float64 // 0 = font default
}

// TextLayout is a finished layout: its size and the rasterized pixels.
// A nil Image means there is nothing to draw.
type TextLayout struct {
	Width, Height float64
	Lines         int
	Image         image.Image
}

// TextRenderer lays out and rasterizes text. LayoutText runs off the frame
// loop and must honor ctx.
type TextRenderer interface {
	LayoutText(ctx context.Context, p TextProps) (TextLayout, error)
}

// TextRendererFunc adapts a function to TextRenderer.
type TextRendererFunc func(ctx context.Context, p TextProps) (TextLayout, error)

// LayoutText calls f.
func (f TextRendererFunc) LayoutText(ctx context.Context, p TextProps) (TextLayout, error) {
	return f(ctx, p)
}

// textEntry is the side-table record of a text node.
type textEntry struct {
	props   TextProps
	gen     uint64
	texture *Texture
	layout  TextLayout
}

type textResult struct {
	node   *Node
	gen    uint64
	layout TextLayout
	err    error
}

// Text returns the text fields of a text node.
func (n *Node) Text() (TextProps, bool) {
	if n.kind != NodeKindText || n.stage == nil {
		return TextProps{}, false
	}
	e := n.stage.texts[n.id]
	if e == nil {
		return TextProps{}, false
	}
	return e.props, true
}

// SetText replaces the text of a text node and schedules a new layout.
func (n *Node) SetText(text string) {
	p, ok := n.Text()
	if !ok {
		panic(fmt.Sprintf("lantern: SetText on non-text node %d", n.id))
	}
	if p.Text == text {
		return
	}
	p.Text = text
	n.SetTextProps(p)
}

// SetTextProps replaces every text field of a text node and schedules a new
// layout. Results of layouts started earlier are discarded.
func (n *Node) SetTextProps(p TextProps) {
	checkAlive(n, "SetTextProps")
	if n.kind != NodeKindText {
		panic(fmt.Sprintf("lantern: SetTextProps on non-text node %d", n.id))
	}
	e := n.stage.texts[n.id]
	e.props = p
	n.stage.layoutText(n, e)
}

// TextLayout returns the last applied layout of a text node.
func (n *Node) TextLayout() (TextLayout, bool) {
	if n.kind != NodeKindText || n.stage == nil {
		return TextLayout{}, false
	}
	e := n.stage.texts[n.id]
	if e == nil {
		return TextLayout{}, false
	}
	return e.layout, true
}

// layoutText starts a layout for the entry's current props. The result is
// applied by processText on the frame loop.
func (s *Stage) layoutText(n *Node, e *textEntry) {
	e.gen++
	p := e.props
	switch p.Contain {
	case ContainWidth:
		if p.MaxWidth == 0 || p.MaxWidth > n.w {
			p.MaxWidth = n.w
		}
	case ContainBoth:
		if p.MaxWidth == 0 || p.MaxWidth > n.w {
			p.MaxWidth = n.w
		}
		if p.MaxHeight == 0 || p.MaxHeight > n.h {
			p.MaxHeight = n.h
		}
	}
	r := textResult{node: n, gen: e.gen}
	switch {
	case s.text == nil:
		r.err = ErrNoTextRenderer
	case s.syncLoads:
		r.layout, r.err = s.text.LayoutText(s.ctx, p)
	default:
		s.textWG.Add(1)
		go func() {
			defer s.textWG.Done()
			r.layout, r.err = s.text.LayoutText(s.ctx, p)
			s.textMu.Lock()
			s.textPending = append(s.textPending, r)
			s.textMu.Unlock()
		}()
		return
	}
	s.textReady = append(s.textReady, r)
	s.requestRender()
}

// processText applies finished layouts. It returns the number applied.
func (s *Stage) processText() int {
	s.textMu.Lock()
	s.textReady = append(s.textReady, s.textPending...)
	s.textPending = s.textPending[:0]
	s.textMu.Unlock()
	if len(s.textReady) == 0 {
		return 0
	}
	applied := 0
	for i, r := range s.textReady {
		s.textReady[i] = textResult{}
		if s.applyText(r) {
			applied++
		}
	}
	s.textReady = s.textReady[:0]
	return applied
}

func (s *Stage) applyText(r textResult) bool {
	n := r.node
	if n.destroyed {
		return false
	}
	e := s.texts[n.id]
	if e == nil || e.gen != r.gen {
		return false
	}
	if r.err != nil {
		Logger().Warn("lantern: text layout failed", "node", n.id, "error", r.err)
		n.emit(NodeEvent{Type: EventTextFailed, Err: r.err})
		return true
	}
	var tex *Texture
	if r.layout.Image != nil {
		var err error
		tex, err = s.textures.CreateTexture(TextureTypeImage, TextureProps{Data: r.layout.Image}, TextureOptions{})
		if err != nil {
			Logger().Warn("lantern: text texture failed", "node", n.id, "error", err)
			n.emit(NodeEvent{Type: EventTextFailed, Err: err})
			return true
		}
	}
	old := e.texture
	e.texture = tex
	e.layout = r.layout
	n.setTexture(tex)
	if old != nil && old != tex {
		s.textures.ReleaseTexture(old)
	}
	switch e.props.Contain {
	case ContainNone:
		n.SetSize(r.layout.Width, r.layout.Height)
	case ContainWidth:
		n.SetHeight(r.layout.Height)
	}
	n.emit(NodeEvent{Type: EventTextLoaded, Dimensions: Dimensions{Width: r.layout.Width, Height: r.layout.Height}})
	return true
}

// forgetText drops a destroyed node's side-table entry and its texture.
func (s *Stage) forgetText(n *Node) {
	e := s.texts[n.id]
	if e == nil {
		return
	}
	delete(s.texts, n.id)
	e.gen++
	if e.texture != nil {
		s.textures.ReleaseTexture(e.texture)
		e.texture = nil
	}
}
