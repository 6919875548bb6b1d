package lantern

import (
	"encoding/json"
	"fmt"
	"sort"
)

// AtlasRegion describes a named sub-rectangle within an atlas page.
type AtlasRegion struct {
	Page     int  // index into Atlas.Pages
	Frame    Rect // region of the page in pixels
	Original Dimensions
	Offset   Vec2 // trim offset of Frame within the untrimmed sprite
	Rotated  bool // stored 90 degrees clockwise in the page
}

// Atlas maps sprite names to regions of one or more page textures. Sprites
// are handed out as sub-textures of their page, so attaching a sprite keeps
// its page referenced.
type Atlas struct {
	Pages   []*Texture
	mgr     *TextureManager
	regions map[string]AtlasRegion
}

// Region returns the region for name.
func (a *Atlas) Region(name string) (AtlasRegion, bool) {
	r, ok := a.regions[name]
	return r, ok
}

// Names returns the sprite names in sorted order.
func (a *Atlas) Names() []string {
	out := make([]string, 0, len(a.regions))
	for name := range a.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Texture returns the sub-texture for name. Repeated calls return the same
// texture while it is cached.
func (a *Atlas) Texture(name string) (*Texture, error) {
	r, ok := a.regions[name]
	if !ok {
		return nil, fmt.Errorf("lantern: atlas region %q not found", name)
	}
	if r.Page < 0 || r.Page >= len(a.Pages) || a.Pages[r.Page] == nil {
		return nil, fmt.Errorf("lantern: atlas region %q references missing page %d", name, r.Page)
	}
	return a.mgr.CreateTexture(TextureTypeSub, TextureProps{Parent: a.Pages[r.Page], Region: r.Frame}, TextureOptions{})
}

// LoadAtlas parses TexturePacker JSON. Both the hash format (single "frames"
// object) and the array format ("textures" with per-page frame lists) are
// supported. When pages is empty, page textures are created from the image
// names in the JSON and fetched through the stage's ImageFetcher.
func LoadAtlas(mgr *TextureManager, jsonData []byte, pages ...*Texture) (*Atlas, error) {
	var probe struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
		Meta     struct {
			Image string `json:"image"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("lantern: failed to parse atlas JSON: %w", err)
	}

	atlas := &Atlas{
		Pages:   pages,
		mgr:     mgr,
		regions: make(map[string]AtlasRegion),
	}

	var images []string
	switch {
	case probe.Textures != nil:
		var textures []jsonTexturePage
		if err := json.Unmarshal(probe.Textures, &textures); err != nil {
			return nil, fmt.Errorf("lantern: failed to parse atlas textures array: %w", err)
		}
		for i, tex := range textures {
			images = append(images, tex.Image)
			for name, f := range tex.Frames {
				atlas.regions[name] = frameToRegion(f, i)
			}
		}
	case probe.Frames != nil:
		var frames map[string]jsonFrame
		if err := json.Unmarshal(probe.Frames, &frames); err != nil {
			return nil, fmt.Errorf("lantern: failed to parse atlas frames: %w", err)
		}
		for name, f := range frames {
			atlas.regions[name] = frameToRegion(f, 0)
		}
		images = append(images, probe.Meta.Image)
	default:
		return nil, fmt.Errorf("lantern: atlas JSON has neither \"frames\" nor \"textures\" key")
	}

	if len(atlas.Pages) == 0 {
		for i, img := range images {
			if img == "" {
				return nil, fmt.Errorf("lantern: atlas page %d has no image name", i)
			}
			t, err := mgr.CreateTexture(TextureTypeImage, TextureProps{Src: img}, TextureOptions{})
			if err != nil {
				return nil, err
			}
			atlas.Pages = append(atlas.Pages, t)
		}
	}
	return atlas, nil
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	Trimmed          bool     `json:"trimmed"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

func frameToRegion(f jsonFrame, page int) AtlasRegion {
	return AtlasRegion{
		Page:     page,
		Frame:    Rect{X: float64(f.Frame.X), Y: float64(f.Frame.Y), Width: float64(f.Frame.W), Height: float64(f.Frame.H)},
		Original: Dimensions{Width: float64(f.SourceSize.W), Height: float64(f.SourceSize.H)},
		Offset:   Vec2{X: float64(f.SpriteSourceSize.X), Y: float64(f.SpriteSourceSize.Y)},
		Rotated:  f.Rotated,
	}
}
