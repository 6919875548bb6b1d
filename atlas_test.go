package lantern

import (
	"strings"
	"testing"
)

const hashAtlasJSON = `{
	"frames": {
		"hero": {"frame": {"x": 0, "y": 0, "w": 32, "h": 48}, "sourceSize": {"w": 40, "h": 50},
			"spriteSourceSize": {"x": 4, "y": 2, "w": 32, "h": 48}, "trimmed": true},
		"coin": {"frame": {"x": 32, "y": 0, "w": 16, "h": 16}, "rotated": true, "sourceSize": {"w": 16, "h": 16}}
	},
	"meta": {"image": "sheet.png"}
}`

const arrayAtlasJSON = `{
	"textures": [
		{"image": "page0.png", "frames": {"a": {"frame": {"x": 0, "y": 0, "w": 8, "h": 8}}}},
		{"image": "page1.png", "frames": {"b": {"frame": {"x": 8, "y": 8, "w": 4, "h": 4}}}}
	]
}`

func TestLoadAtlasHash(t *testing.T) {
	ts := newTestStage(t)
	page := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 64, Height: 64})
	atlas, err := LoadAtlas(ts.Textures(), []byte(hashAtlasJSON), page)
	if err != nil {
		t.Fatalf("LoadAtlas: %v", err)
	}
	if names := atlas.Names(); len(names) != 2 || names[0] != "coin" || names[1] != "hero" {
		t.Errorf("Names = %v", names)
	}
	hero, ok := atlas.Region("hero")
	if !ok {
		t.Fatal("hero region missing")
	}
	want := AtlasRegion{
		Frame:    Rect{0, 0, 32, 48},
		Original: Dimensions{Width: 40, Height: 50},
		Offset:   Vec2{X: 4, Y: 2},
	}
	if hero != want {
		t.Errorf("hero = %+v, want %+v", hero, want)
	}
	if coin, _ := atlas.Region("coin"); !coin.Rotated {
		t.Error("coin should be rotated")
	}
	if len(atlas.Pages) != 1 || atlas.Pages[0] != page {
		t.Error("explicit pages should be used as given")
	}
}

func TestAtlasTexture(t *testing.T) {
	ts := newTestStage(t)
	page := mustTexture(t, ts, TextureTypeNoise, TextureProps{Width: 64, Height: 64})
	atlas, err := LoadAtlas(ts.Textures(), []byte(hashAtlasJSON), page)
	if err != nil {
		t.Fatal(err)
	}
	coin, err := atlas.Texture("coin")
	if err != nil {
		t.Fatalf("Texture: %v", err)
	}
	again, _ := atlas.Texture("coin")
	if coin != again {
		t.Error("repeated lookups should return the cached sub texture")
	}
	if coin.Type() != TextureTypeSub || coin.Root() != page {
		t.Errorf("coin type = %v, root = %v", coin.Type(), coin.Root())
	}
	if coin.SourceRegion() != (Rect{32, 0, 16, 16}) {
		t.Errorf("SourceRegion = %v", coin.SourceRegion())
	}

	n := ts.texturedBox(coin)
	if page.RefCount() != 1 {
		t.Errorf("page refs = %d, want 1 through the sprite", page.RefCount())
	}
	n.Destroy()
	if page.RefCount() != 0 {
		t.Errorf("page refs = %d after destroy", page.RefCount())
	}

	if _, err := atlas.Texture("missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing region = %v", err)
	}
}

func TestLoadAtlasArrayCreatesPages(t *testing.T) {
	ts := newTestStage(t)
	atlas, err := LoadAtlas(ts.Textures(), []byte(arrayAtlasJSON))
	if err != nil {
		t.Fatalf("LoadAtlas: %v", err)
	}
	if len(atlas.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(atlas.Pages))
	}
	if atlas.Pages[0].Key() != "image:page0.png" || atlas.Pages[1].Key() != "image:page1.png" {
		t.Errorf("page keys = %s, %s", atlas.Pages[0].Key(), atlas.Pages[1].Key())
	}
	if b, _ := atlas.Region("b"); b.Page != 1 || b.Frame != (Rect{8, 8, 4, 4}) {
		t.Errorf("b = %+v", b)
	}
	if tex, err := atlas.Texture("b"); err != nil || tex.Root() != atlas.Pages[1] {
		t.Errorf("b texture = %v, %v", tex, err)
	}
}

func TestLoadAtlasPagesFromMetaImage(t *testing.T) {
	ts := newTestStage(t)
	atlas, err := LoadAtlas(ts.Textures(), []byte(hashAtlasJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(atlas.Pages) != 1 || atlas.Pages[0].Key() != "image:sheet.png" {
		t.Fatalf("pages = %v", atlas.Pages)
	}
	if got, ok := ts.Textures().Lookup(TextureTypeImage, TextureProps{Src: "sheet.png"}); !ok || got != atlas.Pages[0] {
		t.Error("page should be shared through the texture cache")
	}
}

func TestLoadAtlasErrors(t *testing.T) {
	ts := newTestStage(t)
	tests := []struct {
		name string
		json string
		want string
	}{
		{"invalid json", `{not json`, "parse atlas JSON"},
		{"no frames", `{"meta": {}}`, "neither"},
		{"no page image", `{"frames": {}}`, "no image name"},
		{"bad frames", `{"frames": []}`, "atlas frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAtlas(ts.Textures(), []byte(tt.json))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
