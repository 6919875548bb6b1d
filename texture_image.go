package lantern

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"math/rand/v2"
	"strings"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageFetcher resolves an image texture's Src to encoded bytes. Fetch runs
// on a loader goroutine and must honor ctx.
type ImageFetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// FetcherFunc adapts a function to ImageFetcher.
type FetcherFunc func(ctx context.Context, src string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

// FSFetcher reads image sources from a file system. A leading "/" in src is
// ignored so that absolute-looking asset paths resolve inside FS.
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads src from the file system.
func (f FSFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(f.FS, strings.TrimPrefix(src, "/"))
}

// DecodeImage sniffs and decodes an encoded image. Payloads that are not a
// recognized image format are rejected with ErrDecode.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: payload is not an image", ErrDecode)
	}
	kind, _ := filetype.Match(data)
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, kind.Extension, err)
	}
	return img, nil
}

// solidImage returns a 1x1 image of c.
func solidImage(c Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: c.A()})
	return img
}

// noiseImage returns w x h grey noise, deterministic for a given seed.
func noiseImage(w, h int, seed int64) image.Image {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(rng.IntN(256))
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
		img.Pix[i+3] = 255
	}
	return img
}
