package ebitenbackend

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/phanxgames/envy"
)

// FetchImageBytes returns the PNG bytes of the named texture. Textures added
// from PNG return their original bytes; others are encoded from their
// pixels, which needs a running game loop.
func (b *Backend) FetchImageBytes(name string) ([]byte, bool) {
	if data, ok := b.textures.encoded[name]; ok {
		return data, true
	}
	img, ok := b.textures.named[name]
	if !ok {
		return nil, false
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	img.ReadPixels(rgba.Pix)
	data, err := encodePNG(rgba)
	if err != nil {
		envy.Logger().Warn("envy: encode texture", "name", name, "err", err)
		return nil, false
	}
	return data, true
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("envy: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FetchFontBytes returns the bytes the named font was added from.
func (b *Backend) FetchFontBytes(name string) ([]byte, bool) {
	f, ok := b.fonts.named[name]
	if !ok {
		return nil, false
	}
	return f.data, true
}

// LoadImageBytes adds PNG bytes as a texture.
func (b *Backend) LoadImageBytes(name string, data []byte) error {
	return b.AddTexture(name, data)
}

// LoadFontBytes adds TTF or OTF bytes as a font.
func (b *Backend) LoadFontBytes(name string, data []byte) error {
	return b.AddFont(name, data)
}

// LoadAsset validates a and adds every resource it embeds.
func (b *Backend) LoadAsset(a *envy.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return a.LoadInto(b)
}
