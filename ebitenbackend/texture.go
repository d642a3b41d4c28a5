package ebitenbackend

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/envy"
)

// placeholderSize is the edge length of the default "" texture.
const placeholderSize = 40

// verticesPerQuad is the size of a texture handle's vertex block: two
// triangles with unshared corners.
const verticesPerQuad = 6

// quadCorners are the model-space corners of the unit quad and their base
// texture coordinates, in triangle order.
var quadCorners = [verticesPerQuad]struct{ pos, uv envy.Vec2 }{
	{envy.Vec2{X: -0.5, Y: -0.5}, envy.Vec2{X: 0, Y: 0}},
	{envy.Vec2{X: 0.5, Y: -0.5}, envy.Vec2{X: 1, Y: 0}},
	{envy.Vec2{X: -0.5, Y: 0.5}, envy.Vec2{X: 0, Y: 1}},
	{envy.Vec2{X: 0.5, Y: -0.5}, envy.Vec2{X: 1, Y: 0}},
	{envy.Vec2{X: 0.5, Y: 0.5}, envy.Vec2{X: 1, Y: 1}},
	{envy.Vec2{X: -0.5, Y: 0.5}, envy.Vec2{X: 0, Y: 1}},
}

// textureSlot is what a texture handle holds. The image is captured at
// request time, so renaming or removing the named texture does not affect
// live handles.
type textureSlot struct {
	name  string
	image *ebiten.Image
	args  envy.TextureRequestArgs
}

type textureStore struct {
	placeholder *ebiten.Image
	named       map[string]*ebiten.Image
	encoded     map[string][]byte // original PNG bytes, for assets

	handles  slotTable[textureSlot]
	vertices bufferVec[ebiten.Vertex]
}

func (s *textureStore) init(placeholder *ebiten.Image) {
	if placeholder == nil {
		placeholder = checkerboard(placeholderSize)
	}
	s.placeholder = placeholder
	s.named = make(map[string]*ebiten.Image)
	s.encoded = make(map[string][]byte)
}

// checkerboard returns a size x size image of 4 magenta and black squares.
func checkerboard(size int) *ebiten.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	magenta := color.RGBA{R: 255, B: 255, A: 255}
	black := color.RGBA{A: 255}
	for y := range size {
		for x := range size {
			if (x < half) == (y < half) {
				img.SetRGBA(x, y, magenta)
			} else {
				img.SetRGBA(x, y, black)
			}
		}
	}
	return ebiten.NewImageFromImage(img)
}

func (s *textureStore) lookup(name string) *ebiten.Image {
	if name == "" {
		return s.placeholder
	}
	return s.named[name]
}

// --- Handles ---

// RequestTextureByName reserves a handle for the named texture and its
// vertex block. The "" name resolves to the placeholder.
func (b *Backend) RequestTextureByName(name string, args envy.TextureRequestArgs) (envy.TextureHandle, bool) {
	img := b.textures.lookup(name)
	if img == nil {
		return 0, false
	}
	h := envy.TextureHandle(b.textures.handles.insert(textureSlot{name: name, image: img, args: args}))
	w, ht := imageSize(img)
	b.writeQuad(h, envy.Vec2{}, envy.Vec2{X: 1, Y: 1}, envy.Vec2{X: w, Y: ht})
	return h, true
}

// ReleaseTexture frees h. Its vertex block is reused by the next request.
func (b *Backend) ReleaseTexture(h envy.TextureHandle) {
	if _, ok := b.textures.handles.remove(uint32(h)); !ok {
		envy.Logger().Warn("envy: release of unknown texture", "handle", uint32(h))
	}
}

// UpdateTextureScaling rewrites the texture coordinates of h for a node of
// the given size.
func (b *Backend) UpdateTextureScaling(h envy.TextureHandle, uvOffset, uvScale, size envy.Vec2) {
	if b.textures.handles.get(uint32(h)) == nil {
		envy.Logger().Warn("envy: scaling of unknown texture", "handle", uint32(h))
		return
	}
	b.writeQuad(h, uvOffset, uvScale, size)
}

func (b *Backend) writeQuad(h envy.TextureHandle, uvOffset, uvScale, size envy.Vec2) {
	slot := b.textures.handles.get(uint32(h))
	uvs := quadUVs(slot.args, imageSizeVec(slot.image), uvOffset, uvScale, size)
	base := h.Slot() * verticesPerQuad
	for i, c := range quadCorners {
		b.textures.vertices.set(base+i, ebiten.Vertex{
			DstX: c.pos.X,
			DstY: c.pos.Y,
			SrcX: uvs[i].X,
			SrcY: uvs[i].Y,
		})
	}
}

// quadUVs returns the source pixel coordinates of each quad corner.
//
// Stretched axes map the node onto the texture once; tiled axes repeat the
// texture at its native size. The result is then scaled by 1/uvScale and
// offset by uvOffset pixels. Coordinates past the texture edge wrap.
func quadUVs(args envy.TextureRequestArgs, texSize, uvOffset, uvScale, size envy.Vec2) [verticesPerQuad]envy.Vec2 {
	if texSize.X <= 0 || texSize.Y <= 0 {
		return [verticesPerQuad]envy.Vec2{}
	}
	repeat := envy.Vec2{X: 1, Y: 1}
	if args.ScalingX == envy.ScalingTiling {
		repeat.X = size.X / texSize.X
	}
	if args.ScalingY == envy.ScalingTiling {
		repeat.Y = size.Y / texSize.Y
	}
	inv := envy.Vec2{X: reciprocal(uvScale.X), Y: reciprocal(uvScale.Y)}
	offset := envy.Vec2{X: uvOffset.X / texSize.X, Y: uvOffset.Y / texSize.Y}

	var out [verticesPerQuad]envy.Vec2
	for i, c := range quadCorners {
		uv := c.uv.Mul(repeat).Mul(inv).Add(offset)
		out[i] = uv.Mul(texSize)
	}
	return out
}

func reciprocal(v float32) float32 {
	if v == 0 {
		return 1
	}
	return 1 / v
}

func imageSize(img *ebiten.Image) (w, h float32) {
	b := img.Bounds()
	return float32(b.Dx()), float32(b.Dy())
}

func imageSizeVec(img *ebiten.Image) envy.Vec2 {
	w, h := imageSize(img)
	return envy.Vec2{X: w, Y: h}
}

// quad returns the uploaded vertex block of h and its image.
func (b *Backend) quad(h envy.TextureHandle) ([]ebiten.Vertex, *ebiten.Image) {
	slot := b.textures.handles.get(uint32(h))
	if slot == nil {
		return nil, nil
	}
	base := h.Slot() * verticesPerQuad
	return b.textures.vertices.view(base, base+verticesPerQuad), slot.image
}

// --- Resource management ---

// AddTextureImage registers img under name, replacing any texture of that
// name. Live handles keep the image they were given.
func (b *Backend) AddTextureImage(name string, img *ebiten.Image) error {
	if name == "" {
		return fmt.Errorf("envy: add texture: %w", errEmptyName)
	}
	b.textures.named[name] = img
	delete(b.textures.encoded, name)
	return nil
}

// AddTexture decodes PNG bytes and registers the image under name.
func (b *Backend) AddTexture(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("envy: add texture: %w", errEmptyName)
	}
	if !filetype.Is(data, "png") {
		return fmt.Errorf("envy: add texture %q: %w", name, envy.ErrInvalidResource)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("envy: decode texture %q: %w", name, err)
	}
	b.textures.named[name] = ebiten.NewImageFromImage(img)
	b.textures.encoded[name] = data
	return nil
}

// LoadTexturesFromPaths adds each PNG file under its base name without the
// extension.
func (b *Backend) LoadTexturesFromPaths(paths ...string) error {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("envy: load texture: %w", err)
		}
		if err := b.AddTexture(resourceName(p), data); err != nil {
			return err
		}
	}
	return nil
}

// RenameTexture moves a texture to a new name. It reports false when oldName
// is missing or newName is taken.
func (b *Backend) RenameTexture(oldName, newName string) bool {
	img, ok := b.textures.named[oldName]
	if !ok || newName == "" {
		return false
	}
	if _, taken := b.textures.named[newName]; taken {
		return false
	}
	delete(b.textures.named, oldName)
	b.textures.named[newName] = img
	if data, ok := b.textures.encoded[oldName]; ok {
		delete(b.textures.encoded, oldName)
		b.textures.encoded[newName] = data
	}
	return true
}

// RemoveTexture unregisters name. Live handles stay drawable until released.
func (b *Backend) RemoveTexture(name string) {
	delete(b.textures.named, name)
	delete(b.textures.encoded, name)
}

// TextureNames returns the registered texture names, sorted.
func (b *Backend) TextureNames() []string {
	names := make([]string, 0, len(b.textures.named))
	for name := range b.textures.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Texture returns the image registered under name, or nil.
func (b *Backend) Texture(name string) *ebiten.Image {
	return b.textures.named[name]
}

// resourceName is the base name of p without its extension.
func resourceName(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
