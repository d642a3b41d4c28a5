// Package ebitenbackend draws envy layouts with Ebitengine.
//
// Backend implements envy.Backend for resource handles and uniforms and
// envy.Renderer with *ebiten.Image as the render pass. Geometry is kept in
// CPU-side buffers mirrored into "device" copies: writes made through the
// envy.Backend methods become visible to drawing after Update, the same
// contract a GPU backend has with its uniform buffer.
package ebitenbackend

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-text/typesetting/shaping"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/envy"
)

// Options configures a Backend.
type Options struct {
	// View is bound for every draw. The zero value selects
	// envy.DefaultViewUniform.
	View *envy.ViewUniform

	// Placeholder is drawn for the "" texture name. Nil selects a 40x40
	// magenta and black checkerboard.
	Placeholder *ebiten.Image

	// AntiAlias smooths triangle edges. Glyph edges benefit most.
	AntiAlias bool
}

// Backend is the Ebitengine implementation of envy.Backend and
// envy.Renderer[*ebiten.Image].
type Backend struct {
	view      envy.ViewUniform
	antiAlias bool

	textures textureStore
	fonts    fontStore
	glyphs   glyphCache
	shaper   shaping.HarfbuzzShaper

	uniformSlots slotTable[struct{}]
	uniforms     bufferVec[envy.DrawUniform]

	pool    renderTexturePool
	scratch []ebiten.Vertex
	indices []uint32

	stats FrameStats
}

var (
	_ envy.Backend                 = (*Backend)(nil)
	_ envy.Renderer[*ebiten.Image] = (*Backend)(nil)
	_ envy.AssetProvider           = (*Backend)(nil)
	_ envy.AssetLoader             = (*Backend)(nil)
)

// New returns an empty backend.
func New(opts Options) *Backend {
	b := &Backend{
		view:      envy.DefaultViewUniform(),
		antiAlias: opts.AntiAlias,
	}
	if opts.View != nil {
		b.view = *opts.View
	}
	b.textures.init(opts.Placeholder)
	b.fonts.init()
	return b
}

// SetView replaces the view uniform used by later draws.
func (b *Backend) SetView(v envy.ViewUniform) {
	b.view = v
}

// Update uploads every buffer written since the last Update. Call it after
// envy.LayoutRoot.Prepare and before rendering.
func (b *Backend) Update() {
	b.stats.Reallocations = 0
	for _, realloc := range []bool{
		b.uniforms.flush(),
		b.textures.vertices.flush(),
		b.glyphs.vertices.flush(),
		b.glyphs.indices.flush(),
	} {
		if realloc {
			b.stats.Reallocations++
		}
	}
}

// --- Uniforms ---

// RequestNewUniform reserves a uniform slot. Uniforms never run out.
func (b *Backend) RequestNewUniform() (envy.UniformHandle, bool) {
	h := envy.UniformHandle(b.uniformSlots.insert(struct{}{}))
	b.uniforms.set(h.Slot(), envy.NewDrawUniform(mgl32.Ident4(), [4]float32{1, 1, 1, 1}))
	return h, true
}

// ReleaseUniform frees the slot of h.
func (b *Backend) ReleaseUniform(h envy.UniformHandle) {
	if _, ok := b.uniformSlots.remove(uint32(h)); !ok {
		envy.Logger().Warn("envy: release of unknown uniform", "handle", uint32(h))
	}
}

// UpdateUniform stages u for h. It is visible to drawing after Update.
func (b *Backend) UpdateUniform(h envy.UniformHandle, u envy.DrawUniform) {
	if b.uniformSlots.get(uint32(h)) == nil {
		envy.Logger().Warn("envy: update of unknown uniform", "handle", uint32(h))
		return
	}
	b.uniforms.set(h.Slot(), u)
}

// UniformOffset returns the dynamic offset of h in the uniform buffer.
func UniformOffset(h envy.UniformHandle) uint32 {
	return uint32(h.Slot()) * envy.UniformSize
}

// uniform returns the uploaded uniform of h.
func (b *Backend) uniform(h envy.UniformHandle) (envy.DrawUniform, bool) {
	v := b.uniforms.view(h.Slot(), h.Slot()+1)
	if v == nil {
		return envy.DrawUniform{}, false
	}
	return v[0], true
}

// --- Stats ---

// FrameStats counts the work of the current frame.
type FrameStats struct {
	TextureDraws  int
	GlyphDraws    int
	MaskedDraws   int
	Reallocations int // device buffers regrown by the last Update
}

// Stats returns the counters accumulated since ResetStats.
func (b *Backend) Stats() FrameStats { return b.stats }

// ResetStats zeroes the draw counters.
func (b *Backend) ResetStats() {
	b.stats.TextureDraws, b.stats.GlyphDraws, b.stats.MaskedDraws = 0, 0, 0
}

// LiveHandles returns the number of live texture, uniform and font handles.
func (b *Backend) LiveHandles() (textures, uniforms, fonts int) {
	return b.textures.handles.live(), b.uniformSlots.live(), b.fonts.handles.live()
}
