package ebitenbackend

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/envy"
)

var quadIndices = []uint32{0, 1, 2, 3, 4, 5}

// project appends src to dst with positions taken through mvp into the
// pixel rectangle r and every vertex colored c. Normalized device
// coordinates run y up; pixels run y down.
func project(dst, src []ebiten.Vertex, mvp mgl32.Mat4, r image.Rectangle, c mgl32.Vec4) []ebiten.Vertex {
	w, h := float32(r.Dx()), float32(r.Dy())
	ox, oy := float32(r.Min.X), float32(r.Min.Y)
	for _, v := range src {
		p := mvp.Mul4x1(mgl32.Vec4{v.DstX, v.DstY, 0, 1})
		v.DstX = (p[0]+1)/2*w + ox
		v.DstY = (1-p[1])/2*h + oy
		v.ColorR, v.ColorG, v.ColorB, v.ColorA = c[0], c[1], c[2], c[3]
		dst = append(dst, v)
	}
	return dst
}

func (b *Backend) triangleOptions(address ebiten.Address) *ebiten.DrawTrianglesOptions {
	return &ebiten.DrawTrianglesOptions{
		Address:   address,
		FillRule:  ebiten.FillRuleNonZero,
		AntiAlias: b.antiAlias,
	}
}

// mvp returns the full transform of a draw with uniform u.
func (b *Backend) mvp(u envy.DrawUniform) mgl32.Mat4 {
	return b.view.ViewProjection().Mul4(u.Model)
}

// DrawTextureExt draws the quad of args.Texture with the model and color of
// u. With a mask, the quad is drawn into an offscreen image, cut by the mask
// quad's alpha and composited onto pass.
func (b *Backend) DrawTextureExt(u envy.UniformHandle, args envy.DrawTextureArgs, pass *ebiten.Image) {
	uni, ok := b.uniform(u)
	quad, img := b.quad(args.Texture)
	if !ok || quad == nil {
		envy.Logger().Error("envy: draw texture without uploaded handles",
			"uniform", uint32(u), "texture", uint32(args.Texture))
		return
	}
	mvp := b.mvp(uni)
	bounds := pass.Bounds()

	var maskQuad []ebiten.Vertex
	var maskImg *ebiten.Image
	if args.Mask.Valid() {
		maskQuad, maskImg = b.quad(args.Mask)
		if maskQuad == nil {
			envy.Logger().Warn("envy: draw with unknown mask", "mask", uint32(args.Mask))
		}
	}
	if maskQuad == nil {
		b.scratch = project(b.scratch[:0], quad, mvp, bounds, uni.Color)
		pass.DrawTriangles32(b.scratch, quadIndices, img, b.triangleOptions(ebiten.AddressRepeat))
		b.stats.TextureDraws++
		return
	}

	local := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	off := b.pool.acquire(local.Dx(), local.Dy())
	b.scratch = project(b.scratch[:0], quad, mvp, local, uni.Color)
	off.DrawTriangles32(b.scratch, quadIndices, img, b.triangleOptions(ebiten.AddressRepeat))

	b.scratch = project(b.scratch[:0], maskQuad, mvp, local, mgl32.Vec4{1, 1, 1, 1})
	opts := b.triangleOptions(ebiten.AddressRepeat)
	opts.Blend = blendMask
	off.DrawTriangles32(b.scratch, quadIndices, maskImg, opts)

	var op ebiten.DrawImageOptions
	op.GeoM.Translate(float64(bounds.Min.X), float64(bounds.Min.Y))
	pass.DrawImage(off, &op)
	b.pool.release(off)

	b.stats.TextureDraws++
	b.stats.MaskedDraws++
}

// DrawGlyph draws the outline of g with the outline uniform, when valid,
// then its fill with u.
func (b *Backend) DrawGlyph(u, outline envy.UniformHandle, g envy.GlyphHandle, pass *ebiten.Image) {
	b.DrawGlyphs([]envy.GlyphDraw{{Uniform: u, Outline: outline, Glyph: g}}, pass)
}

// DrawGlyphs draws every outline in one triangle batch and then every fill
// in a second, so fills always sit on top of outlines.
func (b *Backend) DrawGlyphs(glyphs []envy.GlyphDraw, pass *ebiten.Image) {
	bounds := pass.Bounds()
	outlines := b.batchGlyphs(glyphs, bounds, true)
	if outlines > 0 {
		pass.DrawTriangles32(b.scratch, b.indices, whiteSource(), b.triangleOptions(ebiten.AddressUnsafe))
	}
	if fills := b.batchGlyphs(glyphs, bounds, false); fills > 0 {
		pass.DrawTriangles32(b.scratch, b.indices, whiteSource(), b.triangleOptions(ebiten.AddressUnsafe))
		b.stats.GlyphDraws += fills
	}
}

// batchGlyphs fills the scratch vertex and index buffers with the outline or
// fill meshes of glyphs and returns how many were added.
func (b *Backend) batchGlyphs(glyphs []envy.GlyphDraw, bounds image.Rectangle, outline bool) int {
	b.scratch, b.indices = b.scratch[:0], b.indices[:0]
	src := whiteSource().Bounds().Min
	n := 0
	for _, g := range glyphs {
		e, ok := b.glyphs.entry(g.Glyph)
		if !ok {
			envy.Logger().Error("envy: draw of unknown glyph", "glyph", uint32(g.Glyph))
			continue
		}
		mesh, uh := e.fill, g.Uniform
		if outline {
			if !g.Outline.Valid() || e.stroke.empty() {
				continue
			}
			mesh, uh = e.stroke, g.Outline
		}
		uni, ok := b.uniform(uh)
		vs, is := b.glyphs.mesh(mesh)
		if !ok || vs == nil {
			continue
		}
		base := uint32(len(b.scratch))
		start := len(b.scratch)
		b.scratch = project(b.scratch, vs, b.mvp(uni), bounds, uni.Color)
		for i := start; i < len(b.scratch); i++ {
			b.scratch[i].SrcX, b.scratch[i].SrcY = float32(src.X)+0.5, float32(src.Y)+0.5
		}
		for _, idx := range is {
			b.indices = append(b.indices, base+idx)
		}
		n++
	}
	return n
}
