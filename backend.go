package envy

// Handles are slot references handed out by a Backend. The zero value of each
// handle type means "no handle"; a backend hands out slot i as i+1.
type (
	TextureHandle uint32
	UniformHandle uint32
	FontHandle    uint32
	GlyphHandle   uint32
)

// Valid reports whether h refers to a slot.
func (h TextureHandle) Valid() bool { return h != 0 }

// Slot returns the zero-based slot index of h.
func (h TextureHandle) Slot() int { return int(h) - 1 }

// Valid reports whether h refers to a slot.
func (h UniformHandle) Valid() bool { return h != 0 }

// Slot returns the zero-based slot index of h.
func (h UniformHandle) Slot() int { return int(h) - 1 }

// Valid reports whether h refers to a slot.
func (h FontHandle) Valid() bool { return h != 0 }

// Slot returns the zero-based slot index of h.
func (h FontHandle) Slot() int { return int(h) - 1 }

// Valid reports whether h refers to a slot.
func (h GlyphHandle) Valid() bool { return h != 0 }

// Slot returns the zero-based slot index of h.
func (h GlyphHandle) Slot() int { return int(h) - 1 }

// TextureRequestArgs carries the per-axis scaling a texture is sampled with.
type TextureRequestArgs struct {
	ScalingX ImageScalingMode
	ScalingY ImageScalingMode
}

// TextLayoutArgs are passed to Backend.LayoutText.
type TextLayoutArgs struct {
	Font             FontHandle
	FontSize         float32
	LineHeight       float32
	BufferSize       Vec2 // box the text is laid out inside
	Text             string
	OutlineThickness float32
}

// PreparedGlyph is one laid out glyph. Uniform is unique to the glyph and must
// be released by the node that requested the layout; Glyph may be shared.
type PreparedGlyph struct {
	Glyph   GlyphHandle
	Uniform UniformHandle
	Outline UniformHandle // zero when the layout has no outline
	Offset  Vec2          // top-left of the glyph box inside the text buffer
	Size    Vec2
}

// DrawTextureArgs selects the textures for Renderer.DrawTextureExt.
type DrawTextureArgs struct {
	Texture TextureHandle
	Mask    TextureHandle // zero for no mask
}

// GlyphDraw is one entry of a batched Renderer.DrawGlyphs call.
type GlyphDraw struct {
	Uniform UniformHandle
	Outline UniformHandle
	Glyph   GlyphHandle
}

// Backend is the resource side of a renderer. A layout tree calls it during
// setup, prepare and release; it never drives rendering itself.
//
// Vertex expectations: texture quads span [-0.5, 0.5] on both axes, and a
// glyph of reported size (w, h) spans [-w/2, w/2] x [-h/2, h/2].
type Backend interface {
	// RequestTextureByName returns a new handle for the named texture. The
	// same name may yield distinct handles; each must be released.
	RequestTextureByName(name string, args TextureRequestArgs) (TextureHandle, bool)

	// RequestFontByName returns a new handle for the named font.
	RequestFontByName(name string) (FontHandle, bool)

	// RequestNewUniform allocates one uniform slot.
	RequestNewUniform() (UniformHandle, bool)

	ReleaseTexture(h TextureHandle)
	ReleaseFont(h FontHandle)
	ReleaseUniform(h UniformHandle)

	// UpdateUniform stages a uniform write. It becomes visible to draws
	// after the backend's next flush.
	UpdateUniform(h UniformHandle, u DrawUniform)

	// UpdateTextureScaling recomputes the texture coordinates of h for its
	// scaling modes, UV offset (pixels) and UV scale at the given node size.
	UpdateTextureScaling(h TextureHandle, uvOffset, uvScale, size Vec2)

	// LayoutText shapes and places text, requesting one uniform per glyph
	// (plus one per outline).
	LayoutText(args TextLayoutArgs) []PreparedGlyph
}

// Renderer is the draw side of a backend. P is the backend's render pass.
type Renderer[P any] interface {
	DrawTextureExt(u UniformHandle, args DrawTextureArgs, pass P)

	// DrawGlyph draws one filled glyph and, when outline is valid, its
	// stroked outline.
	DrawGlyph(u UniformHandle, outline UniformHandle, g GlyphHandle, pass P)

	DrawGlyphs(glyphs []GlyphDraw, pass P)
}

// DrawGlyphsEach is the default DrawGlyphs: one DrawGlyph per entry. Backends
// without a batching path can call it from their DrawGlyphs.
func DrawGlyphsEach[P any](r Renderer[P], glyphs []GlyphDraw, pass P) {
	for _, g := range glyphs {
		r.DrawGlyph(g.Uniform, g.Outline, g.Glyph, pass)
	}
}

// CountingBackend wraps a Backend and counts acquisitions and releases. Every
// request that succeeds must be matched by exactly one release.
type CountingBackend struct {
	Backend

	Requests int
	Releases int
	Live     map[string]int // per-kind outstanding handles
}

// NewCountingBackend wraps b.
func NewCountingBackend(b Backend) *CountingBackend {
	return &CountingBackend{Backend: b, Live: make(map[string]int)}
}

// Balanced reports whether every successful request has been released.
func (c *CountingBackend) Balanced() bool {
	return c.Requests == c.Releases
}

func (c *CountingBackend) acquired(kind string, ok bool) {
	if ok {
		c.Requests++
		c.Live[kind]++
	}
}

func (c *CountingBackend) released(kind string) {
	c.Releases++
	c.Live[kind]--
}

func (c *CountingBackend) RequestTextureByName(name string, args TextureRequestArgs) (TextureHandle, bool) {
	h, ok := c.Backend.RequestTextureByName(name, args)
	c.acquired("texture", ok)
	return h, ok
}

func (c *CountingBackend) RequestFontByName(name string) (FontHandle, bool) {
	h, ok := c.Backend.RequestFontByName(name)
	c.acquired("font", ok)
	return h, ok
}

func (c *CountingBackend) RequestNewUniform() (UniformHandle, bool) {
	h, ok := c.Backend.RequestNewUniform()
	c.acquired("uniform", ok)
	return h, ok
}

func (c *CountingBackend) ReleaseTexture(h TextureHandle) {
	c.released("texture")
	c.Backend.ReleaseTexture(h)
}

func (c *CountingBackend) ReleaseFont(h FontHandle) {
	c.released("font")
	c.Backend.ReleaseFont(h)
}

func (c *CountingBackend) ReleaseUniform(h UniformHandle) {
	c.released("uniform")
	c.Backend.ReleaseUniform(h)
}

func (c *CountingBackend) LayoutText(args TextLayoutArgs) []PreparedGlyph {
	glyphs := c.Backend.LayoutText(args)
	for _, g := range glyphs {
		c.acquired("uniform", g.Uniform.Valid())
		c.acquired("uniform", g.Outline.Valid())
	}
	return glyphs
}
