package envy

import (
	"fmt"
	"math"
	"testing"
)

const epsilon = 1e-4

func assertNear(t *testing.T, name string, got, want float32) {
	t.Helper()
	if math.Abs(float64(got-want)) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVec(t *testing.T, name string, got, want Vec2) {
	t.Helper()
	if math.Abs(float64(got.X-want.X)) > epsilon || math.Abs(float64(got.Y-want.Y)) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertAffine(t *testing.T, name string, got, want Affine2) {
	t.Helper()
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
		}
	}
}

func assertPanics(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic, got none", name)
		}
	}()
	fn()
}

// fakeBackend hands out increasing handles and records what the tree writes.
// Textures and fonts resolve only when their name is registered.
type fakeBackend struct {
	textures map[string]bool
	fonts    map[string]bool

	next     uint32
	live     map[uint32]string
	uniforms map[UniformHandle]DrawUniform
	scaling  map[TextureHandle][3]Vec2

	layouts    int
	noUniforms bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		textures: map[string]bool{"": true},
		fonts:    make(map[string]bool),
		live:     make(map[uint32]string),
		uniforms: make(map[UniformHandle]DrawUniform),
		scaling:  make(map[TextureHandle][3]Vec2),
	}
}

func (b *fakeBackend) acquire(kind string) uint32 {
	b.next++
	b.live[b.next] = kind
	return b.next
}

func (b *fakeBackend) release(kind string, h uint32) {
	if b.live[h] != kind {
		panic(fmt.Sprintf("release of %s handle %d which is %q", kind, h, b.live[h]))
	}
	delete(b.live, h)
}

func (b *fakeBackend) liveCount(kind string) int {
	n := 0
	for _, k := range b.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (b *fakeBackend) RequestTextureByName(name string, _ TextureRequestArgs) (TextureHandle, bool) {
	if !b.textures[name] {
		return 0, false
	}
	return TextureHandle(b.acquire("texture")), true
}

func (b *fakeBackend) RequestFontByName(name string) (FontHandle, bool) {
	if !b.fonts[name] {
		return 0, false
	}
	return FontHandle(b.acquire("font")), true
}

func (b *fakeBackend) RequestNewUniform() (UniformHandle, bool) {
	if b.noUniforms {
		return 0, false
	}
	return UniformHandle(b.acquire("uniform")), true
}

func (b *fakeBackend) ReleaseTexture(h TextureHandle) { b.release("texture", uint32(h)) }
func (b *fakeBackend) ReleaseFont(h FontHandle)       { b.release("font", uint32(h)) }
func (b *fakeBackend) ReleaseUniform(h UniformHandle) {
	b.release("uniform", uint32(h))
	delete(b.uniforms, h)
}

func (b *fakeBackend) UpdateUniform(h UniformHandle, u DrawUniform) {
	b.uniforms[h] = u
}

func (b *fakeBackend) UpdateTextureScaling(h TextureHandle, uvOffset, uvScale, size Vec2) {
	b.scaling[h] = [3]Vec2{uvOffset, uvScale, size}
}

// LayoutText places one 10 pixel wide glyph per rune on a single line.
func (b *fakeBackend) LayoutText(args TextLayoutArgs) []PreparedGlyph {
	b.layouts++
	var glyphs []PreparedGlyph
	x := float32(0)
	for range args.Text {
		u, _ := b.RequestNewUniform()
		g := PreparedGlyph{
			Glyph:   1,
			Uniform: u,
			Offset:  Vec2{x, 0},
			Size:    Vec2{10, args.LineHeight},
		}
		if args.OutlineThickness > 0 {
			g.Outline, _ = b.RequestNewUniform()
		}
		glyphs = append(glyphs, g)
		x += 10
	}
	return glyphs
}

// recordPass collects draws in order.
type recordPass struct {
	draws []string
}

type recordRenderer struct{}

func (recordRenderer) DrawTextureExt(u UniformHandle, args DrawTextureArgs, pass *recordPass) {
	pass.draws = append(pass.draws, fmt.Sprintf("texture u%d t%d m%d", u, args.Texture, args.Mask))
}

func (recordRenderer) DrawGlyph(u, outline UniformHandle, g GlyphHandle, pass *recordPass) {
	pass.draws = append(pass.draws, fmt.Sprintf("glyph u%d o%d g%d", u, outline, g))
}

func (r recordRenderer) DrawGlyphs(glyphs []GlyphDraw, pass *recordPass) {
	DrawGlyphsEach[*recordPass](r, glyphs, pass)
}

// imageNode returns a template node drawing texture at pos with size.
func imageNode(name, texture string, pos, size Vec2) NodeTemplate {
	n := NewNodeTemplate(name, ImageImpl(texture))
	n.Transform.Position = pos
	n.Transform.Size = size
	return n
}

func emptyNode(name string) NodeTemplate {
	return NewNodeTemplate(name, EmptyImpl())
}

// pathSet lists the paths of every node of a live tree.
func pathSet(t *LayoutTree) map[string]bool {
	set := make(map[string]bool)
	var walk func(prefix string, group []*NodeItem)
	walk = func(prefix string, group []*NodeItem) {
		for _, n := range group {
			p := JoinPath(prefix, n.Name())
			set[p] = true
			walk(p, n.Children())
		}
	}
	walk("", t.Roots())
	return set
}

// templatePathSet lists the paths of every node of a template.
func templatePathSet(tmpl *LayoutTemplate) map[string]bool {
	set := make(map[string]bool)
	tmpl.WalkTree(func(p string, _ *NodeTemplate) { set[p] = true })
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
