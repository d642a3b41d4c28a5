package envy

import (
	"fmt"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewNodeDefaults(t *testing.T) {
	n := NewEmptyNode("n", DefaultTransform(), ColorWhite)
	if n.Name() != "n" || n.Kind() != NodeEmpty {
		t.Errorf("node = %q/%v, want n/empty", n.Name(), n.Kind())
	}
	if !n.Changed() {
		t.Error("new node should start changed")
	}
	if n.Image() != nil || n.Text() != nil || n.Sublayout() != nil {
		t.Error("empty node exposes variant state")
	}
	if n.Affine() != IdentityAffine {
		t.Errorf("affine = %v, want identity", n.Affine())
	}
}

func TestNodeAddChildRejectsDuplicate(t *testing.T) {
	n := NewEmptyNode("n", DefaultTransform(), ColorWhite)
	if !n.AddChild(NewEmptyNode("c", DefaultTransform(), ColorWhite)) {
		t.Fatal("AddChild failed")
	}
	if n.AddChild(NewEmptyNode("c", DefaultTransform(), ColorWhite)) {
		t.Error("AddChild accepted duplicate")
	}
	if !n.HasChild("c") || n.Child("c") == nil || n.Child("x") != nil {
		t.Error("child lookup mismatch")
	}
}

func TestNodeFromTemplateMirrorsTemplate(t *testing.T) {
	tmpl := sampleTemplate()
	tree := NewLayoutTreeFromTemplate(&tmpl, nil)
	if !sameSet(pathSet(tree), templatePathSet(&tmpl)) {
		t.Errorf("paths = %v, want %v", pathSet(tree), templatePathSet(&tmpl))
	}
	icon := tree.NodeByPath("panel/icon")
	if icon.Kind() != NodeImage || icon.Image().TextureName() != "star" {
		t.Errorf("icon = %v/%q, want image of star", icon.Kind(), icon.Image().TextureName())
	}
	if _, ok := tree.Animations()["spin"]; !ok {
		t.Error("animations not copied")
	}
}

// --- Image prepare ---

func preparedImage(t *testing.T, b *fakeBackend) (*LayoutTree, *NodeItem) {
	t.Helper()
	tmpl := NewLayoutTemplate().WithChild(imageNode("img", "tex", Vec2{100, 50}, Vec2{40, 20}))
	tree := NewLayoutTreeFromTemplate(&tmpl, nil)
	tree.Setup(b)
	tree.Propagate()
	tree.Prepare(b)
	return tree, tree.NodeByPath("img")
}

func TestImagePrepareWritesModel(t *testing.T) {
	b := newFakeBackend()
	b.textures["tex"] = true
	_, n := preparedImage(t, b)

	if n.Changed() {
		t.Error("node still dirty after prepare")
	}
	u, tex, _ := n.Image().Handles()
	got, ok := b.uniforms[u]
	if !ok {
		t.Fatal("no uniform written")
	}
	// The unit quad's corners land on the node's box: (100,50)..(140,70).
	topLeft := got.Model.Mul4x1(mgl32.Vec4{-0.5, -0.5, 0, 1})
	bottomRight := got.Model.Mul4x1(mgl32.Vec4{0.5, 0.5, 0, 1})
	assertVec(t, "top-left", Vec2{topLeft.X(), topLeft.Y()}, Vec2{100, 50})
	assertVec(t, "bottom-right", Vec2{bottomRight.X(), bottomRight.Y()}, Vec2{140, 70})
	if got.Color != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("color = %v, want white", got.Color)
	}
	if s := b.scaling[tex]; s[2] != (Vec2{40, 20}) || s[1] != (Vec2{1, 1}) {
		t.Errorf("texture scaling = %v, want size (40,20) and unit scale", s)
	}
}

func TestImageMissingTextureRetries(t *testing.T) {
	b := newFakeBackend()
	tree, n := preparedImage(t, b)

	if !n.Changed() {
		t.Error("node without texture cleared its dirty bit")
	}
	if len(b.uniforms) != 0 {
		t.Errorf("uniform written without texture: %v", b.uniforms)
	}

	var pass recordPass
	Render[*recordPass](tree, recordRenderer{}, &pass)
	if len(pass.draws) != 0 {
		t.Errorf("draws = %v, want none", pass.draws)
	}

	b.textures["tex"] = true
	tree.Prepare(b)
	if n.Changed() {
		t.Error("node still dirty after the texture appeared")
	}
	Render[*recordPass](tree, recordRenderer{}, &pass)
	if len(pass.draws) != 1 {
		t.Errorf("draws = %v, want one texture draw", pass.draws)
	}
}

func TestImageTextureRenameReleasesOldHandle(t *testing.T) {
	b := newFakeBackend()
	b.textures["tex"] = true
	b.textures["other"] = true
	tree, n := preparedImage(t, b)
	_, old, _ := n.Image().Handles()

	n.Image().SetTextureName("other")
	if !n.Changed() {
		t.Error("texture change did not mark the node")
	}
	tree.Prepare(b)
	if _, live := b.live[uint32(old)]; live {
		t.Error("old texture handle not released")
	}
	if got := b.liveCount("texture"); got != 1 {
		t.Errorf("live textures = %d, want 1", got)
	}

	tree.Release(b)
	if len(b.live) != 0 {
		t.Errorf("live handles after release: %v", b.live)
	}
}

func TestImageMaskDraw(t *testing.T) {
	b := newFakeBackend()
	b.textures["tex"] = true
	b.textures["mask"] = true
	tmpl := NewLayoutTemplate().WithChild(imageNode("img", "tex", Vec2{}, Vec2{10, 10}))
	tmpl.RootNodes[0].Impl.Image.MaskTextureName = "mask"
	tree := NewLayoutTreeFromTemplate(&tmpl, nil)
	tree.Setup(b)
	tree.Propagate()
	tree.Prepare(b)

	var pass recordPass
	Render[*recordPass](tree, recordRenderer{}, &pass)
	u, tex, mask := tree.NodeByPath("img").Image().Handles()
	if !mask.Valid() {
		t.Fatal("mask handle missing")
	}
	want := []string{fmt.Sprintf("texture u%d t%d m%d", u, tex, mask)}
	if !slices.Equal(pass.draws, want) {
		t.Errorf("draws = %v, want %v", pass.draws, want)
	}
	if s := b.scaling[mask]; s[0] != (Vec2{}) || s[1] != (Vec2{1, 1}) {
		t.Errorf("mask scaling = %v, want no uv transform", s)
	}
}

// --- Text prepare ---

func textTree(b *fakeBackend) (*LayoutTree, *NodeItem) {
	n := NewNodeTemplate("label", TextImpl("sans", "hi", 16, 20))
	n.Transform.Size = Vec2{100, 20}
	tmpl := NewLayoutTemplate().WithChild(n)
	tree := NewLayoutTreeFromTemplate(&tmpl, nil)
	tree.Setup(b)
	tree.Propagate()
	tree.Prepare(b)
	return tree, tree.NodeByPath("label")
}

func TestTextLayoutCachedAcrossMoves(t *testing.T) {
	b := newFakeBackend()
	b.fonts["sans"] = true
	tree, n := textTree(b)

	if b.layouts != 1 || len(n.Text().Glyphs()) != 2 {
		t.Fatalf("layouts = %d, glyphs = %d; want 1 and 2", b.layouts, len(n.Text().Glyphs()))
	}

	n.SetPosition(Vec2{30, 30})
	tree.Propagate()
	tree.Prepare(b)
	if b.layouts != 1 {
		t.Errorf("moving the node relaid the text (layouts = %d)", b.layouts)
	}

	n.Text().SetText("hey")
	tree.Propagate()
	tree.Prepare(b)
	if b.layouts != 2 || len(n.Text().Glyphs()) != 3 {
		t.Errorf("layouts = %d, glyphs = %d; want 2 and 3", b.layouts, len(n.Text().Glyphs()))
	}
	if got := b.liveCount("uniform"); got != 3 {
		t.Errorf("live uniforms = %d, want 3", got)
	}
}

func TestTextGlyphPlacement(t *testing.T) {
	b := newFakeBackend()
	b.fonts["sans"] = true
	_, n := textTree(b)

	// Node box spans (0,0)..(100,20). The second glyph is 10 wide, starts at
	// x=10 in the buffer, so its center is (15, 10) on the canvas.
	g := n.Text().Glyphs()[1]
	m := b.uniforms[g.Uniform].Model
	center := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec(t, "glyph center", Vec2{center.X(), center.Y()}, Vec2{15, 10})
}

func TestTextOutlineUniforms(t *testing.T) {
	b := newFakeBackend()
	b.fonts["sans"] = true
	tree, n := textTree(b)
	n.Text().SetOutlineThickness(2)
	n.Text().SetOutlineColor(Color{255, 0, 0, 255})
	tree.Prepare(b)

	for _, g := range n.Text().Glyphs() {
		if !g.Outline.Valid() {
			t.Fatal("glyph without outline uniform")
		}
		if got := b.uniforms[g.Outline].Color; got != (mgl32.Vec4{1, 0, 0, 1}) {
			t.Errorf("outline color = %v, want red", got)
		}
	}
	var pass recordPass
	Render[*recordPass](tree, recordRenderer{}, &pass)
	if len(pass.draws) != 2 {
		t.Errorf("draws = %v, want 2 glyph draws", pass.draws)
	}
}

func TestTextNonPositiveSizeSkipsLayout(t *testing.T) {
	b := newFakeBackend()
	b.fonts["sans"] = true
	n := NewNodeTemplate("label", TextImpl("sans", "hi", 0, 20))
	tmpl := NewLayoutTemplate().WithChild(n)
	tree := NewLayoutTreeFromTemplate(&tmpl, nil)
	tree.Setup(b)
	tree.Propagate()
	tree.Prepare(b)
	if b.layouts != 0 {
		t.Errorf("layouts = %d, want 0", b.layouts)
	}
	if tree.NodeByPath("label").Changed() {
		t.Error("skipped layout left the node dirty")
	}
}

func TestTextMissingFontRetries(t *testing.T) {
	b := newFakeBackend()
	tree, n := textTree(b)
	if !n.Changed() || b.layouts != 0 {
		t.Fatalf("changed = %v, layouts = %d; want dirty and no layout", n.Changed(), b.layouts)
	}
	b.fonts["sans"] = true
	tree.Prepare(b)
	if n.Changed() || b.layouts != 1 {
		t.Errorf("changed = %v, layouts = %d; want clean after one layout", n.Changed(), b.layouts)
	}
	tree.Release(b)
	if len(b.live) != 0 {
		t.Errorf("live handles after release: %v", b.live)
	}
}

func TestMissingUniformWritesNothing(t *testing.T) {
	b := newFakeBackend()
	b.textures["tex"] = true
	b.noUniforms = true
	_, n := preparedImage(t, b)
	if !n.Changed() {
		t.Error("node without uniform cleared its dirty bit")
	}
	if len(b.scaling) != 0 {
		t.Error("texture scaling written without a uniform")
	}
}

func TestTreeUnaddressableNamesRejected(t *testing.T) {
	tree := familyTree()
	for _, name := range []string{"", "x/y"} {
		if tree.RenameNode("parent/a", name) {
			t.Errorf("RenameNode(parent/a, %q) = true", name)
		}
		if tree.AddChild(NewEmptyNode(name, DefaultTransform(), ColorWhite)) {
			t.Errorf("LayoutTree.AddChild(%q) = true", name)
		}
		if tree.NodeByPath("parent").AddChild(NewEmptyNode(name, DefaultTransform(), ColorWhite)) {
			t.Errorf("NodeItem.AddChild(%q) = true", name)
		}
	}
	if tree.NodeByPath("parent/a") == nil {
		t.Error("parent/a lost after rejected renames")
	}
	if !tree.RenameNode("parent/a", "x") || tree.NodeByPath("parent/x") == nil {
		t.Error("valid rename failed")
	}
}
