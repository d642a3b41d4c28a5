package envy

// drawer is a Renderer bound to one pass. Rendering a tree goes through it so
// the traversal itself needs no type parameter.
type drawer interface {
	drawTexture(u UniformHandle, args DrawTextureArgs)
	drawGlyphs(glyphs []GlyphDraw)
}

type passDrawer[P any] struct {
	r    Renderer[P]
	pass P
}

func (d passDrawer[P]) drawTexture(u UniformHandle, args DrawTextureArgs) {
	d.r.DrawTextureExt(u, args, d.pass)
}

func (d passDrawer[P]) drawGlyphs(glyphs []GlyphDraw) {
	d.r.DrawGlyphs(glyphs, d.pass)
}

// Render draws the tree into pass. It reads only what Prepare wrote; nodes
// without handles are skipped. Children draw after their parent, and a
// sublayout's tree draws before the sublayout node's own children.
func Render[P any](t *LayoutTree, r Renderer[P], pass P) {
	t.render(passDrawer[P]{r: r, pass: pass})
}

// RenderRoot draws the live tree of root into pass. In debug mode it ends the
// frame by logging the phase timings.
func RenderRoot[P any](root *LayoutRoot, r Renderer[P], pass P) {
	root.timed(&root.stats.renderTime, func() {
		Render(root.tree, r, pass)
	})
	root.debugLog()
}

func (t *LayoutTree) render(d drawer) {
	for _, n := range t.roots {
		n.render(d)
	}
}

func (n *NodeItem) render(d drawer) {
	switch n.kind {
	case NodeImage:
		n.image.render(d, n.name)
	case NodeText:
		n.text.render(d)
	case NodeSublayout:
		n.sublayout.tree.render(d)
	}
	for _, c := range n.children {
		c.render(d)
	}
}
