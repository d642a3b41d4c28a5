package envy

// UpdateCallback runs once per frame during LayoutTree.Update with a cursor
// positioned on the node it was registered on.
type UpdateCallback func(a *Accessor)

// maxSublayoutDepth bounds sublayout instantiation. Installed templates are
// acyclic; the bound only catches trees built from unvalidated templates.
const maxSublayoutDepth = 64

// NodeItem is a live node: the runtime counterpart of a NodeTemplate holding
// backend handles and the computed absolute affine. A single flat struct
// carries every variant; the variant state is reached through Image, Text or
// Sublayout.
type NodeItem struct {
	name string

	// Local state. Writing these fields directly requires MarkChanged.
	Transform  NodeTransform
	Color      Color
	Visibility NodeVisibility

	kind      NodeKind
	image     *ImageNode
	text      *TextNode
	sublayout *SublayoutNode

	children []*NodeItem

	// Computed during Propagate.
	affine     Affine2
	wasChanged bool

	callbacks []UpdateCallback

	// Disjoint access bookkeeping.
	readers int
	writer  bool
}

func newNodeItem(name string, transform NodeTransform, color Color, kind NodeKind) *NodeItem {
	return &NodeItem{
		name:       name,
		Transform:  transform,
		Color:      color,
		kind:       kind,
		affine:     IdentityAffine,
		wasChanged: true,
	}
}

// NewEmptyNode creates a grouping node with no visual output.
func NewEmptyNode(name string, transform NodeTransform, color Color) *NodeItem {
	return newNodeItem(name, transform, color, NodeEmpty)
}

// NewImageNode creates a node drawing a textured quad.
func NewImageNode(name string, transform NodeTransform, color Color, tmpl ImageNodeTemplate) *NodeItem {
	n := newNodeItem(name, transform, color, NodeImage)
	n.image = newImageNode(n, tmpl)
	return n
}

// NewTextNode creates a node drawing text laid out inside its size.
func NewTextNode(name string, transform NodeTransform, color Color, tmpl TextNodeTemplate) *NodeItem {
	n := newNodeItem(name, transform, color, NodeText)
	n.text = newTextNode(n, tmpl)
	return n
}

// NewSublayoutNode creates a node hosting tree, an instance of the template
// named ref.
func NewSublayoutNode(name string, transform NodeTransform, color Color, ref string, tree *LayoutTree) *NodeItem {
	n := newNodeItem(name, transform, color, NodeSublayout)
	if tree == nil {
		tree = NewLayoutTree()
	}
	n.sublayout = &SublayoutNode{reference: ref, tree: tree}
	return n
}

// NodeFromTemplate instantiates a template subtree. Sublayout references are
// resolved against root; with a nil root, or an unknown name, the sublayout
// starts with an empty tree.
func NodeFromTemplate(t *NodeTemplate, root *LayoutRoot) *NodeItem {
	return nodeFromTemplate(t, root, 0)
}

func nodeFromTemplate(t *NodeTemplate, root *LayoutRoot, depth int) *NodeItem {
	var n *NodeItem
	switch t.Impl.Kind {
	case NodeImage:
		n = NewImageNode(t.Name, t.Transform, t.Color, t.Impl.Image)
	case NodeText:
		n = NewTextNode(t.Name, t.Transform, t.Color, t.Impl.Text)
	case NodeSublayout:
		ref := t.Impl.Sublayout.SublayoutName
		tree := NewLayoutTree()
		if depth >= maxSublayoutDepth {
			panic("envy: sublayout nesting too deep at " + ref)
		}
		if root != nil {
			if tmpl := root.Template(ref); tmpl != nil {
				tree = treeFromTemplate(tmpl, root, depth+1)
			} else {
				logger.Error("envy: sublayout references unknown template", "node", t.Name, "template", ref)
			}
		}
		n = NewSublayoutNode(t.Name, t.Transform, t.Color, ref, tree)
	default:
		n = NewEmptyNode(t.Name, t.Transform, t.Color)
	}
	n.Visibility = t.Visibility
	n.children = make([]*NodeItem, 0, len(t.Children))
	for i := range t.Children {
		n.children = append(n.children, nodeFromTemplate(&t.Children[i], root, depth))
	}
	return n
}

// Name returns the node's name. Names change only through the owning group.
func (n *NodeItem) Name() string { return n.name }

// Kind returns the implementation variant.
func (n *NodeItem) Kind() NodeKind { return n.kind }

// Affine returns the absolute affine computed by the last Propagate.
func (n *NodeItem) Affine() Affine2 { return n.affine }

// Changed reports whether the node awaits propagation or prepare.
func (n *NodeItem) Changed() bool { return n.wasChanged }

// Image returns the image state, or nil for other variants.
func (n *NodeItem) Image() *ImageNode { return n.image }

// Text returns the text state, or nil for other variants.
func (n *NodeItem) Text() *TextNode { return n.text }

// Sublayout returns the sublayout state, or nil for other variants.
func (n *NodeItem) Sublayout() *SublayoutNode { return n.sublayout }

// Children returns the ordered children. The slice must not be modified.
func (n *NodeItem) Children() []*NodeItem { return n.children }

// HasChild reports whether a direct child has the given name.
func (n *NodeItem) HasChild(name string) bool { return indexOfNode(n.children, name) >= 0 }

// Child returns the named direct child, or nil.
func (n *NodeItem) Child(name string) *NodeItem {
	if i := indexOfNode(n.children, name); i >= 0 {
		return n.children[i]
	}
	return nil
}

// AddChild appends a child. Returns false if the name is invalid or taken. The
// caller is responsible for calling setup on the child's resources through
// the owning tree.
func (n *NodeItem) AddChild(child *NodeItem) bool {
	if !ValidNodeName(child.name) || indexOfNode(n.children, child.name) >= 0 {
		return false
	}
	n.children = append(n.children, child)
	return true
}

// AddUpdateCallback registers fn to run every frame during Update.
func (n *NodeItem) AddUpdateCallback(fn UpdateCallback) {
	n.callbacks = append(n.callbacks, fn)
}

// WithUpdateCallback registers fn and returns the node.
func (n *NodeItem) WithUpdateCallback(fn UpdateCallback) *NodeItem {
	n.AddUpdateCallback(fn)
	return n
}

func indexOfNode(group []*NodeItem, name string) int {
	for i, c := range group {
		if c.name == name {
			return i
		}
	}
	return -1
}

func renameNode(group []*NodeItem, oldName, newName string) bool {
	if !ValidNodeName(newName) || indexOfNode(group, newName) >= 0 {
		return false
	}
	i := indexOfNode(group, oldName)
	if i < 0 {
		return false
	}
	group[i].name = newName
	return true
}

// --- Lifecycle ---

func (n *NodeItem) setup(b Backend) {
	switch n.kind {
	case NodeImage:
		n.image.setup(b, n.name)
	case NodeText:
		n.text.setup(b, n.name)
	case NodeSublayout:
		n.sublayout.tree.Setup(b)
	}
	for _, c := range n.children {
		c.setup(b)
	}
}

func (n *NodeItem) release(b Backend) {
	switch n.kind {
	case NodeImage:
		n.image.release(b)
	case NodeText:
		n.text.release(b)
	case NodeSublayout:
		n.sublayout.tree.Release(b)
	}
	for _, c := range n.children {
		c.release(b)
	}
	n.wasChanged = true
}

func (n *NodeItem) prepare(b Backend) {
	if n.wasChanged {
		ok := true
		switch n.kind {
		case NodeImage:
			ok = n.image.prepare(b, n)
		case NodeText:
			ok = n.text.prepare(b, n)
		}
		if ok {
			n.wasChanged = false
		}
	}
	if n.sublayout != nil {
		n.sublayout.tree.Prepare(b)
	}
	for _, c := range n.children {
		c.prepare(b)
	}
}

// --- Image ---

// ImageNode is the state of an image node.
type ImageNode struct {
	owner *NodeItem

	textureName string
	maskName    string
	scalingX    ImageScalingMode
	scalingY    ImageScalingMode
	uvOffset    Vec2
	uvScale     Vec2

	uniform UniformHandle
	texture TextureHandle
	mask    TextureHandle

	// Handles invalidated by a rename, released on the next prepare.
	stale []TextureHandle
}

func newImageNode(owner *NodeItem, t ImageNodeTemplate) *ImageNode {
	return &ImageNode{
		owner:       owner,
		textureName: t.TextureName,
		maskName:    t.MaskTextureName,
		scalingX:    t.ScalingX,
		scalingY:    t.ScalingY,
		uvOffset:    t.UVOffset,
		uvScale:     t.UVScale,
	}
}

// TextureName returns the name of the drawn texture.
func (img *ImageNode) TextureName() string { return img.textureName }

// SetTextureName switches the texture; the old handle is released on the next
// prepare.
func (img *ImageNode) SetTextureName(name string) {
	if name == img.textureName {
		return
	}
	img.textureName = name
	img.invalidate(&img.texture)
	img.owner.MarkChanged()
}

// MaskTextureName returns the name of the mask texture, or "".
func (img *ImageNode) MaskTextureName() string { return img.maskName }

// SetMaskTextureName switches the mask texture; "" removes the mask.
func (img *ImageNode) SetMaskTextureName(name string) {
	if name == img.maskName {
		return
	}
	img.maskName = name
	img.invalidate(&img.mask)
	img.owner.MarkChanged()
}

func (img *ImageNode) invalidate(h *TextureHandle) {
	if h.Valid() {
		img.stale = append(img.stale, *h)
	}
	*h = 0
}

// Scaling returns the per-axis scaling modes.
func (img *ImageNode) Scaling() (x, y ImageScalingMode) { return img.scalingX, img.scalingY }

// SetScaling changes the scaling modes. Texture handles are requested with
// their scaling, so both are re-requested.
func (img *ImageNode) SetScaling(x, y ImageScalingMode) {
	if x == img.scalingX && y == img.scalingY {
		return
	}
	img.scalingX, img.scalingY = x, y
	img.invalidate(&img.texture)
	img.invalidate(&img.mask)
	img.owner.MarkChanged()
}

// UVOffset returns the texture offset in pixels.
func (img *ImageNode) UVOffset() Vec2 { return img.uvOffset }

// SetUVOffset sets the texture offset in pixels.
func (img *ImageNode) SetUVOffset(v Vec2) {
	img.uvOffset = v
	img.owner.MarkChanged()
}

// UVScale returns the texture coordinate scale.
func (img *ImageNode) UVScale() Vec2 { return img.uvScale }

// SetUVScale sets the texture coordinate scale.
func (img *ImageNode) SetUVScale(v Vec2) {
	img.uvScale = v
	img.owner.MarkChanged()
}

// Handles returns the backend handles currently held.
func (img *ImageNode) Handles() (uniform UniformHandle, texture, mask TextureHandle) {
	return img.uniform, img.texture, img.mask
}

func (img *ImageNode) requestArgs() TextureRequestArgs {
	return TextureRequestArgs{ScalingX: img.scalingX, ScalingY: img.scalingY}
}

// acquire requests every missing handle and reports whether all required
// handles are present.
func (img *ImageNode) acquire(b Backend, node string) bool {
	if !img.uniform.Valid() {
		if h, ok := b.RequestNewUniform(); ok {
			img.uniform = h
		} else {
			logger.Warn("envy: failed to acquire uniform", "node", node, "texture", img.textureName)
		}
	}
	if !img.texture.Valid() {
		if h, ok := b.RequestTextureByName(img.textureName, img.requestArgs()); ok {
			img.texture = h
		} else {
			logger.Warn("envy: failed to acquire texture", "node", node, "texture", img.textureName)
		}
	}
	if img.maskName != "" && !img.mask.Valid() {
		if h, ok := b.RequestTextureByName(img.maskName, img.requestArgs()); ok {
			img.mask = h
		} else {
			logger.Warn("envy: failed to acquire mask texture", "node", node, "mask", img.maskName)
		}
	}
	return img.uniform.Valid() && img.texture.Valid() && (img.maskName == "" || img.mask.Valid())
}

func (img *ImageNode) releaseStale(b Backend) {
	for _, h := range img.stale {
		b.ReleaseTexture(h)
	}
	img.stale = img.stale[:0]
}

func (img *ImageNode) setup(b Backend, node string) {
	img.releaseStale(b)
	img.acquire(b, node)
}

func (img *ImageNode) prepare(b Backend, n *NodeItem) bool {
	img.releaseStale(b)
	if !img.acquire(b, n.name) {
		return false
	}
	size := n.Transform.Size
	model := AffineToMat4(n.affine.Mul(AffineScale(size)))
	b.UpdateUniform(img.uniform, NewDrawUniform(model, n.Color.Normalized()))
	b.UpdateTextureScaling(img.texture, img.uvOffset, img.uvScale, size)
	if img.mask.Valid() {
		b.UpdateTextureScaling(img.mask, Vec2{}, Vec2{1, 1}, size)
	}
	return true
}

func (img *ImageNode) release(b Backend) {
	img.releaseStale(b)
	if img.uniform.Valid() {
		b.ReleaseUniform(img.uniform)
		img.uniform = 0
	}
	if img.texture.Valid() {
		b.ReleaseTexture(img.texture)
		img.texture = 0
	}
	if img.mask.Valid() {
		b.ReleaseTexture(img.mask)
		img.mask = 0
	}
}

func (img *ImageNode) render(r drawer, node string) {
	if !img.uniform.Valid() || !img.texture.Valid() {
		logger.Debug("envy: image render skipped without handles", "node", node, "texture", img.textureName)
		return
	}
	if img.maskName != "" && !img.mask.Valid() {
		return
	}
	r.drawTexture(img.uniform, DrawTextureArgs{Texture: img.texture, Mask: img.mask})
}

// --- Text ---

// textLayoutKey captures every input of a layout; a change in any of them
// requires a new layout.
type textLayoutKey struct {
	font       FontHandle
	size       float32
	lineHeight float32
	thickness  float32
	container  Vec2
	text       string
}

// TextNode is the state of a text node.
type TextNode struct {
	owner *NodeItem

	fontName         string
	text             string
	fontSize         float32
	lineHeight       float32
	outlineThickness float32
	outlineColor     Color

	font       FontHandle
	staleFonts []FontHandle
	glyphs     []PreparedGlyph
	draws      []GlyphDraw
	laidOut    textLayoutKey
	hasLayout  bool
}

func newTextNode(owner *NodeItem, t TextNodeTemplate) *TextNode {
	return &TextNode{
		owner:            owner,
		fontName:         t.FontName,
		text:             t.Text,
		fontSize:         t.FontSize,
		lineHeight:       t.LineHeight,
		outlineThickness: t.OutlineThickness,
		outlineColor:     t.OutlineColor,
	}
}

// FontName returns the font the text is laid out with.
func (t *TextNode) FontName() string { return t.fontName }

// SetFontName switches the font; the old handle is released on the next
// prepare.
func (t *TextNode) SetFontName(name string) {
	if name == t.fontName {
		return
	}
	t.fontName = name
	if t.font.Valid() {
		t.staleFonts = append(t.staleFonts, t.font)
	}
	t.font = 0
	t.owner.MarkChanged()
}

// Text returns the laid out string.
func (t *TextNode) Text() string { return t.text }

// SetText replaces the string.
func (t *TextNode) SetText(s string) {
	t.text = s
	t.owner.MarkChanged()
}

// FontSize returns the font size in pixels.
func (t *TextNode) FontSize() float32 { return t.fontSize }

// SetFontSize sets the font size in pixels.
func (t *TextNode) SetFontSize(v float32) {
	t.fontSize = v
	t.owner.MarkChanged()
}

// LineHeight returns the line pitch in pixels.
func (t *TextNode) LineHeight() float32 { return t.lineHeight }

// SetLineHeight sets the line pitch in pixels.
func (t *TextNode) SetLineHeight(v float32) {
	t.lineHeight = v
	t.owner.MarkChanged()
}

// OutlineThickness returns the stroke width of the glyph outline, 0 for none.
func (t *TextNode) OutlineThickness() float32 { return t.outlineThickness }

// SetOutlineThickness sets the stroke width of the glyph outline.
func (t *TextNode) SetOutlineThickness(v float32) {
	t.outlineThickness = v
	t.owner.MarkChanged()
}

// OutlineColor returns the outline color.
func (t *TextNode) OutlineColor() Color { return t.outlineColor }

// SetOutlineColor sets the outline color.
func (t *TextNode) SetOutlineColor(c Color) {
	t.outlineColor = c
	t.owner.MarkChanged()
}

// Glyphs returns the glyphs of the last layout.
func (t *TextNode) Glyphs() []PreparedGlyph { return t.glyphs }

// FontHandle returns the font handle currently held.
func (t *TextNode) FontHandle() FontHandle { return t.font }

func (t *TextNode) acquire(b Backend, node string) bool {
	if !t.font.Valid() {
		if h, ok := b.RequestFontByName(t.fontName); ok {
			t.font = h
		} else {
			logger.Warn("envy: failed to acquire font", "node", node, "font", t.fontName)
		}
	}
	return t.font.Valid()
}

func (t *TextNode) releaseStale(b Backend) {
	for _, h := range t.staleFonts {
		b.ReleaseFont(h)
	}
	t.staleFonts = t.staleFonts[:0]
}

func (t *TextNode) releaseGlyphs(b Backend) {
	for _, g := range t.glyphs {
		if g.Uniform.Valid() {
			b.ReleaseUniform(g.Uniform)
		}
		if g.Outline.Valid() {
			b.ReleaseUniform(g.Outline)
		}
	}
	t.glyphs = nil
	t.draws = t.draws[:0]
	t.hasLayout = false
}

func (t *TextNode) setup(b Backend, node string) {
	t.releaseStale(b)
	t.acquire(b, node)
}

func (t *TextNode) prepare(b Backend, n *NodeItem) bool {
	t.releaseStale(b)
	if !t.acquire(b, n.name) {
		return false
	}

	key := textLayoutKey{
		font:       t.font,
		size:       t.fontSize,
		lineHeight: t.lineHeight,
		thickness:  t.outlineThickness,
		container:  n.Transform.Size,
		text:       t.text,
	}
	if !t.hasLayout || key != t.laidOut {
		t.releaseGlyphs(b)
		t.laidOut = key
		t.hasLayout = true
		if t.fontSize <= 0 || t.lineHeight <= 0 || key.container.X <= 0 || key.container.Y <= 0 {
			logger.Info("envy: skipping text layout with non-positive size", "node", n.name,
				"font_size", t.fontSize, "line_height", t.lineHeight)
			return true
		}
		t.glyphs = b.LayoutText(TextLayoutArgs{
			Font:             t.font,
			FontSize:         t.fontSize,
			LineHeight:       t.lineHeight,
			BufferSize:       key.container,
			Text:             t.text,
			OutlineThickness: t.outlineThickness,
		})
		for _, g := range t.glyphs {
			t.draws = append(t.draws, GlyphDraw{Uniform: g.Uniform, Outline: g.Outline, Glyph: g.Glyph})
		}
	}

	color := n.Color.Normalized()
	outline := t.outlineColor.Normalized()
	half := n.Transform.Size.Scale(0.5)
	for _, g := range t.glyphs {
		center := g.Offset.Sub(half).Add(g.Size.Scale(0.5))
		model := AffineToMat4(n.affine.Mul(AffineTranslation(center)))
		if g.Uniform.Valid() {
			b.UpdateUniform(g.Uniform, NewDrawUniform(model, color))
		}
		if g.Outline.Valid() {
			b.UpdateUniform(g.Outline, NewDrawUniform(model, outline))
		}
	}
	return true
}

func (t *TextNode) release(b Backend) {
	t.releaseStale(b)
	t.releaseGlyphs(b)
	if t.font.Valid() {
		b.ReleaseFont(t.font)
		t.font = 0
	}
}

func (t *TextNode) render(r drawer) {
	if len(t.draws) > 0 {
		r.drawGlyphs(t.draws)
	}
}

// --- Sublayout ---

// SublayoutNode is the state of a node instancing a named template.
type SublayoutNode struct {
	reference string
	tree      *LayoutTree
}

// Reference returns the name of the instanced template.
func (s *SublayoutNode) Reference() string { return s.reference }

// SetReferenceNoUpdate changes the stored reference without rebuilding the
// inner tree. LayoutRoot uses it when a template is renamed.
func (s *SublayoutNode) SetReferenceNoUpdate(ref string) { s.reference = ref }

// Tree returns the inner tree.
func (s *SublayoutNode) Tree() *LayoutTree { return s.tree }
