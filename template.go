package envy

import (
	"strings"

	"github.com/jinzhu/copier"
)

// ImageNodeTemplate describes a textured quad.
type ImageNodeTemplate struct {
	TextureName     string
	MaskTextureName string // "" for no mask
	ScalingX        ImageScalingMode
	ScalingY        ImageScalingMode
	UVOffset        Vec2 // pixels
	UVScale         Vec2
}

// TextNodeTemplate describes a block of text laid out inside the node's size.
type TextNodeTemplate struct {
	FontName         string
	Text             string
	FontSize         float32
	LineHeight       float32
	OutlineThickness float32
	OutlineColor     Color
}

// SublayoutNodeTemplate references a named template in the owning root.
type SublayoutNodeTemplate struct {
	SublayoutName string
}

// NodeImplTemplate is the implementation variant of a node template. Only the
// member selected by Kind is meaningful.
type NodeImplTemplate struct {
	Kind      NodeKind
	Image     ImageNodeTemplate
	Text      TextNodeTemplate
	Sublayout SublayoutNodeTemplate
}

// EmptyImpl returns the variant of a grouping node.
func EmptyImpl() NodeImplTemplate {
	return NodeImplTemplate{Kind: NodeEmpty}
}

// ImageImpl returns an image variant stretching the named texture once.
func ImageImpl(textureName string) NodeImplTemplate {
	return NodeImplTemplate{Kind: NodeImage, Image: ImageNodeTemplate{
		TextureName: textureName,
		UVScale:     Vec2{1, 1},
	}}
}

// TextImpl returns a text variant without outline.
func TextImpl(fontName, text string, fontSize, lineHeight float32) NodeImplTemplate {
	return NodeImplTemplate{Kind: NodeText, Text: TextNodeTemplate{
		FontName:   fontName,
		Text:       text,
		FontSize:   fontSize,
		LineHeight: lineHeight,
	}}
}

// SublayoutImpl returns a variant instancing the named template.
func SublayoutImpl(name string) NodeImplTemplate {
	return NodeImplTemplate{Kind: NodeSublayout, Sublayout: SublayoutNodeTemplate{SublayoutName: name}}
}

// NodeTemplate is the persistent description of a node and its subtree.
// Children are ordered; their names are unique.
type NodeTemplate struct {
	Name       string
	Transform  NodeTransform
	Color      Color
	Visibility NodeVisibility
	Impl       NodeImplTemplate
	Children   []NodeTemplate
}

// NewNodeTemplate returns a white node with the default transform.
func NewNodeTemplate(name string, impl NodeImplTemplate) NodeTemplate {
	return NodeTemplate{
		Name:      name,
		Transform: DefaultTransform(),
		Color:     ColorWhite,
		Impl:      impl,
	}
}

// WithChild appends a child and returns the node, for building literals.
// Panics on an invalid or duplicate name.
func (n NodeTemplate) WithChild(child NodeTemplate) NodeTemplate {
	if !n.AddChild(child) {
		panic("envy: invalid or duplicate child name " + child.Name)
	}
	return n
}

// Clone returns a deep copy of the node and its subtree.
func (n *NodeTemplate) Clone() NodeTemplate {
	var out NodeTemplate
	if err := copier.CopyWithOption(&out, n, copier.Option{DeepCopy: true}); err != nil {
		panic("envy: clone node template: " + err.Error())
	}
	return out
}

// HasChild reports whether a direct child has the given name.
func (n *NodeTemplate) HasChild(name string) bool {
	return indexOfTemplate(n.Children, name) >= 0
}

// Child returns the named direct child, or nil.
func (n *NodeTemplate) Child(name string) *NodeTemplate {
	if i := indexOfTemplate(n.Children, name); i >= 0 {
		return &n.Children[i]
	}
	return nil
}

// AddChild appends a child. Returns false if the name is already taken or
// not a valid node name.
func (n *NodeTemplate) AddChild(child NodeTemplate) bool {
	return insertTemplate(&n.Children, child, MoveToLast())
}

// InsertChild places a child at pos. Returns false on an invalid or
// colliding name, or when pos names a missing sibling.
func (n *NodeTemplate) InsertChild(child NodeTemplate, pos MoveNodePosition) bool {
	return insertTemplate(&n.Children, child, pos)
}

// VisitChildren calls fn for each direct child in order.
func (n *NodeTemplate) VisitChildren(fn func(*NodeTemplate)) {
	for i := range n.Children {
		fn(&n.Children[i])
	}
}

// Walk calls fn for n and every descendant in depth-first pre-order.
func (n *NodeTemplate) Walk(fn func(*NodeTemplate)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].Walk(fn)
	}
}

// --- Sibling group operations ---

func indexOfTemplate(group []NodeTemplate, name string) int {
	for i := range group {
		if group[i].Name == name {
			return i
		}
	}
	return -1
}

// ValidNodeName reports whether name can address a node by path: it is
// non-empty and holds no separator.
func ValidNodeName(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

func insertTemplate(group *[]NodeTemplate, node NodeTemplate, pos MoveNodePosition) bool {
	if !ValidNodeName(node.Name) || indexOfTemplate(*group, node.Name) >= 0 {
		return false
	}
	at, ok := pos.index(*group)
	if !ok {
		return false
	}
	*group = append(*group, NodeTemplate{})
	copy((*group)[at+1:], (*group)[at:])
	(*group)[at] = node
	return true
}

func removeTemplate(group *[]NodeTemplate, name string) (NodeTemplate, bool) {
	i := indexOfTemplate(*group, name)
	if i < 0 {
		return NodeTemplate{}, false
	}
	node := (*group)[i]
	*group = append((*group)[:i], (*group)[i+1:]...)
	return node, true
}

func moveTemplateBackward(group []NodeTemplate, name string) bool {
	i := indexOfTemplate(group, name)
	if i < 0 {
		return false
	}
	if i > 0 {
		group[i], group[i-1] = group[i-1], group[i]
	}
	return true
}

func moveTemplateForward(group []NodeTemplate, name string) bool {
	i := indexOfTemplate(group, name)
	if i < 0 {
		return false
	}
	if i+1 < len(group) {
		group[i], group[i+1] = group[i+1], group[i]
	}
	return true
}

func renameTemplate(group []NodeTemplate, oldName, newName string) bool {
	if !ValidNodeName(newName) || indexOfTemplate(group, newName) >= 0 {
		return false
	}
	i := indexOfTemplate(group, oldName)
	if i < 0 {
		return false
	}
	group[i].Name = newName
	return true
}

// --- Move positions ---

type movePositionKind uint8

const (
	moveFirst movePositionKind = iota
	moveBefore
	moveAfter
	moveLast
)

// MoveNodePosition is the placement of a node inside its destination group.
type MoveNodePosition struct {
	kind    movePositionKind
	sibling string
}

// MoveToFirst places the node before all siblings.
func MoveToFirst() MoveNodePosition { return MoveNodePosition{kind: moveFirst} }

// MoveToLast places the node after all siblings.
func MoveToLast() MoveNodePosition { return MoveNodePosition{kind: moveLast} }

// MoveBefore places the node directly before the named sibling.
func MoveBefore(name string) MoveNodePosition {
	return MoveNodePosition{kind: moveBefore, sibling: name}
}

// MoveAfter places the node directly after the named sibling.
func MoveAfter(name string) MoveNodePosition {
	return MoveNodePosition{kind: moveAfter, sibling: name}
}

// index resolves the insertion index inside group.
func (p MoveNodePosition) index(group []NodeTemplate) (int, bool) {
	switch p.kind {
	case moveFirst:
		return 0, true
	case moveLast:
		return len(group), true
	case moveBefore, moveAfter:
		i := indexOfTemplate(group, p.sibling)
		if i < 0 {
			return 0, false
		}
		if p.kind == moveAfter {
			i++
		}
		return i, true
	}
	return 0, false
}

// --- Paths ---

// PathComponents splits a slash-separated node path into sibling names.
// Empty components and a leading "/" are ignored.
func PathComponents(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitPath returns the parent path and the file name of p. The parent of a
// top-level node is "".
func SplitPath(p string) (parent, name string) {
	comps := PathComponents(p)
	if len(comps) == 0 {
		return "", ""
	}
	return strings.Join(comps[:len(comps)-1], "/"), comps[len(comps)-1]
}

// JoinPath appends name to a parent path.
func JoinPath(parent, name string) string {
	parent = strings.Join(PathComponents(parent), "/")
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// rewritePathPrefix maps p from under oldPath to under newPath. ok is false
// when p is neither oldPath nor one of its descendants.
func rewritePathPrefix(p, oldPath, newPath string) (string, bool) {
	pc, oc := PathComponents(p), PathComponents(oldPath)
	if len(pc) < len(oc) {
		return p, false
	}
	for i := range oc {
		if pc[i] != oc[i] {
			return p, false
		}
	}
	rest := append(PathComponents(newPath), pc[len(oc):]...)
	return strings.Join(rest, "/"), true
}

// --- LayoutTemplate ---

// NamedAnimation pairs an animation with its name in a template.
type NamedAnimation struct {
	Name      string
	Animation Animation
}

// LayoutTemplate is a serializable layout: ordered root nodes and named
// animations whose node paths resolve against those roots.
type LayoutTemplate struct {
	CanvasSize [2]uint32
	RootNodes  []NodeTemplate
	Animations []NamedAnimation
}

// NewLayoutTemplate returns an empty template sized to the design canvas.
func NewLayoutTemplate() LayoutTemplate {
	return LayoutTemplate{CanvasSize: [2]uint32{CanvasWidth, CanvasHeight}}
}

// Clone returns a deep copy of the template.
func (t *LayoutTemplate) Clone() LayoutTemplate {
	var out LayoutTemplate
	if err := copier.CopyWithOption(&out, t, copier.Option{DeepCopy: true}); err != nil {
		panic("envy: clone layout template: " + err.Error())
	}
	return out
}

// AddChild appends a root node. Returns false if the name is already taken.
func (t *LayoutTemplate) AddChild(node NodeTemplate) bool {
	return insertTemplate(&t.RootNodes, node, MoveToLast())
}

// WithChild appends a root node and returns the template. Panics on an
// invalid or duplicate name.
func (t LayoutTemplate) WithChild(node NodeTemplate) LayoutTemplate {
	if !t.AddChild(node) {
		panic("envy: invalid or duplicate root node name " + node.Name)
	}
	return t
}

// HasRoot reports whether a root node has the given name.
func (t *LayoutTemplate) HasRoot(name string) bool {
	return indexOfTemplate(t.RootNodes, name) >= 0
}

// NodeByPath returns the node at p, or nil. The pointer stays valid until the
// containing group is modified.
func (t *LayoutTemplate) NodeByPath(p string) *NodeTemplate {
	comps := PathComponents(p)
	if len(comps) == 0 {
		return nil
	}
	group := t.RootNodes
	var node *NodeTemplate
	for _, name := range comps {
		i := indexOfTemplate(group, name)
		if i < 0 {
			return nil
		}
		node = &group[i]
		group = node.Children
	}
	return node
}

// group returns the child slice addressed by a parent path. "" and "/" address
// the root nodes.
func (t *LayoutTemplate) group(parent string) *[]NodeTemplate {
	if len(PathComponents(parent)) == 0 {
		return &t.RootNodes
	}
	node := t.NodeByPath(parent)
	if node == nil {
		return nil
	}
	return &node.Children
}

// AddNode inserts node under parentPath at pos.
func (t *LayoutTemplate) AddNode(parentPath string, node NodeTemplate, pos MoveNodePosition) bool {
	g := t.group(parentPath)
	if g == nil {
		return false
	}
	return insertTemplate(g, node, pos)
}

// WalkTree calls fn for every node in depth-first pre-order, with its path.
func (t *LayoutTemplate) WalkTree(fn func(path string, node *NodeTemplate)) {
	var walk func(prefix string, n *NodeTemplate)
	walk = func(prefix string, n *NodeTemplate) {
		p := JoinPath(prefix, n.Name)
		fn(p, n)
		for i := range n.Children {
			walk(p, &n.Children[i])
		}
	}
	for i := range t.RootNodes {
		walk("", &t.RootNodes[i])
	}
}

// RenameNode renames the node at p, keeping its parent. Animation node paths
// equal to p, or below it, follow the rename.
func (t *LayoutTemplate) RenameNode(p, newName string) bool {
	parent, oldName := SplitPath(p)
	if oldName == "" || !ValidNodeName(newName) {
		return false
	}
	g := t.group(parent)
	if g == nil || !renameTemplate(*g, oldName, newName) {
		return false
	}
	t.rewriteAnimationPaths(JoinPath(parent, oldName), JoinPath(parent, newName))
	return true
}

// RemoveNode removes the node at p and every node animation targeting it or
// its descendants.
func (t *LayoutTemplate) RemoveNode(p string) (NodeTemplate, bool) {
	parent, name := SplitPath(p)
	if name == "" {
		return NodeTemplate{}, false
	}
	g := t.group(parent)
	if g == nil {
		return NodeTemplate{}, false
	}
	node, ok := removeTemplate(g, name)
	if !ok {
		return NodeTemplate{}, false
	}
	removed := JoinPath(parent, name)
	for i := range t.Animations {
		anim := &t.Animations[i].Animation
		kept := anim.NodeAnimations[:0]
		for _, na := range anim.NodeAnimations {
			if _, under := rewritePathPrefix(na.NodePath, removed, removed); !under {
				kept = append(kept, na)
			}
		}
		anim.NodeAnimations = kept
	}
	return node, true
}

// MoveNodeBackwardByPath swaps the node at p with its previous sibling. It
// reports whether the node exists; the first node stays in place.
func (t *LayoutTemplate) MoveNodeBackwardByPath(p string) bool {
	parent, name := SplitPath(p)
	g := t.group(parent)
	if name == "" || g == nil {
		return false
	}
	return moveTemplateBackward(*g, name)
}

// MoveNodeForwardByPath swaps the node at p with its next sibling.
func (t *LayoutTemplate) MoveNodeForwardByPath(p string) bool {
	parent, name := SplitPath(p)
	g := t.group(parent)
	if name == "" || g == nil {
		return false
	}
	return moveTemplateForward(*g, name)
}

// MoveNode moves the node at oldPath to newPath. The parent of newPath is the
// destination group and its file name the node's new name; pos places it
// among the destination's children. Animation paths follow the move.
func (t *LayoutTemplate) MoveNode(oldPath, newPath string, pos MoveNodePosition) bool {
	oldParent, oldName := SplitPath(oldPath)
	newParent, newName := SplitPath(newPath)
	if oldName == "" || newName == "" {
		return false
	}
	from := JoinPath(oldParent, oldName)
	to := JoinPath(newParent, newName)
	if _, inside := rewritePathPrefix(newParent, from, from); inside {
		return false
	}

	src := t.group(oldParent)
	if src == nil || indexOfTemplate(*src, oldName) < 0 {
		return false
	}
	dst := t.group(newParent)
	if dst == nil {
		return false
	}
	sameGroup := strings.Join(PathComponents(oldParent), "/") == strings.Join(PathComponents(newParent), "/")
	if i := indexOfTemplate(*dst, newName); i >= 0 && !(sameGroup && newName == oldName) {
		return false
	}
	if pos.kind == moveBefore || pos.kind == moveAfter {
		if pos.sibling == oldName && sameGroup {
			return false
		}
		if indexOfTemplate(*dst, pos.sibling) < 0 {
			return false
		}
	}

	node, _ := removeTemplate(src, oldName)
	node.Name = newName
	// The source removal may have shifted the destination slice header.
	dst = t.group(newParent)
	if !insertTemplate(dst, node, pos) {
		panic("envy: move node: destination validated but insert failed")
	}
	if from != to {
		t.rewriteAnimationPaths(from, to)
	}
	return true
}

func (t *LayoutTemplate) rewriteAnimationPaths(oldPath, newPath string) {
	for i := range t.Animations {
		anims := t.Animations[i].Animation.NodeAnimations
		for j := range anims {
			if p, ok := rewritePathPrefix(anims[j].NodePath, oldPath, newPath); ok {
				anims[j].NodePath = p
			}
		}
	}
}

// AddAnimation stores anim under name, replacing an existing one.
func (t *LayoutTemplate) AddAnimation(name string, anim Animation) {
	for i := range t.Animations {
		if t.Animations[i].Name == name {
			t.Animations[i].Animation = anim
			return
		}
	}
	t.Animations = append(t.Animations, NamedAnimation{Name: name, Animation: anim})
}

// Animation returns the named animation, or nil.
func (t *LayoutTemplate) Animation(name string) *Animation {
	for i := range t.Animations {
		if t.Animations[i].Name == name {
			return &t.Animations[i].Animation
		}
	}
	return nil
}

// RemoveAnimation deletes the named animation.
func (t *LayoutTemplate) RemoveAnimation(name string) bool {
	for i := range t.Animations {
		if t.Animations[i].Name == name {
			t.Animations = append(t.Animations[:i], t.Animations[i+1:]...)
			return true
		}
	}
	return false
}

// SublayoutReferences returns the template names referenced by sublayout
// nodes, in tree order, without duplicates.
func (t *LayoutTemplate) SublayoutReferences() []string {
	var refs []string
	seen := make(map[string]bool)
	t.WalkTree(func(_ string, n *NodeTemplate) {
		if n.Impl.Kind == NodeSublayout && !seen[n.Impl.Sublayout.SublayoutName] {
			seen[n.Impl.Sublayout.SublayoutName] = true
			refs = append(refs, n.Impl.Sublayout.SublayoutName)
		}
	})
	return refs
}

// renameSublayoutReferences rewrites every sublayout node referencing
// oldName. It returns the number of nodes changed.
func (t *LayoutTemplate) renameSublayoutReferences(oldName, newName string) int {
	n := 0
	t.WalkTree(func(_ string, node *NodeTemplate) {
		if node.Impl.Kind == NodeSublayout && node.Impl.Sublayout.SublayoutName == oldName {
			node.Impl.Sublayout.SublayoutName = newName
			n++
		}
	})
	return n
}
