package envy

import "fmt"

// Accessor is a cursor over a sibling group used by update callbacks. It can
// read or exclusively claim the node it points at and derive cursors for the
// parent, children and siblings.
//
// At any moment a node has either any number of readers or exactly one
// writer. Claims that would break this panic: they are programmer errors in
// an update callback. Claims on different nodes never conflict, so a callback
// may hold its own node mutably while reading a sibling or its parent.
type Accessor struct {
	group  []*NodeItem
	index  int
	parent *Accessor
}

func newAccessor(group []*NodeItem, index int, parent *Accessor) *Accessor {
	return &Accessor{group: group, index: index, parent: parent}
}

func (a *Accessor) node() *NodeItem {
	return a.group[a.index]
}

// Name returns the name of the node under the cursor. Reading the name never
// needs a claim because names cannot change through an accessor.
func (a *Accessor) Name() string {
	return a.node().name
}

// SelfRef claims the node for reading. Panics if a writer holds it.
func (a *Accessor) SelfRef() NodeRef {
	n := a.node()
	if n.writer {
		panic(fmt.Sprintf("envy: node %q read while mutably borrowed", n.name))
	}
	n.readers++
	return NodeRef{n: n, claim: &claim{}}
}

// SelfMut claims the node exclusively. Panics if any reader or writer holds it.
func (a *Accessor) SelfMut() NodeMut {
	n := a.node()
	if n.writer {
		panic(fmt.Sprintf("envy: node %q mutably borrowed twice", n.name))
	}
	if n.readers > 0 {
		panic(fmt.Sprintf("envy: node %q mutably borrowed while %d readers are live", n.name, n.readers))
	}
	n.writer = true
	return NodeMut{NodeRef{n: n, claim: &claim{}}}
}

// WithRef runs fn with a read claim that is released when fn returns.
func (a *Accessor) WithRef(fn func(NodeRef)) {
	r := a.SelfRef()
	defer r.Release()
	fn(r)
}

// WithMut runs fn with an exclusive claim that is released when fn returns.
func (a *Accessor) WithMut(fn func(NodeMut)) {
	m := a.SelfMut()
	defer m.Release()
	fn(m)
}

// Parent returns a cursor on the parent node. Top-level nodes have none.
func (a *Accessor) Parent() (*Accessor, bool) {
	return a.parent, a.parent != nil
}

// ParentRef claims the parent for reading.
func (a *Accessor) ParentRef() (NodeRef, bool) {
	if a.parent == nil {
		return NodeRef{}, false
	}
	return a.parent.SelfRef(), true
}

// ParentMut claims the parent exclusively.
func (a *Accessor) ParentMut() (NodeMut, bool) {
	if a.parent == nil {
		return NodeMut{}, false
	}
	return a.parent.SelfMut(), true
}

// Child returns a cursor on the named child of the current node.
func (a *Accessor) Child(name string) (*Accessor, bool) {
	children := a.node().children
	i := indexOfNode(children, name)
	if i < 0 {
		return nil, false
	}
	return newAccessor(children, i, a), true
}

// Sibling returns a cursor on the named node of the current group.
func (a *Accessor) Sibling(name string) (*Accessor, bool) {
	i := indexOfNode(a.group, name)
	if i < 0 {
		return nil, false
	}
	return newAccessor(a.group, i, a.parent), true
}

// claim is shared by every copy of a NodeRef or NodeMut so a claim is
// released at most once.
type claim struct {
	released bool
}

func (c *claim) release(kind string, n *NodeItem) {
	if c == nil || c.released {
		panic(fmt.Sprintf("envy: node %q %s claim released twice", n.name, kind))
	}
	c.released = true
}

// NodeRef is a read claim on a node. Call Release when done.
type NodeRef struct {
	n     *NodeItem
	claim *claim
}

// Release drops the claim. Releasing it twice, through any copy, panics.
func (r NodeRef) Release() {
	r.claim.release("read", r.n)
	r.n.readers--
}

func (r NodeRef) Name() string               { return r.n.name }
func (r NodeRef) Kind() NodeKind             { return r.n.kind }
func (r NodeRef) Transform() NodeTransform   { return r.n.Transform }
func (r NodeRef) Color() Color               { return r.n.Color }
func (r NodeRef) Visibility() NodeVisibility { return r.n.Visibility }
func (r NodeRef) Affine() Affine2            { return r.n.affine }
func (r NodeRef) ChildCount() int            { return len(r.n.children) }

// TextureName returns the texture of an image node, or "".
func (r NodeRef) TextureName() string {
	if r.n.image == nil {
		return ""
	}
	return r.n.image.textureName
}

// Text returns the string of a text node, or "".
func (r NodeRef) Text() string {
	if r.n.text == nil {
		return ""
	}
	return r.n.text.text
}

// SublayoutReference returns the template instanced by a sublayout node, or "".
func (r NodeRef) SublayoutReference() string {
	if r.n.sublayout == nil {
		return ""
	}
	return r.n.sublayout.reference
}

// NodeMut is an exclusive claim on a node. It exposes every mutation except
// renaming. Call Release when done.
type NodeMut struct {
	NodeRef
}

// Release drops the claim. Releasing it twice, through any copy, panics.
func (m NodeMut) Release() {
	m.claim.release("write", m.n)
	m.n.writer = false
}

func (m NodeMut) SetPosition(p Vec2)           { m.n.SetPosition(p) }
func (m NodeMut) SetSize(s Vec2)               { m.n.SetSize(s) }
func (m NodeMut) SetScale(s Vec2)              { m.n.SetScale(s) }
func (m NodeMut) SetAngle(deg float32)         { m.n.SetAngle(deg) }
func (m NodeMut) SetAnchor(a Anchor)           { m.n.SetAnchor(a) }
func (m NodeMut) SetTransform(t NodeTransform) { m.n.SetTransform(t) }
func (m NodeMut) SetColor(c Color)             { m.n.SetColor(c) }
func (m NodeMut) SetVisibility(v NodeVisibility) {
	m.n.Visibility = v
}

// Image returns the image state for mutation, or nil.
func (m NodeMut) Image() *ImageNode { return m.n.image }

// TextNode returns the text state for mutation, or nil.
func (m NodeMut) TextNode() *TextNode { return m.n.text }

// SublayoutTree returns the inner tree of a sublayout node, or nil.
func (m NodeMut) SublayoutTree() *LayoutTree {
	if m.n.sublayout == nil {
		return nil
	}
	return m.n.sublayout.tree
}
