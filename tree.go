package envy

import (
	"maps"
	"slices"

	"github.com/jinzhu/copier"
)

// LayoutTree is a live instance of a LayoutTemplate: ordered root nodes, the
// animations they can play and the clocks of the animations playing.
type LayoutTree struct {
	roots      []*NodeItem
	animations map[string]Animation
	playing    map[string]float32
}

// NewLayoutTree returns an empty tree.
func NewLayoutTree() *LayoutTree {
	return &LayoutTree{
		animations: make(map[string]Animation),
		playing:    make(map[string]float32),
	}
}

// NewLayoutTreeFromTemplate instantiates tmpl. Sublayouts resolve against
// root, which may be nil for a tree without sublayouts. The tree holds no
// backend handles until Setup.
func NewLayoutTreeFromTemplate(tmpl *LayoutTemplate, root *LayoutRoot) *LayoutTree {
	return treeFromTemplate(tmpl, root, 0)
}

func treeFromTemplate(tmpl *LayoutTemplate, root *LayoutRoot, depth int) *LayoutTree {
	t := NewLayoutTree()
	t.roots = make([]*NodeItem, 0, len(tmpl.RootNodes))
	for i := range tmpl.RootNodes {
		t.roots = append(t.roots, nodeFromTemplate(&tmpl.RootNodes[i], root, depth))
	}
	for _, na := range tmpl.Animations {
		t.animations[na.Name] = cloneAnimation(&na.Animation)
	}
	return t
}

func cloneAnimation(a *Animation) Animation {
	var out Animation
	if err := copier.CopyWithOption(&out, a, copier.Option{DeepCopy: true}); err != nil {
		panic("envy: clone animation: " + err.Error())
	}
	return out
}

// Roots returns the top-level nodes. The slice must not be modified.
func (t *LayoutTree) Roots() []*NodeItem { return t.roots }

// AddChild appends a top-level node. Returns false if the name is invalid
// or taken.
func (t *LayoutTree) AddChild(n *NodeItem) bool {
	if !ValidNodeName(n.name) || indexOfNode(t.roots, n.name) >= 0 {
		return false
	}
	t.roots = append(t.roots, n)
	return true
}

// WithChild appends a top-level node and returns the tree. Panics on an
// invalid or duplicate name.
func (t *LayoutTree) WithChild(n *NodeItem) *LayoutTree {
	if !t.AddChild(n) {
		panic("envy: invalid or duplicate root node name " + n.name)
	}
	return t
}

// NodeByPath resolves a slash separated path of sibling names. It does not
// descend into sublayouts. Returns nil when any component is missing.
func (t *LayoutTree) NodeByPath(p string) *NodeItem {
	parts := PathComponents(p)
	if len(parts) == 0 {
		return nil
	}
	group := t.roots
	var n *NodeItem
	for _, name := range parts {
		i := indexOfNode(group, name)
		if i < 0 {
			return nil
		}
		n = group[i]
		group = n.children
	}
	return n
}

// group returns the child slice addressed by a parent path, the way
// LayoutTemplate.group does for templates.
func (t *LayoutTree) group(parent string) *[]*NodeItem {
	if len(PathComponents(parent)) == 0 {
		return &t.roots
	}
	n := t.NodeByPath(parent)
	if n == nil {
		return nil
	}
	return &n.children
}

// RenameNode renames the node at p. Returns false when p is missing or the
// new name is invalid or taken among its siblings.
func (t *LayoutTree) RenameNode(p, newName string) bool {
	parent, name := SplitPath(p)
	g := t.group(parent)
	if g == nil {
		return false
	}
	return renameNode(*g, name, newName)
}

// RemoveNode detaches the node at p, releasing its backend handles.
func (t *LayoutTree) RemoveNode(b Backend, p string) bool {
	parent, name := SplitPath(p)
	g := t.group(parent)
	if g == nil {
		return false
	}
	i := indexOfNode(*g, name)
	if i < 0 {
		return false
	}
	(*g)[i].release(b)
	*g = slices.Delete(*g, i, i+1)
	return true
}

// Walk calls fn for every node in depth-first pre-order. Sublayout trees are
// not entered.
func (t *LayoutTree) Walk(fn func(*NodeItem)) {
	var walk func(n *NodeItem)
	walk = func(n *NodeItem) {
		fn(n)
		for _, c := range n.children {
			walk(c)
		}
	}
	for _, n := range t.roots {
		walk(n)
	}
}

// forEachSublayout calls fn for every sublayout node of this tree, without
// entering their inner trees.
func (t *LayoutTree) forEachSublayout(fn func(*NodeItem)) {
	t.Walk(func(n *NodeItem) {
		if n.sublayout != nil {
			fn(n)
		}
	})
}

// NodeCount returns the number of nodes, excluding sublayout contents.
func (t *LayoutTree) NodeCount() int {
	count := 0
	t.Walk(func(*NodeItem) { count++ })
	return count
}

// --- Lifecycle ---

// Setup acquires backend handles for every node.
func (t *LayoutTree) Setup(b Backend) {
	for _, n := range t.roots {
		n.setup(b)
	}
}

// Release returns every backend handle the tree holds. The tree can be set up
// again afterwards.
func (t *LayoutTree) Release(b Backend) {
	for _, n := range t.roots {
		n.release(b)
	}
}

// SyncToTemplate releases the tree, rebuilds it from tmpl and sets it up
// again. Playing animations are stopped.
func (t *LayoutTree) SyncToTemplate(b Backend, tmpl *LayoutTemplate, root *LayoutRoot) {
	t.syncToTemplate(b, tmpl, root, 0)
}

func (t *LayoutTree) syncToTemplate(b Backend, tmpl *LayoutTemplate, root *LayoutRoot, depth int) {
	t.Release(b)
	fresh := treeFromTemplate(tmpl, root, depth)
	t.roots = fresh.roots
	t.animations = fresh.animations
	clear(t.playing)
	t.Setup(b)
}

// syncPath rebuilds the subtree at p from tmpl. A node missing from the
// template is removed; a node missing from the tree is inserted at the
// template's position. Returns false when neither side has the node.
func (t *LayoutTree) syncPath(b Backend, tmpl *LayoutTemplate, root *LayoutRoot, depth int, p string) bool {
	parent, name := SplitPath(p)
	if name == "" {
		t.syncToTemplate(b, tmpl, root, depth)
		return true
	}
	tg := tmpl.group(parent)
	lg := t.group(parent)
	if tg == nil || lg == nil {
		return false
	}
	li := indexOfNode(*lg, name)
	ti := indexOfTemplate(*tg, name)
	if li < 0 && ti < 0 {
		return false
	}
	at := ti
	if li >= 0 {
		(*lg)[li].release(b)
		*lg = slices.Delete(*lg, li, li+1)
		at = li
	}
	if ti >= 0 {
		n := nodeFromTemplate(&(*tg)[ti], root, depth)
		n.setup(b)
		*lg = slices.Insert(*lg, min(at, len(*lg)), n)
	}
	return true
}

// --- Pipeline ---

// Update runs every node's update callbacks in depth-first pre-order, then
// the callbacks of sublayout trees in the same order. Callbacks added while
// running are kept for the next frame.
func (t *LayoutTree) Update() {
	updateGroup(t.roots, nil)
}

func updateGroup(group []*NodeItem, parent *Accessor) {
	for i, n := range group {
		a := newAccessor(group, i, parent)
		if len(n.callbacks) > 0 {
			running := n.callbacks
			n.callbacks = nil
			for _, cb := range running {
				cb(a)
			}
			n.callbacks = append(running, n.callbacks...)
		}
		if n.sublayout != nil {
			n.sublayout.tree.Update()
		}
		updateGroup(n.children, a)
	}
}

// Propagate recomputes absolute affines against the design canvas frame.
func (t *LayoutTree) Propagate() {
	t.PropagateWithRoot(rootTransform, IdentityAffine, false)
}

// PropagateWithRoot recomputes absolute affines with the given node standing
// in as the parent of every root node. Sublayouts pass their own transform,
// affine and change bit here.
func (t *LayoutTree) PropagateWithRoot(transform NodeTransform, affine Affine2, changed bool) {
	frame := parentFrame{transform: &transform, affine: affine, changed: changed}
	for _, n := range t.roots {
		n.propagate(frame)
	}
}

// Prepare writes the uniforms of every dirty node through b. Nodes whose
// handles are still missing stay dirty and are retried next time.
func (t *LayoutTree) Prepare(b Backend) {
	for _, n := range t.roots {
		n.prepare(b)
	}
}

// --- Animations ---

// Animations returns the animation table. Edits take effect on the next
// UpdateAnimations.
func (t *LayoutTree) Animations() map[string]Animation { return t.animations }

// SetAnimations replaces the animation table and stops playback of names
// that no longer exist.
func (t *LayoutTree) SetAnimations(anims map[string]Animation) {
	if anims == nil {
		anims = make(map[string]Animation)
	}
	t.animations = anims
	for name := range t.playing {
		if _, ok := anims[name]; !ok {
			delete(t.playing, name)
		}
	}
}

// PlayAnimation starts name from frame 0, restarting it if already playing.
// Returns false when the tree has no such animation.
func (t *LayoutTree) PlayAnimation(name string) bool {
	if _, ok := t.animations[name]; !ok {
		return false
	}
	t.playing[name] = 0
	return true
}

// StopAnimation stops name, leaving nodes at their current values.
func (t *LayoutTree) StopAnimation(name string) {
	delete(t.playing, name)
}

// IsPlaying reports whether name is playing.
func (t *LayoutTree) IsPlaying(name string) bool {
	_, ok := t.playing[name]
	return ok
}

// PlayingAnimations returns the names of the playing animations, sorted.
func (t *LayoutTree) PlayingAnimations() []string {
	return slices.Sorted(maps.Keys(t.playing))
}

// UpdateAnimations advances every playing animation by one frame and writes
// the interpolated values into the nodes. Finished animations stop. Playing
// animations run in name order so overlapping channels resolve the same way
// every frame.
func (t *LayoutTree) UpdateAnimations() {
	for _, name := range t.PlayingAnimations() {
		anim, ok := t.animations[name]
		if !ok {
			delete(t.playing, name)
			continue
		}
		progress := t.playing[name] + 1
		t.playing[name] = progress
		if anim.animate(progress, t) {
			delete(t.playing, name)
		}
	}
	t.forEachSublayout(func(n *NodeItem) {
		n.sublayout.tree.UpdateAnimations()
	})
}

// SyncToAnimationKeyframe applies name at frame without playing it. Returns
// false when the tree has no such animation.
func (t *LayoutTree) SyncToAnimationKeyframe(name string, frame uint32) bool {
	anim, ok := t.animations[name]
	if !ok {
		return false
	}
	anim.animate(float32(frame), t)
	return true
}
