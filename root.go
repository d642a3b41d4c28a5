package envy

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Errors returned when installing templates into a LayoutRoot.
var (
	ErrSublayoutCycle   = errors.New("sublayout cycle")
	ErrMissingSublayout = errors.New("missing sublayout template")
	ErrReservedName     = errors.New("reserved template name")
	ErrTemplateInUse    = errors.New("template still referenced")
	ErrInvalidNodeName  = errors.New("invalid or duplicate node name")
)

// LayoutRoot owns a primary template, a registry of named templates that
// sublayout nodes instance, and the live tree built from the primary
// template. Every template in the registry is validated on install: each
// sublayout reference resolves and the reference graph has no cycle.
type LayoutRoot struct {
	template  LayoutTemplate
	templates map[string]*LayoutTemplate
	tree      *LayoutTree

	debug bool
	stats debugStats
}

// NewLayoutRoot validates the templates and builds the live tree. The tree
// holds no backend handles until Setup.
func NewLayoutRoot(template LayoutTemplate, templates map[string]LayoutTemplate) (*LayoutRoot, error) {
	r := &LayoutRoot{
		template:  template,
		templates: make(map[string]*LayoutTemplate, len(templates)),
	}
	for name, t := range templates {
		r.templates[name] = &t
	}
	if err := validateTemplates(&r.template, r.templates); err != nil {
		return nil, err
	}
	r.tree = treeFromTemplate(&r.template, r, 0)
	return r, nil
}

// MustNewLayoutRoot is like NewLayoutRoot but panics on invalid templates.
func MustNewLayoutRoot(template LayoutTemplate, templates map[string]LayoutTemplate) *LayoutRoot {
	r, err := NewLayoutRoot(template, templates)
	if err != nil {
		panic(err)
	}
	return r
}

type visitState uint8

const (
	unvisited visitState = iota
	onStack
	visited
)

// checkNodeNames returns ErrInvalidNodeName for the first node in group or
// below it whose name is not a valid node name or repeats a sibling's.
func checkNodeNames(group []NodeTemplate, parent string) error {
	seen := make(map[string]bool, len(group))
	for i := range group {
		name := group[i].Name
		if !ValidNodeName(name) {
			return fmt.Errorf("%w: %q under %q", ErrInvalidNodeName, name, "/"+parent)
		}
		p := JoinPath(parent, name)
		if seen[name] {
			return fmt.Errorf("%w: %q appears twice", ErrInvalidNodeName, p)
		}
		seen[name] = true
		if err := checkNodeNames(group[i].Children, p); err != nil {
			return err
		}
	}
	return nil
}

// validateTemplates checks that every template has unique, valid sibling
// names, that every sublayout reference reachable from the primary template
// or any registered template resolves, and that following references never
// revisits a template on the current path.
func validateTemplates(primary *LayoutTemplate, templates map[string]*LayoutTemplate) error {
	if _, ok := templates[""]; ok {
		return fmt.Errorf("envy: %w: %q", ErrReservedName, "")
	}
	if err := checkNodeNames(primary.RootNodes, ""); err != nil {
		return fmt.Errorf("envy: root template: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(templates)) {
		if err := checkNodeNames(templates[name].RootNodes, ""); err != nil {
			return fmt.Errorf("envy: template %q: %w", name, err)
		}
	}
	state := make(map[string]visitState, len(templates))
	var visit func(name, from string, stack []string) error
	visit = func(name, from string, stack []string) error {
		switch state[name] {
		case onStack:
			i := slices.Index(stack, name)
			cycle := append(slices.Clone(stack[i:]), name)
			return fmt.Errorf("envy: %w: %s", ErrSublayoutCycle, strings.Join(cycle, " -> "))
		case visited:
			return nil
		}
		tmpl, ok := templates[name]
		if !ok {
			return fmt.Errorf("envy: %w: %q referenced by %s", ErrMissingSublayout, name, from)
		}
		state[name] = onStack
		stack = append(stack, name)
		for _, ref := range tmpl.SublayoutReferences() {
			if err := visit(ref, fmt.Sprintf("template %q", name), stack); err != nil {
				return err
			}
		}
		state[name] = visited
		return nil
	}

	for _, ref := range primary.SublayoutReferences() {
		if err := visit(ref, "the root template", nil); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(templates)) {
		if err := visit(name, "", nil); err != nil {
			return err
		}
	}
	return nil
}

// Validate rechecks the installed templates. Call it after editing templates
// in place through Template or RootTemplate.
func (r *LayoutRoot) Validate() error {
	return validateTemplates(&r.template, r.templates)
}

// Tree returns the live tree.
func (r *LayoutRoot) Tree() *LayoutTree { return r.tree }

// RootTemplate returns the primary template for in-place editing. Follow
// edits with one of the Sync methods.
func (r *LayoutRoot) RootTemplate() *LayoutTemplate { return &r.template }

// SetRootTemplate replaces the primary template after validating its
// references. The live tree is not rebuilt until SyncRootTemplate.
func (r *LayoutRoot) SetRootTemplate(t LayoutTemplate) error {
	if err := validateTemplates(&t, r.templates); err != nil {
		return err
	}
	r.template = t
	return nil
}

// Template returns the named template for in-place editing, or nil.
func (r *LayoutRoot) Template(name string) *LayoutTemplate {
	return r.templates[name]
}

// TemplateNames returns the registered template names, sorted.
func (r *LayoutRoot) TemplateNames() []string {
	return slices.Sorted(maps.Keys(r.templates))
}

// InsertTemplate registers t under name, replacing any template of that name.
// The registry is left unchanged when validation fails. Live sublayouts are
// not rebuilt until SyncTemplate.
func (r *LayoutRoot) InsertTemplate(name string, t LayoutTemplate) error {
	if name == "" {
		return fmt.Errorf("envy: %w: %q", ErrReservedName, name)
	}
	candidate := maps.Clone(r.templates)
	candidate[name] = &t
	if err := validateTemplates(&r.template, candidate); err != nil {
		return err
	}
	r.templates = candidate
	return nil
}

// RemoveTemplate unregisters name and returns it. It fails while the primary
// template or another registered template still references name.
func (r *LayoutRoot) RemoveTemplate(name string) (LayoutTemplate, error) {
	t, ok := r.templates[name]
	if !ok {
		return LayoutTemplate{}, fmt.Errorf("envy: remove template: %w: %q", ErrMissingSublayout, name)
	}
	if slices.Contains(r.template.SublayoutReferences(), name) {
		return LayoutTemplate{}, fmt.Errorf("envy: remove template %q: %w by the root template", name, ErrTemplateInUse)
	}
	for _, other := range r.TemplateNames() {
		if other != name && slices.Contains(r.templates[other].SublayoutReferences(), name) {
			return LayoutTemplate{}, fmt.Errorf("envy: remove template %q: %w by %q", name, ErrTemplateInUse, other)
		}
	}
	delete(r.templates, name)
	return *t, nil
}

// RenameTemplate renames a registered template. Live sublayout nodes and
// every template referencing oldName are rewritten to newName; inner trees
// are kept as they are. Returns false when oldName is missing, newName is
// taken, or newName is "".
func (r *LayoutRoot) RenameTemplate(oldName, newName string) bool {
	if newName == "" || oldName == newName {
		return false
	}
	t, ok := r.templates[oldName]
	if !ok {
		return false
	}
	if _, taken := r.templates[newName]; taken {
		return false
	}

	visitLiveSublayouts(r.tree, func(n *NodeItem) bool {
		if n.sublayout.reference == oldName {
			n.sublayout.SetReferenceNoUpdate(newName)
		}
		return true
	})

	r.template.renameSublayoutReferences(oldName, newName)
	for _, other := range r.templates {
		other.renameSublayoutReferences(oldName, newName)
	}

	delete(r.templates, oldName)
	r.templates[newName] = t
	return true
}

// visitLiveSublayouts calls fn for every sublayout node of t, entering the
// inner tree of each node for which fn returns true.
func visitLiveSublayouts(t *LayoutTree, fn func(n *NodeItem) bool) {
	t.forEachSublayout(func(n *NodeItem) {
		if fn(n) {
			visitLiveSublayouts(n.sublayout.tree, fn)
		}
	})
}

// --- Sync ---

// Setup acquires backend handles for the live tree.
func (r *LayoutRoot) Setup(b Backend) {
	if r.debug {
		debugCheckChildCount(r.tree)
	}
	r.tree.Setup(b)
}

// Release returns every backend handle held by the live tree.
func (r *LayoutRoot) Release(b Backend) {
	r.tree.Release(b)
}

// SyncRootTemplate rebuilds the live tree from the primary template.
func (r *LayoutRoot) SyncRootTemplate(b Backend) {
	r.tree.syncToTemplate(b, &r.template, r, 0)
}

// SyncRootTemplateByPath rebuilds only the subtree at p. Returns false when p
// exists in neither the template nor the live tree.
func (r *LayoutRoot) SyncRootTemplateByPath(b Backend, p string) bool {
	return r.tree.syncPath(b, &r.template, r, 0, p)
}

// SyncTemplate rebuilds the inner tree of every live sublayout referencing
// name, at any nesting level. When name is no longer registered the inner
// trees are emptied.
func (r *LayoutRoot) SyncTemplate(b Backend, name string) {
	r.syncSublayouts(name, func(n *NodeItem, tmpl *LayoutTemplate, depth int) {
		n.sublayout.tree.syncToTemplate(b, tmpl, r, depth)
	}, b)
}

// SyncTemplateByPath rebuilds the subtree at p inside the inner tree of every
// live sublayout referencing name.
func (r *LayoutRoot) SyncTemplateByPath(b Backend, name, p string) {
	r.syncSublayouts(name, func(n *NodeItem, tmpl *LayoutTemplate, depth int) {
		n.sublayout.tree.syncPath(b, tmpl, r, depth, p)
	}, b)
}

func (r *LayoutRoot) syncSublayouts(name string, sync func(n *NodeItem, tmpl *LayoutTemplate, depth int), b Backend) {
	tmpl := r.templates[name]
	var visit func(t *LayoutTree, depth int)
	visit = func(t *LayoutTree, depth int) {
		t.forEachSublayout(func(n *NodeItem) {
			if n.sublayout.reference != name {
				visit(n.sublayout.tree, depth+1)
				return
			}
			if tmpl == nil {
				logger.Warn("envy: sublayout references unknown template", "node", n.name, "template", name)
				n.sublayout.tree.Release(b)
				n.sublayout.tree = NewLayoutTree()
				return
			}
			sync(n, tmpl, depth+1)
			n.wasChanged = true
		})
	}
	visit(r.tree, 0)
}

// --- Pipeline ---

// SetDebugMode enables per-frame phase timing written to stderr after each
// RenderRoot.
func (r *LayoutRoot) SetDebugMode(on bool) {
	r.debug = on
}

// UpdateAnimations advances the live tree's animations by one frame.
func (r *LayoutRoot) UpdateAnimations() {
	r.timed(&r.stats.animationTime, r.tree.UpdateAnimations)
}

// Update runs the live tree's update callbacks.
func (r *LayoutRoot) Update() {
	r.timed(&r.stats.updateTime, r.tree.Update)
}

// Propagate recomputes absolute affines of the live tree.
func (r *LayoutRoot) Propagate() {
	r.timed(&r.stats.propagateTime, r.tree.Propagate)
}

// Prepare writes the uniforms of dirty nodes through b.
func (r *LayoutRoot) Prepare(b Backend) {
	r.timed(&r.stats.prepareTime, func() { r.tree.Prepare(b) })
}

// PlayAnimation starts a root-template animation on the live tree.
func (r *LayoutRoot) PlayAnimation(name string) bool {
	return r.tree.PlayAnimation(name)
}
