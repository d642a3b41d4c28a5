package envy

import (
	"slices"
	"testing"
)

func childNames(group []NodeTemplate) []string {
	names := make([]string, len(group))
	for i, n := range group {
		names[i] = n.Name
	}
	return names
}

func sampleTemplate() LayoutTemplate {
	t := NewLayoutTemplate().
		WithChild(emptyNode("panel").
			WithChild(imageNode("icon", "star", Vec2{}, Vec2{32, 32})).
			WithChild(emptyNode("row").
				WithChild(emptyNode("a")).
				WithChild(emptyNode("b")))).
		WithChild(emptyNode("footer"))
	t.AddAnimation("spin", Animation{
		TotalDuration: 10,
		NodeAnimations: []NodeAnimation{
			{NodePath: "panel/row/a", Angle: NewChannel[float32](0).Then(90, 10)},
			{NodePath: "panel/icon", Angle: NewChannel[float32](0).Then(45, 5)},
		},
	})
	return t
}

func animationPaths(t *LayoutTemplate, name string) []string {
	a := t.Animation(name)
	if a == nil {
		return nil
	}
	var paths []string
	for _, na := range a.NodeAnimations {
		paths = append(paths, na.NodePath)
	}
	return paths
}

// --- Paths ---

func TestPathComponents(t *testing.T) {
	got := PathComponents("/panel//row/a/")
	want := []string{"panel", "row", "a"}
	if !slices.Equal(got, want) {
		t.Errorf("PathComponents = %v, want %v", got, want)
	}
	if got := PathComponents("/"); len(got) != 0 {
		t.Errorf("PathComponents(/) = %v, want empty", got)
	}
}

func TestSplitAndJoinPath(t *testing.T) {
	parent, name := SplitPath("panel/row/a")
	if parent != "panel/row" || name != "a" {
		t.Errorf("SplitPath = (%q, %q), want (panel/row, a)", parent, name)
	}
	parent, name = SplitPath("footer")
	if parent != "" || name != "footer" {
		t.Errorf("SplitPath(footer) = (%q, %q), want (\"\", footer)", parent, name)
	}
	if got := JoinPath("/panel/", "row"); got != "panel/row" {
		t.Errorf("JoinPath = %q, want panel/row", got)
	}
	if got := JoinPath("", "a"); got != "a" {
		t.Errorf("JoinPath root = %q, want a", got)
	}
}

func TestNodeByPath(t *testing.T) {
	tmpl := sampleTemplate()
	if n := tmpl.NodeByPath("panel/row/b"); n == nil || n.Name != "b" {
		t.Errorf("NodeByPath(panel/row/b) = %v, want node b", n)
	}
	if n := tmpl.NodeByPath("panel/missing"); n != nil {
		t.Errorf("NodeByPath(missing) = %v, want nil", n)
	}
	if n := tmpl.NodeByPath(""); n != nil {
		t.Errorf("NodeByPath(\"\") = %v, want nil", n)
	}

	tmpl.NodeByPath("footer").Transform.Angle = 30
	if got := tmpl.RootNodes[1].Transform.Angle; got != 30 {
		t.Errorf("edit through NodeByPath: angle = %v, want 30", got)
	}
}

// --- Child operations ---

func TestAddChildRejectsDuplicate(t *testing.T) {
	n := emptyNode("parent")
	if !n.AddChild(emptyNode("a")) {
		t.Fatal("first AddChild failed")
	}
	if n.AddChild(emptyNode("a")) {
		t.Error("AddChild accepted duplicate name")
	}
	if len(n.Children) != 1 {
		t.Errorf("children = %d, want 1", len(n.Children))
	}
}

func TestWithChildDuplicatePanics(t *testing.T) {
	assertPanics(t, "WithChild duplicate", func() {
		emptyNode("p").WithChild(emptyNode("a")).WithChild(emptyNode("a"))
	})
}

func TestInsertChildPositions(t *testing.T) {
	n := emptyNode("p").WithChild(emptyNode("b")).WithChild(emptyNode("d"))

	if !n.InsertChild(emptyNode("a"), MoveToFirst()) {
		t.Fatal("insert first failed")
	}
	if !n.InsertChild(emptyNode("c"), MoveBefore("d")) {
		t.Fatal("insert before failed")
	}
	if !n.InsertChild(emptyNode("e"), MoveAfter("d")) {
		t.Fatal("insert after failed")
	}
	want := []string{"a", "b", "c", "d", "e"}
	if got := childNames(n.Children); !slices.Equal(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}

	if n.InsertChild(emptyNode("x"), MoveAfter("missing")) {
		t.Error("insert after missing sibling succeeded")
	}
	if n.InsertChild(emptyNode("a"), MoveToLast()) {
		t.Error("insert of duplicate name succeeded")
	}
}

func TestWalkIsPreOrder(t *testing.T) {
	tmpl := sampleTemplate()
	var paths []string
	tmpl.WalkTree(func(p string, _ *NodeTemplate) { paths = append(paths, p) })
	want := []string{"panel", "panel/icon", "panel/row", "panel/row/a", "panel/row/b", "footer"}
	if !slices.Equal(paths, want) {
		t.Errorf("WalkTree = %v, want %v", paths, want)
	}

	var names []string
	tmpl.RootNodes[0].Walk(func(n *NodeTemplate) { names = append(names, n.Name) })
	if want := []string{"panel", "icon", "row", "a", "b"}; !slices.Equal(names, want) {
		t.Errorf("Walk = %v, want %v", names, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tmpl := sampleTemplate()
	c := tmpl.Clone()
	c.NodeByPath("panel/row/a").Transform.Angle = 90
	c.Animation("spin").NodeAnimations[0].Angle.Start = 7

	if got := tmpl.NodeByPath("panel/row/a").Transform.Angle; got != 0 {
		t.Errorf("original angle = %v after editing clone, want 0", got)
	}
	if got := tmpl.Animation("spin").NodeAnimations[0].Angle.Start; got != 0 {
		t.Errorf("original channel start = %v after editing clone, want 0", got)
	}
}

// --- Rename / remove / move ---

func TestRenameNodeRewritesAnimationPaths(t *testing.T) {
	tmpl := sampleTemplate()
	if !tmpl.RenameNode("panel/row", "line") {
		t.Fatal("RenameNode failed")
	}
	if tmpl.NodeByPath("panel/line/a") == nil {
		t.Error("renamed subtree not reachable at panel/line/a")
	}
	want := []string{"panel/line/a", "panel/icon"}
	if got := animationPaths(&tmpl, "spin"); !slices.Equal(got, want) {
		t.Errorf("animation paths = %v, want %v", got, want)
	}
}

func TestRenameNodeCollision(t *testing.T) {
	tmpl := sampleTemplate()
	if tmpl.RenameNode("panel/row/a", "b") {
		t.Error("rename onto sibling name succeeded")
	}
	if tmpl.RenameNode("panel/missing", "x") {
		t.Error("rename of missing node succeeded")
	}
	if got := animationPaths(&tmpl, "spin")[0]; got != "panel/row/a" {
		t.Errorf("failed rename changed animation path to %q", got)
	}
}

func TestRemoveNodeDropsAnimations(t *testing.T) {
	tmpl := sampleTemplate()
	removed, ok := tmpl.RemoveNode("panel/row")
	if !ok || removed.Name != "row" || len(removed.Children) != 2 {
		t.Fatalf("RemoveNode = (%v, %v), want row with two children", removed.Name, ok)
	}
	if tmpl.NodeByPath("panel/row") != nil {
		t.Error("removed node still reachable")
	}
	want := []string{"panel/icon"}
	if got := animationPaths(&tmpl, "spin"); !slices.Equal(got, want) {
		t.Errorf("animation paths = %v, want %v", got, want)
	}
	if _, ok := tmpl.RemoveNode("panel/row"); ok {
		t.Error("second RemoveNode succeeded")
	}
}

func TestMoveNodeForwardBackward(t *testing.T) {
	tmpl := sampleTemplate()
	if !tmpl.MoveNodeForwardByPath("panel/row/a") {
		t.Fatal("forward failed")
	}
	if got := childNames(tmpl.NodeByPath("panel/row").Children); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("after forward = %v, want [b a]", got)
	}
	if !tmpl.MoveNodeForwardByPath("panel/row/a") {
		t.Error("forward at the edge should report the node exists")
	}
	if !tmpl.MoveNodeBackwardByPath("panel/row/a") {
		t.Fatal("backward failed")
	}
	if got := childNames(tmpl.NodeByPath("panel/row").Children); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("after backward = %v, want [a b]", got)
	}
	if tmpl.MoveNodeBackwardByPath("panel/row/zzz") {
		t.Error("backward of missing node succeeded")
	}
}

func TestMoveNodeAcrossParents(t *testing.T) {
	tmpl := sampleTemplate()
	if !tmpl.MoveNode("panel/row/a", "footer/first", MoveToFirst()) {
		t.Fatal("MoveNode failed")
	}
	if tmpl.NodeByPath("panel/row/a") != nil {
		t.Error("source still present")
	}
	if tmpl.NodeByPath("footer/first") == nil {
		t.Error("destination missing")
	}
	want := []string{"footer/first", "panel/icon"}
	if got := animationPaths(&tmpl, "spin"); !slices.Equal(got, want) {
		t.Errorf("animation paths = %v, want %v", got, want)
	}
}

func TestMoveNodeWithinGroup(t *testing.T) {
	tmpl := sampleTemplate()
	if !tmpl.MoveNode("panel/row/a", "panel/row/a", MoveAfter("b")) {
		t.Fatal("reorder within group failed")
	}
	if got := childNames(tmpl.NodeByPath("panel/row").Children); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("children = %v, want [b a]", got)
	}
	if got := animationPaths(&tmpl, "spin")[0]; got != "panel/row/a" {
		t.Errorf("animation path = %q, want unchanged", got)
	}
}

func TestMoveNodeFailures(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		pos      MoveNodePosition
	}{
		{"missing source", "panel/nope", "footer/x", MoveToLast()},
		{"missing destination", "panel/row/a", "nowhere/x", MoveToLast()},
		{"name collision", "panel/row/a", "panel/row/b", MoveToLast()},
		{"into own subtree", "panel", "panel/row/panel", MoveToLast()},
		{"missing sibling", "panel/row/a", "footer/a", MoveBefore("ghost")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := sampleTemplate()
			before := templatePathSet(&tmpl)
			if tmpl.MoveNode(tt.from, tt.to, tt.pos) {
				t.Fatal("MoveNode succeeded, want false")
			}
			if !sameSet(before, templatePathSet(&tmpl)) {
				t.Error("failed MoveNode changed the template")
			}
		})
	}
}

func TestSiblingNamesStayUnique(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.AddNode("panel", emptyNode("row"), MoveToLast())
	tmpl.RenameNode("panel/icon", "row")
	tmpl.MoveNode("panel/row/a", "panel/icon", MoveToLast())
	tmpl.WalkTree(func(p string, n *NodeTemplate) {
		seen := make(map[string]bool)
		for _, c := range n.Children {
			if seen[c.Name] {
				t.Errorf("duplicate child %q under %s", c.Name, p)
			}
			seen[c.Name] = true
		}
	})
}

// --- Animations and references ---

func TestAddAnimationReplaces(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.AddAnimation("spin", Animation{TotalDuration: 3})
	if len(tmpl.Animations) != 1 {
		t.Fatalf("animations = %d, want 1", len(tmpl.Animations))
	}
	if got := tmpl.Animation("spin").TotalDuration; got != 3 {
		t.Errorf("TotalDuration = %d, want 3", got)
	}
	if !tmpl.RemoveAnimation("spin") || tmpl.Animation("spin") != nil {
		t.Error("RemoveAnimation did not remove")
	}
	if tmpl.RemoveAnimation("spin") {
		t.Error("RemoveAnimation of missing name succeeded")
	}
}

func TestSublayoutReferences(t *testing.T) {
	tmpl := NewLayoutTemplate().
		WithChild(NewNodeTemplate("a", SublayoutImpl("button")).
			WithChild(NewNodeTemplate("b", SublayoutImpl("icon")))).
		WithChild(NewNodeTemplate("c", SublayoutImpl("button")))
	want := []string{"button", "icon"}
	if got := tmpl.SublayoutReferences(); !slices.Equal(got, want) {
		t.Errorf("SublayoutReferences = %v, want %v", got, want)
	}
}

func TestUnaddressableNamesRejected(t *testing.T) {
	tmpl := NewLayoutTemplate().WithChild(emptyNode("panel"))
	for _, name := range []string{"", "p/q", "/"} {
		if tmpl.AddChild(emptyNode(name)) {
			t.Errorf("LayoutTemplate.AddChild(%q) = true", name)
		}
		if tmpl.AddNode("panel", emptyNode(name), MoveToFirst()) {
			t.Errorf("AddNode(panel, %q) = true", name)
		}
		panel := tmpl.NodeByPath("panel")
		if panel.AddChild(emptyNode(name)) {
			t.Errorf("NodeTemplate.AddChild(%q) = true", name)
		}
		if panel.InsertChild(emptyNode(name), MoveToLast()) {
			t.Errorf("InsertChild(%q) = true", name)
		}
		if tmpl.RenameNode("panel", name) {
			t.Errorf("RenameNode(panel, %q) = true", name)
		}
	}
	if n := len(tmpl.NodeByPath("panel").Children); n != 0 {
		t.Errorf("panel has %d children, want 0", n)
	}
	assertPanics(t, "WithChild(a/b)", func() { emptyNode("x").WithChild(emptyNode("a/b")) })
}
