package envy

import (
	"testing"
)

// --- Interpolation ---

func TestChannelFloatLinear(t *testing.T) {
	c := NewChannel[float32](0).Then(10, 10)
	for _, tt := range []struct {
		frame uint32
		want  float32
	}{{0, 0}, {5, 5}, {10, 10}, {15, 10}} {
		assertNear(t, "ValueForFrame", c.ValueForFrame(tt.frame), tt.want)
	}
}

func TestChannelColorEndpoints(t *testing.T) {
	c := NewChannel(Color{0, 0, 0, 255}).Then(Color{255, 255, 255, 255}, 1)
	if got := c.ValueForFrame(0); got != (Color{0, 0, 0, 255}) {
		t.Errorf("frame 0 = %v, want [0 0 0 255]", got)
	}
	if got := c.ValueForFrame(1); got != (Color{255, 255, 255, 255}) {
		t.Errorf("frame 1 = %v, want [255 255 255 255]", got)
	}
}

func TestInterpolateColorPreservesBrightness(t *testing.T) {
	black := Color{0, 0, 0, 255}
	white := Color{255, 255, 255, 255}
	mid := Interpolate(black, white, 0.5)

	// Brightness (sum of linear channels)^0.43 is blended linearly: 1 and
	// 4^0.43 average to 1.407, so the mixed channels are rescaled to sum to
	// 1.407^(1/0.43) = 2.214. That gives 0.443 linear per color channel (178
	// in sRGB) and 0.886 for alpha (242).
	if mid[0] != mid[1] || mid[1] != mid[2] {
		t.Errorf("midpoint %v not gray", mid)
	}
	if mid[0] == 127 || mid[0] == 128 {
		t.Errorf("midpoint %v is a byte average", mid)
	}
	if mid[0] < 175 || mid[0] > 181 {
		t.Errorf("midpoint r = %d, want about 178", mid[0])
	}
	if mid[3] < 239 || mid[3] > 245 {
		t.Errorf("midpoint alpha = %d, want about 242", mid[3])
	}
}

func TestInterpolateVec2(t *testing.T) {
	got := Interpolate(Vec2{0, 10}, Vec2{10, 20}, 0.25)
	assertVec(t, "Interpolate", got, Vec2{2.5, 12.5})
}

// --- Steps ---

func TestStepsEndpoints(t *testing.T) {
	for s := StepLinear; s <= StepInOutSine; s++ {
		assertNear(t, "step(0)", s.Apply(0), 0)
		assertNear(t, "step(1)", s.Apply(1), 1)
	}
	assertNear(t, "InQuad(0.5)", StepInQuad.Apply(0.5), 0.25)
}

func TestStepChainAppliesInOrder(t *testing.T) {
	c := NewChannel[float32](0)
	c.Transforms = append(c.Transforms, AnimationTransform[float32]{
		End:             100,
		Duration:        10,
		FirstStep:       StepInQuad,
		AdditionalSteps: []Step{StepInQuad},
	})
	// (0.5^2)^2 = 0.0625
	assertNear(t, "frame 5", c.ValueForFrame(5), 6.25)
}

// --- Keyframes ---

func multiChannel() *AnimationChannel[float32] {
	return NewChannel[float32](0).Then(10, 10).Then(30, 10).Then(0, 5)
}

func TestKeyframe(t *testing.T) {
	c := multiChannel()
	if k := c.Keyframe(0); k == nil || *k != 0 {
		t.Errorf("Keyframe(0) = %v, want start", k)
	}
	if k := c.Keyframe(20); k == nil || *k != 30 {
		t.Errorf("Keyframe(20) = %v, want 30", k)
	}
	if k := c.Keyframe(15); k != nil {
		t.Errorf("Keyframe(15) = %v, want nil", *k)
	}
	*c.Keyframe(10) = 12
	assertNear(t, "edited keyframe", c.ValueForFrame(10), 12)
}

func TestInsertKeyframeKeepsMotion(t *testing.T) {
	c := multiChannel()
	before := make([]float32, 30)
	for k := range before {
		before[k] = c.ValueForFrame(uint32(k))
	}
	if !c.InsertKeyframe(14) {
		t.Fatal("InsertKeyframe(14) = false")
	}
	if c.InsertKeyframe(14) {
		t.Error("InsertKeyframe on an existing keyframe succeeded")
	}
	if len(c.Transforms) != 4 {
		t.Errorf("transforms = %d, want 4", len(c.Transforms))
	}
	for k := range before {
		assertNear(t, "value after insert", c.ValueForFrame(uint32(k)), before[k])
	}
	if !c.RemoveKeyframe(14) {
		t.Fatal("RemoveKeyframe(14) = false")
	}
	for k := range before {
		assertNear(t, "value after remove", c.ValueForFrame(uint32(k)), before[k])
	}
}

func TestInsertKeyframePastEnd(t *testing.T) {
	c := multiChannel()
	if !c.InsertKeyframe(40) {
		t.Fatal("InsertKeyframe(40) = false")
	}
	if got := c.TotalDuration(); got != 40 {
		t.Errorf("TotalDuration = %d, want 40", got)
	}
	assertNear(t, "hold", c.ValueForFrame(35), 0)
}

func TestRemoveKeyframe(t *testing.T) {
	c := multiChannel()
	if c.RemoveKeyframe(0) {
		t.Error("RemoveKeyframe(0) succeeded")
	}
	if c.RemoveKeyframe(7) {
		t.Error("RemoveKeyframe between keyframes succeeded")
	}
	if !c.RemoveKeyframe(10) {
		t.Fatal("RemoveKeyframe(10) = false")
	}
	if got := c.TotalDuration(); got != 25 {
		t.Errorf("TotalDuration = %d, want 25", got)
	}
	assertNear(t, "frame 20", c.ValueForFrame(20), 30)

	if !c.RemoveKeyframe(25) {
		t.Fatal("RemoveKeyframe(last) = false")
	}
	if got := c.LastValue(); got != 30 {
		t.Errorf("LastValue = %v, want 30", got)
	}
}

func TestChannelEndpointsAfterEdits(t *testing.T) {
	c := multiChannel()
	c.InsertKeyframe(3)
	c.InsertKeyframe(50)
	c.RemoveKeyframe(20)
	c.InsertKeyframe(22)
	assertNear(t, "frame 0", c.ValueForFrame(0), c.Start)
	assertNear(t, "last frame", c.ValueForFrame(c.TotalDuration()), c.LastValue())

	empty := NewChannel[float32](4)
	assertNear(t, "empty channel end", empty.ValueForFrame(empty.TotalDuration()), 4)
}

func TestPrevNextKeyframe(t *testing.T) {
	c := multiChannel() // keyframes 0, 10, 20, 25
	tests := []struct {
		k, prev, next uint32
	}{
		{0, 0, 10},
		{5, 0, 10},
		{10, 0, 20},
		{22, 20, 25},
		{25, 20, 25},
		{40, 25, 40},
	}
	for _, tt := range tests {
		if got := c.PrevKeyframe(tt.k); got != tt.prev {
			t.Errorf("PrevKeyframe(%d) = %d, want %d", tt.k, got, tt.prev)
		}
		if got := c.NextKeyframe(tt.k); got != tt.next {
			t.Errorf("NextKeyframe(%d) = %d, want %d", tt.k, got, tt.next)
		}
	}
}

// --- Playback ---

func animatedTree() (*LayoutTree, *NodeItem) {
	n := NewEmptyNode("box", DefaultTransform(), ColorWhite)
	tree := NewLayoutTree().WithChild(n)
	tree.SetAnimations(map[string]Animation{
		"spin": {
			TotalDuration: 4,
			NodeAnimations: []NodeAnimation{
				{NodePath: "box", Angle: NewChannel[float32](0).Then(40, 4)},
				{NodePath: "missing", Angle: NewChannel[float32](0).Then(1, 100)},
			},
		},
	})
	return tree, n
}

func TestPlayAnimationAdvancesOneFramePerUpdate(t *testing.T) {
	tree, n := animatedTree()
	if tree.PlayAnimation("nope") {
		t.Error("PlayAnimation of unknown name succeeded")
	}
	if !tree.PlayAnimation("spin") {
		t.Fatal("PlayAnimation(spin) = false")
	}

	tree.UpdateAnimations()
	assertNear(t, "angle after 1 frame", n.Transform.Angle, 10)
	if !n.Changed() {
		t.Error("animated node not marked changed")
	}
	tree.UpdateAnimations()
	tree.UpdateAnimations()
	assertNear(t, "angle after 3 frames", n.Transform.Angle, 30)
	if !tree.IsPlaying("spin") {
		t.Error("animation stopped early")
	}
	tree.UpdateAnimations()
	assertNear(t, "angle after 4 frames", n.Transform.Angle, 40)
	if tree.IsPlaying("spin") {
		t.Error("finished animation still playing")
	}
}

func TestPlayAnimationRestarts(t *testing.T) {
	tree, n := animatedTree()
	tree.PlayAnimation("spin")
	tree.UpdateAnimations()
	tree.UpdateAnimations()
	tree.PlayAnimation("spin")
	tree.UpdateAnimations()
	assertNear(t, "angle after restart", n.Transform.Angle, 10)

	tree.StopAnimation("spin")
	tree.UpdateAnimations()
	assertNear(t, "angle after stop", n.Transform.Angle, 10)
}

func TestSyncToAnimationKeyframe(t *testing.T) {
	tree, n := animatedTree()
	if !tree.SyncToAnimationKeyframe("spin", 2) {
		t.Fatal("SyncToAnimationKeyframe = false")
	}
	assertNear(t, "angle at frame 2", n.Transform.Angle, 20)
	if tree.IsPlaying("spin") {
		t.Error("sync started playback")
	}
}

func TestAnimateImageUV(t *testing.T) {
	n := NewImageNode("img", DefaultTransform(), ColorWhite, ImageImpl("tex").Image)
	tree := NewLayoutTree().WithChild(n)
	tree.SetAnimations(map[string]Animation{
		"scroll": {NodeAnimations: []NodeAnimation{{
			NodePath: "img",
			UVOffset: NewChannel(Vec2{}).Then(Vec2{8, 0}, 2),
			Color:    NewChannel(ColorWhite).Then(Color{255, 255, 255, 0}, 2),
		}}},
	})
	tree.PlayAnimation("scroll")
	tree.UpdateAnimations()
	assertVec(t, "uv offset", n.Image().UVOffset(), Vec2{4, 0})
	tree.UpdateAnimations()
	if got := n.Color; got != (Color{255, 255, 255, 0}) {
		t.Errorf("color = %v, want transparent white", got)
	}
}

func TestSetAnimationsStopsRemoved(t *testing.T) {
	tree, _ := animatedTree()
	tree.PlayAnimation("spin")
	tree.SetAnimations(nil)
	if tree.IsPlaying("spin") {
		t.Error("removed animation still playing")
	}
}
