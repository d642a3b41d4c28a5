package envy

import (
	"github.com/chewxy/math32"
	"github.com/tanema/gween/ease"
)

// Step is an easing applied to the normalized progress of an animation
// transform. Only StepLinear can be stored in an asset; the rest are
// available to in-memory templates.
type Step uint8

const (
	StepLinear Step = iota
	StepInQuad
	StepOutQuad
	StepInOutQuad
	StepInCubic
	StepOutCubic
	StepInOutCubic
	StepInSine
	StepOutSine
	StepInOutSine
)

var stepFuncs = [...]ease.TweenFunc{
	StepLinear:     ease.Linear,
	StepInQuad:     ease.InQuad,
	StepOutQuad:    ease.OutQuad,
	StepInOutQuad:  ease.InOutQuad,
	StepInCubic:    ease.InCubic,
	StepOutCubic:   ease.OutCubic,
	StepInOutCubic: ease.InOutCubic,
	StepInSine:     ease.InSine,
	StepOutSine:    ease.OutSine,
	StepInOutSine:  ease.InOutSine,
}

// Apply maps progress in [0, 1] through the easing.
func (s Step) Apply(progress float32) float32 {
	if int(s) >= len(stepFuncs) {
		return progress
	}
	return stepFuncs[s](progress, 0, 1, 1)
}

// Interpolatable is the set of values an animation channel can drive.
type Interpolatable interface {
	float32 | Vec2 | Color
}

// Interpolate blends a toward b by t. Scalars and vectors mix linearly; colors
// use a brightness-preserving blend in linear light.
func Interpolate[T Interpolatable](a, b T, t float32) T {
	switch av := any(a).(type) {
	case float32:
		bv := any(b).(float32)
		return any(av + (bv-av)*t).(T)
	case Vec2:
		bv := any(b).(Vec2)
		return any(Vec2{av.X + (bv.X-av.X)*t, av.Y + (bv.Y-av.Y)*t}).(T)
	case Color:
		return any(interpolateColor(av, any(b).(Color), t)).(T)
	}
	panic("envy: unreachable interpolation type")
}

func srgbToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

func linearToSrgb(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math32.Pow(c, 1/2.4) - 0.055
}

const brightnessGamma = 0.43

// interpolateColor mixes in linear light, then rescales the result so its
// brightness follows a perceptual (gamma 0.43) interpolation of the endpoints'
// brightness before encoding back to sRGB.
func interpolateColor(a, b Color, t float32) Color {
	var la, lb [4]float32
	var sumA, sumB float32
	for i := 0; i < 4; i++ {
		la[i] = srgbToLinear(float32(a[i]) / 255)
		lb[i] = srgbToLinear(float32(b[i]) / 255)
		sumA += la[i]
		sumB += lb[i]
	}
	brightA := math32.Pow(sumA, brightnessGamma)
	brightB := math32.Pow(sumB, brightnessGamma)
	bright := brightA + (brightB-brightA)*t
	intensity := math32.Pow(bright, 1/brightnessGamma)

	var mixed [4]float32
	var sum float32
	for i := 0; i < 4; i++ {
		mixed[i] = la[i] + (lb[i]-la[i])*t
		sum += mixed[i]
	}
	if sum != 0 {
		for i := range mixed {
			mixed[i] *= intensity / sum
		}
	}

	var out Color
	for i := range mixed {
		v := linearToSrgb(mixed[i])*255 + 0.5
		out[i] = uint8(math32.Max(0, math32.Min(255, v)))
	}
	return out
}

// AnimationTransform is one segment of a channel: it moves from the previous
// segment's end (or the channel start) to End over Duration frames.
type AnimationTransform[T Interpolatable] struct {
	End             T
	Duration        uint32
	FirstStep       Step
	AdditionalSteps []Step
}

// ease applies FirstStep, then each additional step in order.
func (tr *AnimationTransform[T]) ease(progress float32) float32 {
	progress = tr.FirstStep.Apply(progress)
	for _, s := range tr.AdditionalSteps {
		progress = s.Apply(progress)
	}
	return progress
}

// AnimationChannel animates one property. Frame 0 is Start; each transform
// ends on a keyframe boundary at the running sum of durations.
type AnimationChannel[T Interpolatable] struct {
	Start      T
	Transforms []AnimationTransform[T]
}

// NewChannel returns a channel holding only its start value.
func NewChannel[T Interpolatable](start T) *AnimationChannel[T] {
	return &AnimationChannel[T]{Start: start}
}

// Then appends a linear transform and returns the channel.
func (c *AnimationChannel[T]) Then(end T, duration uint32) *AnimationChannel[T] {
	c.Transforms = append(c.Transforms, AnimationTransform[T]{End: end, Duration: duration})
	return c
}

// LastValue is the value the channel holds once finished.
func (c *AnimationChannel[T]) LastValue() T {
	if len(c.Transforms) == 0 {
		return c.Start
	}
	return c.Transforms[len(c.Transforms)-1].End
}

// TotalDuration is the sum of all transform durations.
func (c *AnimationChannel[T]) TotalDuration() uint32 {
	var total uint32
	for _, tr := range c.Transforms {
		total += tr.Duration
	}
	return total
}

// ValueAt returns the channel value at a fractional frame. done reports that
// no transform extends past the frame, in which case the last value is used.
func (c *AnimationChannel[T]) ValueAt(frame float32) (value T, done bool) {
	prev := c.Start
	var start float32
	for i := range c.Transforms {
		tr := &c.Transforms[i]
		d := float32(tr.Duration)
		if start+d > frame {
			progress := tr.ease(math32.Max(0, frame-start) / d)
			return Interpolate(prev, tr.End, progress), false
		}
		start += d
		prev = tr.End
	}
	return c.LastValue(), true
}

// ValueForFrame returns the interpolated value at integer frame k.
func (c *AnimationChannel[T]) ValueForFrame(k uint32) T {
	v, _ := c.ValueAt(float32(k))
	return v
}

// Keyframe returns a pointer to the value stored at frame k, or nil when k is
// not a keyframe boundary. Frame 0 is the start value.
func (c *AnimationChannel[T]) Keyframe(k uint32) *T {
	if k == 0 {
		return &c.Start
	}
	var end uint32
	for i := range c.Transforms {
		end += c.Transforms[i].Duration
		if end == k {
			return &c.Transforms[i].End
		}
		if end > k {
			break
		}
	}
	return nil
}

// InsertKeyframe makes k a keyframe without changing the channel's motion:
// the transform spanning k is split at the linearly interpolated value, and a
// k past the end appends a hold of the last value. Returns false when k
// already is a keyframe.
func (c *AnimationChannel[T]) InsertKeyframe(k uint32) bool {
	if k == 0 {
		return false
	}
	prev := c.Start
	var start uint32
	for i := range c.Transforms {
		tr := c.Transforms[i]
		end := start + tr.Duration
		if k == end {
			return false
		}
		if k < end {
			before := k - start
			split := AnimationTransform[T]{
				End:             Interpolate(prev, tr.End, float32(before)/float32(tr.Duration)),
				Duration:        before,
				FirstStep:       tr.FirstStep,
				AdditionalSteps: append([]Step(nil), tr.AdditionalSteps...),
			}
			c.Transforms[i].Duration = end - k
			c.Transforms = append(c.Transforms, AnimationTransform[T]{})
			copy(c.Transforms[i+1:], c.Transforms[i:])
			c.Transforms[i] = split
			return true
		}
		start = end
		prev = tr.End
	}
	c.Transforms = append(c.Transforms, AnimationTransform[T]{
		End:      c.LastValue(),
		Duration: k - start,
	})
	return true
}

// RemoveKeyframe deletes the keyframe at k, folding its duration into the
// following transform. Frame 0 is never removed. Returns false when k is not
// a keyframe.
func (c *AnimationChannel[T]) RemoveKeyframe(k uint32) bool {
	if k == 0 {
		return false
	}
	var end uint32
	for i := range c.Transforms {
		end += c.Transforms[i].Duration
		if end == k {
			if i+1 < len(c.Transforms) {
				c.Transforms[i+1].Duration += c.Transforms[i].Duration
			}
			c.Transforms = append(c.Transforms[:i], c.Transforms[i+1:]...)
			return true
		}
		if end > k {
			return false
		}
	}
	return false
}

// PrevKeyframe returns the closest keyframe strictly before k, or k when
// there is none.
func (c *AnimationChannel[T]) PrevKeyframe(k uint32) uint32 {
	if k == 0 {
		return k
	}
	best := uint32(0)
	var end uint32
	for _, tr := range c.Transforms {
		end += tr.Duration
		if end >= k {
			break
		}
		best = end
	}
	return best
}

// NextKeyframe returns the closest keyframe strictly after k, or k when there
// is none.
func (c *AnimationChannel[T]) NextKeyframe(k uint32) uint32 {
	var end uint32
	for _, tr := range c.Transforms {
		end += tr.Duration
		if end > k {
			return end
		}
	}
	return k
}

// NodeAnimation drives the properties of the node at NodePath. Nil channels
// leave their property alone.
type NodeAnimation struct {
	NodePath string
	Angle    *AnimationChannel[float32]
	Position *AnimationChannel[Vec2]
	Size     *AnimationChannel[Vec2]
	Scale    *AnimationChannel[Vec2]
	Color    *AnimationChannel[Color]
	UVOffset *AnimationChannel[Vec2]
	UVScale  *AnimationChannel[Vec2]
}

// Animation is a named set of node animations played together.
type Animation struct {
	TotalDuration  uint32 // frames
	NodeAnimations []NodeAnimation
}

func applyChannel[T Interpolatable](c *AnimationChannel[T], frame float32, set func(T), done *bool) {
	if c == nil {
		return
	}
	v, finished := c.ValueAt(frame)
	set(v)
	*done = *done && finished
}

// animate writes every channel's value at frame into n and marks it changed.
// It reports whether all channels are finished.
func (a *NodeAnimation) animate(frame float32, n *NodeItem) bool {
	done := true
	applyChannel(a.Angle, frame, func(v float32) { n.Transform.Angle = v }, &done)
	applyChannel(a.Position, frame, func(v Vec2) { n.Transform.Position = v }, &done)
	applyChannel(a.Size, frame, func(v Vec2) { n.Transform.Size = v }, &done)
	applyChannel(a.Scale, frame, func(v Vec2) { n.Transform.Scale = v }, &done)
	applyChannel(a.Color, frame, func(v Color) { n.Color = v }, &done)
	if img := n.Image(); img != nil {
		applyChannel(a.UVOffset, frame, img.SetUVOffset, &done)
		applyChannel(a.UVScale, frame, img.SetUVScale, &done)
	}
	n.wasChanged = true
	return done
}

// animate applies every node animation at frame, skipping paths that do not
// resolve. It reports whether the whole animation is finished.
func (a *Animation) animate(frame float32, tree *LayoutTree) bool {
	done := true
	for i := range a.NodeAnimations {
		na := &a.NodeAnimations[i]
		n := tree.NodeByPath(na.NodePath)
		if n == nil {
			continue
		}
		if !na.animate(frame, n) {
			done = false
		}
	}
	return done
}
