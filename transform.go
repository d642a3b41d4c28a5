package envy

import "github.com/chewxy/math32"

// Affine2 is a 2D affine matrix stored as [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
type Affine2 [6]float32

// IdentityAffine is the identity affine matrix.
var IdentityAffine = Affine2{1, 0, 0, 1, 0, 0}

// AffineTranslation returns a pure translation.
func AffineTranslation(t Vec2) Affine2 {
	return Affine2{1, 0, 0, 1, t.X, t.Y}
}

// AffineScale returns a pure scale.
func AffineScale(s Vec2) Affine2 {
	return Affine2{s.X, 0, 0, s.Y, 0, 0}
}

// AffineScaleAngleTranslation returns T(translation) * R(angle) * S(scale).
// angle is in radians.
func AffineScaleAngleTranslation(scale Vec2, angle float32, translation Vec2) Affine2 {
	sin, cos := math32.Sincos(angle)
	return Affine2{
		cos * scale.X,
		sin * scale.X,
		-sin * scale.Y,
		cos * scale.Y,
		translation.X,
		translation.Y,
	}
}

// Mul returns m * o (o is applied first).
func (m Affine2) Mul(o Affine2) Affine2 {
	return Affine2{
		m[0]*o[0] + m[2]*o[1],
		m[1]*o[0] + m[3]*o[1],
		m[0]*o[2] + m[2]*o[3],
		m[1]*o[2] + m[3]*o[3],
		m[0]*o[4] + m[2]*o[5] + m[4],
		m[1]*o[4] + m[3]*o[5] + m[5],
	}
}

// Inverse returns the inverse matrix, or the identity when m is singular.
func (m Affine2) Inverse() Affine2 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return IdentityAffine
	}
	invDet := 1 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return Affine2{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// TransformPoint applies the matrix to a point.
func (m Affine2) TransformPoint(p Vec2) Vec2 {
	return Vec2{m[0]*p.X + m[2]*p.Y + m[4], m[1]*p.X + m[3]*p.Y + m[5]}
}

// Translation returns the translation column.
func (m Affine2) Translation() Vec2 {
	return Vec2{m[4], m[5]}
}

func radians(deg float32) float32 {
	return deg * math32.Pi / 180
}

// parentFrame is what a node needs from its parent during propagation.
type parentFrame struct {
	transform *NodeTransform
	affine    Affine2
	changed   bool
}

// localAffine computes the node's affine relative to its parent frame:
//
//	actual = size * scale
//	center = parent.size * parent.anchor + position - anchor * actual
//	local  = T(center) * R(angle) * S(scale)
func localAffine(t *NodeTransform, parent *NodeTransform) Affine2 {
	actual := t.Size.Mul(t.Scale)
	origin := parent.Size.Mul(parent.Anchor.Vec())
	center := origin.Add(t.Position).Sub(t.Anchor.Vec().Mul(actual))
	return AffineScaleAngleTranslation(t.Scale, radians(t.Angle), center)
}

// propagate recomputes the absolute affine of n and its subtree. A node is
// recomputed when it or any ancestor changed since the last prepare.
func (n *NodeItem) propagate(parent parentFrame) {
	didChange := n.wasChanged || parent.changed
	if didChange {
		n.wasChanged = true
		n.affine = parent.affine.Mul(localAffine(&n.Transform, parent.transform))
	}

	if n.sublayout != nil {
		n.sublayout.tree.PropagateWithRoot(n.Transform, n.affine, didChange)
	}

	frame := parentFrame{transform: &n.Transform, affine: n.affine, changed: didChange}
	for _, child := range n.children {
		child.propagate(frame)
	}
}

// --- Transform setters ---

// SetPosition sets the node's position and marks it changed.
func (n *NodeItem) SetPosition(p Vec2) {
	n.Transform.Position = p
	n.wasChanged = true
}

// SetSize sets the node's size and marks it changed.
func (n *NodeItem) SetSize(s Vec2) {
	n.Transform.Size = s
	n.wasChanged = true
}

// SetScale sets the node's scale and marks it changed.
func (n *NodeItem) SetScale(s Vec2) {
	n.Transform.Scale = s
	n.wasChanged = true
}

// SetAngle sets the node's clockwise rotation in degrees and marks it changed.
func (n *NodeItem) SetAngle(deg float32) {
	n.Transform.Angle = deg
	n.wasChanged = true
}

// SetAnchor sets the node's anchor and marks it changed.
func (n *NodeItem) SetAnchor(a Anchor) {
	n.Transform.Anchor = a
	n.wasChanged = true
}

// SetTransform replaces the whole transform and marks the node changed.
func (n *NodeItem) SetTransform(t NodeTransform) {
	n.Transform = t
	n.wasChanged = true
}

// SetColor sets the node's color and marks it changed.
func (n *NodeItem) SetColor(c Color) {
	n.Color = c
	n.wasChanged = true
}

// MarkChanged forces the node to be recomputed and re-prepared on the next
// frame. Useful after bulk-setting fields directly.
func (n *NodeItem) MarkChanged() {
	n.wasChanged = true
}

// --- Coordinate conversion ---

// CanvasToLocal converts a canvas-space point into the node's local space,
// where the node spans [-size/2, size/2].
func (n *NodeItem) CanvasToLocal(p Vec2) Vec2 {
	return n.affine.Inverse().TransformPoint(p)
}

// LocalToCanvas converts a point in the node's local space to canvas space.
func (n *NodeItem) LocalToCanvas(p Vec2) Vec2 {
	return n.affine.TransformPoint(p)
}
