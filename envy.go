package envy

import (
	"log/slog"
	"os"
)

// Canvas dimensions of the design frame every layout is authored against.
// Origin is the top-left corner, +x right, +y down.
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
)

// Vec2 is a 2D vector used for positions, sizes, scales and UV parameters.
type Vec2 struct {
	X, Y float32
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Mul returns the component-wise product of v and o.
func (v Vec2) Mul(o Vec2) Vec2 { return Vec2{v.X * o.X, v.Y * o.Y} }

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Color is a straight-alpha RGBA8 color.
type Color [4]uint8

// ColorWhite is the default node color (no tint).
var ColorWhite = Color{255, 255, 255, 255}

// Normalized returns the color as four floats in [0, 1].
func (c Color) Normalized() [4]float32 {
	return [4]float32{
		float32(c[0]) / 255,
		float32(c[1]) / 255,
		float32(c[2]) / 255,
		float32(c[3]) / 255,
	}
}

// AnchorKind selects one of the nine cardinal anchor points or a custom one.
type AnchorKind uint8

const (
	AnchorTopLeft AnchorKind = iota // default
	AnchorTopCenter
	AnchorTopRight
	AnchorCenterLeft
	AnchorCenter
	AnchorCenterRight
	AnchorBottomLeft
	AnchorBottomCenter
	AnchorBottomRight
	AnchorCustom // uses Anchor.Custom
)

// Anchor is the point of a node that its position refers to, and the point of
// the parent that children are positioned from.
type Anchor struct {
	Kind   AnchorKind
	Custom Vec2
}

// CustomAnchor returns an anchor at an arbitrary unit-space point.
func CustomAnchor(v Vec2) Anchor {
	return Anchor{Kind: AnchorCustom, Custom: v}
}

// Vec maps the anchor to a vector in [-0.5, 0.5]² (y down).
func (a Anchor) Vec() Vec2 {
	switch a.Kind {
	case AnchorTopLeft:
		return Vec2{-0.5, -0.5}
	case AnchorTopCenter:
		return Vec2{0, -0.5}
	case AnchorTopRight:
		return Vec2{0.5, -0.5}
	case AnchorCenterLeft:
		return Vec2{-0.5, 0}
	case AnchorCenter:
		return Vec2{0, 0}
	case AnchorCenterRight:
		return Vec2{0.5, 0}
	case AnchorBottomLeft:
		return Vec2{-0.5, 0.5}
	case AnchorBottomCenter:
		return Vec2{0, 0.5}
	case AnchorBottomRight:
		return Vec2{0.5, 0.5}
	default:
		return a.Custom
	}
}

// NodeTransform is the local placement of a node relative to its parent.
type NodeTransform struct {
	Angle    float32 // degrees, clockwise
	Position Vec2
	Size     Vec2
	Scale    Vec2
	Anchor   Anchor
}

// DefaultTransform returns the transform new nodes start with: a 50x50 box at
// the parent's top-left anchor with unit scale.
func DefaultTransform() NodeTransform {
	return NodeTransform{
		Size:  Vec2{50, 50},
		Scale: Vec2{1, 1},
	}
}

// rootTransform is the frame top-level nodes are propagated against.
var rootTransform = NodeTransform{
	Position: Vec2{CanvasWidth / 2, CanvasHeight / 2},
	Size:     Vec2{CanvasWidth, CanvasHeight},
	Scale:    Vec2{1, 1},
	Anchor:   Anchor{Kind: AnchorCenter},
}

// NodeVisibility is stored on templates and nodes. Rendering does not consume
// it yet.
type NodeVisibility uint8

const (
	VisibilityInherited NodeVisibility = iota // default
	VisibilityHidden
	VisibilityVisible
)

// ImageScalingMode controls how a texture fills its node along one axis.
type ImageScalingMode uint8

const (
	ScalingStretch ImageScalingMode = iota // texture spans the node once
	ScalingTiling                          // texture repeats at its native pixel size
)

// NodeKind distinguishes the implementation variant of a node.
type NodeKind uint8

const (
	NodeEmpty     NodeKind = iota // grouping node with no visual output
	NodeImage                     // textured quad
	NodeText                      // laid out glyphs
	NodeSublayout                 // instance of a named template
)

func (k NodeKind) String() string {
	switch k {
	case NodeEmpty:
		return "empty"
	case NodeImage:
		return "image"
	case NodeText:
		return "text"
	case NodeSublayout:
		return "sublayout"
	default:
		return "unknown"
	}
}

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// Logger returns the logger used for resource warnings and skipped work.
func Logger() *slog.Logger { return logger }

// SetLogger replaces the package logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
