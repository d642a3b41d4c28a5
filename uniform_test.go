package envy

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestUniformSizes(t *testing.T) {
	d := NewDrawUniform(mgl32.Ident4(), [4]float32{1, 0.5, 0.25, 1})
	if got := len(d.Bytes()); got != UniformSize {
		t.Errorf("DrawUniform bytes = %d, want %d", got, UniformSize)
	}
	v := DefaultViewUniform()
	if got := len(v.Bytes()); got != UniformSize {
		t.Errorf("ViewUniform bytes = %d, want %d", got, UniformSize)
	}
}

func TestDrawUniformLayout(t *testing.T) {
	model := AffineToMat4(AffineTranslation(Vec2{7, 9}))
	d := NewDrawUniform(model, [4]float32{0.1, 0.2, 0.3, 0.4})
	buf := d.Bytes()
	at := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	// Translation sits in the fourth column.
	assertNear(t, "model[12]", at(12), 7)
	assertNear(t, "model[13]", at(13), 9)
	assertNear(t, "color.b", at(18), 0.3)
	// The inverse undoes the translation.
	assertNear(t, "inverse[12]", at(20+12), -7)
}

func TestDefaultViewProjection(t *testing.T) {
	v := DefaultViewUniform()
	vp := v.ViewProjection()
	for _, tt := range []struct {
		canvas Vec2
		ndc    Vec2
	}{
		{Vec2{0, 0}, Vec2{-1, 1}},
		{Vec2{CanvasWidth, CanvasHeight}, Vec2{1, -1}},
		{Vec2{CanvasWidth / 2, CanvasHeight / 2}, Vec2{0, 0}},
	} {
		p := vp.Mul4x1(mgl32.Vec4{tt.canvas.X, tt.canvas.Y, 0, 1})
		assertVec(t, "ndc", Vec2{p.X(), p.Y()}, tt.ndc)
		assertNear(t, "depth", p.Z(), 0)
	}
}

func TestAffineToMat4MatchesAffine(t *testing.T) {
	a := AffineScaleAngleTranslation(Vec2{2, 3}, radians(30), Vec2{5, -4})
	m := AffineToMat4(a)
	p := Vec2{1.5, -2}
	got := m.Mul4x1(mgl32.Vec4{p.X, p.Y, 0, 1})
	assertVec(t, "mat4 point", Vec2{got.X(), got.Y()}, a.TransformPoint(p))
}
