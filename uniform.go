package envy

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformSize is the byte size of DrawUniform and ViewUniform. Both are padded
// to the 256-byte dynamic-offset alignment GPUs require.
const UniformSize = 256

// DrawUniform is the per-draw data a backend binds for one textured quad or
// glyph.
type DrawUniform struct {
	Model        mgl32.Mat4
	Color        mgl32.Vec4
	InverseModel mgl32.Mat4
	_            [0x70]byte
}

// NewDrawUniform builds a uniform from a model matrix and a normalized color.
// The inverse is computed here so shaders never need to.
func NewDrawUniform(model mgl32.Mat4, color [4]float32) DrawUniform {
	return DrawUniform{
		Model:        model,
		Color:        mgl32.Vec4(color),
		InverseModel: model.Inv(),
	}
}

// Bytes returns the little-endian 256-byte image of the uniform.
func (u *DrawUniform) Bytes() []byte {
	buf := make([]byte, UniformSize)
	off := putFloats(buf, 0, u.Model[:])
	off = putFloats(buf, off, u.Color[:])
	putFloats(buf, off, u.InverseModel[:])
	return buf
}

// ViewUniform is bound once per pass and carries the view and projection.
type ViewUniform struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	_          [0x80]byte
}

// DefaultViewUniform returns the identity view with a right-handed orthographic
// projection of the design canvas: x in [0, 1920], y in [1080, 0], depth [0, 1].
func DefaultViewUniform() ViewUniform {
	return ViewUniform{
		View:       mgl32.Ident4(),
		Projection: OrthoRH(0, CanvasWidth, CanvasHeight, 0, 0, 1),
	}
}

// Bytes returns the little-endian 256-byte image of the uniform.
func (u *ViewUniform) Bytes() []byte {
	buf := make([]byte, UniformSize)
	off := putFloats(buf, 0, u.View[:])
	putFloats(buf, off, u.Projection[:])
	return buf
}

// ViewProjection returns Projection * View.
func (u *ViewUniform) ViewProjection() mgl32.Mat4 {
	return u.Projection.Mul4(u.View)
}

// OrthoRH returns a right-handed orthographic projection mapping depth to
// [0, 1]. mgl32.Ortho targets OpenGL's [-1, 1] depth range, which wgpu-style
// backends do not use.
func OrthoRH(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	rw := 1 / (right - left)
	rh := 1 / (top - bottom)
	r := 1 / (near - far)
	return mgl32.Mat4{
		2 * rw, 0, 0, 0,
		0, 2 * rh, 0, 0,
		0, 0, r, 0,
		-(left + right) * rw, -(top + bottom) * rh, r * near, 1,
	}
}

// AffineToMat4 embeds a 2D affine into a column-major 4x4 matrix.
func AffineToMat4(m Affine2) mgl32.Mat4 {
	return mgl32.Mat4{
		m[0], m[1], 0, 0,
		m[2], m[3], 0, 0,
		0, 0, 1, 0,
		m[4], m[5], 0, 1,
	}
}

func putFloats(buf []byte, off int, vals []float32) int {
	for _, v := range vals {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	return off
}
