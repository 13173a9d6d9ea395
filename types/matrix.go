package types

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mat4 is a 4x4 affine transform stored in row-major order: a[3], a[7]
// and a[11] hold the translation.
type Mat4 [16]float32

// Ident4 returns the identity transform.
func Ident4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate4 returns a translation transform.
func Translate4(x, y, z float32) Mat4 {
	m := Ident4()
	m[3], m[7], m[11] = x, y, z
	return m
}

// Scale4 returns a non-uniform scale transform.
func Scale4(x, y, z float32) Mat4 {
	m := Ident4()
	m[0], m[5], m[10] = x, y, z
	return m
}

// FromMgl converts a column-major mgl32 matrix.
func FromMgl(m mgl32.Mat4) Mat4 {
	return Mat4(m.Transpose())
}

// Mgl returns the column-major mgl32 form of m.
func (m Mat4) Mgl() mgl32.Mat4 {
	return mgl32.Mat4(m).Transpose()
}

// Mul returns m * m2, so that m2 is applied first.
func (m Mat4) Mul(m2 Mat4) Mat4 {
	return FromMgl(m.Mgl().Mul4(m2.Mgl()))
}

// TransformPoint applies the full affine transform to p.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	r := m.Mgl().Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
	if r[3] != 0 && r[3] != 1 {
		return Vec3{r[0] / r[3], r[1] / r[3], r[2] / r[3]}
	}
	return Vec3{r[0], r[1], r[2]}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// IsFinite reports whether every element is a finite number.
func (m Mat4) IsFinite() bool {
	for _, c := range m {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
