package rgrid

import "math"

// InvertSym3 inverts a symmetric positive semi-definite 3x3 matrix (row-major)
// through its Cholesky factorization. The second return is false when the
// matrix is singular (a pivot collapses), in which case the result is the
// zero matrix.
func InvertSym3[T Float](m [9]T) ([9]T, bool) {
	var out [9]T

	a := float64(m[0])
	b := float64(m[1])
	c := float64(m[2])
	d := float64(m[4])
	e := float64(m[5])
	f := float64(m[8])

	if a <= 0 {
		return out, false
	}
	l00 := math.Sqrt(a)
	l10 := b / l00
	l20 := c / l00
	p1 := d - l10*l10
	if p1 <= 0 {
		return out, false
	}
	l11 := math.Sqrt(p1)
	l21 := (e - l10*l20) / l11
	p2 := f - l20*l20 - l21*l21
	if p2 <= 0 {
		return out, false
	}
	l22 := math.Sqrt(p2)

	// invert the lower-triangular factor
	i00 := 1 / l00
	i11 := 1 / l11
	i22 := 1 / l22
	i10 := -l10 / (l00 * l11)
	i21 := -l21 / (l11 * l22)
	i20 := (l10*l21 - l20*l11) / (l00 * l11 * l22)

	// m^-1 = L^-T L^-1
	m00 := i00*i00 + i10*i10 + i20*i20
	m01 := i10*i11 + i20*i21
	m02 := i20 * i22
	m11 := i11*i11 + i21*i21
	m12 := i21 * i22
	m22 := i22 * i22

	out[0] = T(m00)
	out[1] = T(m01)
	out[2] = T(m02)
	out[3] = T(m01)
	out[4] = T(m11)
	out[5] = T(m12)
	out[6] = T(m02)
	out[7] = T(m12)
	out[8] = T(m22)
	return out, true
}
