package rgrid

import (
	"github.com/pkg/errors"

	"github.com/edgevision/rangenormals/utils"
)

// reflect101 maps an out-of-range index back into [0, n) by mirroring about
// the edge pixels (the edge itself is not repeated).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// SepFilter2D correlates a scalar grid with a separable kernel pair: kx along
// rows, then ky along columns. Kernel lengths must be odd; borders are
// mirrored (reflect-101).
func SepFilter2D[T Float](m *Map[T], kx, ky []T) *Map[T] {
	w, h := m.width, m.height
	rx, ry := len(kx)/2, len(ky)/2

	tmp := NewMap[T](w, h)
	utils.ParallelForEachRow(h, func(y int) {
		row := m.data[y*w : (y+1)*w]
		out := tmp.data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum T
			for i, k := range kx {
				sum += k * row[reflect101(x+i-rx, w)]
			}
			out[x] = sum
		}
	})

	out := NewMap[T](w, h)
	utils.ParallelForEachRow(h, func(y int) {
		dst := out.data[y*w : (y+1)*w]
		for i, k := range ky {
			src := tmp.data[reflect101(y+i-ry, h)*w:]
			for x := 0; x < w; x++ {
				dst[x] += k * src[x]
			}
		}
	})
	return out
}

// sobelKernel builds the 1D factor of a Sobel-style separable kernel of the
// given size for derivative order 0 or 1, by iterated convolution of the
// binomial smoothing kernel [1 1] and the differencing kernel [-1 1].
func sobelKernel[T Float](order, size int) []T {
	if size == 1 {
		return []T{1}
	}
	ker := make([]int64, size+1)
	ker[0] = 1
	for i := 0; i < size-order-1; i++ {
		oldval := ker[0]
		for j := 1; j <= size; j++ {
			newval := ker[j] + ker[j-1]
			ker[j-1] = oldval
			oldval = newval
		}
	}
	for i := 0; i < order; i++ {
		oldval := -ker[0]
		for j := 1; j <= size; j++ {
			newval := ker[j-1] - ker[j]
			ker[j-1] = oldval
			oldval = newval
		}
	}
	// normalize so smoothing sums to one and the derivative has unit gain
	scale := T(1) / T(int64(1)<<uint(size-order-1))
	out := make([]T, size)
	for i := 0; i < size; i++ {
		out[i] = T(ker[i]) * scale
	}
	return out
}

// DerivKernels produces the separable kernel pair (kx, ky) approximating the
// first derivative d/dx (dx=1, dy=0) or d/dy (dx=0, dy=1) at the given odd
// aperture size. An aperture of 1 yields the plain central difference with no
// cross smoothing.
func DerivKernels[T Float](dx, dy, aperture int) (kx, ky []T, err error) {
	if dx+dy != 1 || dx < 0 || dy < 0 {
		return nil, nil, errors.Errorf("unsupported derivative order (%d, %d)", dx, dy)
	}
	if aperture < 1 || aperture%2 == 0 {
		return nil, nil, errors.Errorf("aperture size %d is not odd and positive", aperture)
	}
	sizeX, sizeY := aperture, aperture
	// the derivative direction always needs at least three taps
	if sizeX == 1 && dx == 1 {
		sizeX = 3
	}
	if sizeY == 1 && dy == 1 {
		sizeY = 3
	}
	return sobelKernel[T](dx, sizeX), sobelKernel[T](dy, sizeY), nil
}

// ScaleKernel multiplies every kernel tap by s in place.
func ScaleKernel[T Float](k []T, s T) {
	for i := range k {
		k[i] *= s
	}
}
