package rgrid

import "github.com/edgevision/rangenormals/utils"

// boxMeanInterleaved computes, for every pixel and channel, the arithmetic
// mean of the window x window neighborhood centered there. Windows are
// truncated at the grid edges (no padding), so border means are taken over
// the part of the window that falls inside the grid.
func boxMeanInterleaved[T Float](src, dst []T, width, height, channels, window int) {
	r := window / 2
	rowLen := width * channels

	// horizontal sliding sums
	tmp := make([]T, len(src))
	utils.ParallelForEachRow(height, func(y int) {
		row := src[y*rowLen : (y+1)*rowLen]
		out := tmp[y*rowLen : (y+1)*rowLen]
		for c := 0; c < channels; c++ {
			var sum T
			hi := r
			if hi >= width {
				hi = width - 1
			}
			for x := 0; x <= hi; x++ {
				sum += row[x*channels+c]
			}
			for x := 0; x < width; x++ {
				out[x*channels+c] = sum
				if add := x + r + 1; add < width {
					sum += row[add*channels+c]
				}
				if drop := x - r; drop >= 0 {
					sum -= row[drop*channels+c]
				}
			}
		}
	})

	// vertical sliding sums over the horizontal sums
	colSums := make([]T, rowLen)
	hi := r
	if hi >= height {
		hi = height - 1
	}
	for y := 0; y <= hi; y++ {
		row := tmp[y*rowLen : (y+1)*rowLen]
		for i, v := range row {
			colSums[i] += v
		}
	}
	for y := 0; y < height; y++ {
		out := dst[y*rowLen : (y+1)*rowLen]
		copy(out, colSums)
		if add := y + r + 1; add < height {
			row := tmp[add*rowLen : (add+1)*rowLen]
			for i, v := range row {
				colSums[i] += v
			}
		}
		if drop := y - r; drop >= 0 {
			row := tmp[drop*rowLen : (drop+1)*rowLen]
			for i, v := range row {
				colSums[i] -= v
			}
		}
	}

	// divide by the per-pixel window population
	countAt := func(p, n int) int {
		lo, hix := p-r, p+r
		if lo < 0 {
			lo = 0
		}
		if hix > n-1 {
			hix = n - 1
		}
		return hix - lo + 1
	}
	xCounts := make([]int, width)
	for x := 0; x < width; x++ {
		xCounts[x] = countAt(x, width)
	}
	utils.ParallelForEachRow(height, func(y int) {
		yCount := countAt(y, height)
		out := dst[y*rowLen : (y+1)*rowLen]
		for x := 0; x < width; x++ {
			inv := 1 / T(xCounts[x]*yCount)
			for c := 0; c < channels; c++ {
				out[x*channels+c] *= inv
			}
		}
	})
}

// BoxMean returns the windowed mean of a scalar grid. window must be odd.
func BoxMean[T Float](m *Map[T], window int) *Map[T] {
	out := NewMap[T](m.width, m.height)
	boxMeanInterleaved(m.data, out.data, m.width, m.height, 1, window)
	return out
}

// BoxMeanVec3 returns the windowed per-channel mean of a 3-vector grid.
func BoxMeanVec3[T Float](m *Vec3Map[T], window int) *Vec3Map[T] {
	out := NewVec3Map[T](m.width, m.height)
	boxMeanInterleaved(m.data, out.data, m.width, m.height, 3, window)
	return out
}

// BoxMeanMat3 returns the windowed per-entry mean of a 3x3-matrix grid.
func BoxMeanMat3[T Float](m *Mat3Map[T], window int) *Mat3Map[T] {
	out := NewMat3Map[T](m.width, m.height)
	boxMeanInterleaved(m.data, out.data, m.width, m.height, 9, window)
	return out
}
