package rgrid

import (
	"math"

	"github.com/edgevision/rangenormals/utils"
)

// interBits is the fixed-point fraction width used by FixedPointMap; source
// coordinates are resolved to 1/32 of a pixel.
const interBits = 5

const interTabSize = 1 << interBits

// PointMap holds, for every destination pixel, the floating source coordinate
// it should be sampled from.
type PointMap struct {
	width  int
	height int

	x []float32
	y []float32
}

// NewPointMap returns an empty width x height coordinate map.
func NewPointMap(width, height int) *PointMap {
	n := width * height
	return &PointMap{width: width, height: height, x: make([]float32, n), y: make([]float32, n)}
}

func (m *PointMap) kxy(x, y int) int { return y*m.width + x }

func (m *PointMap) Width() int { return m.width }
func (m *PointMap) Height() int { return m.height }
func (m *PointMap) Cols() int { return m.width }
func (m *PointMap) Rows() int { return m.height }

// At returns the source coordinate sampled for destination pixel (x, y).
func (m *PointMap) At(x, y int) (float32, float32) {
	k := m.kxy(x, y)
	return m.x[k], m.y[k]
}

// Set stores the source coordinate for destination pixel (x, y).
func (m *PointMap) Set(x, y int, srcX, srcY float32) {
	k := m.kxy(x, y)
	m.x[k] = srcX
	m.y[k] = srcY
}

// FixedPointMap is a PointMap resolved to integer source pixels plus a packed
// 5-bit-per-axis fraction, precomputed so that repeated remapping skips the
// float-to-int work.
type FixedPointMap struct {
	width  int
	height int

	ix   []int32
	iy   []int32
	frac []uint16 // fy*interTabSize + fx
}

// ToFixedPoint converts the map to its fixed-point representation.
func (m *PointMap) ToFixedPoint() *FixedPointMap {
	n := m.width * m.height
	fp := &FixedPointMap{
		width:  m.width,
		height: m.height,
		ix:     make([]int32, n),
		iy:     make([]int32, n),
		frac:   make([]uint16, n),
	}
	for k := 0; k < n; k++ {
		sx := float64(m.x[k]) * interTabSize
		sy := float64(m.y[k]) * interTabSize
		if math.IsNaN(sx) || math.IsNaN(sy) {
			fp.ix[k] = math.MinInt32
			fp.iy[k] = math.MinInt32
			continue
		}
		rx := int64(math.Floor(sx))
		ry := int64(math.Floor(sy))
		fp.ix[k] = int32(rx >> interBits)
		fp.iy[k] = int32(ry >> interBits)
		fp.frac[k] = uint16((ry&(interTabSize-1))<<interBits | rx&(interTabSize-1))
	}
	return fp
}

// Remap resamples src at the coordinates of the fixed-point map using
// bilinear interpolation. Destination pixels whose source coordinate falls
// outside the grid become NaN.
func Remap[T Float](src *Map[T], fp *FixedPointMap) *Map[T] {
	out := NewMap[T](fp.width, fp.height)
	remapInterleaved(src.data, out.data, src.width, src.height, 1, fp)
	return out
}

// RemapVec3 resamples a 3-vector grid channelwise at the coordinates of the
// fixed-point map using bilinear interpolation.
func RemapVec3[T Float](src *Vec3Map[T], fp *FixedPointMap) *Vec3Map[T] {
	out := NewVec3Map[T](fp.width, fp.height)
	remapInterleaved(src.data, out.data, src.width, src.height, 3, fp)
	return out
}

func remapInterleaved[T Float](src, dst []T, srcW, srcH, channels int, fp *FixedPointMap) {
	scale := T(1) / T(interTabSize)
	utils.ParallelForEachRow(fp.height, func(y int) {
		for x := 0; x < fp.width; x++ {
			k := y*fp.width + x
			ix, iy := int(fp.ix[k]), int(fp.iy[k])
			fx := T(fp.frac[k]&(interTabSize-1)) * scale
			fy := T(fp.frac[k]>>interBits) * scale

			d := dst[k*channels : k*channels+channels]
			if ix < 0 || iy < 0 || ix >= srcW || iy >= srcH ||
				(ix == srcW-1 && fx != 0) || (iy == srcH-1 && fy != 0) {
				for c := range d {
					d[c] = NaN[T]()
				}
				continue
			}
			x1, y1 := ix, iy
			if fx != 0 {
				x1 = ix + 1
			}
			if fy != 0 {
				y1 = iy + 1
			}
			s00 := src[(iy*srcW+ix)*channels:]
			s10 := src[(iy*srcW+x1)*channels:]
			s01 := src[(y1*srcW+ix)*channels:]
			s11 := src[(y1*srcW+x1)*channels:]
			for c := range d {
				top := s00[c] + fx*(s10[c]-s00[c])
				bot := s01[c] + fx*(s11[c]-s01[c])
				d[c] = top + fy*(bot-top)
			}
		}
	})
}
