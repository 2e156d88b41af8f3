// Package rgrid provides dense row-major grid containers for range-sensor
// processing, together with the windowed filtering and resampling primitives
// that operate on them.
package rgrid

import "math"

// Float is the set of scalar precisions a grid can hold.
type Float interface {
	~float32 | ~float64
}

// Grid is the common read-only shape of every grid container.
type Grid interface {
	Rows() int
	Cols() int
}

// NaN returns the sentinel value at precision T.
func NaN[T Float]() T {
	return T(math.NaN())
}

// IsNaN reports whether v is the sentinel value.
func IsNaN[T Float](v T) bool {
	return v != v
}

// Map is a dense scalar grid stored row-major.
type Map[T Float] struct {
	width  int
	height int

	data []T
}

// NewMap returns a zero-filled width x height scalar grid.
func NewMap[T Float](width, height int) *Map[T] {
	return &Map[T]{width: width, height: height, data: make([]T, width*height)}
}

func (m *Map[T]) kxy(x, y int) int {
	return y*m.width + x
}

func (m *Map[T]) Width() int { return m.width }
func (m *Map[T]) Height() int { return m.height }

// Cols is an alias for Width.
func (m *Map[T]) Cols() int { return m.width }

// Rows is an alias for Height.
func (m *Map[T]) Rows() int { return m.height }

func (m *Map[T]) At(x, y int) T {
	return m.data[m.kxy(x, y)]
}

func (m *Map[T]) Set(x, y int, val T) {
	m.data[m.kxy(x, y)] = val
}

// Data exposes the backing slice, row-major.
func (m *Map[T]) Data() []T { return m.data }

// Fill sets every cell to val.
func (m *Map[T]) Fill(val T) {
	for i := range m.data {
		m.data[i] = val
	}
}

// Clone returns a deep copy.
func (m *Map[T]) Clone() *Map[T] {
	out := NewMap[T](m.width, m.height)
	copy(out.data, m.data)
	return out
}

// Vec3Map is a dense grid of 3-vectors, interleaved row-major.
type Vec3Map[T Float] struct {
	width  int
	height int

	data []T
}

// NewVec3Map returns a zero-filled width x height 3-vector grid.
func NewVec3Map[T Float](width, height int) *Vec3Map[T] {
	return &Vec3Map[T]{width: width, height: height, data: make([]T, 3*width*height)}
}

func (m *Vec3Map[T]) kxy(x, y int) int {
	return 3 * (y*m.width + x)
}

func (m *Vec3Map[T]) Width() int { return m.width }
func (m *Vec3Map[T]) Height() int { return m.height }
func (m *Vec3Map[T]) Cols() int { return m.width }
func (m *Vec3Map[T]) Rows() int { return m.height }

func (m *Vec3Map[T]) At(x, y int) (T, T, T) {
	k := m.kxy(x, y)
	return m.data[k], m.data[k+1], m.data[k+2]
}

func (m *Vec3Map[T]) Set(x, y int, a, b, c T) {
	k := m.kxy(x, y)
	m.data[k] = a
	m.data[k+1] = b
	m.data[k+2] = c
}

// Data exposes the backing slice, interleaved row-major.
func (m *Vec3Map[T]) Data() []T { return m.data }

// Fill sets every component of every cell to val.
func (m *Vec3Map[T]) Fill(val T) {
	for i := range m.data {
		m.data[i] = val
	}
}

// Mat3Map is a dense grid of 3x3 matrices, each stored row-major in 9
// consecutive values.
type Mat3Map[T Float] struct {
	width  int
	height int

	data []T
}

// NewMat3Map returns a zero-filled width x height 3x3-matrix grid.
func NewMat3Map[T Float](width, height int) *Mat3Map[T] {
	return &Mat3Map[T]{width: width, height: height, data: make([]T, 9*width*height)}
}

func (m *Mat3Map[T]) kxy(x, y int) int {
	return 9 * (y*m.width + x)
}

func (m *Mat3Map[T]) Width() int { return m.width }
func (m *Mat3Map[T]) Height() int { return m.height }
func (m *Mat3Map[T]) Cols() int { return m.width }
func (m *Mat3Map[T]) Rows() int { return m.height }

// At copies out the 3x3 matrix at (x, y).
func (m *Mat3Map[T]) At(x, y int) [9]T {
	var out [9]T
	copy(out[:], m.data[m.kxy(x, y):])
	return out
}

// Set stores the 3x3 matrix at (x, y).
func (m *Mat3Map[T]) Set(x, y int, val [9]T) {
	copy(m.data[m.kxy(x, y):m.kxy(x, y)+9], val[:])
}

// Data exposes the backing slice.
func (m *Mat3Map[T]) Data() []T { return m.data }

// DepthMap is a dense grid of raw integer depth readings, the format most
// range sensors report natively.
type DepthMap struct {
	width  int
	height int

	data []uint16
}

// NewEmptyDepthMap returns a zero-filled width x height depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]uint16, width*height)}
}

func (dm *DepthMap) kxy(x, y int) int {
	return y*dm.width + x
}

func (dm *DepthMap) Width() int { return dm.width }
func (dm *DepthMap) Height() int { return dm.height }
func (dm *DepthMap) Cols() int { return dm.width }
func (dm *DepthMap) Rows() int { return dm.height }

func (dm *DepthMap) GetDepth(x, y int) uint16 {
	return dm.data[dm.kxy(x, y)]
}

func (dm *DepthMap) Set(x, y int, val uint16) {
	dm.data[dm.kxy(x, y)] = val
}

// Data exposes the backing slice, row-major.
func (dm *DepthMap) Data() []uint16 { return dm.data }
