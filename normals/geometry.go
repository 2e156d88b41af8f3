package normals

import (
	"math"

	"github.com/edgevision/rangenormals/rgrid"
	"github.com/edgevision/rangenormals/transform"
)

// radiusFromPoints computes, per pixel, the Euclidean distance of the 3D
// point to the camera origin. Points with any undefined component, or sitting
// exactly at the origin, yield the NaN sentinel.
func radiusFromPoints[T rgrid.Float](points *rgrid.Vec3Map[T]) *rgrid.Map[T] {
	out := rgrid.NewMap[T](points.Cols(), points.Rows())
	src := points.Data()
	dst := out.Data()
	for i := range dst {
		x := float64(src[3*i])
		y := float64(src[3*i+1])
		z := float64(src[3*i+2])
		r := math.Sqrt(x*x + y*y + z*z)
		if r == 0 {
			dst[i] = rgrid.NaN[T]()
		} else {
			dst[i] = T(r)
		}
	}
	return out
}

// signNormal normalizes the vector (a, b, c) and orients it toward the
// camera: whenever the depth-axis component is positive the whole vector is
// negated, so valid results always have a non-positive third component.
func signNormal[T rgrid.Float](a, b, c T) (T, T, T) {
	norm := T(1 / math.Sqrt(float64(a)*float64(a)+float64(b)*float64(b)+float64(c)*float64(c)))
	if c > 0 {
		return -a * norm, -b * norm, -c * norm
	}
	return a * norm, b * norm, c * norm
}

// bearingGrids computes per-pixel spherical bearing terms for the camera's
// projected rays: theta sweeps from the depth axis toward +x, phi toward +y.
// The rays are recovered by back-projecting a constant synthetic depth, so
// only the direction (not the magnitude) of each ray matters.
func bearingGrids[T rgrid.Float](
	rows, cols int, params *transform.PinholeCameraIntrinsics,
) (cosTheta, sinTheta, cosPhi, sinPhi *rgrid.Map[T]) {
	depth := rgrid.NewMap[T](cols, rows)
	depth.Fill(T(params.Fx))
	points := transform.PointsFromDepth(params, depth)
	radius := radiusFromPoints(points)

	cosTheta = rgrid.NewMap[T](cols, rows)
	sinTheta = rgrid.NewMap[T](cols, rows)
	cosPhi = rgrid.NewMap[T](cols, rows)
	sinPhi = rgrid.NewMap[T](cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px, py, pz := points.At(x, y)
			theta := math.Atan2(float64(px), float64(pz))
			cosTheta.Set(x, y, T(math.Cos(theta)))
			sinTheta.Set(x, y, T(math.Sin(theta)))
			phi := math.Asin(float64(py) / float64(radius.At(x, y)))
			cosPhi.Set(x, y, T(math.Cos(phi)))
			sinPhi.Set(x, y, T(math.Sin(phi)))
		}
	}
	return cosTheta, sinTheta, cosPhi, sinPhi
}
