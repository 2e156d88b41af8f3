// Package transform holds the pinhole camera model used to move between
// image pixels and 3D camera-space points.
package transform

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/edgevision/rangenormals/rgrid"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective
// projection of a 3D scene to the 2D plane. Skew is the off-diagonal shear
// term of the calibration matrix, zero for most sensors.
type PinholeCameraIntrinsics struct {
	Fx   float64
	Fy   float64
	Ppx  float64
	Ppy  float64
	Skew float64
}

// NewPinholeCameraIntrinsicsFromMatrix extracts the pinhole parameters from a
// 3x3 calibration matrix K.
func NewPinholeCameraIntrinsicsFromMatrix(k mat.Matrix) (*PinholeCameraIntrinsics, error) {
	if k == nil {
		return nil, errors.Wrap(ErrNoIntrinsics, "calibration matrix is nil")
	}
	r, c := k.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("calibration matrix must be 3x3, got %dx%d", r, c)
	}
	params := &PinholeCameraIntrinsics{
		Fx:   k.At(0, 0),
		Skew: k.At(0, 1),
		Ppx:  k.At(0, 2),
		Fy:   k.At(1, 1),
		Ppy:  k.At(1, 2),
	}
	return params, params.CheckValid()
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.Wrap(ErrNoIntrinsics, "intrinsics do not exist")
	}
	if params.Fx <= 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid focal length Fx = %#v", params.Fx)
	}
	if params.Fy <= 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid focal length Fy = %#v", params.Fy)
	}
	return nil
}

// Matrix returns the 3x3 calibration matrix K.
func (params *PinholeCameraIntrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, params.Skew, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// PointToPixel projects a 3D point to a (sub-pixel) position in the image
// plane. Points at zero depth project to negative coordinates so that bounds
// checks filter them out.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x*params.Fx+y*params.Skew)/z + params.Ppx
		yPx := (y*params.Fy)/z + params.Ppy
		return xPx, yPx
	}
	return -1.0, -1.0
}

// PixelToPoint transforms a pixel with depth to a 3D point in camera space:
// z * K^-1 * (x, y, 1).
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	i00, i01, i02, i11, i12 := params.InverseElements()
	return (i00*x + i01*y + i02) * z, (i11*y + i12) * z, z
}

// InverseElements returns the nonzero entries of K inverse in closed form,
// exploiting that K is upper triangular with a unit bottom-right entry:
//
//	| i00 i01 i02 |
//	|  0  i11 i12 |
//	|  0   0   1  |
func (params *PinholeCameraIntrinsics) InverseElements() (i00, i01, i02, i11, i12 float64) {
	i00 = 1 / params.Fx
	i01 = -params.Skew / (params.Fx * params.Fy)
	i02 = (params.Skew*params.Ppy - params.Ppx*params.Fy) / (params.Fx * params.Fy)
	i11 = 1 / params.Fy
	i12 = -params.Ppy / params.Fy
	return
}

// PointsFromDepth back-projects a depth grid into a grid of 3D camera-space
// points: each pixel (u, v) with depth d maps to d * K^-1 * (u, v, 1).
func PointsFromDepth[T rgrid.Float](params *PinholeCameraIntrinsics, depth *rgrid.Map[T]) *rgrid.Vec3Map[T] {
	i00, i01, i02, i11, i12 := params.InverseElements()
	out := rgrid.NewVec3Map[T](depth.Cols(), depth.Rows())
	for v := 0; v < depth.Rows(); v++ {
		for u := 0; u < depth.Cols(); u++ {
			d := float64(depth.At(u, v))
			x := (i00*float64(u) + i01*float64(v) + i02) * d
			y := (i11*float64(v) + i12) * d
			out.Set(u, v, T(x), T(y), T(d))
		}
	}
	return out
}
