package normals

import (
	"math"

	"github.com/edgevision/rangenormals/rgrid"
	"github.com/edgevision/rangenormals/utils"
)

// sriEngine estimates normals by resampling the radius image onto a uniform
// spherical (theta, phi) grid, differentiating it there, and rotating the
// derivatives back into camera space with a precomputed per-cell matrix.
type sriEngine[T rgrid.Float] struct {
	conf Config

	rHat *rgrid.Mat3Map[T] // closed-form rotation per spherical cell

	thetaStep float64
	phiStep   float64

	// separable derivative kernels, rescaled by the angular steps
	kxDx, kyDx []T
	kxDy, kyDy []T

	toSpherical *rgrid.FixedPointMap // samples the image at each spherical cell
	toImage     *rgrid.FixedPointMap // samples the spherical grid at each pixel
}

func newSRIEngine[T rgrid.Float](conf Config) (*sriEngine[T], error) {
	params, err := conf.pinhole()
	if err != nil {
		return nil, err
	}
	rows, cols := conf.Rows, conf.Cols
	_, sinTheta, _, sinPhi := bearingGrids[T](rows, cols, params)

	kxDx, kyDx, err := rgrid.DerivKernels[T](1, 0, conf.WindowSize)
	if err != nil {
		return nil, err
	}
	kxDy, kyDy, err := rgrid.DerivKernels[T](0, 1, conf.WindowSize)
	if err != nil {
		return nil, err
	}

	// angular extent of the grid, measured along the first row and the
	// center column
	minTheta := math.Asin(float64(sinTheta.At(0, 0)))
	maxTheta := math.Asin(float64(sinTheta.At(cols-1, 0)))
	minPhi := math.Asin(float64(sinPhi.At(cols/2-1, 0)))
	maxPhi := math.Asin(float64(sinPhi.At(cols/2-1, rows-1)))

	e := &sriEngine[T]{
		conf:      conf,
		rHat:      rgrid.NewMat3Map[T](cols, rows),
		thetaStep: (maxTheta - minTheta) / float64(cols-1),
		phiStep:   (maxPhi - minPhi) / float64(rows-1),
		kxDx:      kxDx,
		kyDx:      kyDx,
		kxDy:      kxDy,
		kyDy:      kyDy,
	}

	forward := rgrid.NewPointMap(cols, rows)
	utils.ParallelForEachRow(rows, func(phiInt int) {
		phi := minPhi + float64(phiInt)*e.phiStep
		sp, cp := math.Sincos(phi)
		for thetaInt := 0; thetaInt < cols; thetaInt++ {
			theta := minTheta + float64(thetaInt)*e.thetaStep
			st, ct := math.Sincos(theta)

			// project the spherical basis point back into the image to
			// build the image -> spherical sampling table
			u, v := params.PointToPixel(st*cp, sp, ct*cp)
			forward.Set(thetaInt, phiInt, float32(u), float32(v))

			// rotation from the spherical basis; the first column carries
			// an extra reflection so the combined expression matches the
			// geometric normal definition (see the gradient form of a
			// surface normal in spherical coordinates)
			e.rHat.Set(thetaInt, phiInt, [9]T{
				T(-st * cp), T(ct / cp), T(-st * sp),
				T(-sp), 0, T(cp),
				T(-ct * cp), T(-st / cp), T(-ct * sp),
			})
		}
	})
	e.toSpherical = forward.ToFixedPoint()

	// closed-form spherical coordinate of each pixel's back-projected ray
	inverse := rgrid.NewPointMap(cols, rows)
	invFx, invFy := 1/params.Fx, 1/params.Fy
	utils.ParallelForEachRow(rows, func(i int) {
		y := (float64(i) - params.Ppy) * invFy
		for j := 0; j < cols; j++ {
			x := (float64(j) - params.Ppx) * invFx
			theta := math.Atan(x)
			phi := math.Asin(y / math.Sqrt(x*x+y*y+1))
			inverse.Set(j, i,
				float32((theta-minTheta)/e.thetaStep),
				float32((phi-minPhi)/e.phiStep))
		}
	})
	e.toImage = inverse.ToFixedPoint()

	// derivatives are taken on the resampled grid whose spacing is the
	// angular step, not one pixel
	rgrid.ScaleKernel(e.kxDx, T(1/e.thetaStep))
	rgrid.ScaleKernel(e.kyDy, T(1/e.phiStep))

	return e, nil
}

func (e *sriEngine[T]) cfg() Config { return e.conf }

func (e *sriEngine[T]) compute(g rgrid.Grid) (NormalMap, error) {
	points, err := pointsAt[T](g)
	if err != nil {
		return nil, err
	}
	radius := radiusFromPoints(points)
	rows, cols := e.conf.Rows, e.conf.Cols

	// move the radius image onto the uniform spherical grid so the
	// derivative kernels see equal angular spacing
	r := rgrid.Remap(radius, e.toSpherical)
	rTheta := rgrid.SepFilter2D(r, e.kxDx, e.kyDx)
	rPhi := rgrid.SepFilter2D(r, e.kxDy, e.kyDy)

	normals := rgrid.NewVec3Map[T](cols, rows)
	rData := r.Data()
	tData := rTheta.Data()
	pData := rPhi.Data()
	out := normals.Data()
	rot := e.rHat.Data()
	utils.ParallelForEachRow(rows, func(y int) {
		for i := y * cols; i < (y+1)*cols; i++ {
			rv := rData[i]
			if rgrid.IsNaN(rv) {
				out[3*i] = rv
				out[3*i+1] = rv
				out[3*i+2] = rv
				continue
			}
			a := tData[i] / rv
			b := pData[i] / rv
			k := 9 * i
			// the center entry of the rotation is zero
			out[3*i], out[3*i+1], out[3*i+2] = signNormal(
				rot[k]+rot[k+1]*a+rot[k+2]*b,
				rot[k+3]+rot[k+5]*b,
				rot[k+6]+rot[k+7]*a+rot[k+8]*b,
			)
		}
	})

	// back to pixel space; interpolating unit vectors denormalizes them, so
	// run the sign/normalize pass once more on the resampled grid
	result := rgrid.RemapVec3(normals, e.toImage)
	res := result.Data()
	utils.ParallelForEachRow(rows, func(y int) {
		for i := y * cols; i < (y+1)*cols; i++ {
			res[3*i], res[3*i+1], res[3*i+2] = signNormal(res[3*i], res[3*i+1], res[3*i+2])
		}
	})
	return &normalMap[T]{vecs: result}, nil
}
