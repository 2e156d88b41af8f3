package normals

import (
	"image"

	"github.com/edgevision/rangenormals/rgrid"
	"github.com/edgevision/rangenormals/utils"
)

// falsEngine estimates normals by windowed least squares over precomputed
// unit view directions: the windowed view-direction covariance is inverted
// once per configuration, and each Compute reduces to a box average and a
// 3x3 multiply per pixel.
type falsEngine[T rgrid.Float] struct {
	conf Config

	v    *rgrid.Vec3Map[T] // unit view direction per pixel
	mInv *rgrid.Mat3Map[T] // windowed inverse view covariance per pixel
}

func newFALSEngine[T rgrid.Float](conf Config) (*falsEngine[T], error) {
	params, err := conf.pinhole()
	if err != nil {
		return nil, err
	}
	rows, cols := conf.Rows, conf.Cols
	cosTheta, sinTheta, cosPhi, sinPhi := bearingGrids[T](rows, cols, params)

	v := rgrid.NewVec3Map[T](cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			st, ct := sinTheta.At(x, y), cosTheta.At(x, y)
			sp, cp := sinPhi.At(x, y), cosPhi.At(x, y)
			v.Set(x, y, st*cp, sp, ct*cp)
		}
	}

	// windowed covariance of the view directions
	m := rgrid.NewMat3Map[T](cols, rows)
	vData := v.Data()
	mData := m.Data()
	utils.ParallelForEachRow(rows, func(y int) {
		for i := y * cols; i < (y+1)*cols; i++ {
			a, b, c := vData[3*i], vData[3*i+1], vData[3*i+2]
			k := 9 * i
			mData[k] = a * a
			mData[k+1] = a * b
			mData[k+2] = a * c
			mData[k+3] = b * a
			mData[k+4] = b * b
			mData[k+5] = b * c
			mData[k+6] = c * a
			mData[k+7] = c * b
			mData[k+8] = c * c
		}
	})
	m = rgrid.BoxMeanMat3(m, conf.WindowSize)

	// the averaged covariance is positive semi-definite; a singular window
	// inverts to the zero matrix, which flows through to the sentinel
	mInv := rgrid.NewMat3Map[T](cols, rows)
	utils.ParallelForEachPixel(image.Point{X: cols, Y: rows}, func(x, y int) {
		inv, _ := rgrid.InvertSym3(m.At(x, y))
		mInv.Set(x, y, inv)
	})

	return &falsEngine[T]{conf: conf, v: v, mInv: mInv}, nil
}

func (e *falsEngine[T]) cfg() Config { return e.conf }

func (e *falsEngine[T]) compute(g rgrid.Grid) (NormalMap, error) {
	points, err := pointsAt[T](g)
	if err != nil {
		return nil, err
	}
	radius := radiusFromPoints(points)
	rows, cols := e.conf.Rows, e.conf.Cols

	// B = V / r, zeroed where the radius is undefined so the box average
	// stays finite
	b := rgrid.NewVec3Map[T](cols, rows)
	rData := radius.Data()
	vData := e.v.Data()
	bData := b.Data()
	utils.ParallelForEachRow(rows, func(y int) {
		for i := y * cols; i < (y+1)*cols; i++ {
			r := rData[i]
			if rgrid.IsNaN(r) {
				continue
			}
			bData[3*i] = vData[3*i] / r
			bData[3*i+1] = vData[3*i+1] / r
			bData[3*i+2] = vData[3*i+2] / r
		}
	})
	b = rgrid.BoxMeanVec3(b, e.conf.WindowSize)

	normals := rgrid.NewVec3Map[T](cols, rows)
	bAvg := b.Data()
	mInv := e.mInv.Data()
	out := normals.Data()
	utils.ParallelForEachRow(rows, func(y int) {
		for i := y * cols; i < (y+1)*cols; i++ {
			r := rData[i]
			if rgrid.IsNaN(r) {
				out[3*i] = r
				out[3*i+1] = r
				out[3*i+2] = r
				continue
			}
			k := 9 * i
			b0, b1, b2 := bAvg[3*i], bAvg[3*i+1], bAvg[3*i+2]
			n0 := mInv[k]*b0 + mInv[k+1]*b1 + mInv[k+2]*b2
			n1 := mInv[k+3]*b0 + mInv[k+4]*b1 + mInv[k+5]*b2
			n2 := mInv[k+6]*b0 + mInv[k+7]*b1 + mInv[k+8]*b2
			out[3*i], out[3*i+1], out[3*i+2] = signNormal(n0, n1, n2)
		}
	})
	return &normalMap[T]{vecs: normals}, nil
}
