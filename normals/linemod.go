package normals

import (
	"math"

	"github.com/pkg/errors"

	"github.com/edgevision/rangenormals/rgrid"
	"github.com/edgevision/rangenormals/utils"
)

const (
	// linemodRadius is the half-width of both the sampling square and the
	// border band left undefined on every edge.
	linemodRadius = 5
	// linemodSampleStep spaces the samples inside the square.
	linemodSampleStep = linemodRadius
	// linemodThreshold excludes samples whose depth differs from the center
	// by more than this many depth units, so the planar fit does not bridge
	// depth discontinuities.
	linemodThreshold = 50
)

// linemodEngine fits a local depth gradient by robust least squares inside a
// small sampling square and converts it to a normal through the inverse
// intrinsic mapping. It needs no per-configuration precomputation.
type linemodEngine[T rgrid.Float] struct {
	conf Config

	// nonzero entries of K^-1 (upper triangular, unit bottom-right)
	i00, i01, i02, i11, i12 float64
}

func newLINEMODEngine[T rgrid.Float](conf Config) (*linemodEngine[T], error) {
	params, err := conf.pinhole()
	if err != nil {
		return nil, err
	}
	e := &linemodEngine[T]{conf: conf}
	e.i00, e.i01, e.i02, e.i11, e.i12 = params.InverseElements()
	return e, nil
}

func (e *linemodEngine[T]) cfg() Config { return e.conf }

func (e *linemodEngine[T]) compute(g rgrid.Grid) (NormalMap, error) {
	switch v := g.(type) {
	case *rgrid.DepthMap:
		return linemodFromDepth(e, v.Data(), v.Cols(), v.Rows()), nil
	case *rgrid.Map[float32]:
		return linemodFromDepth(e, v.Data(), v.Cols(), v.Rows()), nil
	case *rgrid.Map[float64]:
		return linemodFromDepth(e, v.Data(), v.Cols(), v.Rows()), nil
	case *rgrid.Vec3Map[float32]:
		return linemodFromDepth(e, depthChannel(v), v.Cols(), v.Rows()), nil
	case *rgrid.Vec3Map[float64]:
		return linemodFromDepth(e, depthChannel(v), v.Cols(), v.Rows()), nil
	default:
		return nil, errors.Wrapf(ErrInputShape, "unsupported input grid type %T", g)
	}
}

// depthChannel extracts the z channel of a point grid.
func depthChannel[U rgrid.Float](points *rgrid.Vec3Map[U]) []U {
	src := points.Data()
	out := make([]U, len(src)/3)
	for i := range out {
		out[i] = src[3*i+2]
	}
	return out
}

type depthScalar interface {
	~uint16 | ~float32 | ~float64
}

func linemodFromDepth[T rgrid.Float, D depthScalar](e *linemodEngine[T], depth []D, cols, rows int) *normalMap[T] {
	const r = linemodRadius
	const squareSize = 2*r/linemodSampleStep + 1

	var offs, offsX, offsY, offsXX, offsXY, offsYY [squareSize * squareSize]int64
	index := 0
	for j := -r; j <= r; j += linemodSampleStep {
		for i := -r; i <= r; i += linemodSampleStep {
			offsX[index] = int64(i)
			offsY[index] = int64(j)
			offsXX[index] = int64(i * i)
			offsXY[index] = int64(i * j)
			offsYY[index] = int64(j * j)
			offs[index] = int64(j*cols + i)
			index++
		}
	}

	normals := rgrid.NewVec3Map[T](cols, rows)
	normals.Fill(rgrid.NaN[T]())
	out := normals.Data()

	utils.ParallelForEachRow(rows, func(y int) {
		if y < r || y >= rows-r {
			return
		}
		for x := r; x < cols-r; x++ {
			k := y*cols + x
			d := float64(depth[k])

			var a0, a1, a3 int64
			var b0, b1 float64
			for i := 0; i < squareSize*squareSize; i++ {
				delta := float64(depth[k+int(offs[i])]) - d
				if math.Abs(delta) > linemodThreshold {
					continue
				}
				a0 += offsXX[i]
				a1 += offsXY[i]
				a3 += offsYY[i]
				b0 += float64(offsX[i]) * delta
				b1 += float64(offsY[i]) * delta
			}

			// Cramer's rule for the 2x2 normal equations; the division by
			// the determinant is folded into the later normalization, so dx
			// and dy stay scaled by det
			det := float64(a0*a3 - a1*a1)
			dx := float64(a3)*b0 - float64(a1)*b1
			dy := -float64(a1)*b0 + float64(a0)*b1

			// tangent vectors X1-X and X2-X through the inverse intrinsics
			x10 := d*det + float64(x+1)*dx
			x11 := float64(y) * dx
			t1x := e.i00*x10 + e.i01*x11 + e.i02*dx
			t1y := e.i11*x11 + e.i12*dx
			t1z := dx

			x20 := float64(x) * dy
			x21 := d*det + float64(y+1)*dy
			t2x := e.i00*x20 + e.i01*x21 + e.i02*dy
			t2y := e.i11*x21 + e.i12*dy
			t2z := dy

			nx := t1y*t2z - t1z*t2y
			ny := t1z*t2x - t1x*t2z
			nz := t1x*t2y - t1y*t2x
			out[3*k], out[3*k+1], out[3*k+2] = signNormal(T(nx), T(ny), T(nz))
		}
	})
	return &normalMap[T]{vecs: normals}
}
