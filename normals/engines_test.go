package normals

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/edgevision/rangenormals/rgrid"
	"github.com/edgevision/rangenormals/transform"
)

// planePoints back-projects a constant-depth grid into a frontal-plane point
// grid using the configuration's intrinsics.
func planePoints[T rgrid.Float](t *testing.T, conf Config, depth float64) *rgrid.Vec3Map[T] {
	t.Helper()
	params, err := conf.pinhole()
	test.That(t, err, test.ShouldBeNil)
	dm := rgrid.NewMap[T](conf.Cols, conf.Rows)
	dm.Fill(T(depth))
	return transform.PointsFromDepth(params, dm)
}

// maxDeviation returns the largest absolute componentwise difference from
// want over the valid pixels of the inset interior, plus how many interior
// pixels were sentinel.
func maxDeviation(nm NormalMap, want r3.Vector, insetX, insetY int) (float64, int) {
	var maxDev float64
	invalid := 0
	for y := insetY; y < nm.Rows()-insetY; y++ {
		for x := insetX; x < nm.Cols()-insetX; x++ {
			n, ok := nm.At(x, y)
			if !ok {
				invalid++
				continue
			}
			d := math.Max(math.Abs(n.X-want.X), math.Max(math.Abs(n.Y-want.Y), math.Abs(n.Z-want.Z)))
			maxDev = math.Max(maxDev, d)
		}
	}
	return maxDev, invalid
}

// checkUnitCameraFacing verifies the two per-pixel invariants on every valid
// output pixel: unit Euclidean norm and a non-positive depth-axis component.
func checkUnitCameraFacing(t *testing.T, nm NormalMap) {
	t.Helper()
	var worstNorm, worstZ float64
	valid := 0
	for y := 0; y < nm.Rows(); y++ {
		for x := 0; x < nm.Cols(); x++ {
			n, ok := nm.At(x, y)
			if !ok {
				continue
			}
			valid++
			worstNorm = math.Max(worstNorm, math.Abs(n.Norm()-1))
			worstZ = math.Max(worstZ, n.Z)
		}
	}
	test.That(t, valid, test.ShouldBeGreaterThan, 0)
	test.That(t, worstNorm, test.ShouldBeLessThan, 1e-4)
	test.That(t, worstZ, test.ShouldBeLessThanOrEqualTo, 0)
}

func TestFrontalPlaneFALS(t *testing.T) {
	for _, prec := range []Precision{Single, Double} {
		conf := validConfig(FALS)
		conf.Precision = prec
		est, err := New(conf, nil)
		test.That(t, err, test.ShouldBeNil)

		points := planePoints[float64](t, conf, 1000)
		nm, err := est.Compute(points)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, nm.Precision(), test.ShouldEqual, prec)
		test.That(t, nm.Rows(), test.ShouldEqual, conf.Rows)
		test.That(t, nm.Cols(), test.ShouldEqual, conf.Cols)

		dev, invalid := maxDeviation(nm, r3.Vector{Z: -1}, 1, 1)
		test.That(t, invalid, test.ShouldEqual, 0)
		test.That(t, dev, test.ShouldBeLessThan, 1e-3)
	}
}

func TestFrontalPlaneLINEMOD(t *testing.T) {
	conf := validConfig(LINEMOD)
	est, err := New(conf, nil)
	test.That(t, err, test.ShouldBeNil)

	depth := rgrid.NewMap[float64](conf.Cols, conf.Rows)
	depth.Fill(1000)
	nm, err := est.Compute(depth)
	test.That(t, err, test.ShouldBeNil)

	dev, invalid := maxDeviation(nm, r3.Vector{Z: -1}, linemodRadius, linemodRadius)
	test.That(t, invalid, test.ShouldEqual, 0)
	test.That(t, dev, test.ShouldBeLessThan, 1e-3)
}

func TestFrontalPlaneSRI(t *testing.T) {
	for _, prec := range []Precision{Single, Double} {
		conf := validConfig(SRI)
		conf.Precision = prec
		est, err := New(conf, nil)
		test.That(t, err, test.ShouldBeNil)

		points := planePoints[float64](t, conf, 1000)
		nm, err := est.Compute(points)
		test.That(t, err, test.ShouldBeNil)

		// stay clear of the spherical-grid corners, which fall outside the
		// image and resample as sentinel
		dev, _ := maxDeviation(nm, r3.Vector{Z: -1}, conf.Cols/6, conf.Rows/6)
		test.That(t, dev, test.ShouldBeLessThan, 1e-3)
	}
}

func TestUnitNormAndCameraFacing(t *testing.T) {
	// a sloped depth field, curved in camera space
	conf := validConfig(FALS)
	conf.Rows, conf.Cols = 120, 160
	conf.Intrinsics.Set(0, 2, 79.5)
	conf.Intrinsics.Set(1, 2, 59.5)
	params, err := conf.pinhole()
	test.That(t, err, test.ShouldBeNil)

	depth := rgrid.NewMap[float64](conf.Cols, conf.Rows)
	for y := 0; y < conf.Rows; y++ {
		for x := 0; x < conf.Cols; x++ {
			depth.Set(x, y, 1200+2*float64(x)-float64(y))
		}
	}
	points := transform.PointsFromDepth(params, depth)

	for _, method := range []Method{FALS, LINEMOD, SRI} {
		mc := conf
		mc.Method = method
		est, err := New(mc, nil)
		test.That(t, err, test.ShouldBeNil)
		nm, err := est.Compute(points)
		test.That(t, err, test.ShouldBeNil)
		checkUnitCameraFacing(t, nm)
	}
}

func TestLINEMODBorderBand(t *testing.T) {
	conf := validConfig(LINEMOD)
	conf.Rows, conf.Cols = 30, 40
	est, err := New(conf, nil)
	test.That(t, err, test.ShouldBeNil)

	depth := rgrid.NewEmptyDepthMap(conf.Cols, conf.Rows)
	for i := range depth.Data() {
		depth.Data()[i] = 800
	}
	nm, err := est.Compute(depth)
	test.That(t, err, test.ShouldBeNil)

	for y := 0; y < conf.Rows; y++ {
		for x := 0; x < conf.Cols; x++ {
			_, ok := nm.At(x, y)
			inBand := x < linemodRadius || y < linemodRadius ||
				x >= conf.Cols-linemodRadius || y >= conf.Rows-linemodRadius
			test.That(t, ok, test.ShouldEqual, !inBand)
		}
	}
}

func TestLINEMODDiscontinuityExclusion(t *testing.T) {
	conf := validConfig(LINEMOD)
	conf.Rows, conf.Cols = 30, 30
	est, err := New(conf, nil)
	test.That(t, err, test.ShouldBeNil)

	cx, cy := 15, 15
	base := func() *rgrid.Map[float64] {
		m := rgrid.NewMap[float64](conf.Cols, conf.Rows)
		m.Fill(1000)
		return m
	}
	normalAt := func(m *rgrid.Map[float64]) r3.Vector {
		nm, err := est.Compute(m)
		test.That(t, err, test.ShouldBeNil)
		n, ok := nm.At(cx, cy)
		test.That(t, ok, test.ShouldBeTrue)
		return n
	}

	clean := normalAt(base())
	test.That(t, clean.Z, test.ShouldAlmostEqual, -1, 1e-9)

	// a jump beyond the 50-unit threshold at one sample is excluded, so the
	// fit matches the clean plane exactly; the size of the jump is irrelevant
	jumpSmall := base()
	jumpSmall.Set(cx+linemodSampleStep, cy, 1000+200)
	jumpBig := base()
	jumpBig.Set(cx+linemodSampleStep, cy, 1000+5000)
	nSmall := normalAt(jumpSmall)
	nBig := normalAt(jumpBig)
	test.That(t, nSmall, test.ShouldResemble, clean)
	test.That(t, nBig, test.ShouldResemble, nSmall)

	// the same offset within the threshold does tilt the fit
	step := base()
	step.Set(cx+linemodSampleStep, cy, 1000+40)
	nStep := normalAt(step)
	test.That(t, nStep.Sub(clean).Norm(), test.ShouldBeGreaterThan, 1e-6)
}

func TestLINEMODInputForms(t *testing.T) {
	conf := validConfig(LINEMOD)
	conf.Rows, conf.Cols = 24, 32
	est, err := New(conf, nil)
	test.That(t, err, test.ShouldBeNil)

	// a point grid contributes only its depth channel
	points := planePoints[float64](t, conf, 900)
	fromPoints, err := est.Compute(points)
	test.That(t, err, test.ShouldBeNil)

	depth := rgrid.NewMap[float64](conf.Cols, conf.Rows)
	for y := 0; y < conf.Rows; y++ {
		for x := 0; x < conf.Cols; x++ {
			_, _, z := points.At(x, y)
			depth.Set(x, y, z)
		}
	}
	fromDepth, err := est.Compute(depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t,
		fromPoints.Grid().(*rgrid.Vec3Map[float64]).Data(),
		test.ShouldResemble,
		fromDepth.Grid().(*rgrid.Vec3Map[float64]).Data())

	// integer sensor depth works too
	raw := rgrid.NewEmptyDepthMap(conf.Cols, conf.Rows)
	for i := range raw.Data() {
		raw.Data()[i] = 900
	}
	fromRaw, err := est.Compute(raw)
	test.That(t, err, test.ShouldBeNil)
	dev, _ := maxDeviation(fromRaw, r3.Vector{Z: -1}, linemodRadius, linemodRadius)
	test.That(t, dev, test.ShouldBeLessThan, 1e-3)
}

func TestSRISphericalRoundTrip(t *testing.T) {
	conf := validConfig(SRI)
	conf.Rows, conf.Cols = 120, 160
	conf.Intrinsics.Set(0, 2, 79.5)
	conf.Intrinsics.Set(1, 2, 59.5)
	eng, err := newSRIEngine[float64](conf)
	test.That(t, err, test.ShouldBeNil)

	// push an identity coordinate field through the forward table and back
	u := rgrid.NewMap[float64](conf.Cols, conf.Rows)
	v := rgrid.NewMap[float64](conf.Cols, conf.Rows)
	for y := 0; y < conf.Rows; y++ {
		for x := 0; x < conf.Cols; x++ {
			u.Set(x, y, float64(x))
			v.Set(x, y, float64(y))
		}
	}
	uBack := rgrid.Remap(rgrid.Remap(u, eng.toSpherical), eng.toImage)
	vBack := rgrid.Remap(rgrid.Remap(v, eng.toSpherical), eng.toImage)

	var maxErr float64
	for y := conf.Rows / 6; y < conf.Rows-conf.Rows/6; y++ {
		for x := conf.Cols / 6; x < conf.Cols-conf.Cols/6; x++ {
			maxErr = math.Max(maxErr, math.Abs(uBack.At(x, y)-float64(x)))
			maxErr = math.Max(maxErr, math.Abs(vBack.At(x, y)-float64(y)))
		}
	}
	test.That(t, maxErr, test.ShouldBeLessThan, 0.5)
}

func TestSentinelPropagation(t *testing.T) {
	for _, method := range []Method{FALS, SRI} {
		conf := validConfig(method)
		conf.Rows, conf.Cols = 60, 80
		conf.Intrinsics.Set(0, 2, 39.5)
		conf.Intrinsics.Set(1, 2, 29.5)
		est, err := New(conf, nil)
		test.That(t, err, test.ShouldBeNil)

		points := planePoints[float64](t, conf, 1000)
		hx, hy := 40, 30
		points.Set(hx, hy, rgrid.NaN[float64](), rgrid.NaN[float64](), rgrid.NaN[float64]())
		nm, err := est.Compute(points)
		test.That(t, err, test.ShouldBeNil)

		// the bad pixel itself is sentinel; the grid as a whole survives
		_, ok := nm.At(hx, hy)
		test.That(t, ok, test.ShouldBeFalse)
		_, ok = nm.At(20, 20)
		test.That(t, ok, test.ShouldBeTrue)
	}
}
