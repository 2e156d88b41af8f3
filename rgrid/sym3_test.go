package rgrid

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestInvertSym3AgainstGonum(t *testing.T) {
	// a comfortably positive-definite symmetric matrix
	m := [9]float64{
		4, 1, 0.5,
		1, 3, 0.25,
		0.5, 0.25, 2,
	}
	inv, ok := InvertSym3(m)
	test.That(t, ok, test.ShouldBeTrue)

	var want mat.Dense
	err := want.Inverse(mat.NewDense(3, 3, m[:]))
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, inv[3*i+j], test.ShouldAlmostEqual, want.At(i, j), 1e-12)
		}
	}
}

func TestInvertSym3Singular(t *testing.T) {
	// rank one: the outer product of (1, 2, 3) with itself
	m := [9]float64{
		1, 2, 3,
		2, 4, 6,
		3, 6, 9,
	}
	inv, ok := InvertSym3(m)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, inv, test.ShouldResemble, [9]float64{})

	_, ok = InvertSym3([9]float32{})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestInvertSym3Float32(t *testing.T) {
	m := [9]float32{
		2, 0, 0,
		0, 5, 0,
		0, 0, 8,
	}
	inv, ok := InvertSym3(m)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, float64(inv[0]), test.ShouldAlmostEqual, 0.5, 1e-6)
	test.That(t, float64(inv[4]), test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, float64(inv[8]), test.ShouldAlmostEqual, 0.125, 1e-6)
	test.That(t, float64(inv[1]), test.ShouldAlmostEqual, 0, 1e-6)
}
