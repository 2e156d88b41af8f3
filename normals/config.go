// Package normals estimates per-pixel surface normal vectors from dense
// range-sensor grids. Three interchangeable methods are provided, selected
// and cached per configuration by an Estimator.
package normals

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/edgevision/rangenormals/transform"
)

// ErrConfiguration is wrapped by every configuration validation failure.
var ErrConfiguration = errors.New("invalid normal estimator configuration")

// ErrInputShape is wrapped by every input grid shape/type mismatch.
var ErrInputShape = errors.New("input grid does not match the configured method")

// Precision selects the floating-point width the estimator computes at.
type Precision int

const (
	// Single computes at float32.
	Single Precision = iota + 1
	// Double computes at float64.
	Double
)

func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return "unknown"
	}
}

// Method selects the normal estimation algorithm.
type Method int

const (
	// FALS is windowed-covariance least squares over precomputed view
	// directions ("Fast and Accurate Computation of Surface Normals from
	// Range Images", Badino et al.).
	FALS Method = iota + 1
	// LINEMOD is the fast local depth-gradient fit from "Gradient Response
	// Maps for Real-Time Detection of Texture-Less Objects", Hinterstoisser
	// et al., robust to depth discontinuities.
	LINEMOD
	// SRI differentiates the radius image in spherical (theta, phi)
	// coordinates (Badino et al.).
	SRI
)

func (m Method) String() string {
	switch m {
	case FALS:
		return "fals"
	case LINEMOD:
		return "linemod"
	case SRI:
		return "sri"
	default:
		return "unknown"
	}
}

// Config fully determines an estimator's behavior. It is compared
// structurally on every Compute call to decide whether cached per-method
// state is still usable.
type Config struct {
	Rows       int
	Cols       int
	Precision  Precision
	Intrinsics *mat.Dense // 3x3 camera calibration matrix K
	WindowSize int        // odd, one of 1, 3, 5, 7
	Method     Method
}

// CheckValid reports every reason the configuration cannot be used.
func (c Config) CheckValid() error {
	var err error
	if c.Rows <= 0 || c.Cols <= 0 {
		err = multierr.Append(err, errors.Errorf("grid size %dx%d is not positive", c.Rows, c.Cols))
	}
	if c.Precision != Single && c.Precision != Double {
		err = multierr.Append(err, errors.Errorf("precision %d is not single or double", c.Precision))
	}
	switch c.WindowSize {
	case 1, 3, 5, 7:
	default:
		err = multierr.Append(err, errors.Errorf("window size %d is not one of 1, 3, 5, 7", c.WindowSize))
	}
	if c.Intrinsics == nil {
		err = multierr.Append(err, errors.New("intrinsic matrix is nil"))
	} else if r, cols := c.Intrinsics.Dims(); r != 3 || cols != 3 {
		err = multierr.Append(err, errors.Errorf("intrinsic matrix must be 3x3, got %dx%d", r, cols))
	} else if _, perr := transform.NewPinholeCameraIntrinsicsFromMatrix(c.Intrinsics); perr != nil {
		err = multierr.Append(err, perr)
	}
	switch c.Method {
	case FALS, LINEMOD:
	case SRI:
		// the spherical grid derives angular steps from the extent, so a
		// single row or column leaves them undefined
		if c.Rows < 2 || c.Cols < 2 {
			err = multierr.Append(err, errors.Errorf("grid size %dx%d is too small for sri", c.Rows, c.Cols))
		}
	default:
		err = multierr.Append(err, errors.Errorf("method %d is not fals, linemod or sri", c.Method))
	}
	if err != nil {
		return multierr.Append(ErrConfiguration, err)
	}
	return nil
}

// Equal reports structural equality, including elementwise equality of the
// intrinsic matrices.
func (c Config) Equal(other Config) bool {
	if c.Rows != other.Rows || c.Cols != other.Cols ||
		c.Precision != other.Precision || c.WindowSize != other.WindowSize ||
		c.Method != other.Method {
		return false
	}
	if c.Intrinsics == nil || other.Intrinsics == nil {
		return c.Intrinsics == other.Intrinsics
	}
	return mat.Equal(c.Intrinsics, other.Intrinsics)
}

func (c Config) pinhole() (*transform.PinholeCameraIntrinsics, error) {
	return transform.NewPinholeCameraIntrinsicsFromMatrix(c.Intrinsics)
}
