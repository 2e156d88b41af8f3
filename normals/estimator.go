package normals

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/edgevision/rangenormals/rgrid"
)

// NormalMap is the result of a Compute call: one camera-facing unit vector
// per pixel, or a sentinel where no normal could be estimated.
type NormalMap interface {
	Rows() int
	Cols() int
	Precision() Precision
	// At returns the normal at (x, y) and whether it is valid; sentinel
	// pixels return false.
	At(x, y int) (r3.Vector, bool)
	// Grid exposes the backing vector grid (*rgrid.Vec3Map at the
	// configured precision).
	Grid() rgrid.Grid
}

type normalMap[T rgrid.Float] struct {
	vecs *rgrid.Vec3Map[T]
}

func (n *normalMap[T]) Rows() int { return n.vecs.Rows() }
func (n *normalMap[T]) Cols() int { return n.vecs.Cols() }
func (n *normalMap[T]) Grid() rgrid.Grid { return n.vecs }

func (n *normalMap[T]) Precision() Precision {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return Single
	}
	return Double
}

func (n *normalMap[T]) At(x, y int) (r3.Vector, bool) {
	a, b, c := n.vecs.At(x, y)
	if rgrid.IsNaN(a) || rgrid.IsNaN(b) || rgrid.IsNaN(c) {
		return r3.Vector{}, false
	}
	return r3.Vector{X: float64(a), Y: float64(b), Z: float64(c)}, true
}

// engine is one primed (method, precision) implementation. Engines are
// immutable once built; the estimator replaces them wholesale.
type engine interface {
	cfg() Config
	compute(g rgrid.Grid) (NormalMap, error)
}

// Estimator computes per-pixel surface normals from depth or point grids.
// Method-specific precomputed state is cached and keyed on the full
// configuration; it is rebuilt lazily whenever the configuration changes.
//
// An Estimator is not safe for concurrent use; guard it externally if it is
// shared across goroutines.
type Estimator struct {
	conf   Config
	impl   engine
	logger golog.Logger
}

// New validates the configuration and returns an estimator for it. No
// per-method state is built until the first Compute (or Initialize) call.
func New(conf Config, logger golog.Logger) (*Estimator, error) {
	if err := conf.CheckValid(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = golog.Global()
	}
	return &Estimator{conf: conf, logger: logger}, nil
}

// Config returns the active configuration.
func (e *Estimator) Config() Config {
	return e.conf
}

// Reconfigure stores a new configuration. Cached state is not rebuilt here;
// the next Compute call notices the mismatch and rebuilds.
func (e *Estimator) Reconfigure(conf Config) error {
	if err := conf.CheckValid(); err != nil {
		return err
	}
	e.conf = conf
	return nil
}

// Initialize eagerly builds (or validates) the cached per-method state for
// the active configuration, so the first Compute call pays no setup cost.
func (e *Estimator) Initialize() error {
	return e.ensureEngine()
}

func (e *Estimator) ensureEngine() error {
	if e.impl != nil && e.impl.cfg().Equal(e.conf) {
		return nil
	}
	e.logger.Debugw("building normal estimation state",
		"method", e.conf.Method.String(),
		"precision", e.conf.Precision.String(),
		"rows", e.conf.Rows,
		"cols", e.conf.Cols,
		"window", e.conf.WindowSize,
	)
	impl, err := newEngine(e.conf)
	if err != nil {
		return err
	}
	e.impl = impl
	return nil
}

func newEngine(conf Config) (engine, error) {
	switch conf.Method {
	case FALS:
		if conf.Precision == Single {
			return newFALSEngine[float32](conf)
		}
		return newFALSEngine[float64](conf)
	case LINEMOD:
		if conf.Precision == Single {
			return newLINEMODEngine[float32](conf)
		}
		return newLINEMODEngine[float64](conf)
	case SRI:
		if conf.Precision == Single {
			return newSRIEngine[float32](conf)
		}
		return newSRIEngine[float64](conf)
	default:
		return nil, errors.Wrapf(ErrConfiguration, "unknown method %d", conf.Method)
	}
}

// Compute estimates the normal grid for the given input. FALS and SRI
// require a 3-channel point grid at floating precision; LINEMOD additionally
// accepts single-channel depth grids (integer or floating). The output has
// the input's spatial extent, three channels and the configured precision.
func (e *Estimator) Compute(g rgrid.Grid) (NormalMap, error) {
	if err := e.validateShape(g); err != nil {
		return nil, err
	}
	if err := e.ensureEngine(); err != nil {
		return nil, err
	}
	return e.impl.compute(g)
}

func (e *Estimator) validateShape(g rgrid.Grid) error {
	if g == nil {
		return errors.Wrap(ErrInputShape, "input grid is nil")
	}
	if g.Rows() != e.conf.Rows || g.Cols() != e.conf.Cols {
		return errors.Wrapf(ErrInputShape, "input has size %dx%d, configured for %dx%d",
			g.Rows(), g.Cols(), e.conf.Rows, e.conf.Cols)
	}
	switch g.(type) {
	case *rgrid.Vec3Map[float32], *rgrid.Vec3Map[float64]:
		return nil
	case *rgrid.Map[float32], *rgrid.Map[float64], *rgrid.DepthMap:
		if e.conf.Method == LINEMOD {
			return nil
		}
		return errors.Wrapf(ErrInputShape, "method %s requires a 3-channel point grid", e.conf.Method)
	default:
		return errors.Wrapf(ErrInputShape, "unsupported input grid type %T", g)
	}
}

// pointsAt coerces a validated input grid to a point grid at precision T,
// converting between floating widths when they differ.
func pointsAt[T rgrid.Float](g rgrid.Grid) (*rgrid.Vec3Map[T], error) {
	if pts, ok := g.(*rgrid.Vec3Map[T]); ok {
		return pts, nil
	}
	switch v := g.(type) {
	case *rgrid.Vec3Map[float32]:
		return convertVec3[float32, T](v), nil
	case *rgrid.Vec3Map[float64]:
		return convertVec3[float64, T](v), nil
	default:
		return nil, errors.Wrapf(ErrInputShape, "expected a 3-channel point grid, got %T", g)
	}
}

func convertVec3[U, T rgrid.Float](src *rgrid.Vec3Map[U]) *rgrid.Vec3Map[T] {
	out := rgrid.NewVec3Map[T](src.Cols(), src.Rows())
	in := src.Data()
	dst := out.Data()
	for i, v := range in {
		dst[i] = T(v)
	}
	return out
}
