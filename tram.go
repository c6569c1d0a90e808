package tram

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by the public API. Use errors.Is to
// classify failures.
var (
	// ErrInvalidArgument indicates a bad argument at a public entry point:
	// mismatched shapes, an unknown method name, or a component count
	// outside the valid range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFitted is returned by Predict or Coordinates when Fit has not
	// been called (or has not succeeded) on the instance.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrEigenFailed indicates an eigensolver failure: non-convergence or
	// a singular weight matrix from degenerate start points.
	ErrEigenFailed = errors.New("eigensolver failed")

	// ErrUnsupported is returned by Predict on models that have no
	// out-of-sample extension (the diffusion-map based variants).
	ErrUnsupported = errors.New("operation not supported")
)

// Ensemble is a start-point sample ensemble: for each of N start points,
// M sample vectors of dimension Dims, stored flat in row-major order so
// that point (i, m) begins at Data[(i*M+m)*Dims].
//
// For the long-trajectory variant, an Ensemble with M == 1 represents the
// trajectory itself, steps in time order.
type Ensemble struct {
	Data []float64
	N    int // number of start points
	M    int // samples per start point
	Dims int // dimensionality of each sample
}

// NewEnsemble validates shape parameters against the data length and wraps
// the data in an Ensemble. The slice is retained, not copied.
func NewEnsemble(data []float64, n, m, dims int) (*Ensemble, error) {
	if n < 1 || m < 1 || dims < 1 {
		return nil, fmt.Errorf("tram: ensemble shape (%d, %d, %d) must be positive: %w", n, m, dims, ErrInvalidArgument)
	}
	if len(data) != n*m*dims {
		return nil, fmt.Errorf("tram: data length %d does not match shape (%d, %d, %d): %w", len(data), n, m, dims, ErrInvalidArgument)
	}
	return &Ensemble{Data: data, N: n, M: m, Dims: dims}, nil
}

// Point returns the sample vector for start point i, simulation m,
// as a subslice of the underlying data.
func (e *Ensemble) Point(i, m int) []float64 {
	base := (i*e.M + m) * e.Dims
	return e.Data[base : base+e.Dims]
}

// Cloud returns the point cloud of start point i as a zero-copy view.
func (e *Ensemble) Cloud(i int) PointCloud {
	base := i * e.M * e.Dims
	return PointCloud{Data: e.Data[base : base+e.M*e.Dims], N: e.M, Dims: e.Dims}
}

// Clouds returns one point cloud per start point.
func (e *Ensemble) Clouds() []PointCloud {
	clouds := make([]PointCloud, e.N)
	for i := range clouds {
		clouds[i] = e.Cloud(i)
	}
	return clouds
}

// Manifold is the common fitting surface of all orchestration variants.
type Manifold interface {
	// Fit consumes a start-point ensemble and computes the reaction
	// coordinate. The returned Model is also retained on the variant
	// instance (overwriting any previous fit) until the next Fit.
	Fit(samples *Ensemble) (Model, error)
}

// Model is a fitted reaction-coordinate model.
type Model interface {
	// Coordinates returns the reaction-coordinate values at the fitted
	// start points as a flat n×k row-major matrix.
	Coordinates(k int) ([]float64, error)

	// Predict evaluates the reaction coordinate at n new points given as a
	// flat row-major matrix. Models without an out-of-sample extension
	// return an error wrapping ErrUnsupported.
	Predict(points []float64, n int) ([]float64, error)
}
