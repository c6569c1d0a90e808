package tram

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DiffusionOpts controls the diffusion maps eigenproblem.
type DiffusionOpts struct {
	// NComponents is the number of eigenpairs to retain, counted from the
	// largest eigenvalue magnitude. The leading (trivial) eigenpair with
	// λ ≈ 1 is included; downstream code discards it by index. Must be in
	// [1, n-1].
	NComponents int

	// Epsi is the Gaussian bandwidth scale used to convert a distance
	// matrix into a kernel matrix, K = exp(-D²/Epsi). Ignored when
	// IsKernel is set. Must be > 0.
	Epsi float64

	// Alpha is the density-normalization exponent in [0, 1]. 0 disables
	// density compensation; 0.5 (the conventional choice) compensates for
	// nonuniform start-point sampling density.
	Alpha float64

	// IsKernel marks the input as an already-assembled kernel/Gram matrix,
	// skipping the Gaussian conversion. The choice is always explicit,
	// never inferred from the matrix contents.
	IsKernel bool
}

// DefaultDiffusionOpts returns the conventional settings: 10 components,
// unit bandwidth, alpha = 0.5.
func DefaultDiffusionOpts() DiffusionOpts {
	return DiffusionOpts{NComponents: 10, Epsi: 1, Alpha: 0.5}
}

// Eigenpairs holds the retained solution of the diffusion maps
// eigenproblem: K eigenvalues ordered by descending magnitude and the
// corresponding eigenvectors as the columns of an n×K matrix. Produced
// once per fit and read-only afterwards.
type Eigenpairs struct {
	Values  []complex128
	Vectors *mat.CDense
	N, K    int
}

// DiffusionMaps solves the diffusion maps eigenproblem for a symmetric
// n×n pairwise matrix m (flat row-major): Gaussian kernel conversion
// (unless opts.IsKernel), alpha-normalization, row normalization into a
// Markov operator P, and the generalized eigenproblem P v = λ W v with
// W the diagonal weight matrix of pre-normalization sums. Since W is
// diagonal and nonsingular, the problem is solved as the standard
// eigenproblem of W⁻¹P.
//
// Fails with ErrInvalidArgument if opts are out of range, and with
// ErrEigenFailed if a weight vanishes (degenerate/duplicate start points)
// or the eigensolver does not converge.
func DiffusionMaps(m []float64, n int, opts DiffusionOpts) (*Eigenpairs, error) {
	if len(m) != n*n {
		return nil, fmt.Errorf("tram: matrix length %d does not match n*n = %d: %w", len(m), n*n, ErrInvalidArgument)
	}
	if n < 2 {
		return nil, fmt.Errorf("tram: diffusion maps needs at least 2 points, got %d: %w", n, ErrInvalidArgument)
	}
	if opts.NComponents < 1 || opts.NComponents > n-1 {
		return nil, fmt.Errorf("tram: NComponents must be in [1, %d], got %d: %w", n-1, opts.NComponents, ErrInvalidArgument)
	}
	if !opts.IsKernel && opts.Epsi <= 0 {
		return nil, fmt.Errorf("tram: Epsi must be > 0, got %f: %w", opts.Epsi, ErrInvalidArgument)
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("tram: Alpha must be in [0, 1], got %f: %w", opts.Alpha, ErrInvalidArgument)
	}

	kernel := m
	if !opts.IsKernel {
		kernel = make([]float64, n*n)
		for i, d := range m {
			kernel[i] = math.Exp(-d * d / opts.Epsi)
		}
	}

	knorm, err := AlphaNormalize(kernel, n, opts.Alpha)
	if err != nil {
		return nil, err
	}
	p, weights, err := RowNormalize(knorm, n)
	if err != nil {
		return nil, err
	}

	// W⁻¹P: divide each row of the Markov operator by its weight.
	a := make([]float64, n*n)
	for i := 0; i < n; i++ {
		wi := weights[i]
		for j := 0; j < n; j++ {
			a[i*n+j] = p[i*n+j] / wi
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(mat.NewDense(n, n, a), mat.EigenRight); !ok {
		return nil, fmt.Errorf("tram: diffusion maps eigendecomposition did not converge: %w", ErrEigenFailed)
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	// Order eigenpairs by descending eigenvalue magnitude; the n_components
	// largest are retained, trivial pair included.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cmplx.Abs(values[order[a]]) > cmplx.Abs(values[order[b]])
	})

	k := opts.NComponents
	kept := &Eigenpairs{
		Values:  make([]complex128, k),
		Vectors: mat.NewCDense(n, k, nil),
		N:       n,
		K:       k,
	}
	for j := 0; j < k; j++ {
		src := order[j]
		kept.Values[j] = values[src]
		for i := 0; i < n; i++ {
			kept.Vectors.Set(i, j, vectors.At(i, src))
		}
	}
	return kept, nil
}

// AlphaNormalize applies density (alpha) normalization to a symmetric
// kernel matrix: K'[i,j] = K[i,j] / (q_i^α · q_j^α) with q the row sums.
// Fails with ErrEigenFailed if any row sum is non-positive or not finite.
func AlphaNormalize(kernel []float64, n int, alpha float64) ([]float64, error) {
	rowsum := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += kernel[i*n+j]
		}
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("tram: kernel row %d has invalid sum %v: %w", i, s, ErrEigenFailed)
		}
		rowsum[i] = math.Pow(s, alpha)
	}

	knorm := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			knorm[i*n+j] = kernel[i*n+j] / (rowsum[i] * rowsum[j])
		}
	}
	return knorm, nil
}

// RowNormalize divides each row of a kernel matrix by its sum, producing a
// row-stochastic Markov operator, and returns the pre-normalization row
// sums as the diagonal of the weight (mass) matrix.
func RowNormalize(kernel []float64, n int) (p, weights []float64, err error) {
	weights = make([]float64, n)
	p = make([]float64, n*n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += kernel[i*n+j]
		}
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, nil, fmt.Errorf("tram: normalized kernel row %d has invalid sum %v: %w", i, s, ErrEigenFailed)
		}
		weights[i] = s
		for j := 0; j < n; j++ {
			p[i*n+j] = kernel[i*n+j] / s
		}
	}
	return p, weights, nil
}

// EvaluateDiffusionMaps projects onto the first k diffusion coordinates:
// column j of the result is the real part of eigenvector j scaled by the
// real part of eigenvalue j. Returns a flat n×k row-major matrix. k must
// be in [1, eigs.K] or the call fails with ErrInvalidArgument.
func EvaluateDiffusionMaps(eigs *Eigenpairs, k int) ([]float64, error) {
	if eigs == nil {
		return nil, fmt.Errorf("tram: nil eigenpairs: %w", ErrInvalidArgument)
	}
	if k < 1 || k > eigs.K {
		return nil, fmt.Errorf("tram: k must be in [1, %d], got %d: %w", eigs.K, k, ErrInvalidArgument)
	}
	coords := make([]float64, eigs.N*k)
	for j := 0; j < k; j++ {
		lambda := real(eigs.Values[j])
		for i := 0; i < eigs.N; i++ {
			coords[i*k+j] = real(eigs.Vectors.At(i, j)) * lambda
		}
	}
	return coords, nil
}
