package tram

import (
	"math"
	"math/rand"
)

// Kernel evaluates a symmetric positive-definite kernel on two point sets
// in a single batched call. Batch evaluation is the performance contract:
// the distance-matrix builder calls Evaluate once per cloud pair, never
// element by element.
type Kernel interface {
	// Evaluate returns the nx×ny Gram block k(x_i, y_j) as a flat
	// row-major slice. x and y are flat row-major point sets sharing the
	// same dimensionality dims.
	Evaluate(x []float64, nx int, y []float64, ny int, dims int) []float64
}

// KernelFunc adapts a pointwise kernel function into a Kernel.
type KernelFunc func(a, b []float64) float64

func (f KernelFunc) Evaluate(x []float64, nx int, y []float64, ny int, dims int) []float64 {
	gram := make([]float64, nx*ny)
	for i := 0; i < nx; i++ {
		xi := x[i*dims : (i+1)*dims]
		for j := 0; j < ny; j++ {
			gram[i*ny+j] = f(xi, y[j*dims:(j+1)*dims])
		}
	}
	return gram
}

// GaussianKernel is the RBF kernel k(x,y) = exp(-‖x-y‖² / Sigma2).
// Sigma2 is the squared bandwidth and must be > 0.
type GaussianKernel struct {
	Sigma2 float64
}

func (g GaussianKernel) Evaluate(x []float64, nx int, y []float64, ny int, dims int) []float64 {
	gram := make([]float64, nx*ny)
	for i := 0; i < nx; i++ {
		xi := x[i*dims : (i+1)*dims]
		for j := 0; j < ny; j++ {
			gram[i*ny+j] = math.Exp(-euclideanSumOfSquares(xi, y[j*dims:(j+1)*dims]) / g.Sigma2)
		}
	}
	return gram
}

func euclideanSumOfSquares(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// euclideanDistanceMatrix computes the full n×n Euclidean distance matrix
// over flat row-major data. Only the upper triangle is computed, then
// mirrored; the diagonal stays zero.
func euclideanDistanceMatrix(data []float64, n, dims int) []float64 {
	result := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Sqrt(euclideanSumOfSquares(data[i*dims:(i+1)*dims], data[j*dims:(j+1)*dims]))
			result[i*n+j] = d
			result[j*n+i] = d
		}
	}
	return result
}

// Embedding maps point sets into an explicit finite-dimensional feature
// space. Used by the embedding-burst variant in place of a kernel.
type Embedding interface {
	// Evaluate returns the n×OutputDim embedded representation of n flat
	// row-major points as a flat row-major slice.
	Evaluate(x []float64, n, dims int) []float64

	// OutputDim returns the dimensionality of the embedding space.
	OutputDim() int
}

// RandomLinearEmbedding is a random linear map x ↦ xA with coefficients
// drawn uniformly from [0, 1). The generator is owned by the instance and
// seeded at construction, so repeated construction with the same seed
// yields the same map and no global RNG state is touched.
type RandomLinearEmbedding struct {
	a      []float64 // inDim×outDim, row-major
	inDim  int
	outDim int
}

// NewRandomLinearEmbedding draws a random linear embedding from inDim to
// outDim dimensions using a generator seeded with seed.
func NewRandomLinearEmbedding(inDim, outDim int, seed int64) *RandomLinearEmbedding {
	rng := rand.New(rand.NewSource(seed))
	a := make([]float64, inDim*outDim)
	for i := range a {
		a[i] = rng.Float64()
	}
	return &RandomLinearEmbedding{a: a, inDim: inDim, outDim: outDim}
}

func (r *RandomLinearEmbedding) OutputDim() int { return r.outDim }

// Evaluate computes xA for each of the n input rows. dims must equal the
// input dimension the embedding was constructed with.
func (r *RandomLinearEmbedding) Evaluate(x []float64, n, dims int) []float64 {
	if dims != r.inDim {
		panic("tram: RandomLinearEmbedding input dimension mismatch")
	}
	y := make([]float64, n*r.outDim)
	for i := 0; i < n; i++ {
		xi := x[i*dims : (i+1)*dims]
		for o := 0; o < r.outDim; o++ {
			var sum float64
			for d := 0; d < dims; d++ {
				sum += xi[d] * r.a[d*r.outDim+o]
			}
			y[i*r.outDim+o] = sum
		}
	}
	return y
}
