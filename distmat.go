package tram

import (
	"fmt"
	"sync"
)

// PointCloud is a finite set of points stored flat in row-major order.
// Clouds backing the same ensemble share storage; the builder never
// mutates cloud data.
type PointCloud struct {
	Data []float64
	N    int
	Dims int
}

// validateClouds checks that all clouds are non-empty and share a common
// dimensionality, returning that dimensionality.
func validateClouds(clouds []PointCloud) (int, error) {
	if len(clouds) == 0 {
		return 0, fmt.Errorf("tram: no point clouds given: %w", ErrInvalidArgument)
	}
	dims := clouds[0].Dims
	for i, c := range clouds {
		if c.N < 1 {
			return 0, fmt.Errorf("tram: point cloud %d is empty: %w", i, ErrInvalidArgument)
		}
		if c.Dims != dims {
			return 0, fmt.Errorf("tram: point cloud %d has dimension %d, want %d: %w", i, c.Dims, dims, ErrInvalidArgument)
		}
		if len(c.Data) != c.N*c.Dims {
			return 0, fmt.Errorf("tram: point cloud %d data length %d does not match shape (%d, %d): %w", i, len(c.Data), c.N, c.Dims, ErrInvalidArgument)
		}
	}
	return dims, nil
}

// SelfKernelSums computes, for each cloud C_i, the symmetric self-kernel
// sum S_i = Σ_{x,x' ∈ C_i} k(x, x'). Each sum is computed once and reused
// for every pair involving cloud i during distance-matrix assembly.
// numWorkers <= 1 runs sequentially.
func SelfKernelSums(clouds []PointCloud, k Kernel, numWorkers int, progress ProgressFunc) ([]float64, error) {
	dims, err := validateClouds(clouds)
	if err != nil {
		return nil, err
	}

	n := len(clouds)
	sums := make([]float64, n)
	tracker := newProgressTracker(progress, StageSelfKernel, n)

	compute := func(i int) {
		c := clouds[i]
		sums[i] = sumAll(k.Evaluate(c.Data, c.N, c.Data, c.N, dims))
		tracker.add(1)
	}

	if numWorkers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			compute(i)
		}
		return sums, nil
	}

	var wg sync.WaitGroup
	rowsPerWorker := (n + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= n {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				compute(i)
			}
		}(start, end)
	}
	wg.Wait()
	return sums, nil
}

// MMDDistanceMatrix computes the pairwise squared-MMD distance matrix
// between the empirical distributions represented by the clouds:
//
//	D[i,j] = S_i/|C_i|² + S_j/|C_j|² − 2·K_ij/(|C_i|·|C_j|)
//
// where S_i is the self-kernel sum of cloud i and K_ij the cross-kernel
// sum over C_i × C_j. Cloud sizes may differ; each term is normalized by
// the actual cloud size. Only the strict lower triangle is computed (one
// batched kernel evaluation per unordered pair), then mirrored, so the
// result is exactly symmetric and the diagonal is exactly zero.
//
// This is the dominant O(n²) cost of the pipeline. Pair computations are
// independent and split across numWorkers goroutines by row range, each
// writing disjoint matrix cells; numWorkers <= 1 runs sequentially.
// The result is identical either way.
func MMDDistanceMatrix(clouds []PointCloud, k Kernel, numWorkers int, progress ProgressFunc) ([]float64, error) {
	dims, err := validateClouds(clouds)
	if err != nil {
		return nil, err
	}

	selfSums, err := SelfKernelSums(clouds, k, numWorkers, progress)
	if err != nil {
		return nil, err
	}

	n := len(clouds)
	result := make([]float64, n*n)
	tracker := newProgressTracker(progress, StageCrossKernel, n*(n-1)/2)

	computeRow := func(i int) {
		ci := clouds[i]
		ni := float64(ci.N)
		for j := 0; j < i; j++ {
			cj := clouds[j]
			nj := float64(cj.N)
			cross := sumAll(k.Evaluate(ci.Data, ci.N, cj.Data, cj.N, dims))
			d := selfSums[i]/(ni*ni) + selfSums[j]/(nj*nj) - 2*cross/(ni*nj)
			result[i*n+j] = d
			result[j*n+i] = d
			tracker.add(1)
		}
	}

	if numWorkers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			computeRow(i)
		}
		return result, nil
	}

	var wg sync.WaitGroup
	rowsPerWorker := (n + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= n {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				computeRow(i)
			}
		}(start, end)
	}
	wg.Wait()
	return result, nil
}

func sumAll(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
