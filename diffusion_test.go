package tram

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// randomSymmetricKernel builds a symmetric strictly positive kernel matrix.
func randomSymmetricKernel(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	k := make([]float64, n*n)
	for i := 0; i < n; i++ {
		k[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			v := 0.05 + 0.9*rng.Float64()
			k[i*n+j] = v
			k[j*n+i] = v
		}
	}
	return k
}

func TestRowNormalize_RowStochastic(t *testing.T) {
	n := 8
	k := randomSymmetricKernel(n, 1)
	p, weights, err := RowNormalize(k, n)
	if err != nil {
		t.Fatalf("RowNormalize: %v", err)
	}
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += p[i*n+j]
		}
		if !almostEqual(sum, 1, floatTol) {
			t.Errorf("row %d sums to %v, want 1", i, sum)
		}
		if weights[i] <= 0 {
			t.Errorf("weight %d = %v, want > 0", i, weights[i])
		}
	}
}

func TestAlphaNormalize_ZeroAlphaIsIdentityOperation(t *testing.T) {
	n := 5
	k := randomSymmetricKernel(n, 2)
	knorm, err := AlphaNormalize(k, n, 0)
	if err != nil {
		t.Fatalf("AlphaNormalize: %v", err)
	}
	for i := range k {
		if !almostEqual(knorm[i], k[i], floatTol) {
			t.Errorf("entry %d changed under alpha=0: %v != %v", i, knorm[i], k[i])
		}
	}
}

func TestAlphaNormalize_Symmetric(t *testing.T) {
	n := 6
	k := randomSymmetricKernel(n, 3)
	knorm, err := AlphaNormalize(k, n, 0.5)
	if err != nil {
		t.Fatalf("AlphaNormalize: %v", err)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !almostEqual(knorm[i*n+j], knorm[j*n+i], floatTol) {
				t.Errorf("asymmetry at (%d,%d)", i, j)
			}
		}
	}
}

// Three disjoint clusters with zero cross-affinity must produce eigenvalue
// 1 with multiplicity 3 (one stationary direction per component).
func TestDiffusionMaps_BlockIdentityKernel(t *testing.T) {
	n := 6
	k := make([]float64, n*n)
	for block := 0; block < 3; block++ {
		base := 2 * block
		for i := base; i < base+2; i++ {
			for j := base; j < base+2; j++ {
				k[i*n+j] = 1
			}
		}
	}

	eigs, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 5, Alpha: 0.5, IsKernel: true})
	if err != nil {
		t.Fatalf("DiffusionMaps: %v", err)
	}

	nearOne := 0
	for _, v := range eigs.Values {
		if cmplx.Abs(v-1) < 1e-8 {
			nearOne++
		}
	}
	if nearOne < 3 {
		t.Errorf("expected eigenvalue 1 with multiplicity >= 3, found %d near-one eigenvalues: %v", nearOne, eigs.Values)
	}
}

func TestDiffusionMaps_OrderedByMagnitude(t *testing.T) {
	n := 7
	k := randomSymmetricKernel(n, 4)
	eigs, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 6, Alpha: 0.5, IsKernel: true})
	if err != nil {
		t.Fatalf("DiffusionMaps: %v", err)
	}
	if eigs.K != 6 || len(eigs.Values) != 6 {
		t.Fatalf("expected 6 retained eigenpairs, got %d", eigs.K)
	}
	for j := 1; j < eigs.K; j++ {
		if cmplx.Abs(eigs.Values[j]) > cmplx.Abs(eigs.Values[j-1])+floatTol {
			t.Errorf("eigenvalues not ordered by magnitude at %d: %v", j, eigs.Values)
		}
	}
}

func TestDiffusionMaps_KernelFlagMatchesDistanceConversion(t *testing.T) {
	// A distance matrix and its explicit Gaussian conversion must yield
	// the same spectrum.
	n := 5
	pts := []float64{0, 0.4, 1.1, 2.3, 3.0} // 1D positions
	dist := euclideanDistanceMatrix(pts, n, 1)

	epsi := 0.8
	kernel := make([]float64, n*n)
	for i, d := range dist {
		kernel[i] = math.Exp(-d * d / epsi)
	}

	fromDist, err := DiffusionMaps(dist, n, DiffusionOpts{NComponents: 3, Epsi: epsi, Alpha: 0.5})
	if err != nil {
		t.Fatalf("distance mode: %v", err)
	}
	fromKernel, err := DiffusionMaps(kernel, n, DiffusionOpts{NComponents: 3, Alpha: 0.5, IsKernel: true})
	if err != nil {
		t.Fatalf("kernel mode: %v", err)
	}
	for j := range fromDist.Values {
		if cmplx.Abs(fromDist.Values[j]-fromKernel.Values[j]) > 1e-9 {
			t.Errorf("eigenvalue %d differs: %v vs %v", j, fromDist.Values[j], fromKernel.Values[j])
		}
	}
}

func TestDiffusionMaps_NComponentsBounds(t *testing.T) {
	n := 4
	k := randomSymmetricKernel(n, 5)
	if _, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: n, Alpha: 0.5, IsKernel: true}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NComponents == n: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 0, Alpha: 0.5, IsKernel: true}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NComponents == 0: expected ErrInvalidArgument, got %v", err)
	}
}

func TestDiffusionMaps_BadEpsiAndAlpha(t *testing.T) {
	n := 3
	k := randomSymmetricKernel(n, 6)
	if _, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 2, Epsi: 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Epsi == 0 in distance mode: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 2, Alpha: 1.5, IsKernel: true}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Alpha > 1: expected ErrInvalidArgument, got %v", err)
	}
}

func TestDiffusionMaps_ZeroKernelFails(t *testing.T) {
	n := 3
	k := make([]float64, n*n)
	_, err := DiffusionMaps(k, n, DiffusionOpts{NComponents: 2, Alpha: 0.5, IsKernel: true})
	if !errors.Is(err, ErrEigenFailed) {
		t.Errorf("expected ErrEigenFailed for zero kernel, got %v", err)
	}
}

func TestEvaluateDiffusionMaps_ScalesByEigenvalue(t *testing.T) {
	vectors := mat.NewCDense(2, 2, []complex128{
		1, 3,
		2, 4,
	})
	eigs := &Eigenpairs{
		Values:  []complex128{2, 0.5},
		Vectors: vectors,
		N:       2,
		K:       2,
	}
	coords, err := EvaluateDiffusionMaps(eigs, 2)
	if err != nil {
		t.Fatalf("EvaluateDiffusionMaps: %v", err)
	}
	want := []float64{2, 1.5, 4, 2}
	for i := range want {
		if !almostEqual(coords[i], want[i], floatTol) {
			t.Errorf("coords[%d] = %v, want %v", i, coords[i], want[i])
		}
	}
}

func TestEvaluateDiffusionMaps_KBounds(t *testing.T) {
	eigs := &Eigenpairs{
		Values:  []complex128{1},
		Vectors: mat.NewCDense(1, 1, nil),
		N:       1,
		K:       1,
	}
	if _, err := EvaluateDiffusionMaps(eigs, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("k > K: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := EvaluateDiffusionMaps(eigs, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("k == 0: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := EvaluateDiffusionMaps(nil, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil eigenpairs: expected ErrInvalidArgument, got %v", err)
	}
}
