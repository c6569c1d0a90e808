package tram

import (
	"math"
	"testing"
)

func TestGaussianKernel_IdenticalPoints(t *testing.T) {
	k := GaussianKernel{Sigma2: 0.5}
	x := []float64{1, 2, 3}
	gram := k.Evaluate(x, 1, x, 1, 3)
	if !almostEqual(gram[0], 1, floatTol) {
		t.Errorf("k(x,x) = %v, want 1", gram[0])
	}
}

func TestGaussianKernel_HandComputed(t *testing.T) {
	k := GaussianKernel{Sigma2: 2}
	x := []float64{0, 0}
	y := []float64{1, 1}
	// exp(-(1+1)/2) = exp(-1)
	gram := k.Evaluate(x, 1, y, 1, 2)
	if !almostEqual(gram[0], math.Exp(-1), floatTol) {
		t.Errorf("k = %v, want %v", gram[0], math.Exp(-1))
	}
}

func TestGaussianKernel_GramShape(t *testing.T) {
	k := GaussianKernel{Sigma2: 1}
	x := []float64{0, 1, 2} // 3 points in 1D
	y := []float64{0, 1}    // 2 points in 1D
	gram := k.Evaluate(x, 3, y, 2, 1)
	if len(gram) != 6 {
		t.Fatalf("gram length %d, want 6", len(gram))
	}
	// gram[i*ny+j] = k(x_i, y_j); k(2,1) = exp(-1)
	if !almostEqual(gram[2*2+1], math.Exp(-1), floatTol) {
		t.Errorf("gram[2,1] = %v, want %v", gram[2*2+1], math.Exp(-1))
	}
}

func TestKernelFunc_Adapter(t *testing.T) {
	dot := KernelFunc(func(a, b []float64) float64 { return a[0]*b[0] + a[1]*b[1] })
	x := []float64{1, 0, 0, 1} // (1,0), (0,1)
	gram := dot.Evaluate(x, 2, x, 2, 2)
	want := []float64{1, 0, 0, 1}
	for i := range want {
		if !almostEqual(gram[i], want[i], floatTol) {
			t.Errorf("gram[%d] = %v, want %v", i, gram[i], want[i])
		}
	}
}

func TestEuclideanDistanceMatrix(t *testing.T) {
	// Points (0,0), (3,4): distance 5.
	data := []float64{0, 0, 3, 4}
	d := euclideanDistanceMatrix(data, 2, 2)
	if d[0] != 0 || d[3] != 0 {
		t.Errorf("diagonal not zero: %v", d)
	}
	if !almostEqual(d[1], 5, floatTol) || !almostEqual(d[2], 5, floatTol) {
		t.Errorf("expected distance 5, got %v and %v", d[1], d[2])
	}
}

func TestRandomLinearEmbedding_DeterministicUnderSeed(t *testing.T) {
	a := NewRandomLinearEmbedding(3, 4, 42)
	b := NewRandomLinearEmbedding(3, 4, 42)
	x := []float64{0.3, -1.2, 2.5}
	ya := a.Evaluate(x, 1, 3)
	yb := b.Evaluate(x, 1, 3)
	for i := range ya {
		if ya[i] != yb[i] {
			t.Errorf("same seed produced different embeddings at %d: %v != %v", i, ya[i], yb[i])
		}
	}

	c := NewRandomLinearEmbedding(3, 4, 43)
	yc := c.Evaluate(x, 1, 3)
	same := true
	for i := range ya {
		if ya[i] != yc[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical embeddings")
	}
}

func TestRandomLinearEmbedding_Linearity(t *testing.T) {
	e := NewRandomLinearEmbedding(2, 3, 7)
	x := []float64{1, 2}
	y := []float64{-0.5, 4}
	sum := []float64{x[0] + y[0], x[1] + y[1]}

	ex := e.Evaluate(x, 1, 2)
	ey := e.Evaluate(y, 1, 2)
	esum := e.Evaluate(sum, 1, 2)
	for i := range esum {
		if !almostEqual(esum[i], ex[i]+ey[i], floatTol) {
			t.Errorf("embedding not linear at %d: %v != %v", i, esum[i], ex[i]+ey[i])
		}
	}
}

func TestRandomLinearEmbedding_OutputDim(t *testing.T) {
	e := NewRandomLinearEmbedding(5, 2, 0)
	if e.OutputDim() != 2 {
		t.Errorf("OutputDim = %d, want 2", e.OutputDim())
	}
}
