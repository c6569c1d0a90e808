package tram

import (
	"errors"
	"testing"
)

func TestKernelBurst_SingleSamplePerStartPoint(t *testing.T) {
	// M = 1: each cloud is a single endpoint; MMD² degenerates to the
	// kernel-induced squared distance between endpoints.
	data := []float64{-2, 0, 2}
	X, err := NewEnsemble(data, 3, 1, 1)
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}
	tm := NewKernelBurstManifold(BurstConfig{Kernel: GaussianKernel{Sigma2: 1}, NComponents: 2})
	model, err := tm.Fit(X)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	d := model.(*DiffusionModel).DistanceMatrix()
	// D[0,1] = k(x0,x0) + k(x1,x1) - 2k(x0,x1) = 2 - 2exp(-4).
	want := 2 - 2*gaussian1D(-2, 0, 1)
	if !almostEqual(d[1], want, floatTol) {
		t.Errorf("D[0,1] = %v, want %v", d[1], want)
	}
}

func gaussian1D(x, y, sigma2 float64) float64 {
	g := GaussianKernel{Sigma2: sigma2}
	return g.Evaluate([]float64{x}, 1, []float64{y}, 1, 1)[0]
}

func TestKernelBurst_TwoStartPoints(t *testing.T) {
	// Smallest fittable ensemble: n = 2, NComponents = 1.
	X := burstEnsemble(t, []float64{0, 5}, 4, 0.1)
	tm := NewKernelBurstManifold(BurstConfig{NComponents: 1})
	model, err := tm.Fit(X)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	coords, err := model.Coordinates(1)
	if err != nil {
		t.Fatalf("Coordinates: %v", err)
	}
	if len(coords) != 2 {
		t.Errorf("coordinates length %d, want 2", len(coords))
	}
}

func TestConfigDefaults_Applied(t *testing.T) {
	tm := NewKernelBurstManifold(BurstConfig{})
	if tm.cfg.Kernel == nil {
		t.Error("default kernel not applied")
	}
	if tm.cfg.NComponents != 10 {
		t.Errorf("default NComponents = %d, want 10", tm.cfg.NComponents)
	}
	if tm.cfg.Epsi != 1 {
		t.Errorf("default Epsi = %v, want 1", tm.cfg.Epsi)
	}
	if tm.cfg.Workers < 1 {
		t.Errorf("default Workers = %d, want >= 1", tm.cfg.Workers)
	}
	// The zero Alpha is meaningful (no density compensation) and must be
	// left alone.
	if tm.cfg.Alpha != 0 {
		t.Errorf("zero Alpha was overridden to %v", tm.cfg.Alpha)
	}
}

func TestProgressStages_Reported(t *testing.T) {
	X := burstEnsemble(t, []float64{-1, 0, 1}, 4, 0.1)
	stages := map[string]bool{}
	tm := NewKernelBurstManifold(BurstConfig{
		NComponents: 2,
		Workers:     1,
		Progress: func(stage string, done, total int) {
			stages[stage] = true
		},
	})
	if _, err := tm.Fit(X); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !stages[StageSelfKernel] || !stages[StageCrossKernel] {
		t.Errorf("expected self-kernel and cross-kernel stages, got %v", stages)
	}
}

func TestDiffusionMaps_DuplicateStartPoints(t *testing.T) {
	// Duplicate points produce identical rows but the operator stays
	// well-defined (positive row sums).
	data := []float64{1, 1, 3}
	X, err := NewEnsemble(data, 3, 1, 1)
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}
	tm := NewKernelBurstManifold(BurstConfig{NComponents: 2})
	if _, err := tm.Fit(X); err != nil {
		t.Fatalf("Fit with duplicate start points: %v", err)
	}
}

func TestEnsembleCloudViewsShareStorage(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	X, err := NewEnsemble(data, 2, 2, 1)
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}
	c := X.Cloud(1)
	data[2] = 30
	if c.Data[0] != 30 {
		t.Error("Cloud should be a zero-copy view of the ensemble data")
	}
}

func TestL2Burst_ModelBeforeFit(t *testing.T) {
	tm := NewL2BurstManifold(DefaultL2BurstConfig())
	if _, err := tm.Model(); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
}

func TestEmbeddingBurst_ModelBeforeFit(t *testing.T) {
	tm := NewEmbeddingBurstManifold(DefaultEmbeddingBurstConfig())
	if _, err := tm.Model(); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
}
