package tram

import (
	"fmt"
	"runtime"
)

// TrajectoryConfig controls the long-trajectory variant.
type TrajectoryConfig struct {
	// Kernel compares the per-cell point clouds. Default: GaussianKernel{Sigma2: 1}.
	Kernel Kernel

	// TestPoints is the flat row-major set of NTest start points around
	// which the trajectory is partitioned into Voronoi cells. Required.
	TestPoints []float64
	NTest      int

	// Lag is the index offset between a trajectory point and the points
	// forming its cell's transition cloud. May be negative. Lagged indices
	// falling outside the trajectory are dropped.
	Lag int

	// NComponents is the number of diffusion eigenpairs to retain.
	// Default: 10.
	NComponents int

	// Epsi is the diffusion maps bandwidth scale. Default: 1.
	Epsi float64

	// Alpha is the density-normalization exponent in [0, 1]; zero disables
	// density compensation.
	Alpha float64

	// Workers is the goroutine count for the pairwise kernel phases.
	// 0 means runtime.NumCPU().
	Workers int

	// LeafSize is the KD-tree leaf size for Voronoi assignment. Default: 40.
	LeafSize int

	// Progress receives phase progress updates; nil disables reporting.
	Progress ProgressFunc
}

// DefaultTrajectoryConfig returns conventional defaults; TestPoints must
// still be supplied.
func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		Kernel:      GaussianKernel{Sigma2: 1},
		NComponents: 10,
		Epsi:        1,
		Alpha:       0.5,
		LeafSize:    40,
	}
}

func (cfg *TrajectoryConfig) applyDefaults() {
	if cfg.Kernel == nil {
		cfg.Kernel = GaussianKernel{Sigma2: 1}
	}
	if cfg.NComponents == 0 {
		cfg.NComponents = 10
	}
	if cfg.Epsi == 0 {
		cfg.Epsi = 1
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = 40
	}
}

// KernelTrajectoryManifold estimates the transition manifold from a single
// long trajectory: trajectory points are assigned to Voronoi cells around
// the test points (Euclidean nearest neighbor via a KD-tree), each cell's
// point cloud is the set of trajectory points occurring Lag steps after
// the cell's points, and the clouds are compared with the MMD² distance.
type KernelTrajectoryManifold struct {
	cfg   TrajectoryConfig
	model *DiffusionModel
}

// NewKernelTrajectoryManifold creates the long-trajectory variant.
func NewKernelTrajectoryManifold(cfg TrajectoryConfig) *KernelTrajectoryManifold {
	cfg.applyDefaults()
	return &KernelTrajectoryManifold{cfg: cfg}
}

// Fit consumes the trajectory as an Ensemble with M == 1 (one point per
// time step, steps in order). Cell clouds may have unequal sizes; a cell
// whose lagged cloud comes out empty (too few visits, or truncation at
// the trajectory boundary for large |Lag|) fails with an
// ErrInvalidArgument-wrapped error naming the cell.
func (m *KernelTrajectoryManifold) Fit(traj *Ensemble) (Model, error) {
	if traj == nil {
		return nil, fmt.Errorf("tram: nil trajectory: %w", ErrInvalidArgument)
	}
	if traj.M != 1 {
		return nil, fmt.Errorf("tram: trajectory ensemble must have M == 1, got %d: %w", traj.M, ErrInvalidArgument)
	}
	if m.cfg.NTest < 1 || len(m.cfg.TestPoints) != m.cfg.NTest*traj.Dims {
		return nil, fmt.Errorf("tram: test points length %d does not match %d points of dimension %d: %w",
			len(m.cfg.TestPoints), m.cfg.NTest, traj.Dims, ErrInvalidArgument)
	}

	clouds, err := m.assignClouds(traj)
	if err != nil {
		return nil, err
	}

	distMat, err := MMDDistanceMatrix(clouds, m.cfg.Kernel, m.cfg.Workers, m.cfg.Progress)
	if err != nil {
		return nil, err
	}

	eigs, err := DiffusionMaps(distMat, m.cfg.NTest, DiffusionOpts{
		NComponents: m.cfg.NComponents,
		Epsi:        m.cfg.Epsi,
		Alpha:       m.cfg.Alpha,
	})
	if err != nil {
		return nil, err
	}

	m.model = &DiffusionModel{eigs: eigs, distMat: distMat}
	return m.model, nil
}

// assignClouds partitions the trajectory into Voronoi cells around the
// test points and extracts the lag-shifted point cloud of each cell:
// trajectory point t belongs to the cloud of the cell containing point
// t-Lag. Indices t-Lag outside [0, T) are dropped.
func (m *KernelTrajectoryManifold) assignClouds(traj *Ensemble) ([]PointCloud, error) {
	T := traj.N
	dims := traj.Dims
	n := m.cfg.NTest

	tracker := newProgressTracker(m.cfg.Progress, StageVoronoi, T)
	index := newNNIndex(m.cfg.TestPoints, n, dims, m.cfg.LeafSize)
	closest := index.nearest(traj.Data, T)
	tracker.add(T)

	counts := make([]int, n)
	for t := 0; t < T; t++ {
		src := t - m.cfg.Lag
		if src < 0 || src >= T {
			continue
		}
		counts[closest[src]]++
	}
	for cell, c := range counts {
		if c == 0 {
			return nil, fmt.Errorf("tram: Voronoi cell %d has an empty lagged point cloud (lag %d): %w", cell, m.cfg.Lag, ErrInvalidArgument)
		}
	}

	clouds := make([]PointCloud, n)
	for i := range clouds {
		clouds[i] = PointCloud{Data: make([]float64, 0, counts[i]*dims), N: counts[i], Dims: dims}
	}
	for t := 0; t < T; t++ {
		src := t - m.cfg.Lag
		if src < 0 || src >= T {
			continue
		}
		cell := closest[src]
		clouds[cell].Data = append(clouds[cell].Data, traj.Data[t*dims:(t+1)*dims]...)
	}
	return clouds, nil
}

// Model returns the model from the most recent successful Fit.
func (m *KernelTrajectoryManifold) Model() (Model, error) {
	if m.model == nil {
		return nil, fmt.Errorf("tram: kernel trajectory manifold: %w", ErrNotFitted)
	}
	return m.model, nil
}
