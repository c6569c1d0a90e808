package tram

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/integrate/quad"
)

// Domain is a rectangular 2D integration domain [Min[0], Max[0]] ×
// [Min[1], Max[1]], mirroring the simulator collaborator's domain
// attribute.
type Domain struct {
	Min, Max [2]float64
}

// Quadrature orders for the density L2 distance. The integral is evaluated
// at both orders; their difference is the reported error estimate.
const (
	l2QuadOrder        = 24
	l2QuadOrderRefined = 48
)

// kde is a 2D Gaussian kernel density estimate with shared bandwidth h:
// f(p) = Σ_i exp(-‖p-x_i‖²/(2h²)) / (n·2π·h²).
type kde struct {
	points    []float64
	n         int
	bandwidth float64
}

func (k kde) density(x, y float64) float64 {
	h2 := k.bandwidth * k.bandwidth
	var sum float64
	for i := 0; i < k.n; i++ {
		dx := x - k.points[2*i]
		dy := y - k.points[2*i+1]
		sum += math.Exp(-(dx*dx + dy*dy) / (2 * h2))
	}
	return sum / (float64(k.n) * 2 * math.Pi * h2)
}

// L2Distance computes the 1/rho-weighted L2 distance between the kernel
// density estimates of two 2D point clouds:
//
//	∫∫ (f₁(x,y) − f₂(x,y))² / rho(x,y) dy dx
//
// over the rectangular domain, via nested Gauss-Legendre quadrature. The
// returned errEst is the difference between two quadrature orders; callers
// may discard it. Only 2-dimensional clouds are supported (the quadrature
// is inherently 2D); other dimensions fail with ErrInvalidArgument.
func L2Distance(cloud1, cloud2 PointCloud, rho func(x, y float64) float64, domain Domain, bandwidth float64) (dist, errEst float64, err error) {
	if _, err := validateClouds([]PointCloud{cloud1, cloud2}); err != nil {
		return 0, 0, err
	}
	if cloud1.Dims != 2 {
		return 0, 0, fmt.Errorf("tram: density L2 distance is only defined for 2D clouds, got dimension %d: %w", cloud1.Dims, ErrInvalidArgument)
	}
	if bandwidth <= 0 {
		return 0, 0, fmt.Errorf("tram: bandwidth must be > 0, got %f: %w", bandwidth, ErrInvalidArgument)
	}
	if rho == nil {
		return 0, 0, fmt.Errorf("tram: nil reference density rho: %w", ErrInvalidArgument)
	}
	if domain.Max[0] <= domain.Min[0] || domain.Max[1] <= domain.Min[1] {
		return 0, 0, fmt.Errorf("tram: empty integration domain %v: %w", domain, ErrInvalidArgument)
	}
	dist, errEst = l2Distance(cloud1, cloud2, rho, domain, bandwidth)
	return dist, errEst, nil
}

// l2Distance is the validated core of L2Distance.
func l2Distance(cloud1, cloud2 PointCloud, rho func(x, y float64) float64, domain Domain, bandwidth float64) (dist, errEst float64) {
	kde1 := kde{points: cloud1.Data, n: cloud1.N, bandwidth: bandwidth}
	kde2 := kde{points: cloud2.Data, n: cloud2.N, bandwidth: bandwidth}
	integrand := func(x, y float64) float64 {
		diff := kde1.density(x, y) - kde2.density(x, y)
		return diff * diff / rho(x, y)
	}

	coarse := integrate2D(integrand, domain, l2QuadOrder)
	refined := integrate2D(integrand, domain, l2QuadOrderRefined)
	return refined, math.Abs(refined - coarse)
}

// integrate2D evaluates ∫∫ f over the rectangle with nested n-point
// Gauss-Legendre rules.
func integrate2D(f func(x, y float64) float64, domain Domain, n int) float64 {
	outer := func(x float64) float64 {
		return quad.Fixed(func(y float64) float64 { return f(x, y) }, domain.Min[1], domain.Max[1], n, nil, 0)
	}
	return quad.Fixed(outer, domain.Min[0], domain.Max[0], n, nil, 0)
}

// L2BurstConfig controls the density L2 burst variant.
type L2BurstConfig struct {
	// Rho is the reference density weighting the L2 distance. Required.
	Rho func(x, y float64) float64

	// Domain is the rectangular integration domain. Required.
	Domain Domain

	// KDEEpsi is the kernel density estimate bandwidth. Default: 0.1.
	KDEEpsi float64

	// NComponents is the number of diffusion eigenpairs to retain.
	// Default: 10.
	NComponents int

	// Epsi is the diffusion maps bandwidth scale. Default: 1.
	Epsi float64

	// Alpha is the density-normalization exponent in [0, 1]; zero disables
	// density compensation.
	Alpha float64

	// Workers is the goroutine count for the pairwise distance phase.
	// 0 means runtime.NumCPU().
	Workers int

	// Progress receives phase progress updates; nil disables reporting.
	Progress ProgressFunc
}

// DefaultL2BurstConfig returns conventional defaults; Rho and Domain must
// still be supplied.
func DefaultL2BurstConfig() L2BurstConfig {
	return L2BurstConfig{KDEEpsi: 0.1, NComponents: 10, Epsi: 1, Alpha: 0.5}
}

func (cfg *L2BurstConfig) applyDefaults() {
	if cfg.KDEEpsi == 0 {
		cfg.KDEEpsi = 0.1
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
}

// L2BurstManifold estimates the transition manifold by comparing the burst
// endpoint clouds directly through the 1/rho-weighted L2 distance between
// their kernel density estimates, then running diffusion maps on the
// resulting distance matrix. Only defined for 2D systems.
type L2BurstManifold struct {
	cfg   L2BurstConfig
	model *DiffusionModel
}

// NewL2BurstManifold creates the density L2 burst variant.
func NewL2BurstManifold(cfg L2BurstConfig) *L2BurstManifold {
	cfg.applyDefaults()
	return &L2BurstManifold{cfg: cfg}
}

// Fit computes the pairwise density L2 distance matrix (upper triangle,
// mirrored; zero diagonal) and solves the diffusion maps eigenproblem.
func (m *L2BurstManifold) Fit(samples *Ensemble) (Model, error) {
	if samples == nil {
		return nil, fmt.Errorf("tram: nil ensemble: %w", ErrInvalidArgument)
	}
	if samples.Dims != 2 {
		return nil, fmt.Errorf("tram: density L2 burst variant is only defined for 2D systems, got dimension %d: %w", samples.Dims, ErrInvalidArgument)
	}
	if m.cfg.Rho == nil {
		return nil, fmt.Errorf("tram: nil reference density rho: %w", ErrInvalidArgument)
	}
	if m.cfg.Domain.Max[0] <= m.cfg.Domain.Min[0] || m.cfg.Domain.Max[1] <= m.cfg.Domain.Min[1] {
		return nil, fmt.Errorf("tram: empty integration domain %v: %w", m.cfg.Domain, ErrInvalidArgument)
	}

	clouds := samples.Clouds()
	n := samples.N
	distMat := make([]float64, n*n)
	tracker := newProgressTracker(m.cfg.Progress, StageL2Distance, n*(n-1)/2)

	computeRow := func(i int) {
		for j := 0; j < i; j++ {
			d, _ := l2Distance(clouds[i], clouds[j], m.cfg.Rho, m.cfg.Domain, m.cfg.KDEEpsi)
			distMat[i*n+j] = d
			distMat[j*n+i] = d
			tracker.add(1)
		}
	}

	if m.cfg.Workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			computeRow(i)
		}
	} else {
		var wg sync.WaitGroup
		rowsPerWorker := (n + m.cfg.Workers - 1) / m.cfg.Workers
		for w := 0; w < m.cfg.Workers; w++ {
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
	}

	eigs, err := DiffusionMaps(distMat, n, DiffusionOpts{
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

// Model returns the model from the most recent successful Fit.
func (m *L2BurstManifold) Model() (Model, error) {
	if m.model == nil {
		return nil, fmt.Errorf("tram: density L2 burst manifold: %w", ErrNotFitted)
	}
	return m.model, nil
}
