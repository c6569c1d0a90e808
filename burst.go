package tram

import (
	"fmt"
	"runtime"
)

// BurstConfig controls the kernel burst variant.
// Start with [DefaultBurstConfig] and override the fields you need.
type BurstConfig struct {
	// Kernel compares burst endpoint clouds. Default: GaussianKernel{Sigma2: 1}.
	Kernel Kernel

	// NComponents is the number of diffusion eigenpairs to retain.
	// Must be <= n_startpoints-1 at Fit time. Default: 10.
	NComponents int

	// Epsi is the diffusion maps bandwidth scale. Default: 1.
	Epsi float64

	// Alpha is the density-normalization exponent in [0, 1]. The zero
	// value disables density compensation; DefaultBurstConfig sets 0.5.
	Alpha float64

	// Workers is the goroutine count for the pairwise kernel phases.
	// 0 means runtime.NumCPU().
	Workers int

	// Progress receives phase progress updates; nil disables reporting.
	// Toggling it never changes numeric results.
	Progress ProgressFunc
}

// DefaultBurstConfig returns a BurstConfig with conventional defaults.
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		Kernel:      GaussianKernel{Sigma2: 1},
		NComponents: 10,
		Epsi:        1,
		Alpha:       0.5,
	}
}

func (cfg *BurstConfig) applyDefaults() {
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
}

// KernelBurstManifold estimates the transition manifold from parallel
// short bursts: one point cloud per start point (its M burst endpoints),
// pairwise squared-MMD distances between clouds, then diffusion maps.
type KernelBurstManifold struct {
	cfg   BurstConfig
	model *DiffusionModel
}

// NewKernelBurstManifold creates the burst variant with the given config.
func NewKernelBurstManifold(cfg BurstConfig) *KernelBurstManifold {
	cfg.applyDefaults()
	return &KernelBurstManifold{cfg: cfg}
}

// Fit computes the pairwise MMD² distance matrix between the start-point
// clouds and solves the diffusion maps eigenproblem. On failure, any model
// from a previous successful Fit is left untouched.
func (m *KernelBurstManifold) Fit(samples *Ensemble) (Model, error) {
	if samples == nil {
		return nil, fmt.Errorf("tram: nil ensemble: %w", ErrInvalidArgument)
	}

	distMat, err := MMDDistanceMatrix(samples.Clouds(), m.cfg.Kernel, m.cfg.Workers, m.cfg.Progress)
	if err != nil {
		return nil, err
	}

	eigs, err := DiffusionMaps(distMat, samples.N, DiffusionOpts{
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

// Model returns the model from the most recent successful Fit, or an
// ErrNotFitted-wrapped error if Fit has not succeeded yet.
func (m *KernelBurstManifold) Model() (Model, error) {
	if m.model == nil {
		return nil, fmt.Errorf("tram: kernel burst manifold: %w", ErrNotFitted)
	}
	return m.model, nil
}

// EmbeddingBurstConfig controls the embedding burst variant.
type EmbeddingBurstConfig struct {
	// Embedding maps burst endpoints into an explicit feature space.
	// Required.
	Embedding Embedding

	// NComponents is the number of diffusion eigenpairs to retain.
	// Default: 10.
	NComponents int

	// Epsi is the diffusion maps bandwidth scale. Default: 1.
	Epsi float64

	// Alpha is the density-normalization exponent in [0, 1]; zero disables
	// density compensation.
	Alpha float64

	// Progress receives phase progress updates; nil disables reporting.
	Progress ProgressFunc
}

// DefaultEmbeddingBurstConfig returns conventional defaults; Embedding
// must still be supplied.
func DefaultEmbeddingBurstConfig() EmbeddingBurstConfig {
	return EmbeddingBurstConfig{NComponents: 10, Epsi: 1, Alpha: 0.5}
}

func (cfg *EmbeddingBurstConfig) applyDefaults() {
	if cfg.NComponents == 0 {
		cfg.NComponents = 10
	}
	if cfg.Epsi == 0 {
		cfg.Epsi = 1
	}
}

// EmbeddingBurstManifold estimates the transition manifold from parallel
// short bursts via an explicit (e.g. random linear) embedding: each cloud
// is replaced by its mean embedded representation, and diffusion maps runs
// on the Euclidean distances between those mean vectors.
type EmbeddingBurstManifold struct {
	cfg   EmbeddingBurstConfig
	model *DiffusionModel
}

// NewEmbeddingBurstManifold creates the embedding burst variant.
func NewEmbeddingBurstManifold(cfg EmbeddingBurstConfig) *EmbeddingBurstManifold {
	cfg.applyDefaults()
	return &EmbeddingBurstManifold{cfg: cfg}
}

// Fit embeds every burst cloud, averages over the M simulations per start
// point, and runs diffusion maps on the Euclidean distance matrix of the
// mean embedded representations.
func (m *EmbeddingBurstManifold) Fit(samples *Ensemble) (Model, error) {
	if samples == nil {
		return nil, fmt.Errorf("tram: nil ensemble: %w", ErrInvalidArgument)
	}
	if m.cfg.Embedding == nil {
		return nil, fmt.Errorf("tram: embedding burst manifold requires an Embedding: %w", ErrInvalidArgument)
	}

	n := samples.N
	outDim := m.cfg.Embedding.OutputDim()
	embedded := make([]float64, n*outDim)
	tracker := newProgressTracker(m.cfg.Progress, StageEmbed, n)
	for i := 0; i < n; i++ {
		cloud := samples.Cloud(i)
		y := m.cfg.Embedding.Evaluate(cloud.Data, cloud.N, cloud.Dims)
		for s := 0; s < cloud.N; s++ {
			for o := 0; o < outDim; o++ {
				embedded[i*outDim+o] += y[s*outDim+o]
			}
		}
		for o := 0; o < outDim; o++ {
			embedded[i*outDim+o] /= float64(samples.M)
		}
		tracker.add(1)
	}

	distMat := euclideanDistanceMatrix(embedded, n, outDim)
	eigs, err := DiffusionMaps(distMat, n, DiffusionOpts{
		NComponents: m.cfg.NComponents,
		Epsi:        m.cfg.Epsi,
		Alpha:       m.cfg.Alpha,
	})
	if err != nil {
		return nil, err
	}

	m.model = &DiffusionModel{eigs: eigs, distMat: distMat, embedded: embedded, embedDim: outDim}
	return m.model, nil
}

// Model returns the model from the most recent successful Fit.
func (m *EmbeddingBurstManifold) Model() (Model, error) {
	if m.model == nil {
		return nil, fmt.Errorf("tram: embedding burst manifold: %w", ErrNotFitted)
	}
	return m.model, nil
}

// DiffusionModel is the fitted state shared by the diffusion-map based
// variants: the retained eigenpairs plus the pairwise matrix they were
// computed from.
type DiffusionModel struct {
	eigs     *Eigenpairs
	distMat  []float64
	embedded []float64 // mean embedded representations (embedding variant only)
	embedDim int
}

var _ Model = (*DiffusionModel)(nil)

// Coordinates projects onto the first k diffusion coordinates.
func (d *DiffusionModel) Coordinates(k int) ([]float64, error) {
	return EvaluateDiffusionMaps(d.eigs, k)
}

// Predict is unsupported: the spectral variants have no out-of-sample
// extension.
func (d *DiffusionModel) Predict(points []float64, n int) ([]float64, error) {
	return nil, fmt.Errorf("tram: diffusion model has no out-of-sample extension: %w", ErrUnsupported)
}

// Eigenpairs returns the retained eigenpairs.
func (d *DiffusionModel) Eigenpairs() *Eigenpairs { return d.eigs }

// DistanceMatrix returns the flat n×n pairwise matrix the model was
// fitted on.
func (d *DiffusionModel) DistanceMatrix() []float64 { return d.distMat }

// Embedded returns the mean embedded cloud representations (n×dim flat)
// for the embedding burst variant, or nil for the other variants. dim is
// the embedding output dimension.
func (d *DiffusionModel) Embedded() (emb []float64, dim int) { return d.embedded, d.embedDim }
