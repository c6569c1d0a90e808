package tram

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// FeatureMethod selects the kernel feature approximation.
type FeatureMethod string

const (
	// MethodRFF approximates an RBF kernel with random Fourier features.
	MethodRFF FeatureMethod = "rff"
	// MethodNystroem approximates an arbitrary kernel with landmark-based
	// Nyström features.
	MethodNystroem FeatureMethod = "nystroem"
)

// LinearRFConfig controls the linear random-feature variant.
type LinearRFConfig struct {
	// Method is the feature approximation, MethodRFF or MethodNystroem.
	// Default: MethodRFF.
	Method FeatureMethod

	// NComponents is the feature-space dimensionality. For Nyström it is
	// capped at the number of available points (landmark count).
	// Default: 100.
	NComponents int

	// Gamma is the RBF scale of the random Fourier features,
	// k(x,y) ≈ exp(-Gamma·‖x-y‖²). Must be > 0 for MethodRFF.
	// Default: 0.1.
	Gamma float64

	// Kernel is the kernel approximated by the Nyström method. Ignored by
	// MethodRFF. Default: GaussianKernel{Sigma2: 1}.
	Kernel Kernel

	// Seed seeds the instance-owned random generator used for feature and
	// landmark sampling. Fits with equal seeds are fully reproducible.
	Seed int64
}

// DefaultLinearRFConfig returns conventional defaults.
func DefaultLinearRFConfig() LinearRFConfig {
	return LinearRFConfig{
		Method:      MethodRFF,
		NComponents: 100,
		Gamma:       0.1,
		Kernel:      GaussianKernel{Sigma2: 1},
	}
}

func (cfg *LinearRFConfig) applyDefaults() {
	if cfg.Method == "" {
		cfg.Method = MethodRFF
	}
	if cfg.NComponents == 0 {
		cfg.NComponents = 100
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = 0.1
	}
	if cfg.Kernel == nil {
		cfg.Kernel = GaussianKernel{Sigma2: 1}
	}
}

// featureSampler is an explicit finite-dimensional feature map fitted once
// on the union of all sample points (global feature basis).
type featureSampler interface {
	fit(x []float64, n, dims int) error
	// transform maps n flat row-major points into the feature space,
	// returning a flat n×dim() matrix.
	transform(x []float64, n int) []float64
	dim() int
}

// rbfSampler implements random Fourier features for the RBF kernel:
// φ(x) = sqrt(2/D)·cos(xW + b) with W ~ N(0, 2γ) and b ~ U[0, 2π).
type rbfSampler struct {
	gamma       float64
	nComponents int
	dims        int
	rng         *rand.Rand
	weights     []float64 // dims×nComponents
	offsets     []float64 // nComponents
}

func newRBFSampler(gamma float64, nComponents int, seed int64) *rbfSampler {
	return &rbfSampler{
		gamma:       gamma,
		nComponents: nComponents,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *rbfSampler) fit(x []float64, n, dims int) error {
	s.dims = dims
	scale := math.Sqrt(2 * s.gamma)
	s.weights = make([]float64, dims*s.nComponents)
	for i := range s.weights {
		s.weights[i] = s.rng.NormFloat64() * scale
	}
	s.offsets = make([]float64, s.nComponents)
	for i := range s.offsets {
		s.offsets[i] = s.rng.Float64() * 2 * math.Pi
	}
	return nil
}

func (s *rbfSampler) transform(x []float64, n int) []float64 {
	d := s.nComponents
	norm := math.Sqrt(2 / float64(d))
	out := make([]float64, n*d)
	for i := 0; i < n; i++ {
		xi := x[i*s.dims : (i+1)*s.dims]
		for c := 0; c < d; c++ {
			proj := s.offsets[c]
			for k := 0; k < s.dims; k++ {
				proj += xi[k] * s.weights[k*d+c]
			}
			out[i*d+c] = math.Cos(proj) * norm
		}
	}
	return out
}

func (s *rbfSampler) dim() int { return s.nComponents }

// nystroemSampler implements the Nyström feature map: m landmark points
// are sampled without replacement, K_mm is eigendecomposed, and
// φ(x) = k(x, landmarks)·U·diag(λ^{-1/2}). Eigenvalues are floored at
// 1e-12 to keep the normalization finite for rank-deficient K_mm.
type nystroemSampler struct {
	kernel        Kernel
	nComponents   int
	rng           *rand.Rand
	dims          int
	m             int // effective landmark count, min(nComponents, n)
	landmarks     []float64
	normalization []float64 // m×m, U·diag(λ^{-1/2})
}

func newNystroemSampler(kernel Kernel, nComponents int, seed int64) *nystroemSampler {
	return &nystroemSampler{
		kernel:      kernel,
		nComponents: nComponents,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *nystroemSampler) fit(x []float64, n, dims int) error {
	s.dims = dims
	s.m = min(s.nComponents, n)

	perm := s.rng.Perm(n)
	s.landmarks = make([]float64, s.m*dims)
	for i := 0; i < s.m; i++ {
		copy(s.landmarks[i*dims:(i+1)*dims], x[perm[i]*dims:(perm[i]+1)*dims])
	}

	gram := s.kernel.Evaluate(s.landmarks, s.m, s.landmarks, s.m, dims)
	sym := mat.NewSymDense(s.m, nil)
	for i := 0; i < s.m; i++ {
		for j := i; j < s.m; j++ {
			sym.SetSym(i, j, (gram[i*s.m+j]+gram[j*s.m+i])/2)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return fmt.Errorf("tram: Nyström landmark kernel eigendecomposition did not converge: %w", ErrEigenFailed)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	s.normalization = make([]float64, s.m*s.m)
	for j := 0; j < s.m; j++ {
		lambda := math.Max(vals[j], 1e-12)
		inv := 1 / math.Sqrt(lambda)
		for i := 0; i < s.m; i++ {
			s.normalization[i*s.m+j] = vecs.At(i, j) * inv
		}
	}
	return nil
}

func (s *nystroemSampler) transform(x []float64, n int) []float64 {
	cross := s.kernel.Evaluate(x, n, s.landmarks, s.m, s.dims)
	out := make([]float64, n*s.m)
	for i := 0; i < n; i++ {
		for j := 0; j < s.m; j++ {
			var sum float64
			for l := 0; l < s.m; l++ {
				sum += cross[i*s.m+l] * s.normalization[l*s.m+j]
			}
			out[i*s.m+j] = sum
		}
	}
	return out
}

func (s *nystroemSampler) dim() int { return s.m }

// LinearRandomFeatureManifold computes a linear reaction coordinate by
// approximating the kernel mean embeddings of the per-start-point
// transition distributions with an explicit feature map and extracting
// the dominant eigenvector of their empirical covariance.
type LinearRandomFeatureManifold struct {
	cfg   LinearRFConfig
	model *LinearModel
}

// NewLinearRandomFeatureManifold creates the linear random-feature variant.
func NewLinearRandomFeatureManifold(cfg LinearRFConfig) *LinearRandomFeatureManifold {
	cfg.applyDefaults()
	return &LinearRandomFeatureManifold{cfg: cfg}
}

// Fit fits the feature sampler once on the union of all sample points,
// forms the per-start-point embeddings, centers them, and extracts the
// dominant covariance eigenvector as the reaction-coordinate direction.
//
// Scale note: the per-start-point embedding is the SUM of the M feature
// vectors, not their mean; the spurious factor M is absorbed into the
// eigenvector direction, and only the direction is used downstream.
// Consumers that become magnitude-sensitive must renormalize.
//
// Fails with ErrInvalidArgument for an unknown Method and leaves any
// previously fitted model untouched on failure.
func (l *LinearRandomFeatureManifold) Fit(samples *Ensemble) (Model, error) {
	if samples == nil {
		return nil, fmt.Errorf("tram: nil ensemble: %w", ErrInvalidArgument)
	}

	var sampler featureSampler
	switch l.cfg.Method {
	case MethodRFF:
		if l.cfg.Gamma <= 0 {
			return nil, fmt.Errorf("tram: Gamma must be > 0 for rff, got %f: %w", l.cfg.Gamma, ErrInvalidArgument)
		}
		sampler = newRBFSampler(l.cfg.Gamma, l.cfg.NComponents, l.cfg.Seed)
	case MethodNystroem:
		sampler = newNystroemSampler(l.cfg.Kernel, l.cfg.NComponents, l.cfg.Seed)
	default:
		return nil, fmt.Errorf("tram: Method must be %q or %q, got %q: %w", MethodRFF, MethodNystroem, l.cfg.Method, ErrInvalidArgument)
	}

	n, m, dims := samples.N, samples.M, samples.Dims
	total := n * m
	if err := sampler.fit(samples.Data, total, dims); err != nil {
		return nil, err
	}
	features := sampler.transform(samples.Data, total)
	d := sampler.dim()

	// Per-start-point embedding: sum of the M feature vectors (see scale
	// note above).
	embedded := make([]float64, n*d)
	for i := 0; i < n; i++ {
		for s := 0; s < m; s++ {
			row := (i*m + s) * d
			for c := 0; c < d; c++ {
				embedded[i*d+c] += features[row+c]
			}
		}
	}

	// Center over start points.
	meanVec := make([]float64, d)
	for i := 0; i < n; i++ {
		for c := 0; c < d; c++ {
			meanVec[c] += embedded[i*d+c]
		}
	}
	for c := 0; c < d; c++ {
		meanVec[c] /= float64(n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < d; c++ {
			embedded[i*d+c] -= meanVec[c]
		}
	}

	// Covariance Σ = EᵀE and its dominant eigenvector.
	e := mat.NewDense(n, d, embedded)
	var cov mat.Dense
	cov.Mul(e.T(), e)
	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sym.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("tram: covariance eigendecomposition did not converge: %w", ErrEigenFailed)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vec := mat.Col(nil, d-1, &vecs) // EigenSym orders eigenvalues ascending

	l.model = &LinearModel{sampler: sampler, vec: vec, dims: dims, embedded: embedded, n: n}
	return l.model, nil
}

// Predict evaluates the fitted reaction coordinate on n new points (flat
// row-major). Fails with ErrNotFitted before a successful Fit.
func (l *LinearRandomFeatureManifold) Predict(points []float64, n int) ([]float64, error) {
	if l.model == nil {
		return nil, fmt.Errorf("tram: linear random-feature manifold: %w", ErrNotFitted)
	}
	return l.model.Predict(points, n)
}

// Model returns the model from the most recent successful Fit.
func (l *LinearRandomFeatureManifold) Model() (Model, error) {
	if l.model == nil {
		return nil, fmt.Errorf("tram: linear random-feature manifold: %w", ErrNotFitted)
	}
	return l.model, nil
}

// LinearModel is a fitted linear reaction coordinate: a feature sampler
// plus the dominant covariance eigenvector.
type LinearModel struct {
	sampler  featureSampler
	vec      []float64
	dims     int
	embedded []float64 // centered per-start-point embeddings, n×dim
	n        int
}

var _ Model = (*LinearModel)(nil)

// Coordinates returns the reaction-coordinate values at the fitted start
// points. The linear variant retains a single coordinate, so k must be 1.
func (m *LinearModel) Coordinates(k int) ([]float64, error) {
	if k != 1 {
		return nil, fmt.Errorf("tram: linear model retains exactly 1 coordinate, got k = %d: %w", k, ErrInvalidArgument)
	}
	d := m.sampler.dim()
	out := make([]float64, m.n)
	for i := 0; i < m.n; i++ {
		var sum float64
		for c := 0; c < d; c++ {
			sum += m.embedded[i*d+c] * m.vec[c]
		}
		out[i] = sum
	}
	return out, nil
}

// Predict projects n new points (flat row-major) through the feature map
// onto the reaction-coordinate direction.
func (m *LinearModel) Predict(points []float64, n int) ([]float64, error) {
	if len(points) != n*m.dims {
		return nil, fmt.Errorf("tram: points length %d does not match %d points of dimension %d: %w", len(points), n, m.dims, ErrInvalidArgument)
	}
	features := m.sampler.transform(points, n)
	d := m.sampler.dim()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < d; c++ {
			sum += features[i*d+c] * m.vec[c]
		}
		out[i] = sum
	}
	return out, nil
}

// Direction returns a copy of the reaction-coordinate direction in
// feature space.
func (m *LinearModel) Direction() []float64 {
	out := make([]float64, len(m.vec))
	copy(out, m.vec)
	return out
}
