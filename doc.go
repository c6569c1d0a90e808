// Package tram computes low-dimensional reaction-coordinate embeddings for
// stochastic dynamical systems from samples of their short-time transition
// behavior (transition-manifold estimation).
//
// The input is an ensemble of point clouds: for each start point, a set of
// endpoints of short stochastic simulations launched from it. The pipeline
// compares the empirical transition distributions of all start points
// pairwise (kernel MMD², embedded means, or weighted density L2 distances),
// then extracts a low-dimensional embedding, either spectrally via diffusion
// maps or as a linear projection via kernel feature approximation.
//
// Basic usage with parallel short bursts and an RBF kernel:
//
//	X, err := tram.NewEnsemble(data, n, m, dims) // (n start points, m bursts each)
//	tm := tram.NewKernelBurstManifold(tram.BurstConfig{
//		Kernel:      tram.GaussianKernel{Sigma2: 0.1},
//		NComponents: 5,
//	})
//	model, err := tm.Fit(X)
//	coords, err := model.Coordinates(2) // n×2 diffusion coordinates
//
// For a linear reaction coordinate with out-of-sample evaluation:
//
//	tm := tram.NewLinearRandomFeatureManifold(tram.LinearRFConfig{
//		Method: tram.MethodRFF,
//		Gamma:  0.1,
//	})
//	model, err := tm.Fit(X)
//	rc, err := model.Predict(testPoints, nTest)
//
// # Variants
//
// Four orchestration variants implement [Manifold]. They differ only in how
// point clouds are assembled before the pairwise comparison:
//
//	KernelBurstManifold       // MMD² between burst endpoint clouds
//	KernelTrajectoryManifold  // one long trajectory, Voronoi cells + lag
//	EmbeddingBurstManifold    // explicit embedding means, Euclidean distances
//	L2BurstManifold           // weighted L2 distance between densities (2D)
//
// All computations are deterministic for a fixed seed; random feature maps
// and random embeddings own their generator and never touch global RNG state.
package tram
