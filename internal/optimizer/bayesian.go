package optimizer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// gpLengthScale, gpSignalVariance and gpNoiseVariance parameterize the
// RBF-kernel Gaussian process surrogate. bayesianPoolSize is the
// number of randomly sampled candidates evaluated for expected
// improvement at each surrogate-guided step, since the parameter space
// mixes continuous and categorical dimensions and has no closed-form
// acquisition maximizer.
const (
	gpLengthScale    = 0.3
	gpSignalVariance = 1.0
	gpNoiseVariance  = 1e-6
	bayesianInitialSamples = 10
	bayesianPoolSize       = 200
)

// BayesianOptimization draws an initial batch of random samples, then
// fits a Gaussian process surrogate over all evaluated candidates and
// picks each subsequent candidate by maximizing expected improvement
// over a freshly sampled candidate pool.
func (o *Optimizer) BayesianOptimization(space SearchSpace, iterations int, seed int64) []OptimizationResult {
	rng := rand.New(rand.NewSource(seed))

	initial := bayesianInitialSamples
	if initial > iterations {
		initial = iterations
	}

	candidates := make([]ParameterSet, initial)
	for i := range candidates {
		candidates[i] = sampleUniform(space, rng)
	}
	metrics := o.evaluateBatch(candidates)

	for len(candidates) < iterations {
		scores := scoreBatch(metrics)
		X := normalizeAll(candidates, space)
		gp := fitGP(X, scores)

		pool := make([]ParameterSet, bayesianPoolSize)
		for i := range pool {
			pool[i] = sampleUniform(space, rng)
		}
		poolX := normalizeAll(pool, space)

		best := maxFloat(scores)
		bestIdx := -1
		bestEI := math.Inf(-1)
		for i, x := range poolX {
			mean, variance := gp.predict(x)
			ei := expectedImprovement(mean, variance, best)
			if ei > bestEI {
				bestEI = ei
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			bestIdx = 0
		}

		next := pool[bestIdx]
		nextMetric := o.evaluateBatch([]ParameterSet{next})[0]
		candidates = append(candidates, next)
		metrics = append(metrics, nextMetric)
	}

	return buildResults(candidates, metrics)
}

func normalizeAll(candidates []ParameterSet, space SearchSpace) [][]float64 {
	out := make([][]float64, len(candidates))
	for i, c := range candidates {
		out[i] = normalizeParams(c, space)
	}
	return out
}

func normalizeParams(p ParameterSet, space SearchSpace) []float64 {
	levelSpan := float64(space.GridLevelsMax - space.GridLevelsMin)
	levelNorm := 0.5
	if levelSpan > 0 {
		levelNorm = float64(p.GridLevels-space.GridLevelsMin) / levelSpan
	}
	spacingSpan := space.GridSpacingMax - space.GridSpacingMin
	spacingNorm := 0.5
	if spacingSpan > 0 {
		spacingNorm = (p.GridSpacing - space.GridSpacingMin) / spacingSpan
	}
	tfNorm := indexNorm(p.TimeframeMinutes, space.Timeframes)
	riskNorm := indexNorm(int(p.RiskSizing), riskModeInts(space.RiskSizingModes))
	return []float64{levelNorm, spacingNorm, tfNorm, riskNorm}
}

func riskModeInts(modes []RiskSizingMode) []int {
	out := make([]int, len(modes))
	for i, m := range modes {
		out[i] = int(m)
	}
	return out
}

func indexNorm(v int, options []int) float64 {
	if len(options) <= 1 {
		return 0.5
	}
	for i, o := range options {
		if o == v {
			return float64(i) / float64(len(options)-1)
		}
	}
	return 0.5
}

// gaussianProcess is a fitted RBF-kernel GP regressor.
type gaussianProcess struct {
	X     [][]float64
	alpha *mat.VecDense // K^-1 y, precomputed via Cholesky solve
	chol  *mat.Cholesky
}

func rbfKernel(a, b []float64) float64 {
	var sqDist float64
	for i := range a {
		d := a[i] - b[i]
		sqDist += d * d
	}
	return gpSignalVariance * math.Exp(-sqDist/(2*gpLengthScale*gpLengthScale))
}

func fitGP(X [][]float64, y []float64) *gaussianProcess {
	n := len(X)
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rbfKernel(X[i], X[j])
			if i == j {
				v += gpNoiseVariance
			}
			K.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	ok := chol.Factorize(K)

	yVec := mat.NewVecDense(n, y)
	alpha := mat.NewVecDense(n, nil)

	if ok {
		_ = chol.SolveVecTo(alpha, yVec)
	} else {
		// numerically degenerate kernel (near-duplicate points): fall
		// back to a ridge-regularized diagonal solve.
		for i := 0; i < n; i++ {
			denom := rbfKernel(X[i], X[i]) + gpNoiseVariance
			if denom == 0 {
				continue
			}
			alpha.SetVec(i, y[i]/denom)
		}
	}

	return &gaussianProcess{X: X, alpha: alpha, chol: &chol}
}

func (gp *gaussianProcess) predict(x []float64) (mean, variance float64) {
	n := len(gp.X)
	if n == 0 {
		return 0, gpSignalVariance
	}
	kStar := mat.NewVecDense(n, nil)
	for i, xi := range gp.X {
		kStar.SetVec(i, rbfKernel(xi, x))
	}
	mean = mat.Dot(kStar, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kStar); err == nil {
		variance = gpSignalVariance - mat.Dot(kStar, v)
	} else {
		variance = gpSignalVariance
	}
	if variance < 1e-12 {
		variance = 1e-12
	}
	return mean, variance
}

var standardNormal = distuv.Normal{Mu: 0, Sigma: 1}

func expectedImprovement(mean, variance, best float64) float64 {
	std := math.Sqrt(variance)
	if std <= 0 {
		return 0
	}
	z := (mean - best) / std
	return (mean-best)*standardNormal.CDF(z) + std*standardNormal.Prob(z)
}

func maxFloat(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
