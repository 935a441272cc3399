package volatility

import "math"

// GarchParams are the fitted GARCH(1,1)-Gaussian coefficients:
// r_t = mu + eps_t, eps_t = sigma_t * z_t, sigma_t^2 = omega + alpha*eps_{t-1}^2 + beta*sigma_{t-1}^2.
type GarchParams struct {
	Mu, Omega, Alpha, Beta float64
}

// IsValid enforces the stationarity/positivity constraints required for a
// usable fit: omega>0, alpha>=0, beta>=0, alpha+beta<1.
func (p GarchParams) IsValid() bool {
	return p.Omega > 0 && p.Alpha >= 0 && p.Beta >= 0 && p.Alpha+p.Beta < 1
}

// GarchParamsStudentT adds the Student-t degrees-of-freedom parameter nu,
// constrained to nu > 2 for finite variance.
type GarchParamsStudentT struct {
	GarchParams
	Nu float64
}

func (p GarchParamsStudentT) IsValid() bool {
	return p.GarchParams.IsValid() && p.Nu > 2.0
}

const (
	smallPos   = 1e-12
	largeNum   = 1e12
	garchRestarts  = 3
	garchMaxIter   = 500
)

func arrayMean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func arrayVariance(xs []float64) float64 {
	n := float64(len(xs))
	m := arrayMean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / (n - 1)
}

// logGamma computes ln(Gamma(x)) via the Lanczos approximation (g=7, 9
// coefficients), with the reflection formula for x<0.5.
func logGamma(x float64) float64 {
	lanczosG := 7.0
	coef := [9]float64{
		0.99999999999980993,
		676.5203681218851,
		-1259.1392167224028,
		771.32342877765313,
		-176.61502916214059,
		12.507343278686905,
		-0.13857109526572012,
		9.9843695780195716e-6,
		1.5056327351493116e-7,
	}
	if x < 0.5 {
		return math.Log(math.Pi) - math.Log(math.Abs(math.Sin(math.Pi*x))) - logGamma(1.0-x)
	}
	z := x - 1.0
	sum := coef[0]
	for i := 1; i < 9; i++ {
		sum += coef[i] / (z + float64(i))
	}
	temp := z + lanczosG + 0.5
	return 0.5*math.Log(2*math.Pi) + (z+0.5)*math.Log(temp) - temp + math.Log(sum)
}

// garchSigma2 runs the GARCH(1,1) recursion given residuals, seeding
// sigma2[0] with the sample variance of the residuals.
func garchSigma2(residuals []float64, omega, alpha, beta float64) []float64 {
	n := len(residuals)
	sigma2 := make([]float64, n)
	seed := arrayVariance(residuals)
	if seed <= 0 || math.IsNaN(seed) {
		seed = smallPos
	}
	sigma2[0] = seed
	for t := 1; t < n; t++ {
		sigma2[t] = omega + alpha*residuals[t-1]*residuals[t-1] + beta*sigma2[t-1]
		if sigma2[t] <= 0 {
			sigma2[t] = smallPos
		}
	}
	return sigma2
}

// negLogLikelihood is the Gaussian GARCH(1,1) negative log-likelihood for
// theta=[mu,omega,alpha,beta].
func negLogLikelihood(theta []float64, returns []float64) float64 {
	mu, omega, alpha, beta := theta[0], theta[1], theta[2], theta[3]
	if omega <= 0 || alpha < 0 || beta < 0 || alpha+beta >= 1 {
		return largeNum
	}
	n := len(returns)
	residuals := make([]float64, n)
	for i, r := range returns {
		residuals[i] = r - mu
	}
	sigma2 := garchSigma2(residuals, omega, alpha, beta)

	nll := 0.0
	for t := 0; t < n; t++ {
		s2 := sigma2[t]
		if s2 <= 0 {
			return largeNum
		}
		nll += 0.5*math.Log(2*math.Pi) + 0.5*math.Log(s2) + 0.5*residuals[t]*residuals[t]/s2
	}
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return largeNum
	}
	return nll
}

// negLogLikelihoodStudentT is the Student-t GARCH(1,1) negative
// log-likelihood for theta=[mu,omega,alpha,beta,nu].
func negLogLikelihoodStudentT(theta []float64, returns []float64) float64 {
	mu, omega, alpha, beta, nu := theta[0], theta[1], theta[2], theta[3], theta[4]
	if omega <= 0 || alpha < 0 || beta < 0 || alpha+beta >= 1 || nu <= 2.0 {
		return largeNum
	}
	n := len(returns)
	residuals := make([]float64, n)
	for i, r := range returns {
		residuals[i] = r - mu
	}
	sigma2 := garchSigma2(residuals, omega, alpha, beta)

	logC := logGamma((nu+1)/2) - logGamma(nu/2) - 0.5*math.Log((nu-2)*math.Pi)
	nll := 0.0
	for t := 0; t < n; t++ {
		s2 := sigma2[t]
		if s2 <= 0 {
			return largeNum
		}
		z2 := residuals[t] * residuals[t] / s2
		term := logC - 0.5*math.Log(s2) - ((nu+1)/2)*math.Log(1+z2/(nu-2))
		nll -= term
	}
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return largeNum
	}
	return nll
}

// fitGarch11 fits the Gaussian GARCH(1,1) model by Nelder-Mead with
// garchRestarts perturbed restarts, keeping the best log-likelihood.
func fitGarch11(returns []float64) (GarchParams, float64, bool) {
	mean := arrayMean(returns)
	v0 := arrayVariance(returns)
	if v0 <= 0 || math.IsNaN(v0) {
		v0 = smallPos
	}
	base := []float64{mean, 0.1 * v0, 0.05, 0.90}

	best := GarchParams{}
	bestNLL := math.Inf(1)
	ok := false
	for r := 0; r < garchRestarts; r++ {
		simplex := perturbSimplex(base, r)
		theta, nll := nelderMead(simplex, garchMaxIter, func(x []float64) float64 {
			return negLogLikelihood(x, returns)
		})
		p := GarchParams{Mu: theta[0], Omega: theta[1], Alpha: theta[2], Beta: theta[3]}
		if p.IsValid() && nll < bestNLL {
			best = p
			bestNLL = nll
			ok = true
		}
	}
	return best, bestNLL, ok
}

// fitGarch11StudentT is the Student-t analog of fitGarch11, adding nu to the
// simplex.
func fitGarch11StudentT(returns []float64) (GarchParamsStudentT, float64, bool) {
	mean := arrayMean(returns)
	v0 := arrayVariance(returns)
	if v0 <= 0 || math.IsNaN(v0) {
		v0 = smallPos
	}
	base := []float64{mean, 0.1 * v0, 0.05, 0.90, 6.0}

	best := GarchParamsStudentT{}
	bestNLL := math.Inf(1)
	ok := false
	for r := 0; r < garchRestarts; r++ {
		simplex := perturbSimplex(base, r)
		theta, nll := nelderMead(simplex, garchMaxIter, func(x []float64) float64 {
			return negLogLikelihoodStudentT(x, returns)
		})
		p := GarchParamsStudentT{
			GarchParams: GarchParams{Mu: theta[0], Omega: theta[1], Alpha: theta[2], Beta: theta[3]},
			Nu:          theta[4],
		}
		if p.IsValid() && nll < bestNLL {
			best = p
			bestNLL = nll
			ok = true
		}
	}
	return best, bestNLL, ok
}

// predictOneStep computes the one-step-ahead Gaussian GARCH(1,1) forecast.
// The result is sigma per sample interval, not per second; callers rescale
// by the average interval before reporting.
func predictOneStep(params GarchParams, returns []float64) float64 {
	n := len(returns)
	residuals := make([]float64, n)
	for i, r := range returns {
		residuals[i] = r - params.Mu
	}
	sigma2 := garchSigma2(residuals, params.Omega, params.Alpha, params.Beta)
	last := sigma2[n-1]
	epsLast := residuals[n-1]
	varNext := params.Omega + params.Alpha*epsLast*epsLast + params.Beta*last
	if varNext < 0 {
		varNext = 0
	}
	return math.Sqrt(varNext)
}

func predictOneStepStudentT(params GarchParamsStudentT, returns []float64) float64 {
	return predictOneStep(params.GarchParams, returns)
}

func (e *Estimator) estimateGarch(returns, intervals []float64) Estimate {
	params, nll, ok := fitGarch11(returns)
	if !ok {
		return Estimate{Status: StatusPoorFit}
	}
	avgInterval := arrayMean(intervals)
	if avgInterval <= 0 {
		return Estimate{Status: StatusInsufficient}
	}
	// The forecast variance is per sample interval; divide by the average
	// interval to report sigma in per-second units, the same scaling
	// estimateSimple applies.
	sigma := predictOneStep(params, returns) / math.Sqrt(avgInterval)
	r2 := pseudoRSquared(returns, nll)
	status := StatusOK
	if r2 < 0.0 {
		status = StatusPoorFit
	}
	return Estimate{Sigma: sigma, RSquared: r2, Status: status, Params: &params}
}

func (e *Estimator) estimateGarchT(returns, intervals []float64) Estimate {
	params, nll, ok := fitGarch11StudentT(returns)
	if !ok {
		return Estimate{Status: StatusPoorFit}
	}
	avgInterval := arrayMean(intervals)
	if avgInterval <= 0 {
		return Estimate{Status: StatusInsufficient}
	}
	sigma := predictOneStepStudentT(params, returns) / math.Sqrt(avgInterval)
	r2 := pseudoRSquared(returns, nll)
	status := StatusOK
	if r2 < 0.0 {
		status = StatusPoorFit
	}
	return Estimate{Sigma: sigma, RSquared: r2, Status: status, ParamsT: &params}
}

// pseudoRSquared compares the fitted model's log-likelihood against a
// constant-variance null model as a rough goodness-of-fit diagnostic; it is
// not used for any rejection rule in this package, only surfaced for
// observability.
func pseudoRSquared(returns []float64, fittedNLL float64) float64 {
	v := arrayVariance(returns)
	if v <= 0 {
		return 0
	}
	nullNLL := 0.0
	for _, r := range returns {
		m := arrayMean(returns)
		d := r - m
		nullNLL += 0.5*math.Log(2*math.Pi) + 0.5*math.Log(v) + 0.5*d*d/v
	}
	if nullNLL == 0 {
		return 0
	}
	return 1 - fittedNLL/nullNLL
}

// perturbSimplex builds a dim+1 vertex initial simplex around base, with a
// restart-indexed perturbation so successive restarts explore different
// regions of parameter space.
func perturbSimplex(base []float64, restart int) [][]float64 {
	dim := len(base)
	simplex := make([][]float64, dim+1)
	simplex[0] = append([]float64{}, base...)
	scale := 1.0 + 0.1*float64(restart+1)
	for i := 0; i < dim; i++ {
		v := append([]float64{}, base...)
		if v[i] == 0 {
			v[i] = 0.01 * scale
		} else {
			v[i] *= 1.1 * scale
		}
		simplex[i+1] = v
	}
	return simplex
}
