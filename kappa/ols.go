package kappa

import "math"

// RegressionResult holds a simple OLS fit y = beta0 + beta1*x plus the
// standard errors and R^2 needed for the 95% confidence interval and
// quality gating.
type RegressionResult struct {
	Beta0, Beta1     float64
	SEBeta0, SEBeta1 float64
	RSquared         float64
}

// olsRegression fits y = beta0 + beta1*x by ordinary least squares,
// requiring n>=3 observations so the residual-variance denominator (n-2)
// is positive.
func olsRegression(x, y []float64) (RegressionResult, bool) {
	n := len(x)
	if n < 3 || n != len(y) {
		return RegressionResult{}, false
	}

	xMean, yMean := mean(x), mean(y)
	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - xMean
		dy := y[i] - yMean
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return RegressionResult{}, false
	}

	beta1 := sxy / sxx
	beta0 := yMean - beta1*xMean

	var ssRes float64
	for i := 0; i < n; i++ {
		pred := beta0 + beta1*x[i]
		resid := y[i] - pred
		ssRes += resid * resid
	}

	residVariance := ssRes / float64(n-2)
	seBeta1 := math.Sqrt(residVariance / sxx)
	seBeta0 := math.Sqrt(residVariance * (1.0/float64(n) + xMean*xMean/sxx))

	var rSquared float64
	if syy > 0 {
		rSquared = 1 - ssRes/syy
	}

	return RegressionResult{
		Beta0:    beta0,
		Beta1:    beta1,
		SEBeta0:  seBeta0,
		SEBeta1:  seBeta1,
		RSquared: rSquared,
	}, true
}
