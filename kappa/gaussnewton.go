package kappa

import "math"

// expFit is the outcome of fitting lambda(delta) = A * exp(-kappa*delta)
// directly in intensity space.
type expFit struct {
	A        float64
	Kappa    float64 // 1/tick
	SEKappa  float64
	RSquared float64
}

const (
	gnMaxIter = 50
	gnTol     = 1e-9
)

// gaussNewtonExpFit fits lambda(delta) = A*exp(-k*delta) by Gauss-Newton
// with step halving, starting from (a0, k0). The 2x2 normal equations are
// solved in closed form each iteration. Returns false when the Jacobian is
// singular, the iteration diverges, or the fitted k is not positive.
func gaussNewtonExpFit(deltas, intensity []float64, a0, k0 float64) (expFit, bool) {
	n := len(deltas)
	if n < 3 || len(intensity) != n {
		return expFit{}, false
	}
	a, k := a0, k0
	if a <= 0 {
		a = 1
	}
	if k <= 0 {
		k = 1e-3
	}

	sse := expSSE(deltas, intensity, a, k)
	for iter := 0; iter < gnMaxIter; iter++ {
		// Normal equations J^T J [da dk]^T = J^T r with
		// df/dA = e^(-k*d), df/dk = -A*d*e^(-k*d).
		var jaa, jak, jkk, ga, gk float64
		for i := 0; i < n; i++ {
			e := math.Exp(-k * deltas[i])
			r := intensity[i] - a*e
			ja := e
			jk := -a * deltas[i] * e
			jaa += ja * ja
			jak += ja * jk
			jkk += jk * jk
			ga += ja * r
			gk += jk * r
		}
		det := jaa*jkk - jak*jak
		if math.Abs(det) < 1e-18 {
			return expFit{}, false
		}
		da := (jkk*ga - jak*gk) / det
		dk := (jaa*gk - jak*ga) / det

		// Step halving keeps the iteration from overshooting on poorly
		// conditioned grids.
		step := 1.0
		improved := false
		for h := 0; h < 8; h++ {
			na, nk := a+step*da, k+step*dk
			if na > 0 && nk > 0 {
				if nsse := expSSE(deltas, intensity, na, nk); nsse < sse {
					a, k, sse = na, nk, nsse
					improved = true
					break
				}
			}
			step /= 2
		}
		if !improved {
			break
		}
		if math.Abs(step*da) < gnTol && math.Abs(step*dk) < gnTol {
			break
		}
	}
	if math.IsNaN(a) || math.IsNaN(k) || k <= 0 || a <= 0 {
		return expFit{}, false
	}

	meanY := mean(intensity)
	var sst float64
	for _, y := range intensity {
		d := y - meanY
		sst += d * d
	}
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}

	// Approximate covariance s^2*(J^T J)^-1 at the solution; the kk entry
	// gives the standard error of kappa.
	var jaa, jak, jkk float64
	for i := 0; i < n; i++ {
		e := math.Exp(-k * deltas[i])
		ja := e
		jk := -a * deltas[i] * e
		jaa += ja * ja
		jak += ja * jk
		jkk += jk * jk
	}
	det := jaa*jkk - jak*jak
	if det <= 0 {
		return expFit{}, false
	}
	s2 := sse / float64(n-2)
	seK := math.Sqrt(s2 * jaa / det)

	return expFit{A: a, Kappa: k, SEKappa: seK, RSquared: r2}, true
}

func expSSE(deltas, intensity []float64, a, k float64) float64 {
	var sse float64
	for i := range deltas {
		r := intensity[i] - a*math.Exp(-k*deltas[i])
		sse += r * r
	}
	return sse
}
