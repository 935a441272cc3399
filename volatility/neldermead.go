package volatility

import "sort"

// nelderMead is a standard derivative-free simplex minimizer (reflection,
// expansion, contraction, shrink) with the textbook coefficients alpha=1,
// gamma=2, rho=0.5, sigma=0.5.
func nelderMead(simplex [][]float64, maxIter int, f func([]float64) float64) ([]float64, float64) {
	const (
		alpha = 1.0
		gamma = 2.0
		rho   = 0.5
		sigma = 0.5
		tol   = 1e-6
	)

	n := len(simplex) - 1 // dimension
	vertices := make([][]float64, len(simplex))
	for i, v := range simplex {
		vertices[i] = append([]float64{}, v...)
	}
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = f(v)
	}

	order := func() {
		idx := make([]int, len(vertices))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
		newVerts := make([][]float64, len(vertices))
		newVals := make([]float64, len(vertices))
		for i, id := range idx {
			newVerts[i] = vertices[id]
			newVals[i] = values[id]
		}
		vertices, values = newVerts, newVals
	}

	for iter := 0; iter < maxIter; iter++ {
		order()

		// Convergence: spread of function values across the simplex.
		spread := values[n] - values[0]
		if spread < 0 {
			spread = -spread
		}
		if spread < tol {
			break
		}

		centroid := make([]float64, n)
		for i := 0; i < n; i++ {
			for d := 0; d < n; d++ {
				centroid[d] += vertices[i][d]
			}
		}
		for d := 0; d < n; d++ {
			centroid[d] /= float64(n)
		}

		worst := vertices[n]
		reflected := addScaled(centroid, centroid, worst, alpha)
		fReflected := f(reflected)

		switch {
		case fReflected < values[0]:
			expanded := expandPoint(centroid, reflected, gamma)
			fExpanded := f(expanded)
			if fExpanded < fReflected {
				vertices[n] = expanded
				values[n] = fExpanded
			} else {
				vertices[n] = reflected
				values[n] = fReflected
			}
		case fReflected < values[n-1]:
			vertices[n] = reflected
			values[n] = fReflected
		default:
			var contracted []float64
			var fContracted float64
			if fReflected < values[n] {
				contracted = contractPoint(centroid, reflected, rho)
				fContracted = f(contracted)
				if fContracted < fReflected {
					vertices[n] = contracted
					values[n] = fContracted
					continue
				}
			} else {
				contracted = contractPoint(centroid, worst, rho)
				fContracted = f(contracted)
				if fContracted < values[n] {
					vertices[n] = contracted
					values[n] = fContracted
					continue
				}
			}
			// Shrink toward the best vertex.
			best := vertices[0]
			for i := 1; i <= n; i++ {
				for d := 0; d < n; d++ {
					vertices[i][d] = best[d] + sigma*(vertices[i][d]-best[d])
				}
				values[i] = f(vertices[i])
			}
		}
	}

	order()
	return vertices[0], values[0]
}

// addScaled returns centroid + scale*(centroid-worst), i.e. the reflection
// point when scale=alpha.
func addScaled(base, centroid, worst []float64, scale float64) []float64 {
	out := make([]float64, len(base))
	for d := range base {
		out[d] = centroid[d] + scale*(centroid[d]-worst[d])
	}
	return out
}

func expandPoint(centroid, reflected []float64, gamma float64) []float64 {
	out := make([]float64, len(centroid))
	for d := range centroid {
		out[d] = centroid[d] + gamma*(reflected[d]-centroid[d])
	}
	return out
}

func contractPoint(centroid, point []float64, rho float64) []float64 {
	out := make([]float64, len(centroid))
	for d := range centroid {
		out[d] = centroid[d] + rho*(point[d]-centroid[d])
	}
	return out
}
