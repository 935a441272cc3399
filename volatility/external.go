package volatility

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"perpmm/history"
)

// externalRequest/externalResponse are the subprocess oracle's JSON
// stdin/stdout contract: log returns in, sigma/r_squared out. Mirrors
// venue.SubprocessOracle's stdin/stdout JSON convention so the two bounded
// subprocess collaborators in this codebase look the same to a reader.
type externalRequest struct {
	Returns []float64 `json:"returns"`
}

type externalResponse struct {
	Sigma    float64 `json:"sigma"`
	RSquared float64 `json:"r_squared"`
}

// ExternalOracle shells to an out-of-process Student-t estimator. A 10s
// timeout and non-zero exit both fall back to GARCH-t rather than
// erroring; the caller should log that fallback at WARN since it
// represents a degraded (if still usable) estimate.
type ExternalOracle struct {
	BinaryPath string
	Timeout    time.Duration
}

func NewExternalOracle(binaryPath string) *ExternalOracle {
	return &ExternalOracle{BinaryPath: binaryPath, Timeout: 10 * time.Second}
}

// Run invokes the external estimator. ok is false whenever the caller must
// fall back to GARCH-t: binary unset, timeout, non-zero exit, or malformed
// response.
func (o *ExternalOracle) Run(ctx context.Context, returns []float64) (Estimate, bool) {
	if o == nil || o.BinaryPath == "" {
		return Estimate{}, false
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(externalRequest{Returns: returns})
	if err != nil {
		return Estimate{}, false
	}

	cmd := exec.CommandContext(ctx, o.BinaryPath)
	cmd.Stdin = bytes.NewReader(payload)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return Estimate{Status: StatusTimeout}, false
	}

	var resp externalResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		return Estimate{}, false
	}
	if resp.Sigma <= 0 {
		return Estimate{}, false
	}
	return Estimate{Sigma: resp.Sigma, RSquared: resp.RSquared, Status: StatusOK}, true
}

// EstimateWithOracle is the production entry point for MethodExternal: try
// the subprocess oracle first, fall back to GARCH-t on any failure. For all
// other methods it behaves exactly like Estimate. fellBack reports whether
// the external call failed and GARCH-t served the result instead, so the
// caller can log the fallback at WARN.
func (e *Estimator) EstimateWithOracle(ctx context.Context, w *history.Window, now time.Time, oracle *ExternalOracle) (estimate Estimate, fellBack bool) {
	if e.method != MethodExternal || oracle == nil {
		return e.Estimate(w, now), false
	}

	samples := w.TopOfBook(now)
	if len(samples) < 2 {
		return Estimate{Status: StatusInsufficient}, false
	}
	returns := logReturns(samples)
	intervals := sampleIntervals(samples)
	if len(returns) < e.minSamples {
		return Estimate{Status: StatusInsufficient}, false
	}

	if est, ok := oracle.Run(ctx, returns); ok {
		return est, false
	}
	return e.estimateGarchT(returns, intervals), true
}
