package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"
)

// SigningOracle produces a venue-accepted signature for a set of order
// fields. Treated as a pure function: a native implementation is a drop-in
// replacement for SubprocessOracle provided it produces the same
// venue-accepted hash. Implementations must never log fields.
type SigningOracle interface {
	Sign(ctx context.Context, fields OrderFields) (Signature, error)
}

// SubprocessOracle shells to an external signing binary with a bounded
// timeout. Input/output are JSON on stdin/stdout; fields are passed
// without ever being logged.
type SubprocessOracle struct {
	BinaryPath string
	Timeout    time.Duration
}

func NewSubprocessOracle(binaryPath string) *SubprocessOracle {
	return &SubprocessOracle{BinaryPath: binaryPath, Timeout: 10 * time.Second}
}

func (o *SubprocessOracle) Sign(ctx context.Context, fields OrderFields) (Signature, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(fields)
	if err != nil {
		return Signature{}, Wrap(KindInvariant, "marshal order fields for oracle", err)
	}

	cmd := exec.CommandContext(ctx, o.BinaryPath)
	cmd.Stdin = bytes.NewReader(payload)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Signature{}, Wrap(KindFatal, "signing oracle timed out", err)
		}
		return Signature{}, Wrap(KindFatal, "signing oracle exited non-zero", err)
	}

	var sig Signature
	if err := json.Unmarshal(out.Bytes(), &sig); err != nil {
		return Signature{}, Wrap(KindProtocol, "malformed oracle response", err)
	}
	return sig, nil
}
