package scorer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/moca-trajectory-engine/internal/trajectory"
)

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Run calls f(ctx, payload)
func (f RunnerFunc) Run(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// ServeReference answers one scoring request using the built-in rating rules.
// Malformed input is answered with an {"error": ...} object and also returned.
// Empty input produces no output.
func ServeReference(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		w.Write(EncodeError("failed to read input"))
		return fmt.Errorf("failed to read input: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	inputs, err := DecodeInputs(data)
	if err != nil {
		w.Write(EncodeError(err.Error()))
		return err
	}

	out, err := EncodeRecords(trajectory.Predict(inputs))
	if err != nil {
		w.Write(EncodeError(err.Error()))
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}
