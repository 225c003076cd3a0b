package transcribe

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the transcription core. Callers match them with
// errors.Is; the wrapped message carries the offending value.
var (
	// ErrConfiguration is returned when a tuning parameter, pitch range,
	// tempo or hop duration is rejected before any computation starts.
	ErrConfiguration = errors.New("configuration error")

	// ErrInputShape is returned for mismatched frame counts or malformed
	// transition/likelihood matrices.
	ErrInputShape = errors.New("input shape error")

	// ErrNumericDegeneracy is returned when a likelihood row is all zero,
	// which would make every path equally improbable.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")

	// ErrInvalidInput is returned for per-frame evidence outside its domain
	// (negative frequency on a voiced frame, voicing probability outside [0,1]).
	ErrInvalidInput = errors.New("invalid input")
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func shapeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputShape, fmt.Sprintf(format, args...))
}

func inputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
