package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors are fatal and raised at construction time.
	ErrConfig            = errors.New("invalid configuration")
	ErrUnknownTest       = fmt.Errorf("%w: test not recognized", ErrConfig)
	ErrUnknownNoiseModel = fmt.Errorf("%w: noise model not recognized", ErrConfig)
	ErrUnknownMethod     = fmt.Errorf("%w: correction method not recognized", ErrConfig)
	ErrUnknownPolicy     = fmt.Errorf("%w: correction policy not recognized", ErrConfig)
	ErrUnknownGroup      = fmt.Errorf("%w: group not recognized", ErrConfig)
	ErrUnknownPartition  = fmt.Errorf("%w: partition not recognized", ErrConfig)
	ErrGroupCount        = fmt.Errorf("%w: unexpected number of groups", ErrConfig)
	ErrSingleGroup       = fmt.Errorf("%w: exactly one group required", ErrConfig)
	ErrLazyTest          = fmt.Errorf("%w: lazy evaluation requires z-test", ErrConfig)
	ErrMissingFitter     = fmt.Errorf("%w: model-based test requires a fitter", ErrConfig)
	ErrCoefficient       = fmt.Errorf("%w: coefficient not found", ErrConfig)

	// Access errors
	ErrTestsNotKept    = errors.New("individual tests were not kept")
	ErrLazyUnsupported = errors.New("not available in lazy evaluation: requires all pairwise tests")

	// Input errors
	ErrShape = errors.New("shape mismatch")
)

// Error constructors with context
func NewConfigError(param string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfig, param, reason)
}

func NewUnknownGroupError(param string, group string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownGroup, param, group)
}

func NewShapeError(what string, want, got int) error {
	return fmt.Errorf("%w: %s: want %d, got %d", ErrShape, what, want, got)
}

// Error checking helpers
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrShape)
}
