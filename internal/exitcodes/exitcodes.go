package exitcodes

import (
	"errors"

	"dirsweep/internal/config"
	"dirsweep/internal/deltree"
	"dirsweep/internal/safety"
)

// Exit codes for dirsweep
// These codes form the operational contract with CI/CD and operators
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file or delete options invalid
	SafetyViolation = 3 // Safety validator blocked an operation
	RuntimeError    = 4 // Walk failed part way (I/O failure, cancellation)
	NotFound        = 5 // Target does not exist
	AccessDenied    = 6 // Target could not be deleted for lack of permission
)

// ForError maps an error returned by a sweep or delete command to its exit code
func ForError(err error) int {
	var violation *safety.Violation
	switch {
	case err == nil:
		return Success
	case errors.As(err, &violation):
		return SafetyViolation
	case errors.Is(err, deltree.ErrInvalidOptions),
		errors.Is(err, config.ErrNoTargets),
		errors.Is(err, config.ErrInvalidPath),
		errors.Is(err, config.ErrInvalidLevel),
		errors.Is(err, config.ErrInvalidFormat),
		errors.Is(err, config.ErrNegativeSetting):
		return InvalidConfig
	case errors.Is(err, deltree.ErrNotFound):
		return NotFound
	case errors.Is(err, deltree.ErrAccessDenied):
		return AccessDenied
	default:
		return RuntimeError
	}
}
