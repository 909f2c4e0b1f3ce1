package approval

import "errors"

var (
	// ErrConfiguration is returned when a required approver cannot be resolved
	ErrConfiguration = errors.New("approval configuration error")

	// ErrPermission is returned when an actor has no actionable pending task
	ErrPermission = errors.New("approval permission denied")

	// ErrValidation is returned when an application cannot be resolved as submitted
	ErrValidation = errors.New("approval validation failed")
)
