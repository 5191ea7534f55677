package lifecycle

import (
	"errors"

	"mechanicBack/internal/booking/fsm"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("job not found")
	ErrJobUnavailable       = errors.New("job no longer available")
	ErrInvalidTransition    = fsm.ErrInvalidTransition
	ErrNotAssigned          = errors.New("job is not assigned to this mechanic")
	ErrCaptureFailed        = errors.New("payment capture failed")
	ErrDirectoryUnavailable = errors.New("mechanic directory unavailable")
)
