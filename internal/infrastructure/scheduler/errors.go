package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when an operation needs a started scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobExists is returned when a job name is already registered
	ErrJobExists = errors.New("job already registered")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
