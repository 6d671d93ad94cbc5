package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobIDRequired is returned when a mutation is attempted without a job id.
	ErrJobIDRequired = errors.New("job id is required")
	// ErrTaskIDRequired is returned when a provider task id lookup gets an empty id.
	ErrTaskIDRequired = errors.New("provider task id is required")
)
