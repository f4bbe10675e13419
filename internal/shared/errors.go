package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrLocked        = fmt.Errorf("data directory is locked by another process")

	// Conversion errors
	ErrExecutorFailure     = fmt.Errorf("conversion failed")
	ErrMetadataUnavailable = fmt.Errorf("metadata unavailable")
	ErrStorageFailure      = fmt.Errorf("durable storage failed")
	ErrQueueFull           = fmt.Errorf("conversion queue is full")
	ErrInvalidTransition   = fmt.Errorf("invalid phase transition")

	// Lookup errors
	ErrNotFound = fmt.Errorf("not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
