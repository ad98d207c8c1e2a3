package shared

import "fmt"

var (
	// Configuration and credential errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limit exceeded")

	// Resolution and sync errors
	ErrNoMatch  = fmt.Errorf("no release matched")
	ErrSync     = fmt.Errorf("sync operation failed")
	ErrNotFound = fmt.Errorf("not found")

	// Input validation errors
	ErrParse           = fmt.Errorf("input parsing failed")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
