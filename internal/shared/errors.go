package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized       = fmt.Errorf("not authorized")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Domain errors
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("already exists")
	ErrInternal = fmt.Errorf("internal error")

	// API and service errors
	ErrUpstream           = fmt.Errorf("upstream request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// UpstreamError describes a non-2xx response from an external API.
//
// It matches [ErrUpstream] with [errors.Is], so callers can branch on the sentinel and
// still reach the status and body with [errors.As].
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: status %d", e.Service, e.Status)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
