package discovery

import (
	"errors"
	"fmt"

	apperrors "github.com/kbukum/meshkit/errors"
)

var (
	ErrInstanceNotFound  = errors.New("service instance not found")
	ErrNoHealthyInstance = errors.New("no healthy instance available")
)

// ValidationError rejects a malformed instance or service configuration.
type ValidationError struct {
	Service string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("invalid service registration: %v", e.Err)
	}
	return fmt.Sprintf("invalid registration for service %s: %v", e.Service, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) AppError() *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(e.Err); ok {
		return appErr
	}
	return apperrors.Validation(e.Error()).WithCause(e.Err)
}

// HealthCheckError is one failed probe. Status is zero for transport errors.
type HealthCheckError struct {
	Service    string
	InstanceID string
	URL        string
	Status     int
	Expected   int
	Err        error
}

func (e *HealthCheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("health check %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("health check %s failed: status %d, expected %d", e.URL, e.Status, e.Expected)
}

func (e *HealthCheckError) Unwrap() error { return e.Err }

func (e *HealthCheckError) AppError() *apperrors.AppError {
	return apperrors.HealthCheckFailed(e.Service, e.InstanceID).WithCause(e)
}

// NoHealthyInstanceError reports an empty selection for Service.
type NoHealthyInstanceError struct {
	Service string
}

func (e *NoHealthyInstanceError) Error() string {
	return fmt.Sprintf("no healthy instance available for service %s", e.Service)
}

func (e *NoHealthyInstanceError) Is(target error) bool { return target == ErrNoHealthyInstance }

func (e *NoHealthyInstanceError) AppError() *apperrors.AppError {
	return apperrors.NoHealthyInstance(e.Service)
}
