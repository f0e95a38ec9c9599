package resilience

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kbukum/meshkit/errors"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	case "HALF_OPEN":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("unknown circuit breaker state %q", text)
	}
	return nil
}

// StateChange describes one transition.
type StateChange struct {
	Name string
	From State
	To   State
	At   time.Time
}

var (
	// ErrCircuitOpen matches every *CircuitOpenError.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrOperationTimeout matches every *OperationTimeoutError.
	ErrOperationTimeout = errors.New("operation timed out")
)

// CircuitOpenError is returned without running the operation while the
// breaker is OPEN.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is open (retry after %s)", e.Name, e.RetryAfter.Round(time.Millisecond))
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

func (e *CircuitOpenError) AppError() *apperrors.AppError {
	return apperrors.CircuitOpen(e.Name, e.RetryAfter)
}

// OperationTimeoutError reports an operation that overran the breaker's
// Timeout. It counts as a timeout, not a generic failure.
type OperationTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %s: operation timed out after %s", e.Name, e.Timeout)
}

func (e *OperationTimeoutError) Is(target error) bool { return target == ErrOperationTimeout }

func (e *OperationTimeoutError) AppError() *apperrors.AppError {
	return apperrors.RequestTimeout(e.Name)
}
