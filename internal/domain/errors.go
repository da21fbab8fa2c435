package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrRunAlreadyActive  = errors.New("run already active")
	ErrPortUnavailable   = errors.New("port unavailable")
	ErrForecastTimeout   = errors.New("forecast timeout")
	ErrNoBaselineTargets = errors.New("no baseline safety stock available")
)

// InvalidParameterError is raised before any I/O for malformed formula inputs.
// It is never retried.
type InvalidParameterError struct {
	Param  string
	Value  any
	Reason string
}

func NewInvalidParameter(param string, value any, reason string) *InvalidParameterError {
	return &InvalidParameterError{Param: param, Value: value, Reason: reason}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// RunAlreadyActiveError is returned when a run of the same kind holds the lock.
type RunAlreadyActiveError struct {
	Kind RunKind
}

func (e *RunAlreadyActiveError) Error() string {
	return fmt.Sprintf("a %s run is already active", e.Kind)
}

func (e *RunAlreadyActiveError) Is(target error) bool {
	return target == ErrRunAlreadyActive
}

// PortUnavailableError wraps any adapter failure.
type PortUnavailableError struct {
	Port string
	Err  error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("port %s unavailable: %v", e.Port, e.Err)
}

func (e *PortUnavailableError) Unwrap() error { return e.Err }

func (e *PortUnavailableError) Is(target error) bool {
	return target == ErrPortUnavailable
}

// ForecastTimeoutError triggers the cached-forecast fallback.
type ForecastTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *ForecastTimeoutError) Error() string {
	return fmt.Sprintf("forecast did not answer within %s: %v", e.Timeout, e.Err)
}

func (e *ForecastTimeoutError) Unwrap() error { return e.Err }

func (e *ForecastTimeoutError) Is(target error) bool {
	return target == ErrForecastTimeout
}
