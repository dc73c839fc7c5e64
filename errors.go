package spinevo

import (
	"errors"
	"fmt"
)

// ErrSamplingNonConvergence is wrapped by SamplingError when the Poisson gap draw is rejected too many times.
var ErrSamplingNonConvergence = errors.New("collapse sampling did not converge")

// ConfigurationError is returned when a simulation parameter is invalid. It is always returned before any evolution starts.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func configErr(param, format string, args ...interface{}) error {
	return &ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// SamplingError is returned when no valid collapse schedule could be drawn within the attempt cap.
type SamplingError struct {
	Particle     int
	Attempts     int
	NumTimesteps int
	Lambda       float64
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("particle %d: %s after %d attempts (timesteps=%d, λ=%g)", e.Particle, ErrSamplingNonConvergence, e.Attempts, e.NumTimesteps, e.Lambda)
}

// Unwrap allows errors.Is(err, ErrSamplingNonConvergence).
func (e *SamplingError) Unwrap() error {
	return ErrSamplingNonConvergence
}

// IntegratorError wraps any failure of the evolution back-end.
type IntegratorError struct {
	Method string
	Step   int
	Err    error
}

func (e *IntegratorError) Error() string {
	return fmt.Sprintf("%s integrator failed at step %d: %s", e.Method, e.Step, e.Err)
}

// Unwrap returns the underlying back-end error.
func (e *IntegratorError) Unwrap() error {
	return e.Err
}
