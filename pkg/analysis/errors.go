package analysis

import (
	"errors"
	"fmt"
)

// ErrInvalidSweep marks a sweep request that names no independent source or
// has unusable bounds.
var ErrInvalidSweep = errors.New("invalid sweep")

// NonConvergenceError is returned when the diode voltages are still moving
// after the iteration cap. LastIterate is the final solution vector, node
// voltages then branch currents.
type NonConvergenceError struct {
	Iterations  int
	LastIterate []float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("failed to converge in %d iterations", e.Iterations)
}

// SweepError reports the sweep point that failed.
type SweepError struct {
	Source string
	Value  float64
	Err    error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep %s=%g: %v", e.Source, e.Value, e.Err)
}

func (e *SweepError) Unwrap() error {
	return e.Err
}
