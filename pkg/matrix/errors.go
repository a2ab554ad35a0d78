package matrix

import "fmt"

// SingularMatrixError reports a column without a usable pivot: a node with
// no path to ground, or voltage sources forcing contradictory constraints.
type SingularMatrixError struct {
	Column int     // 1-based unknown index
	Pivot  float64 // best pivot found, 0 when the column is empty
	Reason string
}

func (e *SingularMatrixError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("singular matrix at column %d: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("singular matrix at column %d (pivot %g)", e.Column, e.Pivot)
}
