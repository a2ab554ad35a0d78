package circuit

import (
	"errors"
	"fmt"
)

// ErrEmptyCircuit is returned when a netlist holds no components.
var ErrEmptyCircuit = errors.New("empty circuit: no components")

// UnboundedNodeError reports a node id outside the valid range (negative).
type UnboundedNodeError struct {
	Element string
	Node    int
}

func (e *UnboundedNodeError) Error() string {
	return fmt.Sprintf("element %s: invalid node %d", e.Element, e.Node)
}
