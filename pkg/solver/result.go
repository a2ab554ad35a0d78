package solver

import (
	"errors"
	"strconv"
	"strings"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/matrix"
	"github.com/edp1096/dcop/pkg/netlist"
)

// Result is the flattened operating point: node voltages in NodeIDs order,
// then voltage source branch currents in Branches order.
type Result struct {
	Values     []float64
	NodeIDs    []int
	Branches   []string
	Iterations int
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// Voltage returns the voltage of a node id. Ground is always 0.
func (r *Result) Voltage(node int) (float64, bool) {
	if node == 0 {
		return 0, true
	}
	for i, id := range r.NodeIDs {
		if id == node && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return 0, false
}

// BranchCurrent returns the current entering a voltage source at its
// positive node.
func (r *Result) BranchCurrent(name string) (float64, bool) {
	for i, b := range r.Branches {
		idx := len(r.NodeIDs) + i
		if strings.EqualFold(b, name) && idx < len(r.Values) {
			return r.Values[idx], true
		}
	}
	return 0, false
}

// Release drops the value buffer. Calling it again is a no-op.
func (r *Result) Release() {
	if r == nil {
		return
	}
	r.Values = nil
	r.NodeIDs = nil
	r.Branches = nil
}

// SweepResult holds one solution vector per sweep value.
type SweepResult struct {
	Source   string
	NodeIDs  []int
	Branches []string
	Sweep    []float64
	Values   [][]float64
}

// Series returns one unknown across the sweep, by its V(n) or I(Vx) name.
func (s *SweepResult) Series(name string) ([]float64, bool) {
	idx := -1
	for i, id := range s.NodeIDs {
		if name == voltageName(id) {
			idx = i
		}
	}
	for i, b := range s.Branches {
		if strings.EqualFold(name, "I("+b+")") {
			idx = len(s.NodeIDs) + i
		}
	}
	if idx < 0 {
		return nil, false
	}

	series := make([]float64, len(s.Values))
	for i, v := range s.Values {
		series[i] = v[idx]
	}
	return series, true
}

// Names lists the unknowns in solution order.
func (r *Result) Names() []string {
	return names(r.NodeIDs, r.Branches)
}

func (s *SweepResult) Names() []string {
	return names(s.NodeIDs, s.Branches)
}

func names(nodeIDs []int, branches []string) []string {
	out := make([]string, 0, len(nodeIDs)+len(branches))
	for _, id := range nodeIDs {
		out = append(out, voltageName(id))
	}
	for _, b := range branches {
		out = append(out, "I("+b+")")
	}
	return out
}

func voltageName(id int) string {
	return "V(" + strconv.Itoa(id) + ")"
}

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindParse
	KindEmptyCircuit
	KindUnboundedNode
	KindSingularMatrix
	KindNonConvergence
	KindInvalidSweep
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindParse:
		return "parse_error"
	case KindEmptyCircuit:
		return "empty_circuit"
	case KindUnboundedNode:
		return "unbounded_node"
	case KindSingularMatrix:
		return "singular_matrix"
	case KindNonConvergence:
		return "non_convergence"
	case KindInvalidSweep:
		return "invalid_sweep"
	default:
		return "internal"
	}
}

// Classify maps an error returned by this package to its kind.
func Classify(err error) ErrorKind {
	var (
		parseErr     *netlist.ParseError
		unboundedErr *circuit.UnboundedNodeError
		singularErr  *matrix.SingularMatrixError
		convErr      *analysis.NonConvergenceError
	)

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &parseErr):
		return KindParse
	case errors.Is(err, circuit.ErrEmptyCircuit):
		return KindEmptyCircuit
	case errors.As(err, &unboundedErr):
		return KindUnboundedNode
	case errors.As(err, &singularErr):
		return KindSingularMatrix
	case errors.As(err, &convErr):
		return KindNonConvergence
	case errors.Is(err, analysis.ErrInvalidSweep):
		return KindInvalidSweep
	default:
		return KindInternal
	}
}
