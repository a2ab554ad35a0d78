package matrix

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// DefaultPivotTolerance is the smallest pivot accepted, relative to the
// largest magnitude in its column. It sits a few dozen ulps above rounding
// noise so grounded circuits with conductances 1e13 apart still solve.
const DefaultPivotTolerance = 1e-14

type Backend int

const (
	BackendDense  Backend = iota // gonum LU with partial pivoting
	BackendSparse                // Markowitz sparse LU
)

func (b Backend) String() string {
	switch b {
	case BackendDense:
		return "dense"
	case BackendSparse:
		return "sparse"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dense":
		return BackendDense, nil
	case "sparse":
		return BackendSparse, nil
	default:
		return BackendDense, fmt.Errorf("unknown matrix backend %q", s)
	}
}

// linearSystem is the storage and factorization behind a CircuitMatrix.
// Indices are 1-based, rhs and the returned solution have length size+1.
type linearSystem interface {
	add(i, j int, value float64)
	get(i, j int) float64
	clear() error
	solve(rhs []float64) ([]float64, error)
	destroy()
}

type CircuitMatrix struct {
	Size     int
	backend  Backend
	system   linearSystem
	rhs      []float64
	solution []float64
	cond     float64
	err      error
}

func NewMatrix(size int, backend Backend, pivotTol float64) (*CircuitMatrix, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid matrix size %d", size)
	}
	if pivotTol <= 0 {
		pivotTol = DefaultPivotTolerance
	}

	m := &CircuitMatrix{
		Size:     size,
		backend:  backend,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
	}

	if size == 0 {
		return m, nil
	}

	var err error
	switch backend {
	case BackendDense:
		m.system = newDenseSystem(size, pivotTol)
	case BackendSparse:
		m.system, err = newSparseSystem(size, pivotTol)
	default:
		err = fmt.Errorf("unknown matrix backend %v", backend)
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *CircuitMatrix) Backend() Backend {
	return m.backend
}

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		m.setErr(fmt.Errorf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, m.Size))
		return
	}
	m.system.add(i, j, value)
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		m.setErr(fmt.Errorf("rhs index out of bounds (i=%d, size=%d)", i, m.Size))
		return
	}
	m.rhs[i] += value
}

// Element returns the assembled value at (i, j), 1-based.
func (m *CircuitMatrix) Element(i, j int) float64 {
	if m.system == nil || i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return 0
	}
	return m.system.get(i, j)
}

// LoadGmin adds gmin to the first n diagonal entries.
func (m *CircuitMatrix) LoadGmin(gmin float64, n int) {
	if n > m.Size {
		n = m.Size
	}
	for i := 1; i <= n; i++ {
		m.AddElement(i, i, gmin)
	}
}

// Clear zeroes the system so the next assembly starts from scratch.
func (m *CircuitMatrix) Clear() error {
	m.err = nil
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	if m.system == nil {
		return nil
	}
	return m.system.clear()
}

func (m *CircuitMatrix) Solve() error {
	if m.err != nil {
		return m.err
	}
	if m.system == nil {
		for i := range m.solution {
			m.solution[i] = 0
		}
		return nil
	}

	m.cond = 0
	solution, err := m.system.solve(m.rhs)
	if c, ok := m.system.(interface{ condition() float64 }); ok {
		m.cond = c.condition()
	}
	if err != nil {
		return err
	}

	for i := 1; i <= m.Size; i++ {
		if math.IsNaN(solution[i]) || math.IsInf(solution[i], 0) {
			return &SingularMatrixError{Column: i, Reason: "solution is not finite"}
		}
	}

	m.solution = solution
	return nil
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

// Condition is the condition number estimate of the last solve when it was
// large enough to cost accuracy, 0 otherwise.
func (m *CircuitMatrix) Condition() float64 {
	return m.cond
}

// Solution is 1-based: index 0 is ground and always 0.
func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", m.Size, m.Size)
	fmt.Fprintln(w, "Node equations 1..n, followed by branch equations")

	for i := 1; i <= m.Size; i++ {
		fmt.Fprintf(w, "Equation %d:", i)
		for j := 1; j <= m.Size; j++ {
			if value := m.Element(i, j); value != 0 {
				fmt.Fprintf(w, "  %+g*x%d", value, j)
			}
		}
		fmt.Fprintf(w, " = %g\n", m.rhs[i])
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.system != nil {
		m.system.destroy()
		m.system = nil
	}
	m.rhs = nil
	m.solution = nil
}

func (m *CircuitMatrix) setErr(err error) {
	if m.err == nil {
		m.err = err
	}
}
