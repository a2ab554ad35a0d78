package matrix

import (
	"fmt"
	"math"

	"github.com/edp1096/sparse"
)

type sparseSystem struct {
	size     int
	matrix   *sparse.Matrix
	config   *sparse.Configuration
	values   []float64 // assembled values, row major, kept for pivot checks
	pivotTol float64
}

func newSparseSystem(size int, pivotTol float64) (*sparseSystem, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	s := &sparseSystem{
		size:     size,
		config:   config,
		values:   make([]float64, size*size),
		pivotTol: pivotTol,
	}
	if err := s.create(); err != nil {
		return nil, err
	}
	return s, nil
}

// create allocates a fresh matrix with every element present, so the
// ordering chosen by the first factorization never goes stale.
func (s *sparseSystem) create() error {
	mat, err := sparse.Create(int64(s.size), s.config)
	if err != nil {
		return fmt.Errorf("creating sparse matrix: %w", err)
	}
	for i := 1; i <= s.size; i++ {
		for j := 1; j <= s.size; j++ {
			mat.GetElement(int64(i), int64(j))
		}
	}
	s.matrix = mat
	return nil
}

func (s *sparseSystem) add(i, j int, value float64) {
	s.matrix.GetElement(int64(i), int64(j)).Real += value
	s.values[(i-1)*s.size+(j-1)] += value
}

func (s *sparseSystem) get(i, j int) float64 {
	return s.values[(i-1)*s.size+(j-1)]
}

func (s *sparseSystem) clear() error {
	for i := range s.values {
		s.values[i] = 0
	}
	if s.matrix != nil {
		s.matrix.Destroy()
	}
	return s.create()
}

func (s *sparseSystem) solve(rhs []float64) ([]float64, error) {
	colMax := make([]float64, s.size+1)
	for i := 0; i < s.size; i++ {
		for j := 0; j < s.size; j++ {
			colMax[j+1] = math.Max(colMax[j+1], math.Abs(s.values[i*s.size+j]))
		}
	}
	for col := 1; col <= s.size; col++ {
		if colMax[col] == 0 {
			return nil, &SingularMatrixError{Column: col}
		}
	}

	if err := s.matrix.Factor(); err != nil {
		return nil, &SingularMatrixError{Column: int(s.matrix.SingularCol), Reason: err.Error()}
	}

	// Diagonals hold reciprocal pivots after factorization.
	for step := 1; step <= s.size; step++ {
		diag := s.matrix.Diags[step]
		col := int(s.matrix.IntToExtColMap[step])
		if diag == nil || diag.Real == 0 || math.IsNaN(diag.Real) || math.IsInf(diag.Real, 0) {
			return nil, &SingularMatrixError{Column: col}
		}
		pivot := math.Abs(1.0 / diag.Real)
		if col >= 1 && col <= s.size && pivot <= s.pivotTol*colMax[col] {
			return nil, &SingularMatrixError{Column: col, Pivot: pivot}
		}
	}

	solution, err := s.matrix.Solve(rhs)
	if err != nil {
		return nil, &SingularMatrixError{Reason: err.Error()}
	}
	return solution, nil
}

func (s *sparseSystem) destroy() {
	if s.matrix != nil {
		s.matrix.Destroy()
		s.matrix = nil
	}
	s.values = nil
}
