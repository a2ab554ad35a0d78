package matrix

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

type denseSystem struct {
	size     int
	a        *mat.Dense
	pivotTol float64
	cond     float64
}

func newDenseSystem(size int, pivotTol float64) *denseSystem {
	return &denseSystem{
		size:     size,
		a:        mat.NewDense(size, size, nil),
		pivotTol: pivotTol,
	}
}

func (d *denseSystem) add(i, j int, value float64) {
	d.a.Set(i-1, j-1, d.a.At(i-1, j-1)+value)
}

func (d *denseSystem) get(i, j int) float64 {
	return d.a.At(i-1, j-1)
}

func (d *denseSystem) clear() error {
	d.a.Zero()
	return nil
}

func (d *denseSystem) solve(rhs []float64) ([]float64, error) {
	var lu mat.LU
	lu.Factorize(d.a)
	d.cond = 0

	// Partial pivoting never swaps columns, so U's diagonal entry k is the
	// pivot chosen for column k of A.
	var u mat.TriDense
	lu.UTo(&u)
	for k := 0; k < d.size; k++ {
		colMax := 0.0
		for i := 0; i < d.size; i++ {
			colMax = math.Max(colMax, math.Abs(d.a.At(i, k)))
		}
		pivot := math.Abs(u.At(k, k))
		if colMax == 0 || pivot <= d.pivotTol*colMax {
			return nil, &SingularMatrixError{Column: k + 1, Pivot: pivot}
		}
	}

	b := mat.NewVecDense(d.size, append([]float64(nil), rhs[1:d.size+1]...))
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, &SingularMatrixError{Reason: err.Error()}
		}
		// Ill-conditioned but every pivot passed: x is still usable.
		d.cond = float64(cond)
	}

	solution := make([]float64, d.size+1)
	for i := 0; i < d.size; i++ {
		solution[i+1] = x.AtVec(i)
	}
	return solution, nil
}

func (d *denseSystem) condition() float64 {
	return d.cond
}

func (d *denseSystem) destroy() {
	d.a = nil
}
