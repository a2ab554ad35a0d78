package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stampRecorder collects stamps in a dense 1-based system.
type stampRecorder struct {
	a   [][]float64
	rhs []float64
}

func newStampRecorder(size int) *stampRecorder {
	a := make([][]float64, size+1)
	for i := range a {
		a[i] = make([]float64, size+1)
	}
	return &stampRecorder{a: a, rhs: make([]float64, size+1)}
}

func (s *stampRecorder) AddElement(i, j int, v float64) { s.a[i][j] += v }
func (s *stampRecorder) AddRHS(i int, v float64)        { s.rhs[i] += v }

func TestResistorStamp(t *testing.T) {
	r := NewResistor("R1", 1, 2, 100)
	r.SetNodes([]int{1, 2})

	m := newStampRecorder(2)
	require.NoError(t, r.Stamp(m, &CircuitStatus{}))

	assert.InDelta(t, 0.01, m.a[1][1], 1e-15)
	assert.InDelta(t, 0.01, m.a[2][2], 1e-15)
	assert.InDelta(t, -0.01, m.a[1][2], 1e-15)
	assert.InDelta(t, -0.01, m.a[2][1], 1e-15)

	assert.InDelta(t, 0.03, r.Current([]float64{0, 5, 2}), 1e-15)
}

func TestResistorStampGround(t *testing.T) {
	r := NewResistor("R1", 1, 0, 50)
	r.SetNodes([]int{1, 0})

	m := newStampRecorder(1)
	require.NoError(t, r.Stamp(m, &CircuitStatus{}))

	assert.InDelta(t, 0.02, m.a[1][1], 1e-15)
	assert.Zero(t, m.a[0][0])
	assert.Zero(t, m.a[0][1])
	assert.Zero(t, m.a[1][0])
}

func TestResistorInvalid(t *testing.T) {
	r := NewResistor("R1", 1, 0, 0)
	r.SetNodes([]int{1, 0})
	assert.Error(t, r.Stamp(newStampRecorder(1), &CircuitStatus{}))
}

func TestCurrentSourceStamp(t *testing.T) {
	i := NewCurrentSource("I1", 1, 2, 0.5)
	i.SetNodes([]int{1, 2})

	m := newStampRecorder(2)
	require.NoError(t, i.Stamp(m, &CircuitStatus{}))

	assert.Equal(t, 0.5, m.rhs[1])
	assert.Equal(t, -0.5, m.rhs[2])
}

func TestVoltageSourceStamp(t *testing.T) {
	v := NewVoltageSource("V1", 1, 2, 5)
	v.SetNodes([]int{1, 2})

	m := newStampRecorder(3)
	assert.Error(t, v.Stamp(m, &CircuitStatus{}), "branch index not assigned")

	v.SetBranchIndex(3)
	require.NoError(t, v.Stamp(m, &CircuitStatus{}))

	assert.Equal(t, 1.0, m.a[3][1])
	assert.Equal(t, 1.0, m.a[1][3])
	assert.Equal(t, -1.0, m.a[3][2])
	assert.Equal(t, -1.0, m.a[2][3])
	assert.Equal(t, 5.0, m.rhs[3])
	assert.Equal(t, 3, v.BranchIndex())
}

func TestDiodeThermalVoltage(t *testing.T) {
	d := NewDiode("D1", 1, 0, 1e-12, 300)
	assert.InDelta(t, 0.0258513, d.ThermalVoltage(), 1e-7)
}

func TestDiodeCompanion(t *testing.T) {
	d := NewDiode("D1", 1, 2, 1e-12, 300)
	d.SetNodes([]int{1, 2})
	d.SetVoltage(0.6)

	m := newStampRecorder(2)
	require.NoError(t, d.Stamp(m, &CircuitStatus{MaxExpArg: DefaultMaxExpArg}))

	vt := d.ThermalVoltage()
	id := 1e-12 * (math.Exp(0.6/vt) - 1)
	gd := 1e-12 * math.Exp(0.6/vt) / vt
	ieq := id - gd*0.6

	assert.InEpsilon(t, gd, m.a[1][1], 1e-12)
	assert.InEpsilon(t, -gd, m.a[1][2], 1e-12)
	assert.InEpsilon(t, -ieq, m.rhs[1], 1e-12)
	assert.InEpsilon(t, ieq, m.rhs[2], 1e-12)
	assert.InEpsilon(t, gd, d.Conductance(), 1e-12)
}

func TestDiodeClamp(t *testing.T) {
	d := NewDiode("D1", 1, 0, 1e-12, 300)
	vt := d.ThermalVoltage()

	// Past the clamp the curve continues along its tangent.
	limit := 40 * vt
	idLimit, gdLimit := d.evaluate(limit, 40)
	id, gd := d.evaluate(limit+1, 40)
	assert.InEpsilon(t, gdLimit, gd, 1e-12)
	assert.InEpsilon(t, idLimit+gdLimit, id, 1e-12)

	// Far forward bias stays finite.
	d.SetNodes([]int{1, 0})
	d.SetVoltage(1000)
	require.NoError(t, d.Stamp(newStampRecorder(1), &CircuitStatus{MaxExpArg: 40}))
	assert.False(t, math.IsInf(d.Conductance(), 0))
}

func TestDiodeUpdateVoltages(t *testing.T) {
	d := NewDiode("D1", 1, 2, 1e-12, 300)
	d.SetNodes([]int{2, 0})

	require.NoError(t, d.UpdateVoltages([]float64{0, 3, 0.7}))
	assert.Equal(t, 0.7, d.Voltage())
}
