package device

import (
	"fmt"
	"math"

	"github.com/edp1096/dcop/internal/consts"
	"github.com/edp1096/dcop/pkg/matrix"
)

// DefaultMaxExpArg bounds Vd/Vt before exp is evaluated. exp(40) ~ 2.4e17 is
// far past any physical junction current and far below float64 overflow.
const DefaultMaxExpArg = 40.0

type Diode struct {
	BaseDevice
	// Model parameters
	Is   float64 // Saturation current
	Temp float64 // Junction temperature (K)

	// Internal states for Operating Point
	vd float64 // Voltage guess the companion model is linearized around
	id float64 // Current at vd
	gd float64 // Conductance at vd, including gmin
}

func NewDiode(name string, nodePos, nodeNeg int, is, temp float64) *Diode {
	return &Diode{
		BaseDevice: NewBaseDevice(name, is, nodePos, nodeNeg),
		Is:         is,
		Temp:       temp,
	}
}

func (d *Diode) GetType() string { return "D" }

// ThermalVoltage returns Vt = kT/q.
func (d *Diode) ThermalVoltage() float64 {
	return consts.BOLTZMANN * d.Temp / consts.CHARGE
}

// Current evaluates the ideal diode law I = Is*(exp(Vd/Vt) - 1) without any
// clamping.
func (d *Diode) Current(vd float64) float64 {
	return d.Is * (math.Exp(vd/d.ThermalVoltage()) - 1.0)
}

// evaluate returns the current and conductance at vd. Past maxExpArg*Vt the
// exponential is replaced by its tangent. This only keeps the arithmetic
// finite during iteration, it is not a physical breakdown model.
func (d *Diode) evaluate(vd, maxExpArg float64) (id, gd float64) {
	vt := d.ThermalVoltage()
	arg := vd / vt

	if maxExpArg > 0 && arg > maxExpArg {
		evd := math.Exp(maxExpArg)
		gd = d.Is * evd / vt
		id = d.Is*(evd-1.0) + gd*(vd-maxExpArg*vt)
		return id, gd
	}

	evd := math.Exp(arg)
	return d.Is * (evd - 1.0), d.Is * evd / vt
}

// Stamp loads the companion model: conductance gd in parallel with the
// current source ieq = id - gd*vd, both between anode and cathode.
func (d *Diode) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}
	if d.Is <= 0 || d.Temp <= 0 {
		return fmt.Errorf("diode %s: saturation current and temperature must be positive", d.Name)
	}

	maxExpArg := status.MaxExpArg
	if maxExpArg <= 0 {
		maxExpArg = DefaultMaxExpArg
	}

	d.id, d.gd = d.evaluate(d.vd, maxExpArg)
	d.gd += status.DiodeGmin

	ieq := d.id - d.gd*d.vd
	if math.IsNaN(ieq) || math.IsInf(ieq, 0) || math.IsInf(d.gd, 0) {
		return fmt.Errorf("diode %s: companion model not finite at vd=%g", d.Name, d.vd)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]
	stampConductance(matrix, n1, n2, d.gd)
	stampCurrent(matrix, n2, n1, ieq)

	return nil
}

func (d *Diode) UpdateVoltages(voltages []float64) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	d.vd = nodeVoltage(voltages, d.Nodes[0]) - nodeVoltage(voltages, d.Nodes[1])
	return nil
}

func (d *Diode) Voltage() float64 {
	return d.vd
}

func (d *Diode) SetVoltage(v float64) {
	d.vd = v
}

// Conductance returns gd from the last stamp.
func (d *Diode) Conductance() float64 {
	return d.gd
}
