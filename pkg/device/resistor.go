package device

import (
	"fmt"

	"github.com/edp1096/dcop/pkg/matrix"
)

type Resistor struct {
	BaseDevice
}

func NewResistor(name string, nodeA, nodeB int, value float64) *Resistor {
	return &Resistor{BaseDevice: NewBaseDevice(name, value, nodeA, nodeB)}
}

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(r.Nodes) != 2 {
		return fmt.Errorf("resistor %s: requires exactly 2 nodes", r.Name)
	}
	if r.Value <= 0 {
		return fmt.Errorf("resistor %s: resistance must be positive, got %g", r.Name, r.Value)
	}

	g := 1.0 / r.Value // Conductance. G = 1/R
	stampConductance(matrix, r.Nodes[0], r.Nodes[1], g)

	return nil
}

// Current returns the current flowing from nodeA to nodeB.
func (r *Resistor) Current(voltages []float64) float64 {
	v1 := nodeVoltage(voltages, r.Nodes[0])
	v2 := nodeVoltage(voltages, r.Nodes[1])
	return (v1 - v2) / r.Value
}
