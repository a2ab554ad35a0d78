package device

import (
	"github.com/edp1096/dcop/pkg/matrix"
)

type Device interface {
	GetName() string
	GetType() string
	GetNodeIDs() []int // node ids as written in the netlist, positive first
	GetNodes() []int   // matrix indices, 0 is ground
	GetValue() float64
	SetNodes(nodes []int)
	Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error
}

// NonLinear devices are re-linearized around the latest iterate on every
// Newton-Raphson pass.
type NonLinear interface {
	Device
	UpdateVoltages(voltages []float64) error
	Voltage() float64
	SetVoltage(v float64)
}

// Branch devices own an extra unknown (their branch current) in the system.
type Branch interface {
	Device
	BranchIndex() int
	SetBranchIndex(idx int)
}

type BaseDevice struct {
	Name    string
	Nodes   []int
	NodeIDs []int
	Value   float64
}

// CircuitStatus carries the per-iteration parameters every stamp sees.
type CircuitStatus struct {
	Iteration int
	Gmin      float64 // Conductance from every node to ground, 0 disables
	DiodeGmin float64 // Conductance in parallel with every junction
	MaxExpArg float64 // Ceiling of Vd/Vt before the diode curve turns linear
}

func NewBaseDevice(name string, value float64, nodeIDs ...int) BaseDevice {
	return BaseDevice{
		Name:    name,
		Value:   value,
		NodeIDs: nodeIDs,
		Nodes:   make([]int, len(nodeIDs)),
	}
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetNodeIDs() []int {
	return d.NodeIDs
}

func (d *BaseDevice) GetValue() float64 {
	return d.Value
}

func (d *BaseDevice) SetNodes(nodes []int) {
	d.Nodes = nodes
}

// stampConductance adds g between n1 and n2, dropping ground terms.
func stampConductance(matrix matrix.DeviceMatrix, n1, n2 int, g float64) {
	if n1 != 0 {
		matrix.AddElement(n1, n1, g)
		if n2 != 0 {
			matrix.AddElement(n1, n2, -g)
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			matrix.AddElement(n2, n1, -g)
		}
		matrix.AddElement(n2, n2, g)
	}
}

// stampCurrent injects current i into node into and draws it from node from.
func stampCurrent(matrix matrix.DeviceMatrix, into, from int, i float64) {
	if into != 0 {
		matrix.AddRHS(into, i)
	}
	if from != 0 {
		matrix.AddRHS(from, -i)
	}
}

func nodeVoltage(voltages []float64, idx int) float64 {
	if idx <= 0 || idx >= len(voltages) {
		return 0
	}
	return voltages[idx]
}
