package circuit

import (
	"fmt"

	"github.com/edp1096/dcop/internal/consts"
	"github.com/edp1096/dcop/pkg/device"
	"github.com/edp1096/dcop/pkg/matrix"
	"github.com/edp1096/dcop/pkg/netlist"
)

type Circuit struct {
	name             string
	nodeMap          map[int]int    // node id -> matrix index 1..N
	nodeIDs          []int          // matrix index-1 -> node id
	branchMap        map[string]int // voltage source name -> matrix index N+1..N+M
	branchNames      []string
	devices          []device.Device
	nonlinearDevices []device.NonLinear
	numNodes         int
	matrix           *matrix.CircuitMatrix
}

func New(name string) *Circuit {
	return &Circuit{
		name:      name,
		nodeMap:   make(map[int]int),
		branchMap: make(map[string]int),
		devices:   make([]device.Device, 0),
	}
}

// Build runs the whole setup: node and branch maps, matrix, devices.
func Build(name string, elements []netlist.Element, backend matrix.Backend, pivotTol float64) (*Circuit, error) {
	ckt := New(name)

	if err := ckt.AssignNodeBranchMaps(elements); err != nil {
		return nil, err
	}
	if err := ckt.CreateMatrix(backend, pivotTol); err != nil {
		return nil, err
	}
	if err := ckt.SetupDevices(elements); err != nil {
		ckt.Destroy()
		return nil, err
	}

	return ckt, nil
}

// AssignNodeBranchMaps numbers non-ground nodes 1..N by first appearance and
// voltage sources N+1..N+M in declaration order.
func (c *Circuit) AssignNodeBranchMaps(elements []netlist.Element) error {
	if len(elements) == 0 {
		return ErrEmptyCircuit
	}

	for _, elem := range elements {
		for _, node := range elem.Nodes {
			if node < 0 {
				return &UnboundedNodeError{Element: elem.Name, Node: node}
			}
			if node == consts.GROUND {
				continue
			}
			if _, exists := c.nodeMap[node]; !exists {
				c.nodeIDs = append(c.nodeIDs, node)
				c.nodeMap[node] = len(c.nodeIDs)
			}
		}
	}

	branchStart := len(c.nodeMap) + 1
	for _, elem := range elements {
		if elem.Type == netlist.TypeVoltageSource {
			if _, exists := c.branchMap[elem.Name]; exists {
				return fmt.Errorf("duplicate voltage source %s", elem.Name)
			}
			c.branchMap[elem.Name] = branchStart
			c.branchNames = append(c.branchNames, elem.Name)
			branchStart++
		}
	}

	c.numNodes = len(c.nodeMap)
	return nil
}

func (c *Circuit) CreateMatrix(backend matrix.Backend, pivotTol float64) error {
	mat, err := matrix.NewMatrix(c.Size(), backend, pivotTol)
	if err != nil {
		return fmt.Errorf("creating matrix: %w", err)
	}
	c.matrix = mat
	return nil
}

func (c *Circuit) SetupDevices(elements []netlist.Element) error {
	for _, elem := range elements {
		dev, err := netlist.CreateDevice(elem)
		if err != nil {
			return fmt.Errorf("creating device %s: %w", elem.Name, err)
		}

		// Node index
		nodeIDs := dev.GetNodeIDs()
		nodeIndices := make([]int, len(nodeIDs))
		for i, id := range nodeIDs {
			if id == consts.GROUND {
				continue
			}
			idx, ok := c.nodeMap[id]
			if !ok {
				return &UnboundedNodeError{Element: elem.Name, Node: id}
			}
			nodeIndices[i] = idx
		}
		dev.SetNodes(nodeIndices)

		if b, ok := dev.(device.Branch); ok {
			b.SetBranchIndex(c.branchMap[elem.Name])
		}

		if nl, ok := dev.(device.NonLinear); ok {
			c.nonlinearDevices = append(c.nonlinearDevices, nl)
		}

		c.devices = append(c.devices, dev)
	}

	return nil
}

// Stamp assembles every device into the matrix. The caller clears first.
func (c *Circuit) Stamp(status *device.CircuitStatus) error {
	var err error

	for _, dev := range c.devices {
		err = dev.Stamp(c.matrix, status)
		if err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}

	if status.Gmin > 0 {
		c.matrix.LoadGmin(status.Gmin, c.numNodes)
	}
	return nil
}

func (c *Circuit) UpdateNonlinearVoltages(solution []float64) error {
	var err error

	for _, dev := range c.nonlinearDevices {
		err = dev.UpdateVoltages(solution)
		if err != nil {
			return fmt.Errorf("updating voltages: %w", err)
		}
	}
	return nil
}

// SeedNonlinearVoltages sets every nonlinear device's operating point guess.
func (c *Circuit) SeedNonlinearVoltages(v float64) {
	for _, dev := range c.nonlinearDevices {
		dev.SetVoltage(v)
	}
}

// NonlinearVoltages returns the current guesses in declaration order.
func (c *Circuit) NonlinearVoltages() []float64 {
	voltages := make([]float64, len(c.nonlinearDevices))
	for i, dev := range c.nonlinearDevices {
		voltages[i] = dev.Voltage()
	}
	return voltages
}

func (c *Circuit) HasNonlinear() bool {
	return len(c.nonlinearDevices) > 0
}

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix {
	return c.matrix
}

func (c *Circuit) GetNodeMap() map[int]int {
	return c.nodeMap
}

func (c *Circuit) GetBranchMap() map[string]int {
	return c.branchMap
}

// NodeIDs returns the node ids in matrix order.
func (c *Circuit) NodeIDs() []int {
	return append([]int(nil), c.nodeIDs...)
}

// BranchNames returns the voltage source names in matrix order.
func (c *Circuit) BranchNames() []string {
	return append([]string(nil), c.branchNames...)
}

func (c *Circuit) GetDevices() []device.Device {
	return c.devices
}

func (c *Circuit) GetNumNodes() int {
	return c.numNodes
}

func (c *Circuit) GetNumBranches() int {
	return len(c.branchMap)
}

// Size is the dimension of the linear system, N+M.
func (c *Circuit) Size() int {
	return len(c.nodeMap) + len(c.branchMap)
}

func (c *Circuit) Name() string {
	return c.name
}

// GetSolution names every unknown of a 1-based solution vector: V(n) for
// nodes, I(Vx) for source branches, plus I(Rx) derived by Ohm's law.
func (c *Circuit) GetSolution(solution []float64) map[string]float64 {
	named := make(map[string]float64)

	// Node voltage
	for id, idx := range c.nodeMap {
		named[fmt.Sprintf("V(%d)", id)] = solution[idx]
	}

	// Branch current of voltage source
	for name, idx := range c.branchMap {
		named[fmt.Sprintf("I(%s)", name)] = solution[idx]
	}

	// V = IR -> I = V/R
	for _, dev := range c.devices {
		if r, ok := dev.(*device.Resistor); ok {
			named[fmt.Sprintf("I(%s)", r.GetName())] = r.Current(solution)
		}
	}

	return named
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
		c.matrix = nil
	}
}
