package device

import (
	"fmt"

	"github.com/edp1096/dcop/pkg/matrix"
)

// CurrentSource drives Value amperes from its negative node to its positive
// node through the source, i.e. out of the positive terminal.
type CurrentSource struct {
	BaseDevice
}

func NewCurrentSource(name string, nodePos, nodeNeg int, value float64) *CurrentSource {
	return &CurrentSource{BaseDevice: NewBaseDevice(name, value, nodePos, nodeNeg)}
}

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(i.Nodes) != 2 {
		return fmt.Errorf("current source %s: requires exactly 2 nodes", i.Name)
	}

	// By KCL, current flows into nodePos and out of nodeNeg
	stampCurrent(matrix, i.Nodes[0], i.Nodes[1], i.Value)

	return nil
}

func (i *CurrentSource) SetValue(value float64) {
	i.Value = value
}
