package netlist

import (
	"fmt"

	"github.com/edp1096/dcop/pkg/device"
)

// CreateDevice turns a parsed element into its device. Source nodes are
// written negative first, devices store the positive node first.
func CreateDevice(elem Element) (device.Device, error) {
	if len(elem.Nodes) != 2 {
		return nil, fmt.Errorf("%s: requires exactly 2 nodes, got %d", elem.Name, len(elem.Nodes))
	}
	if len(elem.Values) != valueCount[elem.Type] {
		return nil, fmt.Errorf("%s: requires %d values, got %d", elem.Name, valueCount[elem.Type], len(elem.Values))
	}

	switch elem.Type {
	case TypeResistor:
		if elem.Values[0] <= 0 {
			return nil, fmt.Errorf("%s: resistance must be positive", elem.Name)
		}
		return device.NewResistor(elem.Name, elem.Nodes[0], elem.Nodes[1], elem.Values[0]), nil

	case TypeCurrentSource:
		return device.NewCurrentSource(elem.Name, elem.Nodes[1], elem.Nodes[0], elem.Values[0]), nil

	case TypeVoltageSource:
		return device.NewVoltageSource(elem.Name, elem.Nodes[1], elem.Nodes[0], elem.Values[0]), nil

	case TypeDiode:
		if elem.Values[0] <= 0 || elem.Values[1] <= 0 {
			return nil, fmt.Errorf("%s: saturation current and temperature must be positive", elem.Name)
		}
		return device.NewDiode(elem.Name, elem.Nodes[0], elem.Nodes[1], elem.Values[0], elem.Values[1]), nil

	default:
		return nil, fmt.Errorf("%s: unsupported device type %q", elem.Name, elem.Type)
	}
}
