package netlist

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	TypeResistor      = "R"
	TypeCurrentSource = "I"
	TypeVoltageSource = "V"
	TypeDiode         = "D"
)

// Element is one netlist line. Nodes are kept in the order they were written:
// R a b, I neg pos, V neg pos, D anode cathode.
type Element struct {
	Type   string    // Part type (R, I, V, D)
	Name   string    // Part name, e.g. R1
	ID     string    // Name without the type prefix
	Nodes  []int     // Node ids, 0 is ground
	Values []float64 // Part values
	Line   int       // 1-based line in the source text
}

// Value returns the primary value of the element: resistance, current,
// voltage or saturation current.
func (e Element) Value() float64 {
	if len(e.Values) == 0 {
		return 0
	}
	return e.Values[0]
}

// Number of value fields after the two nodes, by type.
var valueCount = map[string]int{
	TypeResistor:      1,
	TypeCurrentSource: 1,
	TypeVoltageSource: 1,
	TypeDiode:         2, // Is, T
}

var unitMap = map[string]float64{
	"T":   1e12,  // tera
	"G":   1e9,   // giga
	"meg": 1e6,   // mega
	"MEG": 1e6,   // mega
	"Meg": 1e6,   // mega
	"K":   1e3,   // kilo
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var valueRe = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)(meg|MEG|Meg|[TGKkmunpf])?$`)

// Parse reads a netlist, one component per non-blank line, and returns the
// elements in input order. The first malformed line aborts parsing with a
// *ParseError and no elements are returned.
func Parse(input string) ([]Element, error) {
	elements := make([]Element, 0)
	names := make(map[string]int)

	for i, raw := range strings.Split(input, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		elem, err := parseElement(line, lineNo)
		if err != nil {
			return nil, err
		}

		key := strings.ToUpper(elem.Name)
		if prev, exists := names[key]; exists {
			return nil, newParseError(lineNo, line, fmt.Sprintf("duplicate component name %s (first defined on line %d)", elem.Name, prev))
		}
		names[key] = lineNo

		elements = append(elements, *elem)
	}

	return elements, nil
}

func parseElement(line string, lineNo int) (*Element, error) {
	fields := strings.Fields(line)

	name := fields[0]
	elemType := strings.ToUpper(name[:1])
	count, ok := valueCount[elemType]
	if !ok {
		return nil, newParseError(lineNo, line, fmt.Sprintf("unknown component prefix %q", name[:1]))
	}
	if len(name) < 2 {
		return nil, newParseError(lineNo, line, "missing component id")
	}

	want := 3 + count
	if len(fields) < want {
		return nil, newParseError(lineNo, line, fmt.Sprintf("too few fields for %s: need %d, got %d", name, want, len(fields)))
	}
	if len(fields) > want {
		return nil, newParseError(lineNo, line, fmt.Sprintf("too many fields for %s: need %d, got %d", name, want, len(fields)))
	}

	elem := &Element{
		Type:   elemType,
		Name:   name,
		ID:     name[1:],
		Nodes:  make([]int, 2),
		Values: make([]float64, count),
		Line:   lineNo,
	}

	for i := 0; i < 2; i++ {
		node, err := parseNode(fields[1+i])
		if err != nil {
			return nil, newParseError(lineNo, line, err.Error())
		}
		elem.Nodes[i] = node
	}

	for i := 0; i < count; i++ {
		value, err := ParseValue(fields[3+i])
		if err != nil {
			return nil, newParseError(lineNo, line, err.Error())
		}
		elem.Values[i] = value
	}

	if err := validate(elem); err != nil {
		return nil, newParseError(lineNo, line, err.Error())
	}

	return elem, nil
}

func parseNode(field string) (int, error) {
	node, err := strconv.Atoi(field)
	if err != nil || node < 0 {
		return 0, fmt.Errorf("invalid node %q: must be a non-negative integer", field)
	}
	return node, nil
}

func validate(elem *Element) error {
	switch elem.Type {
	case TypeResistor:
		if elem.Values[0] <= 0 {
			return fmt.Errorf("resistance of %s must be positive, got %g", elem.Name, elem.Values[0])
		}
	case TypeDiode:
		if elem.Values[0] <= 0 {
			return fmt.Errorf("saturation current of %s must be positive, got %g", elem.Name, elem.Values[0])
		}
		if elem.Values[1] <= 0 {
			return fmt.Errorf("temperature of %s must be positive kelvin, got %g", elem.Name, elem.Values[1])
		}
	}
	return nil
}

// ParseValue - Parse value and factor. 1k -> 1000, 10meg -> 1e7
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value %q", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", val, err)
	}

	// factor
	if matches[2] != "" {
		num *= unitMap[matches[2]]
	}
	if math.IsInf(num, 0) || math.IsNaN(num) {
		return 0, fmt.Errorf("invalid value %q: out of range", val)
	}

	return num, nil
}
