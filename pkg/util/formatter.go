package util

import (
	"fmt"
	"math"
	"strings"
)

func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue == 0:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e3:
		return fmt.Sprintf("%.3f k%s", value*1e-3, unit)
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

// FormatUnknown prints a named unknown such as V(2) or I(V1) with the unit
// its prefix implies.
func FormatUnknown(name string, value float64) string {
	unit := ""
	switch {
	case strings.HasPrefix(name, "V("):
		unit = "V"
	case strings.HasPrefix(name, "I("):
		unit = "A"
	}
	return fmt.Sprintf("%-10s = %s", name, FormatValueFactor(value, unit))
}
