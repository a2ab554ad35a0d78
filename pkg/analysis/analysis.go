package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/device"
	"github.com/edp1096/dcop/pkg/matrix"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
}

// Config holds the numerical parameters of an operating point solve.
type Config struct {
	MaxIterations       int     // NR iteration cap
	VoltageTolerance    float64 // Absolute bound on the change of every diode voltage
	RelativeTolerance   float64 // Bound on the change relative to the diode voltage
	InitialDiodeVoltage float64 // Seed for every diode before the first pass
	MaxExpArg           float64 // Ceiling of Vd/Vt in the diode exponential
	Gmin                float64 // Node to ground conductance, 0 disables
	DiodeGmin           float64 // Conductance in parallel with every diode
	PivotTolerance      float64 // Relative pivot floor of the linear solver
	Backend             matrix.Backend
	Workers             int // Parallel operating points in a sweep, 0 means GOMAXPROCS
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:       100,
		VoltageTolerance:    1e-6,
		RelativeTolerance:   1e-3,
		InitialDiodeVoltage: 0.6,
		MaxExpArg:           device.DefaultMaxExpArg,
		Gmin:                0,
		DiodeGmin:           1e-12,
		PivotTolerance:      matrix.DefaultPivotTolerance,
		Backend:             matrix.BackendDense,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 1:
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	case !(c.VoltageTolerance > 0):
		return fmt.Errorf("voltage tolerance must be positive, got %g", c.VoltageTolerance)
	case !(c.RelativeTolerance > 0):
		return fmt.Errorf("relative tolerance must be positive, got %g", c.RelativeTolerance)
	case math.IsNaN(c.InitialDiodeVoltage) || math.IsInf(c.InitialDiodeVoltage, 0):
		return fmt.Errorf("initial diode voltage must be finite")
	case !(c.MaxExpArg > 0) || c.MaxExpArg > 700:
		return fmt.Errorf("max exponent argument must be in (0, 700], got %g", c.MaxExpArg)
	case c.Gmin < 0 || c.DiodeGmin < 0:
		return fmt.Errorf("gmin must not be negative")
	case c.PivotTolerance < 0:
		return fmt.Errorf("pivot tolerance must not be negative")
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	results map[string][]float64 // key: variable name, value: result by sweep point
	config  Config
	logger  *slog.Logger
}

func NewBaseAnalysis(cfg Config, logger *slog.Logger) *BaseAnalysis {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BaseAnalysis{
		results: make(map[string][]float64),
		config:  cfg,
		logger:  logger,
	}
}

// CheckConvergence compares two successive sets of diode voltages. Every
// change must be below the absolute tolerance and, unless both values are
// themselves below it, below the relative tolerance too.
func (a *BaseAnalysis) CheckConvergence(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := range oldSol {
		diff := math.Abs(newSol[i] - oldSol[i])
		if !(diff < a.config.VoltageTolerance) {
			return false
		}

		mag := math.Max(math.Abs(newSol[i]), math.Abs(oldSol[i]))
		if mag > a.config.VoltageTolerance && !(diff < a.config.RelativeTolerance*mag) {
			return false
		}
	}
	return true
}

func (a *BaseAnalysis) StoreResult(solution map[string]float64) {
	for name, value := range solution {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}

func (a *BaseAnalysis) Config() Config {
	return a.config
}
