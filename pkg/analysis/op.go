package analysis

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/device"
)

type OperatingPoint struct {
	BaseAnalysis
	solution   []float64
	iterations int
}

func NewOP(cfg Config, logger *slog.Logger) *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(cfg, logger),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	if ckt == nil || ckt.GetMatrix() == nil {
		return errors.New("circuit has no matrix")
	}
	if err := op.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	op.Circuit = ckt
	return nil
}

// doNRiter re-linearizes the diodes around the latest iterate, rebuilds and
// solves the whole system until the diode voltages settle. A circuit without
// diodes converges on the first pass.
func (op *OperatingPoint) doNRiter(maxIter int) error {
	var err error

	ckt := op.Circuit
	mat := ckt.GetMatrix()
	cktStatus := &device.CircuitStatus{
		Gmin:      op.config.Gmin,
		DiodeGmin: op.config.DiodeGmin,
		MaxExpArg: op.config.MaxExpArg,
	}

	ckt.SeedNonlinearVoltages(op.config.InitialDiodeVoltage)

	var solution []float64
	for iter := 1; iter <= maxIter; iter++ {
		cktStatus.Iteration = iter
		op.iterations = iter

		err = mat.Clear()
		if err != nil {
			return fmt.Errorf("clearing matrix: %w", err)
		}

		err = ckt.Stamp(cktStatus)
		if err != nil {
			return fmt.Errorf("stamping error: %w", err)
		}

		err = mat.Solve()
		if err != nil {
			return fmt.Errorf("matrix solve error: %w", err)
		}
		solution = mat.Solution()
		if cond := mat.Condition(); cond > 0 {
			op.logger.Warn("ill-conditioned system",
				"circuit", ckt.Name(),
				"iteration", iter,
				"condition", cond,
			)
		}

		oldVoltages := ckt.NonlinearVoltages()
		err = ckt.UpdateNonlinearVoltages(solution)
		if err != nil {
			return err
		}
		newVoltages := ckt.NonlinearVoltages()

		op.logger.Debug("newton iteration",
			"circuit", ckt.Name(),
			"iteration", iter,
			"diode_voltages", newVoltages,
		)

		if op.CheckConvergence(oldVoltages, newVoltages) {
			return nil
		}
	}

	return &NonConvergenceError{
		Iterations:  maxIter,
		LastIterate: append([]float64(nil), solution[1:]...),
	}
}

func (op *OperatingPoint) Execute() error {
	if op.Circuit == nil {
		return errors.New("circuit not set")
	}

	err := op.doNRiter(op.config.MaxIterations)
	if err != nil {
		return err
	}

	solution := op.Circuit.GetMatrix().Solution()
	op.solution = append([]float64(nil), solution[1:]...)
	op.StoreResult(op.Circuit.GetSolution(solution))

	return nil
}

// Solution returns node voltages in node index order followed by the voltage
// source branch currents. Ground is not included.
func (op *OperatingPoint) Solution() []float64 {
	return op.solution
}

func (op *OperatingPoint) Iterations() int {
	return op.iterations
}
