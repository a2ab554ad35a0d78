package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/netlist"
)

// MaxSweepPoints bounds the number of operating points one sweep may solve.
const MaxSweepPoints = 100000

type SweepPoint struct {
	Value      float64
	Solution   []float64 // node voltages then branch currents
	Iterations int
}

// DCSweep steps one independent source from start to stop. Every point is a
// fresh operating point, so points are solved in parallel.
type DCSweep struct {
	BaseAnalysis
	elements   []netlist.Element
	sourceName string
	sourceIdx  int
	sweepVals  []float64
	points     []SweepPoint
}

func NewDCSweep(elements []netlist.Element, source string, start, stop, increment float64, cfg Config, logger *slog.Logger) (*DCSweep, error) {
	sweepVals, err := SweepValues(start, stop, increment)
	if err != nil {
		return nil, err
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(cfg, logger),
		elements:     elements,
		sourceName:   source,
		sourceIdx:    -1,
		sweepVals:    sweepVals,
	}

	return dc, nil
}

// SweepValues generates start, start+increment, ... up to and including stop.
func SweepValues(start, stop, increment float64) ([]float64, error) {
	for _, v := range []float64{start, stop, increment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: bounds must be finite", ErrInvalidSweep)
		}
	}
	if start == stop {
		return []float64{start}, nil
	}
	if increment == 0 || (stop-start)*increment < 0 {
		return nil, fmt.Errorf("%w: increment %g does not move from %g toward %g", ErrInvalidSweep, increment, start, stop)
	}

	steps := (stop - start) / increment
	if steps >= MaxSweepPoints {
		return nil, fmt.Errorf("%w: more than %d points", ErrInvalidSweep, MaxSweepPoints)
	}

	// Tolerate rounding so that stop itself is included.
	n := int(math.Floor(steps+1e-9)) + 1
	if n > MaxSweepPoints {
		return nil, fmt.Errorf("%w: more than %d points", ErrInvalidSweep, MaxSweepPoints)
	}
	values := make([]float64, n)
	for i := range n {
		values[i] = start + float64(i)*increment
	}
	return values, nil
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if err := dc.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for i, elem := range dc.elements {
		if !strings.EqualFold(elem.Name, dc.sourceName) {
			continue
		}
		if elem.Type != netlist.TypeVoltageSource && elem.Type != netlist.TypeCurrentSource {
			return fmt.Errorf("%w: %s is not an independent source", ErrInvalidSweep, elem.Name)
		}
		dc.sourceIdx = i
		dc.sourceName = elem.Name
		break
	}
	if dc.sourceIdx < 0 {
		return fmt.Errorf("%w: source %s not found", ErrInvalidSweep, dc.sourceName)
	}

	dc.Circuit = ckt
	return nil
}

func (dc *DCSweep) Execute() error {
	return dc.ExecuteContext(context.Background())
}

func (dc *DCSweep) ExecuteContext(ctx context.Context) error {
	if dc.sourceIdx < 0 {
		return errors.New("sweep not set up")
	}

	workers := dc.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]SweepPoint, len(dc.sweepVals))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, val := range dc.sweepVals {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			point, err := dc.solvePoint(val)
			if err != nil {
				return &SweepError{Source: dc.sourceName, Value: val, Err: err}
			}
			points[i] = point
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	dc.points = points
	dc.storeResults()

	dc.logger.Debug("dc sweep done",
		"source", dc.sourceName,
		"points", len(points),
	)
	return nil
}

// solvePoint runs an operating point on a private copy of the netlist with
// the swept source set to val.
func (dc *DCSweep) solvePoint(val float64) (SweepPoint, error) {
	elements := make([]netlist.Element, len(dc.elements))
	copy(elements, dc.elements)

	swept := elements[dc.sourceIdx]
	swept.Values = []float64{val}
	elements[dc.sourceIdx] = swept

	ckt, err := circuit.Build(fmt.Sprintf("%s=%g", dc.sourceName, val), elements, dc.config.Backend, dc.config.PivotTolerance)
	if err != nil {
		return SweepPoint{}, err
	}
	defer ckt.Destroy()

	op := NewOP(dc.config, dc.logger)
	if err = op.Setup(ckt); err != nil {
		return SweepPoint{}, err
	}
	if err = op.Execute(); err != nil {
		return SweepPoint{}, err
	}

	return SweepPoint{
		Value:      val,
		Solution:   op.Solution(),
		Iterations: op.Iterations(),
	}, nil
}

func (dc *DCSweep) storeResults() {
	var nodeIDs []int
	var branches []string
	if dc.Circuit != nil {
		nodeIDs = dc.Circuit.NodeIDs()
		branches = dc.Circuit.BranchNames()
	}

	for _, point := range dc.points {
		dc.results["SWEEP1"] = append(dc.results["SWEEP1"], point.Value)

		for i, id := range nodeIDs {
			key := fmt.Sprintf("V(%d)", id)
			dc.results[key] = append(dc.results[key], point.Solution[i])
		}
		for i, name := range branches {
			key := fmt.Sprintf("I(%s)", name)
			dc.results[key] = append(dc.results[key], point.Solution[len(nodeIDs)+i])
		}
	}
}

// Points returns the solved points in sweep order.
func (dc *DCSweep) Points() []SweepPoint {
	return dc.points
}

func (dc *DCSweep) SourceName() string {
	return dc.sourceName
}
