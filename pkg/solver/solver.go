// Package solver is the entry point of the DC operating point solver: netlist
// text in, node voltages and voltage source branch currents out.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/matrix"
	"github.com/edp1096/dcop/pkg/netlist"
)

type options struct {
	config analysis.Config
	logger *slog.Logger
}

type Option func(*options)

// WithConfig replaces the numerical parameters. The backend it carries is
// kept unless WithBackend is also given after it.
func WithConfig(cfg analysis.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

func WithBackend(backend matrix.Backend) Option {
	return func(o *options) {
		o.config.Backend = backend
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{
		config: analysis.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Solve parses input, builds the circuit and runs the operating point. The
// matrix is released on every return path.
func Solve(input string, opts ...Option) (*Result, error) {
	return SolveContext(context.Background(), input, opts...)
}

// SolveContext is Solve with a context checked before work starts. A solve
// in progress is bounded by the iteration cap and is not interrupted.
func SolveContext(ctx context.Context, input string, opts ...Option) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	elements, err := netlist.Parse(input)
	if err != nil {
		return nil, err
	}

	ckt, err := circuit.Build("op", elements, o.config.Backend, o.config.PivotTolerance)
	if err != nil {
		return nil, err
	}
	defer ckt.Destroy()

	op := analysis.NewOP(o.config, o.logger)
	if err = op.Setup(ckt); err != nil {
		return nil, err
	}
	if err = op.Execute(); err != nil {
		o.logger.DebugContext(ctx, "operating point failed",
			"iterations", op.Iterations(),
			"error", err.Error(),
		)
		return nil, err
	}

	return &Result{
		Values:     op.Solution(),
		NodeIDs:    ckt.NodeIDs(),
		Branches:   ckt.BranchNames(),
		Iterations: op.Iterations(),
	}, nil
}

// SolveBatch solves independent netlists in parallel. Results keep the order
// of inputs; the first failure cancels the rest.
func SolveBatch(ctx context.Context, inputs []string, opts ...Option) ([]*Result, error) {
	o := buildOptions(opts)
	workers := o.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, input := range inputs {
		g.Go(func() error {
			res, err := SolveContext(ctx, input, opts...)
			if err != nil {
				return fmt.Errorf("netlist %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sweep steps source from start to stop by step and solves every point.
func Sweep(ctx context.Context, input, source string, start, stop, step float64, opts ...Option) (*SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	elements, err := netlist.Parse(input)
	if err != nil {
		return nil, err
	}

	ckt, err := circuit.Build("sweep", elements, o.config.Backend, o.config.PivotTolerance)
	if err != nil {
		return nil, err
	}
	defer ckt.Destroy()

	dc, err := analysis.NewDCSweep(elements, source, start, stop, step, o.config, o.logger)
	if err != nil {
		return nil, err
	}
	if err = dc.Setup(ckt); err != nil {
		return nil, err
	}
	if err = dc.ExecuteContext(ctx); err != nil {
		return nil, err
	}

	points := dc.Points()
	res := &SweepResult{
		Source:   dc.SourceName(),
		NodeIDs:  ckt.NodeIDs(),
		Branches: ckt.BranchNames(),
		Sweep:    make([]float64, len(points)),
		Values:   make([][]float64, len(points)),
	}
	for i, p := range points {
		res.Sweep[i] = p.Value
		res.Values[i] = p.Solution
	}
	return res, nil
}
