package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/edp1096/dcop/internal/config"
	"github.com/edp1096/dcop/internal/logger"
	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/device"
	"github.com/edp1096/dcop/pkg/matrix"
	"github.com/edp1096/dcop/pkg/netlist"
	"github.com/edp1096/dcop/pkg/solver"
	"github.com/edp1096/dcop/pkg/util"
)

type sweepArgs struct {
	source            string
	start, stop, step float64
}

// parseSweep reads SRC,start,stop,step.
func parseSweep(s string) (sweepArgs, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return sweepArgs{}, fmt.Errorf("%w: %q, want SRC,start,stop,step", analysis.ErrInvalidSweep, s)
	}

	var args sweepArgs
	args.source = strings.TrimSpace(fields[0])
	values := make([]float64, 3)
	for i, f := range fields[1:] {
		v, err := netlist.ParseValue(strings.TrimSpace(f))
		if err != nil {
			return sweepArgs{}, fmt.Errorf("%w: %q: %v", analysis.ErrInvalidSweep, s, err)
		}
		values[i] = v
	}
	args.start, args.stop, args.step = values[0], values[1], values[2]
	return args, nil
}

func printOP(w io.Writer, res *solver.Result) {
	fmt.Fprintln(w, "\nAnalysis Results:")
	fmt.Fprintln(w, "================")

	fmt.Fprintln(w, "\nNode Voltages:")
	for i, id := range res.NodeIDs {
		fmt.Fprintln(w, util.FormatUnknown(fmt.Sprintf("V(%d)", id), res.Values[i]))
	}

	fmt.Fprintln(w, "\nBranch Currents:")
	for i, name := range res.Branches {
		fmt.Fprintln(w, util.FormatUnknown("I("+name+")", res.Values[len(res.NodeIDs)+i]))
	}

	fmt.Fprintf(w, "\nConverged in %d iteration(s)\n", res.Iterations)
}

func printSweep(w io.Writer, res *solver.SweepResult) {
	unit := "V"
	if strings.HasPrefix(strings.ToUpper(res.Source), "I") {
		unit = "A"
	}

	fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(res.Sweep))
	fmt.Fprintln(w, "Sweep Values    Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")

	names := res.Names()
	for i, val := range res.Sweep {
		fmt.Fprintf(w, "%s=%-11s  ", res.Source, util.FormatValueFactor(val, unit))
		for j, name := range names {
			u := "V"
			if strings.HasPrefix(name, "I(") {
				u = "A"
			}
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(res.Values[i][j], u))
		}
		fmt.Fprintln(w)
	}
}

// procWithPrint walks the solve step by step and prints the assembled system
// of the first Newton-Raphson pass.
func procWithPrint(w io.Writer, content string, cfg analysis.Config, log *slog.Logger) error {
	fmt.Fprintf(w, "File contents:\n%s\n", content)

	fmt.Fprintln(w, "\n[1] Parsing netlist")
	elements, err := netlist.Parse(content)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Circuit elements: %d\n", len(elements))
	for i, elem := range elements {
		fmt.Fprintf(w, "Element %d: %s (type: %s, nodes: %v, values: %v)\n", i, elem.Name, elem.Type, elem.Nodes, elem.Values)
	}

	fmt.Fprintln(w, "\n[2] Creating circuit structure")
	ckt, err := circuit.Build("cli", elements, cfg.Backend, cfg.PivotTolerance)
	if err != nil {
		return err
	}
	defer ckt.Destroy()

	nodeMap := ckt.GetNodeMap()
	ids := make([]int, 0, len(nodeMap))
	for id := range nodeMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fmt.Fprintln(w, "Node map:")
	for _, id := range ids {
		fmt.Fprintf(w, "  Node %d -> index %d\n", id, nodeMap[id])
	}
	fmt.Fprintln(w, "Branch map:")
	for _, name := range ckt.BranchNames() {
		fmt.Fprintf(w, "  Branch %s -> index %d\n", name, ckt.GetBranchMap()[name])
	}

	fmt.Fprintf(w, "\n[3] Stamping first pass (%s backend)\n", ckt.GetMatrix().Backend())
	mat := ckt.GetMatrix()
	ckt.SeedNonlinearVoltages(cfg.InitialDiodeVoltage)
	if err = mat.Clear(); err != nil {
		return err
	}
	err = ckt.Stamp(&device.CircuitStatus{
		Iteration: 1,
		Gmin:      cfg.Gmin,
		DiodeGmin: cfg.DiodeGmin,
		MaxExpArg: cfg.MaxExpArg,
	})
	if err != nil {
		return err
	}
	mat.PrintSystem(w)

	fmt.Fprintln(w, "\n[4] Running operating point")
	op := analysis.NewOP(cfg, log)
	if err = op.Setup(ckt); err != nil {
		return err
	}
	if err = op.Execute(); err != nil {
		return err
	}

	printOP(w, &solver.Result{
		Values:     op.Solution(),
		NodeIDs:    ckt.NodeIDs(),
		Branches:   ckt.BranchNames(),
		Iterations: op.Iterations(),
	})
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("spice", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		backend  = fs.String("backend", "", "matrix backend: dense or sparse")
		sweep    = fs.String("sweep", "", "DC sweep as SRC,start,stop,step")
		plotFile = fs.String("plot", "", "write the sweep plot to this PNG/SVG/PDF file")
		verbose  = fs.Bool("v", false, "print every solve step and the assembled system")
		logLevel = fs.String("log-level", "", "log level: debug, info, warn, error")
		maxIter  = fs.Int("max-iter", 0, "Newton-Raphson iteration cap")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: spice [flags] <netlist_file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("missing netlist file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *backend != "" {
		b, err := matrix.ParseBackend(*backend)
		if err != nil {
			return err
		}
		cfg.Solver.Backend = b
	}
	if *maxIter > 0 {
		cfg.Solver.MaxIterations = *maxIter
	}

	log, err := logger.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading netlist file: %w", err)
	}

	if *sweep != "" {
		sw, err := parseSweep(*sweep)
		if err != nil {
			return err
		}
		res, err := solver.Sweep(context.Background(), string(content), sw.source, sw.start, sw.stop, sw.step,
			solver.WithConfig(cfg.Solver), solver.WithLogger(log))
		if err != nil {
			return err
		}
		printSweep(stdout, res)

		if *plotFile != "" {
			if err := savePlot(res, *plotFile); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "\nPlot written to %s\n", *plotFile)
		}
		return nil
	}

	if *verbose {
		return procWithPrint(stdout, string(content), cfg.Solver, log)
	}

	res, err := solver.Solve(string(content), solver.WithConfig(cfg.Solver), solver.WithLogger(log))
	if err != nil {
		return err
	}
	printOP(stdout, res)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 1 for usage and internal failures, 2 for a rejected netlist
// and 3 when the circuit cannot be solved.
func exitCode(err error) int {
	switch solver.Classify(err) {
	case solver.KindParse, solver.KindEmptyCircuit, solver.KindUnboundedNode, solver.KindInvalidSweep:
		return 2
	case solver.KindSingularMatrix, solver.KindNonConvergence:
		return 3
	default:
		return 1
	}
}
