package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/matrix"
)

func TestSolve(t *testing.T) {
	res, err := Solve("V1 0 1 10\nD1 1 2 1e-12 300\nR1 2 0 100")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Len())
	assert.Equal(t, []int{1, 2}, res.NodeIDs)
	assert.Equal(t, []string{"V1"}, res.Branches)
	assert.Equal(t, []string{"V(1)", "V(2)", "I(V1)"}, res.Names())

	v1, ok := res.Voltage(1)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v1, 1e-12)

	v0, ok := res.Voltage(0)
	assert.True(t, ok)
	assert.Zero(t, v0)

	_, ok = res.Voltage(42)
	assert.False(t, ok)

	v2, _ := res.Voltage(2)
	i, ok := res.BranchCurrent("v1")
	require.True(t, ok)
	assert.InEpsilon(t, -v2/100, i, 1e-9)

	res.Release()
	assert.Zero(t, res.Len())
	res.Release()
}

func TestSolveBackends(t *testing.T) {
	input := "V1 0 1 12\nR1 1 2 1k\nR2 2 0 2k\nD1 2 3 1e-14 300\nR3 3 0 500\nI1 0 3 1m"

	dense, err := Solve(input, WithBackend(matrix.BackendDense))
	require.NoError(t, err)
	sparse, err := Solve(input, WithBackend(matrix.BackendSparse))
	require.NoError(t, err)

	assert.InDeltaSlice(t, dense.Values, sparse.Values, 1e-9)
}

func TestSolveDeterministic(t *testing.T) {
	input := "V1 0 1 5\nR1 1 2 330\nD1 2 0 1e-12 300"

	first, err := Solve(input)
	require.NoError(t, err)
	second, err := Solve(input)
	require.NoError(t, err)
	assert.Equal(t, first.Values, second.Values)
}

func TestSolveErrors(t *testing.T) {
	nonConverging := analysis.DefaultConfig()
	nonConverging.MaxIterations = 1

	tests := []struct {
		name  string
		input string
		opts  []Option
		kind  ErrorKind
	}{
		{"unknown prefix", "X1 1 0 5", nil, KindParse},
		{"value overflows", "V1 0 1 1e300T\nR1 1 0 1", nil, KindParse},
		{"empty", "", nil, KindEmptyCircuit},
		{"blank only", "\n \n", nil, KindEmptyCircuit},
		{"floating node", "V1 0 1 5\nR1 1 0 10\nR2 2 3 10", nil, KindSingularMatrix},
		{"non-convergence", "V1 0 1 10\nD1 1 2 1e-12 300\nR1 2 0 100", []Option{WithConfig(nonConverging)}, KindNonConvergence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(tt.input, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, Classify(err))
		})
	}
}

func TestSolveLongLine(t *testing.T) {
	res, err := Solve("R1 1 0 100" + strings.Repeat(" ", 70000) + "\nV1 0 1 5")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, -0.05}, res.Values, 1e-12)
}

func TestSolveWideResistanceSpread(t *testing.T) {
	for _, backend := range []matrix.Backend{matrix.BackendDense, matrix.BackendSparse} {
		t.Run(backend.String(), func(t *testing.T) {
			res, err := Solve("I1 0 1 1m\nR1 1 2 1m\nR2 2 0 1e9", WithBackend(backend))
			require.NoError(t, err)

			v1, _ := res.Voltage(1)
			v2, _ := res.Voltage(2)
			assert.InEpsilon(t, 1e6, v1, 1e-3)
			assert.InDelta(t, 1e-6, v1-v2, 1e-8)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindEmptyCircuit, Classify(fmt.Errorf("wrapped: %w", circuit.ErrEmptyCircuit)))
	assert.Equal(t, KindUnboundedNode, Classify(&circuit.UnboundedNodeError{Element: "R1", Node: -1}))
	assert.Equal(t, KindInternal, Classify(errors.New("boom")))
	assert.Equal(t, "singular_matrix", KindSingularMatrix.String())
	assert.Equal(t, "ok", KindNone.String())
}

func TestSolveContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SolveContext(ctx, "R1 1 0 1\nV1 0 1 1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveLogsIterations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Solve("V1 0 1 1\nD1 1 0 1e-12 300\nR1 1 0 1", WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "newton iteration")
}

func TestSolveBatch(t *testing.T) {
	inputs := make([]string, 20)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("V1 0 1 %d\nR1 1 2 1k\nR2 2 0 1k", i)
	}

	results, err := SolveBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, res := range results {
		v, ok := res.Voltage(2)
		require.True(t, ok)
		assert.InDelta(t, float64(i)/2, v, 1e-9)
	}

	_, err = SolveBatch(context.Background(), []string{"R1 1 0 1\nV1 0 1 1", "X1 1 0 5"})
	require.Error(t, err)
	assert.Equal(t, KindParse, Classify(err))
	assert.Contains(t, err.Error(), "netlist 1")
}

func TestSweep(t *testing.T) {
	res, err := Sweep(context.Background(), "V1 0 1 0\nR1 1 2 1k\nR2 2 0 3k", "V1", 0, 4, 2)
	require.NoError(t, err)

	assert.Equal(t, "V1", res.Source)
	assert.Equal(t, []float64{0, 2, 4}, res.Sweep)
	assert.Equal(t, []string{"V(1)", "V(2)", "I(V1)"}, res.Names())

	series, ok := res.Series("V(2)")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0, 1.5, 3}, series, 1e-9)

	current, ok := res.Series("I(V1)")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0, -0.5e-3, -1e-3}, current, 1e-12)

	_, ok = res.Series("V(9)")
	assert.False(t, ok)

	_, err = Sweep(context.Background(), "V1 0 1 0\nR1 1 0 1", "V2", 0, 1, 1)
	assert.Equal(t, KindInvalidSweep, Classify(err))
}
