package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/dcop/pkg/circuit"
	"github.com/edp1096/dcop/pkg/netlist"
)

func newSweep(t *testing.T, input, source string, start, stop, step float64, cfg Config) (*DCSweep, error) {
	t.Helper()

	elements, err := netlist.Parse(input)
	require.NoError(t, err)

	ckt, err := circuit.Build("sweep", elements, cfg.Backend, cfg.PivotTolerance)
	require.NoError(t, err)
	t.Cleanup(ckt.Destroy)

	dc, err := NewDCSweep(elements, source, start, stop, step, cfg, nil)
	if err != nil {
		return nil, err
	}
	return dc, dc.Setup(ckt)
}

func TestSweepValues(t *testing.T) {
	tests := []struct {
		start, stop, step float64
		want              []float64
	}{
		{0, 1, 0.25, []float64{0, 0.25, 0.5, 0.75, 1}},
		{0, 0.3, 0.1, []float64{0, 0.1, 0.2, 0.30000000000000004}},
		{5, 5, 0, []float64{5}},
		{1, -1, -1, []float64{1, 0, -1}},
		{0, 1, 0.3, []float64{0, 0.3, 0.6, 0.8999999999999999}},
	}

	for _, tt := range tests {
		got, err := SweepValues(tt.start, tt.stop, tt.step)
		require.NoError(t, err)
		assert.InDeltaSlice(t, tt.want, got, 1e-12)
	}

	for _, bad := range [][3]float64{{0, 1, 0}, {0, 1, -0.1}, {0, 1e9, 1e-3}} {
		_, err := SweepValues(bad[0], bad[1], bad[2])
		assert.Error(t, err, "%v", bad)
	}
}

func TestSweepValuesPointCap(t *testing.T) {
	got, err := SweepValues(0, MaxSweepPoints-1, 1)
	require.NoError(t, err)
	assert.Len(t, got, MaxSweepPoints)

	// Just under the cap in steps, but the rounding slack adds the last point.
	_, err = SweepValues(0, MaxSweepPoints-1e-10, 1)
	assert.ErrorIs(t, err, ErrInvalidSweep)
}

func TestDCSweep(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.String(), func(t *testing.T) {
			cfg := configFor(backend)
			cfg.Workers = 3

			dc, err := newSweep(t, "V1 0 1 0\nR1 1 2 1k\nR2 2 0 1k", "v1", 0, 10, 1, cfg)
			require.NoError(t, err)
			require.NoError(t, dc.Execute())

			assert.Equal(t, "V1", dc.SourceName())
			points := dc.Points()
			require.Len(t, points, 11)
			for i, p := range points {
				assert.Equal(t, float64(i), p.Value)
				assert.InDelta(t, float64(i)/2, p.Solution[1], 1e-9)
			}

			results := dc.GetResults()
			assert.Len(t, results["SWEEP1"], 11)
			assert.InDelta(t, 5.0, results["V(2)"][10], 1e-9)
			assert.InDelta(t, -5e-3, results["I(V1)"][10], 1e-12)
		})
	}
}

func TestDCSweepCurrentSourceWithDiode(t *testing.T) {
	dc, err := newSweep(t, "I1 0 1 0\nD1 1 0 1e-12 300\nR1 1 0 10k", "I1", 1e-6, 1e-3, 1e-4, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, dc.Execute())

	// Diode voltage rises monotonically with the forward current.
	points := dc.Points()
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Solution[0], points[i-1].Solution[0])
	}
}

func TestDCSweepErrors(t *testing.T) {
	_, err := newSweep(t, "V1 0 1 1\nR1 1 0 1", "V9", 0, 1, 0.5, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSweep)

	_, err = newSweep(t, "V1 0 1 1\nR1 1 0 1", "R1", 0, 1, 0.5, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSweep)

	_, err = newSweep(t, "V1 0 1 1\nR1 1 0 1", "V1", 0, 1, -0.5, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSweep)
}

func TestDCSweepPointFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1

	dc, err := newSweep(t, "V1 0 1 0\nD1 1 2 1e-12 300\nR1 2 0 100", "V1", 5, 6, 1, cfg)
	require.NoError(t, err)

	err = dc.Execute()
	var sweepErr *SweepError
	require.True(t, errors.As(err, &sweepErr), "got %v", err)
	assert.Equal(t, "V1", sweepErr.Source)

	var nonConv *NonConvergenceError
	assert.True(t, errors.As(err, &nonConv))
}

func TestDCSweepCancelled(t *testing.T) {
	dc, err := newSweep(t, "V1 0 1 0\nR1 1 0 1", "V1", 0, 1, 0.1, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, dc.ExecuteContext(ctx), context.Canceled)
}

func TestDCSweepNotSetUp(t *testing.T) {
	dc, err := NewDCSweep(nil, "V1", 0, 1, 1, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Error(t, dc.Execute())
}
