package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/matrix"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, analysis.DefaultConfig(), cfg.Solver)
}

func TestOverrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"SPICE_ADDR":        ":9000",
		"SPICE_LOG_LEVEL":   "debug",
		"SPICE_LOG_FORMAT":  "json",
		"SPICE_REDIS_URL":   "redis://localhost:6379/0",
		"SPICE_CACHE_TTL":   "30s",
		"SPICE_BACKEND":     "sparse",
		"SPICE_MAX_ITER":    "250",
		"SPICE_VTOL":        "1e-9",
		"SPICE_RELTOL":      "1e-4",
		"SPICE_MAX_EXP_ARG": "60",
		"SPICE_INITIAL_VD":  "0.7",
		"SPICE_GMIN":        "1e-12",
		"SPICE_WORKERS":     "4",
		"SPICE_DIODE_GMIN":  "1e-10",
		"SPICE_PIVOT_TOL":   "1e-13",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, matrix.BackendSparse, cfg.Solver.Backend)
	assert.Equal(t, 250, cfg.Solver.MaxIterations)
	assert.Equal(t, 1e-9, cfg.Solver.VoltageTolerance)
	assert.Equal(t, 1e-4, cfg.Solver.RelativeTolerance)
	assert.Equal(t, 60.0, cfg.Solver.MaxExpArg)
	assert.Equal(t, 0.7, cfg.Solver.InitialDiodeVoltage)
	assert.Equal(t, 1e-12, cfg.Solver.Gmin)
	assert.Equal(t, 4, cfg.Solver.Workers)
	assert.Equal(t, 1e-10, cfg.Solver.DiodeGmin)
	assert.Equal(t, 1e-13, cfg.Solver.PivotTolerance)
}

func TestInvalid(t *testing.T) {
	tests := map[string]string{
		"SPICE_MAX_ITER":   "many",
		"SPICE_VTOL":       "tiny",
		"SPICE_CACHE_TTL":  "forever",
		"SPICE_BACKEND":    "qr",
		"SPICE_RELTOL":     "-1",
		"SPICE_DIODE_GMIN": "-1e-12",
		"SPICE_PIVOT_TOL":  "loose",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := fromLookup(lookupFrom(map[string]string{key: value}))
			assert.Error(t, err)
		})
	}
}
