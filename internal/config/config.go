package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/matrix"
)

// Server captures process level configuration of the solver service.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
	RedisURL  string
	CacheTTL  time.Duration
	Solver    analysis.Config
}

// FromEnv builds a Server config from environment variables so main stays
// lean. Unset variables keep their defaults, malformed ones are an error.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	cfg := Server{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		CacheTTL:  10 * time.Minute,
		Solver:    analysis.DefaultConfig(),
	}

	p := parser{lookup: lookup}

	cfg.Addr = p.str("SPICE_ADDR", cfg.Addr)
	cfg.LogLevel = p.str("SPICE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = p.str("SPICE_LOG_FORMAT", cfg.LogFormat)
	cfg.RedisURL = p.str("SPICE_REDIS_URL", "")
	cfg.CacheTTL = p.duration("SPICE_CACHE_TTL", cfg.CacheTTL)

	s := &cfg.Solver
	s.MaxIterations = p.integer("SPICE_MAX_ITER", s.MaxIterations)
	s.VoltageTolerance = p.float("SPICE_VTOL", s.VoltageTolerance)
	s.RelativeTolerance = p.float("SPICE_RELTOL", s.RelativeTolerance)
	s.MaxExpArg = p.float("SPICE_MAX_EXP_ARG", s.MaxExpArg)
	s.InitialDiodeVoltage = p.float("SPICE_INITIAL_VD", s.InitialDiodeVoltage)
	s.Gmin = p.float("SPICE_GMIN", s.Gmin)
	s.DiodeGmin = p.float("SPICE_DIODE_GMIN", s.DiodeGmin)
	s.PivotTolerance = p.float("SPICE_PIVOT_TOL", s.PivotTolerance)
	s.Workers = p.integer("SPICE_WORKERS", s.Workers)

	if v, ok := lookup("SPICE_BACKEND"); ok {
		backend, err := matrix.ParseBackend(v)
		if err != nil {
			p.fail(err)
		}
		s.Backend = backend
	}

	if p.err != nil {
		return Server{}, p.err
	}
	if err := s.Validate(); err != nil {
		return Server{}, fmt.Errorf("solver config: %w", err)
	}
	return cfg, nil
}

// parser records the first malformed variable.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
