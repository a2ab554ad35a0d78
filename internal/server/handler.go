package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edp1096/dcop/internal/cache"
	"github.com/edp1096/dcop/internal/metrics"
	"github.com/edp1096/dcop/pkg/analysis"
	"github.com/edp1096/dcop/pkg/matrix"
	"github.com/edp1096/dcop/pkg/solver"
)

// MaxBodyBytes caps a request body.
const MaxBodyBytes = 1 << 20

// Handler wires solve endpoints to the solver.
type Handler struct {
	config   analysis.Config
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a handler. c may be nil to disable caching.
func New(cfg analysis.Config, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		config:   cfg,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
		metrics:  m,
	}
}

// Register mounts solve endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/solve", h.HandleSolve)
	r.Post("/v1/sweep", h.HandleSweep)
}

type SolveRequest struct {
	Netlist string `json:"netlist"`
	Backend string `json:"backend,omitempty"`
}

type SolveResponse struct {
	RequestID  string    `json:"request_id"`
	Values     []float64 `json:"values"`
	Names      []string  `json:"names"`
	Nodes      []int     `json:"nodes"`
	Branches   []string  `json:"branches"`
	Iterations int       `json:"iterations"`
	Cached     bool      `json:"cached"`
}

type SweepRequest struct {
	Netlist string  `json:"netlist"`
	Source  string  `json:"source"`
	Start   float64 `json:"start"`
	Stop    float64 `json:"stop"`
	Step    float64 `json:"step"`
	Backend string  `json:"backend,omitempty"`
}

type SweepResponse struct {
	RequestID string      `json:"request_id"`
	Source    string      `json:"source"`
	Sweep     []float64   `json:"sweep"`
	Names     []string    `json:"names"`
	Nodes     []int       `json:"nodes"`
	Branches  []string    `json:"branches"`
	Values    [][]float64 `json:"values"`
	Cached    bool        `json:"cached"`
}

type errorResponse struct {
	RequestID        string `json:"request_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HandleSolve handles POST /v1/solve. The body is either the netlist text or
// a JSON SolveRequest.
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestID(r)
	start := time.Now()
	defer h.metrics.ObserveSolveLatency("solve", start)

	req, err := decodeSolveRequest(w, r)
	if err != nil {
		h.badRequest(ctx, w, "solve", requestID, err)
		return
	}
	cfg, err := h.configFor(req.Backend)
	if err != nil {
		h.badRequest(ctx, w, "solve", requestID, err)
		return
	}

	key := cache.Key("solve", req.Netlist, cfg)
	var resp SolveResponse
	if h.lookup(ctx, key, &resp) {
		resp.RequestID = requestID
		resp.Cached = true
		h.metrics.IncrementSolve("solve", solver.KindNone.String())
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res, err := solver.SolveContext(ctx, req.Netlist, solver.WithConfig(cfg), solver.WithLogger(h.logger))
	if err != nil {
		h.solveFailed(ctx, w, "solve", requestID, err)
		return
	}

	resp = SolveResponse{
		Values:     nonNil(res.Values),
		Names:      res.Names(),
		Nodes:      res.NodeIDs,
		Branches:   res.Branches,
		Iterations: res.Iterations,
	}
	h.store(ctx, key, resp)

	h.metrics.IncrementSolve("solve", solver.KindNone.String())
	h.metrics.ObserveIterations(res.Iterations)
	h.logger.InfoContext(ctx, "operating point solved",
		"request_id", requestID,
		"unknowns", res.Len(),
		"iterations", res.Iterations,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp.RequestID = requestID
	writeJSON(w, http.StatusOK, resp)
}

// HandleSweep handles POST /v1/sweep.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestID(r)
	start := time.Now()
	defer h.metrics.ObserveSolveLatency("sweep", start)

	var req SweepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		h.badRequest(ctx, w, "sweep", requestID, fmt.Errorf("decode request: %w", err))
		return
	}
	cfg, err := h.configFor(req.Backend)
	if err != nil {
		h.badRequest(ctx, w, "sweep", requestID, err)
		return
	}

	key := cache.Key("sweep", req.Netlist, cfg, req.Source, req.Start, req.Stop, req.Step)
	var resp SweepResponse
	if h.lookup(ctx, key, &resp) {
		resp.RequestID = requestID
		resp.Cached = true
		h.metrics.IncrementSolve("sweep", solver.KindNone.String())
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res, err := solver.Sweep(ctx, req.Netlist, req.Source, req.Start, req.Stop, req.Step,
		solver.WithConfig(cfg), solver.WithLogger(h.logger))
	if err != nil {
		h.solveFailed(ctx, w, "sweep", requestID, err)
		return
	}

	resp = SweepResponse{
		Source:   res.Source,
		Sweep:    res.Sweep,
		Names:    res.Names(),
		Nodes:    res.NodeIDs,
		Branches: res.Branches,
		Values:   res.Values,
	}
	h.store(ctx, key, resp)

	h.metrics.IncrementSolve("sweep", solver.KindNone.String())
	h.logger.InfoContext(ctx, "dc sweep solved",
		"request_id", requestID,
		"source", res.Source,
		"points", len(res.Sweep),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp.RequestID = requestID
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) configFor(backend string) (analysis.Config, error) {
	cfg := h.config
	if backend == "" {
		return cfg, nil
	}
	b, err := matrix.ParseBackend(backend)
	if err != nil {
		return cfg, err
	}
	cfg.Backend = b
	return cfg, nil
}

// lookup decodes a cached response into dst. Cache failures count as misses.
func (h *Handler) lookup(ctx context.Context, key string, dst any) bool {
	if h.cache == nil {
		return false
	}

	data, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "cache get failed", "error", err.Error())
		return false
	}
	if ok && json.Unmarshal(data, dst) == nil {
		h.metrics.IncrementCache(true)
		return true
	}
	h.metrics.IncrementCache(false)
	return false
}

func (h *Handler) store(ctx context.Context, key string, v any) {
	if h.cache == nil {
		return
	}

	data, err := json.Marshal(v)
	if err == nil {
		err = h.cache.Set(ctx, key, data, h.cacheTTL)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "cache set failed", "error", err.Error())
	}
}

func (h *Handler) badRequest(ctx context.Context, w http.ResponseWriter, endpoint, requestID string, err error) {
	h.metrics.IncrementSolve(endpoint, "bad_request")
	h.logger.WarnContext(ctx, "bad request",
		"request_id", requestID,
		"endpoint", endpoint,
		"error", err.Error(),
	)
	writeJSON(w, http.StatusBadRequest, errorResponse{
		RequestID:        requestID,
		Error:            "bad_request",
		ErrorDescription: err.Error(),
	})
}

func (h *Handler) solveFailed(ctx context.Context, w http.ResponseWriter, endpoint, requestID string, err error) {
	kind := solver.Classify(err)
	status := statusFor(kind)
	h.metrics.IncrementSolve(endpoint, kind.String())

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "solve failed",
			"request_id", requestID,
			"endpoint", endpoint,
			"error", err.Error(),
		)
		writeJSON(w, status, errorResponse{RequestID: requestID, Error: kind.String()})
		return
	}

	h.logger.InfoContext(ctx, "solve rejected",
		"request_id", requestID,
		"endpoint", endpoint,
		"kind", kind.String(),
		"error", err.Error(),
	)
	writeJSON(w, status, errorResponse{
		RequestID:        requestID,
		Error:            kind.String(),
		ErrorDescription: err.Error(),
	})
}

func statusFor(kind solver.ErrorKind) int {
	switch kind {
	case solver.KindParse, solver.KindEmptyCircuit, solver.KindUnboundedNode, solver.KindInvalidSweep:
		return http.StatusBadRequest
	case solver.KindSingularMatrix, solver.KindNonConvergence:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeSolveRequest(w http.ResponseWriter, r *http.Request) (SolveRequest, error) {
	var req SolveRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, fmt.Errorf("decode request: %w", err)
		}
		return req, nil
	}

	text, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, fmt.Errorf("netlist larger than %d bytes", tooLarge.Limit)
		}
		return req, fmt.Errorf("read request: %w", err)
	}
	req.Netlist = string(text)
	req.Backend = r.URL.Query().Get("backend")
	return req, nil
}

// requestID keeps a caller supplied X-Request-ID or makes a new one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}
