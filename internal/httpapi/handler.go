// Package httpapi exposes the governance pipeline over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/drift"
	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
)

const maxBodyBytes = 1 << 20

// Handler wires HTTP endpoints to the engine.
type Handler struct {
	engine   *pipeline.Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New constructs a Handler. gatherer backs /metrics and may be nil.
func New(engine *pipeline.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, gatherer: gatherer, logger: logger}
}

// Router returns a chi router with every endpoint mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Register(r)
	return r
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", h.HandleSubmit)
		r.Post("/arbitrate", h.HandleArbitrate)
		r.Get("/ledger", h.HandleQuery)
		r.Get("/ledger/vetoes", h.HandleVetoes)
		r.Get("/ledger/verify", h.HandleVerify)
		r.Get("/audit", h.HandleAudit)
		r.Get("/drift/baseline", h.HandleBaseline)
	})
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSubmit handles POST /v1/events.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var sub pipeline.Submission
	if !decode(w, r, &sub) {
		return
	}
	out, err := h.engine.Process(ctx, sub)
	if err != nil {
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// ArbitrateRequest is the body of POST /v1/arbitrate.
type ArbitrateRequest struct {
	Candidates []model.Candidate   `json:"candidates"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// ArbitrateResponse is the answer to POST /v1/arbitrate.
type ArbitrateResponse struct {
	Verdict  model.Verdict          `json:"verdict"`
	Accepted *model.Candidate       `json:"accepted,omitempty"`
	Audit    model.AuditEntry       `json:"audit"`
	Trace    []arbitrate.TraceEntry `json:"trace"`
}

// HandleArbitrate handles POST /v1/arbitrate.
func (h *Handler) HandleArbitrate(w http.ResponseWriter, r *http.Request) {
	var req ArbitrateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.Arbitrate(r.Context(), arbitrate.Request{Candidates: req.Candidates, Weights: req.Weights})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ArbitrateResponse{
		Verdict:  res.Verdict,
		Accepted: res.Accepted,
		Audit:    res.Audit,
		Trace:    res.Trace,
	})
}

// HandleQuery handles GET /v1/ledger?from&to&pec&status.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := ledger.ParseQuery(v.Get("from"), v.Get("to"), v.Get("pec"), v.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	nodes, err := h.engine.Ledger().Find(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// HandleVetoes handles GET /v1/ledger/vetoes.
func (h *Handler) HandleVetoes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.engine.Ledger().Vetoes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// HandleVerify handles GET /v1/ledger/verify. A broken chain answers 409.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Ledger().Verify(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if !res.Valid {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// HandleAudit handles GET /v1/audit?source&since&until&tail.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	filter := audit.ReplayFilter{Source: v.Get("source")}
	var err error
	if s := v.Get("since"); s != "" {
		if filter.From, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if s := v.Get("until"); s != "" {
		if filter.To, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	res, err := h.engine.Audit().Replay(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s := v.Get("tail"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("tail must be a non-negative integer"))
			return
		}
		if n < len(res.Entries) {
			res.Entries = res.Entries[len(res.Entries)-n:]
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBaseline handles GET /v1/drift/baseline.
func (h *Handler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.Drift().Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, drift.BuildBaseline(entries, time.Now()))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
