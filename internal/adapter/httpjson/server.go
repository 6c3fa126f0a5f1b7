// Package httpjson is a thin reference wire adapter (spec §6: "clients
// reach the engine however their transport does" -- this is one concrete
// illustration, not a spec component). It exposes Engine.Authenticate over
// JSON-over-HTTP, plus a Prometheus /metrics endpoint and a liveness probe.
// Grounded on the teacher's internal/api/handlers (a handlers struct built
// from its dependencies, one method per route, gorilla/mux wiring) and
// internal/api/middleware/metrics.go (per-request instrumentation).
package httpjson

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/engine"
	pkglogger "github.com/nforgeio/lilltek-auth/pkg/logger"
)

// Handlers binds an Engine to the reference HTTP routes.
type Handlers struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewHandlers builds Handlers bound to eng.
func NewHandlers(eng *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{engine: eng, logger: logger.With("component", "httpjson")}
}

// NewRouter builds the mux.Router exposing /authenticate, /metrics and
// /healthz.
func NewRouter(eng *engine.Engine, logger *slog.Logger) *mux.Router {
	h := NewHandlers(eng, logger)

	r := mux.NewRouter()
	r.Use(pkglogger.LoggingMiddleware(h.logger))
	r.HandleFunc("/authenticate", h.Authenticate).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/counters", h.Counters).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// authenticateRequest is the JSON body for POST /authenticate.
type authenticateRequest struct {
	Realm    string `json:"realm"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

// authenticateResponse mirrors authtypes.AuthResult (spec §3).
type authenticateResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	MaxCacheTime string `json:"max_cache_time,omitempty"`
}

// Authenticate handles POST /authenticate.
func (h *Handlers) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Authenticate(r.Context(), req.Realm, req.Account, req.Password)
	if err != nil {
		h.logger.Error("backend failure", "error", err)
		writeJSON(w, http.StatusBadGateway, authenticateResponse{Status: authtypes.StatusServerError.String(), Message: err.Error()})
		return
	}

	resp := authenticateResponse{Status: result.Status.String(), Message: result.Message}
	if result.MaxCacheTime > 0 {
		resp.MaxCacheTime = result.MaxCacheTime.String()
	}

	status := http.StatusOK
	if result.Status != authtypes.StatusAuthenticated {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, resp)
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// Counters handles GET /counters, surfacing the engine's counter snapshot
// (spec §2 "emit counter snapshots") as JSON, separate from the Prometheus
// endpoint for operators who just want a quick curl.
func (h *Handlers) Counters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Counters.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
