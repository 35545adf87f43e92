package liveflow

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Session   string    `json:"session"`
	Station   string    `json:"station,omitempty"`
	Buffered  int       `json:"buffered"`
	LastSave  time.Time `json:"last_save"`
	LastWrite time.Time `json:"last_file_write"`
}

// Handler serves /metrics, /healthz and /current.
func (r *Runtime) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.Group(func(g chi.Router) {
		if limit := r.cfg.Metrics.RateLimit; limit > 0 {
			g.Use(httprate.LimitByIP(limit, time.Minute))
		}
		g.Get("/healthz", r.handleHealth)
		g.Get("/current", r.handleCurrent)
	})
	return mux
}

func (r *Runtime) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Session: r.session}
	code := http.StatusOK

	stats, err := r.BufferStats(ctx)
	if err != nil {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		resp.Station = stats.StationCode
		resp.Buffered = stats.Entries
		resp.LastSave = stats.LastSave
		resp.LastWrite = stats.LastFileWrite
	}

	writeJSON(w, code, resp)
}

// handleCurrent returns the newest emitted sample, or 204 before the first.
func (r *Runtime) handleCurrent(w http.ResponseWriter, req *http.Request) {
	s, ok := r.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
