// Package api serves the annotation front-end over HTTP and exposes a
// subset of the same operations as MCP tools.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maulik225/NotumAi/internal/export"
	"github.com/maulik225/NotumAi/internal/labeler"
	"github.com/maulik225/NotumAi/internal/metrics"
	"github.com/maulik225/NotumAi/internal/segment"
	"github.com/maulik225/NotumAi/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadSize      = 64 << 20 // 64MB
)

// Deps holds everything the HTTP layer needs. Labeler and Metrics are
// optional.
type Deps struct {
	Store     *storage.Store
	Segmenter *segment.Service
	Exporter  *export.Exporter
	Labeler   *labeler.Client
	Metrics   *metrics.Metrics
}

// NewHandler returns the router for the front-end API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	r.Get("/health", handleHealth)
	r.Get("/status", handleStatus(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", handleListProjects(deps))
		r.Post("/", handleCreateProject(deps))
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", handleDeleteProject(deps))
			r.Get("/state", handleGetState(deps))
			r.Post("/save_state", handleSaveState(deps))
			r.Get("/stats", handleStats(deps))
		})
	})

	r.Post("/save_annotation", handleSaveAnnotation(deps))
	r.Get("/load_annotation", handleLoadAnnotation(deps))

	r.Post("/load_image_path", handleLoadImagePath(deps))
	r.Post("/load_image", handleLoadImage(deps))
	r.Post("/segment", handleSegment(deps))
	r.Post("/suggest_label", handleSuggestLabel(deps))
	r.Post("/export", handleExport(deps))

	return r
}

// allowAllOrigins answers CORS preflights and tags every response so the
// desktop front-end can call from any origin.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "AI_UNAVAILABLE"
		if deps.Segmenter != nil {
			status = deps.Segmenter.Status()
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

// httpError writes {"error": msg}, the shape the front-end reads for every
// failure.
func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// structuredError reports a failed operation with a 200 status. The
// front-end decides on the body, not the code, for these endpoints.
func structuredError(w http.ResponseWriter, body map[string]any, err error) {
	if body == nil {
		body = map[string]any{}
	}
	body["error"] = err.Error()
	writeJSON(w, http.StatusOK, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid project id %q", raw)
		return 0, false
	}
	return id, true
}

func storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "project not found")
		return
	}
	slog.Error(op, "error", err)
	httpError(w, http.StatusInternalServerError, "%s: %v", op, err)
}
