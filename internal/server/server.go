// Package server exposes the sourcing tools and pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FranksOps/sourcer/internal/pipeline"
	"github.com/FranksOps/sourcer/internal/tools"
)

const maxBodyBytes = 1 << 20

// Runner runs a full sourcing job. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, requirement string) (*pipeline.Result, error)
}

// Config for the HTTP handler. Runner is optional; without it the runs
// endpoint is not mounted.
type Config struct {
	Tools  *tools.Registry
	Runner Runner
	Logger *slog.Logger
	// RunTimeout bounds a synchronous pipeline run. Zero means no limit
	// beyond the request context.
	RunTimeout time.Duration
}

type errorBody struct {
	Error string `json:"error"`
}

type handler struct {
	cfg Config
	log *slog.Logger
}

// New returns an HTTP handler with the health, tool, run and metrics
// routes.
func New(cfg Config) (http.Handler, error) {
	if cfg.Tools == nil {
		return nil, errors.New("server: tool registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handler{cfg: cfg, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", h.listTools)
		r.Post("/tools/{name}", h.executeTool)
		if cfg.Runner != nil {
			r.Post("/runs", h.run)
		}
	})
	return r, nil
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Tools.List())
}

func (h *handler) executeTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	args, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := h.cfg.Tools.Execute(r.Context(), name, args)
	switch {
	case errors.Is(err, tools.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tools.ErrInvalidArgs):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Error("tool execution failed", "tool", name, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

type runRequest struct {
	Requirement string `json:"requirement"`
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if h.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RunTimeout)
		defer cancel()
	}

	res, err := h.cfg.Runner.Run(ctx, req.Requirement)
	switch {
	case errors.Is(err, pipeline.ErrEmptyRequirement):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Error("run failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
