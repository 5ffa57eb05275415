// Package server exposes census resolution over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/census"
	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/internal/metrics"
	"github.com/quietcreep/citysdk/internal/variables"
	"github.com/quietcreep/citysdk/pkg/censusapi"
)

// maxBodyBytes bounds request bodies; container polygons can be large.
const maxBodyBytes = 8 << 20

// Engine resolves requests. *census.Resolver implements it.
type Engine interface {
	NewRequest(raw census.RawRequest) (*census.Request, error)
	Resolve(ctx context.Context, req *census.Request) (*census.Request, error)
	ResolveGeometry(ctx context.Context, req *census.Request) (*census.FeatureCollection, error)
	Catalog() *variables.Catalog
}

// Dictionary fetches a dataset's variable dictionary. *censusapi.Client
// implements it.
type Dictionary interface {
	Variables(ctx context.Context, year int, dataset string) ([]censusapi.Variable, error)
}

// Options configure the router.
type Options struct {
	Engine      Engine
	Dictionary  Dictionary
	Metrics     *metrics.Metrics
	CORSOrigins []string
	// Timeout bounds each resolution. Zero means no limit beyond the
	// client's own.
	Timeout time.Duration
}

type handlers struct {
	engine  Engine
	dict    Dictionary
	timeout time.Duration
}

// New builds the router.
func New(opts Options) http.Handler {
	h := &handlers{engine: opts.Engine, dict: opts.Dictionary, timeout: opts.Timeout}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", opts.Metrics.Handler())

	r.Route("/census", func(r chi.Router) {
		r.Post("/request", h.request)
		r.Post("/geo", h.geo)
		r.Get("/variables", h.aliases)
		r.Get("/dictionary/{year}/{api}", h.dictionary)
	})
	return r
}

func (h *handlers) request(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	out, err := h.engine.Resolve(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) geo(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	fc, err := h.engine.ResolveGeometry(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *handlers) aliases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Catalog().Aliases())
}

func (h *handlers) dictionary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year must be a four-digit number"})
		return
	}
	api := chi.URLParam(r, "api")
	vars, err := h.dict.Variables(r.Context(), year, census.DatasetPath(year, api))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vars)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request) (*census.Request, bool) {
	var raw census.RawRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	req, err := h.engine.NewRequest(raw)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return req, true
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

// statusOf maps resolution errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, census.ErrInvalidLevel),
		errors.Is(err, census.ErrMissingLocation),
		errors.Is(err, geography.ErrUnknownVintage):
		return http.StatusBadRequest
	case errors.Is(err, census.ErrGeocodeNoMatch):
		return http.StatusNotFound
	case errors.Is(err, census.ErrUpstreamFailure):
		// The statistics API rejects unknown variables and datasets with
		// 400 or 404; those are the caller's to fix.
		if s := fetcher.StatusOf(err); s == http.StatusBadRequest || s == http.StatusNotFound {
			return s
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	log := zap.L().With(
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("server: request failed")
	} else {
		log.Debug("server: request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}
