// Package api provides the REST API for airport and aircraft flight lookups.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"flightinfo/internal/flight"
	"flightinfo/internal/metrics"
)

const (
	defaultListenAddress  = ":3000"
	defaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 10 * time.Second

	// Example is the usage hint returned when a query names nothing to look up.
	Example = "/flights?airport=SBME,SBJR&aircraft=PR-OHR"
)

// Service answers flight queries.
type Service interface {
	Query(ctx context.Context, airports, aircraft []string) flight.Response
}

// Config holds configuration for the API server.
type Config struct {
	ListenAddress  string
	RequestTimeout time.Duration
}

// Server provides REST API access to flight lookups.
type Server struct {
	svc     Service
	metrics *metrics.Metrics
	log     zerolog.Logger
	cfg     Config
}

// NewServer creates a new API server. m may be nil, in which case /metrics
// is not served.
func NewServer(svc Service, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Server {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &Server{
		svc:     svc,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.ListenAddress).Msg("flight info API starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(corsMiddleware)

	r.Get("/", s.handleUsage)
	r.Get("/flights", s.handleFlights)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// recoverer turns a panic into a generic 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error().
				Str("request_id", middleware.GetReqID(r.Context())).
				Interface("panic", rec).
				Msg("handler panicked")
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// UsageResponse is returned with 400 when nothing was asked for.
type UsageResponse struct {
	Error   string `json:"error"`
	Example string `json:"example"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, UsageResponse{
		Error:   "airport or aircraft parameter is required",
		Example: Example,
	})
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	airports := splitList(q.Get("airport"))
	aircraft := splitList(q.Get("aircraft"))

	if len(airports) == 0 && len(aircraft) == 0 {
		s.handleUsage(w, r)
		return
	}

	resp := s.svc.Query(r.Context(), airports, aircraft)

	s.log.Debug().
		Strs("airports", airports).
		Strs("aircraft", aircraft).
		Int("total", resp.Total).
		Int("errors", len(resp.Error)).
		Msg("flights query")

	writeJSON(w, http.StatusOK, resp)
}

// splitList splits a comma-separated query value, removing all spaces and
// dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(strings.ReplaceAll(v, " ", ""), ",") {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
