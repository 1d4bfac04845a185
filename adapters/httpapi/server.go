// Package httpapi serves the test engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"godex/adapters/report"
	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/config"
	detests "godex/internal/detest"
	"godex/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 20

// Server routes test requests to the engine.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	fitter   detest.Fitter
}

// Option configures a Server.
type Option func(*Server)

// WithFitter enables the model-based tests.
func WithFitter(f detest.Fitter) Option {
	return func(s *Server) { s.fitter = f }
}

// NewServer wires routes, middleware and metrics.
func NewServer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	m, err := NewMetrics(s.registry)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	s.metrics = m

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/two-sample", s.handleTwoSample)
		r.Post("/pairwise", s.handlePairwise)
		r.Post("/versus-rest", s.handleVersusRest)
	})
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// defaults turns the configured engine settings into test options.
func (s *Server) defaults() []detests.Option {
	opts := []detests.Option{
		detests.WithLogger(s.logger),
		detests.WithCorrection(s.cfg.Engine.CorrectionMethod),
		detests.WithPolicy(s.cfg.Policy()),
		detests.WithWorkers(s.cfg.Engine.Workers),
	}
	if s.fitter != nil {
		opts = append(opts, detests.WithFitter(s.fitter))
	}
	return opts
}

// runner evaluates one decoded request into a summary table.
type runner func(ctx context.Context, req *TestRequest, opts []detests.Option) (*detest.Table, error)

func (s *Server) serve(endpoint string, run runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := report.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "" {
			format = report.FormatJSON
		}

		runID := core.NewRunID()
		if h := r.Header.Get("X-Run-ID"); h != "" {
			if runID, err = core.ParseRunID(h); err != nil {
				s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
				return
			}
		}

		var req TestRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			s.writeError(w, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "decode request")))
			return
		}
		opts, err := req.options(s.defaults())
		if err != nil {
			s.writeError(w, err)
			return
		}

		start := time.Now()
		tbl, err := run(r.Context(), &req, opts)
		s.metrics.observe(endpoint, req.Test, len(req.Genes), time.Since(start), err)
		if err != nil {
			s.writeError(w, err)
			return
		}

		rep := report.New(endpoint, req.Test, tbl)
		rep.RunID = runID
		body, err := report.Bytes(format, rep)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType(format))
		w.Header().Set("X-Run-ID", rep.RunID.String())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatJSON:
		return "application/json"
	case report.FormatCSV:
		return "text/csv; charset=utf-8"
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{
		"code":  errors.GetCode(err),
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
