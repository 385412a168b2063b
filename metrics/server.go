package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer publishes the package's collectors over HTTP.
type MetricsServer struct {
	log *slog.Logger
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(log *slog.Logger, addr string) (*MetricsServer, error) {
	s := &MetricsServer{log: log}

	mux := chi.NewRouter()
	mux.With(s.httpLogger).Handle("/metrics", promhttp.Handler())
	mux.With(s.httpLogger).Get("/livez", s.handleLivenessCheck)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start serves until Shutdown is called. It blocks, so callers run it on its
// own goroutine.
func (s *MetricsServer) Start() error {
	s.log.Info("Metrics server starting", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains and stops the server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *MetricsServer) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(s.log, next)
}

func (s *MetricsServer) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
