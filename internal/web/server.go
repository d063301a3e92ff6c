// Package web provides the JSON HTTP API for nfc-timecontrol.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evcraddock/nfc-timecontrol/internal/auth"
	"github.com/evcraddock/nfc-timecontrol/internal/logging"
	"github.com/evcraddock/nfc-timecontrol/internal/scan"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

// Server is the API HTTP server.
type Server struct {
	db        *sql.DB
	visitRepo *visit.Repository
	scans     *scan.Service
	apiKeys   *auth.APIKeyStore
	validate  *validator.Validate
	router    *mux.Router
	handler   http.Handler
	now       func() time.Time
}

// NewServer creates an API server over db. Scan metrics are served from
// gatherer at /metrics.
func NewServer(db *sql.DB, scans *scan.Service, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		db:        db,
		visitRepo: visit.NewRepository(db),
		scans:     scans,
		apiKeys:   auth.NewAPIKeyStore(db),
		validate:  validator.New(),
		router:    mux.NewRouter().UseEncodedPath(),
		now:       time.Now,
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/places", s.apiListPlaces).Methods(http.MethodGet)
	api.HandleFunc("/places/{place}", s.apiDeletePlace).Methods(http.MethodDelete)
	api.HandleFunc("/places/{place}/visits", s.apiListVisits).Methods(http.MethodGet)
	api.HandleFunc("/places/{place}/open", s.apiOpenStatus).Methods(http.MethodGet)
	api.HandleFunc("/status", s.apiStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.apiScan).Methods(http.MethodPost)

	s.handler = logging.RequestLogger(auth.RequireAPIKey(s.apiKeys, s.router))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		apiError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
