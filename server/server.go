package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftdrop/exports"
	"nftdrop/reconcile"
)

// Engine is the reconciliation surface the admin server drives.
type Engine interface {
	Snapshot() reconcile.Snapshot
	Pause()
	Resume()
	ConfirmComplete()
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Server hosts the operator endpoints: status snapshot, pause/resume,
// completion confirmation, metrics, and sales exports.
type Server struct {
	cfg    Config
	engine Engine
	auth   *Authenticator
	log    *slog.Logger
}

// New constructs the admin server.
func New(cfg Config, engine Engine, auth *Authenticator, log *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine required")
	}
	if auth == nil {
		return nil, fmt.Errorf("server: authenticator required")
	}
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":7480"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Server{cfg: cfg, engine: engine, auth: auth, log: log}, nil
}

// Routes assembles the router. Health and metrics are open; everything else
// sits behind operator authentication.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/status", s.handleStatus)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/complete", s.handleComplete)
		r.Get("/export/sales.csv", s.handleExportCSV)
		r.Get("/export/sales.parquet", s.handleExportParquet)
	})

	return otelhttp.NewHandler(r, "nftdropd.admin")
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin server listening", "addr", s.cfg.ListenAddress)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	s.logOperator(r, "campaign paused")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume()
	s.logOperator(r, "campaign resumed")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// handleComplete records the operator's completion confirmation. The loop
// applies it on its next idle evaluation; completion is refused here when
// records are still in flight so the confirmation cannot be banked early.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if !snap.Summary.AskToMarkAsComplete {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "campaign is not ready to complete",
		})
		return
	}
	s.engine.ConfirmComplete()
	s.logOperator(r, "completion confirmed")
	writeJSON(w, http.StatusAccepted, map[string]string{"message": snap.Summary.Message})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	data, checksum, err := exports.SalesCSV(snap.Name, snap.Records)
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Checksum-SHA256", checksum)
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	_, _ = w.Write(data)
}

func (s *Server) handleExportParquet(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.parquet"`)
	if err := exports.SalesParquet(w, snap.Records); err != nil {
		s.log.Error("parquet export failed", "error", err)
	}
}

func (s *Server) logOperator(r *http.Request, msg string) {
	subject := "unknown"
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		subject = principal.Subject
	}
	s.log.Info(msg, "operator", subject)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
