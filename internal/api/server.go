// Package api serves the marketplace workflow over HTTP for the host
// application's admin surface.
//
// Routes:
//
//	GET  /modules               module list
//	GET  /modules/{id}          live module info
//	POST /modules/{id}/install  install latest compatible release
//	POST /modules/{id}/update   reinstall and run the update hook
//	GET  /updates               installed modules with newer releases
//	GET  /platform/latest       newest host application version
//	POST /cache/flush           drop the cached module list
//
// Failures are JSON objects {"code": ..., "message": ...}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	errs "github.com/matzehuels/modmarket/pkg/errors"
	"github.com/matzehuels/modmarket/pkg/marketplace"
)

// Catalog is the marketplace client.
type Catalog interface {
	FetchCatalog(ctx context.Context) (marketplace.Catalog, error)
	FetchModuleInfo(ctx context.Context, id string) (*marketplace.Module, error)
	FetchLatestPlatformVersion(ctx context.Context) string
	Flush(ctx context.Context) error
}

// Installer installs and updates modules.
type Installer interface {
	Install(ctx context.Context, id string) error
	Update(ctx context.Context, id string) error
}

// UpdateChecker lists pending updates.
type UpdateChecker interface {
	ListAvailableUpdates(ctx context.Context) (map[string]marketplace.Module, error)
}

// Server exposes the workflow. Install and update requests are handled one
// at a time.
type Server struct {
	catalog   Catalog
	installer Installer
	updates   UpdateChecker
	logger    *log.Logger

	actionMu sync.Mutex
}

// New creates a server. A nil logger falls back to log.Default().
func New(catalog Catalog, inst Installer, updates UpdateChecker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{catalog: catalog, installer: inst, updates: updates, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/modules", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleInfo)
			r.Post("/install", s.handleInstall)
			r.Post("/update", s.handleUpdate)
		})
	})
	r.Get("/updates", s.handleUpdates)
	r.Get("/platform/latest", s.handleLatest)
	r.Post("/cache/flush", s.handleFlush)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("admin API listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.FetchCatalog(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": sorted(cat)})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errs.ValidateModuleID(id); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.catalog.FetchModuleInfo(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "installed", http.StatusCreated, s.installer.Install)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "updated", http.StatusOK, s.installer.Update)
}

func (s *Server) runAction(w http.ResponseWriter, r *http.Request, status string, code int, action func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	if err := action(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, code, map[string]string{"id": id, "status": status})
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.updates.ListAvailableUpdates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": sorted(updates)})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"latestVersion": s.catalog.FetchLatestPlatformVersion(r.Context()),
	})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Flush(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Code    errs.Code `json:"code"`
	Message string    `json:"message"`
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code errs.Code) int {
	switch code {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidModuleID, errs.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errs.ErrCodeNotFound, errs.ErrCodeModuleNotInstalled:
		return http.StatusNotFound
	case errs.ErrCodeAlreadyInstalled:
		return http.StatusConflict
	case errs.ErrCodeNoCompatibleVersion:
		return http.StatusUnprocessableEntity
	case errs.ErrCodeNetwork, errs.ErrCodeDecode, errs.ErrCodeDownloadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	status := statusFor(code)
	if status >= 500 {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorBody{Code: code, Message: errs.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sorted(m map[string]marketplace.Module) []marketplace.Module {
	out := make([]marketplace.Module, 0, len(m))
	for _, mod := range m {
		out = append(out, mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
