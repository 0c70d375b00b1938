// Package fixture serves canned remote popup content from a directory of
// JSON files, so remote popups can be exercised without a real backend.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/popui/internal/popup"
)

// maxDelay caps the delay a client may request.
const maxDelay = 30 * time.Second

// Server serves <dir>/<name>.json at GET /popup/{name}.
type Server struct {
	dir        string
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a fixture server for dir.
func New(dir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{dir: dir, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/popups", s.handleList)
	r.Get("/popup/{name}", s.handlePopup)

	return r
}

// handlePopup serves one fixture. The query parameters status and delay
// let clients provoke failures and slow responses.
func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validName(name) {
		writeError(w, http.StatusBadRequest, "invalid popup name")
		return
	}

	q := r.URL.Query()
	if v := q.Get("delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 || d > maxDelay {
			writeError(w, http.StatusBadRequest, "invalid delay")
			return
		}
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if v := q.Get("status"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil || code < 400 || code > 599 {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		writeError(w, code, http.StatusText(code))
		return
	}

	m, err := s.load(name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "popup not found")
		return
	case err != nil:
		s.logger.Warn("invalid popup fixture", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "invalid fixture")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.Names()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"popups": names})
}

// load reads and validates a fixture.
func (s *Server) load(name string) (*popup.Mutation, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if err != nil {
		return nil, err
	}
	var m popup.Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s.json: %w", name, err)
	}
	return &m, nil
}

// Names returns the available fixture names, sorted.
func (s *Server) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if name := strings.TrimSuffix(e.Name(), ".json"); validName(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// logRequests logs each request at debug level once it is served.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("served request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      maxDelay + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fixture server listening", "addr", addr, "dir", s.dir)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func validName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && filepath.Base(name) == name
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
