package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iskralabs/iskra/common/version"
)

// HTTPServer exposes /health, /status, and the payment webhook. It is
// optional; Iskra runs in polling-only mode when HTTPAddr is empty (no
// payment confirmations can arrive then).
type HTTPServer struct {
	addr      string
	store     statusProvider
	startedAt time.Time
	server    *http.Server
	router    chi.Router
}

// statusProvider is the minimal interface the HTTP server needs from Store.
type statusProvider interface {
	UserCount(ctx context.Context) (int, error)
	ActiveGrantCount(ctx context.Context, now time.Time) (int, error)
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	BuildTime    string    `json:"build_time"`
	StartedAt    time.Time `json:"started_at"`
	UptimeSecs   float64   `json:"uptime_seconds"`
	UserCount    int       `json:"user_count"`
	ActiveGrants int       `json:"active_grants"`
}

// NewHTTPServer creates and configures the HTTP server (does not start it).
func NewHTTPServer(addr string, sp statusProvider) *HTTPServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	hs := &HTTPServer{
		addr:      addr,
		store:     sp,
		startedAt: time.Now(),
		router:    r,
	}
	r.Get("/health", hs.handleHealth)
	r.Get("/status", hs.handleStatus)
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener (e.g. with httptest.NewRecorder).
func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Router exposes the underlying chi router so subsystems can mount their own
// routes (e.g. the payment webhook). Call before Start.
func (h *HTTPServer) Router() chi.Router {
	return h.router
}

// Start begins listening in the background. Blocks until the listener is
// established so the caller knows the port is open before returning.
func (h *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (h *HTTPServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
}

// handleHealth responds with a simple ok JSON payload.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus responds with runtime statistics.
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	users := 0
	grants := 0
	if h.store != nil {
		if n, err := h.store.UserCount(r.Context()); err == nil {
			users = n
		}
		if n, err := h.store.ActiveGrantCount(r.Context(), time.Now()); err == nil {
			grants = n
		}
	}

	resp := statusResponse{
		Status:       "ok",
		Version:      version.Version,
		Commit:       version.GitCommit,
		BuildTime:    version.BuildTime,
		StartedAt:    h.startedAt,
		UptimeSecs:   time.Since(h.startedAt).Seconds(),
		UserCount:    users,
		ActiveGrants: grants,
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: failed to encode JSON response", "err", err)
	}
}
