// Package server serves a built site for local development. HTML responses
// carry a live-reload client that reloads the page after every successful
// rebuild and shows an error overlay after a failed one.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/validation"
)

// BuildStatus is the last build as reported on the status endpoint.
type BuildStatus struct {
	Report *pipeline.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
	At     time.Time        `json:"at"`
}

// PreviewServer serves the output root.
type PreviewServer struct {
	config  *config.Config
	root    string
	hub     *Hub
	metrics http.Handler
	logger  logging.Logger

	statusMu sync.RWMutex
	status   *BuildStatus

	serverMutex sync.Mutex
	httpServer  *http.Server
	listener    net.Listener
}

// New creates a preview server for cfg. metricsHandler may be nil.
func New(cfg *config.Config, metricsHandler http.Handler, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	root := cfg.Output.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(cfg.ProjectDir, root)
	}

	port := strconv.Itoa(cfg.Serve.Port)
	origins := []string{
		net.JoinHostPort(cfg.Serve.Host, port),
		net.JoinHostPort("localhost", port),
		net.JoinHostPort("127.0.0.1", port),
	}

	return &PreviewServer{
		config:  cfg,
		root:    root,
		hub:     NewHub(origins, logger),
		metrics: metricsHandler,
		logger:  logger.WithComponent("server"),
	}
}

// Hub returns the live-reload hub.
func (s *PreviewServer) Hub() *Hub { return s.hub }

// Handler returns the server's routes.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.config.Serve.LiveReload {
		mux.Handle(ReloadPath, s.hub)
	}
	mux.HandleFunc("/_sitepress/status", s.handleStatus)
	mux.HandleFunc("/_sitepress/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/_sitepress/metrics", s.metrics)
	}
	mux.HandleFunc("/", s.handleStatic)
	return s.addMiddleware(mux)
}

// Listen binds the configured address. It is split from Serve so callers
// know the address is taken before the first build starts.
func (s *PreviewServer) Listen() (string, error) {
	addr := net.JoinHostPort(s.config.Serve.Host, strconv.Itoa(s.config.Serve.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Unlock()

	return "http://" + ln.Addr().String(), nil
}

// Serve serves until ctx is done, then shuts down gracefully.
func (s *PreviewServer) Serve(ctx context.Context) error {
	s.serverMutex.Lock()
	server, ln := s.httpServer, s.listener
	s.serverMutex.Unlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.logger.Info(ctx, "Server stopped")
	return nil
}

// BuildFinished records a build result and notifies live-reload clients.
func (s *PreviewServer) BuildFinished(report *pipeline.Report, err error) {
	status := &BuildStatus{Report: report, At: time.Now()}
	if err != nil {
		status.Error = err.Error()
	}

	s.statusMu.Lock()
	s.status = status
	s.statusMu.Unlock()

	if !s.config.Serve.LiveReload {
		return
	}

	if err != nil {
		collector := errors.NewCollector()
		collector.Fail(err)
		s.hub.Broadcast(Message{Type: MessageError, HTML: collector.ErrorOverlay()})
		return
	}

	msg := Message{Type: MessageReload}
	if report != nil {
		msg.Token = report.Token.String()
	}
	s.hub.Broadcast(msg)
}

func (s *PreviewServer) addMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.Len(),
	})
}

func (s *PreviewServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()

	if status == nil {
		http.Error(w, "No build has finished yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// handleStatic serves files from the output root. Directory requests map to
// their index.html, and HTML gets the live-reload client.
func (s *PreviewServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)
	target, err := validation.ResolveWithin(s.root, urlPath)
	if err != nil {
		if urlPath != "/" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		target = s.root
	}

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		target = filepath.Join(target, s.config.HTML.PageName)
		info, err = os.Stat(target)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if !s.config.Serve.LiveReload || !strings.EqualFold(filepath.Ext(target), ".html") {
		http.ServeFile(w, r, target)
		return
	}

	data, err := os.ReadFile(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	body := InjectReloadScript(data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}
