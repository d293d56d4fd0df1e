// Package app implements the base-station web server: the live viewer page,
// the vehicle list and control API, and the /ws router endpoint.
package app

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"RoverLink/internal/model"
	"RoverLink/internal/util"
)

//go:embed templates/*.html
var templates embed.FS

// Snapshot is the health summary served at /healthz.
type Snapshot struct {
	Status     string   `json:"status"`
	UptimeSec  int64    `json:"uptime_sec"`
	Peers      int      `json:"peers"`
	Dashboards int      `json:"dashboards"`
	Vehicles   []string `json:"vehicles"`
	Forwarded  uint64   `json:"forwarded"`
	Dropped    uint64   `json:"dropped"`
	Frames     uint64   `json:"frames_relayed"`
	Throttled  uint64   `json:"frames_throttled"`
}

// Backend is the router side the web layer talks to.
type Backend interface {
	Vehicles() []string
	// InjectControl routes c as if a dashboard had sent it and returns the
	// vehicle id it went to.
	InjectControl(ctx context.Context, c model.Control) (string, error)
	Snapshot() Snapshot
}

// Options configures the web layer.
type Options struct {
	Title            string
	ControlRate      float64 // /api/control requests per second, 0 for unlimited
	ControlBurst     int
	DisableDashboard bool
}

// App holds templates, routes and the HTTP server.
type App struct {
	Tmpl   *template.Template
	Mux    *http.ServeMux
	Server *http.Server

	backend Backend
	ws      http.Handler
	opts    Options
	limiter *rate.Limiter
	log     *logrus.Entry

	mu      sync.Mutex
	stopped bool
}

// NewApp parses the embedded templates and registers routes. ws serves /ws.
func NewApp(b Backend, ws http.Handler, opts Options) (*App, error) {
	if b == nil {
		return nil, errors.New("[app] nil backend")
	}
	if opts.Title == "" {
		opts.Title = "RoverLink"
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("[app] failed to load templates: %w", err)
	}

	a := &App{
		Tmpl:    tmpl,
		Mux:     http.NewServeMux(),
		backend: b,
		ws:      ws,
		opts:    opts,
		log:     util.Component("app"),
	}
	if opts.ControlRate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(opts.ControlRate), max(opts.ControlBurst, 1))
	}
	a.registerRoutes()
	return a, nil
}

// Handler is the routed mux wrapped in request logging.
func (a *App) Handler() http.Handler { return a.logRequests(a.Mux) }

func normalizeAddr(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return addr
}

// Start launches the web server and blocks until stopped.
func (a *App) Start(addr string) error {
	if addr == "" {
		a.log.Warn("web server not started (empty address)")
		return nil
	}
	addr = normalizeAddr(addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.Server = srv
	a.mu.Unlock()

	a.log.WithField("addr", addr).Info("web server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("[app] HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the web server. A later Start returns at once.
func (a *App) Stop() {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.stopped = true
	srv := a.Server
	a.mu.Unlock()
	if srv == nil {
		return
	}
	a.log.Info("shutting down web server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("HTTP server shutdown error")
		return
	}
	a.log.Info("web server stopped cleanly")
}
