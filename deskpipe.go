// Package deskpipe launches and supervises a fixed pipeline of dependent
// background services that together expose a desktop session to a browser:
// a virtual display server, an optional window manager, a VNC server and a
// WebSocket bridge serving the noVNC assets. It can be embedded as a
// library or driven by the deskpipe CLI.
package deskpipe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/deskpipe/internal/config"
	"github.com/loykin/deskpipe/internal/env"
	"github.com/loykin/deskpipe/internal/history"
	hfactory "github.com/loykin/deskpipe/internal/history/factory"
	"github.com/loykin/deskpipe/internal/logrouter"
	"github.com/loykin/deskpipe/internal/metrics"
	"github.com/loykin/deskpipe/internal/pipeline"
	"github.com/loykin/deskpipe/internal/reset"
	"github.com/loykin/deskpipe/internal/server"
	"github.com/loykin/deskpipe/internal/service"
	"github.com/loykin/deskpipe/internal/statestore"
	sfactory "github.com/loykin/deskpipe/internal/statestore/factory"
	"github.com/loykin/deskpipe/internal/webroot"
)

// Re-exported types for embedders.
type (
	Spec        = service.Spec
	ProbeConfig = service.ProbeConfig
	Status      = pipeline.Status
	Config      = config.Config
	HistorySink = history.Sink
	LaunchError = pipeline.LaunchError
)

// IsMissingDependency reports whether err aborted the pipeline because a
// required external tool was absent.
func IsMissingDependency(err error) bool { return pipeline.IsMissingDependency(err) }

// LoadConfig parses a TOML config file; an empty path yields defaults.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// DefaultPipeline returns the built-in remote desktop pipeline.
func DefaultPipeline(d service.Defaults) []Spec { return service.DefaultPipeline(d) }

// Session owns everything one pipeline run needs: the shared session log,
// the state store, optional history sinks and the launcher itself.
type Session struct {
	cfg      *config.Config
	log      *slog.Logger
	sinkFile io.WriteCloser
	router   *logrouter.Router
	store    statestore.Store
	sinks    []history.Sink
	launcher *pipeline.Launcher
	coord    *reset.Coordinator
}

// NewSession wires a Session from config. log may be nil (slog default).
func NewSession(cfg *config.Config, log *slog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = slog.Default()
	}

	sinkFile, err := cfg.Log.Writer()
	if err != nil {
		return nil, err
	}
	router := logrouter.New(sinkFile)

	var store statestore.Store
	if cfg.State.DSN != "" {
		store, err = sfactory.NewFromDSN(cfg.State.DSN)
		if err != nil {
			_ = sinkFile.Close()
			return nil, err
		}
		if err := store.EnsureSchema(context.Background()); err != nil {
			_ = store.Close()
			_ = sinkFile.Close()
			return nil, err
		}
	}

	var sinks []history.Sink
	if cfg.History.DSN != "" {
		sink, err := hfactory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			// analytics export is optional; a broken sink must not block
			// the session
			log.Warn("history sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	e := env.New()
	e.FromOS()
	e.SetAll(cfg.Env)
	e.Set("DISPLAY", cfg.EffectiveDisplay())

	s := &Session{
		cfg:      cfg,
		log:      log,
		sinkFile: sinkFile,
		router:   router,
		store:    store,
		sinks:    sinks,
		coord:    reset.New(store, log),
	}
	s.launcher = pipeline.New(pipeline.Options{
		Log:    log,
		Router: router,
		Store:  store,
		Sinks:  sinks,
		Env:    e,
	})
	return s, nil
}

// Reset terminates leftover instances of this session's services from a
// previous run. Best-effort and idempotent.
func (s *Session) Reset(ctx context.Context) int {
	names := service.Names(s.cfg.Specs())
	n := s.coord.Reset(ctx, names)
	if n > 0 {
		now := time.Now().UTC()
		for _, sink := range s.sinks {
			_ = sink.Send(ctx, history.Event{Type: history.EventReset, OccurredAt: now})
		}
	}
	return n
}

// Launch runs the pipeline: web root check, then ordered service starts.
// Returns a LaunchError when a required service cannot start.
func (s *Session) Launch(ctx context.Context) error {
	if wr := s.cfg.EffectiveWebRoot(); !webroot.Check(wr) {
		s.log.Warn("web root missing, UI assets will not be served", "path", wr)
		s.router.Linef("deskpipe", "WARN web root %s missing, UI assets will not be served", wr)
	}
	_, err := s.launcher.Start(ctx, s.cfg.Specs())
	return err
}

// Launcher exposes the underlying launcher for embedding (HTTP router,
// custom teardown).
func (s *Session) Launcher() *pipeline.Launcher { return s.launcher }

// Statuses returns snapshots of all services in launch order.
func (s *Session) Statuses() []Status { return s.launcher.Statuses() }

// Stop tears the pipeline down in reverse launch order.
func (s *Session) Stop(wait time.Duration) { s.launcher.Stop(wait) }

// Close releases the session log and state store. Call after Stop.
func (s *Session) Close() error {
	var first error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			first = err
		}
	}
	if err := s.sinkFile.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// NewHTTPServer starts the status API on addr for this session.
func NewHTTPServer(addr, basePath string, s *Session) (*http.Server, error) {
	return server.NewServer(addr, basePath, s.launcher)
}

// RegisterMetrics registers pipeline metrics with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers with the default Prometheus registerer.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics serves Prometheus metrics on addr at /metrics.
func ServeMetrics(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}
