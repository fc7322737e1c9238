package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/deskpipe"
	"github.com/loykin/deskpipe/internal/logger"
	"github.com/loykin/deskpipe/internal/reset"
	"github.com/loykin/deskpipe/internal/statestore/factory"
)

type command struct {
	global *GlobalFlags
}

func (c command) loadConfig(f UpFlags) (*deskpipe.Config, error) {
	cfg, err := deskpipe.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return nil, err
	}
	// flag overrides win over the config file
	if f.Display != "" {
		cfg.Display = f.Display
	}
	if f.Geometry != "" {
		cfg.Geometry = f.Geometry
	}
	if f.VNCPort != 0 {
		cfg.VNCPort = f.VNCPort
	}
	if f.ListenPort != 0 {
		cfg.ListenPort = f.ListenPort
	}
	if f.WebRoot != "" {
		cfg.WebRoot = f.WebRoot
	}
	if f.LogDir != "" {
		cfg.Log.Dir = f.LogDir
	}
	return cfg, nil
}

// Up resets prior instances, launches the pipeline and stays resident
// until terminated. With --detach it re-executes itself in the background
// and exits 0 while the services keep running.
func (c command) Up(f UpFlags) error {
	if f.Detach && os.Getppid() != 1 {
		return daemonize()
	}

	cfg, err := c.loadConfig(f)
	if err != nil {
		return err
	}
	log := logger.NewLogger(os.Stdout, c.global.LogLevel, true)

	if err := deskpipe.RegisterMetricsDefault(); err != nil {
		return err
	}

	sess, err := deskpipe.NewSession(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n := sess.Reset(ctx); n > 0 {
		log.Info("terminated prior instances", "count", n)
	}

	if err := sess.Launch(ctx); err != nil {
		sess.Stop(3 * time.Second)
		return err
	}
	log.Info("pipeline running",
		"display", cfg.EffectiveDisplay(),
		"url", fmt.Sprintf("http://localhost:%d/vnc.html", effectiveListenPort(cfg)))

	if cfg.Server.Listen != "" {
		srv, err := deskpipe.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, sess)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		log.Info("status API listening", "addr", cfg.Server.Listen)
	}
	if cfg.Metrics.Listen != "" {
		srv, err := deskpipe.ServeMetrics(cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		log.Info("metrics listening", "addr", cfg.Metrics.Listen)
	}

	// stay resident until externally terminated
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	sess.Stop(5 * time.Second)
	return nil
}

func effectiveListenPort(cfg *deskpipe.Config) int {
	if cfg.ListenPort != 0 {
		return cfg.ListenPort
	}
	return 6080
}

// Down terminates instances recorded in the state store without launching
// anything new.
func (c command) Down(f DownFlags) error {
	cfg, err := deskpipe.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return err
	}
	log := logger.NewLogger(os.Stdout, c.global.LogLevel, true)
	if cfg.State.DSN == "" {
		return fmt.Errorf("no state store configured")
	}
	store, err := factory.NewFromDSN(cfg.State.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	coord := reset.New(store, log)
	if f.Grace > 0 {
		coord.Grace = f.Grace
	}
	n := coord.Reset(context.Background(), nil)
	log.Info("down complete", "terminated", n)
	return nil
}

// Status prints the persisted service records with a live PID check.
func (c command) Status() error {
	cfg, err := deskpipe.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.State.DSN == "" {
		return fmt.Errorf("no state store configured")
	}
	store, err := factory.NewFromDSN(cfg.State.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	recs, err := store.Active(ctx)
	if err != nil {
		return err
	}

	type row struct {
		Service   string    `json:"service"`
		PID       int       `json:"pid"`
		Alive     bool      `json:"alive"`
		StartedAt time.Time `json:"started_at"`
	}
	rows := make([]row, 0, len(recs))
	for _, r := range recs {
		alive := false
		if p, err := gopsproc.NewProcess(int32(r.PID)); err == nil {
			alive, _ = p.IsRunning()
		}
		rows = append(rows, row{Service: r.Service, PID: r.PID, Alive: alive, StartedAt: r.StartedAt})
	}
	printJSON(rows)
	return nil
}
