package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/deskpipe/internal/env"
	"github.com/loykin/deskpipe/internal/history"
	"github.com/loykin/deskpipe/internal/logrouter"
	"github.com/loykin/deskpipe/internal/metrics"
	"github.com/loykin/deskpipe/internal/readiness"
	"github.com/loykin/deskpipe/internal/service"
	"github.com/loykin/deskpipe/internal/statestore"
)

// tag used for the supervisor's own lines in the shared session log.
const selfTag = "deskpipe"

// Options wires the Launcher's collaborators. Router is required; the rest
// may be nil (no persistence, no history export).
type Options struct {
	Log    *slog.Logger
	Router *logrouter.Router
	Store  statestore.Store
	Sinks  []history.Sink
	Env    *env.Env
}

// Launcher starts a declared sequence of services, one at a time, gating
// each launch on the previous service's readiness probe. It owns every
// Running handle it creates.
type Launcher struct {
	mu      sync.Mutex
	log     *slog.Logger
	router  *logrouter.Router
	store   statestore.Store
	sinks   []history.Sink
	env     *env.Env
	running map[string]*Running
	order   []string
}

func New(opts Options) *Launcher {
	lg := opts.Log
	if lg == nil {
		lg = slog.Default()
	}
	e := opts.Env
	if e == nil {
		e = env.New()
		e.FromOS()
	}
	rt := opts.Router
	if rt == nil {
		rt = logrouter.New(io.Discard)
	}
	return &Launcher{
		log:     lg,
		router:  rt,
		store:   opts.Store,
		sinks:   opts.Sinks,
		env:     e,
		running: make(map[string]*Running),
	}
}

// Start launches specs in declared order. It returns the handles of every
// service launched so far and a LaunchError when a required service could
// not start; optional failures are logged and skipped. A later service's
// readiness wait begins only after the former's launch call returned and
// its probe passed (or timed out).
func (l *Launcher) Start(ctx context.Context, specs []service.Spec) ([]*Running, error) {
	started := make([]*Running, 0, len(specs))
	for i := range specs {
		spec := specs[i]
		if err := spec.Validate(); err != nil {
			return started, &LaunchError{Service: spec.Name, Reason: ReasonSpawnFailed, Err: err}
		}
		r, err := l.launch(ctx, spec)
		if err != nil {
			if spec.Required {
				return started, err
			}
			l.log.Warn("optional service skipped", "service", spec.Name, "error", err)
			l.router.Linef(selfTag, "WARN optional service %s skipped: %v", spec.Name, err)
			continue
		}
		started = append(started, r)
		if err := l.awaitReady(ctx, spec, r); err != nil {
			if spec.Required {
				return started, err
			}
			l.log.Warn("optional service not ready", "service", spec.Name, "error", err)
		}
	}
	metrics.SetRunningServices(l.countRunning())
	return started, nil
}

// launch starts a single service and attaches its output to the router.
func (l *Launcher) launch(ctx context.Context, spec service.Spec) (*Running, error) {
	exe := spec.Executable()
	if _, err := exec.LookPath(exe); err != nil {
		metrics.IncLaunchFailure(spec.Name, string(ReasonMissingDependency))
		sev := "ERROR"
		if !spec.Required {
			sev = "WARN"
		}
		l.router.Linef(selfTag, "%s tool %q for service %s not found", sev, exe, spec.Name)
		return nil, &LaunchError{Service: spec.Name, Reason: ReasonMissingDependency, Err: err}
	}

	// one active instance per name: tear down any live predecessor first
	l.stopExisting(spec.Name)

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = l.env.Merge(spec.Env)
	setSysProcAttr(cmd)

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Service: spec.Name, Reason: ReasonSpawnFailed, Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, &LaunchError{Service: spec.Name, Reason: ReasonSpawnFailed, Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		_ = outR.Close()
		_ = outW.Close()
		_ = errR.Close()
		_ = errW.Close()
		metrics.IncLaunchFailure(spec.Name, string(ReasonSpawnFailed))
		l.router.Linef(selfTag, "ERROR spawning service %s: %v", spec.Name, err)
		return nil, &LaunchError{Service: spec.Name, Reason: ReasonSpawnFailed, Err: err}
	}
	// the child owns the write ends now
	_ = outW.Close()
	_ = errW.Close()
	l.router.Attach(outR, spec.Name)
	l.router.Attach(errR, spec.Name)

	r := newRunning(spec, cmd)
	l.track(r)

	l.log.Info("service started", "service", spec.Name, "pid", r.PID())
	l.router.Linef(selfTag, "started %s (pid %d)", spec.Name, r.PID())
	metrics.IncLaunch(spec.Name)
	l.recordLaunch(ctx, r)
	go l.waitAndReap(r)
	return r, nil
}

// awaitReady runs the spec's readiness probe, or the fixed startup delay
// when none is configured. A required service that dies while we wait is
// treated as a missing dependency.
func (l *Launcher) awaitReady(ctx context.Context, spec service.Spec, r *Running) error {
	begin := time.Now()
	var err error
	if p, timeout, interval := probeFor(spec); p != nil {
		err = readiness.Wait(ctx, p, timeout, interval)
	} else {
		err = readiness.Sleep(ctx, spec.StartupDelay)
	}
	metrics.ObserveReadinessWait(spec.Name, time.Since(begin).Seconds())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if r.Exited() {
		metrics.IncLaunchFailure(spec.Name, string(ReasonMissingDependency))
		l.router.Linef(selfTag, "ERROR service %s exited during startup", spec.Name)
		return &LaunchError{
			Service: spec.Name,
			Reason:  ReasonMissingDependency,
			Err:     fmt.Errorf("exited during startup: %w", exitError(r)),
		}
	}
	if err != nil {
		// probe timed out but the process is up; mirror the historic
		// fixed-delay behavior and proceed, loudly
		l.log.Warn("readiness probe did not pass", "service", spec.Name, "error", err)
		l.router.Linef(selfTag, "WARN service %s readiness: %v", spec.Name, err)
	}
	return nil
}

func exitError(r *Running) error {
	st := r.Snapshot()
	if st.ExitErr != "" {
		return fmt.Errorf("%s", st.ExitErr)
	}
	return fmt.Errorf("exit status 0")
}

// waitAndReap waits for the service to exit, records the exit in the state
// store and history sinks and surfaces it in the session log. There is no
// restart on crash; a dead service stays dead until the next `up`.
func (l *Launcher) waitAndReap(r *Running) {
	err := r.cmd.Wait()
	r.markExited(err)
	// waitDone opens the gate for a replacement instance; it must stay
	// closed until the exit has reached the store, or the old reaper's
	// RecordExit clobbers the new launch record
	defer close(r.waitDone)
	metrics.IncExit(r.spec.Name)
	metrics.SetRunningServices(l.countRunning())

	if r.isStopping() || err == nil {
		l.log.Info("service exited", "service", r.spec.Name, "pid", r.PID())
		l.router.Linef(selfTag, "service %s exited (pid %d)", r.spec.Name, r.PID())
	} else {
		l.log.Error("service died", "service", r.spec.Name, "pid", r.PID(), "error", err)
		l.router.Linef(selfTag, "ERROR service %s died (pid %d): %v", r.spec.Name, r.PID(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if l.store != nil {
		if serr := l.store.RecordExit(ctx, r.spec.Name, time.Now(), err); serr != nil {
			l.log.Warn("recording exit failed", "service", r.spec.Name, "error", serr)
		}
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	l.emit(ctx, history.Event{Type: history.EventExit, OccurredAt: time.Now().UTC(), Service: r.spec.Name, PID: r.PID(), Detail: detail})
}

func (l *Launcher) recordLaunch(ctx context.Context, r *Running) {
	if l.store != nil {
		rec := statestore.Record{
			Service:   r.spec.Name,
			PID:       r.PID(),
			StartUnix: launchStartUnix(r.PID()),
			StartedAt: r.startedAt,
			Running:   true,
		}
		if err := l.store.RecordLaunch(ctx, rec); err != nil {
			l.log.Warn("recording launch failed", "service", r.spec.Name, "error", err)
		}
	}
	l.emit(ctx, history.Event{Type: history.EventLaunch, OccurredAt: time.Now().UTC(), Service: r.spec.Name, PID: r.PID()})
}

func (l *Launcher) emit(ctx context.Context, e history.Event) {
	for _, s := range l.sinks {
		if err := s.Send(ctx, e); err != nil {
			l.log.Warn("history sink send failed", "type", string(e.Type), "error", err)
		}
	}
}

// launchStartUnix captures the OS start time of a fresh child, persisted
// so a later reset can rule out PID reuse.
func launchStartUnix(pid int) int64 {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

func (l *Launcher) track(r *Running) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.running[r.spec.Name]; !seen {
		l.order = append(l.order, r.spec.Name)
	}
	l.running[r.spec.Name] = r
}

func (l *Launcher) get(name string) *Running {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[name]
}

func (l *Launcher) countRunning() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.running {
		if !r.Exited() {
			n++
		}
	}
	return n
}

// stopExisting enforces the single-active-instance invariant for name.
func (l *Launcher) stopExisting(name string) {
	if prev := l.get(name); prev != nil && !prev.Exited() {
		l.log.Info("stopping previous instance", "service", name, "pid", prev.PID())
		l.stopOne(prev, 3*time.Second)
	}
}

// Stop terminates all running services in reverse launch order: the bridge
// goes first, the display server last, so nothing renders into a vanished
// display.
func (l *Launcher) Stop(wait time.Duration) {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	l.mu.Lock()
	names := make([]string, len(l.order))
	copy(names, l.order)
	l.mu.Unlock()
	for i := len(names) - 1; i >= 0; i-- {
		if r := l.get(names[i]); r != nil && !r.Exited() {
			l.stopOne(r, wait)
		}
	}
	metrics.SetRunningServices(l.countRunning())
}

func (l *Launcher) stopOne(r *Running, wait time.Duration) {
	r.setStopping()
	if err := terminateGroup(r.PID()); err != nil {
		l.log.Warn("terminate failed", "service", r.spec.Name, "pid", r.PID(), "error", err)
	}
	select {
	case <-r.Done():
	case <-time.After(wait):
		_ = killGroup(r.PID())
		select {
		case <-r.Done():
		case <-time.After(500 * time.Millisecond):
			// best-effort
		}
	}
}

// StopService terminates a single named service. Returns false when the
// name is unknown or already stopped.
func (l *Launcher) StopService(name string, wait time.Duration) bool {
	r := l.get(name)
	if r == nil || r.Exited() {
		return false
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	l.stopOne(r, wait)
	metrics.SetRunningServices(l.countRunning())
	return true
}

// Statuses returns snapshots in declared launch order.
func (l *Launcher) Statuses() []Status {
	l.mu.Lock()
	names := make([]string, len(l.order))
	copy(names, l.order)
	l.mu.Unlock()
	out := make([]Status, 0, len(names))
	for _, n := range names {
		if r := l.get(n); r != nil {
			out = append(out, r.Snapshot())
		}
	}
	return out
}

// probeFor maps the spec's probe config to a readiness probe. A nil probe
// means the fixed startup delay applies.
func probeFor(spec service.Spec) (readiness.Probe, time.Duration, time.Duration) {
	pc := spec.Probe
	if pc == nil {
		return nil, 0, 0
	}
	switch pc.Type {
	case "tcp":
		return readiness.TCPProbe{Addr: pc.Target}, pc.Timeout, pc.Interval
	case "file":
		return readiness.FileProbe{Path: pc.Target}, pc.Timeout, pc.Interval
	case "command":
		return readiness.CommandProbe{Command: pc.Target}, pc.Timeout, pc.Interval
	default:
		return nil, 0, 0
	}
}
