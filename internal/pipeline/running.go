package pipeline

import (
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/deskpipe/internal/service"
)

// Running is the live handle of one launched service. It is owned by the
// Launcher; at most one Running per service name is active at a time.
type Running struct {
	mu        sync.Mutex
	spec      service.Spec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stoppedAt time.Time
	exitErr   error
	exited    bool
	stopping  bool
	waitDone  chan struct{} // closed by the waiter after the exit is recorded
}

// Status is a point-in-time snapshot of a Running, safe to serialize.
type Status struct {
	Service   string    `json:"service"`
	PID       int       `json:"pid"`
	Required  bool      `json:"required"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
	ExitErr   string    `json:"exit_error,omitempty"`
}

func newRunning(spec service.Spec, cmd *exec.Cmd) *Running {
	return &Running{
		spec:      spec,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		waitDone:  make(chan struct{}),
	}
}

func (r *Running) Spec() service.Spec { return r.spec }

func (r *Running) PID() int { return r.pid }

// Done is closed once the service has exited and its exit has been
// recorded; only then may a replacement instance touch the state store.
func (r *Running) Done() <-chan struct{} { return r.waitDone }

func (r *Running) markExited(err error) {
	r.mu.Lock()
	r.exited = true
	r.stoppedAt = time.Now()
	r.exitErr = err
	r.mu.Unlock()
}

func (r *Running) setStopping() {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()
}

func (r *Running) isStopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// Exited reports whether the waiter has observed the process exit.
func (r *Running) Exited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exited
}

// Snapshot returns the current status.
func (r *Running) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Service:   r.spec.Name,
		PID:       r.pid,
		Required:  r.spec.Required,
		Running:   !r.exited,
		StartedAt: r.startedAt,
		StoppedAt: r.stoppedAt,
	}
	if r.exitErr != nil {
		st.ExitErr = r.exitErr.Error()
	}
	return st
}
