package reset

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/deskpipe/internal/metrics"
	"github.com/loykin/deskpipe/internal/statestore"
)

// Coordinator terminates leftover service instances from a previous run
// before a new pipeline is launched. The primary mechanism is the PIDs the
// previous run persisted in the state store, each verified against the
// recorded process start time so a reused PID is never signaled. When no
// store is available it falls back to a process-table scan matching the
// executable name or command line.
//
// Everything here is best-effort: individual failures are logged and
// ignored, and running it with nothing to clean up is a no-op.
type Coordinator struct {
	Store statestore.Store // may be nil
	Log   *slog.Logger
	Grace time.Duration // SIGTERM to SIGKILL escalation window
}

func New(store statestore.Store, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{Store: store, Log: log, Grace: 3 * time.Second}
}

// Reset terminates prior instances of the named services and returns how
// many processes it signaled. It never returns an error.
func (c *Coordinator) Reset(ctx context.Context, names []string) int {
	victims := c.fromStore(ctx, names)
	if len(victims) == 0 {
		victims = c.fromScan(ctx, names)
	}
	if len(victims) == 0 {
		return 0
	}
	terminated := c.terminate(ctx, victims)
	for range terminated {
		metrics.IncPriorTerminated()
	}
	return len(terminated)
}

type victim struct {
	service string
	proc    *gopsproc.Process
}

// fromStore resolves victims from persisted records, dropping any PID whose
// start time no longer matches the record.
func (c *Coordinator) fromStore(ctx context.Context, names []string) []victim {
	if c.Store == nil {
		return nil
	}
	recs, err := c.Store.Active(ctx)
	if err != nil {
		c.Log.Warn("reset: reading prior state failed", "error", err)
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []victim
	for _, r := range recs {
		if len(wanted) > 0 && !wanted[r.Service] {
			continue
		}
		p, err := gopsproc.NewProcessWithContext(ctx, int32(r.PID))
		if err != nil {
			// PID is gone; clear the stale record
			_ = c.Store.RecordExit(ctx, r.Service, time.Now(), nil)
			continue
		}
		if r.StartUnix > 0 {
			if cur := procStartUnix(p); cur > 0 && cur != r.StartUnix {
				c.Log.Debug("reset: pid reused, skipping", "service", r.Service, "pid", r.PID)
				_ = c.Store.RecordExit(ctx, r.Service, time.Now(), nil)
				continue
			}
		}
		out = append(out, victim{service: r.Service, proc: p})
	}
	return out
}

// fromScan walks the process table and matches executables or command lines
// against the target names. Used when no persisted state exists.
func (c *Coordinator) fromScan(ctx context.Context, names []string) []victim {
	if len(names) == 0 {
		return nil
	}
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		c.Log.Warn("reset: process scan failed", "error", err)
		return nil
	}
	self := int32(os.Getpid())
	parent := int32(os.Getppid())
	var out []victim
	for _, p := range procs {
		if p.Pid == self || p.Pid == parent {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)
		for _, target := range names {
			if target == "" {
				continue
			}
			if matches(name, cmdline, target) {
				out = append(out, victim{service: target, proc: p})
				break
			}
		}
	}
	return out
}

// matches checks the process name and the basename of every cmdline token,
// so interpreter-launched services (python3 -m websockify) are found too.
func matches(name, cmdline, target string) bool {
	if name != "" && strings.EqualFold(name, target) {
		return true
	}
	for _, tok := range strings.Fields(cmdline) {
		base := tok
		if i := strings.LastIndexByte(tok, '/'); i >= 0 {
			base = tok[i+1:]
		}
		if strings.EqualFold(base, target) {
			return true
		}
	}
	return false
}

// terminate sends SIGTERM to every victim, waits up to Grace for exits and
// escalates the stragglers to SIGKILL. Returns the victims it signaled.
func (c *Coordinator) terminate(ctx context.Context, victims []victim) []victim {
	var signaled []victim
	for _, v := range victims {
		if err := v.proc.TerminateWithContext(ctx); err != nil {
			c.Log.Warn("reset: terminate failed", "service", v.service, "pid", v.proc.Pid, "error", err)
			continue
		}
		c.Log.Info("reset: terminated prior instance", "service", v.service, "pid", v.proc.Pid)
		signaled = append(signaled, v)
	}
	if len(signaled) == 0 {
		return nil
	}
	deadline := time.Now().Add(c.Grace)
	for time.Now().Before(deadline) {
		if !anyRunning(ctx, signaled) {
			return signaled
		}
		time.Sleep(100 * time.Millisecond)
	}
	for _, v := range signaled {
		if running, _ := v.proc.IsRunningWithContext(ctx); running {
			if err := v.proc.KillWithContext(ctx); err != nil {
				c.Log.Warn("reset: kill failed", "service", v.service, "pid", v.proc.Pid, "error", err)
			}
		}
	}
	return signaled
}

func anyRunning(ctx context.Context, victims []victim) bool {
	for _, v := range victims {
		if running, _ := v.proc.IsRunningWithContext(ctx); running {
			return true
		}
	}
	return false
}
