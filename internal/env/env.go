package env

import (
	"os"
	"sort"
	"strings"
)

// Env merges the OS environment, supervisor-wide variables (such as the
// DISPLAY target shared by every graphical child) and per-service extras
// into the environment handed to a launched service.
type Env struct {
	base map[string]string // snapshot of the OS environment
	vars map[string]string // supervisor-wide overrides
}

func New() *Env {
	return &Env{base: make(map[string]string), vars: make(map[string]string)}
}

// FromOS caches the current process environment as the base layer.
func (e *Env) FromOS() {
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.base[kv[:i]] = kv[i+1:]
		}
	}
}

// Set adds or replaces a supervisor-wide variable.
func (e *Env) Set(k, v string) {
	if k != "" {
		e.vars[k] = v
	}
}

// SetAll applies "KEY=VALUE" pairs.
func (e *Env) SetAll(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
}

// Get returns the effective value of k (overrides win over the OS base).
func (e *Env) Get(k string) string {
	if v, ok := e.vars[k]; ok {
		return v
	}
	return e.base[k]
}

// Merge returns the full environment for a child: base, then overrides,
// then extra pairs, later layers winning. The result is sorted so output
// is stable across runs.
func (e *Env) Merge(extra []string) []string {
	m := make(map[string]string, len(e.base)+len(e.vars)+len(extra))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.vars {
		m[k] = v
	}
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
