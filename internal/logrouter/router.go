package logrouter

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// Router merges labeled output streams from all pipeline services into a
// single shared sink. Every write emits one complete line under a mutex,
// so lines from concurrently writing services never interleave.
type Router struct {
	mu   sync.Mutex
	sink io.Writer
	wg   sync.WaitGroup
	now  func() time.Time
}

const timeLayout = "2006-01-02 15:04:05.000"

// New creates a Router writing to sink. The sink is owned by the caller;
// the Router never closes it.
func New(sink io.Writer) *Router {
	return &Router{sink: sink, now: time.Now}
}

// Attach consumes r line by line until EOF, tagging each line with prefix.
// It returns immediately; draining happens on a goroutine tracked by Wait.
// When r is an io.Closer it is closed after the drain, so pipe read ends
// do not accumulate across relaunches.
func (rt *Router) Attach(r io.Reader, prefix string) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		sc := bufio.NewScanner(r)
		// long lines happen (x11vnc banners); raise the cap well past default
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			rt.Line(prefix, sc.Text())
		}
		if err := sc.Err(); err != nil && err != io.ErrClosedPipe {
			rt.Line(prefix, fmt.Sprintf("log stream error: %v", err))
		}
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}()
}

// Line writes a single tagged line to the sink.
func (rt *Router) Line(prefix, line string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, _ = fmt.Fprintf(rt.sink, "%s [%s] %s\n", rt.now().Format(timeLayout), prefix, line)
}

// Linef is Line with formatting.
func (rt *Router) Linef(prefix, format string, args ...any) {
	rt.Line(prefix, fmt.Sprintf(format, args...))
}

// Wait blocks until all attached streams have drained. Call after the
// producing processes have exited and their write ends closed.
func (rt *Router) Wait() { rt.wg.Wait() }
