package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/deskpipe/internal/pipeline"
)

// Router provides embeddable HTTP handlers for observing and stopping the
// running pipeline.
// Endpoints:
//
//	GET  {basePath}/status          all service statuses, launch order
//	GET  {basePath}/status?name=x   one service
//	POST {basePath}/stop            query: name=...&wait=3s (no name: all)
//	GET  {basePath}/healthz
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	launcher *pipeline.Launcher
	basePath string
}

func NewRouter(l *pipeline.Launcher, basePath string) *Router {
	return &Router{launcher: l, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/stop", r.handleStop)
	group.GET("/healthz", r.handleHealthz)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, l *pipeline.Launcher) (*http.Server, error) {
	r := NewRouter(l, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	sts := r.launcher.Statuses()
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusOK, sts)
		return
	}
	for _, st := range sts {
		if st.Service == name {
			c.JSON(http.StatusOK, st)
			return
		}
	}
	c.JSON(http.StatusNotFound, errorResp{Error: "unknown service: " + name})
}

func (r *Router) handleStop(c *gin.Context) {
	wait := 3 * time.Second
	if w := c.Query("wait"); w != "" {
		d, err := time.ParseDuration(w)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid wait: " + err.Error()})
			return
		}
		wait = d
	}
	name := c.Query("name")
	if name == "" {
		r.launcher.Stop(wait)
		c.JSON(http.StatusOK, okResp{OK: true})
		return
	}
	if !r.launcher.StopService(name, wait) {
		c.JSON(http.StatusNotFound, errorResp{Error: "not running: " + name})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimSuffix(bp, "/")
}
