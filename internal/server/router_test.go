package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/deskpipe/internal/pipeline"
	"github.com/loykin/deskpipe/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRunningLauncher(t *testing.T) *pipeline.Launcher {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix sleep")
	}
	l := pipeline.New(pipeline.Options{})
	_, err := l.Start(context.Background(), []service.Spec{
		{Name: "xvfb", Command: "sleep 30", Required: true},
		{Name: "x11vnc", Command: "sleep 30", Required: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Stop(time.Second) })
	return l
}

func TestStatusAll(t *testing.T) {
	h := NewRouter(newRunningLauncher(t), "").Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sts []pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sts))
	require.Len(t, sts, 2)
	assert.Equal(t, "xvfb", sts[0].Service)
	assert.Equal(t, "x11vnc", sts[1].Service)
	assert.True(t, sts[0].Running)
}

func TestStatusByName(t *testing.T) {
	h := NewRouter(newRunningLauncher(t), "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?name=x11vnc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "x11vnc", st.Service)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?name=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopByName(t *testing.T) {
	l := newRunningLauncher(t)
	h := NewRouter(l, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop?name=x11vnc&wait=2s", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	for _, st := range l.Statuses() {
		if st.Service == "x11vnc" {
			assert.False(t, st.Running)
		}
		if st.Service == "xvfb" {
			assert.True(t, st.Running)
		}
	}

	// stopping an already stopped service reports not running
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop?name=x11vnc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopAll(t *testing.T) {
	l := newRunningLauncher(t)
	h := NewRouter(l, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop?wait=2s", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, st := range l.Statuses() {
		assert.False(t, st.Running)
	}
}

func TestStopRejectsBadWait(t *testing.T) {
	h := NewRouter(pipeline.New(pipeline.Options{}), "").Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop?wait=banana", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasePathMounting(t *testing.T) {
	h := NewRouter(pipeline.New(pipeline.Options{}), "api/v1").Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "", sanitizeBase(""))
	assert.Equal(t, "/api", sanitizeBase("api"))
	assert.Equal(t, "/api", sanitizeBase("/api/"))
}
