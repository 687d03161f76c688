package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/opsgate/internal/auth"
	"github.com/loykin/opsgate/internal/engine"
	"github.com/loykin/opsgate/internal/sysinfo"
)

type staticSampler struct{}

func (staticSampler) Sample(_ context.Context) (sysinfo.Sample, error) {
	return sysinfo.Sample{CPUPercent: 5, MemoryPercent: 10}, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	eng, err := engine.New(nil, engine.WithSampler(staticSampler{}))
	require.NoError(t, err)
	return NewRouter(eng, "/ops").Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestActionEndpoint(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/ops/action",
		map[string]string{"operator": "alice", "action": "main:menu"})
	require.Equal(t, http.StatusOK, w.Code)

	var screen struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &screen))
	assert.Equal(t, "main:menu", screen.ID)
	assert.NotEmpty(t, screen.Title)
}

func TestActionEndpointValidation(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/ops/action", map[string]string{"operator": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/ops/action", bytes.NewBufferString("{not json"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTextEndpoint(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/ops/text",
		map[string]string{"operator": "alice", "text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/ops/text", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobLifecycleEndpoints(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/ops/jobs",
		map[string]any{"id": "job-1", "status": "processing"})
	require.Equal(t, http.StatusOK, w.Code)

	// duplicate registration rejected
	w = doJSON(t, h, http.MethodPost, "/ops/jobs", map[string]any{"id": "job-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// ids are restricted to a safe charset
	w = doJSON(t, h, http.MethodPost, "/ops/jobs", map[string]any{"id": "../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/ops/jobs/job-1",
		map[string]any{"progress": 55, "stage": "encode"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/ops/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []struct {
		ID       string `json:"id"`
		Progress int    `json:"progress"`
		Stage    string `json:"stage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, 55, jobs[0].Progress)
	assert.Equal(t, "encode", jobs[0].Stage)

	w = doJSON(t, h, http.MethodPatch, "/ops/jobs/missing", map[string]any{"progress": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/ops/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/ops/jobs", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Empty(t, jobs)
}

func TestNotificationEndpoints(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodPost, "/ops/notifications/video_done/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/ops/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap["video_done"])

	// critical types cannot be disabled over the API
	w = doJSON(t, h, http.MethodPost, "/ops/notifications/server_crashed/disable", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h, http.MethodPost, "/ops/notifications/video_done/enable", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/ops/notifications/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/ops/notifications", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap["video_done"])
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodGet, "/ops/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		ActiveJobs     int  `json:"active_jobs"`
		MonitorRunning bool `json:"monitor_running"`
		Resources      struct {
			CPUPercent    float64 `json:"cpu_percent"`
			MemoryPercent float64 `json:"memory_percent"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 0, status.ActiveJobs)
	assert.False(t, status.MonitorRunning)
	assert.Equal(t, 5.0, status.Resources.CPUPercent)
	assert.Equal(t, 10.0, status.Resources.MemoryPercent)
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, http.MethodGet, "/ops/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		MonitorRunning bool `json:"monitor_running"`
		ActiveJobs     int  `json:"active_jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.False(t, health.MonitorRunning)
	assert.Equal(t, 0, health.ActiveJobs)
}

func TestHandlerWithAuth(t *testing.T) {
	eng, err := engine.New(nil, engine.WithSampler(staticSampler{}))
	require.NoError(t, err)
	h := NewRouter(eng, "/ops").
		WithAuth(auth.NewMiddleware(auth.Config{Enabled: true, Tokens: []string{"tok"}})).
		Handler()

	w := doJSON(t, h, http.MethodGet, "/ops/healthz", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/ops/healthz", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "", sanitizeBase(""))
	assert.Equal(t, "/ops", sanitizeBase("ops"))
	assert.Equal(t, "/ops", sanitizeBase("/ops/"))
}

func TestIsSafeName(t *testing.T) {
	assert.True(t, isSafeName("job-1"))
	assert.True(t, isSafeName("video_42.final"))
	assert.False(t, isSafeName(""))
	assert.False(t, isSafeName("a/b"))
	assert.False(t, isSafeName("a b"))
}
