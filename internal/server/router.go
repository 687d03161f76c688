package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/opsgate/internal/auth"
	"github.com/loykin/opsgate/internal/config"
	"github.com/loykin/opsgate/internal/engine"
	"github.com/loykin/opsgate/internal/metrics"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
	tlsconf "github.com/loykin/opsgate/internal/tls"
)

// Router provides embeddable HTTP handlers for the control engine.
// Endpoints:
//   POST {basePath}/action          body: {operator, action}
//   POST {basePath}/text            body: {operator, text}
//   GET  {basePath}/status          host resources + job counts
//   GET  {basePath}/jobs            list tracked jobs
//   POST {basePath}/jobs            body: Job JSON (external lifecycle producer)
//   PATCH  {basePath}/jobs/:id      body: {progress, stage, status}
//   DELETE {basePath}/jobs/:id
//   GET  {basePath}/notifications   notification gate snapshot
//   POST {basePath}/notifications/:type/enable
//   POST {basePath}/notifications/:type/disable
//   POST {basePath}/notifications/reset
//   GET  {basePath}/healthz
//   GET  {basePath}/metrics
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	eng      *engine.Engine
	basePath string
	authMW   *auth.Middleware
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(eng *engine.Engine, basePath string) *Router {
	return &Router{eng: eng, basePath: sanitizeBase(basePath)}
}

// WithAuth installs bearer-token authentication on every endpoint.
func (r *Router) WithAuth(m *auth.Middleware) *Router {
	r.authMW = m
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.authMW != nil {
		g.Use(r.authMW.GinAuth())
	}
	group := g.Group(r.basePath)
	group.POST("/action", r.handleAction)
	group.POST("/text", r.handleText)
	group.GET("/status", r.handleStatus)
	group.GET("/jobs", r.handleListJobs)
	group.POST("/jobs", r.handleRegisterJob)
	group.PATCH("/jobs/:id", r.handleUpdateJob)
	group.DELETE("/jobs/:id", r.handleRemoveJob)
	group.GET("/notifications", r.handleNotifications)
	group.POST("/notifications/:type/enable", r.handleEnable)
	group.POST("/notifications/:type/disable", r.handleDisable)
	group.POST("/notifications/reset", r.handleReset)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server using this router. TLS and
// token authentication are applied when the config enables them.
func NewServer(cfg config.ServerConfig, eng *engine.Engine) (*http.Server, error) {
	r := NewRouter(eng, cfg.BasePath)
	if cfg.Auth.Enabled {
		r.WithAuth(auth.NewMiddleware(cfg.Auth))
	}
	tlsCfg, err := tlsconf.Setup(cfg.TLS)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsCfg != nil {
		go func() { _ = server.ListenAndServeTLS("", "") }()
	} else {
		go func() { _ = server.ListenAndServe() }()
	}
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type actionReq struct {
	Operator string `json:"operator"`
	Action   string `json:"action"`
}

func (r *Router) handleAction(c *gin.Context) {
	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Operator == "" || req.Action == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "operator and action required"})
		return
	}
	screen := r.eng.HandleAction(c.Request.Context(), req.Operator, req.Action)
	writeJSON(c, http.StatusOK, screen)
}

type textReq struct {
	Operator string `json:"operator"`
	Text     string `json:"text"`
}

func (r *Router) handleText(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Operator == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "operator required"})
		return
	}
	screen := r.eng.HandleText(c.Request.Context(), req.Operator, req.Text)
	writeJSON(c, http.StatusOK, screen)
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := gin.H{
		"active_jobs":     r.eng.Registry().ActiveCount(),
		"monitor_running": r.eng.Monitor().Running(),
	}
	sample, err := r.eng.Sample(c.Request.Context())
	if err != nil {
		resp["sample_error"] = err.Error()
	} else {
		resp["resources"] = sample
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleListJobs(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Registry().Snapshot())
}

func (r *Router) handleRegisterJob(c *gin.Context) {
	var job registry.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeName(job.ID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid job id: allowed [A-Za-z0-9._-]"})
		return
	}
	if err := r.eng.Registry().Register(job); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type updateJobReq struct {
	Progress *int   `json:"progress"`
	Stage    string `json:"stage"`
	Status   string `json:"status"`
}

func (r *Router) handleUpdateJob(c *gin.Context) {
	var req updateJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	progress := -1
	if req.Progress != nil {
		progress = *req.Progress
	}
	err := r.eng.Registry().Update(c.Param("id"), progress, req.Stage, registry.JobStatus(req.Status))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRemoveJob(c *gin.Context) {
	r.eng.Registry().Remove(c.Param("id"))
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleNotifications(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Gate().Snapshot())
}

func (r *Router) handleEnable(c *gin.Context) {
	t := notify.EventType(c.Param("type"))
	if err := r.eng.Gate().Enable(t); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleDisable(c *gin.Context) {
	t := notify.EventType(c.Param("type"))
	if err := r.eng.Gate().Disable(t); err != nil {
		var ce *notify.CriticalError
		if errors.As(err, &ce) {
			writeJSON(c, http.StatusForbidden, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleReset(c *gin.Context) {
	if err := r.eng.Gate().Reset(); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"monitor_running": r.eng.Monitor().Running(),
		"active_jobs":     r.eng.Registry().ActiveCount(),
	})
}
