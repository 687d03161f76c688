package opsgate

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/opsgate/internal/alert"
	cfg "github.com/loykin/opsgate/internal/config"
	"github.com/loykin/opsgate/internal/engine"
	"github.com/loykin/opsgate/internal/metrics"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
	"github.com/loykin/opsgate/internal/router"
	iapi "github.com/loykin/opsgate/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type ServerConfig = cfg.ServerConfig

type Job = registry.Job

type JobStatus = registry.JobStatus

type AlertEvent = alert.Event

type Screen = router.Screen

type EventType = notify.EventType

// Engine is a thin facade over internal/engine.Engine.
// It provides a stable public API for embedding.

type Engine struct{ inner *engine.Engine }

type Option = engine.Option

// Re-exported engine options.
var (
	WithSampler    = engine.WithSampler
	WithAlertSink  = engine.WithAlertSink
	WithDocker     = engine.WithDocker
	WithRunner     = engine.WithRunner
	WithStore      = engine.WithStore
	WithAuditSinks = engine.WithAuditSinks
)

func New(c *Config, opts ...Option) (*Engine, error) {
	inner, err := engine.New(c, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner}, nil
}

func (e *Engine) Start() { e.inner.Start() }
func (e *Engine) Stop()  { e.inner.Stop() }

func (e *Engine) HandleAction(ctx context.Context, operator, raw string) Screen {
	return e.inner.HandleAction(ctx, operator, raw)
}

func (e *Engine) HandleText(ctx context.Context, operator, text string) Screen {
	return e.inner.HandleText(ctx, operator, text)
}

func (e *Engine) Alert(ctx context.Context, ev AlertEvent, category EventType) {
	e.inner.Alert(ctx, ev, category)
}

func (e *Engine) Registry() *registry.Registry { return e.inner.Registry() }

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the control API using the
// given engine. Auth and TLS follow the server config.
func NewHTTPServer(server cfg.ServerConfig, e *Engine) (*http.Server, error) {
	return iapi.NewServer(server, e.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
