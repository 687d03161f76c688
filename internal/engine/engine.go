// Package engine wires the sampler, registry, notification gate, alert
// dispatcher, resource monitor, confirmation registry, navigation stack and
// action router into one embeddable unit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/opsgate/internal/alert"
	"github.com/loykin/opsgate/internal/audit"
	"github.com/loykin/opsgate/internal/audit/factory"
	"github.com/loykin/opsgate/internal/command"
	"github.com/loykin/opsgate/internal/config"
	"github.com/loykin/opsgate/internal/confirm"
	"github.com/loykin/opsgate/internal/dockerops"
	"github.com/loykin/opsgate/internal/monitor"
	"github.com/loykin/opsgate/internal/navigation"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
	"github.com/loykin/opsgate/internal/router"
	"github.com/loykin/opsgate/internal/store"
	"github.com/loykin/opsgate/internal/sysinfo"
)

// Engine is the operational control and alerting core.
type Engine struct {
	cfg *config.Config

	reg        *registry.Registry
	gate       *notify.Gate
	disp       *alert.Dispatcher
	mon        *monitor.Monitor
	confirms   *confirm.Registry
	nav        *navigation.Stack
	rt         *router.Router
	sampler    sysinfo.Sampler
	st         store.Store
	auditSinks []audit.Sink
}

// Option overrides a default collaborator, mainly for embedding and tests.
type Option func(*deps)

type deps struct {
	sampler sysinfo.Sampler
	sink    alert.Sink
	docker  dockerops.Ops
	runner  command.Runner
	st      store.Store
	audits  []audit.Sink
}

func WithSampler(s sysinfo.Sampler) Option  { return func(d *deps) { d.sampler = s } }
func WithAlertSink(s alert.Sink) Option     { return func(d *deps) { d.sink = s } }
func WithDocker(ops dockerops.Ops) Option   { return func(d *deps) { d.docker = ops } }
func WithRunner(r command.Runner) Option    { return func(d *deps) { d.runner = r } }
func WithStore(s store.Store) Option        { return func(d *deps) { d.st = s } }
func WithAuditSinks(s ...audit.Sink) Option { return func(d *deps) { d.audits = append(d.audits, s...) } }

// New builds an engine from config. Collaborators not overridden by options
// get their default implementations; missing optional infrastructure (alert
// webhook, audit sinks) degrades gracefully.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	var d deps
	for _, opt := range opts {
		opt(&d)
	}

	if d.sampler == nil {
		d.sampler = sysinfo.NewHostSampler(200 * time.Millisecond)
	}
	if d.runner == nil {
		d.runner = command.NewShellRunner()
	}
	if d.docker == nil {
		d.docker = dockerops.NewCLI(d.runner, cfg.Docker.ComposeDir)
	}
	if d.st == nil {
		st, err := store.NewFromConfig(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings store: %w", err)
		}
		d.st = st
	}
	if d.sink == nil && cfg.Alert.WebhookURL != "" {
		d.sink = alert.NewWebhookSink(cfg.Alert.WebhookURL, cfg.Alert.SendTimeout)
	}
	for _, dsn := range cfg.Audit.DSNs {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			slog.Warn("skipping audit sink", "dsn", dsn, "error", err)
			continue
		}
		d.audits = append(d.audits, sink)
	}

	e := &Engine{
		cfg:        cfg,
		reg:        registry.New(),
		confirms:   confirm.NewRegistry(),
		nav:        navigation.NewStack(),
		sampler:    d.sampler,
		st:         d.st,
		auditSinks: d.audits,
	}
	e.gate = notify.NewGate(d.st)
	dispOpts := []alert.Option{
		alert.WithGate(e.gate),
		alert.WithAuditSinks(d.audits...),
		alert.WithSnapshot(e.snapshotLine),
	}
	if d.sink != nil {
		dispOpts = append(dispOpts, alert.WithSink(d.sink, cfg.Alert.Destination))
	}
	if cfg.Alert.Cooldown > 0 {
		dispOpts = append(dispOpts, alert.WithCooldown(cfg.Alert.Cooldown))
	}
	e.disp = alert.NewDispatcher(dispOpts...)
	e.mon = monitor.New(cfg.Monitor, d.sampler, e.reg, e.disp)
	e.rt = router.New(router.Deps{
		Nav:            e.nav,
		Confirms:       e.confirms,
		Registry:       e.reg,
		Gate:           e.gate,
		Sampler:        d.sampler,
		Docker:         d.docker,
		Runner:         d.runner,
		MonitorRunning: e.mon.Running,
		ConfirmTimeout: cfg.Confirm.Timeout,
		AuditSinks:     d.audits,
	})
	return e, nil
}

func (e *Engine) snapshotLine(ctx context.Context) string {
	sample, err := e.sampler.Sample(ctx)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("system: cpu %.1f%%, mem %.1f%%, %d active jobs",
		sample.CPUPercent, sample.MemoryPercent, e.reg.ActiveCount())
}

// Start launches the monitor and the confirmation sweep.
func (e *Engine) Start() {
	e.mon.Start()
	e.confirms.StartSweep(e.cfg.Confirm.SweepInterval)
}

// Stop halts background loops and closes owned resources.
func (e *Engine) Stop() {
	e.mon.Stop()
	e.confirms.StopSweep()
	if e.st != nil {
		_ = e.st.Close()
	}
	for _, s := range e.auditSinks {
		_ = s.Close()
	}
}

// HandleAction routes one operator action string. Operators outside the
// allow-list get an unauthorized screen.
func (e *Engine) HandleAction(ctx context.Context, operator, raw string) router.Screen {
	if !e.cfg.OperatorAllowed(operator) {
		slog.Warn("rejected action from unknown operator", "operator", operator)
		return router.Screen{ID: "unauthorized", Title: "Unauthorized",
			Body: "You are not allowed to use this console.", IsError: true}
	}
	return e.rt.Dispatch(ctx, operator, raw)
}

// HandleText routes free-form operator text (terminal mode or menu refresh).
func (e *Engine) HandleText(ctx context.Context, operator, text string) router.Screen {
	if !e.cfg.OperatorAllowed(operator) {
		slog.Warn("rejected text from unknown operator", "operator", operator)
		return router.Screen{ID: "unauthorized", Title: "Unauthorized",
			Body: "You are not allowed to use this console.", IsError: true}
	}
	return e.rt.HandleText(ctx, operator, text)
}

// Alert dispatches an application-level alert through the engine's
// dispatcher (cooldowns and gating apply).
func (e *Engine) Alert(ctx context.Context, ev alert.Event, category notify.EventType) {
	if category != "" {
		e.disp.DispatchCategory(ctx, ev, category)
		return
	}
	e.disp.Dispatch(ctx, ev)
}

// Sample returns a fresh host resource sample.
func (e *Engine) Sample(ctx context.Context) (sysinfo.Sample, error) {
	return e.sampler.Sample(ctx)
}

// Registry exposes the job registry for external lifecycle producers.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Gate exposes the notification gate.
func (e *Engine) Gate() *notify.Gate { return e.gate }

// Monitor exposes the resource monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.mon }
