package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/opsgate/internal/alert"
	"github.com/loykin/opsgate/internal/metrics"
	"github.com/loykin/opsgate/internal/notify"
	"github.com/loykin/opsgate/internal/registry"
	"github.com/loykin/opsgate/internal/sysinfo"
)

// Defaults for the periodic checks.
const (
	DefaultInterval      = 30 * time.Second
	DefaultAlertCooldown = 5 * time.Minute
	DefaultMemThreshold  = 85.0 // percent
	DefaultCPUThreshold  = 90.0 // percent
	DefaultDualJobCount  = 2
)

// Config tunes the monitor. Zero values fall back to the defaults above.
type Config struct {
	Interval      time.Duration `toml:"interval" mapstructure:"interval"`
	AlertCooldown time.Duration `toml:"alert_cooldown" mapstructure:"alert_cooldown"`
	MemThreshold  float64       `toml:"mem_threshold" mapstructure:"mem_threshold"`
	CPUThreshold  float64       `toml:"cpu_threshold" mapstructure:"cpu_threshold"`
	DualJobCount  int           `toml:"dual_job_count" mapstructure:"dual_job_count"`
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = DefaultAlertCooldown
	}
	if c.MemThreshold <= 0 {
		c.MemThreshold = DefaultMemThreshold
	}
	if c.CPUThreshold <= 0 {
		c.CPUThreshold = DefaultCPUThreshold
	}
	if c.DualJobCount <= 0 {
		c.DualJobCount = DefaultDualJobCount
	}
}

// Monitor periodically samples host resources and the job registry and
// dispatches warning alerts when thresholds are crossed. Each alert class
// has its own cooldown, tracked separately from the dispatcher's per-message
// cooldown. Two gates on purpose: the monitor limits how often a class may
// fire at all, the dispatcher dedups identical messages.
type Monitor struct {
	cfg     Config
	sampler sysinfo.Sampler
	reg     *registry.Registry
	disp    *alert.Dispatcher
	now     func() time.Time

	mu            sync.Mutex
	stop          chan struct{}
	wg            sync.WaitGroup
	lastProcAlert time.Time
	lastResAlert  time.Time

	ticking atomic.Bool // tick in flight; overlapping ticks are skipped
}

func New(cfg Config, sampler sysinfo.Sampler, reg *registry.Registry, disp *alert.Dispatcher) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		reg:     reg,
		disp:    disp,
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests).
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Start launches the periodic check loop. Calling Start while running logs
// a warning and is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		slog.Warn("resource monitor already running")
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.tick(context.Background())
			case <-stop:
				return
			}
		}
	}()
	slog.Info("resource monitor started", "interval", m.cfg.Interval)
}

// Stop halts the loop and waits for the in-flight tick, if any. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	m.wg.Wait()
	slog.Info("resource monitor stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// tick serializes check rounds: alert delivery involves network I/O with
// unbounded latency, so a round that outlives the interval causes the next
// tick to be skipped rather than run concurrently.
func (m *Monitor) tick(ctx context.Context) {
	if !m.ticking.CompareAndSwap(false, true) {
		slog.Debug("previous monitor tick still in flight, skipping")
		return
	}
	defer m.ticking.Store(false)
	m.CheckOnce(ctx)
}

// CheckOnce runs the process and resource checks a single time.
func (m *Monitor) CheckOnce(ctx context.Context) {
	metrics.IncMonitorTick()
	m.checkProcesses(ctx)
	m.checkResources(ctx)
}

func (m *Monitor) checkProcesses(ctx context.Context) {
	active := m.reg.Active()
	if len(active) < m.cfg.DualJobCount {
		return
	}
	now := m.now()
	m.mu.Lock()
	if now.Sub(m.lastProcAlert) < m.cfg.AlertCooldown {
		m.mu.Unlock()
		return
	}
	m.lastProcAlert = now
	m.mu.Unlock()

	var lines []string
	for _, j := range active {
		lines = append(lines, fmt.Sprintf("%s (%d%%, %s)", j.ID, j.Progress, j.Stage))
	}
	m.disp.DispatchCategory(ctx, alert.Event{
		Kind:    alert.SeverityWarning,
		Message: fmt.Sprintf("%d jobs active simultaneously", len(active)),
		Context: map[string]string{"jobs": strings.Join(lines, ", ")},
	}, notify.EventDualProcesses)
}

func (m *Monitor) checkResources(ctx context.Context) {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		slog.Warn("resource sample failed", "error", err)
		return
	}
	if sample.MemoryPercent <= m.cfg.MemThreshold && sample.CPUPercent <= m.cfg.CPUThreshold {
		return
	}
	now := m.now()
	m.mu.Lock()
	if now.Sub(m.lastResAlert) < m.cfg.AlertCooldown {
		m.mu.Unlock()
		return
	}
	m.lastResAlert = now
	m.mu.Unlock()

	m.disp.DispatchCategory(ctx, alert.Event{
		Kind:    alert.SeverityWarning,
		Message: "high resource usage",
		Context: map[string]string{
			"cpu":    fmt.Sprintf("%.1f%%", sample.CPUPercent),
			"memory": fmt.Sprintf("%.1f%% (%d/%d MB)", sample.MemoryPercent, sample.MemoryUsedMB, sample.MemoryTotalMB),
			"jobs":   fmt.Sprintf("%d", m.reg.ActiveCount()),
		},
	}, notify.EventHighResources)
}
