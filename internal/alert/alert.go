package alert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loykin/opsgate/internal/audit"
	"github.com/loykin/opsgate/internal/metrics"
	"github.com/loykin/opsgate/internal/notify"
)

// Severity classifies an alert event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is a single alert trigger. It is created per trigger and discarded
// after the dispatch decision.
type Event struct {
	Kind    Severity
	Message string
	Err     error             // optional error detail
	Context map[string]string // extra key/value lines
}

// DedupKey identifies an event for cooldown purposes.
func (e Event) DedupKey() string { return string(e.Kind) + "-" + e.Message }

// Sink delivers a formatted alert to the chat transport. It may be absent,
// in which case alerts are silently dropped.
type Sink interface {
	Send(ctx context.Context, destination, text string) error
}

// DefaultCooldown is the minimum gap between two alerts with the same
// (kind, message).
const DefaultCooldown = 60 * time.Second

// errDetailLines limits how much of an error detail makes it into the payload.
const errDetailLines = 3

// Dispatcher formats and rate-limits outbound alerts. Delivery is
// at-most-once: sink failures are logged, never retried or queued.
//
// The per-message cooldown map grows with distinct messages over the process
// lifetime. That is acceptable for an operational tool and left unbounded.
type Dispatcher struct {
	mu       sync.Mutex
	lastSent map[string]time.Time

	sink        Sink
	destination string
	gate        *notify.Gate
	cooldown    time.Duration
	hostname    string
	snapshot    func(ctx context.Context) string // optional system snapshot renderer
	auditSinks  []audit.Sink
	now         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSink attaches the chat transport and its destination identifier.
func WithSink(s Sink, destination string) Option {
	return func(d *Dispatcher) {
		d.sink = s
		d.destination = destination
	}
}

// WithGate attaches the notification gate consulted for categorized dispatches.
func WithGate(g *notify.Gate) Option {
	return func(d *Dispatcher) { d.gate = g }
}

// WithCooldown overrides the dedup cooldown window.
func WithCooldown(cd time.Duration) Option {
	return func(d *Dispatcher) {
		if cd > 0 {
			d.cooldown = cd
		}
	}
}

// WithSnapshot attaches a renderer appending a system snapshot to payloads.
func WithSnapshot(fn func(ctx context.Context) string) Option {
	return func(d *Dispatcher) { d.snapshot = fn }
}

// WithAuditSinks attaches best-effort audit destinations.
func WithAuditSinks(sinks ...audit.Sink) Option {
	return func(d *Dispatcher) { d.auditSinks = append([]audit.Sink(nil), sinks...) }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(opts ...Option) *Dispatcher {
	host, _ := os.Hostname()
	d := &Dispatcher{
		lastSent: make(map[string]time.Time),
		cooldown: DefaultCooldown,
		hostname: host,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends an uncategorized alert subject only to the dedup cooldown.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	d.dispatch(ctx, e, "")
}

// DispatchCategory sends an alert gated by the given notification category.
func (d *Dispatcher) DispatchCategory(ctx context.Context, e Event, category notify.EventType) {
	d.dispatch(ctx, e, category)
}

func (d *Dispatcher) dispatch(ctx context.Context, e Event, category notify.EventType) {
	if d.sink == nil {
		slog.Debug("alert sink not configured, dropping alert", "kind", e.Kind, "message", e.Message)
		return
	}
	if category != "" && d.gate != nil && !d.gate.IsEnabled(category) {
		metrics.IncAlertSuppressed(string(e.Kind), "disabled")
		slog.Debug("alert category disabled", "category", category, "message", e.Message)
		return
	}

	key := e.DedupKey()
	now := d.now()
	d.mu.Lock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		metrics.IncAlertSuppressed(string(e.Kind), "cooldown")
		slog.Debug("alert suppressed by cooldown", "key", key)
		return
	}
	// Record before delivery: at-most-once regardless of sink outcome.
	d.lastSent[key] = now
	d.mu.Unlock()

	text := d.format(ctx, e, now)
	if err := d.sink.Send(ctx, d.destination, text); err != nil {
		slog.Error("failed to deliver alert", "kind", e.Kind, "message", e.Message, "error", err)
	} else {
		metrics.IncAlertDispatched(string(e.Kind))
	}
	d.record(e)
}

func (d *Dispatcher) record(e Event) {
	if len(d.auditSinks) == 0 {
		return
	}
	evt := audit.Event{
		Type:       audit.EventAlert,
		OccurredAt: d.now().UTC(),
		Kind:       string(e.Kind),
		Subject:    e.Message,
	}
	if e.Err != nil {
		evt.Detail = e.Err.Error()
	}
	for _, s := range d.auditSinks {
		if err := s.Send(context.Background(), evt); err != nil {
			slog.Debug("audit sink send failed", "error", err)
		}
	}
}

var severityHeaders = map[Severity]string{
	SeverityInfo:     "INFO",
	SeverityWarning:  "WARNING",
	SeverityError:    "ERROR",
	SeverityCritical: "CRITICAL",
}

func (d *Dispatcher) format(ctx context.Context, e Event, now time.Time) string {
	var b strings.Builder
	header := severityHeaders[e.Kind]
	if header == "" {
		header = strings.ToUpper(string(e.Kind))
	}
	fmt.Fprintf(&b, "[%s] %s\n", header, e.Message)
	fmt.Fprintf(&b, "time: %s\n", now.Format(time.RFC3339))
	if d.hostname != "" {
		fmt.Fprintf(&b, "host: %s\n", d.hostname)
	}
	if e.Err != nil {
		for i, line := range strings.Split(e.Err.Error(), "\n") {
			if i >= errDetailLines {
				break
			}
			fmt.Fprintf(&b, "error: %s\n", line)
		}
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, e.Context[k])
		}
	}
	if d.snapshot != nil {
		if snap := d.snapshot(ctx); snap != "" {
			b.WriteString(snap)
			if !strings.HasSuffix(snap, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
