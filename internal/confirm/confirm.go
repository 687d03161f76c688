package confirm

import (
	"sync"
	"time"

	"github.com/loykin/opsgate/internal/metrics"
)

// DefaultTimeout is the confirmation window applied when none is given.
const DefaultTimeout = 30 * time.Second

// Ticket is a pending two-phase confirmation. Validity is a pure function of
// (now, ticket): an expired ticket is inert even before the sweep removes it.
type Ticket struct {
	Operator  string
	Action    string
	Data      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the ticket window has passed at the given time.
func (t Ticket) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Key derives the registry key. Two different data values for the same
// action are independent tickets.
func Key(operator, action, data string) string {
	k := operator + ":" + action
	if data != "" {
		k += ":" + data
	}
	return k
}

// Registry stores pending confirmations. Expiry is lazy on every lookup,
// backed by a best-effort background sweep; deletion is the single source of
// truth when a confirm races the sweep on the same key.
type Registry struct {
	mu      sync.Mutex
	tickets map[string]Ticket
	now     func() time.Time

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{
		tickets: make(map[string]Ticket),
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests).
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Create inserts a ticket for (operator, action, data) and returns its key.
// An existing ticket for the same key is replaced, restarting the window.
func (r *Registry) Create(operator, action, data string, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	key := Key(operator, action, data)
	r.mu.Lock()
	now := r.now()
	r.tickets[key] = Ticket{
		Operator:  operator,
		Action:    action,
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
	}
	r.mu.Unlock()
	metrics.IncConfirmation("created")
	return key
}

// Confirm consumes the ticket and returns true iff a non-expired ticket
// exists for the key. Expired tickets found here are deleted.
func (r *Registry) Confirm(operator, action, data string) bool {
	key := Key(operator, action, data)
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[key]
	if !ok {
		return false
	}
	delete(r.tickets, key)
	if t.Expired(r.now()) {
		metrics.IncConfirmation("expired")
		return false
	}
	metrics.IncConfirmation("confirmed")
	return true
}

// Cancel deletes the ticket if present. Idempotent.
func (r *Registry) Cancel(operator, action, data string) {
	key := Key(operator, action, data)
	r.mu.Lock()
	_, ok := r.tickets[key]
	delete(r.tickets, key)
	r.mu.Unlock()
	if ok {
		metrics.IncConfirmation("cancelled")
	}
}

// Pending reports whether a live ticket exists; an expired one found here is
// deleted.
func (r *Registry) Pending(operator, action, data string) bool {
	key := Key(operator, action, data)
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[key]
	if !ok {
		return false
	}
	if t.Expired(r.now()) {
		delete(r.tickets, key)
		metrics.IncConfirmation("expired")
		return false
	}
	return true
}

// TimeRemaining returns the whole seconds left in the window, rounded up and
// clamped to >= 0.
func (r *Registry) TimeRemaining(operator, action, data string) int {
	key := Key(operator, action, data)
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[key]
	if !ok {
		return 0
	}
	left := t.ExpiresAt.Sub(r.now())
	if left <= 0 {
		return 0
	}
	secs := int((left + time.Second - 1) / time.Second)
	return secs
}

// StartSweep launches a background loop removing expired tickets. The sweep
// is best-effort; correctness comes from lazy expiry on lookups.
func (r *Registry) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTimeout
	}
	r.mu.Lock()
	if r.sweepStop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.sweepStop = stop
	r.mu.Unlock()

	r.sweepWG.Add(1)
	go func() {
		defer r.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.SweepOnce()
			case <-stop:
				return
			}
		}
	}()
}

// StopSweep halts the background sweep. Idempotent.
func (r *Registry) StopSweep() {
	r.mu.Lock()
	stop := r.sweepStop
	r.sweepStop = nil
	r.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	r.sweepWG.Wait()
}

// SweepOnce removes all expired tickets and returns how many were dropped.
func (r *Registry) SweepOnce() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for key, t := range r.tickets {
		if t.Expired(now) {
			delete(r.tickets, key)
			n++
		}
	}
	for i := 0; i < n; i++ {
		metrics.IncConfirmation("expired")
	}
	return n
}
