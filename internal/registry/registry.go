package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loykin/opsgate/internal/metrics"
)

// JobStatus represents the lifecycle status of a tracked job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Active reports whether the status counts toward the active job total.
func (s JobStatus) Active() bool {
	return s == StatusQueued || s == StatusProcessing
}

// Job is the tracked state of one long-running job. Progress is advisory and
// expected (not enforced) to be monotonic while the job is processing.
type Job struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Progress  int       `json:"progress"` // 0..100
	Stage     string    `json:"stage"`
	Status    JobStatus `json:"status"`
}

// Registry is the single owner of Job records. Lifecycle events arrive from
// an external producer; reads hand out copies so a concurrent mutation never
// produces a torn view.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register adds a job. Registering an existing id is rejected.
func (r *Registry) Register(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job requires an id")
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	if job.StartTime.IsZero() {
		job.StartTime = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %q already registered", job.ID)
	}
	r.jobs[job.ID] = job
	metrics.SetActiveJobs(r.activeCountLocked())
	return nil
}

// Update applies progress/stage/status changes to an existing job.
func (r *Registry) Update(id string, progress int, stage string, status JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[id]
	if !exists {
		return fmt.Errorf("unknown job: %s", id)
	}
	if progress >= 0 && progress <= 100 {
		job.Progress = progress
	}
	if stage != "" {
		job.Stage = stage
	}
	if status != "" {
		job.Status = status
	}
	r.jobs[id] = job
	metrics.SetActiveJobs(r.activeCountLocked())
	return nil
}

// Remove deletes a job; removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	metrics.SetActiveJobs(r.activeCountLocked())
	r.mu.Unlock()
}

// Get returns a copy of the job with the given id.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Snapshot returns copies of all jobs ordered by start time.
func (r *Registry) Snapshot() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].StartTime.Before(out[k].StartTime) })
	return out
}

// Active returns copies of jobs whose status is queued or processing.
func (r *Registry) Active() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j.Status.Active() {
			out = append(out, j)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].StartTime.Before(out[k].StartTime) })
	return out
}

// ActiveCount returns the number of queued or processing jobs.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	c := 0
	for _, j := range r.jobs {
		if j.Status.Active() {
			c++
		}
	}
	return c
}

// EvictTerminal removes completed/failed jobs older than the given age.
func (r *Registry) EvictTerminal(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if !j.Status.Active() && j.StartTime.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}
