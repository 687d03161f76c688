package sysinfo

import (
	"context"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is a point-in-time view of host resources. Percentages are clamped
// to [0,100]. Samples are computed fresh on every read and never cached.
type Sample struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Sampler reads host CPU and memory metrics on demand.
// Implementations must be safe for concurrent use.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostSampler reads metrics from the local host via gopsutil.
type HostSampler struct {
	// cpuInterval is the measurement window passed to cpu.Percent.
	// Zero compares against the previous call, which is fine for a
	// periodic monitor but can return 0 on the very first read.
	cpuInterval time.Duration
}

// NewHostSampler returns a Sampler that measures CPU usage over the given
// window. A small positive interval (e.g. 200ms) gives a stable reading.
func NewHostSampler(cpuInterval time.Duration) *HostSampler {
	return &HostSampler{cpuInterval: cpuInterval}
}

func (s *HostSampler) Sample(ctx context.Context) (Sample, error) {
	out := Sample{SampledAt: time.Now()}

	percents, err := cpu.PercentWithContext(ctx, s.cpuInterval, false)
	if err != nil {
		return out, err
	}
	if len(percents) > 0 {
		out.CPUPercent = clamp(percents[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, err
	}
	out.MemoryPercent = clamp(vm.UsedPercent)
	out.MemoryUsedMB = vm.Used / (1024 * 1024)
	out.MemoryTotalMB = vm.Total / (1024 * 1024)
	return out, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
