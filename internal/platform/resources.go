package platform

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot is a point-in-time reading of process health data
// surfaced on /health. Values are host-wide gopsutil readings, accurate
// enough for an operator dashboard without the cgroup-file parsing a
// container-aware CPU-based admission decision would need — pusherd
// doesn't make those decisions.
type ResourceSnapshot struct {
	CPUPercent       float64
	MemoryUsedBytes  uint64
	MemoryTotalBytes uint64
}

// ResourceMonitor samples host CPU/memory on an interval and exposes the
// latest snapshot lock-free via atomic.Value.
type ResourceMonitor struct {
	latest atomic.Value // ResourceSnapshot
	logger zerolog.Logger
}

// NewResourceMonitor returns a monitor with an immediately available
// zero-value snapshot; call Start to begin sampling.
func NewResourceMonitor(logger zerolog.Logger) *ResourceMonitor {
	m := &ResourceMonitor{logger: logger}
	m.latest.Store(ResourceSnapshot{})
	return m
}

// Snapshot returns the most recent sample.
func (m *ResourceMonitor) Snapshot() ResourceSnapshot {
	return m.latest.Load().(ResourceSnapshot)
}

// Start samples CPU and memory every interval until ctx is canceled.
func (m *ResourceMonitor) Start(ctx context.Context, interval time.Duration) {
	m.sample()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

func (m *ResourceMonitor) sample() {
	snap := ResourceSnapshot{}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	} else if err != nil {
		m.logger.Warn().Err(err).Msg("cpu sample failed")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedBytes = vm.Used
		snap.MemoryTotalBytes = vm.Total
	} else {
		m.logger.Warn().Err(err).Msg("memory sample failed")
	}

	m.latest.Store(snap)
}
