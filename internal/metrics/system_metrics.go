package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCollector periodically samples host and runtime health so an
// operator can tell a stalled station client from a quiet one.
type SystemCollector struct {
	interval time.Duration
}

// NewSystemCollector returns a collector sampling at the given interval.
func NewSystemCollector(interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{interval: interval}
}

// Name identifies the collector to the lifecycle supervisor.
func (sc *SystemCollector) Name() string { return "system-metrics" }

// Run samples until the context is cancelled.
func (sc *SystemCollector) Run(ctx context.Context) error {
	m := GetInstance()
	m.init()

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sc.sample(m)
		}
	}
}

func (sc *SystemCollector) sample(m *Manager) {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.systemCPUPercent.Set(percents[0])
	} else if err != nil {
		log.Debug().Err(err).Msg("Failed to sample CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		m.systemMemUsed.Set(float64(vm.Used))
	} else {
		log.Debug().Err(err).Msg("Failed to sample memory usage")
	}

	m.goroutines.Set(float64(runtime.NumGoroutine()))
}
