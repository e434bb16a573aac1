// Package health reports host and process vitals for the dashboard's
// status display.
package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Probe struct {
	startedAt time.Time
}

func NewProbe() *Probe {
	return &Probe{startedAt: time.Now()}
}

type Status struct {
	UptimeSeconds     float64 `json:"uptimeSeconds"`
	CPUPercent        float64 `json:"cpuPercent"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	Goroutines        int     `json:"goroutines"`
}

// Status samples host CPU and memory. Sampling failures leave the affected
// field zero rather than failing the probe; the dashboard treats zeros as
// "unknown".
func (p *Probe) Status() *Status {
	st := &Status{
		UptimeSeconds: time.Since(p.startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		st.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemoryUsedPercent = vm.UsedPercent
	}
	return st
}
