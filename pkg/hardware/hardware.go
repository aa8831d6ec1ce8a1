// Package hardware reports host load and connectivity to the router.
package hardware

import (
	"context"
	"time"
)

// Status is one reading of the host.
type Status struct {
	CPUPercent            float64   `json:"cpu_percent"`
	MemoryFreePercent     float64   `json:"memory_free_percent"`
	DiskPercent           float64   `json:"disk_percent"`
	Online                bool      `json:"online"`
	LocalRuntimeReachable bool      `json:"local_runtime_reachable"`
	CollectedAt           time.Time `json:"collected_at"`
}

// Provider returns the current host status.
type Provider interface {
	Status(ctx context.Context) (Status, error)
}

// Thresholds decide when the host counts as constrained.
type Thresholds struct {
	CPULimitPercent        float64
	MemoryFreeFloorPercent float64
}

// DefaultThresholds returns the stock limits: CPU above 90% or less than 10%
// memory free.
func DefaultThresholds() Thresholds {
	return Thresholds{CPULimitPercent: 90, MemoryFreeFloorPercent: 10}
}

// Snapshot is the part of a Status the router records with a decision.
type Snapshot struct {
	CPUConstrained    bool `json:"cpu_constrained"`
	MemoryConstrained bool `json:"memory_constrained"`
	OfflineMode       bool `json:"offline_mode"`
}

// Snapshot derives constraint flags from s.
func (s Status) Snapshot(t Thresholds) Snapshot {
	return Snapshot{
		CPUConstrained:    s.CPUPercent > t.CPULimitPercent,
		MemoryConstrained: s.MemoryFreePercent < t.MemoryFreeFloorPercent,
		OfflineMode:       !s.Online,
	}
}

// DefaultStatus is assumed when nothing has been collected yet: online,
// unloaded, no local runtime.
func DefaultStatus() Status {
	return Status{Online: true, MemoryFreePercent: 100}
}

// StaticProvider always returns the same status.
type StaticProvider struct {
	Value Status
	Err   error
}

// Status returns the fixed value.
func (p StaticProvider) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return p.Value, p.Err
}

// Offline returns a provider reporting no connectivity.
func Offline(localRuntime bool) StaticProvider {
	s := DefaultStatus()
	s.Online = false
	s.LocalRuntimeReachable = localRuntime
	return StaticProvider{Value: s}
}
