// Package sampler reads process resource usage for the metrics engine.
//
// Samples report resident set size and CPU utilization of the benchmark
// process itself, not the whole machine. The session controller polls a
// Sampler on a fixed interval and feeds the results to the aggregator.
package sampler

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/visiona/framebench/internal/types"
)

// Sampler produces one resource usage reading per call
type Sampler interface {
	Sample() (types.ResourceSample, error)
}

// ProcessSampler reads RSS and CPU percent of the current process
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler attaches to the current process.
//
// The CPU meter is primed on construction so the first Sample call
// reports utilization over a real interval instead of since process
// start.
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to attach to own process: %w", err)
	}
	proc.Percent(0)
	return &ProcessSampler{proc: proc}, nil
}

// Sample implements Sampler
func (s *ProcessSampler) Sample() (types.ResourceSample, error) {
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return types.ResourceSample{}, fmt.Errorf("failed to read memory info: %w", err)
	}

	cpu, err := s.proc.Percent(0)
	if err != nil {
		return types.ResourceSample{}, fmt.Errorf("failed to read cpu percent: %w", err)
	}

	return types.ResourceSample{
		Timestamp:   time.Now().UTC(),
		MemoryBytes: mem.RSS,
		CPUPercent:  cpu,
	}, nil
}

// StaticSampler returns a fixed reading on every call. Used when resource
// monitoring is disabled and in controller tests that need deterministic
// values.
type StaticSampler struct {
	MemoryBytes uint64
	CPUPercent  float64
}

// Sample implements Sampler
func (s StaticSampler) Sample() (types.ResourceSample, error) {
	return types.ResourceSample{
		Timestamp:   time.Now().UTC(),
		MemoryBytes: s.MemoryBytes,
		CPUPercent:  s.CPUPercent,
	}, nil
}
