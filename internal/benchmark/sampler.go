package benchmark

import (
	"runtime"
	"time"
)

const bytesPerMB = 1024.0 * 1024.0

// Sampler reads process resource counters.
type Sampler interface {
	// HeapBytes returns the bytes of allocated heap objects.
	HeapBytes() uint64
	// CPUTime returns the user plus system CPU time consumed by the process.
	CPUTime() time.Duration
	// Collect runs a garbage collection before a measurement.
	Collect()
}

// RuntimeSampler samples the current process.
type RuntimeSampler struct{}

// HeapBytes implements Sampler.
func (RuntimeSampler) HeapBytes() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// CPUTime implements Sampler.
func (RuntimeSampler) CPUTime() time.Duration {
	return processCPUTime()
}

// Collect implements Sampler.
func (RuntimeSampler) Collect() {
	runtime.GC()
}

// memoryDeltaMB converts a heap delta to megabytes, clamped at zero when a
// collection ran during the measurement.
func memoryDeltaMB(before, after uint64) float64 {
	if after <= before {
		return 0
	}
	return float64(after-before) / bytesPerMB
}

// cpuPercent is the share of all cores used over wall, in percent.
func cpuPercent(cpu, wall time.Duration, cores int) float64 {
	if wall <= 0 || cores <= 0 || cpu <= 0 {
		return 0
	}
	pct := float64(cpu) / (float64(wall) * float64(cores)) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
