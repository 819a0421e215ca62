package distributed

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyMicros = 1
	maxLatencyMicros = int64(10 * time.Minute / time.Microsecond)
)

// LatencySnapshot summarizes per-task round-trip latencies.
type LatencySnapshot struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// LatencyRecorder records task latencies in microseconds.
type LatencyRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewLatencyRecorder creates an empty recorder.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{hist: hdrhistogram.New(minLatencyMicros, maxLatencyMicros, 3)}
}

// Record adds one observation. Values outside the trackable range are clamped.
func (r *LatencyRecorder) Record(d time.Duration) {
	v := d.Microseconds()
	if v < minLatencyMicros {
		v = minLatencyMicros
	}
	if v > maxLatencyMicros {
		v = maxLatencyMicros
	}
	r.mu.Lock()
	_ = r.hist.RecordValue(v)
	r.mu.Unlock()
}

// Snapshot returns the current summary.
func (r *LatencyRecorder) Snapshot() LatencySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return LatencySnapshot{
		Count: r.hist.TotalCount(),
		Mean:  time.Duration(r.hist.Mean() * float64(time.Microsecond)),
		P50:   micros(r.hist.ValueAtQuantile(50)),
		P95:   micros(r.hist.ValueAtQuantile(95)),
		P99:   micros(r.hist.ValueAtQuantile(99)),
		Max:   micros(r.hist.Max()),
	}
}

// Reset clears all observations.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	r.hist.Reset()
	r.mu.Unlock()
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
