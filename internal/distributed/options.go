// Package distributed multiplies matrices by sending one row task per row of A to cluster members.
package distributed

import (
	"time"
)

// Name is the strategy label recorded by the benchmark harness.
const Name = "Distributed (gRPC)"

// collectGrace is added to the collection bound so a row's last attempt can report its own error.
const collectGrace = 250 * time.Millisecond

// Options configures an Executor.
type Options struct {
	// PoolSize bounds the number of row tasks in flight.
	PoolSize int
	// TaskTimeout bounds one attempt of a row on one member.
	TaskTimeout time.Duration
	// Retries is how many times a failed row is re-sent to the next member. Zero disables retries.
	Retries int
	// MembershipTimeout bounds membership queries.
	MembershipTimeout time.Duration
	// ShutdownTimeout bounds how long Shutdown waits for running tasks.
	ShutdownTimeout time.Duration
}

// DefaultOptions returns the default executor options.
func DefaultOptions() Options {
	return Options{
		PoolSize:          64,
		TaskTimeout:       30 * time.Second,
		Retries:           0,
		MembershipTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = d.TaskTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MembershipTimeout <= 0 {
		o.MembershipTimeout = d.MembershipTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = d.ShutdownTimeout
	}
	return o
}

// collectTimeout bounds how long collection waits for a row across every attempt.
func (o Options) collectTimeout() time.Duration {
	return o.TaskTimeout*time.Duration(o.Retries+1) + collectGrace
}
