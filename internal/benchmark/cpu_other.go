//go:build !unix

package benchmark

import "time"

// processCPUTime is not sampled on this platform; CPU usage is reported as 0.
func processCPUTime() time.Duration {
	return 0
}
