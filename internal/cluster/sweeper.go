package cluster

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"yqhp/matmul-engine/pkg/logger"
)

// DefaultSweepInterval is how often stale members are evicted.
const DefaultSweepInterval = 5 * time.Second

// Sweepable is a membership that evicts stale members on demand.
type Sweepable interface {
	Sweep() []string
}

// Sweeper runs Sweep on a fixed interval.
type Sweeper struct {
	scheduler gocron.Scheduler
	target    Sweepable
}

// NewSweeper schedules target.Sweep every interval. A nil clock uses the real clock.
func NewSweeper(target Sweepable, interval time.Duration, clock clockwork.Clock) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	s := &Sweeper{scheduler: scheduler, target: target}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("membership-sweep"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return s, nil
}

// Start begins sweeping.
func (s *Sweeper) Start() {
	s.scheduler.Start()
}

// Stop halts sweeping and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) run() {
	if expired := s.target.Sweep(); len(expired) > 0 {
		logger.Info("membership sweep evicted members", zap.Strings("members", expired))
	}
}
