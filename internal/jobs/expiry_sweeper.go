package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer moves overdue in-progress attempts to Expired.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// ExpirySweeper runs the attempt expiry on a cron schedule.
type ExpirySweeper struct {
	expirer Expirer
	timeout time.Duration
	cron    *cron.Cron
}

// NewExpirySweeper parses schedule (standard cron or @every descriptors).
// Overlapping runs are skipped rather than queued.
func NewExpirySweeper(expirer Expirer, schedule string, timeout time.Duration) (*ExpirySweeper, error) {
	s := &ExpirySweeper{
		expirer: expirer,
		timeout: timeout,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.cron.Start()
	log.Printf("jobs: expiry sweeper scheduled")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Printf("jobs: expiry sweeper stopped")
	return nil
}

// Sweep runs one expiry pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.expirer.ExpireOverdue(ctx)
}

func (s *ExpirySweeper) runOnce() {
	n, err := s.Sweep(context.Background())
	if err != nil {
		log.Printf("jobs: expiry sweep failed after %d attempt(s): %v", n, err)
		return
	}
	if n > 0 {
		log.Printf("jobs: marked %d attempt(s) as expired", n)
	}
}
