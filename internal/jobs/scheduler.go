package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper removes abandoned partial writes older than the given age.
type Sweeper interface {
	SweepPartials(now time.Time, olderThan time.Duration) (int, error)
}

type Options struct {
	Schedule   string
	StaleAfter time.Duration
	Now        func() time.Time
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	opts    Options
	log     zerolog.Logger
}

// NewScheduler returns a scheduler that does nothing when sweeper is nil,
// which is the case for object storage backends.
func NewScheduler(sweeper Sweeper, opts Options, log zerolog.Logger) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		opts:    opts,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil || s.opts.Schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.opts.Schedule, s.sweepPartials); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.opts.Schedule).Dur("stale_after", s.opts.StaleAfter).Msg("partial sweep scheduled")
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepPartials() {
	removed, err := s.sweeper.SweepPartials(s.opts.Now(), s.opts.StaleAfter)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep partial uploads failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("stale partial uploads removed")
	}
}
