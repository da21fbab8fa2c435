package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CronScheduler runs registered jobs on standard five-field cron specs.
type CronScheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// NewCronScheduler creates a scheduler in the given location. A nil location
// means UTC.
func NewCronScheduler(loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:  ctx,
		stop: cancel,
	}
}

func (s *CronScheduler) Register(name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		log.Debug().Str("job", name).Msg("scheduled job triggered")
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	log.Info().Str("job", name).Str("spec", spec).Msg("scheduled job registered")
	return nil
}

func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop prevents new triggers and waits for running jobs until ctx is done.
func (s *CronScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.stop()
		return nil
	case <-ctx.Done():
		s.stop()
		return ctx.Err()
	}
}
