package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/scraper"
	"go.uber.org/zap"
)

// Scheduler resumes the scrape on a cron schedule. Each tick starts a
// skip-existing run, so only domains without markers are fetched.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *scraper.Pipeline
	log      *zap.Logger
	spec     string
}

func New(cfg config.Config, pipeline *scraper.Pipeline, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		log:      log.Named("scheduler"),
		spec:     cfg.SchedulerCron,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick() {
	skipExisting := true
	err := s.pipeline.Start(context.Background(), scraper.Options{SkipExisting: &skipExisting})
	if errors.Is(err, scraper.ErrAlreadyRunning) {
		s.log.Debug("scheduled run skipped, scrape already in progress")
		return
	}
	if err != nil {
		s.log.Error("scheduled run failed to start", zap.Error(err))
		return
	}
	s.log.Info("scheduled scrape resumed")
}
