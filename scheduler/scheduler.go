package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"newbuild_scrooper/config"
	"newbuild_scrooper/models"
)

// Runner is what the scheduler triggers; the orchestrator implements it.
type Runner interface {
	RunAll(ctx context.Context) []*models.ParseResult
}

type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once

	// one run at a time: a tick that arrives mid-run is skipped
	running sync.Mutex
}

func New(cfg config.SchedulerConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, running once")
		go s.runOnce(ctx)
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.once.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs immediately unless a run is already in progress.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		log.Println("Previous run still in progress, skipping")
		return false
	}
	defer s.running.Unlock()

	start := time.Now()
	results := s.runner.RunAll(ctx)
	units := 0
	for _, r := range results {
		units += r.UnitsCount
	}
	log.Printf("Scheduled run done in %s: %d sites, %d units", time.Since(start).Round(time.Second), len(results), units)
	return true
}
