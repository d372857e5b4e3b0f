package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"rera_crawler/config"
	"rera_crawler/models"
	"rera_crawler/scraper"
	"rera_crawler/storage"
)

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	RunAll(ctx context.Context) error
	RunMode(ctx context.Context, mode models.RunMode, opts scraper.CrawlOptions) (*models.CrawlRun, error)
	HandleCommand(ctx context.Context, cmd *models.Command) error
	IsPaused() bool
}

// Journal is where commands and resume state are read from.
type Journal interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	GetModesPendingResume() ([]models.RunMode, error)
	GetLastRunTime(mode models.RunMode) (time.Time, error)
}

type Scheduler struct {
	cfg          *config.Config
	orchestrator Runner
	store        Journal
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
	loops        sync.WaitGroup

	// A run drives one browser session; runs never overlap.
	runMu sync.Mutex
}

func New(cfg *config.Config, orchestrator Runner, store Journal) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

var _ Journal = (*storage.SQLiteStore)(nil)
var _ Runner = (*scraper.Orchestrator)(nil)

// Start launches the command and resume pollers and the run schedule. They
// stop when ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.scheduledRun(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		s.spawn(func() {
			for {
				select {
				case <-s.ticker.C:
					s.scheduledRun(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		})
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	s.spawn(func() { s.pollCommands(ctx) })
	s.spawn(func() { s.pollResumes(ctx) })
	return nil
}

func (s *Scheduler) spawn(fn func()) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		fn()
	}()
}

// Stop halts the schedule and waits for the pollers, including a command or
// resumed run they are executing. Cancel the Start context first to cut such
// a run short.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.loops.Wait()
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	if !s.runMu.TryLock() {
		log.Println("Previous run still in progress, skipping scheduled run")
		return
	}
	defer s.runMu.Unlock()

	if err := s.orchestrator.RunAll(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdPause, models.CmdResume:
		return s.orchestrator.HandleCommand(ctx, cmd)
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.orchestrator.HandleCommand(ctx, cmd)
}

const resumeDelay = 15 * time.Minute

func (s *Scheduler) pollResumes(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.resumePending(ctx, time.Now())
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// resumePending restarts every mode whose last run was aborted, once
// resumeDelay has passed since that run started.
func (s *Scheduler) resumePending(ctx context.Context, now time.Time) {
	if s.orchestrator.IsPaused() {
		return
	}
	modes, err := s.store.GetModesPendingResume()
	if err != nil {
		log.Printf("Error checking pending resumes: %v", err)
		return
	}

	for _, mode := range modes {
		lastRun, err := s.store.GetLastRunTime(mode)
		if err != nil {
			log.Printf("Error getting last run time for %s: %v", mode, err)
			continue
		}
		if now.Sub(lastRun) < resumeDelay {
			continue
		}
		if !s.runMu.TryLock() {
			return
		}
		log.Printf("Resuming %s run", mode)
		if _, err := s.orchestrator.RunMode(ctx, mode, scraper.DefaultCrawlOptions()); err != nil {
			log.Printf("Resume error for %s: %v", mode, err)
		}
		s.runMu.Unlock()
	}
}
