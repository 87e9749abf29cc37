package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"propsync/config"
	"propsync/models"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// fullScrapeMaxAge is how old the last full Daft market scrape may get before
// a scheduled scrape runs in full mode again.
const fullScrapeMaxAge = 7 * 24 * time.Hour

// Store is the queue the daemon polls for operator commands, plus the Daft
// market scrape log used to pick the scheduled scrape mode.
type Store interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
	LastMarketScrape() (*models.MarketScrapeResult, error)
}

type Scheduler struct {
	cfg          config.SchedulerConfig
	orchestrator *Orchestrator
	store        Store
	cron         *cron.Cron
	ticker       *time.Ticker
	pollInterval time.Duration
	stopCh       chan struct{}
	now          func() time.Time

	refreshWorker Triggerable
}

func New(cfg config.SchedulerConfig, orchestrator *Orchestrator, store Store) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		pollInterval: 2 * time.Second,
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
}

// SetRefreshWorker registers the cache refresh worker for the refresh command.
func (s *Scheduler) SetRefreshWorker(w Triggerable) {
	s.refreshWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.DaftCron != "" {
		log.Printf("Scheduling daft scrape with cron: %s", s.cfg.DaftCron)
		_, err := s.cron.AddFunc(s.cfg.DaftCron, func() {
			mode := s.daftScrapeMode()
			if err := s.orchestrator.ScrapeDaft(ctx, mode); err != nil {
				log.Printf("Scheduled daft %s scrape error: %v", mode, err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid daft cron expression: %w", err)
		}
	}

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			if err := s.orchestrator.RunAll(ctx, false); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx, false); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No sync schedule configured, daemon will only respond to commands")
	}

	if len(s.cron.Entries()) > 0 {
		s.cron.Start()
	}
	return nil
}

// daftScrapeMode runs a full scrape when there is none on record, when the
// last one was incremental, or when the last full scrape is over a week old.
func (s *Scheduler) daftScrapeMode() string {
	last, err := s.store.LastMarketScrape()
	if err != nil {
		log.Printf("Warning: reading last daft scrape: %v", err)
		return "full"
	}
	if last == nil || last.Mode != "full" || s.now().Sub(last.CompletedAt) > fullScrapeMaxAge {
		return "full"
	}
	return "incremental"
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processCommands runs every pending command in order. A failing command is
// logged and still marked processed so it is not retried forever.
func (s *Scheduler) processCommands(ctx context.Context) int {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return 0
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
	return len(cmds)
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	if cmd.Command == models.CmdRefresh {
		if s.refreshWorker == nil {
			return fmt.Errorf("refresh: no refresh worker running")
		}
		s.refreshWorker.Trigger()
		log.Println("Refresh worker triggered via command")
		return nil
	}

	params, err := s.store.ParseCommandParams(cmd)
	if err != nil {
		return fmt.Errorf("parse params for %s: %w", cmd.Command, err)
	}
	if err := s.orchestrator.HandleCommand(ctx, cmd.Command, params); err != nil {
		return err
	}

	if cmd.Command == models.CmdPause || cmd.Command == models.CmdResume {
		if status, err := s.orchestrator.MarshalStatus(); err == nil {
			log.Printf("Status: %s", status)
		}
	}
	return nil
}
