// Package scheduler wires up the cron job that periodically runs a scrape
// cycle over the enabled sources.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonathan/jobhunt-pipeline/internal/scrape"
	"github.com/jonathan/jobhunt-pipeline/internal/sources"
)

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron         *cron.Cron
	registry     *sources.Registry
	orchestrator *scrape.Orchestrator
	spec         string // cron spec, e.g. "@every 6h"
	running      atomic.Bool
}

// New creates a Scheduler that fires every interval.
func New(registry *sources.Registry, orchestrator *scrape.Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		registry:     registry,
		orchestrator: orchestrator,
		spec:         fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the job and starts the scheduler. Also runs one scrape
// immediately so the pipeline is populated without waiting for the first
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] cron started, spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.RunCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] cron stopped")
}

// RunCycle reloads the source registry and runs one scrape cycle over the
// enabled sources. A cycle still in flight when the next tick fires is not
// overlapped; the tick is skipped.
func (s *Scheduler) RunCycle(ctx context.Context) *scrape.Summary {
	return s.RunSources(ctx, nil)
}

// RunSources runs one scrape cycle over the named enabled sources, or all of
// them when ids is empty.
func (s *Scheduler) RunSources(ctx context.Context, ids []string) *scrape.Summary {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("[scheduler] previous scrape cycle still running, skipping tick")
		return nil
	}
	defer s.running.Store(false)

	if err := s.registry.Reload(); err != nil {
		// Keep scraping with the previously loaded definitions.
		log.Printf("[scheduler] source registry reload failed: %v", err)
	}

	defs := s.registry.Enabled()
	if len(ids) > 0 {
		defs = s.registry.Select(ids)
	}
	if len(defs) == 0 {
		// Nothing matched: an empty summary, not a skipped-cycle nil, so
		// callers can tell "no such source" apart from "already running".
		log.Println("[scheduler] no enabled sources, nothing to scrape")
		now := time.Now().UTC()
		return &scrape.Summary{Started: now, Finished: now}
	}

	log.Printf("[scheduler] scrape cycle started for %d source(s)", len(defs))
	summary := s.orchestrator.Run(ctx, defs)
	for _, failure := range summary.Failures() {
		log.Printf("[scheduler] source %s failed (%s): %v", failure.SourceID, failure.ErrKind, failure.Err)
	}
	return summary
}
