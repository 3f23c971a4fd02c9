package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobhunt-pipeline/internal/adapters"
	"github.com/jonathan/jobhunt-pipeline/internal/fetch"
	"github.com/jonathan/jobhunt-pipeline/internal/normalize"
	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// Error kinds reported in a SourceResult so operators can tell a network
// problem (transient, retried) from a page-layout drift (needs a rules fix).
const (
	ErrKindFetch = "fetch_error"
	ErrKindParse = "parse_error"
)

// PostingStore is the persistence surface the orchestrator needs. The db
// package provides the production implementation.
type PostingStore interface {
	// UpsertPosting inserts the posting or, when one with the same
	// fingerprint exists, refreshes its last-seen time and mutable fields.
	// Returns true when a new row was created.
	UpsertPosting(ctx context.Context, posting *types.JobPosting) (bool, error)

	// RecordScrapeCycle resets the miss counter for postings of the source
	// whose fingerprints were seen this cycle, increments it for the rest,
	// and archives postings missing for more than archiveAfter consecutive
	// cycles. Returns the number archived.
	RecordScrapeCycle(ctx context.Context, sourceID string, seen []string, archiveAfter int) (int, error)
}

// Config tunes the orchestrator. Zero values fall back to safe defaults.
type Config struct {
	Workers      int
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	ArchiveAfter int
	Verbose      bool
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = 3
	}
}

// SourceResult is the per-source outcome of one scrape cycle.
type SourceResult struct {
	SourceID  string
	Extracted int
	Inserted  int
	Updated   int
	Dropped   int
	Archived  int
	Attempts  int
	ErrKind   string
	Err       error
}

// Failed reports whether the source produced no usable cycle.
func (r *SourceResult) Failed() bool { return r.Err != nil }

// Summary aggregates the results of one full cycle across all sources.
type Summary struct {
	Started  time.Time
	Finished time.Time
	Results  []SourceResult
}

func (s *Summary) Succeeded() int {
	n := 0
	for i := range s.Results {
		if !s.Results[i].Failed() {
			n++
		}
	}
	return n
}

func (s *Summary) Failures() []SourceResult {
	var out []SourceResult
	for i := range s.Results {
		if s.Results[i].Failed() {
			out = append(out, s.Results[i])
		}
	}
	return out
}

// Orchestrator runs scrape cycles across configured sources with a bounded
// worker pool. Each source is handled by a single worker at a time, so the
// politeness interval only has to be honored within one worker.
type Orchestrator struct {
	fetcher fetch.Fetcher
	browser fetch.Fetcher
	store   PostingStore
	norm    *normalize.Normalizer
	cfg     Config
}

// New builds an orchestrator. browser may be nil; sources that ask for a
// browser then fall back to the plain fetcher.
func New(fetcher, browser fetch.Fetcher, store PostingStore, norm *normalize.Normalizer, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	if norm == nil {
		norm = normalize.New(nil)
	}
	return &Orchestrator{
		fetcher: fetcher,
		browser: browser,
		store:   store,
		norm:    norm,
		cfg:     cfg,
	}
}

// Run executes one scrape cycle over defs. A failing source never aborts the
// others; its failure is recorded in the summary instead.
func (o *Orchestrator) Run(ctx context.Context, defs []sources.SourceDefinition) *Summary {
	summary := &Summary{Started: time.Now().UTC(), Results: make([]SourceResult, len(defs))}

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i := range defs {
		i := i
		g.Go(func() error {
			summary.Results[i] = o.scrapeSource(ctx, &defs[i])
			return nil
		})
	}
	g.Wait()

	summary.Finished = time.Now().UTC()
	log.Printf("[scraper] cycle done: %d sources, %d succeeded, %d failed",
		len(defs), summary.Succeeded(), len(defs)-summary.Succeeded())
	return summary
}

func (o *Orchestrator) scrapeSource(ctx context.Context, def *sources.SourceDefinition) SourceResult {
	res := SourceResult{SourceID: def.ID}

	adapter, err := adapters.New(*def)
	if err != nil {
		res.ErrKind = ErrKindParse
		res.Err = err
		return res
	}

	page, attempts, err := o.fetchWithRetry(ctx, def)
	res.Attempts = attempts
	if err != nil {
		res.ErrKind = ErrKindFetch
		res.Err = err
		log.Printf("[scraper] source %s: fetch failed after %d attempts: %v", def.ID, attempts, err)
		return res
	}

	raws, err := adapter.Extract(page, time.Now().UTC())
	if err != nil {
		// Layout drift is not transient; retrying the same page is useless.
		res.ErrKind = ErrKindParse
		res.Err = err
		log.Printf("[scraper] source %s: parse failed: %v", def.ID, err)
		return res
	}
	res.Extracted = len(raws)

	var seen []string
	for i := range raws {
		posting, err := o.norm.Normalize(raws[i])
		if err != nil {
			res.Dropped++
			if o.cfg.Verbose {
				log.Printf("[scraper] source %s: dropped posting: %v", def.ID, err)
			}
			continue
		}
		seen = append(seen, posting.Fingerprint)
		inserted, err := o.store.UpsertPosting(ctx, posting)
		if err != nil {
			res.Err = fmt.Errorf("upsert posting for source %s: %w", def.ID, err)
			return res
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	archived, err := o.store.RecordScrapeCycle(ctx, def.ID, seen, o.cfg.ArchiveAfter)
	if err != nil {
		res.Err = fmt.Errorf("record scrape cycle for source %s: %w", def.ID, err)
		return res
	}
	res.Archived = archived

	if o.cfg.Verbose {
		log.Printf("[scraper] source %s: %d extracted, %d new, %d updated, %d dropped, %d archived",
			def.ID, res.Extracted, res.Inserted, res.Updated, res.Dropped, res.Archived)
	}
	return res
}

// fetchWithRetry fetches the source's listing page, retrying transient fetch
// errors with exponential backoff. The wait between attempts never drops
// below the source's politeness interval.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, def *sources.SourceDefinition) (string, int, error) {
	fetcher := o.fetcher
	if def.UseBrowser && o.browser != nil {
		fetcher = o.browser
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, o.cfg.BaseBackoff, o.cfg.MaxBackoff)
			if p := def.Politeness(); delay < p {
				delay = p
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", attempts, ctx.Err()
			}
		}
		attempts++
		result, err := fetcher.Fetch(ctx, def.BaseURL)
		if err == nil {
			return result.HTML, attempts, nil
		}
		lastErr = err
		var fe *fetch.Error
		if !errors.As(err, &fe) {
			// Not a transport-level failure; don't burn retries on it.
			break
		}
		if ctx.Err() != nil {
			return "", attempts, ctx.Err()
		}
	}
	return "", attempts, lastErr
}
