package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobhunt-pipeline/internal/db"
	"github.com/jonathan/jobhunt-pipeline/internal/fetch"
	"github.com/jonathan/jobhunt-pipeline/internal/normalize"
	"github.com/jonathan/jobhunt-pipeline/internal/scrape"
	"github.com/jonathan/jobhunt-pipeline/internal/sources"
)

var (
	scrapeConfig  string
	scrapeSources []string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape cycle and exit",
	Long:  `Fetch every enabled source (or the ones named with --source), normalize and deduplicate the postings, and persist them.`,
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeConfig, "config", "", "Path to JSON config file")
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "source", nil, "Source IDs to scrape (default: all enabled)")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(scrapeConfig)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.SourcesPath == "" {
		return fmt.Errorf("a sources file is required (config 'sources' or SOURCES_PATH)")
	}

	tuning, err := loadTuning(cfg)
	if err != nil {
		return err
	}

	registry := sources.NewRegistry()
	if err := registry.Load(cfg.SourcesPath); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	defs := registry.Enabled()
	if len(scrapeSources) > 0 {
		defs = registry.Select(scrapeSources)
		if len(defs) == 0 {
			return fmt.Errorf("no enabled sources match %v", scrapeSources)
		}
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	fetchOpts := fetch.DefaultOptions()
	if cfg.UserAgent != "" {
		fetchOpts.UserAgent = cfg.UserAgent
	}
	httpFetcher := fetch.NewHTTPFetcher(fetchOpts)
	browserFetcher := fetch.NewBrowserFetcher(90*time.Second, cfg.Verbose)
	orchestrator := scrape.New(httpFetcher, browserFetcher, database, normalize.New(tuning), scrape.Config{
		Workers:      cfg.ScrapeWorkers,
		ArchiveAfter: cfg.ArchiveAfter,
		Verbose:      cfg.Verbose,
	})

	summary := orchestrator.Run(ctx, defs)
	for _, res := range summary.Results {
		if res.Failed() {
			fmt.Printf("%-20s FAILED: %v\n", res.SourceID, res.Err)
			continue
		}
		fmt.Printf("%-20s extracted=%d inserted=%d updated=%d dropped=%d archived=%d\n",
			res.SourceID, res.Extracted, res.Inserted, res.Updated, res.Dropped, res.Archived)
	}
	if failed := len(summary.Results) - summary.Succeeded(); failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(summary.Results))
	}
	return nil
}
