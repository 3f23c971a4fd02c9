package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobhunt-pipeline/internal/automation"
	"github.com/jonathan/jobhunt-pipeline/internal/db"
	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/fetch"
	"github.com/jonathan/jobhunt-pipeline/internal/matching"
	"github.com/jonathan/jobhunt-pipeline/internal/normalize"
	"github.com/jonathan/jobhunt-pipeline/internal/scheduler"
	"github.com/jonathan/jobhunt-pipeline/internal/scrape"
	"github.com/jonathan/jobhunt-pipeline/internal/server"
	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

var (
	servePort   int
	serveConfig string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the scrape, match, and application endpoints, with scheduled scrape cycles running in the background.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfig)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	tuning, err := loadTuning(cfg)
	if err != nil {
		return err
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

	registry := sources.NewRegistry()
	if cfg.SourcesPath != "" {
		if err := registry.Load(cfg.SourcesPath); err != nil {
			return fmt.Errorf("failed to load sources: %w", err)
		}
	} else {
		log.Printf("[serve] no sources file configured; scheduled scraping is idle")
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

	sched := scheduler.New(registry, orchestrator, time.Duration(cfg.ScrapeInterval)*time.Hour)
	if cfg.SourcesPath != "" {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	var renderer docgen.Renderer
	if dir := os.Getenv("TEMPLATE_DIR"); dir != "" {
		out := os.Getenv("DOCUMENT_DIR")
		if out == "" {
			out = "documents"
		}
		renderer = docgen.NewTemplateRenderer(dir, out)
	}

	applicant, err := applicantFromEnv()
	if err != nil {
		log.Printf("[serve] applicant identity incomplete, form filling will fail: %v", err)
		applicant = automation.Applicant{}
	}
	runner := automation.NewRunner(database, applicant, cfg.Verbose)
	if renderer != nil {
		runner.WithDocuments(renderer, database)
	}

	engine := workflow.NewEngine(database, runner, workflow.Config{
		MaxActiveRuns:   cfg.MaxActiveRuns,
		StepTimeout:     time.Duration(cfg.StepTimeoutS) * time.Second,
		MaxStepAttempts: cfg.MaxStepAttempts,
		CaptchaWait:     time.Duration(cfg.CaptchaWaitS) * time.Second,
	})
	defer engine.Close()

	recovered, err := engine.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover workflow runs: %w", err)
	}
	if recovered > 0 {
		log.Printf("[serve] recovered %d interrupted workflow runs", recovered)
	}

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Store:     database,
		Scraper:   sched,
		Matcher:   matching.NewEngine(tuning),
		Workflows: engine,
		Renderer:  renderer,
	})
	return srv.Start()
}
