package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/jobhunt-pipeline/internal/db"
	"github.com/jonathan/jobhunt-pipeline/internal/matching"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

var (
	matchConfig  string
	matchProfile string
	matchLimit   int
	matchSave    bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score stored postings against a profile",
	Long:  `Compute deterministic match scores for every non-archived posting against the given candidate profile and print them ranked.`,
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchConfig, "config", "", "Path to JSON config file")
	matchCmd.Flags().StringVar(&matchProfile, "profile", "", "Candidate profile ID (required)")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 20, "Maximum results to print")
	matchCmd.Flags().BoolVar(&matchSave, "save", false, "Persist the computed match results")
	_ = matchCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(matchConfig)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if _, err := uuid.Parse(matchProfile); err != nil {
		return fmt.Errorf("invalid profile id %q: %w", matchProfile, err)
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

	profile, err := database.GetProfile(ctx, matchProfile)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	postings, err := database.ListPostings(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("failed to list postings: %w", err)
	}

	engine := matching.NewEngine(tuning)
	var results []types.MatchResult
	byID := make(map[uuid.UUID]types.JobPosting)
	for _, p := range postings {
		if p.Status == types.PostingStatusArchived || p.Excluded {
			continue
		}
		m := engine.Score(p, profile)
		if matchSave {
			if err := database.SaveMatchResult(ctx, m); err != nil {
				return fmt.Errorf("failed to save match result: %w", err)
			}
		}
		results = append(results, *m)
		byID[p.ID] = *p
	}

	ranked := matching.Rank(results, byID)
	if matchLimit > 0 && len(ranked) > matchLimit {
		ranked = ranked[:matchLimit]
	}
	for i, r := range ranked {
		fmt.Printf("%2d. %.3f  %-35s %-20s %s\n",
			i+1, r.Result.Score, truncate(r.Posting.Title, 35), truncate(r.Posting.Company, 20), r.Posting.Location)
	}
	fmt.Printf("%d postings scored\n", len(results))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
