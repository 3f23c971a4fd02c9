// Package main provides the entry point for the job discovery and
// application pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobhunt",
	Short: "Job discovery and application pipeline",
	Long:  "jobhunt scrapes configured job boards, normalizes and deduplicates postings, scores them against a candidate profile, and drives automated application workflows via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
