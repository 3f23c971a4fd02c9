package main

import (
	"fmt"
	"os"

	"github.com/jonathan/jobhunt-pipeline/internal/automation"
	"github.com/jonathan/jobhunt-pipeline/internal/config"
)

// loadConfig merges the optional JSON config file with environment values
// and fills the remaining gaps with defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.SourcesPath == "" {
		cfg.SourcesPath = os.Getenv("SOURCES_PATH")
	}
	if cfg.TuningPath == "" {
		cfg.TuningPath = os.Getenv("TUNING_PATH")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadTuning reads the scoring/keyword YAML, or returns the built-in
// defaults when no path is configured.
func loadTuning(cfg *config.Config) (*config.Tuning, error) {
	if cfg.TuningPath == "" {
		return config.DefaultTuning(), nil
	}
	return config.LoadTuning(cfg.TuningPath)
}

// applicantFromEnv assembles the form-fill identity. The Workday password
// never touches the config file.
func applicantFromEnv() (automation.Applicant, error) {
	a := automation.Applicant{
		FirstName:       os.Getenv("APPLICANT_FIRST_NAME"),
		LastName:        os.Getenv("APPLICANT_LAST_NAME"),
		Email:           os.Getenv("APPLICANT_EMAIL"),
		Phone:           os.Getenv("APPLICANT_PHONE"),
		CurrentCompany:  os.Getenv("APPLICANT_COMPANY"),
		WorkdayPassword: os.Getenv("WORKDAY_PASSWORD"),
		ResumePath:      os.Getenv("APPLICANT_RESUME_PATH"),
		CoverLetterPath: os.Getenv("APPLICANT_COVER_LETTER_PATH"),
	}
	if a.FirstName == "" || a.LastName == "" || a.Email == "" {
		return a, fmt.Errorf("APPLICANT_FIRST_NAME, APPLICANT_LAST_NAME and APPLICANT_EMAIL environment variables are required")
	}
	return a, nil
}
