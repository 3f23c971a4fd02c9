package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"database_url": "postgres://localhost/jobhunt",
		"scrape_workers": 8,
		"max_active_runs": 3,
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/jobhunt", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.ScrapeWorkers)
	assert.Equal(t, 3, cfg.MaxActiveRuns)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{not json`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_ValidateRejectsNegatives(t *testing.T) {
	cfg := &Config{ScrapeWorkers: -1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{MaxActiveRuns: -2}
	assert.Error(t, cfg.Validate())
}

func TestConfig_ValidateMissingSourcesFile(t *testing.T) {
	cfg := &Config{SourcesPath: "/nonexistent/sources.json"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources file not found")
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, 4, cfg.ScrapeWorkers)
	assert.Equal(t, 3, cfg.ArchiveAfter)
	assert.Equal(t, 2, cfg.MaxActiveRuns)
	assert.Equal(t, 3, cfg.MaxStepAttempts)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadTuning_Defaults(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	require.NoError(t, tuning.Validate())
	assert.NotEmpty(t, tuning.SponsorshipKeywords)
	assert.NotEmpty(t, tuning.SkillVocabulary)
}

func TestLoadTuning_OverridesAndValidates(t *testing.T) {
	path := writeFile(t, "tuning.yaml", `
weights:
  skill_overlap: 0.5
  title_similarity: 0.2
  location_match: 0.2
  sponsorship: 0.1
exclusion_keywords:
  - clearance
`)
	tuning, err := LoadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tuning.Weights.SkillOverlap)
	assert.Equal(t, []string{"clearance"}, tuning.ExclusionKeywords)
	// Untouched sections keep defaults
	assert.NotEmpty(t, tuning.SponsorshipKeywords)
}

func TestLoadTuning_RejectsBadWeightSum(t *testing.T) {
	path := writeFile(t, "tuning.yaml", `
weights:
  skill_overlap: 0.9
  title_similarity: 0.9
  location_match: 0.1
  sponsorship: 0.1
`)
	_, err := LoadTuning(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}
