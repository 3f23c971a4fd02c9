package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the knobs the matching engine and normalizer treat as
// configuration inputs: factor weights, keyword lists, and the skill
// vocabulary used to read skills out of posting text.
type Tuning struct {
	Weights struct {
		SkillOverlap    float64 `yaml:"skill_overlap"`
		TitleSimilarity float64 `yaml:"title_similarity"`
		LocationMatch   float64 `yaml:"location_match"`
		Sponsorship     float64 `yaml:"sponsorship"`
	} `yaml:"weights"`

	SponsorshipKeywords []string `yaml:"sponsorship_keywords"`
	ExclusionKeywords   []string `yaml:"exclusion_keywords"`
	SkillVocabulary     []string `yaml:"skill_vocabulary"`
}

// DefaultTuning returns the built-in weights and keyword lists. The
// sponsorship negatives live in the normalizer; these are the positive
// signals and the exclusions.
func DefaultTuning() *Tuning {
	t := &Tuning{}
	t.Weights.SkillOverlap = 0.4
	t.Weights.TitleSimilarity = 0.3
	t.Weights.LocationMatch = 0.2
	t.Weights.Sponsorship = 0.1
	t.SponsorshipKeywords = []string{
		"h1b", "h-1b", "visa sponsorship", "sponsorship available",
		"will sponsor", "sponsor work visa", "work authorization sponsorship",
	}
	t.ExclusionKeywords = []string{
		"security clearance", "ts/sci", "citizenship required",
		"unpaid", "commission only",
	}
	t.SkillVocabulary = []string{
		"go", "golang", "python", "java", "typescript", "javascript", "rust",
		"kubernetes", "docker", "terraform", "aws", "gcp", "azure",
		"postgresql", "mysql", "redis", "kafka", "grpc", "rest", "sql",
		"react", "node", "linux", "ci/cd", "microservices",
	}
	return t
}

// LoadTuning reads a tuning YAML file, filling omitted sections from the
// defaults and validating that the weights sum to 1.0.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}

	t := DefaultTuning()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning YAML %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate checks the weight invariant. Factors are normalized before
// weighting, so the weights themselves must form a partition of 1.0.
func (t *Tuning) Validate() error {
	sum := t.Weights.SkillOverlap + t.Weights.TitleSimilarity +
		t.Weights.LocationMatch + t.Weights.Sponsorship
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("factor weights must sum to 1.0, got %.4f", sum)
	}
	for name, w := range map[string]float64{
		"skill_overlap":    t.Weights.SkillOverlap,
		"title_similarity": t.Weights.TitleSimilarity,
		"location_match":   t.Weights.LocationMatch,
		"sponsorship":      t.Weights.Sponsorship,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be non-negative", name)
		}
	}
	return nil
}
