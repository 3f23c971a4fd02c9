// Package matching scores normalized postings against a candidate profile.
// Scoring is deterministic: a weighted sum of independent factors, each
// normalized to [0,1], with sponsorship compliance acting as a hard filter.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobhunt-pipeline/internal/config"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// Factor names as they appear in MatchResult.Factors.
const (
	FactorSkillOverlap    = "skill_overlap"
	FactorTitleSimilarity = "title_similarity"
	FactorLocationMatch   = "location_match"
	FactorSponsorship     = "sponsorship"
)

// Engine computes match results. It never mutates postings; each scoring
// pass appends a fresh MatchResult.
type Engine struct {
	tuning *config.Tuning
}

// NewEngine creates an Engine. A nil tuning uses the built-in defaults.
func NewEngine(tuning *config.Tuning) *Engine {
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	return &Engine{tuning: tuning}
}

// Score computes the match between one posting and one profile.
func (e *Engine) Score(posting *types.JobPosting, profile *types.CandidateProfile) *types.MatchResult {
	postingSkills := e.ExtractSkills(posting)

	type term struct {
		name   string
		weight float64
		raw    float64
		active bool
	}

	skillRaw, skillActive := skillOverlap(profile, postingSkills)
	terms := []term{
		{FactorSkillOverlap, e.tuning.Weights.SkillOverlap, skillRaw, skillActive},
		{FactorTitleSimilarity, e.tuning.Weights.TitleSimilarity, titleSimilarity(profile.TargetRoles, posting.Title), true},
		{FactorLocationMatch, e.tuning.Weights.LocationMatch, locationMatch(profile.PreferredLocations, posting.Location), true},
		{FactorSponsorship, e.tuning.Weights.Sponsorship, sponsorshipCompliance(profile, posting), true},
	}

	// When the posting lists no skills the skill factor is excluded and the
	// remaining weights are renormalized so they still sum to 1.0.
	activeWeight := 0.0
	for _, t := range terms {
		if t.active {
			activeWeight += t.weight
		}
	}

	score := 0.0
	factors := make([]types.MatchFactor, 0, len(terms))
	for _, t := range terms {
		weight := 0.0
		if t.active && activeWeight > 0 {
			weight = t.weight / activeWeight
			score += weight * t.raw
		}
		factors = append(factors, types.MatchFactor{Name: t.name, Weight: weight, Raw: t.raw})
	}

	// Hard filter: a non-sponsoring posting is categorically inapplicable
	// when the candidate requires sponsorship, whatever the other factors
	// say.
	if profile.RequiresSponsorship && !posting.Sponsorship {
		score = 0.0
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	return &types.MatchResult{
		ID:         uuid.New(),
		PostingID:  posting.ID,
		ProfileID:  profile.ID,
		Score:      score,
		Factors:    factors,
		ComputedAt: time.Now().UTC(),
	}
}

// ExtractSkills scans the posting title and description for the configured
// skill vocabulary. The posting record itself stays untouched.
func (e *Engine) ExtractSkills(posting *types.JobPosting) []string {
	text := " " + strings.ToLower(posting.Title+" "+posting.Description) + " "
	var found []string
	for _, skill := range e.tuning.SkillVocabulary {
		needle := strings.ToLower(skill)
		// Delimit single-word skills so "go" doesn't match "google".
		if strings.ContainsAny(needle, " /") {
			if strings.Contains(text, needle) {
				found = append(found, needle)
			}
			continue
		}
		for _, token := range tokenize(text) {
			if token == needle {
				found = append(found, needle)
				break
			}
		}
	}
	return found
}

// skillOverlap returns |profile ∩ posting| / |posting| and whether the
// factor is active. A posting listing no skills excludes the factor.
func skillOverlap(profile *types.CandidateProfile, postingSkills []string) (float64, bool) {
	if len(postingSkills) == 0 {
		return 0.0, false
	}
	profileSet := make(map[string]bool, len(profile.Skills))
	for _, s := range profile.Skills {
		profileSet[strings.ToLower(strings.TrimSpace(s.Name))] = true
	}
	matched := 0
	for _, s := range postingSkills {
		if profileSet[s] {
			matched++
		}
	}
	return float64(matched) / float64(len(postingSkills)), true
}

// titleSimilarity is the best token-overlap ratio between any target role
// and the posting title.
func titleSimilarity(targetRoles []string, title string) float64 {
	titleTokens := tokenSet(title)
	if len(titleTokens) == 0 {
		return 0.0
	}
	best := 0.0
	for _, role := range targetRoles {
		roleTokens := tokenSet(role)
		if len(roleTokens) == 0 {
			continue
		}
		overlap := 0
		for token := range roleTokens {
			if titleTokens[token] {
				overlap++
			}
		}
		union := len(roleTokens) + len(titleTokens) - overlap
		if union == 0 {
			continue
		}
		if ratio := float64(overlap) / float64(union); ratio > best {
			best = ratio
		}
	}
	return best
}

// locationMatch returns 1.0 for an exact or remote match, 0.5 for a shared
// metro with a preferred location, 0 otherwise.
func locationMatch(preferred []string, location string) float64 {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return 0.0
	}
	if strings.Contains(loc, "remote") {
		return 1.0
	}
	for _, p := range preferred {
		pl := strings.ToLower(strings.TrimSpace(p))
		if pl == "" {
			continue
		}
		if pl == loc {
			return 1.0
		}
	}
	for _, p := range preferred {
		pl := strings.ToLower(strings.TrimSpace(p))
		if pl == "" {
			continue
		}
		// Same metro: one contains the other's city token, e.g.
		// "New York, NY" vs "New York".
		if strings.Contains(loc, pl) || strings.Contains(pl, loc) {
			return 0.5
		}
	}
	return 0.0
}

func sponsorshipCompliance(profile *types.CandidateProfile, posting *types.JobPosting) float64 {
	if !profile.RequiresSponsorship || posting.Sponsorship {
		return 1.0
	}
	return 0.0
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '+' || r == '#')
	})
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}

// Ranked pairs a result with its posting for ordering.
type Ranked struct {
	Result  types.MatchResult
	Posting types.JobPosting
}

// Rank sorts results by score descending; ties break by the posting's
// first-seen timestamp, newer first.
func Rank(results []types.MatchResult, postings map[uuid.UUID]types.JobPosting) []Ranked {
	ranked := make([]Ranked, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, Ranked{Result: r, Posting: postings[r.PostingID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Result.Score != ranked[j].Result.Score {
			return ranked[i].Result.Score > ranked[j].Result.Score
		}
		return ranked[i].Posting.FirstSeen.After(ranked[j].Posting.FirstSeen)
	})
	return ranked
}
