package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

func testProfile() *types.CandidateProfile {
	return &types.CandidateProfile{
		ID: uuid.New(),
		Skills: []types.ProfileSkill{
			{Name: "Go"},
			{Name: "PostgreSQL"},
			{Name: "Kubernetes"},
		},
		TargetRoles:        []string{"Backend Engineer"},
		PreferredLocations: []string{"New York, NY"},
	}
}

func testPosting() *types.JobPosting {
	return &types.JobPosting{
		ID:          uuid.New(),
		Title:       "Backend Engineer",
		Company:     "Acme",
		Location:    "New York, NY",
		Description: "We use Go and PostgreSQL. Kubernetes experience a plus.",
		Sponsorship: true,
		FirstSeen:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestScore_FactorsSumToOne(t *testing.T) {
	e := NewEngine(nil)
	result := e.Score(testPosting(), testProfile())

	sum := 0.0
	for _, f := range result.Factors {
		sum += f.Weight
		assert.GreaterOrEqual(t, f.Raw, 0.0)
		assert.LessOrEqual(t, f.Raw, 1.0)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, result.Score, 0.9, "strong match across every factor")
	assert.LessOrEqual(t, result.Score, 1.0)
}

func TestScore_MonotonicInSkillOverlap(t *testing.T) {
	e := NewEngine(nil)
	profile := testProfile()

	low := testPosting()
	low.Description = "We use Go, Java, Rust, Python and Kafka." // 1 of 5 matched

	high := testPosting()
	high.Description = "We use Go, PostgreSQL and Kubernetes." // 3 of 3 matched

	lowResult := e.Score(low, profile)
	highResult := e.Score(high, profile)
	assert.Greater(t, highResult.Score, lowResult.Score,
		"score must rise with skill-overlap ratio, other factors fixed")
}

func TestScore_SponsorshipHardFilter(t *testing.T) {
	e := NewEngine(nil)
	profile := testProfile()
	profile.RequiresSponsorship = true

	posting := testPosting()
	posting.Sponsorship = false

	result := e.Score(posting, profile)
	assert.Equal(t, 0.0, result.Score,
		"non-sponsoring posting is categorically inapplicable")

	// The factor breakdown is still recorded for diagnosis
	var sponsorRaw float64 = -1
	for _, f := range result.Factors {
		if f.Name == FactorSponsorship {
			sponsorRaw = f.Raw
		}
	}
	assert.Equal(t, 0.0, sponsorRaw)

	// Sponsoring posting passes
	posting.Sponsorship = true
	result = e.Score(posting, profile)
	assert.Greater(t, result.Score, 0.0)
}

func TestScore_NoPostingSkillsRenormalizes(t *testing.T) {
	e := NewEngine(nil)
	posting := testPosting()
	posting.Description = "An exciting opportunity with great benefits."

	result := e.Score(posting, testProfile())

	sum := 0.0
	var skillWeight float64 = -1
	for _, f := range result.Factors {
		sum += f.Weight
		if f.Name == FactorSkillOverlap {
			skillWeight = f.Weight
		}
	}
	assert.Equal(t, 0.0, skillWeight, "excluded factor carries zero weight")
	assert.InDelta(t, 1.0, sum, 1e-9, "remaining weights renormalize to 1.0")
	assert.Greater(t, result.Score, 0.0, "other factors still contribute")
}

func TestScore_NeverMutatesPosting(t *testing.T) {
	e := NewEngine(nil)
	posting := testPosting()
	before := *posting
	_ = e.Score(posting, testProfile())
	assert.Equal(t, before, *posting)
}

func TestExtractSkills_WordBoundaries(t *testing.T) {
	e := NewEngine(nil)
	posting := testPosting()
	posting.Title = "Engineer"
	posting.Description = "We are google scale." // must not match "go"
	skills := e.ExtractSkills(posting)
	assert.NotContains(t, skills, "go")

	posting.Description = "Write Go every day."
	skills = e.ExtractSkills(posting)
	assert.Contains(t, skills, "go")
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, titleSimilarity([]string{"Backend Engineer"}, "Backend Engineer"))
	assert.Equal(t, 0.0, titleSimilarity([]string{"Backend Engineer"}, "Accountant"))

	partial := titleSimilarity([]string{"Backend Engineer"}, "Senior Backend Engineer")
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)

	// Best match across multiple target roles wins
	multi := titleSimilarity([]string{"Accountant", "Backend Engineer"}, "Backend Engineer")
	assert.Equal(t, 1.0, multi)
}

func TestLocationMatch_Tiers(t *testing.T) {
	preferred := []string{"New York"}
	assert.Equal(t, 1.0, locationMatch(preferred, "Remote"))
	assert.Equal(t, 1.0, locationMatch([]string{"New York, NY"}, "new york, ny"))
	assert.Equal(t, 0.5, locationMatch(preferred, "New York, NY"))
	assert.Equal(t, 0.0, locationMatch(preferred, "Austin, TX"))
	assert.Equal(t, 0.0, locationMatch(preferred, ""))
}

func TestRank_TieBreaksByFirstSeenNewnessFirst(t *testing.T) {
	older := testPosting()
	older.FirstSeen = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testPosting()
	newer.ID = uuid.New()
	newer.FirstSeen = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	results := []types.MatchResult{
		{ID: uuid.New(), PostingID: older.ID, Score: 0.8},
		{ID: uuid.New(), PostingID: newer.ID, Score: 0.8},
		{ID: uuid.New(), PostingID: uuid.New(), Score: 0.9},
	}
	postings := map[uuid.UUID]types.JobPosting{
		older.ID: *older,
		newer.ID: *newer,
	}

	ranked := Rank(results, postings)
	require.Len(t, ranked, 3)
	assert.Equal(t, 0.9, ranked[0].Result.Score)
	assert.Equal(t, newer.ID, ranked[1].Result.PostingID, "newer posting wins the tie")
	assert.Equal(t, older.ID, ranked[2].Result.PostingID)
}
