package types

import (
	"time"

	"github.com/google/uuid"
)

// MatchFactor is one contributing term of a match score. Raw is the
// factor's unweighted value in [0,1]; Weight is its share of the total.
type MatchFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Raw    float64 `json:"raw"`
}

// MatchResult is the outcome of scoring one posting against one profile.
// Results are append-only: recomputation supersedes, never mutates.
type MatchResult struct {
	ID         uuid.UUID     `json:"id"`
	PostingID  uuid.UUID     `json:"posting_id"`
	ProfileID  uuid.UUID     `json:"profile_id"`
	Score      float64       `json:"score"`
	Factors    []MatchFactor `json:"factors"`
	ComputedAt time.Time     `json:"computed_at"`
}
