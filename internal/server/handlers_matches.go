package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/jobhunt-pipeline/internal/matching"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// SaveProfileRequest is the body for POST /profiles.
type SaveProfileRequest struct {
	ID                  string                   `json:"id,omitempty" validate:"omitempty,uuid4"`
	Skills              []types.ProfileSkill     `json:"skills" validate:"required,min=1,dive"`
	WorkHistory         []types.WorkHistoryEntry `json:"work_history,omitempty"`
	TargetRoles         []string                 `json:"target_roles" validate:"required,min=1"`
	PreferredLocations  []string                 `json:"preferred_locations,omitempty"`
	RequiresSponsorship bool                     `json:"requires_sponsorship"`
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req SaveProfileRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	profile := &types.CandidateProfile{
		Skills:              req.Skills,
		WorkHistory:         req.WorkHistory,
		TargetRoles:         req.TargetRoles,
		PreferredLocations:  req.PreferredLocations,
		RequiresSponsorship: req.RequiresSponsorship,
	}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid profile id")
			return
		}
		profile.ID = id
	} else {
		profile.ID = uuid.New()
	}

	if err := s.store.SaveProfile(r.Context(), profile); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// ComputeMatchesRequest is the body for POST /matches/compute.
type ComputeMatchesRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid4"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
}

// MatchEntry pairs a scored posting with its factor breakdown.
type MatchEntry struct {
	Posting *types.JobPosting  `json:"posting"`
	Match   *types.MatchResult `json:"match"`
}

// handleComputeMatches scores every reviewable posting against the profile,
// persists the results, and returns them ranked.
func (s *Server) handleComputeMatches(w http.ResponseWriter, r *http.Request) {
	var req ComputeMatchesRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	profile, err := s.store.GetProfile(r.Context(), req.ProfileID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	postings, err := s.store.ListPostings(r.Context(), "", 0)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	var results []types.MatchResult
	byID := make(map[uuid.UUID]types.JobPosting, len(postings))
	for _, posting := range postings {
		// Archived and keyword-excluded postings never reach scoring.
		if posting.Status == types.PostingStatusArchived || posting.Excluded {
			continue
		}
		result := s.matcher.Score(posting, profile)
		if err := s.store.SaveMatchResult(r.Context(), result); err != nil {
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		results = append(results, *result)
		byID[posting.ID] = *posting
	}

	ranked := matching.Rank(results, byID)
	limit := req.Limit
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]MatchEntry, 0, len(ranked))
	for i := range ranked {
		posting := ranked[i].Posting
		match := ranked[i].Result
		entries = append(entries, MatchEntry{Posting: &posting, Match: &match})
	}
	s.jsonResponse(w, http.StatusOK, entries)
}

// handleListMatches returns the stored match results for a profile.
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	matches, err := s.store.ListMatchesForProfile(r.Context(), id, 0)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if matches == nil {
		matches = []*types.MatchResult{}
	}
	s.jsonResponse(w, http.StatusOK, matches)
}
