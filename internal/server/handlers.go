package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// ScrapeResponse summarizes one scrape cycle for the caller.
type ScrapeResponse struct {
	Sources   int                  `json:"sources"`
	Succeeded int                  `json:"succeeded"`
	Results   []ScrapeSourceResult `json:"results"`
}

// ScrapeSourceResult is the per-source slice of a ScrapeResponse.
type ScrapeSourceResult struct {
	SourceID  string `json:"source_id"`
	Extracted int    `json:"extracted"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Dropped   int    `json:"dropped"`
	Archived  int    `json:"archived"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ScrapeRequest optionally narrows a cycle to named sources. An empty body
// or empty list means every enabled source.
type ScrapeRequest struct {
	SourceIDs []string `json:"source_ids,omitempty"`
}

// handleScrape runs one scrape cycle and reports the per-source outcomes.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	summary := s.scraper.RunSources(r.Context(), req.SourceIDs)
	if summary == nil {
		s.errorResponse(w, http.StatusConflict, "a scrape cycle is already running")
		return
	}

	resp := ScrapeResponse{
		Sources:   len(summary.Results),
		Succeeded: summary.Succeeded(),
	}
	for _, res := range summary.Results {
		out := ScrapeSourceResult{
			SourceID:  res.SourceID,
			Extracted: res.Extracted,
			Inserted:  res.Inserted,
			Updated:   res.Updated,
			Dropped:   res.Dropped,
			Archived:  res.Archived,
			ErrorKind: res.ErrKind,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleListPostings returns stored postings, optionally filtered by status.
func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	status := types.PostingStatus(r.URL.Query().Get("status"))
	switch status {
	case "", types.PostingStatusNew, types.PostingStatusReviewed,
		types.PostingStatusApplied, types.PostingStatusRejected,
		types.PostingStatusArchived:
	default:
		s.errorResponse(w, http.StatusBadRequest, "unknown posting status")
		return
	}

	postings, err := s.store.ListPostings(r.Context(), status, 0)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if postings == nil {
		postings = []*types.JobPosting{}
	}
	s.jsonResponse(w, http.StatusOK, postings)
}

// PostingStatusRequest is the body for PUT /postings/{id}/status.
type PostingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new reviewed applied rejected archived"`
}

func (s *Server) handleSetPostingStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req PostingStatusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if err := s.store.SetPostingStatus(r.Context(), id, types.PostingStatus(req.Status)); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}
