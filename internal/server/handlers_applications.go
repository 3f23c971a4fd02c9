package server

import (
	"net/http"

	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

// StartApplicationRequest is the body for POST /applications. Template ids
// are optional; when present the run renders those documents before filling
// the form.
type StartApplicationRequest struct {
	PostingID        string `json:"posting_id" validate:"required,uuid4"`
	ProfileID        string `json:"profile_id" validate:"required,uuid4"`
	ResumeTemplateID string `json:"resume_template_id,omitempty"`
	CoverTemplateID  string `json:"cover_template_id,omitempty"`
}

// ApplicationResponse is the API shape of a workflow run.
type ApplicationResponse struct {
	RunID        string `json:"run_id"`
	PostingID    string `json:"posting_id"`
	ProfileID    string `json:"profile_id"`
	State        string `json:"state"`
	Attempts     int    `json:"attempts,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Documents workflow.Documents `json:"documents"`
}

func applicationResponse(run *workflow.WorkflowRun) ApplicationResponse {
	return ApplicationResponse{
		RunID:        run.ID,
		PostingID:    run.PostingID,
		ProfileID:    run.ProfileID,
		State:        string(run.State),
		Attempts:     run.Attempts,
		ErrorKind:    string(run.ErrorKind),
		ErrorMessage: run.ErrorMessage,
		Documents:    run.Documents,
	}
}

// handleStartApplication begins an automated application for a posting.
// Duplicate (posting, profile) pairs are rejected with 409 while a run is
// still active.
func (s *Server) handleStartApplication(w http.ResponseWriter, r *http.Request) {
	var req StartApplicationRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	// The posting must exist before a browser is pointed at it.
	if _, err := s.store.GetPosting(r.Context(), req.PostingID); err != nil {
		s.errorResponse(w, HTTPStatus(err), "posting: "+err.Error())
		return
	}
	if _, err := s.store.GetProfile(r.Context(), req.ProfileID); err != nil {
		s.errorResponse(w, HTTPStatus(err), "profile: "+err.Error())
		return
	}

	run, err := s.workflows.Start(r.Context(), req.PostingID, req.ProfileID, workflow.Documents{
		ResumeTemplateID: req.ResumeTemplateID,
		CoverTemplateID:  req.CoverTemplateID,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, applicationResponse(run))
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	run, err := s.workflows.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, applicationResponse(run))
}

// handleResumeCaptcha signals that a human solved the captcha a run is
// parked on.
func (s *Server) handleResumeCaptcha(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.workflows.ResumeCaptcha(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"run_id": id, "resumed": "true"})
}

// handleCancelApplication requests cooperative cancellation of a run.
func (s *Server) handleCancelApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.workflows.Cancel(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"run_id": id, "cancel_requested": "true"})
}

// StatsResponse reports workflow run counts per state.
type StatsResponse struct {
	Total    int            `json:"total"`
	ByState  map[string]int `json:"by_state"`
	Active   int            `json:"active"`
	Terminal int            `json:"terminal"`
}

func (s *Server) handleApplicationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.RunStats(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	resp := StatsResponse{ByState: map[string]int{}}
	for state, count := range stats {
		resp.ByState[string(state)] = count
		resp.Total += count
		if workflow.IsTerminal(state) {
			resp.Terminal += count
		} else {
			resp.Active += count
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
