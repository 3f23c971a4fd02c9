package server

import (
	"net/http"

	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
)

// GenerateDocumentRequest is the body for POST /documents.
type GenerateDocumentRequest struct {
	PostingID  string `json:"posting_id" validate:"required,uuid4"`
	ProfileID  string `json:"profile_id" validate:"required,uuid4"`
	DocType    string `json:"doc_type" validate:"required,oneof=resume cover_letter"`
	TemplateID string `json:"template_id" validate:"required"`
}

// handleGenerateDocument renders an application document for a posting and
// profile.
func (s *Server) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		s.errorResponse(w, http.StatusNotImplemented, "document generation is not configured")
		return
	}

	var req GenerateDocumentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	posting, err := s.store.GetPosting(r.Context(), req.PostingID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "posting: "+err.Error())
		return
	}
	profile, err := s.store.GetProfile(r.Context(), req.ProfileID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "profile: "+err.Error())
		return
	}

	docType, err := docgen.ParseDocType(req.DocType)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.renderer.Render(r.Context(), posting, profile, docType, req.TemplateID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, ref)
}
