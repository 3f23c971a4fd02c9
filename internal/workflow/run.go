// Package workflow drives automated application submissions through an
// explicit state machine.
//
// Happy path:
//
//	PENDING ──► NAVIGATING ──► AUTHENTICATING ──► FORM_FILLING ──► SUBMITTING ──► CONFIRMED
//
// Any in-flight step may detour to CAPTCHA_PENDING (waiting on a human) or
// RETRYING (transient failure, bounded re-attempts). CONFIRMED, FAILED and
// ABANDONED are terminal.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the persisted lifecycle position of a run.
type State string

const (
	StatePending        State = "PENDING"
	StateNavigating     State = "NAVIGATING"
	StateAuthenticating State = "AUTHENTICATING"
	StateFormFilling    State = "FORM_FILLING"
	StateCaptchaPending State = "CAPTCHA_PENDING"
	StateSubmitting     State = "SUBMITTING"
	StateRetrying       State = "RETRYING"
	StateConfirmed      State = "CONFIRMED"
	StateFailed         State = "FAILED"
	StateAbandoned      State = "ABANDONED"
)

// ErrorKind classifies why a run failed, so operators can separate network
// trouble from credential or form problems without reading stack traces.
type ErrorKind string

const (
	ErrorKindFetch       ErrorKind = "fetch_error"
	ErrorKindParse       ErrorKind = "parse_error"
	ErrorKindValidation  ErrorKind = "validation_error"
	ErrorKindCaptcha     ErrorKind = "captcha_challenge"
	ErrorKindAuth        ErrorKind = "authentication_error"
	ErrorKindSubmission  ErrorKind = "submission_error"
	ErrorKindConcurrency ErrorKind = "concurrency_conflict"
	ErrorKindCanceled    ErrorKind = "canceled"
)

// Sentinel errors returned by the engine and its stores.
var (
	ErrRunActive       = errors.New("an active run already exists for this posting and profile")
	ErrRunNotFound     = errors.New("workflow run not found")
	ErrRunTerminal     = errors.New("workflow run already reached a terminal state")
	ErrVersionConflict = errors.New("workflow run was modified concurrently")
	ErrNotWaiting      = errors.New("workflow run is not waiting on a captcha")
)

// Checkpoint captures enough browser context to resume a run after a human
// solves a captcha: session cookies, where the captcha appeared, and the
// form fields already filled.
type Checkpoint struct {
	Cookies      map[string]string `json:"cookies,omitempty"`
	PageURL      string            `json:"page_url,omitempty"`
	FrameTarget  string            `json:"frame_target,omitempty"`
	FilledFields map[string]string `json:"filled_fields,omitempty"`
	TakenAt      time.Time         `json:"taken_at"`
}

// Documents carries the template ids requested when the run started and the
// artifact paths rendered from them ahead of form filling.
type Documents struct {
	ResumeTemplateID string `json:"resume_template_id,omitempty"`
	CoverTemplateID  string `json:"cover_template_id,omitempty"`
	ResumeArtifact   string `json:"resume_artifact,omitempty"`
	CoverArtifact    string `json:"cover_artifact,omitempty"`
}

// Empty reports whether no templates were requested.
func (d Documents) Empty() bool {
	return d.ResumeTemplateID == "" && d.CoverTemplateID == ""
}

// Rendered reports whether every requested template has an artifact.
func (d Documents) Rendered() bool {
	if d.ResumeTemplateID != "" && d.ResumeArtifact == "" {
		return false
	}
	if d.CoverTemplateID != "" && d.CoverArtifact == "" {
		return false
	}
	return true
}

// WorkflowRun is one attempt to apply to a posting on behalf of a profile.
// Version supports optimistic concurrency at the store boundary.
type WorkflowRun struct {
	ID           string      `json:"id"`
	PostingID    string      `json:"posting_id"`
	ProfileID    string      `json:"profile_id"`
	State        State       `json:"state"`
	ResumeState  State       `json:"resume_state,omitempty"` // step to re-enter after RETRYING or CAPTCHA_PENDING
	Attempts     int         `json:"attempts"`               // attempts of the current step
	ErrorKind    ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Documents    Documents   `json:"documents"`
	Checkpoint   *Checkpoint `json:"checkpoint,omitempty"`
	Version      int         `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// NewRun builds a pending run for the given posting and profile.
func NewRun(postingID, profileID string) *WorkflowRun {
	now := time.Now().UTC()
	return &WorkflowRun{
		ID:        uuid.New().String(),
		PostingID: postingID,
		ProfileID: profileID,
		State:     StatePending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the run can no longer change state.
func (r *WorkflowRun) Terminal() bool { return IsTerminal(r.State) }

// CaptchaDetectedError is returned by a step runner when the page presents a
// captcha. The engine suspends the run and waits for a human.
type CaptchaDetectedError struct {
	Checkpoint *Checkpoint
}

func (e *CaptchaDetectedError) Error() string { return "captcha challenge detected" }

// StepError is a classified failure from a step runner. Transient errors are
// retried up to the configured bound; the rest fail the run immediately.
type StepError struct {
	Kind      ErrorKind
	Message   string
	Transient bool
	Cause     error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StepError) Unwrap() error { return e.Cause }
