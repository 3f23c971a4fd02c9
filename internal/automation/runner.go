// Package automation drives application submissions with a headless browser.
// It implements the workflow step runner: each run gets its own browser
// session, and captcha challenges surface as checkpointed suspensions rather
// than failures.
package automation

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

// Applicant is the identity used to fill application forms.
type Applicant struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	CurrentCompany  string `json:"current_company,omitempty"`
	WorkdayPassword string `json:"-"`
	ResumePath      string `json:"resume_path,omitempty"`
	CoverLetterPath string `json:"cover_letter_path,omitempty"`
}

// PostingSource resolves the posting a run is applying to.
type PostingSource interface {
	GetPosting(ctx context.Context, id string) (*types.JobPosting, error)
}

// ProfileSource resolves the candidate profile behind a run. Only needed
// when document rendering is enabled.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*types.CandidateProfile, error)
}

type runState struct {
	sess     *session
	platform Platform
}

// Runner implements workflow.StepRunner on top of per-run browser sessions.
type Runner struct {
	postings  PostingSource
	applicant Applicant
	verbose   bool

	renderer docgen.Renderer
	profiles ProfileSource

	mu   sync.Mutex
	runs map[string]*runState
}

func NewRunner(postings PostingSource, applicant Applicant, verbose bool) *Runner {
	return &Runner{
		postings:  postings,
		applicant: applicant,
		verbose:   verbose,
		runs:      map[string]*runState{},
	}
}

// WithDocuments enables per-run document rendering. Without it, runs that
// request templates fail their FORM_FILLING step.
func (r *Runner) WithDocuments(renderer docgen.Renderer, profiles ProfileSource) *Runner {
	r.renderer = renderer
	r.profiles = profiles
	return r
}

// PrepareDocuments renders the templates the run asked for and records the
// artifact paths on the run. The workflow engine persists them before the
// form is touched.
func (r *Runner) PrepareDocuments(ctx context.Context, run *workflow.WorkflowRun) error {
	if r.renderer == nil || r.profiles == nil {
		return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "document rendering is not configured"}
	}
	posting, err := r.postings.GetPosting(ctx, run.PostingID)
	if err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindFetch, Message: "load posting", Cause: err}
	}
	profile, err := r.profiles.GetProfile(ctx, run.ProfileID)
	if err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindFetch, Message: "load profile", Cause: err}
	}

	if tid := run.Documents.ResumeTemplateID; tid != "" && run.Documents.ResumeArtifact == "" {
		ref, err := r.renderer.Render(ctx, posting, profile, docgen.DocResume, tid)
		if err != nil {
			return renderStepError("render resume", err)
		}
		run.Documents.ResumeArtifact = ref.Path
	}
	if tid := run.Documents.CoverTemplateID; tid != "" && run.Documents.CoverArtifact == "" {
		ref, err := r.renderer.Render(ctx, posting, profile, docgen.DocCoverLetter, tid)
		if err != nil {
			return renderStepError("render cover letter", err)
		}
		run.Documents.CoverArtifact = ref.Path
	}
	log.Printf("[automation] run %s: documents ready", run.ID)
	return nil
}

// renderStepError maps renderer failures onto the step taxonomy. A missing
// template will be missing on every retry; IO hiccups are worth another
// attempt.
func renderStepError(msg string, err error) error {
	var notFound *docgen.TemplateNotFoundError
	if errors.As(err, &notFound) {
		return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: msg, Cause: err}
	}
	return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: msg, Transient: true, Cause: err}
}

func (r *Runner) state(runID string) *runState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID]
}

// Release closes the browser session of a finished run. The workflow engine
// calls it when a run reaches a terminal state.
func (r *Runner) Release(runID string) {
	r.mu.Lock()
	st := r.runs[runID]
	delete(r.runs, runID)
	r.mu.Unlock()
	if st != nil {
		st.sess.close()
	}
}

// Navigate opens a fresh browser session and loads the posting's apply page.
func (r *Runner) Navigate(ctx context.Context, run *workflow.WorkflowRun) error {
	posting, err := r.postings.GetPosting(ctx, run.PostingID)
	if err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindFetch, Message: "load posting", Cause: err}
	}
	if posting.ApplicationURL == "" {
		return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "posting has no application url"}
	}

	// A retry or captcha resume reuses the existing session.
	st := r.state(run.ID)
	if st == nil {
		st = &runState{
			sess:     newSession(run.ID, r.verbose),
			platform: DetectPlatform(posting.ApplicationURL),
		}
		r.mu.Lock()
		r.runs[run.ID] = st
		r.mu.Unlock()
	}

	if err := st.sess.navigate(ctx, posting.ApplicationURL); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindFetch, Message: "navigate to apply page", Transient: true, Cause: err}
	}
	if err := r.checkCaptcha(ctx, st); err != nil {
		return err
	}
	log.Printf("[automation] run %s: opened %s apply page (%s)", run.ID, st.platform, posting.ApplicationURL)
	return nil
}

// Authenticate logs in when the platform gates applications behind an
// account. Platforms without a login wall pass straight through.
func (r *Runner) Authenticate(ctx context.Context, run *workflow.WorkflowRun) error {
	st := r.state(run.ID)
	if st == nil {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "no browser session for run"}
	}
	sel := Selectors(st.platform)
	if sel.LoginEmail == "" {
		return nil
	}

	present, err := st.sess.present(ctx, sel.LoginEmail)
	if err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "probe login form", Transient: true, Cause: err}
	}
	if !present {
		return nil // already signed in, or this tenant does not require it
	}
	if r.applicant.WorkdayPassword == "" {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "login required but no credentials configured"}
	}

	if err := st.sess.fill(ctx, sel.LoginEmail, r.applicant.Email); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "fill login email", Transient: true, Cause: err}
	}
	if err := st.sess.fill(ctx, sel.LoginPassword, r.applicant.WorkdayPassword); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "fill login password", Transient: true, Cause: err}
	}
	if err := st.sess.click(ctx, sel.LoginSubmit); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindAuth, Message: "submit login", Transient: true, Cause: err}
	}
	return r.checkCaptcha(ctx, st)
}

// FillForm opens the application form and fills the applicant's details.
func (r *Runner) FillForm(ctx context.Context, run *workflow.WorkflowRun) error {
	st := r.state(run.ID)
	if st == nil {
		return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "no browser session for run"}
	}
	sel := Selectors(st.platform)

	if sel.ApplyButton != "" {
		present, err := st.sess.present(ctx, sel.ApplyButton)
		if err != nil {
			return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "probe apply button", Transient: true, Cause: err}
		}
		if present {
			if err := st.sess.click(ctx, sel.ApplyButton); err != nil {
				return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "open application form", Transient: true, Cause: err}
			}
		}
	}

	for field, fieldSel := range sel.Fields {
		value := fieldValue(field, r.applicant)
		if value == "" {
			continue
		}
		present, err := st.sess.present(ctx, fieldSel)
		if err != nil {
			return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "probe form field " + field, Transient: true, Cause: err}
		}
		if !present {
			continue
		}
		if err := st.sess.fill(ctx, fieldSel, value); err != nil {
			return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "fill field " + field, Transient: true, Cause: err}
		}
	}

	// A freshly rendered resume beats the applicant's static one.
	resume := run.Documents.ResumeArtifact
	if resume == "" {
		resume = r.applicant.ResumePath
	}
	if resume != "" {
		if err := r.attachFile(ctx, st, resumeSelector(st.platform), resume); err != nil {
			return err
		}
	}
	return r.checkCaptcha(ctx, st)
}

// Submit clicks the final submit control and verifies the confirmation page.
func (r *Runner) Submit(ctx context.Context, run *workflow.WorkflowRun) error {
	st := r.state(run.ID)
	if st == nil {
		return &workflow.StepError{Kind: workflow.ErrorKindSubmission, Message: "no browser session for run"}
	}
	if err := r.checkCaptcha(ctx, st); err != nil {
		return err
	}

	sel := Selectors(st.platform)
	if err := st.sess.click(ctx, sel.Submit); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindSubmission, Message: "click submit", Transient: true, Cause: err}
	}
	if err := r.checkCaptcha(ctx, st); err != nil {
		return err
	}

	if sel.Confirmation != "" {
		confirmed, err := st.sess.present(ctx, sel.Confirmation)
		if err != nil {
			return &workflow.StepError{Kind: workflow.ErrorKindSubmission, Message: "probe confirmation", Cause: err}
		}
		if !confirmed {
			return &workflow.StepError{Kind: workflow.ErrorKindSubmission, Message: "no confirmation after submit"}
		}
	}
	return nil
}

// checkCaptcha suspends the run when a captcha widget is on the page.
func (r *Runner) checkCaptcha(ctx context.Context, st *runState) error {
	found, err := st.sess.captchaPresent(ctx)
	if err != nil {
		// Cannot probe the page at all; treat as a transient page problem.
		return &workflow.StepError{Kind: workflow.ErrorKindFetch, Message: "probe for captcha", Transient: true, Cause: err}
	}
	if !found {
		return nil
	}
	return &workflow.CaptchaDetectedError{Checkpoint: st.sess.checkpoint(ctx)}
}

func (r *Runner) attachFile(ctx context.Context, st *runState, selector, path string) error {
	present, err := st.sess.present(ctx, selector)
	if err != nil || !present {
		return nil // not every form wants an upload
	}
	if err := st.sess.run(ctx, setFileInput(selector, path)); err != nil {
		return &workflow.StepError{Kind: workflow.ErrorKindValidation, Message: "attach resume", Transient: true, Cause: err}
	}
	return nil
}

func resumeSelector(p Platform) string {
	switch p {
	case PlatformGreenhouse:
		return "input#resume"
	case PlatformLever:
		return `input[name="resume"]`
	}
	return `input[type="file"]`
}
