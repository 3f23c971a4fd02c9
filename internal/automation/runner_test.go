package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

type stubPostings struct {
	posting *types.JobPosting
}

func (s *stubPostings) GetPosting(ctx context.Context, id string) (*types.JobPosting, error) {
	if s.posting == nil {
		return nil, errors.New("posting not found")
	}
	return s.posting, nil
}

type stubProfiles struct {
	profile *types.CandidateProfile
}

func (s *stubProfiles) GetProfile(ctx context.Context, id string) (*types.CandidateProfile, error) {
	if s.profile == nil {
		return nil, errors.New("profile not found")
	}
	return s.profile, nil
}

func testPosting() *types.JobPosting {
	return &types.JobPosting{
		ID:             uuid.New(),
		Title:          "Backend Engineer",
		Company:        "Acme Corp",
		Location:       "Remote",
		ApplicationURL: "https://boards.greenhouse.io/acme/jobs/1",
	}
}

func testProfile() *types.CandidateProfile {
	return &types.CandidateProfile{
		ID:          uuid.New(),
		Skills:      []types.ProfileSkill{{Name: "Go"}},
		TargetRoles: []string{"Backend Engineer"},
	}
}

func TestRunner_PrepareDocuments(t *testing.T) {
	templateDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(templateDir, "resume-basic.tmpl"),
		[]byte("{{.Title}} at {{.Company}}"), 0o644))
	renderer := docgen.NewTemplateRenderer(templateDir, t.TempDir())

	r := NewRunner(&stubPostings{posting: testPosting()}, Applicant{}, false).
		WithDocuments(renderer, &stubProfiles{profile: testProfile()})

	run := workflow.NewRun(uuid.New().String(), uuid.New().String())
	run.Documents.ResumeTemplateID = "resume-basic"

	require.NoError(t, r.PrepareDocuments(context.Background(), run))
	require.NotEmpty(t, run.Documents.ResumeArtifact)

	content, err := os.ReadFile(run.Documents.ResumeArtifact)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer at Acme Corp", string(content))

	// Already-rendered artifacts are not re-rendered.
	before := run.Documents.ResumeArtifact
	require.NoError(t, r.PrepareDocuments(context.Background(), run))
	assert.Equal(t, before, run.Documents.ResumeArtifact)
}

func TestRunner_PrepareDocuments_MissingTemplate(t *testing.T) {
	renderer := docgen.NewTemplateRenderer(t.TempDir(), t.TempDir())
	r := NewRunner(&stubPostings{posting: testPosting()}, Applicant{}, false).
		WithDocuments(renderer, &stubProfiles{profile: testProfile()})

	run := workflow.NewRun(uuid.New().String(), uuid.New().String())
	run.Documents.CoverTemplateID = "missing"

	err := r.PrepareDocuments(context.Background(), run)
	var se *workflow.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, workflow.ErrorKindValidation, se.Kind)
	assert.False(t, se.Transient)
}

func TestRunner_PrepareDocuments_NotConfigured(t *testing.T) {
	r := NewRunner(&stubPostings{posting: testPosting()}, Applicant{}, false)

	run := workflow.NewRun(uuid.New().String(), uuid.New().String())
	run.Documents.ResumeTemplateID = "resume-basic"

	err := r.PrepareDocuments(context.Background(), run)
	var se *workflow.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, workflow.ErrorKindValidation, se.Kind)
}
