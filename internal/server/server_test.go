package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobhunt-pipeline/internal/db"
	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/matching"
	"github.com/jonathan/jobhunt-pipeline/internal/scrape"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

type fakeStore struct {
	postings map[string]*types.JobPosting
	profiles map[string]*types.CandidateProfile
	matches  []*types.MatchResult
	stats    map[workflow.State]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		postings: map[string]*types.JobPosting{},
		profiles: map[string]*types.CandidateProfile{},
		stats:    map[workflow.State]int{},
	}
}

func (s *fakeStore) ListPostings(ctx context.Context, status types.PostingStatus, limit int) ([]*types.JobPosting, error) {
	var out []*types.JobPosting
	for _, p := range s.postings {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPosting(ctx context.Context, id string) (*types.JobPosting, error) {
	p, ok := s.postings[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) SetPostingStatus(ctx context.Context, id string, status types.PostingStatus) error {
	p, ok := s.postings[id]
	if !ok {
		return db.ErrNotFound
	}
	p.Status = status
	return nil
}

func (s *fakeStore) GetProfile(ctx context.Context, id string) (*types.CandidateProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) SaveProfile(ctx context.Context, p *types.CandidateProfile) error {
	s.profiles[p.ID.String()] = p
	return nil
}

func (s *fakeStore) SaveMatchResult(ctx context.Context, m *types.MatchResult) error {
	s.matches = append(s.matches, m)
	return nil
}

func (s *fakeStore) ListMatchesForProfile(ctx context.Context, profileID string, limit int) ([]*types.MatchResult, error) {
	var out []*types.MatchResult
	for _, m := range s.matches {
		if m.ProfileID.String() == profileID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) RunStats(ctx context.Context) (map[workflow.State]int, error) {
	return s.stats, nil
}

type fakeScraper struct {
	summary *scrape.Summary
	lastIDs []string
}

func (f *fakeScraper) RunSources(ctx context.Context, ids []string) *scrape.Summary {
	f.lastIDs = ids
	return f.summary
}

type fakeWorkflows struct {
	runs map[string]*workflow.WorkflowRun
}

func newFakeWorkflows() *fakeWorkflows {
	return &fakeWorkflows{runs: map[string]*workflow.WorkflowRun{}}
}

func (f *fakeWorkflows) Start(ctx context.Context, postingID, profileID string, docs workflow.Documents) (*workflow.WorkflowRun, error) {
	for _, run := range f.runs {
		if run.PostingID == postingID && run.ProfileID == profileID && !workflow.IsTerminal(run.State) {
			return nil, workflow.ErrRunActive
		}
	}
	run := workflow.NewRun(postingID, profileID)
	run.Documents = docs
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeWorkflows) Get(ctx context.Context, runID string) (*workflow.WorkflowRun, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, workflow.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeWorkflows) Cancel(ctx context.Context, runID string) error {
	run, ok := f.runs[runID]
	if !ok {
		return workflow.ErrRunNotFound
	}
	if workflow.IsTerminal(run.State) {
		return workflow.ErrRunTerminal
	}
	run.State = workflow.StateAbandoned
	return nil
}

func (f *fakeWorkflows) ResumeCaptcha(ctx context.Context, runID string) error {
	run, ok := f.runs[runID]
	if !ok {
		return workflow.ErrRunNotFound
	}
	if run.State != workflow.StateCaptchaPending {
		return workflow.ErrNotWaiting
	}
	run.State = run.ResumeState
	return nil
}

type testEnv struct {
	server    *Server
	store     *fakeStore
	scraper   *fakeScraper
	workflows *fakeWorkflows
}

func newTestEnv(t *testing.T, renderer docgen.Renderer) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore(),
		scraper:   &fakeScraper{},
		workflows: newFakeWorkflows(),
	}
	env.server = New(Config{Port: 0}, Deps{
		Store:     env.store,
		Scraper:   env.scraper,
		Matcher:   matching.NewEngine(nil),
		Workflows: env.workflows,
		Renderer:  renderer,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func seedPosting(env *testEnv, title, desc string, status types.PostingStatus, excluded bool) *types.JobPosting {
	p := &types.JobPosting{
		ID:             uuid.New(),
		Title:          title,
		Company:        "Acme Corp",
		Location:       "Remote",
		JobType:        types.JobTypeFullTime,
		Description:    desc,
		ApplicationURL: "https://jobs.acme.test/apply",
		Fingerprint:    uuid.New().String(),
		Sponsorship:    true,
		Excluded:       excluded,
		Status:         status,
		FirstSeen:      time.Now().UTC(),
		LastSeen:       time.Now().UTC(),
	}
	env.store.postings[p.ID.String()] = p
	return p
}

func seedProfile(env *testEnv) *types.CandidateProfile {
	p := &types.CandidateProfile{
		ID: uuid.New(),
		Skills: []types.ProfileSkill{
			{Name: "Go", Level: types.SkillLevelAdvanced},
			{Name: "PostgreSQL", Level: types.SkillLevelIntermediate},
		},
		TargetRoles:        []string{"Backend Engineer"},
		PreferredLocations: []string{"Remote"},
	}
	env.store.profiles[p.ID.String()] = p
	return p
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleScrape(t *testing.T) {
	env := newTestEnv(t, nil)
	env.scraper.summary = &scrape.Summary{
		Results: []scrape.SourceResult{
			{SourceID: "acme", Extracted: 3, Inserted: 2, Updated: 1},
		},
	}

	rec := env.do(t, http.MethodPost, "/scrape", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Sources)
	assert.Equal(t, 1, resp.Succeeded)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 2, resp.Results[0].Inserted)
}

func TestHandleScrape_SourceFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.scraper.summary = &scrape.Summary{}

	rec := env.do(t, http.MethodPost, "/scrape", ScrapeRequest{SourceIDs: []string{"acme"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"acme"}, env.scraper.lastIDs)
}

func TestHandleScrape_AlreadyRunning(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/scrape", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleListPostings(t *testing.T) {
	env := newTestEnv(t, nil)
	seedPosting(env, "Backend Engineer", "Go services", types.PostingStatusNew, false)
	seedPosting(env, "Old Role", "gone", types.PostingStatusArchived, false)

	rec := env.do(t, http.MethodGet, "/postings?status=new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var postings []*types.JobPosting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &postings))
	require.Len(t, postings, 1)
	assert.Equal(t, "Backend Engineer", postings[0].Title)

	rec = env.do(t, http.MethodGet, "/postings?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSetPostingStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	p := seedPosting(env, "Backend Engineer", "Go services", types.PostingStatusNew, false)

	rec := env.do(t, http.MethodPut, "/postings/"+p.ID.String()+"/status",
		PostingStatusRequest{Status: "reviewed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.PostingStatusReviewed, p.Status)

	rec = env.do(t, http.MethodPut, "/postings/"+p.ID.String()+"/status",
		PostingStatusRequest{Status: "nonsense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/postings/"+uuid.New().String()+"/status",
		PostingStatusRequest{Status: "reviewed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSaveProfile(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/profiles", SaveProfileRequest{
		Skills:      []types.ProfileSkill{{Name: "Go", Level: types.SkillLevelAdvanced}},
		TargetRoles: []string{"Backend Engineer"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var profile types.CandidateProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.NotEqual(t, uuid.Nil, profile.ID)
	assert.Len(t, env.store.profiles, 1)

	// Missing target roles fails validation.
	rec = env.do(t, http.MethodPost, "/profiles", SaveProfileRequest{
		Skills: []types.ProfileSkill{{Name: "Go"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComputeMatches(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := seedProfile(env)
	good := seedPosting(env, "Backend Engineer", "We use Go and PostgreSQL daily.", types.PostingStatusNew, false)
	seedPosting(env, "Backend Engineer", "archived", types.PostingStatusArchived, false)
	seedPosting(env, "Crypto Trader", "excluded by keyword", types.PostingStatusNew, true)

	rec := env.do(t, http.MethodPost, "/matches/compute",
		ComputeMatchesRequest{ProfileID: profile.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []MatchEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, good.ID, entries[0].Posting.ID)
	assert.Greater(t, entries[0].Match.Score, 0.5)
	assert.Len(t, env.store.matches, 1)
}

func TestHandleComputeMatches_UnknownProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/matches/compute",
		ComputeMatchesRequest{ProfileID: uuid.New().String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartApplication(t *testing.T) {
	env := newTestEnv(t, nil)
	posting := seedPosting(env, "Backend Engineer", "Go services", types.PostingStatusNew, false)
	profile := seedProfile(env)
	req := StartApplicationRequest{
		PostingID:        posting.ID.String(),
		ProfileID:        profile.ID.String(),
		ResumeTemplateID: "resume-basic",
	}

	rec := env.do(t, http.MethodPost, "/applications", req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp ApplicationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(workflow.StatePending), resp.State)
	assert.Equal(t, "resume-basic", resp.Documents.ResumeTemplateID)

	// A second start for the same pair conflicts while the run is active.
	rec = env.do(t, http.MethodPost, "/applications", req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown posting 404s before any run is created.
	rec = env.do(t, http.MethodPost, "/applications",
		StartApplicationRequest{PostingID: uuid.New().String(), ProfileID: profile.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed ids fail validation.
	rec = env.do(t, http.MethodPost, "/applications",
		StartApplicationRequest{PostingID: "not-a-uuid", ProfileID: profile.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleApplicationLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	posting := seedPosting(env, "Backend Engineer", "Go services", types.PostingStatusNew, false)
	profile := seedProfile(env)

	run, err := env.workflows.Start(context.Background(), posting.ID.String(), profile.ID.String(), workflow.Documents{})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/applications/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Not parked on a captcha yet.
	rec = env.do(t, http.MethodPost, "/applications/"+run.ID+"/resume-captcha", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.workflows.runs[run.ID].State = workflow.StateCaptchaPending
	env.workflows.runs[run.ID].ResumeState = workflow.StateSubmitting
	rec = env.do(t, http.MethodPost, "/applications/"+run.ID+"/resume-captcha", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, workflow.StateSubmitting, env.workflows.runs[run.ID].State)

	rec = env.do(t, http.MethodPost, "/applications/"+run.ID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodGet, "/applications/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleApplicationStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.stats = map[workflow.State]int{
		workflow.StateConfirmed:   3,
		workflow.StateFailed:      1,
		workflow.StateFormFilling: 2,
	}

	rec := env.do(t, http.MethodGet, "/applications/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Total)
	assert.Equal(t, 2, resp.Active)
	assert.Equal(t, 4, resp.Terminal)
	assert.Equal(t, 3, resp.ByState[string(workflow.StateConfirmed)])
}

func TestHandleGenerateDocument(t *testing.T) {
	templateDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(templateDir, "cover-basic.tmpl"),
		[]byte("Dear {{.Company}}, I want the {{.Title}} role."), 0o644))
	renderer := docgen.NewTemplateRenderer(templateDir, t.TempDir())

	env := newTestEnv(t, renderer)
	posting := seedPosting(env, "Backend Engineer", "Go services", types.PostingStatusNew, false)
	profile := seedProfile(env)

	rec := env.do(t, http.MethodPost, "/documents", GenerateDocumentRequest{
		PostingID:  posting.ID.String(),
		ProfileID:  profile.ID.String(),
		DocType:    "cover_letter",
		TemplateID: "cover-basic",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ref docgen.ArtifactRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	content, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Dear Acme Corp")

	// Unknown template 404s.
	rec = env.do(t, http.MethodPost, "/documents", GenerateDocumentRequest{
		PostingID:  posting.ID.String(),
		ProfileID:  profile.ID.String(),
		DocType:    "resume",
		TemplateID: "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGenerateDocument_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/documents", GenerateDocumentRequest{
		PostingID:  uuid.New().String(),
		ProfileID:  uuid.New().String(),
		DocType:    "resume",
		TemplateID: "any",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
